package registry

import "github.com/dafibh/fortuna/fortuna-backend/internal/storage"

// Service is the account & category registry (spec §4.10). It owns
// account/category CRUD, per-class SCD-2 detail rows, and the
// credit-card-payment-category side effect of credit account lifecycle
// (spec §9: "treat as a side effect of credit account lifecycle in the
// registry component; do not sprinkle upserts across the ledger").
type Service struct {
	gateway *storage.Gateway
}

// New constructs a registry Service.
func New(gateway *storage.Gateway) *Service {
	return &Service{gateway: gateway}
}
