// Package registry owns the account and category registries: account
// create/update, per-class SCD-2 detail rows, the credit-card payment
// reserve side effect, and the fixed system-category registry (spec §4.6,
// §4.10, §9 — "a single module exposes them", not magic strings scattered
// through the ledger).
package registry

// System category IDs, seeded by migration 0008_seed_system_categories.sql.
// These are the only valid categories for non-user-entered ledger events.
const (
	CategoryOpeningBalance    = "opening_balance"
	CategoryBalanceAdjustment = "balance_adjustment"
	CategoryAccountTransfer   = "account_transfer"
	CategoryAvailableToBudget = "available_to_budget"
)

// ReservedPaymentsGroupID is the reserved category-group for credit-card
// payment envelopes (spec §3: "group_id credit_card_payments is reserved
// with sort_order below user groups").
const ReservedPaymentsGroupID = "credit_card_payments"

// IsSystemCategory reports whether categoryID names one of the fixed
// system categories above.
func IsSystemCategory(categoryID string) bool {
	switch categoryID {
	case CategoryOpeningBalance, CategoryBalanceAdjustment, CategoryAccountTransfer, CategoryAvailableToBudget:
		return true
	default:
		return false
	}
}

// PaymentCategoryID derives the stable, deterministic payment-category id
// for a credit account, so the registry can upsert it idempotently on
// every credit account create/update (spec §4.6).
func PaymentCategoryID(accountID string) string {
	return "payment_" + accountID
}
