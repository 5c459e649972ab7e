// Package rta computes Ready-to-Assign, a value derived entirely from
// already-authoritative accounts and budget_category_monthly_state rows
// and never persisted (spec §4.5). Ledger and allocation writes never
// touch this package directly; they only maintain the rows it reads.
package rta

import (
	"context"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
)

// Service computes Ready-to-Assign on read.
type Service struct {
	gateway *storage.Gateway
}

// New constructs an rta Service.
func New(gateway *storage.Gateway) *Service {
	return &Service{gateway: gateway}
}

// Compute returns Ready-to-Assign for monthStart (spec §4.5):
//
//	RTA = Σ balance of active on-budget cash accounts
//	    − Σ available_minor of active, non-system, envelope categories at month_start
func (s *Service) Compute(ctx context.Context, monthStart time.Time) (money.Minor, error) {
	monthStart = money.MonthStart(monthStart)

	var cashTotal int64
	err := s.gateway.DB().QueryRowContext(ctx, `
		SELECT COALESCE(SUM(current_balance_minor), 0)
		FROM accounts
		WHERE is_active = TRUE AND account_role = 'on_budget' AND account_class = 'cash'`).Scan(&cashTotal)
	if err != nil {
		return money.Zero, ledgererr.Storage(err)
	}

	// Each category's effective available_minor as of monthStart is its
	// nearest materialized row at or before monthStart (rollover carries
	// forward unchanged through months the category was never touched, the
	// same rule internal/monthlystate uses to seed new rows).
	var committed int64
	err = s.gateway.DB().QueryRowContext(ctx, `
		SELECT COALESCE(SUM((
			SELECT s.available_minor
			FROM budget_category_monthly_state s
			WHERE s.category_id = c.category_id AND s.month_start <= ?
			ORDER BY s.month_start DESC
			LIMIT 1
		)), 0)
		FROM categories c
		WHERE c.is_system = FALSE AND c.is_envelope = TRUE`, monthStart).Scan(&committed)
	if err != nil {
		return money.Zero, ledgererr.Storage(err)
	}

	return money.Minor(cashTotal).Sub(money.Minor(committed)), nil
}
