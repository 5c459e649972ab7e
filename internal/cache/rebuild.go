// Package cache recomputes the engine's derived state
// (accounts.current_balance_minor and budget_category_monthly_state) from
// scratch, the recovery-path twin of the ledger and allocation packages'
// incremental maintenance (spec §4.9, §9: "keep the split between
// incremental maintenance (hot path) and full rebuild (recovery path).
// Both must produce the same result; property tests enforce it").
package cache

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
)

// Service performs full derived-state rebuilds.
type Service struct {
	gateway *storage.Gateway
}

// New constructs a cache Service.
func New(gateway *storage.Gateway) *Service {
	return &Service{gateway: gateway}
}

// Rebuild replaces all derived state atomically (spec §4.9 procedure,
// steps 1-3): recompute every account balance from active transactions,
// recompute monthly activity/allocated from active transactions/
// allocations, then roll availability forward month by month.
func (s *Service) Rebuild(ctx context.Context) error {
	return s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()
		if err := rebuildAccountBalancesTx(ctx, tx); err != nil {
			return err
		}
		return rebuildMonthlyStateTx(ctx, tx)
	})
}

// rebuildAccountBalancesTx overwrites every account's current_balance_minor
// with the sum of active transaction amounts (spec §4.9 step 1).
func rebuildAccountBalancesTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET current_balance_minor = COALESCE((
			SELECT SUM(t.amount_minor) FROM transactions t
			WHERE t.account_id = accounts.account_id AND t.is_active = TRUE
		), 0), updated_at = ?`, time.Now().UTC())
	if err != nil {
		return ledgererr.Storage(err)
	}
	return nil
}

type monthlyAccumulator struct {
	allocated, inflow, activity int64
}

// rebuildMonthlyStateTx replaces budget_category_monthly_state entirely
// (spec §4.9 step 2): recompute activity per (category, month) from active
// transactions and allocated per (category, month) from active
// allocations (net of incoming minus outgoing), then walk months in
// ascending order per category so that
// available = previous_month.available + allocated + inflow + activity.
func rebuildMonthlyStateTx(ctx context.Context, tx *sql.Tx) error {
	acc := map[string]map[time.Time]*monthlyAccumulator{}

	get := func(categoryID string, monthStart time.Time) *monthlyAccumulator {
		byMonth, ok := acc[categoryID]
		if !ok {
			byMonth = map[time.Time]*monthlyAccumulator{}
			acc[categoryID] = byMonth
		}
		a, ok := byMonth[monthStart]
		if !ok {
			a = &monthlyAccumulator{}
			byMonth[monthStart] = a
		}
		return a
	}

	activityRows, err := tx.QueryContext(ctx, `
		SELECT category_id, date_trunc('month', transaction_date), SUM(amount_minor)
		FROM transactions WHERE is_active = TRUE GROUP BY category_id, date_trunc('month', transaction_date)`)
	if err != nil {
		return ledgererr.Storage(err)
	}
	for activityRows.Next() {
		var categoryID string
		var monthStart time.Time
		var sum int64
		if err := activityRows.Scan(&categoryID, &monthStart, &sum); err != nil {
			activityRows.Close()
			return ledgererr.Storage(err)
		}
		get(categoryID, money.MonthStart(monthStart)).activity = sum
	}
	if err := activityRows.Err(); err != nil {
		activityRows.Close()
		return ledgererr.Storage(err)
	}
	activityRows.Close()

	allocRows, err := tx.QueryContext(ctx, `
		SELECT to_category_id, month_start, SUM(amount_minor) FROM budget_allocations
		WHERE is_active = TRUE GROUP BY to_category_id, month_start`)
	if err != nil {
		return ledgererr.Storage(err)
	}
	for allocRows.Next() {
		var categoryID string
		var monthStart time.Time
		var sum int64
		if err := allocRows.Scan(&categoryID, &monthStart, &sum); err != nil {
			allocRows.Close()
			return ledgererr.Storage(err)
		}
		a := get(categoryID, money.MonthStart(monthStart))
		a.allocated += sum
	}
	if err := allocRows.Err(); err != nil {
		allocRows.Close()
		return ledgererr.Storage(err)
	}
	allocRows.Close()

	allocRows2, err := tx.QueryContext(ctx, `
		SELECT from_category_id, month_start, SUM(amount_minor) FROM budget_allocations
		WHERE is_active = TRUE GROUP BY from_category_id, month_start`)
	if err != nil {
		return ledgererr.Storage(err)
	}
	for allocRows2.Next() {
		var categoryID string
		var monthStart time.Time
		var sum int64
		if err := allocRows2.Scan(&categoryID, &monthStart, &sum); err != nil {
			allocRows2.Close()
			return ledgererr.Storage(err)
		}
		a := get(categoryID, money.MonthStart(monthStart))
		a.allocated -= sum
	}
	if err := allocRows2.Err(); err != nil {
		allocRows2.Close()
		return ledgererr.Storage(err)
	}
	allocRows2.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM budget_category_monthly_state`); err != nil {
		return ledgererr.Storage(err)
	}

	for categoryID, byMonth := range acc {
		months := make([]time.Time, 0, len(byMonth))
		for m := range byMonth {
			months = append(months, m)
		}
		sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

		var rollingAvailable int64
		activityAffectsAvailable, err := categoryAffectsAvailableTx(ctx, tx, categoryID)
		if err != nil {
			return err
		}
		for _, m := range months {
			a := byMonth[m]
			// allocated always moves available_minor (allocation.applyAllocationEffectsTx
			// calls monthlystate.ApplyDelta with affectsAvailable=true unconditionally,
			// including for available_to_budget itself, which is_system and
			// !is_envelope); only transaction activity is envelope-gated, mirroring
			// ledger.Service's affectsAvailable := !cat.IsSystem && cat.IsEnvelope.
			rollingAvailable += int64(a.allocated) + int64(a.inflow)
			if activityAffectsAvailable {
				rollingAvailable += int64(a.activity)
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO budget_category_monthly_state (category_id, month_start, allocated_minor, inflow_minor, activity_minor, available_minor)
				VALUES (?, ?, ?, ?, ?, ?)`, categoryID, m, a.allocated, a.inflow, a.activity, rollingAvailable)
			if err != nil {
				return ledgererr.Storage(err)
			}
		}
	}
	return nil
}

// categoryAffectsAvailableTx mirrors ledger.Service's affectsAvailable rule
// for transaction activity: system and non-envelope categories record
// activity without moving available_minor. Allocation-derived deltas are
// never gated by this (see caller).
func categoryAffectsAvailableTx(ctx context.Context, tx *sql.Tx, categoryID string) (bool, error) {
	var isSystem, isEnvelope bool
	err := tx.QueryRowContext(ctx, `SELECT is_system, is_envelope FROM categories WHERE category_id = ?`, categoryID).Scan(&isSystem, &isEnvelope)
	if err != nil {
		return false, ledgererr.Storage(err)
	}
	return !isSystem && isEnvelope, nil
}
