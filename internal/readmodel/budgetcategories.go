package readmodel

import (
	"context"
	"database/sql"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/monthlystate"
)

// BudgetCategoryRow is one category paired with its effective monthly
// state for a given month (spec §6 ListBudgetCategories).
type BudgetCategoryRow struct {
	CategoryID     string
	GroupID        *string
	Name           string
	IsSystem       bool
	AllocatedMinor money.Minor
	InflowMinor    money.Minor
	ActivityMinor  money.Minor
	AvailableMinor money.Minor
}

// ListBudgetCategories lists every non-system, envelope category together
// with its monthly state as of monthStart, rolling forward unchanged for
// categories never touched in that month (same nearest-prior-month rule
// internal/monthlystate and internal/rta use).
func (s *Service) ListBudgetCategories(ctx context.Context, monthStart time.Time) ([]BudgetCategoryRow, error) {
	monthStart = money.MonthStart(monthStart)

	rows, err := s.gateway.DB().QueryContext(ctx, `
		SELECT category_id, group_id, name, is_system FROM categories
		WHERE is_system = FALSE AND is_envelope = TRUE`)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	type catRow struct {
		id, name string
		groupID  *string
		isSystem bool
	}
	var cats []catRow
	for rows.Next() {
		var c catRow
		var groupID sql.NullString
		var name string
		var isSystem bool
		if err := rows.Scan(&c.id, &groupID, &name, &isSystem); err != nil {
			return nil, ledgererr.Storage(err)
		}
		c.name, c.isSystem = name, isSystem
		if groupID.Valid {
			c.groupID = &groupID.String
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage(err)
	}

	out := make([]BudgetCategoryRow, 0, len(cats))
	for _, c := range cats {
		state, err := s.effectiveMonthlyState(ctx, c.id, monthStart)
		if err != nil {
			return nil, err
		}
		row := BudgetCategoryRow{CategoryID: c.id, GroupID: c.groupID, Name: c.name, IsSystem: c.isSystem}
		if state != nil {
			row.AllocatedMinor = state.AllocatedMinor
			row.InflowMinor = state.InflowMinor
			row.ActivityMinor = state.ActivityMinor
			row.AvailableMinor = state.AvailableMinor
		}
		out = append(out, row)
	}
	return out, nil
}

// effectiveMonthlyState reads the exact monthStart row if it has been
// materialized, else falls back to the nearest prior month's
// available_minor (unchanged allocated/inflow/activity, since those are
// genuinely zero for an untouched month).
func (s *Service) effectiveMonthlyState(ctx context.Context, categoryID string, monthStart time.Time) (*monthlystate.State, error) {
	row := s.gateway.DB().QueryRowContext(ctx, `
		SELECT category_id, month_start, allocated_minor, inflow_minor, activity_minor, available_minor
		FROM budget_category_monthly_state WHERE category_id = ? AND month_start = ?`, categoryID, monthStart)

	st := &monthlystate.State{}
	var allocated, inflow, activity, available int64
	err := row.Scan(&st.CategoryID, &st.MonthStart, &allocated, &inflow, &activity, &available)
	if err == nil {
		st.AllocatedMinor, st.InflowMinor, st.ActivityMinor, st.AvailableMinor =
			money.Minor(allocated), money.Minor(inflow), money.Minor(activity), money.Minor(available)
		return st, nil
	}
	if err != sql.ErrNoRows {
		return nil, ledgererr.Storage(err)
	}

	var rollover int64
	var haveRollover bool
	err2 := s.gateway.DB().QueryRowContext(ctx, `
		SELECT available_minor FROM budget_category_monthly_state
		WHERE category_id = ? AND month_start < ? ORDER BY month_start DESC LIMIT 1`, categoryID, monthStart).Scan(&rollover)
	if err2 == nil {
		haveRollover = true
	} else if err2 != sql.ErrNoRows {
		return nil, ledgererr.Storage(err2)
	}

	return &monthlystate.State{
		CategoryID:     categoryID,
		MonthStart:     monthStart,
		AvailableMinor: money.Minor(boolToMinor(haveRollover, rollover)),
	}, nil
}

func boolToMinor(have bool, v int64) int64 {
	if !have {
		return 0
	}
	return v
}

// MonthlySummary is the whole-month income/expense rollup the dashboard
// always also exposes alongside per-category/per-account series (spec
// SPEC_FULL.md §11 [SUPPLEMENT]).
type MonthlySummary struct {
	MonthStart       time.Time
	InflowMinor      money.Minor
	OutflowMinor     money.Minor
	NetRTADeltaMinor money.Minor
}

// Summary computes a month's total inflow/outflow across active,
// non-system transactions, plus the net Ready-to-Assign movement recorded
// against the available_to_budget pseudo-category for the month.
func (s *Service) Summary(ctx context.Context, monthStart time.Time) (*MonthlySummary, error) {
	monthStart = money.MonthStart(monthStart)

	var inflow, outflow int64
	err := s.gateway.DB().QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN t.amount_minor > 0 THEN t.amount_minor ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.amount_minor < 0 THEN t.amount_minor ELSE 0 END), 0)
		FROM transactions t
		JOIN categories c ON c.category_id = t.category_id
		WHERE t.is_active = TRUE AND c.is_system = FALSE
		  AND date_trunc('month', t.transaction_date) = ?`, monthStart).Scan(&inflow, &outflow)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}

	rtaState, err := s.effectiveMonthlyState(ctx, "available_to_budget", monthStart)
	if err != nil {
		return nil, err
	}
	var delta money.Minor
	if rtaState != nil {
		delta = rtaState.AllocatedMinor
	}

	return &MonthlySummary{
		MonthStart:       monthStart,
		InflowMinor:      money.Minor(inflow),
		OutflowMinor:     money.Minor(outflow),
		NetRTADeltaMinor: delta,
	}, nil
}
