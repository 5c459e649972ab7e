// Package monthlystate maintains budget_category_monthly_state, the
// derived cache described in spec §3 and §4.2 step 5 / §4.4 step 4. Both
// the ledger and allocation cores call into this package so the rollover
// and seeding rule is defined exactly once (spec §9: "keep the split
// between incremental maintenance (hot path) and full rebuild (recovery
// path). Both must produce the same result").
//
// Rows are materialized lazily on first touch (SPEC_FULL.md §12 resolves
// spec.md's Open Question this way): a (category_id, month_start) row is
// only created the first time an allocation or transaction touches that
// month, seeded by carrying forward the nearest existing prior month's
// available_minor.
package monthlystate

import (
	"context"
	"database/sql"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
)

// State is one (category_id, month_start) row.
type State struct {
	CategoryID     string
	MonthStart     time.Time
	AllocatedMinor money.Minor
	InflowMinor    money.Minor
	ActivityMinor  money.Minor
	AvailableMinor money.Minor
}

// Get reads a single row, or nil if it has never been touched.
func Get(ctx context.Context, tx *sql.Tx, categoryID string, monthStart time.Time) (*State, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT category_id, month_start, allocated_minor, inflow_minor, activity_minor, available_minor
		FROM budget_category_monthly_state WHERE category_id = ? AND month_start = ?`, categoryID, monthStart)
	return scan(row)
}

func scan(row interface{ Scan(dest ...interface{}) error }) (*State, error) {
	s := &State{}
	var allocated, inflow, activity, available int64
	err := row.Scan(&s.CategoryID, &s.MonthStart, &allocated, &inflow, &activity, &available)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	s.AllocatedMinor, s.InflowMinor, s.ActivityMinor, s.AvailableMinor = money.Minor(allocated), money.Minor(inflow), money.Minor(activity), money.Minor(available)
	return s, nil
}

// seedRollover returns the available_minor to seed a brand-new row with:
// the nearest existing prior month's available_minor, or zero if the
// category has never been touched before (spec §4.2 step 5: "seed ...  by
// carrying forward available_minor from the previous month (rollover) if
// no row exists").
func seedRollover(ctx context.Context, tx *sql.Tx, categoryID string, monthStart time.Time) (money.Minor, error) {
	var available sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT available_minor FROM budget_category_monthly_state
		WHERE category_id = ? AND month_start < ?
		ORDER BY month_start DESC LIMIT 1`, categoryID, monthStart).Scan(&available)
	if err == sql.ErrNoRows {
		return money.Zero, nil
	}
	if err != nil {
		return money.Zero, ledgererr.Storage(err)
	}
	if !available.Valid {
		return money.Zero, nil
	}
	return money.Minor(available.Int64), nil
}

// ensure seeds the row for (categoryID, monthStart) if it doesn't exist yet.
func ensure(ctx context.Context, tx *sql.Tx, categoryID string, monthStart time.Time) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM budget_category_monthly_state WHERE category_id = ? AND month_start = ?)`,
		categoryID, monthStart).Scan(&exists); err != nil {
		return ledgererr.Storage(err)
	}
	if exists {
		return nil
	}

	rollover, err := seedRollover(ctx, tx, categoryID, monthStart)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_category_monthly_state (category_id, month_start, allocated_minor, inflow_minor, activity_minor, available_minor)
		VALUES (?, ?, 0, 0, 0, ?)`, categoryID, monthStart, int64(rollover))
	if err != nil {
		return ledgererr.Storage(err)
	}
	return nil
}

// ApplyDelta seeds the row if necessary, then applies deltas to allocated,
// inflow, and activity. available_minor is adjusted by the sum of the
// three deltas only when affectsAvailable is true; otherwise allocated/
// inflow/activity still update but available_minor is left untouched
// (spec §4.2 step 6: system or non-envelope categories record activity
// without moving available_minor). Because available_minor rolls over, the
// same available delta is also added to every later month already
// materialized for the category.
func ApplyDelta(ctx context.Context, tx *sql.Tx, categoryID string, monthStart time.Time, allocatedDelta, inflowDelta, activityDelta money.Minor, affectsAvailable bool) error {
	if err := ensure(ctx, tx, categoryID, monthStart); err != nil {
		return err
	}

	availableDelta := money.Zero
	if affectsAvailable {
		availableDelta = allocatedDelta.Add(inflowDelta).Add(activityDelta)
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE budget_category_monthly_state
		SET allocated_minor = allocated_minor + ?,
		    inflow_minor = inflow_minor + ?,
		    activity_minor = activity_minor + ?,
		    available_minor = available_minor + ?
		WHERE category_id = ? AND month_start = ?`,
		int64(allocatedDelta), int64(inflowDelta), int64(activityDelta), int64(availableDelta), categoryID, monthStart)
	if err != nil {
		return ledgererr.Storage(err)
	}
	if !availableDelta.IsZero() {
		if _, err := tx.ExecContext(ctx, `
			UPDATE budget_category_monthly_state
			SET available_minor = available_minor + ?
			WHERE category_id = ? AND month_start > ?`,
			int64(availableDelta), categoryID, monthStart); err != nil {
			return ledgererr.Storage(err)
		}
	}
	return nil
}

// ListForMonth returns every row materialized for monthStart.
func ListForMonth(ctx context.Context, tx *sql.Tx, monthStart time.Time) ([]*State, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT category_id, month_start, allocated_minor, inflow_minor, activity_minor, available_minor
		FROM budget_category_monthly_state WHERE month_start = ?`, monthStart)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var out []*State
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, ledgererr.Storage(rows.Err())
}
