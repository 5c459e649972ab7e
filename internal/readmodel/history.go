package readmodel

import (
	"context"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
)

// maxHistoryDays is the guardrail spec §4.8 suggests ("Cap range at a
// guardrail (suggested 3650 days) and reject longer requests").
const maxHistoryDays = 3650

// BalancePoint is one day of a balance series.
type BalancePoint struct {
	AsOfDate     time.Time
	BalanceMinor money.Minor
}

// StatusFilter narrows which transactions count toward a history series.
type StatusFilter string

const (
	StatusFilterAll     StatusFilter = "all"
	StatusFilterCleared StatusFilter = "cleared"
)

// AccountHistory computes one (as_of_date, balance_minor) point per
// calendar day in [startDate, endDate] (spec §4.8).
//
// Invariant (spec §8 #7): for endDate = today and statusFilter = all, the
// last point equals accounts.current_balance_minor.
func (s *Service) AccountHistory(ctx context.Context, accountID string, startDate, endDate time.Time, statusFilter StatusFilter) ([]BalancePoint, error) {
	startDate, endDate = money.DayOf(startDate), money.DayOf(endDate)
	if statusFilter == "" {
		statusFilter = StatusFilterAll
	}
	if endDate.Before(startDate) {
		return nil, ledgererr.Validationf("end_date must not precede start_date").WithField("end_date")
	}
	days := int(endDate.Sub(startDate).Hours()/24) + 1
	if days > maxHistoryDays {
		return nil, ledgererr.Guardrail(ledgererr.ErrRangeTooLong).WithField("end_date")
	}

	statusClause := ""
	if statusFilter == StatusFilterCleared {
		statusClause = ` AND status = 'cleared'`
	}

	var baseline int64
	err := s.gateway.DB().QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_minor), 0) FROM transactions
		WHERE account_id = ? AND is_active = TRUE AND transaction_date < ?`+statusClause,
		accountID, startDate).Scan(&baseline)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}

	rows, err := s.gateway.DB().QueryContext(ctx, `
		SELECT transaction_date, SUM(amount_minor) FROM transactions
		WHERE account_id = ? AND is_active = TRUE AND transaction_date >= ? AND transaction_date <= ?`+statusClause+`
		GROUP BY transaction_date`, accountID, startDate, endDate)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	flowByDay := make(map[time.Time]int64, days)
	for rows.Next() {
		var d time.Time
		var flow int64
		if err := rows.Scan(&d, &flow); err != nil {
			return nil, ledgererr.Storage(err)
		}
		flowByDay[money.DayOf(d)] = flow
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage(err)
	}

	points := make([]BalancePoint, 0, days)
	running := baseline
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		running += flowByDay[d]
		points = append(points, BalancePoint{AsOfDate: d, BalanceMinor: money.Minor(running)})
	}
	return points, nil
}

// NetWorthHistory computes an absolute-balance daily series aggregating
// asset, liability, investment, and tangible streams day-by-day (spec
// §4.8). Investment and tangible valuations are held flat across the
// range at their latest known value, since security_prices and
// account_details are populated by out-of-scope external collaborators
// (market-price fetcher, manual valuation) that this engine only reads.
func (s *Service) NetWorthHistory(ctx context.Context, startDate, endDate time.Time) ([]BalancePoint, error) {
	startDate, endDate = money.DayOf(startDate), money.DayOf(endDate)
	if endDate.Before(startDate) {
		return nil, ledgererr.Validationf("end_date must not precede start_date").WithField("end_date")
	}
	days := int(endDate.Sub(startDate).Hours()/24) + 1
	if days > maxHistoryDays {
		return nil, ledgererr.Guardrail(ledgererr.ErrRangeTooLong).WithField("end_date")
	}

	accounts, err := s.nonInvestmentAccountIDs(ctx)
	if err != nil {
		return nil, err
	}

	ledgerSeries := make(map[time.Time]money.Minor, days)
	for _, accountID := range accounts {
		series, err := s.AccountHistory(ctx, accountID, startDate, endDate, StatusFilterAll)
		if err != nil {
			return nil, err
		}
		for _, p := range series {
			ledgerSeries[p.AsOfDate] = ledgerSeries[p.AsOfDate].Add(p.BalanceMinor)
		}
	}

	positions, err := s.positionsMinor(ctx)
	if err != nil {
		return nil, err
	}
	var tangibles int64
	err = s.gateway.DB().QueryRowContext(ctx, `
		SELECT COALESCE(SUM(d.current_fair_value_minor), 0)
		FROM account_details d
		JOIN accounts a ON a.account_id = d.account_id
		WHERE d.is_active = TRUE AND a.is_active = TRUE AND a.account_class = 'tangible'`).Scan(&tangibles)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}

	points := make([]BalancePoint, 0, days)
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		total := ledgerSeries[d].Add(positions).Add(money.Minor(tangibles))
		points = append(points, BalancePoint{AsOfDate: d, BalanceMinor: total})
	}
	return points, nil
}

func (s *Service) nonInvestmentAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.gateway.DB().QueryContext(ctx, `
		SELECT account_id FROM accounts WHERE is_active = TRUE AND account_class != 'investment' AND account_class != 'tangible'`)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ledgererr.Storage(err)
		}
		out = append(out, id)
	}
	return out, ledgererr.Storage(rows.Err())
}
