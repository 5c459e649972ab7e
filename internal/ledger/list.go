package ledger

import (
	"context"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
)

// StatusFilter narrows ListByAccount (spec §4.2: "status_filter ∈ {all,
// cleared}").
type StatusFilter string

const (
	StatusFilterAll     StatusFilter = "all"
	StatusFilterCleared StatusFilter = "cleared"
)

// ListRecent returns the most recently recorded active transactions across
// all accounts.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.gateway.DB().QueryContext(ctx, transactionSelectSQL+`
		WHERE is_active = TRUE ORDER BY recorded_at DESC, recorded_counter DESC LIMIT ?`, limit)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListByAccount lists a single account's active transactions, optionally
// bounded by date range and clearing status.
func (s *Service) ListByAccount(ctx context.Context, accountID string, start, end *time.Time, limit int, statusFilter StatusFilter) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	if statusFilter == "" {
		statusFilter = StatusFilterAll
	}

	query := transactionSelectSQL + ` WHERE account_id = ? AND is_active = TRUE`
	args := []interface{}{accountID}

	if start != nil {
		query += ` AND transaction_date >= ?`
		args = append(args, *start)
	}
	if end != nil {
		query += ` AND transaction_date <= ?`
		args = append(args, *end)
	}
	if statusFilter == StatusFilterCleared {
		query += ` AND status = 'cleared'`
	}
	query += ` ORDER BY transaction_date DESC, recorded_counter DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.gateway.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]*Transaction, error) {
	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, ledgererr.Storage(rows.Err())
}
