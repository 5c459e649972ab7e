// Package ledger is the transactional write path over accounts,
// transactions, and derived monthly category state (spec §4.2, §4.3).
package ledger

import (
	"database/sql"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
)

// Status is a transaction's clearing state.
type Status string

const (
	StatusPending Status = "pending"
	StatusCleared Status = "cleared"
)

// Transaction is one SCD-2 version of a transaction concept (spec §3).
type Transaction struct {
	TransactionVersionID string
	ConceptID            string
	AccountID            string
	CategoryID           string
	TransactionDate      time.Time
	AmountMinor          money.Minor
	Memo                 *string
	Status               Status
	Source               string
	RecordedAt           time.Time
	RecordedCounter      uint64
	ValidFrom            time.Time
	ValidTo              *time.Time
	IsActive             bool
}

func scanTransaction(row interface{ Scan(dest ...interface{}) error }) (*Transaction, error) {
	t := &Transaction{}
	var amount int64
	var status string
	var memo sql.NullString
	var validTo sql.NullTime

	err := row.Scan(&t.TransactionVersionID, &t.ConceptID, &t.AccountID, &t.CategoryID, &t.TransactionDate,
		&amount, &memo, &status, &t.Source, &t.RecordedAt, &t.RecordedCounter, &t.ValidFrom, &validTo, &t.IsActive)
	if err == sql.ErrNoRows {
		return nil, ledgererr.Validation(ledgererr.ErrNotFound).WithField("concept_id")
	}
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	t.AmountMinor = money.Minor(amount)
	t.Status = Status(status)
	if memo.Valid {
		t.Memo = &memo.String
	}
	if validTo.Valid {
		t.ValidTo = &validTo.Time
	}
	return t, nil
}

const transactionSelectSQL = `
	SELECT transaction_version_id, concept_id, account_id, category_id, transaction_date,
		amount_minor, memo, status, source, recorded_at, recorded_counter, valid_from, valid_to, is_active
	FROM transactions`
