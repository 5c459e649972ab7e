// Package reconciliation is the append-only checkpoint core (spec §4.7).
// Checkpoints are never rewritten; the service only ever appends a new row
// linked to the previous one and surfaces drift against prior periods for
// a human to resolve.
package reconciliation

import (
	"context"
	"database/sql"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/dafibh/fortuna/fortuna-backend/internal/websocket"
	"github.com/google/uuid"
)

// Service is the reconciliation core.
type Service struct {
	gateway   *storage.Gateway
	publisher websocket.EventPublisher
}

// New constructs a reconciliation Service.
func New(gateway *storage.Gateway) *Service {
	return &Service{gateway: gateway, publisher: &websocket.NoOpPublisher{}}
}

// SetPublisher attaches the change-feed publisher Commit broadcasts
// through (spec §2 ambient stack).
func (s *Service) SetPublisher(p websocket.EventPublisher) {
	s.publisher = p
}

// Checkpoint is one committed reconciliation row.
type Checkpoint struct {
	ReconciliationID         string
	AccountID                string
	CreatedAt                time.Time
	StatementDate            time.Time
	StatementBalanceMinor    money.Minor
	PreviousReconciliationID *string
}

// DriftItem names a transaction version that changed against an already
// reconciled period (spec §4.7: "must be surfaced as a separate report; the
// service never rewrites history itself").
type DriftItem struct {
	TransactionVersionID     string
	TransactionDate          time.Time
	RecordedAt               time.Time
	PriorCommitStatementDate time.Time
}

// Worksheet is the set the caller reviews before committing (spec §4.7).
type Worksheet struct {
	AccountID             string
	StatementDate         time.Time
	StatementBalanceMinor money.Minor
	PendingVersionIDs     []string
	ClearedSumMinor       money.Minor
	DifferenceMinor       money.Minor
	Drift                 []DriftItem
}

// Latest returns the most recent checkpoint for accountID, or nil if the
// account has never been reconciled.
func (s *Service) Latest(ctx context.Context, accountID string) (*Checkpoint, error) {
	row := s.gateway.DB().QueryRowContext(ctx, checkpointSelectSQL+`
		WHERE account_id = ? ORDER BY created_at DESC LIMIT 1`, accountID)
	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cp, err
}

func latestTx(ctx context.Context, tx *sql.Tx, accountID string) (*Checkpoint, error) {
	row := tx.QueryRowContext(ctx, checkpointSelectSQL+`
		WHERE account_id = ? ORDER BY created_at DESC LIMIT 1`, accountID)
	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cp, err
}

// Worksheet computes the pending set and difference for a prospective
// commit (spec §4.7: "the set of active transaction versions that are (a)
// not yet cleared as of the last commit, or (b) created/modified since the
// last commit"), plus the drift report against the prior period.
func (s *Service) Worksheet(ctx context.Context, accountID string, statementDate time.Time, statementBalanceMinor money.Minor) (*Worksheet, error) {
	prior, err := s.Latest(ctx, accountID)
	if err != nil {
		return nil, err
	}

	w := &Worksheet{
		AccountID:             accountID,
		StatementDate:         money.DayOf(statementDate),
		StatementBalanceMinor: statementBalanceMinor,
	}

	var priorCommitAt time.Time
	if prior != nil {
		priorCommitAt = prior.CreatedAt
	}

	rows, err := s.gateway.DB().QueryContext(ctx, `
		SELECT transaction_version_id, status, amount_minor, recorded_at
		FROM transactions
		WHERE account_id = ? AND is_active = TRUE
		  AND (status != 'cleared' OR recorded_at > ?)`, accountID, priorCommitAt)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var clearedSum money.Minor
	for rows.Next() {
		var versionID, status string
		var amount int64
		var recordedAt time.Time
		if err := rows.Scan(&versionID, &status, &amount, &recordedAt); err != nil {
			return nil, ledgererr.Storage(err)
		}
		w.PendingVersionIDs = append(w.PendingVersionIDs, versionID)
		if status == "cleared" {
			clearedSum = clearedSum.Add(money.Minor(amount))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage(err)
	}

	// The difference compares the statement balance to every active cleared
	// transaction for the account, not only the ones surfaced as pending
	// (spec §4.7: "difference = statement_balance − sum_of_cleared_amounts").
	var totalCleared int64
	err = s.gateway.DB().QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_minor), 0) FROM transactions
		WHERE account_id = ? AND is_active = TRUE AND status = 'cleared'`, accountID).Scan(&totalCleared)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}

	w.ClearedSumMinor = money.Minor(totalCleared)
	w.DifferenceMinor = statementBalanceMinor.Sub(w.ClearedSumMinor)

	if prior != nil {
		w.Drift, err = s.driftSince(ctx, accountID, prior)
		if err != nil {
			return nil, err
		}
	}

	return w, nil
}

// driftSince finds active transaction versions recorded after prior's
// commit but dated at or before the period prior already reconciled (spec
// §4.7's drift-detection rule).
func (s *Service) driftSince(ctx context.Context, accountID string, prior *Checkpoint) ([]DriftItem, error) {
	rows, err := s.gateway.DB().QueryContext(ctx, `
		SELECT transaction_version_id, transaction_date, recorded_at
		FROM transactions
		WHERE account_id = ? AND is_active = TRUE
		  AND recorded_at > ? AND transaction_date <= ?`, accountID, prior.CreatedAt, prior.StatementDate)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var out []DriftItem
	for rows.Next() {
		var d DriftItem
		if err := rows.Scan(&d.TransactionVersionID, &d.TransactionDate, &d.RecordedAt); err != nil {
			return nil, ledgererr.Storage(err)
		}
		d.PriorCommitStatementDate = prior.StatementDate
		out = append(out, d)
	}
	return out, ledgererr.Storage(rows.Err())
}

// CommitInput is the Commit wire contract (spec §4.7, §6).
type CommitInput struct {
	AccountID             string
	StatementDate         time.Time
	StatementBalanceMinor money.Minor
}

// Commit appends a new reconciliation checkpoint linked to the previous
// one. It only succeeds when the difference is exactly zero, re-evaluated
// inside the same unit of work the row is written in (spec §4.7: "Must
// only succeed when difference == 0 at the moment of commit, evaluated
// inside the unit of work").
func (s *Service) Commit(ctx context.Context, input CommitInput) (*Checkpoint, error) {
	var result *Checkpoint
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()

		prior, err := latestTx(ctx, tx, input.AccountID)
		if err != nil {
			return err
		}

		var previousID *string
		if prior != nil {
			previousID = &prior.ReconciliationID
		}

		var totalCleared int64
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(amount_minor), 0) FROM transactions
			WHERE account_id = ? AND is_active = TRUE AND status = 'cleared'`, input.AccountID).Scan(&totalCleared)
		if err != nil {
			return ledgererr.Storage(err)
		}

		difference := input.StatementBalanceMinor.Sub(money.Minor(totalCleared))
		if !difference.IsZero() {
			return ledgererr.Validation(ledgererr.ErrDifferenceNotZero).WithField("statement_balance_minor")
		}

		cp := &Checkpoint{
			ReconciliationID:         uuid.NewString(),
			AccountID:                input.AccountID,
			CreatedAt:                time.Now().UTC(),
			StatementDate:            money.DayOf(input.StatementDate),
			StatementBalanceMinor:    input.StatementBalanceMinor,
			PreviousReconciliationID: previousID,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO account_reconciliations (reconciliation_id, account_id, created_at, statement_date, statement_balance_minor, previous_reconciliation_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			cp.ReconciliationID, cp.AccountID, cp.CreatedAt, cp.StatementDate, int64(cp.StatementBalanceMinor), cp.PreviousReconciliationID)
		if err != nil {
			return ledgererr.Storage(err)
		}

		result = cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(websocket.ReconciliationCommitted(result))
	return result, nil
}

// History returns every checkpoint for accountID, most recent first.
func (s *Service) History(ctx context.Context, accountID string) ([]*Checkpoint, error) {
	rows, err := s.gateway.DB().QueryContext(ctx, checkpointSelectSQL+`
		WHERE account_id = ? ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, ledgererr.Storage(rows.Err())
}

const checkpointSelectSQL = `
	SELECT reconciliation_id, account_id, created_at, statement_date, statement_balance_minor, previous_reconciliation_id
	FROM account_reconciliations`

func scanCheckpoint(row interface{ Scan(dest ...interface{}) error }) (*Checkpoint, error) {
	cp := &Checkpoint{}
	var balance int64
	var previousID sql.NullString
	err := row.Scan(&cp.ReconciliationID, &cp.AccountID, &cp.CreatedAt, &cp.StatementDate, &balance, &previousID)
	if err != nil {
		return nil, err
	}
	cp.StatementBalanceMinor = money.Minor(balance)
	if previousID.Valid {
		cp.PreviousReconciliationID = &previousID.String
	}
	return cp, nil
}
