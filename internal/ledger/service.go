package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/clock"
	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/monthlystate"
	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/dafibh/fortuna/fortuna-backend/internal/websocket"
	"github.com/google/uuid"
)

// Service is the ledger core: transaction create/edit/delete/list plus the
// two-leg transfer composition built on top of it (spec §4.2, §4.3).
type Service struct {
	gateway   *storage.Gateway
	clock     *clock.Source
	publisher websocket.EventPublisher
}

// New constructs a ledger Service.
func New(gateway *storage.Gateway, src *clock.Source) *Service {
	if src == nil {
		src = clock.New()
	}
	return &Service{gateway: gateway, clock: src, publisher: &websocket.NoOpPublisher{}}
}

// SetPublisher attaches the change-feed publisher every mutation broadcasts
// through (spec §2 ambient stack). Defaults to a no-op so tests and
// callers that don't run a websocket server pay nothing.
func (s *Service) SetPublisher(p websocket.EventPublisher) {
	s.publisher = p
}

// CreateInput is the CreateTransaction wire contract (spec §6).
type CreateInput struct {
	AccountID       string
	CategoryID      string
	TransactionDate time.Time
	AmountMinor     money.Minor
	Memo            *string
	Status          Status
	Source          string
}

// CreateResult bundles the new version with the snapshots the caller needs
// to update its own view without a second round trip (spec §4.2: "Returns
// the new transaction version plus the affected account and category
// snapshots").
type CreateResult struct {
	Transaction  *Transaction
	Account      *registry.Account
	MonthlyState *monthlystate.State
}

// Create posts a new transaction (spec §4.2, steps 1-6).
func (s *Service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	return s.create(ctx, input, false)
}

// create runs createTx in its own unit of work; its only caller is the
// public Create, which passes allowSystemCategory=false. Transfer calls
// createTx directly with allowSystemCategory=true for its account_transfer
// legs. No method of Service posts against opening_balance or
// balance_adjustment.
func (s *Service) create(ctx context.Context, input CreateInput, allowSystemCategory bool) (*CreateResult, error) {
	if input.AmountMinor.IsZero() {
		return nil, ledgererr.Validation(ledgererr.ErrZeroAmount).WithField("amount_minor")
	}
	if input.Status == "" {
		input.Status = StatusPending
	}
	if input.Source == "" {
		input.Source = "manual"
	}

	var result *CreateResult
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		r, err := s.createTx(ctx, uow.Tx(), input, allowSystemCategory)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(websocket.TransactionCreated(result.Transaction))
	return result, nil
}

// createTx is create's logic against an already-open unit of work, shared
// with Transfer so both legs of a two-leg transfer post inside a single
// transaction rather than nesting a second unit of work (spec §4.3).
func (s *Service) createTx(ctx context.Context, tx *sql.Tx, input CreateInput, allowSystemCategory bool) (*CreateResult, error) {
	if input.AmountMinor.IsZero() {
		return nil, ledgererr.Validation(ledgererr.ErrZeroAmount).WithField("amount_minor")
	}
	if input.Status == "" {
		input.Status = StatusPending
	}
	if input.Source == "" {
		input.Source = "manual"
	}

	isActive, _, _, _, err := registry.AccountActiveAndType(ctx, tx, input.AccountID)
	if err != nil {
		return nil, err
	}
	if !isActive {
		return nil, ledgererr.Validation(ledgererr.ErrInactiveAccount).WithField("account_id")
	}

	cat, err := registry.GetCategoryTx(ctx, tx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if cat.IsSystem && !allowSystemCategory {
		return nil, ledgererr.Validation(ledgererr.ErrCategoryDisallowsTxns).WithField("category_id")
	}
	if !cat.IsSystem && !cat.AllowTransactions {
		return nil, ledgererr.Validation(ledgererr.ErrCategoryDisallowsTxns).WithField("category_id")
	}

	stamp := s.clock.Now()
	versionID := uuid.NewString()
	conceptID := uuid.NewString()

	txn := &Transaction{
		TransactionVersionID: versionID,
		ConceptID:            conceptID,
		AccountID:            input.AccountID,
		CategoryID:           input.CategoryID,
		TransactionDate:      money.DayOf(input.TransactionDate),
		AmountMinor:          input.AmountMinor,
		Memo:                 input.Memo,
		Status:               input.Status,
		Source:               input.Source,
		RecordedAt:           stamp.RecordedAt,
		RecordedCounter:      stamp.Counter,
		ValidFrom:            stamp.RecordedAt,
		IsActive:             true,
	}

	if err := insertVersionTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := registry.ApplyBalanceDeltaTx(ctx, tx, input.AccountID, input.AmountMinor); err != nil {
		return nil, err
	}

	monthStart := money.MonthStart(txn.TransactionDate)
	affectsAvailable := !cat.IsSystem && cat.IsEnvelope
	if err := monthlystate.ApplyDelta(ctx, tx, input.CategoryID, monthStart, money.Zero, money.Zero, input.AmountMinor, affectsAvailable); err != nil {
		return nil, err
	}

	account, err := registry.AccountActiveAndTypeFull(ctx, tx, input.AccountID)
	if err != nil {
		return nil, err
	}
	state, err := monthlystate.Get(ctx, tx, input.CategoryID, monthStart)
	if err != nil {
		return nil, err
	}

	return &CreateResult{Transaction: txn, Account: account, MonthlyState: state}, nil
}

func insertVersionTx(ctx context.Context, tx *sql.Tx, t *Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			transaction_version_id, concept_id, account_id, category_id, transaction_date,
			amount_minor, memo, status, source, recorded_at, recorded_counter, valid_from, valid_to, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, TRUE)`,
		t.TransactionVersionID, t.ConceptID, t.AccountID, t.CategoryID, t.TransactionDate,
		int64(t.AmountMinor), t.Memo, string(t.Status), t.Source, t.RecordedAt, t.RecordedCounter, t.ValidFrom)
	if err != nil {
		return ledgererr.Storage(err)
	}
	return nil
}

// activeByConceptTx reads the current active version for a concept, for
// update within a unit of work.
func activeByConceptTx(ctx context.Context, tx *sql.Tx, conceptID string) (*Transaction, error) {
	row := tx.QueryRowContext(ctx, transactionSelectSQL+` WHERE concept_id = ? AND is_active = TRUE`, conceptID)
	return scanTransaction(row)
}

// retireTx closes out the active version of a concept (SCD-2 "close"),
// recording validTo as the retirement's ordering timestamp.
func retireTx(ctx context.Context, tx *sql.Tx, versionID string, validTo time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE transactions SET is_active = FALSE, valid_to = ? WHERE transaction_version_id = ?`, validTo, versionID)
	if err != nil {
		return ledgererr.Storage(err)
	}
	return nil
}

// reverseEffectsTx undoes the balance/monthly-state effects a previously
// active version had applied, the first half of Edit's "apply step-by-step
// reversal ... then apply the new row's effects" (spec §4.2).
func reverseEffectsTx(ctx context.Context, tx *sql.Tx, prior *Transaction) error {
	if err := registry.ApplyBalanceDeltaTx(ctx, tx, prior.AccountID, prior.AmountMinor.Neg()); err != nil {
		return err
	}
	cat, err := registry.GetCategoryTx(ctx, tx, prior.CategoryID)
	if err != nil {
		return err
	}
	affectsAvailable := !cat.IsSystem && cat.IsEnvelope
	monthStart := money.MonthStart(prior.TransactionDate)
	return monthlystate.ApplyDelta(ctx, tx, prior.CategoryID, monthStart, money.Zero, money.Zero, prior.AmountMinor.Neg(), affectsAvailable)
}

// applyEffectsTx applies a version's balance/monthly-state effects.
func applyEffectsTx(ctx context.Context, tx *sql.Tx, next *Transaction) error {
	if err := registry.ApplyBalanceDeltaTx(ctx, tx, next.AccountID, next.AmountMinor); err != nil {
		return err
	}
	cat, err := registry.GetCategoryTx(ctx, tx, next.CategoryID)
	if err != nil {
		return err
	}
	affectsAvailable := !cat.IsSystem && cat.IsEnvelope
	monthStart := money.MonthStart(next.TransactionDate)
	return monthlystate.ApplyDelta(ctx, tx, next.CategoryID, monthStart, money.Zero, money.Zero, next.AmountMinor, affectsAvailable)
}
