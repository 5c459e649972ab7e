// Package allocation is the envelope-move core: moving money between
// categories, including to/from the available_to_budget pseudo-category
// that represents Ready-to-Assign (spec §4.4). It mirrors the ledger
// package's SCD-2 versioning pattern exactly, sharing monthlystate's
// ApplyDelta so incremental maintenance never drifts from cache.Rebuild.
package allocation

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

// Service is the allocation core (spec §4.4).
type Service struct {
	gateway   *storage.Gateway
	clock     *clock.Source
	publisher websocket.EventPublisher
}

// New constructs an allocation Service.
func New(gateway *storage.Gateway, src *clock.Source) *Service {
	if src == nil {
		src = clock.New()
	}
	return &Service{gateway: gateway, clock: src, publisher: &websocket.NoOpPublisher{}}
}

// SetPublisher attaches the change-feed publisher every mutation broadcasts
// through (spec §2 ambient stack).
func (s *Service) SetPublisher(p websocket.EventPublisher) {
	s.publisher = p
}

// Allocation is one SCD-2 version of an allocation concept (spec §3).
type Allocation struct {
	AllocationVersionID string
	ConceptID           string
	AllocationDate      time.Time
	MonthStart          time.Time
	FromCategoryID      string
	ToCategoryID        string
	AmountMinor         money.Minor
	Memo                *string
	RecordedAt          time.Time
	RecordedCounter     uint64
	ValidFrom           time.Time
	ValidTo             *time.Time
	IsActive            bool
}

// AllocateInput is the Allocate wire contract (spec §4.4, §6). FromCategoryID
// is never empty; callers representing a Ready-to-Assign move pass
// registry.CategoryAvailableToBudget.
type AllocateInput struct {
	AllocationDate time.Time
	FromCategoryID string
	ToCategoryID   string
	AmountMinor    money.Minor // must be positive
	Memo           *string
}

// AllocateResult bundles the new version with the two affected monthly
// states, the allocation analogue of ledger.CreateResult.
type AllocateResult struct {
	Allocation *Allocation
	From       *monthlystate.State
	To         *monthlystate.State
}

// Allocate moves amount_minor from one category's envelope to another's
// within the same month (spec §4.4 algorithm, steps 1-5).
func (s *Service) Allocate(ctx context.Context, input AllocateInput) (*AllocateResult, error) {
	var result *AllocateResult
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		r, err := s.allocateTx(ctx, uow.Tx(), input)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(websocket.AllocationCreated(result.Allocation))
	return result, nil
}

func (s *Service) allocateTx(ctx context.Context, tx *sql.Tx, input AllocateInput) (*AllocateResult, error) {
	if input.AmountMinor.Sign() <= 0 {
		return nil, ledgererr.Validation(ledgererr.ErrAmountMustBePositive).WithField("amount_minor")
	}
	if input.FromCategoryID == input.ToCategoryID {
		return nil, ledgererr.Validation(ledgererr.ErrSameCategoryAllocation).WithField("to_category_id")
	}
	if input.FromCategoryID == "" {
		return nil, ledgererr.Validationf("from_category_id is required").WithField("from_category_id")
	}

	from, err := registry.GetCategoryTx(ctx, tx, input.FromCategoryID)
	if err != nil {
		return nil, err
	}
	if !from.AllowAllocations {
		return nil, ledgererr.Validation(ledgererr.ErrCategoryDisallowsAllocs).WithField("from_category_id")
	}
	to, err := registry.GetCategoryTx(ctx, tx, input.ToCategoryID)
	if err != nil {
		return nil, err
	}
	if !to.AllowAllocations {
		return nil, ledgererr.Validation(ledgererr.ErrCategoryDisallowsAllocs).WithField("to_category_id")
	}

	stamp := s.clock.Now()
	monthStart := money.MonthStart(input.AllocationDate)

	alloc := &Allocation{
		AllocationVersionID: uuid.NewString(),
		ConceptID:           uuid.NewString(),
		AllocationDate:      money.DayOf(input.AllocationDate),
		MonthStart:          monthStart,
		FromCategoryID:      input.FromCategoryID,
		ToCategoryID:        input.ToCategoryID,
		AmountMinor:         input.AmountMinor,
		Memo:                input.Memo,
		RecordedAt:          stamp.RecordedAt,
		RecordedCounter:     stamp.Counter,
		ValidFrom:           stamp.RecordedAt,
		IsActive:            true,
	}

	if err := insertVersionTx(ctx, tx, alloc); err != nil {
		return nil, err
	}
	if err := applyAllocationEffectsTx(ctx, tx, alloc); err != nil {
		return nil, err
	}

	fromState, err := monthlystate.Get(ctx, tx, input.FromCategoryID, monthStart)
	if err != nil {
		return nil, err
	}
	toState, err := monthlystate.Get(ctx, tx, input.ToCategoryID, monthStart)
	if err != nil {
		return nil, err
	}

	return &AllocateResult{Allocation: alloc, From: fromState, To: toState}, nil
}

// applyAllocationEffectsTx mutates both endpoints' monthly state for a
// version (spec §4.4 step 4: `to` gains allocated+available, `from` loses
// both; available_to_budget is symmetric — its own row tracks net
// Ready-to-Assign movement, spec §4.4 step 5).
func applyAllocationEffectsTx(ctx context.Context, tx *sql.Tx, a *Allocation) error {
	if err := monthlystate.ApplyDelta(ctx, tx, a.ToCategoryID, a.MonthStart, a.AmountMinor, money.Zero, money.Zero, true); err != nil {
		return err
	}
	return monthlystate.ApplyDelta(ctx, tx, a.FromCategoryID, a.MonthStart, a.AmountMinor.Neg(), money.Zero, money.Zero, true)
}

// reverseAllocationEffectsTx undoes a version's monthly-state effects, the
// allocation analogue of ledger.reverseEffectsTx.
func reverseAllocationEffectsTx(ctx context.Context, tx *sql.Tx, a *Allocation) error {
	if err := monthlystate.ApplyDelta(ctx, tx, a.ToCategoryID, a.MonthStart, a.AmountMinor.Neg(), money.Zero, money.Zero, true); err != nil {
		return err
	}
	return monthlystate.ApplyDelta(ctx, tx, a.FromCategoryID, a.MonthStart, a.AmountMinor, money.Zero, money.Zero, true)
}

func insertVersionTx(ctx context.Context, tx *sql.Tx, a *Allocation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO budget_allocations (
			allocation_version_id, concept_id, allocation_date, month_start, from_category_id, to_category_id,
			amount_minor, memo, recorded_at, recorded_counter, valid_from, valid_to, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, TRUE)`,
		a.AllocationVersionID, a.ConceptID, a.AllocationDate, a.MonthStart, a.FromCategoryID, a.ToCategoryID,
		int64(a.AmountMinor), a.Memo, a.RecordedAt, a.RecordedCounter, a.ValidFrom)
	if err != nil {
		return ledgererr.Storage(err)
	}
	return nil
}

func retireTx(ctx context.Context, tx *sql.Tx, versionID string, validTo time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE budget_allocations SET is_active = FALSE, valid_to = ? WHERE allocation_version_id = ?`, validTo, versionID)
	if err != nil {
		return ledgererr.Storage(err)
	}
	return nil
}

func activeByConceptTx(ctx context.Context, tx *sql.Tx, conceptID string) (*Allocation, error) {
	row := tx.QueryRowContext(ctx, allocationSelectSQL+` WHERE concept_id = ? AND is_active = TRUE`, conceptID)
	return scanAllocation(row)
}

const allocationSelectSQL = `
	SELECT allocation_version_id, concept_id, allocation_date, month_start, from_category_id, to_category_id,
		amount_minor, memo, recorded_at, recorded_counter, valid_from, valid_to, is_active
	FROM budget_allocations`

func scanAllocation(row interface{ Scan(dest ...interface{}) error }) (*Allocation, error) {
	a := &Allocation{}
	var amount int64
	var memo sql.NullString
	var validTo sql.NullTime

	err := row.Scan(&a.AllocationVersionID, &a.ConceptID, &a.AllocationDate, &a.MonthStart, &a.FromCategoryID, &a.ToCategoryID,
		&amount, &memo, &a.RecordedAt, &a.RecordedCounter, &a.ValidFrom, &validTo, &a.IsActive)
	if err == sql.ErrNoRows {
		return nil, ledgererr.Validation(ledgererr.ErrNotFound).WithField("concept_id")
	}
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	a.AmountMinor = money.Minor(amount)
	if memo.Valid {
		a.Memo = &memo.String
	}
	if validTo.Valid {
		a.ValidTo = &validTo.Time
	}
	return a, nil
}
