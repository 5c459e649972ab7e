package allocation

import (
	"context"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/dafibh/fortuna/fortuna-backend/internal/websocket"
	"github.com/google/uuid"
)

// EditInput is the EditAllocation wire contract (spec §4.4, §6). ConceptID
// is carried forward from the prior version, same as ledger.EditInput.
type EditInput struct {
	AllocationDate time.Time
	FromCategoryID string
	ToCategoryID   string
	AmountMinor    money.Minor
	Memo           *string
}

// Edit atomically retires the active allocation version and writes a new
// one, reversing the prior version's monthly-state effects before applying
// the new version's (spec §4.4, mirroring ledger.Edit's algorithm).
func (s *Service) Edit(ctx context.Context, conceptID string, input EditInput) (*Allocation, error) {
	if input.AmountMinor.Sign() <= 0 {
		return nil, ledgererr.Validation(ledgererr.ErrAmountMustBePositive).WithField("amount_minor")
	}
	if input.FromCategoryID == input.ToCategoryID {
		return nil, ledgererr.Validation(ledgererr.ErrSameCategoryAllocation).WithField("to_category_id")
	}

	var result *Allocation
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()

		prior, err := activeByConceptTx(ctx, tx, conceptID)
		if err != nil {
			return err
		}

		from, err := registry.GetCategoryTx(ctx, tx, input.FromCategoryID)
		if err != nil {
			return err
		}
		if !from.AllowAllocations {
			return ledgererr.Validation(ledgererr.ErrCategoryDisallowsAllocs).WithField("from_category_id")
		}
		to, err := registry.GetCategoryTx(ctx, tx, input.ToCategoryID)
		if err != nil {
			return err
		}
		if !to.AllowAllocations {
			return ledgererr.Validation(ledgererr.ErrCategoryDisallowsAllocs).WithField("to_category_id")
		}

		if err := reverseAllocationEffectsTx(ctx, tx, prior); err != nil {
			return err
		}

		stamp := s.clock.Now()
		if err := retireTx(ctx, tx, prior.AllocationVersionID, stamp.RecordedAt); err != nil {
			return err
		}

		next := &Allocation{
			AllocationVersionID: uuid.NewString(),
			ConceptID:           conceptID,
			AllocationDate:      money.DayOf(input.AllocationDate),
			MonthStart:          money.MonthStart(input.AllocationDate),
			FromCategoryID:      input.FromCategoryID,
			ToCategoryID:        input.ToCategoryID,
			AmountMinor:         input.AmountMinor,
			Memo:                input.Memo,
			RecordedAt:          stamp.RecordedAt,
			RecordedCounter:     stamp.Counter,
			ValidFrom:           stamp.RecordedAt,
			IsActive:            true,
		}

		if err := insertVersionTx(ctx, tx, next); err != nil {
			return err
		}
		if err := applyAllocationEffectsTx(ctx, tx, next); err != nil {
			return err
		}

		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(websocket.AllocationUpdated(result))
	return result, nil
}

// Delete retires the active allocation version with no replacement,
// reversing its monthly-state effects (spec §4.4).
func (s *Service) Delete(ctx context.Context, conceptID string) error {
	var deleted *Allocation
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()
		prior, err := activeByConceptTx(ctx, tx, conceptID)
		if err != nil {
			return err
		}
		if err := reverseAllocationEffectsTx(ctx, tx, prior); err != nil {
			return err
		}
		stamp := s.clock.Now()
		if err := retireTx(ctx, tx, prior.AllocationVersionID, stamp.RecordedAt); err != nil {
			return err
		}
		deleted = prior
		return nil
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(websocket.AllocationDeleted(deleted))
	return nil
}

// ListForMonth returns every active allocation whose month_start matches.
func (s *Service) ListForMonth(ctx context.Context, monthStart time.Time) ([]*Allocation, error) {
	rows, err := s.gateway.DB().QueryContext(ctx, allocationSelectSQL+` WHERE month_start = ? AND is_active = TRUE ORDER BY recorded_at DESC, recorded_counter DESC`, money.MonthStart(monthStart))
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var out []*Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, ledgererr.Storage(rows.Err())
}

// ListByCategory returns every active allocation touching categoryID as
// either endpoint, most recent first.
func (s *Service) ListByCategory(ctx context.Context, categoryID string, limit int) ([]*Allocation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.gateway.DB().QueryContext(ctx, allocationSelectSQL+`
		WHERE (from_category_id = ? OR to_category_id = ?) AND is_active = TRUE
		ORDER BY allocation_date DESC, recorded_counter DESC LIMIT ?`, categoryID, categoryID, limit)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var out []*Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, ledgererr.Storage(rows.Err())
}
