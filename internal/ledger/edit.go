package ledger

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

// EditInput is the EditTransaction wire contract (spec §6). Editing never
// changes concept_id; the new version inherits it (spec §4.2 edge-case
// policy). Status transitions (pending ↔ cleared) are mutations and go
// through this same path (spec §4.2, resolving the first Open Question —
// see SPEC_FULL.md §6).
type EditInput struct {
	AccountID       string
	CategoryID      string
	TransactionDate time.Time
	AmountMinor     money.Minor
	Memo            *string
	Status          Status
}

// Edit atomically retires the active version and writes a new one (spec
// §4.2 algorithm: edit = step-by-step reversal of the prior row's balance
// effects, then apply of the new row's effects, in one unit of work).
func (s *Service) Edit(ctx context.Context, conceptID string, input EditInput) (*Transaction, error) {
	if input.AmountMinor.IsZero() {
		return nil, ledgererr.Validation(ledgererr.ErrZeroAmount).WithField("amount_minor")
	}

	var result *Transaction
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()

		prior, err := activeByConceptTx(ctx, tx, conceptID)
		if err != nil {
			return err
		}

		isActive, _, _, _, err := registry.AccountActiveAndType(ctx, tx, input.AccountID)
		if err != nil {
			return err
		}
		if !isActive {
			return ledgererr.Validation(ledgererr.ErrInactiveAccount).WithField("account_id")
		}

		cat, err := registry.GetCategoryTx(ctx, tx, input.CategoryID)
		if err != nil {
			return err
		}
		if cat.IsSystem {
			return ledgererr.Validation(ledgererr.ErrCategoryDisallowsTxns).WithField("category_id")
		}
		if !cat.AllowTransactions {
			return ledgererr.Validation(ledgererr.ErrCategoryDisallowsTxns).WithField("category_id")
		}

		if err := reverseEffectsTx(ctx, tx, prior); err != nil {
			return err
		}

		stamp := s.clock.Now()
		if err := retireTx(ctx, tx, prior.TransactionVersionID, stamp.RecordedAt); err != nil {
			return err
		}

		next := &Transaction{
			TransactionVersionID: uuid.NewString(),
			ConceptID:            conceptID,
			AccountID:            input.AccountID,
			CategoryID:           input.CategoryID,
			TransactionDate:      money.DayOf(input.TransactionDate),
			AmountMinor:          input.AmountMinor,
			Memo:                 input.Memo,
			Status:               input.Status,
			Source:               prior.Source,
			RecordedAt:           stamp.RecordedAt,
			RecordedCounter:      stamp.Counter,
			ValidFrom:            stamp.RecordedAt,
			IsActive:             true,
		}
		if next.Status == "" {
			next.Status = prior.Status
		}

		if err := insertVersionTx(ctx, tx, next); err != nil {
			return err
		}
		if err := applyEffectsTx(ctx, tx, next); err != nil {
			return err
		}

		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(websocket.TransactionUpdated(result))
	return result, nil
}

// SetStatus is a convenience edit that only flips pending ↔ cleared,
// reusing Edit's SCD-2 path so status transitions always version (spec
// §9's first Open Question, resolved in SPEC_FULL.md §6).
func (s *Service) SetStatus(ctx context.Context, conceptID string, status Status) (*Transaction, error) {
	var result *Transaction
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()
		prior, err := activeByConceptTx(ctx, tx, conceptID)
		if err != nil {
			return err
		}

		if err := reverseEffectsTx(ctx, tx, prior); err != nil {
			return err
		}
		stamp := s.clock.Now()
		if err := retireTx(ctx, tx, prior.TransactionVersionID, stamp.RecordedAt); err != nil {
			return err
		}

		next := *prior
		next.TransactionVersionID = uuid.NewString()
		next.Status = status
		next.RecordedAt = stamp.RecordedAt
		next.RecordedCounter = stamp.Counter
		next.ValidFrom = stamp.RecordedAt
		next.ValidTo = nil
		next.IsActive = true

		if err := insertVersionTx(ctx, tx, &next); err != nil {
			return err
		}
		if err := applyEffectsTx(ctx, tx, &next); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(websocket.TransactionUpdated(result))
	return result, nil
}

// BulkClearTransactions clears every conceptID in one unit of work: each
// pending concept gets a new cleared version, written the same
// reverse-then-reapply way SetStatus does; a concept that is already
// cleared is returned unchanged with no new version (SPEC_FULL.md §6
// [SUPPLEMENT]).
func (s *Service) BulkClearTransactions(ctx context.Context, conceptIDs []string) ([]*Transaction, error) {
	var results []*Transaction
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()
		for _, conceptID := range conceptIDs {
			prior, err := activeByConceptTx(ctx, tx, conceptID)
			if err != nil {
				return err
			}
			if prior.Status == StatusCleared {
				results = append(results, prior)
				continue
			}

			if err := reverseEffectsTx(ctx, tx, prior); err != nil {
				return err
			}
			stamp := s.clock.Now()
			if err := retireTx(ctx, tx, prior.TransactionVersionID, stamp.RecordedAt); err != nil {
				return err
			}

			next := *prior
			next.TransactionVersionID = uuid.NewString()
			next.Status = StatusCleared
			next.RecordedAt = stamp.RecordedAt
			next.RecordedCounter = stamp.Counter
			next.ValidFrom = stamp.RecordedAt
			next.ValidTo = nil
			next.IsActive = true

			if err := insertVersionTx(ctx, tx, &next); err != nil {
				return err
			}
			if err := applyEffectsTx(ctx, tx, &next); err != nil {
				return err
			}
			results = append(results, &next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		s.publisher.Publish(websocket.TransactionUpdated(r))
	}
	return results, nil
}

// Delete retires the active version with no replacement (spec §4.2).
func (s *Service) Delete(ctx context.Context, conceptID string) error {
	var deleted *Transaction
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()
		prior, err := activeByConceptTx(ctx, tx, conceptID)
		if err != nil {
			return err
		}
		if err := reverseEffectsTx(ctx, tx, prior); err != nil {
			return err
		}
		stamp := s.clock.Now()
		if err := retireTx(ctx, tx, prior.TransactionVersionID, stamp.RecordedAt); err != nil {
			return err
		}
		deleted = prior
		return nil
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(websocket.TransactionDeleted(deleted))
	return nil
}
