package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/dafibh/fortuna/fortuna-backend/internal/websocket"
	"github.com/google/uuid"
)

// TransferInput is the CreateTransfer wire contract (spec §6, §4.3).
type TransferInput struct {
	SourceAccountID      string
	DestinationAccountID string
	AmountMinor          money.Minor // must be positive
	TransactionDate      time.Time
	Memo                 *string
}

// TransferResult holds the two correlated transaction versions a transfer
// produces (spec §4.3: "Σ amount_minor across both legs = 0").
type TransferResult struct {
	SourceTransaction      *Transaction
	DestinationTransaction *Transaction
}

// Transfer represents account-to-account movement without affecting net
// worth (spec §4.3). Both legs post inside one unit of work against the
// fixed account_transfer system category.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if input.SourceAccountID == input.DestinationAccountID {
		return nil, ledgererr.Validation(ledgererr.ErrSameAccountTransfer).WithField("destination_account_id")
	}
	if input.AmountMinor.Sign() <= 0 {
		return nil, ledgererr.Validation(ledgererr.ErrAmountMustBePositive).WithField("amount_minor")
	}

	correlationID := uuid.NewString()
	memo := fmt.Sprintf("transfer:%s", correlationID)
	if input.Memo != nil && *input.Memo != "" {
		memo = fmt.Sprintf("%s (%s)", *input.Memo, memo)
	}

	var result *TransferResult
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()

		source, err := s.postTransferLegTx(ctx, tx, input.SourceAccountID, input.AmountMinor.Neg(), input.TransactionDate, memo)
		if err != nil {
			return err
		}
		destination, err := s.postTransferLegTx(ctx, tx, input.DestinationAccountID, input.AmountMinor, input.TransactionDate, memo)
		if err != nil {
			return err
		}

		result = &TransferResult{SourceTransaction: source, DestinationTransaction: destination}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(websocket.TransactionCreated(result.SourceTransaction))
	s.publisher.Publish(websocket.TransactionCreated(result.DestinationTransaction))
	return result, nil
}

// postTransferLegTx posts one leg of a transfer against account_transfer,
// the ledger service's own privileged write against a system category
// (spec §4.2 edge-case policy), reusing createTx inside the caller's
// already-open unit of work rather than beginning a second one.
func (s *Service) postTransferLegTx(ctx context.Context, tx *sql.Tx, accountID string, amount money.Minor, date time.Time, memo string) (*Transaction, error) {
	result, err := s.createTx(ctx, tx, CreateInput{
		AccountID:       accountID,
		CategoryID:      registry.CategoryAccountTransfer,
		TransactionDate: date,
		AmountMinor:     amount,
		Memo:            &memo,
		Status:          StatusCleared,
		Source:          "transfer",
	}, true)
	if err != nil {
		return nil, err
	}
	return result.Transaction, nil
}
