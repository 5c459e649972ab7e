package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/clock"
	"github.com/dafibh/fortuna/fortuna-backend/internal/ledger"
	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storagetest"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *ledger.Service, *registry.Account, *registry.Category) {
	gateway := storagetest.New(t)
	fixedNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := clock.NewWithFunc(func() time.Time { return fixedNow })

	reg := registry.New(gateway)
	ledgerSvc := ledger.New(gateway, src)
	reconSvc := New(gateway)

	acct, err := reg.CreateAccount(context.Background(), registry.CreateAccountInput{
		Name:         "Checking",
		AccountClass: registry.AccountClassCash,
		AccountRole:  registry.AccountRoleOnBudget,
	})
	require.NoError(t, err)

	cat, err := reg.CreateCategory(context.Background(), registry.CreateCategoryInput{
		Name:              "Groceries",
		AllowTransactions: true,
		IsEnvelope:        true,
	})
	require.NoError(t, err)

	return reconSvc, ledgerSvc, acct, cat
}

func TestCommit_SucceedsWhenDifferenceIsZero(t *testing.T) {
	reconSvc, ledgerSvc, acct, cat := setup(t)

	created, err := ledgerSvc.Create(context.Background(), ledger.CreateInput{
		AccountID:       acct.AccountID,
		CategoryID:      cat.CategoryID,
		TransactionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(-2000),
		Status:          ledger.StatusCleared,
	})
	require.NoError(t, err)
	require.Equal(t, ledger.StatusCleared, created.Transaction.Status)

	cp, err := reconSvc.Commit(context.Background(), CommitInput{
		AccountID:             acct.AccountID,
		StatementDate:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		StatementBalanceMinor: money.Minor(-2000),
	})
	require.NoError(t, err)
	require.Nil(t, cp.PreviousReconciliationID)
}

func TestCommit_RejectsNonZeroDifference(t *testing.T) {
	reconSvc, ledgerSvc, acct, cat := setup(t)

	_, err := ledgerSvc.Create(context.Background(), ledger.CreateInput{
		AccountID:       acct.AccountID,
		CategoryID:      cat.CategoryID,
		TransactionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(-2000),
		Status:          ledger.StatusCleared,
	})
	require.NoError(t, err)

	_, err = reconSvc.Commit(context.Background(), CommitInput{
		AccountID:             acct.AccountID,
		StatementDate:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		StatementBalanceMinor: money.Minor(-1000),
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ledgererr.ErrDifferenceNotZero)
}

func TestCommit_LinksToPreviousCheckpoint(t *testing.T) {
	reconSvc, ledgerSvc, acct, cat := setup(t)

	_, err := ledgerSvc.Create(context.Background(), ledger.CreateInput{
		AccountID:       acct.AccountID,
		CategoryID:      cat.CategoryID,
		TransactionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(-2000),
		Status:          ledger.StatusCleared,
	})
	require.NoError(t, err)

	first, err := reconSvc.Commit(context.Background(), CommitInput{
		AccountID:             acct.AccountID,
		StatementDate:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		StatementBalanceMinor: money.Minor(-2000),
	})
	require.NoError(t, err)

	_, err = ledgerSvc.Create(context.Background(), ledger.CreateInput{
		AccountID:       acct.AccountID,
		CategoryID:      cat.CategoryID,
		TransactionDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(-500),
		Status:          ledger.StatusCleared,
	})
	require.NoError(t, err)

	second, err := reconSvc.Commit(context.Background(), CommitInput{
		AccountID:             acct.AccountID,
		StatementDate:         time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StatementBalanceMinor: money.Minor(-2500),
	})
	require.NoError(t, err)
	require.NotNil(t, second.PreviousReconciliationID)
	require.Equal(t, first.ReconciliationID, *second.PreviousReconciliationID)

	history, err := reconSvc.History(context.Background(), acct.AccountID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestWorksheet_ComputesPendingAndDifference(t *testing.T) {
	reconSvc, ledgerSvc, acct, cat := setup(t)

	_, err := ledgerSvc.Create(context.Background(), ledger.CreateInput{
		AccountID:       acct.AccountID,
		CategoryID:      cat.CategoryID,
		TransactionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(-2000),
		Status:          ledger.StatusPending,
	})
	require.NoError(t, err)

	w, err := reconSvc.Worksheet(context.Background(), acct.AccountID, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), money.Minor(-2000))
	require.NoError(t, err)
	require.Len(t, w.PendingVersionIDs, 1)
	require.Equal(t, money.Zero, w.ClearedSumMinor)
	require.Equal(t, money.Minor(-2000), w.DifferenceMinor)
}
