package readmodel

import (
	"context"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/allocation"
	"github.com/dafibh/fortuna/fortuna-backend/internal/clock"
	"github.com/dafibh/fortuna/fortuna-backend/internal/ledger"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/dafibh/fortuna/fortuna-backend/internal/rta"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storagetest"
	"github.com/stretchr/testify/require"
)

func TestListBudgetCategories_ExcludesSystemAndNonEnvelopeCategories(t *testing.T) {
	svc, reg, _ := newHarness(t)
	ctx := context.Background()

	_, err := reg.CreateCategory(ctx, registry.CreateCategoryInput{
		Name:             "Groceries",
		AllowAllocations: true,
		IsEnvelope:       true,
	})
	require.NoError(t, err)

	_, err = reg.CreateCategory(ctx, registry.CreateCategoryInput{
		Name:              "Income",
		AllowTransactions: true,
		IsEnvelope:        false,
	})
	require.NoError(t, err)

	rows, err := svc.ListBudgetCategories(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Groceries", rows[0].Name)
}

func TestListBudgetCategories_RollsForwardAvailableFromPriorMonth(t *testing.T) {
	gateway := storagetest.New(t)
	fixedNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := clock.NewWithFunc(func() time.Time { return fixedNow })
	reg := registry.New(gateway)
	allocSvc := allocation.New(gateway, src)
	svc := New(gateway, rta.New(gateway))
	ctx := context.Background()

	groceries, err := reg.CreateCategory(ctx, registry.CreateCategoryInput{
		Name:             "Groceries",
		AllowAllocations: true,
		IsEnvelope:       true,
	})
	require.NoError(t, err)

	_, err = allocSvc.Allocate(ctx, allocation.AllocateInput{
		AllocationDate: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		FromCategoryID: registry.CategoryAvailableToBudget,
		ToCategoryID:   groceries.CategoryID,
		AmountMinor:    money.Minor(5000),
	})
	require.NoError(t, err)

	rows, err := svc.ListBudgetCategories(ctx, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 5000, rows[0].AvailableMinor)
	require.EqualValues(t, 0, rows[0].AllocatedMinor)
}

func TestSummary_AggregatesInflowAndOutflowExcludingSystemCategories(t *testing.T) {
	svc, reg, ledgerSvc := newHarness(t)
	ctx := context.Background()

	acct, err := reg.CreateAccount(ctx, registry.CreateAccountInput{
		Name:         "Checking",
		AccountClass: registry.AccountClassCash,
	})
	require.NoError(t, err)

	income, err := reg.CreateCategory(ctx, registry.CreateCategoryInput{
		Name:              "Income",
		AllowTransactions: true,
	})
	require.NoError(t, err)

	_, err = ledgerSvc.Create(ctx, ledger.CreateInput{
		AccountID:       acct.AccountID,
		CategoryID:      income.CategoryID,
		TransactionDate: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(10000),
	})
	require.NoError(t, err)

	_, err = ledgerSvc.Create(ctx, ledger.CreateInput{
		AccountID:       acct.AccountID,
		CategoryID:      income.CategoryID,
		TransactionDate: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(-4000),
	})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.EqualValues(t, 10000, summary.InflowMinor)
	require.EqualValues(t, -4000, summary.OutflowMinor)
}
