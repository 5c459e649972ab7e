package readmodel

import (
	"context"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/clock"
	"github.com/dafibh/fortuna/fortuna-backend/internal/ledger"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/dafibh/fortuna/fortuna-backend/internal/rta"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storagetest"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) (*Service, *registry.Service, *ledger.Service) {
	t.Helper()
	gateway := storagetest.New(t)
	fixedNow := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	src := clock.NewWithFunc(func() time.Time { return fixedNow })

	reg := registry.New(gateway)
	ledgerSvc := ledger.New(gateway, src)
	svc := New(gateway, rta.New(gateway))
	return svc, reg, ledgerSvc
}

func TestAccountHistory_RunningBalanceAccumulatesPerDay(t *testing.T) {
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
		TransactionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(10000),
	})
	require.NoError(t, err)

	_, err = ledgerSvc.Create(ctx, ledger.CreateInput{
		AccountID:       acct.AccountID,
		CategoryID:      income.CategoryID,
		TransactionDate: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(-2000),
	})
	require.NoError(t, err)

	points, err := svc.AccountHistory(ctx, acct.AccountID,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), StatusFilterAll)
	require.NoError(t, err)
	require.Len(t, points, 5)
	require.EqualValues(t, 10000, points[0].BalanceMinor)
	require.EqualValues(t, 10000, points[1].BalanceMinor)
	require.EqualValues(t, 8000, points[2].BalanceMinor)
	require.EqualValues(t, 8000, points[4].BalanceMinor)
}

func TestAccountHistory_RejectsInvertedRange(t *testing.T) {
	svc, reg, _ := newHarness(t)
	ctx := context.Background()

	acct, err := reg.CreateAccount(ctx, registry.CreateAccountInput{
		Name:         "Checking",
		AccountClass: registry.AccountClassCash,
	})
	require.NoError(t, err)

	_, err = svc.AccountHistory(ctx, acct.AccountID,
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), StatusFilterAll)
	require.Error(t, err)
}

func TestAccountHistory_LastPointMatchesCurrentBalanceWhenEndIsToday(t *testing.T) {
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
		TransactionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		AmountMinor:     money.Minor(7500),
	})
	require.NoError(t, err)

	points, err := svc.AccountHistory(ctx, acct.AccountID,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), StatusFilterAll)
	require.NoError(t, err)

	current, err := reg.GetAccount(ctx, acct.AccountID)
	require.NoError(t, err)
	require.Equal(t, current.CurrentBalanceMinor, points[len(points)-1].BalanceMinor)
}
