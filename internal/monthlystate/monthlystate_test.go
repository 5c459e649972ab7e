package monthlystate

import (
	"context"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storagetest"
	"github.com/stretchr/testify/require"
)

func newCategory(t *testing.T, gateway *storage.Gateway) string {
	t.Helper()
	id := "cat-test"
	_, err := gateway.DB().ExecContext(context.Background(), `
		INSERT INTO categories (category_id, name, is_envelope, allow_allocations, allow_transactions, is_system)
		VALUES (?, 'Groceries', TRUE, TRUE, TRUE, FALSE)`, id)
	require.NoError(t, err)
	return id
}

func TestGet_ReturnsNilWhenRowNeverTouched(t *testing.T) {
	gateway := storagetest.New(t)
	catID := newCategory(t, gateway)
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		state, err := Get(ctx, uow.Tx(), catID, month)
		require.NoError(t, err)
		require.Nil(t, state)
		return nil
	})
	require.NoError(t, err)
}

func TestApplyDelta_SeedsRowOnFirstTouch(t *testing.T) {
	gateway := storagetest.New(t)
	catID := newCategory(t, gateway)
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		return ApplyDelta(ctx, uow.Tx(), catID, month, money.Minor(5000), money.Zero, money.Zero, true)
	})
	require.NoError(t, err)

	err = gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		state, err := Get(ctx, uow.Tx(), catID, month)
		require.NoError(t, err)
		require.NotNil(t, state)
		require.Equal(t, money.Minor(5000), state.AllocatedMinor)
		require.Equal(t, money.Minor(5000), state.AvailableMinor)
		return nil
	})
	require.NoError(t, err)
}

func TestApplyDelta_RolloverSeedsFromPriorMonth(t *testing.T) {
	gateway := storagetest.New(t)
	catID := newCategory(t, gateway)
	march := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	err := gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		return ApplyDelta(ctx, uow.Tx(), catID, march, money.Minor(5000), money.Zero, money.Minor(-2000), true)
	})
	require.NoError(t, err)

	err = gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		return ApplyDelta(ctx, uow.Tx(), catID, april, money.Zero, money.Zero, money.Zero, true)
	})
	require.NoError(t, err)

	err = gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		state, err := Get(ctx, uow.Tx(), catID, april)
		require.NoError(t, err)
		require.NotNil(t, state)
		require.Equal(t, money.Minor(3000), state.AvailableMinor)
		return nil
	})
	require.NoError(t, err)
}

func TestApplyDelta_NonAvailableCategoryLeavesAvailableUntouched(t *testing.T) {
	gateway := storagetest.New(t)
	catID := newCategory(t, gateway)
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		return ApplyDelta(ctx, uow.Tx(), catID, month, money.Zero, money.Zero, money.Minor(1000), false)
	})
	require.NoError(t, err)

	err = gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		state, err := Get(ctx, uow.Tx(), catID, month)
		require.NoError(t, err)
		require.Equal(t, money.Minor(1000), state.ActivityMinor)
		require.Equal(t, money.Zero, state.AvailableMinor)
		return nil
	})
	require.NoError(t, err)
}

func TestListForMonth_ReturnsOnlyMatchingMonth(t *testing.T) {
	gateway := storagetest.New(t)
	catID := newCategory(t, gateway)
	march := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	err := gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		if err := ApplyDelta(ctx, uow.Tx(), catID, march, money.Minor(100), money.Zero, money.Zero, true); err != nil {
			return err
		}
		return ApplyDelta(ctx, uow.Tx(), catID, april, money.Minor(200), money.Zero, money.Zero, true)
	})
	require.NoError(t, err)

	err = gateway.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *storage.UnitOfWork) error {
		rows, err := ListForMonth(ctx, uow.Tx(), march)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, money.Minor(100), rows[0].AllocatedMinor)
		return nil
	})
	require.NoError(t, err)
}
