package migrate

import (
	"context"
	"testing"

	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReturnsFilesInStrictSequence(t *testing.T) {
	files, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for i, f := range files {
		require.Equal(t, i+1, f.Seq, "file %q out of sequence", f.Name)
	}
}

func TestRun_AppliesEveryMigrationOnFreshStore(t *testing.T) {
	gateway, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { gateway.Close() })

	files, err := Load()
	require.NoError(t, err)

	applied, err := Run(context.Background(), gateway)
	require.NoError(t, err)
	require.Equal(t, len(files), applied)

	var count int
	err = gateway.DB().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM schema_migrations`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, len(files), count)
}

func TestRun_IsIdempotentOnSecondCall(t *testing.T) {
	gateway, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { gateway.Close() })

	_, err = Run(context.Background(), gateway)
	require.NoError(t, err)

	appliedAgain, err := Run(context.Background(), gateway)
	require.NoError(t, err)
	require.Zero(t, appliedAgain)
}

func TestRun_SeedsSystemCategories(t *testing.T) {
	gateway, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { gateway.Close() })

	_, err = Run(context.Background(), gateway)
	require.NoError(t, err)

	var count int
	err = gateway.DB().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM categories WHERE is_system = TRUE`).Scan(&count)
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 4)
}
