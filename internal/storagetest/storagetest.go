// Package storagetest builds a migrated, in-memory Gateway for service
// tests. The teacher mocks its repository interfaces (internal/testutil);
// this engine has no repository layer to mock, so tests run against a real
// embedded store instead, closed automatically at test end.
package storagetest

import (
	"context"
	"testing"

	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage/migrate"
)

// New opens an in-memory DuckDB store, applies every migration, and
// registers cleanup to close it.
func New(t *testing.T) *storage.Gateway {
	t.Helper()

	gateway, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storagetest: open: %v", err)
	}
	t.Cleanup(func() { gateway.Close() })

	if _, err := migrate.Run(context.Background(), gateway); err != nil {
		t.Fatalf("storagetest: migrate: %v", err)
	}
	return gateway
}
