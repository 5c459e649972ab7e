// Package storage owns the embedded analytical data store (DuckDB) and
// presents an explicit unit-of-work abstraction (spec §4.1) in place of the
// teacher's ambient *pgxpool.Pool handed to every repository.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog/log"
)

// Gateway owns the single embedded store file and serializes writers to it.
// Concurrent units of work are serialized (spec §4.1, §5): acquisition of a
// writer is single-threaded via writerMu, modeling a coarse
// connection-pool-of-one.
type Gateway struct {
	db       *sql.DB
	path     string
	writerMu sync.Mutex
}

// Open opens (creating if absent) the DuckDB file at path.
func Open(path string) (*Gateway, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	// The engine is designed around a single writer process (spec §5); one
	// connection is sufficient and avoids the driver handing out a second
	// concurrent handle to the same file.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping %q: %w", path, err)
	}
	return &Gateway{db: db, path: path}, nil
}

// Close releases the underlying connection. Guaranteed to be called on all
// process exit paths by the caller (cmd/server, cmd/migrate).
func (g *Gateway) Close() error {
	return g.db.Close()
}

// DB exposes the raw *sql.DB for read-only queries that do not need a unit
// of work (read models, spec §4.8 — "Read models are pure queries").
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// Querier is satisfied by both *sql.DB and *sql.Tx, letting read-model code
// run the same query whether or not it is inside a unit of work.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// UnitOfWork wraps one explicit BEGIN/COMMIT/ROLLBACK (spec §4.1, §5). Every
// mutating engine operation runs inside exactly one of these.
type UnitOfWork struct {
	tx   *sql.Tx
	done bool
	mu   *sync.Mutex // the Gateway's writerMu, released on Commit/Rollback
}

// Begin acquires the single logical writer and opens a transaction.
func (g *Gateway) Begin(ctx context.Context) (*UnitOfWork, error) {
	g.writerMu.Lock()
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		g.writerMu.Unlock()
		return nil, fmt.Errorf("storage: begin: %w", err)
	}
	return &UnitOfWork{tx: tx, mu: &g.writerMu}, nil
}

// Tx exposes the underlying *sql.Tx to domain services.
func (u *UnitOfWork) Tx() *sql.Tx {
	return u.tx
}

// Commit commits the unit of work and releases the writer slot. Calling
// Commit twice, or Commit after Rollback, is a no-op returning nil so a
// deferred Rollback() after a successful Commit() is always safe.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.mu.Unlock()
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// Rollback rolls the unit of work back and releases the writer slot. Safe
// to call unconditionally via defer; a no-op once Commit has succeeded.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.mu.Unlock()
	if err := u.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("storage: rollback: %w", err)
	}
	return nil
}

// WithUnitOfWork begins a unit of work, runs fn, and commits on success or
// rolls back on any error (including a panic, which it re-raises after
// rollback). This is the single entry point domain services use so that
// "any error during the unit of work triggers rollback" (spec §4.1) can
// never be forgotten at a call site.
func (g *Gateway) WithUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) (err error) {
	uow, err := g.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := uow.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("storage: rollback after panic failed")
			}
			panic(p)
		}
	}()

	if err = fn(ctx, uow); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("storage: rollback failed")
		}
		return err
	}
	return uow.Commit()
}
