// Package migrate enumerates and applies strictly sequentially numbered
// migration files (spec §4.1): NNNN_name.sql with NNNN in {0001, 0002, …},
// no gaps, no duplicates. Each file applies inside its own unit of work and
// is recorded in schema_migrations.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var embedded embed.FS

var filenamePattern = regexp.MustCompile(`^(\d{4})_[a-zA-Z0-9_]+\.sql$`)

// File is one migration file with its parsed sequence number.
type File struct {
	Seq      int
	Name     string
	Contents string
}

// Load reads and sequence-validates the embedded migration files.
func Load() ([]File, error) {
	entries, err := fs.ReadDir(embedded, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: read migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	files := make([]File, 0, len(names))
	seen := map[int]string{}
	for _, name := range names {
		m := filenamePattern.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("migrate: %q does not match NNNN_name.sql", name)
		}
		seq, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("migrate: %q has an invalid sequence number: %w", name, err)
		}
		if prior, ok := seen[seq]; ok {
			return nil, fmt.Errorf("%w: %q duplicates sequence %04d already used by %q", ledgererr.ErrMigrationSequenceInvalid, name, seq, prior)
		}
		seen[seq] = name

		contents, err := fs.ReadFile(embedded, "migrations/"+name)
		if err != nil {
			return nil, fmt.Errorf("migrate: read %q: %w", name, err)
		}
		files = append(files, File{Seq: seq, Name: name, Contents: string(contents)})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Seq < files[j].Seq })

	for i, f := range files {
		want := i + 1
		if f.Seq != want {
			return nil, fmt.Errorf("%w: expected sequence %04d, found %04d (%q)", ledgererr.ErrMigrationSequenceInvalid, want, f.Seq, f.Name)
		}
	}

	return files, nil
}

const createSchemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL DEFAULT current_timestamp
)`

// Applied returns the set of already-applied migration filenames.
func Applied(ctx context.Context, g *storage.Gateway) (map[string]bool, error) {
	if _, err := g.DB().ExecContext(ctx, createSchemaMigrationsTable); err != nil {
		return nil, fmt.Errorf("migrate: ensure schema_migrations: %w", err)
	}
	rows, err := g.DB().QueryContext(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("migrate: list applied: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Run applies every unapplied migration file, each inside its own unit of
// work, in strict sequence order.
func Run(ctx context.Context, g *storage.Gateway) (appliedCount int, err error) {
	files, err := Load()
	if err != nil {
		return 0, err
	}

	applied, err := Applied(ctx, g)
	if err != nil {
		return 0, err
	}

	for _, f := range files {
		if applied[f.Name] {
			continue
		}
		if err := g.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			if _, err := uow.Tx().ExecContext(ctx, f.Contents); err != nil {
				return fmt.Errorf("migrate: apply %q: %w", f.Name, err)
			}
			if _, err := uow.Tx().ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES (?)`, f.Name); err != nil {
				return fmt.Errorf("migrate: record %q: %w", f.Name, err)
			}
			return nil
		}); err != nil {
			return appliedCount, err
		}
		log.Info().Str("migration", f.Name).Msg("applied migration")
		appliedCount++
	}

	return appliedCount, nil
}
