// Package store writes tables to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"covid19datasets/internal/config"
	"covid19datasets/internal/table"
)

// ErrDisabled is returned by Connect when no database URL is configured
var ErrDisabled = errors.New("postgres sink disabled")

// Beginner starts transactions; *pgxpool.Pool satisfies it
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Connect creates a connection pool and checks it is reachable
func Connect(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, ErrDisabled
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store replaces database tables with in-memory ones
type Store struct {
	db     Beginner
	logger *slog.Logger
}

// New creates a store over db
func New(db Beginner, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Replace drops and recreates the named table from t in one transaction,
// then bulk-copies its rows. An indexed table gets its index columns as
// the primary key.
func (s *Store) Replace(ctx context.Context, name string, t *table.Table) (err error) {
	start := time.Now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ident := pgx.Identifier{name}
	if _, err = tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	if _, err = tx.Exec(ctx, CreateTableSQL(name, t)); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	n, err := tx.CopyFrom(ctx, ident, t.Names(), pgx.CopyFromSlice(t.Len(), func(i int) ([]any, error) {
		return t.Row(i), nil
	}))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", name, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.InfoContext(ctx, "table stored",
		slog.String("table", name),
		slog.Int64("rows", n),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// CreateTableSQL returns the CREATE TABLE statement for t
func CreateTableSQL(name string, t *table.Table) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(pgx.Identifier{name}.Sanitize())
	b.WriteString(" (")
	for i, c := range t.Columns() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{c.Name}.Sanitize())
		b.WriteByte(' ')
		b.WriteString(columnType(c.Kind))
	}
	if keys := t.IndexColumns(); len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = pgx.Identifier{k}.Sanitize()
		}
		b.WriteString(", PRIMARY KEY (")
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

func columnType(k table.Kind) string {
	switch k {
	case table.Float:
		return "DOUBLE PRECISION"
	case table.Date:
		return "DATE"
	default:
		return "TEXT"
	}
}
