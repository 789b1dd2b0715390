package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covid19datasets/internal/config"
	"covid19datasets/internal/table"
)

func combinedSample(t *testing.T) *table.Table {
	tbl := table.New(
		table.Column{Name: "ISO", Kind: table.String},
		table.Column{Name: "DATE", Kind: table.Date},
		table.Column{Name: "Population, total", Kind: table.Float},
	).MustAppend("AAA", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 10.0)
	indexed, err := tbl.Index("ISO", "DATE")
	require.NoError(t, err)
	return indexed
}

func TestCreateTableSQL(t *testing.T) {
	got := CreateTableSQL("combined", combinedSample(t))
	assert.Equal(t,
		`CREATE TABLE "combined" ("ISO" TEXT, "DATE" DATE, "Population, total" DOUBLE PRECISION, PRIMARY KEY ("ISO", "DATE"))`,
		got)
}

func TestCreateTableSQLWithoutIndex(t *testing.T) {
	tbl := table.New(table.Column{Name: `odd"name`, Kind: table.String})
	assert.Equal(t, `CREATE TABLE "x" ("odd""name" TEXT)`, CreateTableSQL("x", tbl))
}

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(context.Background(), config.PostgresConfig{})
	assert.ErrorIs(t, err, ErrDisabled)
}

type failingBeginner struct{ err error }

func (f failingBeginner) Begin(context.Context) (pgx.Tx, error) { return nil, f.err }

func TestReplaceReportsBeginFailure(t *testing.T) {
	boom := errors.New("connection refused")
	err := New(failingBeginner{err: boom}, nil).Replace(context.Background(), "combined", combinedSample(t))
	assert.ErrorIs(t, err, boom)
}
