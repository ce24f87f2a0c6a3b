package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	pcfg, err := poolConfig(Config{
		URL:             "postgres://u:p@localhost:5432/pricewatch?sslmode=disable",
		ApplicationName: "pricewatch-test",
		MaxConns:        4,
		MinConns:        10,
		MaxConnLifetime: time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, "pricewatch-test", pcfg.ConnConfig.RuntimeParams["application_name"])
	assert.EqualValues(t, 4, pcfg.MaxConns)
	assert.EqualValues(t, 4, pcfg.MinConns, "min is clamped to max")
	assert.Equal(t, time.Minute, pcfg.MaxConnLifetime)

	_, err = poolConfig(Config{URL: "postgres://%zz"})
	assert.Error(t, err)
}

func TestMapErr(t *testing.T) {
	assert.ErrorIs(t, mapErr(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "23505"}), ErrConflict)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "23503"}), ErrConstraint)

	other := errors.New("boom")
	assert.Same(t, other, mapErr(other))
}

func TestNullTime(t *testing.T) {
	assert.Nil(t, nullTime(time.Time{}))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now, *nullTime(now))
	assert.True(t, fromNullTime(nil).IsZero())
	assert.Equal(t, now, fromNullTime(nullTime(now)))
}
