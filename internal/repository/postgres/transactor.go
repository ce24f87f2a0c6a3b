package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Transactor runs fn inside one transaction that repositories pick up from ctx.
// A nested WithTx joins the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var (
	mTx = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_db_tx_total", Help: "Transactions by outcome",
	}, []string{"outcome"})
	mTxDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "pricewatch_db_tx_duration_seconds", Help: "Transaction wall time",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
)

var _ Transactor = (*PgTransactor)(nil)

type PgTransactor struct {
	db   *DB
	log  *zap.Logger
	opts pgx.TxOptions
}

func NewTransactor(db *DB, log *zap.Logger) *PgTransactor {
	return &PgTransactor{
		db:   db,
		log:  log.With(zap.String("component", "postgres.tx")),
		opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

func (t *PgTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.db.Pool.BeginTx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapErr(err))
	}
	start := time.Now()
	defer func() { mTxDur.Observe(time.Since(start).Seconds()) }()

	defer func() {
		if p := recover(); p != nil {
			t.rollback(tx)
			mTx.WithLabelValues("panic").Inc()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		t.rollback(tx)
		mTx.WithLabelValues("rollback").Inc()
		return fmt.Errorf("tx: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		mTx.WithLabelValues("commit_error").Inc()
		return fmt.Errorf("commit tx: %w", mapErr(err))
	}
	mTx.WithLabelValues("commit").Inc()
	return nil
}

// rollback uses a fresh ctx so a canceled caller still releases the connection.
func (t *PgTransactor) rollback(tx pgx.Tx) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		t.log.Error("rollback", zap.Error(err))
	}
}

type txKey struct{}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Pool
}
