package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/NordCoder/Pricewatch/internal/obs/retry"
)

type Config struct {
	URL               string        `mapstructure:"url" validate:"required"`
	ApplicationName   string        `mapstructure:"application_name"`
	MaxConns          int32         `mapstructure:"max_conns" validate:"gte=0"`
	MinConns          int32         `mapstructure:"min_conns" validate:"gte=0"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	// ConnectAttempts bounds the startup ping loop while the database comes up.
	ConnectAttempts int `mapstructure:"connect_attempts" validate:"gte=0"`
}

type DB struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.ApplicationName != "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = min(cfg.MinConns, pcfg.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		pcfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	return pcfg, nil
}

func New(ctx context.Context, cfg Config) (*DB, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	err = retry.Do(ctx, func(int) error {
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pool.Ping(hctx)
	}, retry.Policy{
		Name:     "db_connect",
		Attempts: max(cfg.ConnectAttempts, 1),
		Backoff:  retry.ExpoJitter{Base: 250 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.1},
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	registerPoolStats(pool)
	return &DB{Pool: pool, QueryTimeout: cfg.QueryTimeout}, nil
}

func (db *DB) Close() { db.Pool.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}

var (
	descTotal    = prometheus.NewDesc("pricewatch_db_pool_conns", "Pool connections by state", []string{"state"}, nil)
	descAcquires = prometheus.NewDesc("pricewatch_db_pool_acquire_total", "Connections acquired from the pool", nil, nil)
	descWait     = prometheus.NewDesc("pricewatch_db_pool_acquire_wait_seconds_total", "Time spent waiting for a connection", nil, nil)
)

type poolCollector struct{ pool *pgxpool.Pool }

func (c poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descTotal
	ch <- descAcquires
	ch <- descWait
}

func (c poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(descTotal, prometheus.GaugeValue, float64(s.IdleConns()), "idle")
	ch <- prometheus.MustNewConstMetric(descTotal, prometheus.GaugeValue, float64(s.AcquiredConns()), "acquired")
	ch <- prometheus.MustNewConstMetric(descTotal, prometheus.GaugeValue, float64(s.MaxConns()), "max")
	ch <- prometheus.MustNewConstMetric(descAcquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(descWait, prometheus.CounterValue, s.AcquireDuration().Seconds())
}

// registerPoolStats exports the first pool opened by the process; later
// pools (tests) hit AlreadyRegisteredError, which is ignored.
func registerPoolStats(pool *pgxpool.Pool) {
	_ = prometheus.Register(poolCollector{pool: pool})
}
