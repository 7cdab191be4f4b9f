package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/vietddude/exporter/internal/export/metrics"
)

const (
	defaultMaxConns  = 10
	defaultIdleConns = 2
	statsInterval    = 15 * time.Second
)

// Config holds PostgreSQL connection configuration for the export store.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"` // open connections (default: 10)
	MinConns int    `yaml:"min_conns"` // idle connections kept (default: 2)
}

// DB is the export store connection pool.
type DB struct {
	*sqlx.DB
	lastWaits int64
}

// poolLimits resolves the open and idle connection limits. Idle never
// exceeds open so the pool does not churn.
func poolLimits(cfg Config) (maxOpen, maxIdle int) {
	maxOpen, maxIdle = defaultMaxConns, defaultIdleConns
	if cfg.MaxConns > 0 {
		maxOpen = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		maxIdle = cfg.MinConns
	}
	return maxOpen, min(maxIdle, maxOpen)
}

// NewDB opens the pool and checks the server is reachable.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen, maxIdle := poolLimits(cfg)
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// StartMetricsCollector publishes pool statistics until ctx is done.
func (db *DB) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.lastWaits = recordPoolStats(db.Stats(), db.lastWaits)
			}
		}
	}()
}

// recordPoolStats updates the pool gauges and returns the wait count seen,
// which the next call uses as its baseline.
func recordPoolStats(stats sql.DBStats, lastWaits int64) int64 {
	// MaxOpenConnections is 0 when unlimited
	if stats.MaxOpenConnections > 0 {
		metrics.DBConnectionPoolUsage.Set(float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100)
	}
	if delta := stats.WaitCount - lastWaits; delta > 0 {
		metrics.DBConnectionWaits.Add(float64(delta))
	}
	return stats.WaitCount
}

// Health pings the export store.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}
