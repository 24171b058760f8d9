// Package repo persists customers, catalog items, tasks, quotations and the
// chat message log in Postgres.
package repo

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bot-crm/internal/cache"
	"bot-crm/internal/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned alongside the existing record when a unique key already exists.
	ErrDuplicate = errors.New("record already exists")
)

// Config holds database settings.
type Config struct {
	DatabaseURL string
	Schema      string
	MaxConns    int32
}

// Repository owns the connection pool and hands out typed stores.
type Repository struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Open connects to Postgres, pins the search_path to the configured schema and
// verifies connectivity.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Repository, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.Schema != "" {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = cfg.Schema
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{
		pool:    pool,
		logger:  logger.With("component", "repo"),
		metrics: m,
	}, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Customers returns the customer directory store.
func (r *Repository) Customers() *CustomerStore {
	return &CustomerStore{repo: r}
}

// Items returns the catalog store. redis may be nil to disable caching.
func (r *Repository) Items(redis *cache.Redis, ttl time.Duration) *ItemStore {
	return &ItemStore{repo: r, cache: redis, ttl: ttl}
}

// Tasks returns the task store.
func (r *Repository) Tasks() *TaskStore {
	return &TaskStore{repo: r}
}

// Quotations returns the quotation store.
func (r *Repository) Quotations() *QuotationStore {
	return &QuotationStore{repo: r}
}

// Messages returns the chat message log.
func (r *Repository) Messages() *MessageStore {
	return &MessageStore{repo: r}
}

func (r *Repository) observe(op string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
