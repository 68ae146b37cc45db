// Package postgres stores crawl results as rows in a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/samehost-crawler/internal/crawler"
)

const defaultTable = "crawl_results"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrNotConfigured is returned when the sink has no pool.
var ErrNotConfigured = errors.New("postgres sink is not configured")

// Config controls the Postgres connection pool used for result rows.
type Config struct {
	DSN             string
	Table           string
	RunID           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink implements crawler.Sink with one INSERT per record.
type Sink struct {
	pool  execCloser
	table string
	runID string
	now   func() time.Time
}

// New connects to Postgres and returns a Sink writing rows tagged with
// cfg.RunID. Call EnsureSchema before the first Write on a fresh database.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(pool, cfg.Table, cfg.RunID)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a Sink from an existing pool.
func NewWithPool(pool execCloser, table, runID string) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	return &Sink{
		pool:  pool,
		table: table,
		runID: runID,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureSchema creates the results table, keyed by (run_id, url), when missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	run_id      TEXT        NOT NULL,
	url         TEXT        NOT NULL,
	status      INTEGER     NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, url)
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Write inserts one result row.
func (s *Sink) Write(ctx context.Context, record crawler.ResultRecord) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	url,
	status,
	recorded_at
) VALUES (
	$1,$2,$3,$4
)`, s.table)
	args := []any{
		s.runID,
		record.URL,
		int32(record.Status),
		s.now(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert crawl result: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Sink) Close(context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
