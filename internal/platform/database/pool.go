// Package database opens the PostgreSQL pool behind the ledger stores and
// lets those stores join the ledger transaction carried on a context.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"ecertify/internal/platform/config"
	txcontext "ecertify/pkg/platform/tx"
)

const (
	pgUniqueViolation = "23505"
	openPingTimeout   = 5 * time.Second
)

var errNotConfigured = errors.New("database not configured")

// Pool is the ledger's handle on PostgreSQL. A nil *Pool reports unhealthy and
// closes cleanly, so callers need not branch on whether a database was set up.
type Pool struct {
	db *sql.DB
}

// Open connects using cfg and pings once before returning. Limits left at
// zero keep the database/sql defaults.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errNotConfigured
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, openPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{db: db}, nil
}

func (p *Pool) DB() *sql.DB {
	if p == nil {
		return nil
	}
	return p.db
}

// Health matches the health.Checker signature.
func (p *Pool) Health(ctx context.Context) error {
	if p.DB() == nil {
		return errNotConfigured
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p.DB() == nil {
		return nil
	}
	return p.db.Close()
}

// Stats feeds the pool gauges sampled by the metrics sampler.
func (p *Pool) Stats() sql.DBStats {
	if p.DB() == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

// Executor is what *sql.DB and *sql.Tx have in common.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn picks the ledger transaction off ctx, falling back to db outside one.
// Stores call it for every statement.
func Conn(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// IsUniqueViolation reports a PostgreSQL 23505 anywhere in err's chain.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
