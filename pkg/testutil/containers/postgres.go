//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ecertify/internal/platform/database"
	"ecertify/migrations"
)

type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

func startPostgres(ctx context.Context) (*PostgresContainer, error) {
	ctr, err := postgres.Run(ctx, "postgres:18-alpine",
		postgres.WithDatabase("ecertify_test"),
		postgres.WithUsername("ecertify"),
		postgres.WithPassword("ecertify"),
		// The entrypoint restarts the server once after init.
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, err
	}
	pc, err := connectPostgres(ctx, ctr)
	if err != nil {
		_ = ctr.Terminate(context.Background())
		return nil, err
	}
	return pc, nil
}

func connectPostgres(ctx context.Context, ctr *postgres.PostgresContainer) (*PostgresContainer, error) {
	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("connection string: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresContainer{Container: ctr, DSN: dsn, DB: db}, nil
}

// TruncateLedger empties every ledger table and resets the event sequence so
// each test sees seq numbers from 1.
func (p *PostgresContainer) TruncateLedger(ctx context.Context) error {
	const stmt = `TRUNCATE TABLE ledger_events, access_grants, certificates,
		transfer_requests, linkages, profiles RESTART IDENTITY CASCADE`
	if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate ledger: %w", err)
	}
	return nil
}
