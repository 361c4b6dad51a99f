package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecertify/internal/access/models"
	"ecertify/internal/platform/database"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
)

// PostgresStore persists grants in access_grants. grant_order is assigned on
// insert and left alone on overwrite.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed grant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, g *models.Grant) error {
	if g == nil {
		return fmt.Errorf("grant is required")
	}
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO access_grants (owner, grantee, expiry, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, grantee) DO UPDATE
		SET expiry = EXCLUDED.expiry, granted_at = EXCLUDED.granted_at
	`, g.Owner, g.Grantee, g.Expiry, g.GrantedAt)
	if err != nil {
		return fmt.Errorf("put grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, owner, grantee domain.ActorID) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM access_grants WHERE owner = $1 AND grantee = $2`, owner, grantee,
	)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, owner, grantee domain.ActorID) (*models.Grant, error) {
	g := &models.Grant{Owner: owner, Grantee: grantee}
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT expiry, granted_at FROM access_grants WHERE owner = $1 AND grantee = $2`,
		owner, grantee,
	).Scan(&g.Expiry, &g.GrantedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find grant: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) ListByGrantee(ctx context.Context, grantee domain.ActorID) ([]*models.Grant, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT owner, expiry, granted_at FROM access_grants
		WHERE grantee = $1
		ORDER BY grant_order
	`, grantee)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.Grant
	for rows.Next() {
		g := &models.Grant{Grantee: grantee}
		if err := rows.Scan(&g.Owner, &g.Expiry, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}
