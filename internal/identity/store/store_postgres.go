package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecertify/internal/identity/models"
	"ecertify/internal/platform/database"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed profile store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	query := `
		INSERT INTO profiles (actor, name, avatar_ref, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, query,
		p.Actor, p.Name, p.AvatarRef, string(p.Role), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	res, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE profiles SET name = $2, avatar_ref = $3, updated_at = $4 WHERE actor = $1`,
		p.Actor, p.Name, p.AvatarRef, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByActor(ctx context.Context, actor domain.ActorID) (*models.Profile, error) {
	query := `
		SELECT actor, name, avatar_ref, role, created_at, updated_at
		FROM profiles
		WHERE actor = $1
	`
	p, err := scanProfile(database.Conn(ctx, s.db).QueryRowContext(ctx, query, actor))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func scanProfile(row *sql.Row) (*models.Profile, error) {
	var (
		p    models.Profile
		role string
	)
	if err := row.Scan(&p.Actor, &p.Name, &p.AvatarRef, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = models.Role(role)
	p.Exists = true
	return &p, nil
}
