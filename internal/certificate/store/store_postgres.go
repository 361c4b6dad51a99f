package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ecertify/internal/certificate/models"
	"ecertify/internal/platform/database"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
)

// PostgresStore persists certificates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed certificate store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append assigns the next index inside the statement. Callers hold the ledger
// lock, so concurrent appends for one student cannot race.
func (s *PostgresStore) Append(ctx context.Context, c *models.Certificate) (int, error) {
	if c == nil {
		return 0, fmt.Errorf("certificate is required")
	}
	var verifier any
	if c.Verified {
		verifier = c.Verifier
	}
	query := `
		INSERT INTO certificates (student, idx, content_ref, document_name, uploader, verified, verifier, uploaded_at, verified_at)
		SELECT $1::bytea, COALESCE(MAX(idx) + 1, 0), $2::text, $3::text, $4::bytea, $5::boolean, $6::bytea, $7::timestamptz, $8::timestamptz
		FROM certificates WHERE student = $1::bytea
		RETURNING idx
	`
	var index int
	err := database.Conn(ctx, s.db).QueryRowContext(ctx, query,
		c.Student, string(c.ContentRef), c.DocumentName, c.Uploader, c.Verified, verifier, c.UploadedAt, c.VerifiedAt,
	).Scan(&index)
	if err != nil {
		return 0, fmt.Errorf("append certificate: %w", err)
	}
	return index, nil
}

func (s *PostgresStore) FindByIndex(ctx context.Context, student domain.ActorID, index int) (*models.Certificate, error) {
	query := `
		SELECT student, idx, content_ref, document_name, uploader, verified, verifier, uploaded_at, verified_at
		FROM certificates
		WHERE student = $1 AND idx = $2
	`
	c, err := scanCertificate(database.Conn(ctx, s.db).QueryRowContext(ctx, query, student, index))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Count(ctx context.Context, student domain.ActorID) (int, error) {
	var n int
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM certificates WHERE student = $1`, student,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, student domain.ActorID, index int, verifier domain.ActorID, at time.Time) error {
	res, err := database.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE certificates
		SET verified = TRUE, verifier = $3, verified_at = $4
		WHERE student = $1 AND idx = $2 AND NOT verified
	`, student, index, verifier, at)
	if err != nil {
		return fmt.Errorf("verify certificate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.FindByIndex(ctx, student, index); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ListByStudent(ctx context.Context, student domain.ActorID) ([]*models.Certificate, error) {
	query := `
		SELECT student, idx, content_ref, document_name, uploader, verified, verifier, uploaded_at, verified_at
		FROM certificates
		WHERE student = $1
		ORDER BY idx
	`
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, query, student)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Certificate, 0)
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		c          models.Certificate
		contentRef string
		verifier   []byte
		verifiedAt sql.NullTime
	)
	if err := row.Scan(&c.Student, &c.Index, &contentRef, &c.DocumentName, &c.Uploader,
		&c.Verified, &verifier, &c.UploadedAt, &verifiedAt); err != nil {
		return nil, err
	}
	c.ContentRef = domain.ContentRef(contentRef)
	if verifier != nil {
		if err := c.Verifier.Scan(verifier); err != nil {
			return nil, err
		}
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		c.VerifiedAt = &t
	}
	return &c, nil
}
