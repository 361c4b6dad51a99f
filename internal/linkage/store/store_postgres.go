package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ecertify/internal/linkage/models"
	"ecertify/internal/platform/database"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
)

// PostgresStore persists linkages in a single table keyed by student, so the
// student → institute and institute → students views cannot drift apart.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed linkage store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CurrentInstitute(ctx context.Context, student domain.ActorID) (domain.ActorID, error) {
	var institute domain.ActorID
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT institute FROM linkages WHERE student = $1`, student,
	).Scan(&institute)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ZeroActor, nil
		}
		return domain.ZeroActor, fmt.Errorf("find linkage: %w", err)
	}
	return institute, nil
}

func (s *PostgresStore) Link(ctx context.Context, student, institute domain.ActorID, at time.Time) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO linkages (student, institute, linked_at) VALUES ($1, $2, $3)`,
		student, institute, at,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("link student: %w", err)
	}
	return nil
}

// Move re-links the student and puts it at the end of the new institute's order.
func (s *PostgresStore) Move(ctx context.Context, student, from, to domain.ActorID, at time.Time) error {
	res, err := database.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE linkages
		SET institute = $3, link_order = nextval('linkage_order_seq'), linked_at = $4
		WHERE student = $1 AND institute = $2
	`, student, from, to, at)
	if err != nil {
		return fmt.Errorf("move student: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ListStudents(ctx context.Context, institute domain.ActorID) ([]domain.ActorID, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT student FROM linkages WHERE institute = $1 ORDER BY link_order`, institute,
	)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []domain.ActorID
	for rows.Next() {
		var student domain.ActorID
		if err := rows.Scan(&student); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

func (s *PostgresStore) SaveRequest(ctx context.Context, req *models.TransferRequest) error {
	if req == nil {
		return fmt.Errorf("transfer request is required")
	}
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO transfer_requests (student, target_institute, requested_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (student) DO UPDATE
		SET target_institute = EXCLUDED.target_institute, requested_at = EXCLUDED.requested_at
	`, req.Student, req.Target, req.RequestedAt)
	if err != nil {
		return fmt.Errorf("save transfer request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRequest(ctx context.Context, student domain.ActorID) (*models.TransferRequest, error) {
	req := &models.TransferRequest{Student: student, Pending: true}
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT target_institute, requested_at FROM transfer_requests WHERE student = $1`, student,
	).Scan(&req.Target, &req.RequestedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find transfer request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) DeleteRequest(ctx context.Context, student domain.ActorID) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM transfer_requests WHERE student = $1`, student,
	)
	if err != nil {
		return fmt.Errorf("delete transfer request: %w", err)
	}
	return nil
}
