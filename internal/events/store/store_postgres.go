package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ecertify/internal/events"
	"ecertify/internal/platform/database"
	"ecertify/internal/sentinel"
)

// maxBatch caps list and fetch sizes.
const maxBatch = 1000

// PostgresStore persists the event log in the ledger_events outbox table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e *events.Event) error {
	if e == nil || e.Payload == nil {
		return fmt.Errorf("event payload is required")
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", e.Type, err)
	}
	query := `
		INSERT INTO ledger_events (event_type, subject, payload, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`
	err = database.Conn(ctx, s.db).QueryRowContext(ctx, query,
		string(e.Type),
		e.Subject,
		string(body),
		e.RequestID,
		e.OccurredAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("append ledger event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]*events.Event, error) {
	if limit <= 0 || limit > maxBatch {
		limit = maxBatch
	}
	query := `
		SELECT seq, event_type, subject, payload, request_id, occurred_at, published_at
		FROM ledger_events
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger events: %w", err)
	}
	return collectEvents(rows)
}

// FetchUnpublished uses FOR UPDATE SKIP LOCKED so concurrent relays split the backlog.
func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]*events.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > maxBatch {
		limit = maxBatch
	}
	query := `
		SELECT seq, event_type, subject, payload, request_id, occurred_at, published_at
		FROM ledger_events
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished ledger events: %w", err)
	}
	return collectEvents(rows)
}

func (s *PostgresStore) MarkPublished(ctx context.Context, seq int64, at time.Time) error {
	res, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE ledger_events SET published_at = $2 WHERE seq = $1 AND published_at IS NULL`,
		seq, at,
	)
	if err != nil {
		return fmt.Errorf("mark ledger event published: %w", err)
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

func (s *PostgresStore) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_events WHERE published_at IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending ledger events: %w", err)
	}
	return n, nil
}

func collectEvents(rows *sql.Rows) ([]*events.Event, error) {
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger events: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*events.Event, error) {
	var (
		e         events.Event
		eventType string
		body      []byte
		requestID sql.NullString
		published sql.NullTime
	)
	if err := row.Scan(&e.Seq, &eventType, &e.Subject, &body, &requestID, &e.OccurredAt, &published); err != nil {
		return nil, err
	}
	e.Type = events.Type(eventType)
	p, err := events.DecodePayload(e.Type, body)
	if err != nil {
		return nil, err
	}
	e.Payload = p
	e.RequestID = requestID.String
	if published.Valid {
		t := published.Time
		e.PublishedAt = &t
	}
	return &e, nil
}
