package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

var ErrEventNotFound = errors.New("outbox event not found")

// Event is a message waiting to be published to the bus.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   *string
	RoutingKey    string
	Payload       json.RawMessage
	Status        string
	RetryCount    int
	NextRetryAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and updates the outbox_events table.
type Repository struct {
	db  Querier
	now func() time.Time
}

func NewRepository(db Querier) *Repository {
	return &Repository{db: db, now: time.Now}
}

// InsertEvent writes event through tx, so it commits or rolls back together
// with the business rows written in the same transaction.
func (r *Repository) InsertEvent(ctx context.Context, tx Querier, event *Event) error {
	query := `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, routing_key, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		event.AggregateType,
		event.AggregateID,
		event.RoutingKey,
		event.Payload,
		event.Status,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

const eventColumns = `id, aggregate_type, aggregate_id, routing_key, payload, status,
		       retry_count, next_retry_at, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID,
		&e.AggregateType,
		&e.AggregateID,
		&e.RoutingKey,
		&e.Payload,
		&e.Status,
		&e.RetryCount,
		&e.NextRetryAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) queryEvents(ctx context.Context, query string, args ...any) ([]*Event, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetPendingEvents returns events due for publishing, oldest first.
func (r *Repository) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	return r.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM outbox_events
		WHERE status = 'pending'
		AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
}

// GetFailedEvents returns events that exhausted their retries, newest first.
func (r *Repository) GetFailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	return r.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM outbox_events
		WHERE status = 'failed'
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

func (r *Repository) GetEventByID(ctx context.Context, eventID int64) (*Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM outbox_events
		WHERE id = $1
	`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (r *Repository) MarkAsSent(ctx context.Context, eventID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'sent', updated_at = NOW()
		WHERE id = $1
	`, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event as sent: %w", err)
	}
	return nil
}

// MarkAsFailed bumps the retry count and schedules the next attempt with a
// linear backoff; after maxRetries the event is parked as failed.
func (r *Repository) MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error {
	var retryCount int
	err := r.db.QueryRow(ctx, `SELECT retry_count FROM outbox_events WHERE id = $1`, eventID).Scan(&retryCount)
	if err != nil {
		return fmt.Errorf("failed to get retry count: %w", err)
	}

	status, nextRetryAt := nextAttempt(retryCount+1, maxRetries, r.now())

	_, err = r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, retry_count = $2, next_retry_at = $3, updated_at = NOW()
		WHERE id = $4
	`, status, retryCount+1, nextRetryAt, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	return nil
}

func nextAttempt(retryCount, maxRetries int, now time.Time) (string, *time.Time) {
	if retryCount >= maxRetries {
		return StatusFailed, nil
	}
	next := now.Add(time.Duration(retryCount) * 5 * time.Second)
	return StatusPending, &next
}

// ResetEvent puts an event back in the pending queue with a fresh retry budget.
func (r *Repository) ResetEvent(ctx context.Context, eventID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'pending', retry_count = 0, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, eventID)
	if err != nil {
		return fmt.Errorf("failed to reset event: %w", err)
	}
	return nil
}
