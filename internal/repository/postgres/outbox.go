package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

const outboxColumns = `
	id, event_type, aggregate_id, payload, status, error_message,
	retry_count, created_at, updated_at, processed_at`

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if len(event.Payload) == 0 {
		return fmt.Errorf("event payload cannot be empty")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, aggregate_id, payload, status, retry_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.RetryCount = 0
	event.CreatedAt = now()
	event.UpdatedAt = event.CreatedAt

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		event.ID,
		event.EventType,
		event.AggregateID,
		event.Payload.String(),
		event.Status,
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// ClaimPending must run inside a transaction; the returned rows stay locked
// until it ends and other workers skip them.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `SELECT` + outboxColumns + `
		FROM outbox_events
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?` + r.forUpdateSkipLocked()

	events := make([]*model.OutboxEvent, 0, limit)
	err := sqlx.SelectContext(ctx, r.q, &events, r.rebind(query), model.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = ?, error_message = NULL, processed_at = ?, updated_at = ?
		WHERE id = ?
	`
	ts := now()
	if _, err := r.q.ExecContext(ctx, r.rebind(query), model.OutboxStatusProcessed, ts, ts, id); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// MarkFailed records a failed publish attempt. A terminal failure moves the
// event out of the pending set; otherwise it stays pending for the next poll.
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, terminal bool) error {
	status := model.OutboxStatusPending
	if terminal {
		status = model.OutboxStatusFailed
	}

	query := `
		UPDATE outbox_events
		SET status = ?, error_message = ?, retry_count = retry_count + 1, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.q.ExecContext(ctx, r.rebind(query), status, errMsg, now(), id); err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = ?
		AND processed_at < ?
	`
	result, err := r.q.ExecContext(ctx, r.rebind(query), model.OutboxStatusProcessed, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}

func (r *outboxRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(1) FROM outbox_events WHERE status = ?`
	if err := sqlx.GetContext(ctx, r.q, &count, r.rebind(query), model.OutboxStatusPending); err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return count, nil
}
