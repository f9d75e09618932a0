package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taskflow/internal/models"
)

type OutboxRepository interface {
	Enqueue(ctx context.Context, kind models.OutboxKind, payload any) (*models.OutboxMessage, error)
	// ClaimDue locks up to limit undelivered messages whose next attempt is
	// due and pushes their next_attempt_at forward by lease so concurrent
	// dispatchers skip them.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, maxAttempts, limit int) ([]models.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, cause string, next time.Time) error
}

type outboxRepository struct {
	q Querier
}

func (r *outboxRepository) Enqueue(ctx context.Context, kind models.OutboxKind, payload any) (*models.OutboxMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	msg := &models.OutboxMessage{Kind: kind, Payload: raw}
	const q = `
		INSERT INTO outbox_messages (kind, payload)
		VALUES ($1, $2)
		RETURNING id, attempts, next_attempt_at, created_at`
	if err := r.q.QueryRowContext(ctx, q, kind, []byte(raw)).
		Scan(&msg.ID, &msg.Attempts, &msg.NextAttemptAt, &msg.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return msg, nil
}

func (r *outboxRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, maxAttempts, limit int) ([]models.OutboxMessage, error) {
	const q = `
		UPDATE outbox_messages SET next_attempt_at = $1
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE sent_at IS NULL AND attempts < $2 AND next_attempt_at <= $3
			ORDER BY next_attempt_at, id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, attempts, last_error, next_attempt_at, sent_at, created_at`
	rows, err := r.q.QueryContext(ctx, q, now.Add(lease), maxAttempts, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OutboxMessage
	for rows.Next() {
		var m models.OutboxMessage
		var payload []byte
		if err := rows.Scan(&m.ID, &m.Kind, &payload, &m.Attempts, &m.LastError, &m.NextAttemptAt,
			&m.SentAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Payload = payload
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE outbox_messages SET sent_at = $1, attempts = attempts + 1, last_error = NULL WHERE id = $2`, at, id)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res, ErrNotFound)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, cause string, next time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE outbox_messages SET attempts = attempts + 1, last_error = $1, next_attempt_at = $2
		WHERE id = $3`, cause, next, id)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res, ErrNotFound)
}
