package repositories

import (
	"context"

	"github.com/lib/pq"

	"taskflow/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id int64) (*models.Notification, error)
	// ListForReceiver returns the feed newest first.
	ListForReceiver(ctx context.Context, receiver models.Actor) ([]models.Notification, error)
	MarkRead(ctx context.Context, receiver models.Actor, id int64) error
	MarkAllRead(ctx context.Context, receiver models.Actor) (int64, error)
	// RecordAction stores the receiver's choice, marks the notification read
	// and clears its actions. It returns ErrVersionConflict when an action
	// was already recorded.
	RecordAction(ctx context.Context, id int64, action models.NotificationAction) error
}

type notificationRepository struct {
	q Querier
}

const notificationColumns = `id, sender_kind, sender_id, receiver_kind, receiver_id, type, message,
       is_read, actions, action_taken, bug_id, created_at, updated_at`

func scanNotification(row interface{ Scan(...any) error }) (*models.Notification, error) {
	n := &models.Notification{}
	var actions pq.StringArray
	var taken *string
	err := row.Scan(&n.ID, &n.Sender.Kind, &n.Sender.ID, &n.Receiver.Kind, &n.Receiver.ID, &n.Type,
		&n.Message, &n.IsRead, &actions, &taken, &n.BugID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	n.Actions = make([]models.NotificationAction, 0, len(actions))
	for _, a := range actions {
		n.Actions = append(n.Actions, models.NotificationAction(a))
	}
	if taken != nil {
		a := models.NotificationAction(*taken)
		n.ActionTaken = &a
	}
	return n, nil
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	actions := make(pq.StringArray, 0, len(n.Actions))
	for _, a := range n.Actions {
		actions = append(actions, string(a))
	}
	const q = `
		INSERT INTO notifications (sender_kind, sender_id, receiver_kind, receiver_id, type, message,
		                           is_read, actions, bug_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	return translate(r.q.QueryRowContext(ctx, q, n.Sender.Kind, n.Sender.ID, n.Receiver.Kind,
		n.Receiver.ID, n.Type, n.Message, n.IsRead, actions, n.BugID).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt))
}

func (r *notificationRepository) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	return scanNotification(r.q.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
}

func (r *notificationRepository) ListForReceiver(ctx context.Context, receiver models.Actor) ([]models.Notification, error) {
	const q = `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE receiver_kind = $1 AND receiver_id = $2
		ORDER BY created_at DESC, id DESC`
	rows, err := r.q.QueryContext(ctx, q, receiver.Kind, receiver.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, receiver models.Actor, id int64) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, updated_at = NOW()
		WHERE id = $1 AND receiver_kind = $2 AND receiver_id = $3`, id, receiver.Kind, receiver.ID)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res, ErrNotFound)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, receiver models.Actor) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, updated_at = NOW()
		WHERE receiver_kind = $1 AND receiver_id = $2 AND NOT is_read`, receiver.Kind, receiver.ID)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) RecordAction(ctx context.Context, id int64, action models.NotificationAction) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE notifications
		SET action_taken = $1, is_read = TRUE, actions = '{}', updated_at = NOW()
		WHERE id = $2 AND action_taken IS NULL`, action, id)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res, ErrVersionConflict)
}
