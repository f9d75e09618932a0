package repositories

import (
	"context"
	"time"

	"taskflow/internal/models"
)

type TelegramLinkRepository interface {
	Create(ctx context.Context, employeeID int64, code string, expiresAt time.Time) (*models.TelegramLink, error)
	// UseByCode consumes an unused, unexpired code. Anything else is
	// ErrNotFound. Run it inside WithTx.
	UseByCode(ctx context.Context, code string, now time.Time) (*models.TelegramLink, error)
}

type telegramLinkRepository struct{ q Querier }

func (r *telegramLinkRepository) Create(ctx context.Context, employeeID int64, code string, expiresAt time.Time) (*models.TelegramLink, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO telegram_links (employee_id, code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, employee_id, code, expires_at, used, created_at
	`, employeeID, code, expiresAt)

	var l models.TelegramLink
	if err := row.Scan(&l.ID, &l.EmployeeID, &l.Code, &l.ExpiresAt, &l.Used, &l.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

func (r *telegramLinkRepository) UseByCode(ctx context.Context, code string, now time.Time) (*models.TelegramLink, error) {
	var l models.TelegramLink
	err := r.q.QueryRowContext(ctx, `
		SELECT id, employee_id, code, expires_at, used, created_at
		FROM telegram_links
		WHERE code = $1
		FOR UPDATE
	`, code).Scan(&l.ID, &l.EmployeeID, &l.Code, &l.ExpiresAt, &l.Used, &l.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if l.Used || now.After(l.ExpiresAt) {
		return nil, ErrNotFound
	}
	if _, err := r.q.ExecContext(ctx, `UPDATE telegram_links SET used = TRUE WHERE id = $1`, l.ID); err != nil {
		return nil, translate(err)
	}
	l.Used = true
	return &l, nil
}
