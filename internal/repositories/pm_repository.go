package repositories

import (
	"context"
	"time"

	"taskflow/internal/models"
)

type PMRepository interface {
	Create(ctx context.Context, pm *models.PM) error
	GetByID(ctx context.Context, id int64) (*models.PM, error)
	GetByEmail(ctx context.Context, email string) (*models.PM, error)
	UpdateProfile(ctx context.Context, pm *models.PM) error
	SetResetOTP(ctx context.Context, id int64, otpHash string, expiresAt time.Time) error
	// ResetPassword stores the new hash and clears any pending OTP.
	ResetPassword(ctx context.Context, id int64, passwordHash string) error
}

type pmRepository struct {
	q Querier
}

const pmColumns = `id, pm_code, name, email, password_hash, mobile, profile_pic, address,
       reset_otp_hash, reset_otp_expiry, created_at, updated_at`

func scanPM(row interface{ Scan(...any) error }) (*models.PM, error) {
	pm := &models.PM{}
	err := row.Scan(&pm.ID, &pm.PMCode, &pm.Name, &pm.Email, &pm.PasswordHash, &pm.Mobile,
		&pm.ProfilePic, &pm.Address, &pm.ResetOTPHash, &pm.ResetOTPExpiry, &pm.CreatedAt, &pm.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return pm, nil
}

func (r *pmRepository) Create(ctx context.Context, pm *models.PM) error {
	const q = `
		INSERT INTO pms (pm_code, name, email, password_hash, mobile, profile_pic, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRowContext(ctx, q, pm.PMCode, pm.Name, pm.Email, pm.PasswordHash,
		pm.Mobile, pm.ProfilePic, pm.Address).Scan(&pm.ID, &pm.CreatedAt, &pm.UpdatedAt)
	return translate(err)
}

func (r *pmRepository) GetByID(ctx context.Context, id int64) (*models.PM, error) {
	return scanPM(r.q.QueryRowContext(ctx, `SELECT `+pmColumns+` FROM pms WHERE id = $1`, id))
}

func (r *pmRepository) GetByEmail(ctx context.Context, email string) (*models.PM, error) {
	return scanPM(r.q.QueryRowContext(ctx, `SELECT `+pmColumns+` FROM pms WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *pmRepository) UpdateProfile(ctx context.Context, pm *models.PM) error {
	const q = `
		UPDATE pms SET name = $1, mobile = $2, profile_pic = $3, address = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`
	return translate(r.q.QueryRowContext(ctx, q, pm.Name, pm.Mobile, pm.ProfilePic, pm.Address, pm.ID).
		Scan(&pm.UpdatedAt))
}

func (r *pmRepository) SetResetOTP(ctx context.Context, id int64, otpHash string, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE pms SET reset_otp_hash = $1, reset_otp_expiry = $2, updated_at = NOW() WHERE id = $3`,
		otpHash, expiresAt, id)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res, ErrNotFound)
}

func (r *pmRepository) ResetPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE pms SET password_hash = $1, reset_otp_hash = NULL, reset_otp_expiry = NULL, updated_at = NOW()
		WHERE id = $2`, passwordHash, id)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res, ErrNotFound)
}
