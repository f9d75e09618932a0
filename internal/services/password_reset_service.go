package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
	"taskflow/internal/utils"
)

type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, otp string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
}

type passwordResetService struct {
	store  repositories.Store
	auth   AuthService
	outbox OutboxTrigger
	ttl    time.Duration
	now    func() time.Time
}

func NewPasswordResetService(store repositories.Store, auth AuthService, outbox OutboxTrigger, ttl time.Duration) PasswordResetService {
	return &passwordResetService{
		store:  store,
		auth:   auth,
		outbox: outbox,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *passwordResetService) pmByEmail(ctx context.Context, email string) (*models.PM, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, validation("email is required")
	}
	pm, err := s.store.PMs().GetByEmail(ctx, email)
	if err != nil {
		return nil, fromRepo(err, "pm")
	}
	return pm, nil
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	pm, err := s.pmByEmail(ctx, email)
	if err != nil {
		return err
	}
	otp, err := utils.NewOTP(6)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	expires := s.now().Add(s.ttl)

	err = s.store.WithTx(ctx, func(tx repositories.Store) error {
		if err := tx.PMs().SetResetOTP(ctx, pm.ID, string(hash), expires); err != nil {
			return fromRepo(err, "pm")
		}
		_, err := tx.Outbox().Enqueue(ctx, models.OutboxEmail, passwordResetEmail(pm.Email, otp, int(s.ttl.Minutes())))
		return err
	})
	if err != nil {
		return err
	}
	if s.outbox != nil {
		s.outbox.Trigger()
	}
	logrus.Infof("[password-reset] OTP issued for pm %d, expires %s", pm.ID, expires.Format(time.RFC3339))
	return nil
}

// verify checks the code before the expiry so a wrong code never reveals
// whether a reset is pending.
func (s *passwordResetService) verify(pm *models.PM, otp string) error {
	otp = strings.TrimSpace(otp)
	if otp == "" || pm.ResetOTPHash == nil || pm.ResetOTPExpiry == nil {
		return ErrOTPInvalid
	}
	if bcrypt.CompareHashAndPassword([]byte(*pm.ResetOTPHash), []byte(otp)) != nil {
		return ErrOTPInvalid
	}
	if s.now().After(*pm.ResetOTPExpiry) {
		return ErrOTPExpired
	}
	return nil
}

func (s *passwordResetService) VerifyOTP(ctx context.Context, email, otp string) error {
	pm, err := s.pmByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.verify(pm, otp)
}

func (s *passwordResetService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	if len(strings.TrimSpace(newPassword)) < minPasswordLen {
		return validation("password must be at least %d characters", minPasswordLen)
	}
	pm, err := s.pmByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.verify(pm, otp); err != nil {
		return err
	}
	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.PMs().ResetPassword(ctx, pm.ID, hash); err != nil {
		return fmt.Errorf("reset password: %w", fromRepo(err, "pm"))
	}
	logrus.Infof("[password-reset] password changed for pm %d", pm.ID)
	return nil
}
