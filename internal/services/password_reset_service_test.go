package services

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

var otpPattern = regexp.MustCompile(`<strong>(\d{6})</strong>`)

// lastOTP pulls the code out of the most recent reset email in the outbox.
func (e *testEnv) lastOTP(t *testing.T) string {
	t.Helper()
	msgs := e.store.OutboxMessages()
	require.NotEmpty(t, msgs)
	var p models.EmailPayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &p))
	m := otpPattern.FindStringSubmatch(p.HTML)
	require.Len(t, m, 2, "no code in %q", p.HTML)
	return m[1]
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	svc := env.reset.(*passwordResetService)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	t.Run("unknown email", func(t *testing.T) {
		assert.ErrorIs(t, svc.RequestReset(ctx, "nobody@example.com"), ErrNotFound)
	})

	t.Run("no pending reset", func(t *testing.T) {
		assert.ErrorIs(t, svc.VerifyOTP(ctx, tm.pm.Email, "123456"), ErrOTPInvalid)
	})

	t.Run("code resets the password once", func(t *testing.T) {
		trig := env.trigger.n
		require.NoError(t, svc.RequestReset(ctx, "  PM-A@example.com "))
		assert.Equal(t, trig+1, env.trigger.n)
		otp := env.lastOTP(t)

		require.NoError(t, svc.VerifyOTP(ctx, tm.pm.Email, otp))
		assert.ErrorIs(t, svc.ResetPassword(ctx, tm.pm.Email, otp, "short"), ErrValidation)
		require.NoError(t, svc.ResetPassword(ctx, tm.pm.Email, otp, "brand-new"))

		_, err := env.identity.LoginPM(ctx, tm.pm.Email, "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = env.identity.LoginPM(ctx, tm.pm.Email, "brand-new")
		require.NoError(t, err)

		assert.ErrorIs(t, svc.VerifyOTP(ctx, tm.pm.Email, otp), ErrOTPInvalid)
	})

	t.Run("wrong code is invalid even after expiry", func(t *testing.T) {
		require.NoError(t, svc.RequestReset(ctx, tm.pm.Email))
		otp := env.lastOTP(t)
		wrong := "000000"
		if otp == wrong {
			wrong = "111111"
		}
		assert.ErrorIs(t, svc.VerifyOTP(ctx, tm.pm.Email, wrong), ErrOTPInvalid)

		now = now.Add(6 * time.Minute)
		assert.ErrorIs(t, svc.VerifyOTP(ctx, tm.pm.Email, wrong), ErrOTPInvalid)
		assert.ErrorIs(t, svc.VerifyOTP(ctx, tm.pm.Email, otp), ErrOTPExpired)
		assert.ErrorIs(t, svc.ResetPassword(ctx, tm.pm.Email, otp, "another1"), ErrOTPExpired)
	})
}
