package authz

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")

	raw, err := IssueToken(secret, 42, RoleTester, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(secret, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, RoleTester, claims.Role)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := ParseToken([]byte("other"), raw)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := IssueToken(secret, 42, RolePM, -time.Minute)
		require.NoError(t, err)
		_, err = ParseToken(secret, old)
		assert.Error(t, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		bad, err := IssueToken(secret, 1, "Admin", time.Hour)
		require.NoError(t, err)
		_, err = ParseToken(secret, bad)
		assert.Error(t, err)
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, Role: RolePM,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})
		raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = ParseToken(secret, raw)
		assert.Error(t, err)
	})
}
