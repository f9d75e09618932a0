package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOTP(t *testing.T) {
	sixDigits := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		otp, err := NewOTP(6)
		require.NoError(t, err)
		assert.Regexp(t, sixDigits, otp)
	}
}

func TestNewLinkCode(t *testing.T) {
	a, err := NewLinkCode()
	require.NoError(t, err)
	b, err := NewLinkCode()
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9A-F]{32}$`, a)
	assert.NotEqual(t, a, b)
}
