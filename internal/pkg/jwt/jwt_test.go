package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Sign("user-1", "a@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret")

	expired, err := v.Sign("user-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = v.Parse(expired)
	assert.Error(t, err)

	other, err := NewVerifier("other").Sign("user-1", "", time.Hour)
	require.NoError(t, err)
	_, err = v.Parse(other)
	assert.Error(t, err)

	_, err = NewVerifier("").Parse(other)
	assert.ErrorIs(t, err, errNoSecret)

	_, err = v.Parse("not-a-token")
	assert.Error(t, err)
}
