package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("sk-123", secret)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	key, err := SessionKeyFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "sk-123", key)
}

func TestSessionKeyFromToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("sk-123", []byte("secret-a"))
	require.NoError(t, err)

	_, err = SessionKeyFromToken(token, []byte("secret-b"))
	assert.Error(t, err)
}

func TestSessionKeyFromToken_Garbage(t *testing.T) {
	_, err := SessionKeyFromToken("not-a-token", []byte("secret"))
	assert.Error(t, err)
}
