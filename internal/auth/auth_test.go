package auth

import (
	"testing"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	id := entity.Identity{UserID: "u1", Email: "ada@example.com", Role: entity.RoleAdmin, IsVerified: true}

	token, err := tokens.BuildJWT(id)
	require.NoError(t, err)

	got, err := tokens.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.True(t, got.IsAdmin())
}

func TestJWTRejectsForeignAndExpired(t *testing.T) {
	token, err := NewTokens("other", time.Hour).BuildJWT(entity.Identity{UserID: "u1"})
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Hour).ValidateJWT(token)
	assert.Error(t, err)

	expired := NewTokens("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err = expired.BuildJWT(entity.Identity{UserID: "u1"})
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Hour).ValidateJWT(token)
	assert.Error(t, err)

	_, err = NewTokens("secret", time.Hour).ValidateJWT("garbage")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "password123"))
	assert.False(t, CheckPassword(hash, "password124"))
}

func TestOTP(t *testing.T) {
	code, err := GenerateOTP()
	require.NoError(t, err)
	assert.Len(t, code, 6)

	c, err := NewOTPCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	enc, err := c.Encrypt(code)
	require.NoError(t, err)
	assert.True(t, c.Matches(enc, code))
	assert.False(t, c.Matches(enc, "000000x"))
	assert.False(t, c.Matches("not-base64!", code))

	_, err = NewOTPCipher([]byte("short"))
	assert.Error(t, err)
}

func TestResetToken(t *testing.T) {
	token, hash, err := NewResetToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, hash, HashToken(token))
	assert.NotEqual(t, token, hash)
}
