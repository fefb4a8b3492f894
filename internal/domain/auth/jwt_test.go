package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/core/id"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	owner := id.New()

	token, expiresAt, err := svc.GenerateAccessToken("sync-worker", owner, []string{"assets", "wallet"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	p, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sync-worker", p.Subject)
	assert.Equal(t, owner, p.OwnerID)
	assert.Equal(t, []string{"assets", "wallet"}, p.Scopes)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	other := NewJWTService(DefaultJWTConfig("other-secret"))

	token, _, err := other.GenerateAccessToken("x", id.New(), nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err, "wrong key")

	expired := NewJWTService(JWTConfig{Secret: "secret", Issuer: "lifeline", AccessTokenTTL: -time.Minute})
	token, _, err = expired.GenerateAccessToken("x", id.New(), nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err, "expired")

	noOwner := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "lifeline"},
	})
	signed, err := noOwner.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Error(t, err, "owner claim required")

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
