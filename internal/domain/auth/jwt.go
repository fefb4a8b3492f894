// Package auth issues and validates the bearer tokens that bind a request to
// an owner.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "lifeline/internal/core/context"
	"lifeline/internal/core/id"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "lifeline",
		AccessTokenTTL: 15 * time.Minute,
	}
}

// Claims represents JWT claims. The tenant claim carries the owner id.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string   `json:"tid"`
	Scopes  []string `json:"scp,omitempty"`
}

// JWTService handles JWT operations.
type JWTService struct {
	config JWTConfig
}

func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// GenerateAccessToken signs a token for subject acting on owner.
func (s *JWTService) GenerateAccessToken(subject string, owner id.ID, scopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		OwnerID: owner.String(),
		Scopes:  scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken validates the token and returns its principal.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	owner, err := id.Parse(claims.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("owner claim: %w", err)
	}

	return &appctx.Principal{
		Subject: claims.Subject,
		OwnerID: owner,
		Scopes:  claims.Scopes,
	}, nil
}
