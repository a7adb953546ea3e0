// Package jwt provides a JWT-based token authenticator with persisted,
// revocable refresh tokens.
package jwt

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/pulsepage/pulsepage/internal/identity"
)

// Config contains authenticator configuration.
type Config struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// Authenticator implements identity.Authenticator using HMAC-signed JWTs
// for access tokens and opaque random refresh tokens stored hashed.
type Authenticator struct {
	config Config
	repo   identity.Repository
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config, repo identity.Repository) *Authenticator {
	return &Authenticator{config: config, repo: repo}
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateTokens issues an access/refresh token pair for the user.
func (a *Authenticator) GenerateTokens(ctx context.Context, user *domain.User) (*identity.TokenPair, error) {
	accessToken, err := a.signAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := generateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	record := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: time.Now().Add(a.config.RefreshTokenDuration),
	}
	if err := a.repo.SaveRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &identity.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ValidateAccessToken parses and validates an access token, returning the
// user id and email embedded in its claims.
func (a *Authenticator) ValidateAccessToken(_ context.Context, token string) (string, string, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.config.SecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return "", "", identity.ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", "", identity.ErrInvalidToken
	}
	return claims.Subject, claims.Email, nil
}

// RefreshTokens validates a refresh token and rotates it, issuing a new
// pair. The presented token is revoked regardless of which new pair wins
// a concurrent refresh.
func (a *Authenticator) RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	tokenHash := hashToken(refreshToken)

	record, err := a.repo.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}
	if record == nil || time.Now().After(record.ExpiresAt) {
		return nil, identity.ErrInvalidToken
	}

	user, err := a.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}

	if err := a.repo.DeleteRefreshToken(ctx, tokenHash); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	return a.GenerateTokens(ctx, user)
}

// RevokeRefreshToken deletes the refresh token record.
func (a *Authenticator) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return a.repo.DeleteRefreshToken(ctx, hashToken(refreshToken))
}

func (a *Authenticator) signAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.AccessTokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.config.SecretKey))
}

func generateOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
