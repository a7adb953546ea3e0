// Package identity provides user registration, authentication and session
// token management.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pulsepage/pulsepage/internal/domain"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// TokenPair holds an access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authenticator issues and validates token pairs.
type Authenticator interface {
	GenerateTokens(ctx context.Context, user *domain.User) (*TokenPair, error)
	ValidateAccessToken(ctx context.Context, token string) (userID, email string, err error)
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
}

// LimiterConfig controls per-email login throttling.
type LimiterConfig struct {
	PerMinute int
	Burst     int
}

// Service implements identity business logic.
type Service struct {
	repo Repository
	auth Authenticator

	limiterCfg LimiterConfig
	limiterMu  sync.Mutex
	limiters   *expirable.LRU[string, *rate.Limiter]
}

// limiterStoreSize caps how many per-email limiters are retained at once.
// Evicted or expired entries start over with a fresh burst, so the cap
// trades a little strictness for bounded memory.
const (
	limiterStoreSize = 8192
	limiterTTL       = 10 * time.Minute
)

// NewService creates a new identity service.
func NewService(repo Repository, auth Authenticator, limiterCfg LimiterConfig) *Service {
	if limiterCfg.PerMinute <= 0 {
		limiterCfg.PerMinute = 10
	}
	if limiterCfg.Burst <= 0 {
		limiterCfg.Burst = 5
	}
	return &Service{
		repo:       repo,
		auth:       auth,
		limiterCfg: limiterCfg,
		limiters:   expirable.NewLRU[string, *rate.Limiter](limiterStoreSize, nil, limiterTTL),
	}
}

// RegisterInput holds data for registering a user.
type RegisterInput struct {
	Email    string
	Password string
}

// Register creates a new user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:    normalizeEmail(input.Email),
		Password: string(hash),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// LoginInput holds data for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and issues a token pair. Attempts are
// throttled per email address.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, *TokenPair, error) {
	email := normalizeEmail(input.Email)

	if !s.loginLimiter(email).Allow() {
		return nil, nil, ErrTooManyAttempts
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		// Same error for unknown email and wrong password.
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.auth.GenerateTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	return user, tokens, nil
}

// RefreshTokens exchanges a refresh token for a new token pair.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.auth.RefreshTokens(ctx, refreshToken)
}

// Logout revokes the refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.auth.RevokeRefreshToken(ctx, refreshToken)
}

// GetUserByID returns the user with the given id.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ValidateToken validates an access token. Implements httputil.TokenValidator.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, string, error) {
	return s.auth.ValidateAccessToken(ctx, token)
}

func (s *Service) loginLimiter(email string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	limiter, ok := s.limiters.Get(email)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(s.limiterCfg.PerMinute)/60.0), s.limiterCfg.Burst)
		s.limiters.Add(email, limiter)
	}
	return limiter
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
