package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/pulsepage/pulsepage/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository stores refresh tokens in memory.
type mockRepository struct {
	users  map[string]*domain.User
	tokens map[string]*domain.RefreshToken
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:  make(map[string]*domain.User),
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRepository) CreateUser(_ context.Context, _ *domain.User) error { return nil }

func (m *mockRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func (m *mockRepository) GetUserByEmail(_ context.Context, _ string) (*domain.User, error) {
	return nil, identity.ErrUserNotFound
}

func (m *mockRepository) SaveRefreshToken(_ context.Context, token *domain.RefreshToken) error {
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *mockRepository) GetRefreshToken(_ context.Context, hash string) (*domain.RefreshToken, error) {
	if t, ok := m.tokens[hash]; ok {
		return t, nil
	}
	return nil, nil
}

func (m *mockRepository) DeleteRefreshToken(_ context.Context, hash string) error {
	delete(m.tokens, hash)
	return nil
}

func (m *mockRepository) DeleteUserRefreshTokens(_ context.Context, userID string) error {
	for hash, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, hash)
		}
	}
	return nil
}

func newTestAuthenticator(repo identity.Repository, accessTTL time.Duration) *Authenticator {
	return NewAuthenticator(Config{
		SecretKey:            "test-secret",
		AccessTokenDuration:  accessTTL,
		RefreshTokenDuration: time.Hour,
	}, repo)
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	repo := newMockRepository()
	user := &domain.User{ID: "u1", Email: "alice@example.com"}
	repo.users[user.ID] = user

	auth := newTestAuthenticator(repo, time.Minute)

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	userID, email, err := auth.ValidateAccessToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "alice@example.com", email)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	repo := newMockRepository()
	user := &domain.User{ID: "u1", Email: "alice@example.com"}
	repo.users[user.ID] = user

	auth := newTestAuthenticator(repo, -time.Minute)

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	_, _, err = auth.ValidateAccessToken(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	repo := newMockRepository()
	user := &domain.User{ID: "u1", Email: "alice@example.com"}
	repo.users[user.ID] = user

	auth := newTestAuthenticator(repo, time.Minute)
	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	other := NewAuthenticator(Config{
		SecretKey:            "different-secret",
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Hour,
	}, repo)

	_, _, err = other.ValidateAccessToken(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestRefreshTokens_RotatesToken(t *testing.T) {
	repo := newMockRepository()
	user := &domain.User{ID: "u1", Email: "alice@example.com"}
	repo.users[user.ID] = user

	auth := newTestAuthenticator(repo, time.Minute)

	pair, err := auth.GenerateTokens(context.Background(), user)
	require.NoError(t, err)

	next, err := auth.RefreshTokens(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The old refresh token is revoked.
	_, err = auth.RefreshTokens(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestRefreshTokens_Unknown(t *testing.T) {
	auth := newTestAuthenticator(newMockRepository(), time.Minute)

	_, err := auth.RefreshTokens(context.Background(), "never-issued")
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}
