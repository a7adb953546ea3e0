//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/pulsepage/pulsepage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_RegisterLoginMe(t *testing.T) {
	client := newTestClient(t)
	email := uniqueEmail("auth")

	client.RegisterAndLogin(t, email, "password123")

	resp, err := client.GET("/api/v1/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Email string `json:"email"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, email, result.Data.Email)
}

func TestAuth_RegisterDuplicateEmail(t *testing.T) {
	client := newTestClient(t)
	email := uniqueEmail("dup")

	client.RegisterAndLogin(t, email, "password123")

	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": "password456",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	client := newTestClient(t)
	email := uniqueEmail("wrongpw")

	client.RegisterAndLogin(t, email, "password123")
	client.ClearToken()

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": "not-the-password",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_LoginUnknownEmailSameError(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    uniqueEmail("ghost"),
		"password": "password123",
	})
	require.NoError(t, err)
	// Unknown email and wrong password are indistinguishable.
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_ProtectedRouteRequiresToken(t *testing.T) {
	client := newTestClientWithoutValidation()

	resp, err := client.GET("/api/v1/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_RefreshRotatesTokens(t *testing.T) {
	client := newTestClient(t)
	client.RegisterAndLogin(t, uniqueEmail("refresh"), "password123")

	resp, err := client.POST("/api/v1/auth/refresh", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Access with the rotated tokens still works.
	resp, err = client.GET("/api/v1/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_LogoutClearsSession(t *testing.T) {
	client := newTestClient(t)
	client.RegisterAndLogin(t, uniqueEmail("logout"), "password123")

	resp, err := client.POST("/api/v1/auth/logout", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = client.WithoutValidation().GET("/api/v1/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
