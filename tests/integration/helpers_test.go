//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/pulsepage/pulsepage/internal/testutil"
	"github.com/stretchr/testify/require"
)

// uniqueEmail returns an email address unused by any other test.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}

// uniqueName returns an organization or team name unused by any other test.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s %s", prefix, uuid.NewString()[:8])
}

type idPayload struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// createOrg creates an organization and returns its id.
func createOrg(t *testing.T, client *testutil.Client, name string) string {
	t.Helper()

	resp, err := client.POST("/api/v1/orgs", map[string]string{"name": name})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result idPayload
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// createTeam creates a team in the organization and returns its id.
func createTeam(t *testing.T, client *testutil.Client, orgID, name string) string {
	t.Helper()

	resp, err := client.POST(fmt.Sprintf("/api/v1/orgs/%s/teams", orgID), map[string]string{"name": name})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result idPayload
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// addMember adds a user email to a team roster and returns the member id.
func addMember(t *testing.T, client *testutil.Client, orgID, teamID, email, role string) string {
	t.Helper()

	payload := map[string]string{"email": email}
	if role != "" {
		payload["role"] = role
	}
	resp, err := client.POST(fmt.Sprintf("/api/v1/orgs/%s/teams/%s/members", orgID, teamID), payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result idPayload
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// createService creates a service for the team and returns its id.
func createService(t *testing.T, client *testutil.Client, orgID, teamID, name string) string {
	t.Helper()

	resp, err := client.POST(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s/services", orgID, teamID),
		map[string]interface{}{"name": name},
	)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result idPayload
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// createIncident reports an incident affecting the given services and
// returns its id.
func createIncident(t *testing.T, client *testutil.Client, orgID, teamID, title string, serviceIDs []string) string {
	t.Helper()

	resp, err := client.POST(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s/incidents", orgID, teamID),
		map[string]interface{}{
			"title":       title,
			"service_ids": serviceIDs,
		},
	)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result idPayload
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// setupWorkspace registers a user, creates an organization and a team,
// and returns the logged-in client plus ids.
func setupWorkspace(t *testing.T, prefix string) (client *testutil.Client, orgID, teamID string) {
	t.Helper()

	client = newTestClient(t)
	client.RegisterAndLogin(t, uniqueEmail(prefix), "password123")
	orgID = createOrg(t, client, uniqueName(prefix))
	teamID = createTeam(t, client, orgID, uniqueName(prefix+" team"))
	return client, orgID, teamID
}
