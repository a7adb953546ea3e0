//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/pulsepage/pulsepage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenancy_OrgNameUniqueCaseInsensitive(t *testing.T) {
	client := newTestClient(t)
	client.RegisterAndLogin(t, uniqueEmail("orgs"), "password123")

	name := uniqueName("Acme")
	createOrg(t, client, name)

	resp, err := client.POST("/api/v1/orgs", map[string]string{"name": strings.ToUpper(name)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTenancy_ListOrgsOnlyOwn(t *testing.T) {
	alice := newTestClient(t)
	alice.RegisterAndLogin(t, uniqueEmail("alice"), "password123")
	orgID := createOrg(t, alice, uniqueName("Alice Org"))

	bob := newTestClient(t)
	bob.RegisterAndLogin(t, uniqueEmail("bob"), "password123")
	createOrg(t, bob, uniqueName("Bob Org"))

	resp, err := alice.GET("/api/v1/orgs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	require.Len(t, result.Data, 1)
	assert.Equal(t, orgID, result.Data[0].ID)
}

func TestTenancy_TeamsAndMembers(t *testing.T) {
	client, orgID, teamID := setupWorkspace(t, "teams")

	memberEmail := uniqueEmail("member")
	addMember(t, client, orgID, teamID, memberEmail, "")

	resp, err := client.GET(fmt.Sprintf("/api/v1/orgs/%s/teams", orgID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data []struct {
			ID      string `json:"id"`
			Members []struct {
				UserEmail string `json:"user_email"`
				Role      string `json:"role"`
			} `json:"members"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	require.Len(t, result.Data, 1)
	assert.Equal(t, teamID, result.Data[0].ID)
	require.Len(t, result.Data[0].Members, 1)
	assert.Equal(t, memberEmail, result.Data[0].Members[0].UserEmail)
	assert.Equal(t, "member", result.Data[0].Members[0].Role)
}

func TestTenancy_AddMemberTwiceConflicts(t *testing.T) {
	client, orgID, teamID := setupWorkspace(t, "dup-member")

	email := uniqueEmail("twice")
	addMember(t, client, orgID, teamID, email, "")

	resp, err := client.POST(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s/members", orgID, teamID),
		map[string]string{"email": strings.ToUpper(email)},
	)
	require.NoError(t, err)
	// Emails are normalized, so differing case still collides.
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTenancy_MembershipLookup(t *testing.T) {
	owner, orgID, teamID := setupWorkspace(t, "lookup")

	memberEmail := uniqueEmail("roster")
	addMember(t, owner, orgID, teamID, memberEmail, "")

	member := newTestClient(t)
	member.RegisterAndLogin(t, memberEmail, "password123")

	resp, err := member.GET("/api/v1/membership")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			OrganizationID string `json:"organization_id"`
			TeamID         string `json:"team_id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, orgID, result.Data.OrganizationID)
	assert.Equal(t, teamID, result.Data.TeamID)
}

func TestTenancy_MembershipLookupEmptyForOutsider(t *testing.T) {
	client := newTestClient(t)
	client.RegisterAndLogin(t, uniqueEmail("norost"), "password123")

	resp, err := client.GET("/api/v1/membership")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			OrganizationID string `json:"organization_id"`
			TeamID         string `json:"team_id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Empty(t, result.Data.OrganizationID)
	assert.Empty(t, result.Data.TeamID)
}

func TestTenancy_StrangerForbidden(t *testing.T) {
	_, orgID, teamID := setupWorkspace(t, "gate")

	stranger := newTestClient(t)
	stranger.RegisterAndLogin(t, uniqueEmail("stranger"), "password123")

	resp, err := stranger.WithoutValidation().GET(fmt.Sprintf("/api/v1/orgs/%s", orgID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = stranger.WithoutValidation().GET(fmt.Sprintf("/api/v1/orgs/%s/teams/%s", orgID, teamID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Team mutations are creator-only even for members.
	resp, err = stranger.WithoutValidation().POST(
		fmt.Sprintf("/api/v1/orgs/%s/teams", orgID),
		map[string]string{"name": "intruder team"},
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTenancy_MemberSeesTeamButCannotManageIt(t *testing.T) {
	owner, orgID, teamID := setupWorkspace(t, "roles")

	memberEmail := uniqueEmail("plain")
	addMember(t, owner, orgID, teamID, memberEmail, "")

	member := newTestClient(t)
	member.RegisterAndLogin(t, memberEmail, "password123")

	resp, err := member.GET(fmt.Sprintf("/api/v1/orgs/%s/teams/%s", orgID, teamID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = member.WithoutValidation().POST(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s/members", orgID, teamID),
		map[string]string{"email": uniqueEmail("sneaky")},
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTenancy_CreatorCannotReachForeignTeam(t *testing.T) {
	_, _, victimTeamID := setupWorkspace(t, "victim")

	// The attacker owns a workspace of their own. Naming the victim's
	// team under the attacker's organization must not resolve.
	attacker, attackerOrgID, _ := setupWorkspace(t, "attacker")

	resp, err := attacker.WithoutValidation().GET(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s", attackerOrgID, victimTeamID),
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = attacker.WithoutValidation().GET(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s/services", attackerOrgID, victimTeamID),
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = attacker.WithoutValidation().POST(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s/members", attackerOrgID, victimTeamID),
		map[string]string{"email": uniqueEmail("implant")},
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTenancy_MemberIDScopedToTeam(t *testing.T) {
	client, orgID, teamID := setupWorkspace(t, "scoped")
	victimMemberID := addMember(t, client, orgID, teamID, uniqueEmail("target"), "")

	resp, err := client.POST(
		fmt.Sprintf("/api/v1/orgs/%s/teams", orgID),
		map[string]string{"name": uniqueName("Payments")},
	)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &created)
	otherTeamID := created.Data.ID

	// A member id only resolves under the team it belongs to.
	resp, err = client.WithoutValidation().DELETE(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s/members/%s", orgID, otherTeamID, victimMemberID),
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = client.WithoutValidation().PATCH(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s/members/%s", orgID, otherTeamID, victimMemberID),
		map[string]string{"role": "admin"},
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTenancy_MemberRoleUpdateAndRemoval(t *testing.T) {
	client, orgID, teamID := setupWorkspace(t, "roster-admin")

	memberID := addMember(t, client, orgID, teamID, uniqueEmail("promote"), "")

	resp, err := client.PATCH(
		fmt.Sprintf("/api/v1/orgs/%s/teams/%s/members/%s", orgID, teamID, memberID),
		map[string]string{"role": "admin"},
	)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Role string `json:"role"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "admin", result.Data.Role)

	resp, err = client.DELETE(fmt.Sprintf("/api/v1/orgs/%s/teams/%s/members/%s", orgID, teamID, memberID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = client.WithoutValidation().DELETE(fmt.Sprintf("/api/v1/orgs/%s/teams/%s/members/%s", orgID, teamID, memberID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
