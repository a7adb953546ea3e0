package authz

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTenancy implements TenancyChecker and counts lookups so tests can
// observe cache behavior.
type mockTenancy struct {
	memberships map[string]map[string]bool // teamID -> email -> member
	creators    map[string]string          // orgID -> userID
	teams       map[string]string          // teamID -> orgID
	calls       atomic.Int64
}

func newMockTenancy() *mockTenancy {
	return &mockTenancy{
		memberships: make(map[string]map[string]bool),
		creators:    make(map[string]string),
		teams:       make(map[string]string),
	}
}

func (m *mockTenancy) addTeam(orgID, teamID string) {
	m.teams[teamID] = orgID
}

func (m *mockTenancy) addMember(teamID, email string) {
	if m.memberships[teamID] == nil {
		m.memberships[teamID] = make(map[string]bool)
	}
	m.memberships[teamID][email] = true
}

func (m *mockTenancy) IsMemberOfTeam(_ context.Context, teamID, email string) (bool, error) {
	m.calls.Add(1)
	return m.memberships[teamID][email], nil
}

func (m *mockTenancy) IsCreator(_ context.Context, orgID, userID string) (bool, error) {
	m.calls.Add(1)
	return m.creators[orgID] == userID, nil
}

func (m *mockTenancy) TeamBelongsToOrg(_ context.Context, orgID, teamID string) (bool, error) {
	m.calls.Add(1)
	owner, ok := m.teams[teamID]
	return ok && owner == orgID, nil
}

func TestEvaluator_TeamMemberGranted(t *testing.T) {
	tenancy := newMockTenancy()
	tenancy.addTeam("org-1", "team-1")
	tenancy.addMember("team-1", "alice@example.com")
	e := NewEvaluator(tenancy, 0)

	access, err := e.Evaluate(context.Background(), "user-1", "alice@example.com", "org-1", "team-1")
	require.NoError(t, err)
	assert.True(t, access.IsTeamMember)
	assert.False(t, access.IsOrgCreator)
	assert.True(t, access.Granted())
}

func TestEvaluator_OrgCreatorGrantedWithoutMembership(t *testing.T) {
	tenancy := newMockTenancy()
	tenancy.addTeam("org-1", "team-1")
	tenancy.creators["org-1"] = "user-1"
	e := NewEvaluator(tenancy, 0)

	access, err := e.Evaluate(context.Background(), "user-1", "alice@example.com", "org-1", "team-1")
	require.NoError(t, err)
	assert.False(t, access.IsTeamMember)
	assert.True(t, access.IsOrgCreator)
	assert.True(t, access.Granted())
}

func TestEvaluator_StrangerDenied(t *testing.T) {
	tenancy := newMockTenancy()
	tenancy.addTeam("org-1", "team-1")
	tenancy.addMember("team-1", "alice@example.com")
	tenancy.creators["org-1"] = "user-1"
	e := NewEvaluator(tenancy, 0)

	access, err := e.Evaluate(context.Background(), "user-2", "bob@example.com", "org-1", "team-1")
	require.NoError(t, err)
	assert.False(t, access.Granted())
}

func TestEvaluator_EmptyTeamSkipsMembershipLookup(t *testing.T) {
	tenancy := newMockTenancy()
	tenancy.creators["org-1"] = "user-1"
	e := NewEvaluator(tenancy, 0)

	access, err := e.Evaluate(context.Background(), "user-1", "alice@example.com", "org-1", "")
	require.NoError(t, err)
	assert.True(t, access.IsOrgCreator)
	assert.False(t, access.IsTeamMember)
	assert.EqualValues(t, 1, tenancy.calls.Load())
}

func TestEvaluator_CachesDecisions(t *testing.T) {
	tenancy := newMockTenancy()
	tenancy.addTeam("org-1", "team-1")
	tenancy.addMember("team-1", "alice@example.com")
	e := NewEvaluator(tenancy, time.Minute)

	for i := 0; i < 3; i++ {
		access, err := e.Evaluate(context.Background(), "user-1", "alice@example.com", "org-1", "team-1")
		require.NoError(t, err)
		assert.True(t, access.Granted())
	}

	// First evaluation does all three lookups, the rest hit the cache.
	assert.EqualValues(t, 3, tenancy.calls.Load())
}

func TestEvaluator_InvalidateDropsCache(t *testing.T) {
	tenancy := newMockTenancy()
	tenancy.addTeam("org-1", "team-1")
	tenancy.addMember("team-1", "alice@example.com")
	e := NewEvaluator(tenancy, time.Minute)

	_, err := e.Evaluate(context.Background(), "user-1", "alice@example.com", "org-1", "team-1")
	require.NoError(t, err)

	// Revoke the membership and invalidate; the next evaluation must see
	// the new state instead of the cached grant.
	delete(tenancy.memberships["team-1"], "alice@example.com")
	e.Invalidate()

	access, err := e.Evaluate(context.Background(), "user-1", "alice@example.com", "org-1", "team-1")
	require.NoError(t, err)
	assert.False(t, access.Granted())
}

func TestEvaluator_CreatorDeniedOnForeignTeam(t *testing.T) {
	tenancy := newMockTenancy()
	tenancy.creators["org-1"] = "user-1"
	tenancy.addTeam("org-2", "team-2")
	e := NewEvaluator(tenancy, 0)

	// user-1 created org-1 but team-2 belongs to org-2. Naming team-2
	// under org-1 in the URL must not grant anything.
	access, err := e.Evaluate(context.Background(), "user-1", "alice@example.com", "org-1", "team-2")
	require.NoError(t, err)
	assert.False(t, access.Granted())
	assert.False(t, access.IsOrgCreator)
}

func TestEvaluator_MemberDeniedUnderMismatchedOrg(t *testing.T) {
	tenancy := newMockTenancy()
	tenancy.addTeam("org-2", "team-2")
	tenancy.addMember("team-2", "alice@example.com")
	e := NewEvaluator(tenancy, 0)

	access, err := e.Evaluate(context.Background(), "user-1", "alice@example.com", "org-1", "team-2")
	require.NoError(t, err)
	assert.False(t, access.Granted())
}

func TestEvaluator_UnknownTeamDenied(t *testing.T) {
	tenancy := newMockTenancy()
	tenancy.creators["org-1"] = "user-1"
	e := NewEvaluator(tenancy, 0)

	access, err := e.Evaluate(context.Background(), "user-1", "alice@example.com", "org-1", "team-missing")
	require.NoError(t, err)
	assert.False(t, access.Granted())
}
