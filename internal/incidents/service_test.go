package incidents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing, mirroring the
// store's update-propagation semantics.
type mockRepository struct {
	incidents    map[string]*domain.Incident
	serviceTeams map[string]string // serviceID -> owning teamID
	nextID       int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		incidents:    make(map[string]*domain.Incident),
		serviceTeams: make(map[string]string),
	}
}

func (m *mockRepository) Create(_ context.Context, incident *domain.Incident) error {
	// The store only links services owned by the incident's team.
	for _, serviceID := range incident.ServiceIDs {
		if team, ok := m.serviceTeams[serviceID]; ok && team != incident.TeamID {
			return ErrUnknownService
		}
	}
	m.nextID++
	incident.ID = fmt.Sprintf("inc-%d", m.nextID)
	now := time.Now().UTC()
	incident.CreatedAt = now
	incident.UpdatedAt = now
	if incident.Status == domain.IncidentStatusResolved {
		resolved := now
		incident.ResolvedAt = &resolved
	}
	stored := *incident
	m.incidents[incident.ID] = &stored
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	if incident, ok := m.incidents[id]; ok {
		copied := *incident
		return &copied, nil
	}
	return nil, ErrIncidentNotFound
}

func (m *mockRepository) ListByTeam(_ context.Context, teamID string, filter Filter) ([]domain.Incident, error) {
	out := make([]domain.Incident, 0)
	for _, incident := range m.incidents {
		if incident.TeamID != teamID {
			continue
		}
		if filter.Status != nil && incident.Status != *filter.Status {
			continue
		}
		out = append(out, *incident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepository) AddUpdate(_ context.Context, update *domain.IncidentUpdate) (*domain.Incident, error) {
	incident, ok := m.incidents[update.IncidentID]
	if !ok {
		return nil, ErrIncidentNotFound
	}

	m.nextID++
	update.ID = fmt.Sprintf("upd-%d", m.nextID)
	update.CreatedAt = time.Now().UTC()
	incident.Updates = append(incident.Updates, *update)

	incident.Status = update.Status
	incident.UpdatedAt = update.CreatedAt
	if update.Status == domain.IncidentStatusResolved {
		resolved := update.CreatedAt
		incident.ResolvedAt = &resolved
	} else {
		incident.ResolvedAt = nil
	}

	copied := *incident
	return &copied, nil
}

// recordingPublisher captures published change events.
type recordingPublisher struct {
	changes []domain.Change
}

func (p *recordingPublisher) Publish(_ context.Context, change domain.Change) error {
	p.changes = append(p.changes, change)
	return nil
}

func TestService_Create_DefaultsAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(newMockRepository(), pub)

	incident, err := svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title:      "  Database down  ",
		ServiceIDs: []string{"svc-1", "svc-2", "svc-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Database down", incident.Title)
	assert.Equal(t, domain.IncidentStatusInvestigating, incident.Status)
	assert.Equal(t, domain.IncidentImpactMinor, incident.Impact)
	assert.Equal(t, []string{"svc-1", "svc-2"}, incident.ServiceIDs)
	assert.Nil(t, incident.ResolvedAt)

	require.Len(t, pub.changes, 1)
	change := pub.changes[0]
	assert.Equal(t, domain.ChangeTableIncidents, change.Table)
	assert.Equal(t, domain.ChangeOpInsert, change.Op)
	assert.Equal(t, "team-1", change.TeamID)

	var row domain.Incident
	require.NoError(t, json.Unmarshal(change.Row, &row))
	assert.Equal(t, "Database down", row.Title)
}

func TestService_Create_RequiresServices(t *testing.T) {
	svc := NewService(newMockRepository(), &recordingPublisher{})

	_, err := svc.Create(context.Background(), "org-1", "team-1", CreateInput{Title: "No links"})
	assert.ErrorIs(t, err, ErrNoServices)
}

func TestService_Create_RejectsForeignService(t *testing.T) {
	repo := newMockRepository()
	repo.serviceTeams["svc-theirs"] = "team-2"
	pub := &recordingPublisher{}
	svc := NewService(repo, pub)

	// A service id owned by another team must not attach, and nothing
	// is published for the failed report.
	_, err := svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title:      "Checkout down",
		ServiceIDs: []string{"svc-theirs"},
	})
	assert.ErrorIs(t, err, ErrUnknownService)
	assert.Empty(t, pub.changes)
}

func TestService_Create_RejectsUnknownStatusAndImpact(t *testing.T) {
	svc := NewService(newMockRepository(), &recordingPublisher{})

	_, err := svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title: "Bad", Status: "exploded", ServiceIDs: []string{"svc-1"},
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title: "Bad", Impact: "catastrophic", ServiceIDs: []string{"svc-1"},
	})
	assert.ErrorIs(t, err, ErrInvalidImpact)
}

func TestService_AddUpdate_PropagatesStatusToIncident(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(newMockRepository(), pub)

	created, err := svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title: "Database down", ServiceIDs: []string{"svc-1"},
	})
	require.NoError(t, err)

	incident, err := svc.AddUpdate(context.Background(), "team-1", created.ID, AddUpdateInput{
		Message: "Failover in progress",
		Status:  domain.IncidentStatusIdentified,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusIdentified, incident.Status)
	assert.Nil(t, incident.ResolvedAt)
	require.Len(t, incident.Updates, 1)
	assert.Equal(t, "Failover in progress", incident.Updates[0].Message)

	require.Len(t, pub.changes, 2)
	change := pub.changes[1]
	assert.Equal(t, domain.ChangeTableIncidentUpdates, change.Table)
	assert.Equal(t, domain.ChangeOpInsert, change.Op)

	var row domain.IncidentUpdate
	require.NoError(t, json.Unmarshal(change.Row, &row))
	assert.Equal(t, domain.IncidentStatusIdentified, row.Status)
}

func TestService_AddUpdate_ResolvedSetsResolvedAtAndReopenClearsIt(t *testing.T) {
	svc := NewService(newMockRepository(), &recordingPublisher{})

	created, err := svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title: "Database down", ServiceIDs: []string{"svc-1"},
	})
	require.NoError(t, err)

	resolved, err := svc.AddUpdate(context.Background(), "team-1", created.ID, AddUpdateInput{
		Message: "Fixed", Status: domain.IncidentStatusResolved,
	})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	reopened, err := svc.AddUpdate(context.Background(), "team-1", created.ID, AddUpdateInput{
		Message: "It came back", Status: domain.IncidentStatusMonitoring,
	})
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedAt)
	assert.Equal(t, domain.IncidentStatusMonitoring, reopened.Status)
	assert.Len(t, reopened.Updates, 2)
}

func TestService_AddUpdate_RejectsInvalidStatus(t *testing.T) {
	svc := NewService(newMockRepository(), &recordingPublisher{})

	created, err := svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title: "Database down", ServiceIDs: []string{"svc-1"},
	})
	require.NoError(t, err)

	_, err = svc.AddUpdate(context.Background(), "team-1", created.ID, AddUpdateInput{
		Message: "??", Status: "unknown",
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestService_Get_ScopedToTeam(t *testing.T) {
	svc := NewService(newMockRepository(), &recordingPublisher{})

	created, err := svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title: "Database down", ServiceIDs: []string{"svc-1"},
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "team-2", created.ID)
	assert.ErrorIs(t, err, ErrIncidentNotFound)

	// AddUpdate goes through the same scope check.
	_, err = svc.AddUpdate(context.Background(), "team-2", created.ID, AddUpdateInput{
		Message: "hi", Status: domain.IncidentStatusMonitoring,
	})
	assert.ErrorIs(t, err, ErrIncidentNotFound)
}

func TestService_ListByTeam_StatusFilter(t *testing.T) {
	svc := NewService(newMockRepository(), &recordingPublisher{})

	_, err := svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title: "One", ServiceIDs: []string{"svc-1"},
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "org-1", "team-1", CreateInput{
		Title: "Two", Status: domain.IncidentStatusResolved, ServiceIDs: []string{"svc-1"},
	})
	require.NoError(t, err)

	all, err := svc.ListByTeam(context.Background(), "team-1", Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := domain.IncidentStatusResolved
	filtered, err := svc.ListByTeam(context.Background(), "team-1", Filter{Status: &status})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Two", filtered[0].Title)

	bad := domain.IncidentStatus("nope")
	_, err = svc.ListByTeam(context.Background(), "team-1", Filter{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
