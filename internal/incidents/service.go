// Package incidents provides HTTP handlers and business logic for
// incidents and their update logs.
package incidents

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/pulsepage/pulsepage/internal/pkg/metrics"
	"github.com/pulsepage/pulsepage/internal/realtime"
)

// Service implements incidents business logic.
type Service struct {
	repo Repository
	feed realtime.Publisher
}

// NewService creates a new incidents service.
func NewService(repo Repository, feed realtime.Publisher) *Service {
	return &Service{repo: repo, feed: feed}
}

// CreateInput carries the fields for reporting an incident.
type CreateInput struct {
	Title       string
	Description string
	Status      domain.IncidentStatus
	Impact      domain.IncidentImpact
	ServiceIDs  []string
}

// Create reports an incident affecting one or more services. The incident
// row and its service links are written in one transaction.
func (s *Service) Create(ctx context.Context, orgID, teamID string, in CreateInput) (*domain.Incident, error) {
	if in.Status == "" {
		in.Status = domain.IncidentStatusInvestigating
	}
	if !in.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if in.Impact == "" {
		in.Impact = domain.IncidentImpactMinor
	}
	if !in.Impact.IsValid() {
		return nil, ErrInvalidImpact
	}
	if len(in.ServiceIDs) == 0 {
		return nil, ErrNoServices
	}

	incident := &domain.Incident{
		OrganizationID: orgID,
		TeamID:         teamID,
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Status:         in.Status,
		Impact:         in.Impact,
		ServiceIDs:     dedupe(in.ServiceIDs),
		Updates:        make([]domain.IncidentUpdate, 0),
	}
	if err := s.repo.Create(ctx, incident); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.ChangeTableIncidents, domain.ChangeOpInsert, incident.OrganizationID, incident.TeamID, incident)
	return incident, nil
}

// ListByTeam returns a team's incidents, newest first, with service links
// and the update log embedded.
func (s *Service) ListByTeam(ctx context.Context, teamID string, filter Filter) ([]domain.Incident, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListByTeam(ctx, teamID, filter)
}

// Get returns the incident with the given id, scoped to the team.
func (s *Service) Get(ctx context.Context, teamID, id string) (*domain.Incident, error) {
	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if incident.TeamID != teamID {
		return nil, ErrIncidentNotFound
	}
	return incident, nil
}

// AddUpdateInput carries the fields for appending an incident update.
type AddUpdateInput struct {
	Message string
	Status  domain.IncidentStatus
}

// AddUpdate appends an entry to the incident's update log and moves the
// incident to the update's status, in one transaction. resolved_at is set
// when the new status is resolved and cleared otherwise, so a reopened
// incident loses its resolution timestamp.
func (s *Service) AddUpdate(ctx context.Context, teamID, incidentID string, in AddUpdateInput) (*domain.Incident, error) {
	if !in.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	if _, err := s.Get(ctx, teamID, incidentID); err != nil {
		return nil, err
	}

	update := &domain.IncidentUpdate{
		IncidentID: incidentID,
		TeamID:     teamID,
		Message:    strings.TrimSpace(in.Message),
		Status:     in.Status,
	}
	incident, err := s.repo.AddUpdate(ctx, update)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.ChangeTableIncidentUpdates, domain.ChangeOpInsert, incident.OrganizationID, incident.TeamID, update)
	return incident, nil
}

// publish emits a change event. The write is already committed, so a
// failed publish is logged and swallowed.
func (s *Service) publish(ctx context.Context, table domain.ChangeTable, op domain.ChangeOp, orgID, teamID string, row any) {
	payload, err := json.Marshal(row)
	if err != nil {
		slog.Error("marshal change row", "table", table, "error", err)
		return
	}

	change := domain.Change{
		Table:          table,
		Op:             op,
		OrganizationID: orgID,
		TeamID:         teamID,
		Row:            payload,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.feed.Publish(ctx, change); err != nil {
		slog.Error("publish change", "table", table, "op", op, "error", err)
		return
	}
	metrics.RealtimeChangesPublished.WithLabelValues(string(table), string(op)).Inc()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
