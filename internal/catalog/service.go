package catalog

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

// Service implements catalog business logic.
type Service struct {
	repo Repository
	feed realtime.Publisher
}

// NewService creates a new catalog service.
func NewService(repo Repository, feed realtime.Publisher) *Service {
	return &Service{repo: repo, feed: feed}
}

// CreateInput carries the fields for creating a service.
type CreateInput struct {
	Name         string
	Description  string
	Status       domain.ServiceStatus
	DisplayOrder int
}

// Create creates a service owned by the team.
func (s *Service) Create(ctx context.Context, orgID, teamID string, in CreateInput) (*domain.Service, error) {
	if in.Status == "" {
		in.Status = domain.ServiceStatusOperational
	}
	if !in.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	service := &domain.Service{
		OrganizationID: orgID,
		TeamID:         teamID,
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		CurrentStatus:  in.Status,
		DisplayOrder:   in.DisplayOrder,
	}
	if err := s.repo.Create(ctx, service); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.ChangeOpInsert, service)
	return service, nil
}

// ListByTeam returns a team's services with their incidents embedded,
// ordered by display order.
func (s *Service) ListByTeam(ctx context.Context, teamID string) ([]domain.Service, error) {
	return s.repo.ListByTeam(ctx, teamID)
}

// ListByOrganization returns all services of an organization with their
// incidents embedded. This backs the public status page and needs no
// authentication.
func (s *Service) ListByOrganization(ctx context.Context, orgID string) ([]domain.Service, error) {
	return s.repo.ListByOrganization(ctx, orgID)
}

// Get returns the service with the given id, scoped to the team.
func (s *Service) Get(ctx context.Context, teamID, id string) (*domain.Service, error) {
	service, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if service.TeamID != teamID {
		return nil, ErrServiceNotFound
	}
	return service, nil
}

// UpdateInput carries optional fields for a partial service update.
// Nil fields are left unchanged.
type UpdateInput struct {
	Name         *string
	Description  *string
	DisplayOrder *int
}

// Update applies a partial update to a service's descriptive fields.
// Status changes go through UpdateStatus.
func (s *Service) Update(ctx context.Context, teamID, id string, in UpdateInput) (*domain.Service, error) {
	service, err := s.Get(ctx, teamID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		service.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		service.Description = strings.TrimSpace(*in.Description)
	}
	if in.DisplayOrder != nil {
		service.DisplayOrder = *in.DisplayOrder
	}

	if err := s.repo.Update(ctx, service); err != nil {
		return nil, err
	}
	return service, nil
}

// UpdateStatus sets a service's current status and publishes the change.
// The store guarantees updated_at moves strictly forward even when the
// wall clock does not, so status history keeps a total order.
func (s *Service) UpdateStatus(ctx context.Context, teamID, id string, status domain.ServiceStatus) (*domain.Service, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	if _, err := s.Get(ctx, teamID, id); err != nil {
		return nil, err
	}

	service, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.ChangeOpUpdate, service)
	return service, nil
}

// Delete removes a service. Incident links are removed with it.
func (s *Service) Delete(ctx context.Context, teamID, id string) error {
	service, err := s.Get(ctx, teamID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, domain.ChangeOpDelete, service)
	return nil
}

// publish emits a change event for the service row. The write is already
// committed, so a failed publish is logged and swallowed.
func (s *Service) publish(ctx context.Context, op domain.ChangeOp, service *domain.Service) {
	row, err := json.Marshal(service)
	if err != nil {
		slog.Error("marshal service change", "service_id", service.ID, "error", err)
		return
	}

	change := domain.Change{
		Table:          domain.ChangeTableServices,
		Op:             op,
		OrganizationID: service.OrganizationID,
		TeamID:         service.TeamID,
		Row:            row,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.feed.Publish(ctx, change); err != nil {
		slog.Error("publish service change", "service_id", service.ID, "op", op, "error", err)
		return
	}
	metrics.RealtimeChangesPublished.WithLabelValues(string(change.Table), string(change.Op)).Inc()
}
