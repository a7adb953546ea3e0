package incidents

import (
	"context"

	"github.com/pulsepage/pulsepage/internal/domain"
)

// Repository defines the interface for incident data operations.
// Create and AddUpdate are transactional: the incident row and its
// service links (respectively the update row and the parent mutation)
// commit together or not at all.
type Repository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	ListByTeam(ctx context.Context, teamID string, filter Filter) ([]domain.Incident, error)
	AddUpdate(ctx context.Context, update *domain.IncidentUpdate) (*domain.Incident, error)
}

// Filter represents filter criteria for listing incidents.
type Filter struct {
	Status *domain.IncidentStatus
}
