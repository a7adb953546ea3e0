package catalog

import (
	"context"

	"github.com/pulsepage/pulsepage/internal/domain"
)

// Repository defines the interface for catalog data operations.
type Repository interface {
	Create(ctx context.Context, service *domain.Service) error
	GetByID(ctx context.Context, id string) (*domain.Service, error)
	ListByTeam(ctx context.Context, teamID string) ([]domain.Service, error)
	ListByOrganization(ctx context.Context, orgID string) ([]domain.Service, error)
	Update(ctx context.Context, service *domain.Service) error
	UpdateStatus(ctx context.Context, id string, status domain.ServiceStatus) (*domain.Service, error)
	Delete(ctx context.Context, id string) error
}
