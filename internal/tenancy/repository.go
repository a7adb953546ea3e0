package tenancy

import (
	"context"

	"github.com/pulsepage/pulsepage/internal/domain"
)

// Repository defines the interface for tenancy data operations.
type Repository interface {
	CreateOrganization(ctx context.Context, org *domain.Organization, nameKey string) error
	GetOrganizationByID(ctx context.Context, id string) (*domain.Organization, error)
	ListOrganizationsByCreator(ctx context.Context, creatorID string) ([]domain.Organization, error)
	OrganizationCreatedBy(ctx context.Context, orgID, userID string) (bool, error)

	GetMembershipByEmail(ctx context.Context, email string) (domain.Membership, error)

	CreateTeam(ctx context.Context, team *domain.Team) error
	GetTeamByID(ctx context.Context, id string) (*domain.Team, error)
	ListTeamsByOrganization(ctx context.Context, orgID string) ([]domain.Team, error)
	UpdateTeam(ctx context.Context, team *domain.Team) error

	AddMember(ctx context.Context, member *domain.TeamMember) error
	GetMemberByID(ctx context.Context, id string) (*domain.TeamMember, error)
	UpdateMemberRole(ctx context.Context, teamID, memberID string, role domain.TeamRole) (*domain.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, memberID string) error
	IsMemberOfTeam(ctx context.Context, teamID, email string) (bool, error)
}
