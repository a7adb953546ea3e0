// Package tenancy provides HTTP handlers and business logic for
// organizations, teams and team membership.
package tenancy

import (
	"context"
	"errors"
	"strings"

	"github.com/pulsepage/pulsepage/internal/domain"
	"golang.org/x/text/cases"
)

// Service implements tenancy business logic.
type Service struct {
	repo   Repository
	folder cases.Caser
}

// NewService creates a new tenancy service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		folder: cases.Fold(),
	}
}

// CreateOrganization creates an organization owned by creatorID.
// Uniqueness of the name is case-insensitive and enforced by the store,
// so concurrent creations of the same name cannot both succeed.
func (s *Service) CreateOrganization(ctx context.Context, name, creatorID string) (*domain.Organization, error) {
	org := &domain.Organization{
		Name:      strings.TrimSpace(name),
		CreatedBy: creatorID,
	}

	if err := s.repo.CreateOrganization(ctx, org, s.NameKey(org.Name)); err != nil {
		return nil, err
	}
	return org, nil
}

// NameKey returns the canonical case-folded form of an organization name
// used for uniqueness checks.
func (s *Service) NameKey(name string) string {
	return s.folder.String(strings.TrimSpace(name))
}

// ListOrganizations returns all organizations created by creatorID.
func (s *Service) ListOrganizations(ctx context.Context, creatorID string) ([]domain.Organization, error) {
	return s.repo.ListOrganizationsByCreator(ctx, creatorID)
}

// GetOrganization returns the organization with the given id.
func (s *Service) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	return s.repo.GetOrganizationByID(ctx, id)
}

// IsCreator reports whether userID created the organization.
func (s *Service) IsCreator(ctx context.Context, orgID, userID string) (bool, error) {
	return s.repo.OrganizationCreatedBy(ctx, orgID, userID)
}

// MembershipLookup resolves the (organization, team) pair for an email.
// A single joined query is used, so a membership whose team vanished
// concurrently resolves to an empty membership rather than an error.
func (s *Service) MembershipLookup(ctx context.Context, email string) (domain.Membership, error) {
	return s.repo.GetMembershipByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// CreateTeam creates a team in the organization.
func (s *Service) CreateTeam(ctx context.Context, orgID, name string) (*domain.Team, error) {
	if _, err := s.repo.GetOrganizationByID(ctx, orgID); err != nil {
		return nil, err
	}

	team := &domain.Team{
		Name:           strings.TrimSpace(name),
		OrganizationID: orgID,
		Members:        make([]domain.TeamMember, 0),
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// ListTeams returns all teams in the organization with their members.
func (s *Service) ListTeams(ctx context.Context, orgID string) ([]domain.Team, error) {
	return s.repo.ListTeamsByOrganization(ctx, orgID)
}

// GetTeam returns the team with the given id, scoped to the organization.
func (s *Service) GetTeam(ctx context.Context, orgID, teamID string) (*domain.Team, error) {
	team, err := s.repo.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.OrganizationID != orgID {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

// UpdateTeam renames a team. The organization link is immutable.
func (s *Service) UpdateTeam(ctx context.Context, orgID, teamID, name string) (*domain.Team, error) {
	team, err := s.GetTeam(ctx, orgID, teamID)
	if err != nil {
		return nil, err
	}

	team.Name = strings.TrimSpace(name)
	if err := s.repo.UpdateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// AddMember adds a user email to a team roster.
func (s *Service) AddMember(ctx context.Context, teamID, email string, role domain.TeamRole) (*domain.TeamMember, error) {
	if role == "" {
		role = domain.TeamRoleMember
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	if _, err := s.repo.GetTeamByID(ctx, teamID); err != nil {
		return nil, err
	}

	member := &domain.TeamMember{
		TeamID:    teamID,
		UserEmail: strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// UpdateMemberRole changes a member's role. The member must belong to
// the given team; a memberID from another team is not found.
func (s *Service) UpdateMemberRole(ctx context.Context, teamID, memberID string, role domain.TeamRole) (*domain.TeamMember, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	return s.repo.UpdateMemberRole(ctx, teamID, memberID, role)
}

// RemoveMember deletes a member from a team roster. The member must
// belong to the given team; a memberID from another team is not found.
func (s *Service) RemoveMember(ctx context.Context, teamID, memberID string) error {
	return s.repo.RemoveMember(ctx, teamID, memberID)
}

// TeamBelongsToOrg reports whether the team exists and is owned by the
// organization. Access decisions use it so a creator's rights never reach
// into another organization's teams.
func (s *Service) TeamBelongsToOrg(ctx context.Context, orgID, teamID string) (bool, error) {
	team, err := s.repo.GetTeamByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, ErrTeamNotFound) {
			return false, nil
		}
		return false, err
	}
	return team.OrganizationID == orgID, nil
}

// IsMemberOfTeam reports whether a membership row exists for exactly this
// (team, email) pair.
func (s *Service) IsMemberOfTeam(ctx context.Context, teamID, email string) (bool, error) {
	return s.repo.IsMemberOfTeam(ctx, teamID, strings.ToLower(strings.TrimSpace(email)))
}
