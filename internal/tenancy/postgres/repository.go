// Package postgres provides PostgreSQL implementation of the tenancy repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/pulsepage/pulsepage/internal/tenancy"
)

const uniqueViolation = "23505"

// Repository implements the tenancy.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateOrganization inserts an organization row. The name_key column
// carries a unique constraint, so duplicate names fail here atomically.
func (r *Repository) CreateOrganization(ctx context.Context, org *domain.Organization, nameKey string) error {
	query := `
		INSERT INTO organizations (name, name_key, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, org.Name, nameKey, org.CreatedBy).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return tenancy.ErrNameTaken
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetOrganizationByID retrieves an organization by id.
func (r *Repository) GetOrganizationByID(ctx context.Context, id string) (*domain.Organization, error) {
	query := `
		SELECT id, name, created_by, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	var org domain.Organization
	err := r.db.QueryRow(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.CreatedBy,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenancy.ErrOrgNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// ListOrganizationsByCreator lists organizations created by a user,
// newest first.
func (r *Repository) ListOrganizationsByCreator(ctx context.Context, creatorID string) ([]domain.Organization, error) {
	query := `
		SELECT id, name, created_by, created_at, updated_at
		FROM organizations
		WHERE created_by = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]domain.Organization, 0)
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// OrganizationCreatedBy reports whether the organization exists and was
// created by userID.
func (r *Repository) OrganizationCreatedBy(ctx context.Context, orgID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM organizations WHERE id = $1 AND created_by = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, orgID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check organization creator: %w", err)
	}
	return exists, nil
}

// GetMembershipByEmail resolves the (organization, team) pair for an email
// with a single joined query. With several memberships the oldest wins.
func (r *Repository) GetMembershipByEmail(ctx context.Context, email string) (domain.Membership, error) {
	query := `
		SELECT t.organization_id, tm.team_id
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE tm.user_email = $1
		ORDER BY tm.created_at ASC
		LIMIT 1
	`
	var m domain.Membership
	err := r.db.QueryRow(ctx, query, email).Scan(&m.OrganizationID, &m.TeamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Membership{}, nil
		}
		return domain.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// CreateTeam inserts a team row.
func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	query := `
		INSERT INTO teams (name, organization_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, team.Name, team.OrganizationID).
		Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// GetTeamByID retrieves a team with its members.
func (r *Repository) GetTeamByID(ctx context.Context, id string) (*domain.Team, error) {
	query := `
		SELECT id, name, organization_id, created_at, updated_at
		FROM teams
		WHERE id = $1
	`
	var team domain.Team
	err := r.db.QueryRow(ctx, query, id).Scan(
		&team.ID,
		&team.Name,
		&team.OrganizationID,
		&team.CreatedAt,
		&team.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenancy.ErrTeamNotFound
		}
		return nil, fmt.Errorf("get team: %w", err)
	}

	members, err := r.listMembers(ctx, []string{team.ID})
	if err != nil {
		return nil, err
	}
	team.Members = members[team.ID]
	if team.Members == nil {
		team.Members = make([]domain.TeamMember, 0)
	}
	return &team, nil
}

// ListTeamsByOrganization lists an organization's teams with members.
func (r *Repository) ListTeamsByOrganization(ctx context.Context, orgID string) ([]domain.Team, error) {
	query := `
		SELECT id, name, organization_id, created_at, updated_at
		FROM teams
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]domain.Team, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.OrganizationID, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, team)
		ids = append(ids, team.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return teams, nil
	}

	members, err := r.listMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		teams[i].Members = members[teams[i].ID]
		if teams[i].Members == nil {
			teams[i].Members = make([]domain.TeamMember, 0)
		}
	}
	return teams, nil
}

func (r *Repository) listMembers(ctx context.Context, teamIDs []string) (map[string][]domain.TeamMember, error) {
	query := `
		SELECT id, team_id, user_email, role, created_at
		FROM team_members
		WHERE team_id = ANY($1::uuid[])
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	byTeam := make(map[string][]domain.TeamMember)
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserEmail, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		byTeam[m.TeamID] = append(byTeam[m.TeamID], m)
	}
	return byTeam, rows.Err()
}

// UpdateTeam updates a team's name.
func (r *Repository) UpdateTeam(ctx context.Context, team *domain.Team) error {
	query := `
		UPDATE teams
		SET name = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, team.Name, team.ID).Scan(&team.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenancy.ErrTeamNotFound
		}
		return fmt.Errorf("update team: %w", err)
	}
	return nil
}

// AddMember inserts a team member row.
func (r *Repository) AddMember(ctx context.Context, member *domain.TeamMember) error {
	query := `
		INSERT INTO team_members (team_id, user_email, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, member.TeamID, member.UserEmail, member.Role).
		Scan(&member.ID, &member.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return tenancy.ErrMemberExists
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// GetMemberByID retrieves a team member by id.
func (r *Repository) GetMemberByID(ctx context.Context, id string) (*domain.TeamMember, error) {
	query := `
		SELECT id, team_id, user_email, role, created_at
		FROM team_members
		WHERE id = $1
	`
	var m domain.TeamMember
	err := r.db.QueryRow(ctx, query, id).Scan(&m.ID, &m.TeamID, &m.UserEmail, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenancy.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// UpdateMemberRole changes a member's role. The member must belong to
// the given team.
func (r *Repository) UpdateMemberRole(ctx context.Context, teamID, id string, role domain.TeamRole) (*domain.TeamMember, error) {
	query := `
		UPDATE team_members
		SET role = $1
		WHERE id = $2 AND team_id = $3
		RETURNING id, team_id, user_email, role, created_at
	`
	var m domain.TeamMember
	err := r.db.QueryRow(ctx, query, role, id, teamID).Scan(&m.ID, &m.TeamID, &m.UserEmail, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenancy.ErrMemberNotFound
		}
		return nil, fmt.Errorf("update member role: %w", err)
	}
	return &m, nil
}

// RemoveMember deletes a team member row. The member must belong to the
// given team.
func (r *Repository) RemoveMember(ctx context.Context, teamID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM team_members WHERE id = $1 AND team_id = $2`, id, teamID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenancy.ErrMemberNotFound
	}
	return nil
}

// IsMemberOfTeam reports whether a membership row exists for exactly this
// (team, email) pair.
func (r *Repository) IsMemberOfTeam(ctx context.Context, teamID, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM team_members WHERE team_id = $1 AND user_email = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, teamID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check team membership: %w", err)
	}
	return exists, nil
}
