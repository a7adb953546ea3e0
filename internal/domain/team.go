package domain

import "time"

// TeamRole represents a member's role within a team.
type TeamRole string

// Team roles.
const (
	TeamRoleMember TeamRole = "member"
	TeamRoleAdmin  TeamRole = "admin"
)

// IsValid checks if the team role is valid.
func (r TeamRole) IsValid() bool {
	return r == TeamRoleMember || r == TeamRoleAdmin
}

// Team is a sub-unit of an organization that owns services and has its
// own membership roster. OrganizationID is immutable.
type Team struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	OrganizationID string       `json:"organization_id"`
	Members        []TeamMember `json:"members"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TeamMember links a user email to a team. Membership is keyed by email
// rather than user id so members can be invited before they register.
type TeamMember struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	UserEmail string    `json:"user_email"`
	Role      TeamRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
