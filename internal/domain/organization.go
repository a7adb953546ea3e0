package domain

import "time"

// Organization is the top-level tenant. CreatedBy is immutable after
// creation and grants implicit admin rights over the organization.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership is the resolved (organization, team) pair for a user email.
// Both ids are empty when the user belongs to no team.
type Membership struct {
	OrganizationID string `json:"organization_id"`
	TeamID         string `json:"team_id"`
}

// HasTeam reports whether the membership resolves to a team.
func (m Membership) HasTeam() bool {
	return m.TeamID != ""
}
