package domain

import "time"

// IncidentStatus represents the lifecycle status of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusIdentified    IncidentStatus = "identified"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusInvestigating, IncidentStatusIdentified,
		IncidentStatusMonitoring, IncidentStatusResolved:
		return true
	}
	return false
}

// IncidentImpact represents the impact level of an incident.
type IncidentImpact string

// Impact levels.
const (
	IncidentImpactMinor    IncidentImpact = "minor"
	IncidentImpactMajor    IncidentImpact = "major"
	IncidentImpactCritical IncidentImpact = "critical"
)

// IsValid checks if the incident impact is valid.
func (i IncidentImpact) IsValid() bool {
	return i == IncidentImpactMinor || i == IncidentImpactMajor || i == IncidentImpactCritical
}

// Incident is a reported disruption affecting one or more services.
// ResolvedAt is non-nil iff Status is resolved.
type Incident struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	TeamID         string           `json:"team_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Status         IncidentStatus   `json:"status"`
	Impact         IncidentImpact   `json:"impact"`
	ServiceIDs     []string         `json:"service_ids"`
	Updates        []IncidentUpdate `json:"updates,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	ResolvedAt     *time.Time       `json:"resolved_at"`
}

// IncidentUpdate is an append-only entry in an incident's update log.
type IncidentUpdate struct {
	ID         string         `json:"id"`
	IncidentID string         `json:"incident_id"`
	TeamID     string         `json:"team_id"`
	Message    string         `json:"message"`
	Status     IncidentStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}
