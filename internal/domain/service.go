package domain

import "time"

// ServiceStatus represents the operational status of a service.
type ServiceStatus string

// Service statuses.
const (
	ServiceStatusOperational   ServiceStatus = "operational"
	ServiceStatusDegraded      ServiceStatus = "degraded"
	ServiceStatusPartialOutage ServiceStatus = "partial_outage"
	ServiceStatusMajorOutage   ServiceStatus = "major_outage"
)

// IsValid checks if the service status is valid.
func (s ServiceStatus) IsValid() bool {
	switch s {
	case ServiceStatusOperational, ServiceStatusDegraded,
		ServiceStatusPartialOutage, ServiceStatusMajorOutage:
		return true
	}
	return false
}

// Service represents a monitored unit of functionality owned by a team.
type Service struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	TeamID         string        `json:"team_id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	CurrentStatus  ServiceStatus `json:"current_status"`
	DisplayOrder   int           `json:"display_order"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Incidents      []Incident    `json:"incidents,omitempty"`
}
