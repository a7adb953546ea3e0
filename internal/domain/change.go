package domain

import (
	"encoding/json"
	"time"
)

// ChangeTable identifies the table a change event originated from.
type ChangeTable string

// Change tables.
const (
	ChangeTableServices        ChangeTable = "services"
	ChangeTableIncidents       ChangeTable = "incidents"
	ChangeTableIncidentUpdates ChangeTable = "incident_updates"
)

// ChangeOp identifies the row-level operation of a change event.
type ChangeOp string

// Change operations.
const (
	ChangeOpInsert ChangeOp = "insert"
	ChangeOpUpdate ChangeOp = "update"
	ChangeOpDelete ChangeOp = "delete"
)

// Change is a row-level change event published to the change feed.
// Row carries the new row as JSON so subscribers stay decoupled from
// the concrete entity types.
type Change struct {
	Table          ChangeTable     `json:"table"`
	Op             ChangeOp        `json:"op"`
	OrganizationID string          `json:"organization_id"`
	TeamID         string          `json:"team_id"`
	Row            json.RawMessage `json:"row"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// NotificationType classifies a display-ready notification.
type NotificationType string

// Notification types.
const (
	NotificationTypeNewIncident    NotificationType = "new_incident"
	NotificationTypeIncidentUpdate NotificationType = "incident_update"
	NotificationTypeServiceStatus  NotificationType = "service_status"
)

// Notification is a display-ready record derived from a change event.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Type      NotificationType `json:"type"`
}
