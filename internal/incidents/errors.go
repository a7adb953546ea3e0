package incidents

import "errors"

// Incidents errors.
var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrUnknownService   = errors.New("linked service not found")
	ErrNoServices       = errors.New("incident must affect at least one service")
	ErrInvalidStatus    = errors.New("invalid incident status")
	ErrInvalidImpact    = errors.New("invalid incident impact")
)
