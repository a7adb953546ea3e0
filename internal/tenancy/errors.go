package tenancy

import "errors"

// Tenancy errors.
var (
	ErrOrgNotFound    = errors.New("organization not found")
	ErrNameTaken      = errors.New("an organization with this name already exists")
	ErrTeamNotFound   = errors.New("team not found")
	ErrMemberNotFound = errors.New("team member not found")
	ErrMemberExists   = errors.New("user is already a member of this team")
	ErrInvalidRole    = errors.New("invalid team role")
)
