// Package postgres provides PostgreSQL implementation of the catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulsepage/pulsepage/internal/catalog"
	"github.com/pulsepage/pulsepage/internal/domain"
)

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const serviceColumns = `id, organization_id, team_id, name, description, current_status, display_order, created_at, updated_at`

// Create inserts a service row.
func (r *Repository) Create(ctx context.Context, service *domain.Service) error {
	query := `
		INSERT INTO services (organization_id, team_id, name, description, current_status, display_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		service.OrganizationID,
		service.TeamID,
		service.Name,
		service.Description,
		service.CurrentStatus,
		service.DisplayOrder,
	).Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// GetByID retrieves a service by id, without incidents.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	var service domain.Service
	err := r.db.QueryRow(ctx, query, id).Scan(
		&service.ID,
		&service.OrganizationID,
		&service.TeamID,
		&service.Name,
		&service.Description,
		&service.CurrentStatus,
		&service.DisplayOrder,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &service, nil
}

// ListByTeam lists a team's services with incidents embedded, ordered by
// display order then creation time.
func (r *Repository) ListByTeam(ctx context.Context, teamID string) ([]domain.Service, error) {
	query := `
		SELECT ` + serviceColumns + `
		FROM services
		WHERE team_id = $1
		ORDER BY display_order ASC, created_at ASC
	`
	return r.listWithIncidents(ctx, query, teamID)
}

// ListByOrganization lists an organization's services with incidents
// embedded.
func (r *Repository) ListByOrganization(ctx context.Context, orgID string) ([]domain.Service, error) {
	query := `
		SELECT ` + serviceColumns + `
		FROM services
		WHERE organization_id = $1
		ORDER BY display_order ASC, created_at ASC
	`
	return r.listWithIncidents(ctx, query, orgID)
}

func (r *Repository) listWithIncidents(ctx context.Context, query string, arg any) ([]domain.Service, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var service domain.Service
		if err := rows.Scan(
			&service.ID,
			&service.OrganizationID,
			&service.TeamID,
			&service.Name,
			&service.Description,
			&service.CurrentStatus,
			&service.DisplayOrder,
			&service.CreatedAt,
			&service.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		service.Incidents = make([]domain.Incident, 0)
		services = append(services, service)
		ids = append(ids, service.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return services, nil
	}

	incidents, err := r.incidentsByService(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range services {
		if list, ok := incidents[services[i].ID]; ok {
			services[i].Incidents = list
		}
	}
	return services, nil
}

// incidentsByService loads incidents for a set of services with a single
// joined query, newest first.
func (r *Repository) incidentsByService(ctx context.Context, serviceIDs []string) (map[string][]domain.Incident, error) {
	query := `
		SELECT
			links.service_id,
			i.id, i.organization_id, i.team_id, i.title, i.description,
			i.status, i.impact, i.created_at, i.updated_at, i.resolved_at,
			(
				SELECT array_agg(service_id::text)
				FROM incident_services
				WHERE incident_id = i.id
			) AS service_ids
		FROM incident_services links
		JOIN incidents i ON i.id = links.incident_id
		WHERE links.service_id = ANY($1::uuid[])
		ORDER BY i.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("list incidents for services: %w", err)
	}
	defer rows.Close()

	byService := make(map[string][]domain.Incident)
	for rows.Next() {
		var serviceID string
		var incident domain.Incident
		if err := rows.Scan(
			&serviceID,
			&incident.ID,
			&incident.OrganizationID,
			&incident.TeamID,
			&incident.Title,
			&incident.Description,
			&incident.Status,
			&incident.Impact,
			&incident.CreatedAt,
			&incident.UpdatedAt,
			&incident.ResolvedAt,
			&incident.ServiceIDs,
		); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		byService[serviceID] = append(byService[serviceID], incident)
	}
	return byService, rows.Err()
}

// Update updates a service's descriptive fields.
func (r *Repository) Update(ctx context.Context, service *domain.Service) error {
	query := `
		UPDATE services
		SET name = $1, description = $2, display_order = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		service.Name,
		service.Description,
		service.DisplayOrder,
		service.ID,
	).Scan(&service.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrServiceNotFound
		}
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

// UpdateStatus sets current_status. updated_at is forced strictly past
// its previous value so repeated changes within one clock tick still
// order totally.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.ServiceStatus) (*domain.Service, error) {
	query := `
		UPDATE services
		SET current_status = $1,
		    updated_at = GREATEST(NOW(), updated_at + interval '1 microsecond')
		WHERE id = $2
		RETURNING ` + serviceColumns + `
	`
	var service domain.Service
	err := r.db.QueryRow(ctx, query, status, id).Scan(
		&service.ID,
		&service.OrganizationID,
		&service.TeamID,
		&service.Name,
		&service.Description,
		&service.CurrentStatus,
		&service.DisplayOrder,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, fmt.Errorf("update service status: %w", err)
	}
	return &service, nil
}

// Delete removes a service row. Incident links cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}
