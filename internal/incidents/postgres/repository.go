// Package postgres provides PostgreSQL implementation of the incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/pulsepage/pulsepage/internal/incidents"
)

const foreignKeyViolation = "23503"

// Repository implements the incidents.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts the incident row and its service links in one
// transaction. A link to a nonexistent service, or to a service owned by
// another team, rolls the whole incident back.
func (r *Repository) Create(ctx context.Context, incident *domain.Incident) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create incident: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO incidents (organization_id, team_id, title, description, status, impact, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6,
			CASE WHEN $5 = 'resolved' THEN NOW() ELSE NULL END)
		RETURNING id, created_at, updated_at, resolved_at
	`
	err = tx.QueryRow(ctx, query,
		incident.OrganizationID,
		incident.TeamID,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.Impact,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt, &incident.ResolvedAt)
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}

	// Linking goes through the services table so a service id from
	// another team never attaches to this incident.
	link := `
		INSERT INTO incident_services (incident_id, service_id)
		SELECT $1, s.id FROM services s WHERE s.id = $2 AND s.team_id = $3
	`
	for _, serviceID := range incident.ServiceIDs {
		tag, err := tx.Exec(ctx, link, incident.ID, serviceID, incident.TeamID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return incidents.ErrUnknownService
			}
			return fmt.Errorf("link incident service: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return incidents.ErrUnknownService
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create incident: %w", err)
	}
	return nil
}

const incidentColumns = `
	i.id, i.organization_id, i.team_id, i.title, i.description,
	i.status, i.impact, i.created_at, i.updated_at, i.resolved_at,
	COALESCE((
		SELECT array_agg(service_id::text)
		FROM incident_services
		WHERE incident_id = i.id
	), '{}') AS service_ids
`

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var incident domain.Incident
	err := row.Scan(
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
	)
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// GetByID retrieves an incident with its service links and update log.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents i WHERE i.id = $1`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}

	updates, err := r.updatesByIncident(ctx, []string{incident.ID})
	if err != nil {
		return nil, err
	}
	incident.Updates = updates[incident.ID]
	if incident.Updates == nil {
		incident.Updates = make([]domain.IncidentUpdate, 0)
	}
	return incident, nil
}

// ListByTeam lists a team's incidents newest first, with service links
// and update logs embedded.
func (r *Repository) ListByTeam(ctx context.Context, teamID string, filter incidents.Filter) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents i WHERE i.team_id = $1`
	args := []any{teamID}

	if filter.Status != nil {
		query += ` AND i.status = $2`
		args = append(args, *filter.Status)
	}
	query += ` ORDER BY i.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Incident, 0)
	ids := make([]string, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incident.Updates = make([]domain.IncidentUpdate, 0)
		list = append(list, *incident)
		ids = append(ids, incident.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return list, nil
	}

	updates, err := r.updatesByIncident(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if u, ok := updates[list[i].ID]; ok {
			list[i].Updates = u
		}
	}
	return list, nil
}

func (r *Repository) updatesByIncident(ctx context.Context, incidentIDs []string) (map[string][]domain.IncidentUpdate, error) {
	query := `
		SELECT id, incident_id, team_id, message, status, created_at
		FROM incident_updates
		WHERE incident_id = ANY($1::uuid[])
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, incidentIDs)
	if err != nil {
		return nil, fmt.Errorf("list incident updates: %w", err)
	}
	defer rows.Close()

	byIncident := make(map[string][]domain.IncidentUpdate)
	for rows.Next() {
		var u domain.IncidentUpdate
		if err := rows.Scan(&u.ID, &u.IncidentID, &u.TeamID, &u.Message, &u.Status, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident update: %w", err)
		}
		byIncident[u.IncidentID] = append(byIncident[u.IncidentID], u)
	}
	return byIncident, rows.Err()
}

// AddUpdate appends the update row and moves the parent incident to the
// update's status in one transaction. resolved_at is set when the new
// status is resolved and cleared otherwise.
func (r *Repository) AddUpdate(ctx context.Context, update *domain.IncidentUpdate) (*domain.Incident, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin add update: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO incident_updates (incident_id, team_id, message, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, insert, update.IncidentID, update.TeamID, update.Message, update.Status).
		Scan(&update.ID, &update.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("insert incident update: %w", err)
	}

	mutate := `
		UPDATE incidents i
		SET status = $1,
		    updated_at = NOW(),
		    resolved_at = CASE WHEN $1 = 'resolved' THEN NOW() ELSE NULL END
		WHERE i.id = $2
		RETURNING ` + incidentColumns + `
	`
	incident, err := scanIncident(tx.QueryRow(ctx, mutate, update.Status, update.IncidentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("update incident status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit add update: %w", err)
	}

	updates, err := r.updatesByIncident(ctx, []string{incident.ID})
	if err != nil {
		return nil, err
	}
	incident.Updates = updates[incident.ID]
	return incident, nil
}
