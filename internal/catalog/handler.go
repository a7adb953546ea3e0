// Package catalog provides HTTP handlers and business logic for managing
// the services shown on a status page.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/pulsepage/pulsepage/internal/pkg/httputil"
	"github.com/pulsepage/pulsepage/internal/tenancy"
)

// OrganizationReader is the subset of the tenancy service the public
// status page needs.
type OrganizationReader interface {
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
}

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	orgs      OrganizationReader
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service, orgs OrganizationReader) *Handler {
	return &Handler{
		service:   service,
		orgs:      orgs,
		validator: validator.New(),
	}
}

// RegisterProtectedRoutes registers team-scoped service routes.
// requireTeamAccess gates them on the caller's relation to the
// {orgID}/{teamID} URL params.
func (h *Handler) RegisterProtectedRoutes(r chi.Router, requireTeamAccess func(http.Handler) http.Handler) {
	r.Route("/orgs/{orgID}/teams/{teamID}/services", func(r chi.Router) {
		r.Use(requireTeamAccess)
		r.Get("/", h.ListServices)
		r.Post("/", h.CreateService)
		r.Get("/{serviceID}", h.GetService)
		r.Patch("/{serviceID}", h.UpdateService)
		r.Patch("/{serviceID}/status", h.UpdateServiceStatus)
		r.Delete("/{serviceID}", h.DeleteService)
	})
}

// RegisterPublicRoutes registers unauthenticated status page routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/public/orgs/{orgID}", h.PublicStatusPage)
}

// CreateServiceRequest represents the request body for creating a service.
type CreateServiceRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Description  string `json:"description"`
	Status       string `json:"status" validate:"omitempty,oneof=operational degraded partial_outage major_outage"`
	DisplayOrder int    `json:"display_order"`
}

// ToInput converts the request to a service input.
func (r *CreateServiceRequest) ToInput() CreateInput {
	return CreateInput{
		Name:         r.Name,
		Description:  r.Description,
		Status:       domain.ServiceStatus(r.Status),
		DisplayOrder: r.DisplayOrder,
	}
}

// CreateService handles POST /orgs/{orgID}/teams/{teamID}/services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.Create(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "teamID"), req.ToInput())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, service)
}

// ListServices handles GET /orgs/{orgID}/teams/{teamID}/services.
// Services come back with their incidents embedded.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListByTeam(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}

// GetService handles GET /orgs/{orgID}/teams/{teamID}/services/{serviceID}.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	service, err := h.service.Get(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "serviceID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// UpdateServiceRequest represents the request body for a partial update.
type UpdateServiceRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description  *string `json:"description"`
	DisplayOrder *int    `json:"display_order"`
}

// UpdateService handles PATCH /orgs/{orgID}/teams/{teamID}/services/{serviceID}.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req UpdateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.Update(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "serviceID"), UpdateInput(req))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// UpdateStatusRequest represents the request body for a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=operational degraded partial_outage major_outage"`
}

// UpdateServiceStatus handles PATCH /orgs/{orgID}/teams/{teamID}/services/{serviceID}/status.
func (h *Handler) UpdateServiceStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "serviceID"), domain.ServiceStatus(req.Status))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// DeleteService handles DELETE /orgs/{orgID}/teams/{teamID}/services/{serviceID}.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "serviceID")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PublicStatusPageResponse is the payload of the public status page.
type PublicStatusPageResponse struct {
	Organization *domain.Organization `json:"organization"`
	Services     []domain.Service     `json:"services"`
}

// PublicStatusPage handles GET /public/orgs/{orgID}.
// Returns the organization with all its services and their incidents.
// No authentication required.
func (h *Handler) PublicStatusPage(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	org, err := h.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, tenancy.ErrOrgNotFound) {
			httputil.Error(w, http.StatusNotFound, err.Error())
			return
		}
		h.handleServiceError(w, err)
		return
	}

	services, err := h.service.ListByOrganization(r.Context(), orgID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, PublicStatusPageResponse{
		Organization: org,
		Services:     services,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrServiceNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
