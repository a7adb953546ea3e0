package incidents

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/pulsepage/pulsepage/internal/pkg/httputil"
)

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterProtectedRoutes registers team-scoped incident routes.
// requireTeamAccess gates them on the caller's relation to the
// {orgID}/{teamID} URL params.
func (h *Handler) RegisterProtectedRoutes(r chi.Router, requireTeamAccess func(http.Handler) http.Handler) {
	r.Route("/orgs/{orgID}/teams/{teamID}/incidents", func(r chi.Router) {
		r.Use(requireTeamAccess)
		r.Get("/", h.ListIncidents)
		r.Post("/", h.CreateIncident)
		r.Get("/{incidentID}", h.GetIncident)
		r.Post("/{incidentID}/updates", h.AddUpdate)
	})
}

// CreateIncidentRequest represents the request body for reporting an incident.
type CreateIncidentRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=255"`
	Description string   `json:"description"`
	Status      string   `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	Impact      string   `json:"impact" validate:"omitempty,oneof=minor major critical"`
	ServiceIDs  []string `json:"service_ids" validate:"required,min=1,dive,required"`
}

// ToInput converts the request to an incident input.
func (r *CreateIncidentRequest) ToInput() CreateInput {
	return CreateInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.IncidentStatus(r.Status),
		Impact:      domain.IncidentImpact(r.Impact),
		ServiceIDs:  r.ServiceIDs,
	}
}

// CreateIncident handles POST /orgs/{orgID}/teams/{teamID}/incidents.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.Create(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "teamID"), req.ToInput())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// ListIncidents handles GET /orgs/{orgID}/teams/{teamID}/incidents.
// Supports an optional ?status= filter; results are newest first.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.IncidentStatus(raw)
		filter.Status = &status
	}

	incidents, err := h.service.ListByTeam(r.Context(), chi.URLParam(r, "teamID"), filter)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, incidents)
}

// GetIncident handles GET /orgs/{orgID}/teams/{teamID}/incidents/{incidentID}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.Get(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "incidentID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// AddUpdateRequest represents the request body for an incident update.
type AddUpdateRequest struct {
	Message string `json:"message" validate:"required,min=1"`
	Status  string `json:"status" validate:"required,oneof=investigating identified monitoring resolved"`
}

// AddUpdate handles POST /orgs/{orgID}/teams/{teamID}/incidents/{incidentID}/updates.
// Returns the incident after the update has been applied.
func (h *Handler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	var req AddUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.AddUpdate(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "incidentID"), AddUpdateInput{
		Message: req.Message,
		Status:  domain.IncidentStatus(req.Status),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrIncidentNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownService), errors.Is(err, ErrNoServices),
		errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidImpact):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
