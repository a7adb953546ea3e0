package tenancy

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

// Handler handles HTTP requests for the tenancy module.
type Handler struct {
	service        *Service
	validator      *validator.Validate
	onRosterChange func()
}

// NewHandler creates a new tenancy handler. onRosterChange, if non-nil,
// runs after every successful membership mutation so cached access
// decisions can be dropped.
func NewHandler(service *Service, onRosterChange func()) *Handler {
	return &Handler{
		service:        service,
		validator:      validator.New(),
		onRosterChange: onRosterChange,
	}
}

func (h *Handler) rosterChanged() {
	if h.onRosterChange != nil {
		h.onRosterChange()
	}
}

// RegisterProtectedRoutes registers tenancy routes. All of them require an
// authenticated user; requireOrgCreator and requireTeamAccess additionally
// gate routes on the caller's relation to the {orgID}/{teamID} URL params.
func (h *Handler) RegisterProtectedRoutes(r chi.Router, requireOrgCreator, requireTeamAccess func(http.Handler) http.Handler) {
	r.Get("/membership", h.MyMembership)

	r.Route("/orgs", func(r chi.Router) {
		r.Post("/", h.CreateOrganization)
		r.Get("/", h.ListOrganizations)

		r.Route("/{orgID}", func(r chi.Router) {
			r.With(requireOrgCreator).Get("/", h.GetOrganization)

			r.Route("/teams", func(r chi.Router) {
				r.With(requireOrgCreator).Post("/", h.CreateTeam)
				r.With(requireOrgCreator).Get("/", h.ListTeams)

				r.Route("/{teamID}", func(r chi.Router) {
					r.With(requireTeamAccess).Get("/", h.GetTeam)
					r.With(requireOrgCreator).Patch("/", h.UpdateTeam)

					r.Route("/members", func(r chi.Router) {
						r.With(requireOrgCreator).Post("/", h.AddMember)
						r.With(requireOrgCreator).Patch("/{memberID}", h.UpdateMemberRole)
						r.With(requireOrgCreator).Delete("/{memberID}", h.RemoveMember)
					})
				})
			})
		})
	})
}

// CreateOrganizationRequest represents organization creation request body.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// CreateOrganization handles POST /orgs.
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	org, err := h.service.CreateOrganization(r.Context(), req.Name, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, org)
}

// ListOrganizations handles GET /orgs.
// Returns organizations created by the authenticated user.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.ListOrganizations(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, orgs)
}

// GetOrganization handles GET /orgs/{orgID}.
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.service.GetOrganization(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, org)
}

// MyMembership handles GET /membership.
// Resolves the (organization, team) the authenticated user's email belongs
// to; both fields are empty when the user is on no roster.
func (h *Handler) MyMembership(w http.ResponseWriter, r *http.Request) {
	membership, err := h.service.MembershipLookup(r.Context(), httputil.GetUserEmail(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, membership)
}

// CreateTeamRequest represents team creation request body.
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// CreateTeam handles POST /orgs/{orgID}/teams.
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	team, err := h.service.CreateTeam(r.Context(), chi.URLParam(r, "orgID"), req.Name)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, team)
}

// ListTeams handles GET /orgs/{orgID}/teams.
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, teams)
}

// GetTeam handles GET /orgs/{orgID}/teams/{teamID}.
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.GetTeam(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "teamID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, team)
}

// UpdateTeamRequest represents team update request body.
type UpdateTeamRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// UpdateTeam handles PATCH /orgs/{orgID}/teams/{teamID}.
func (h *Handler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	var req UpdateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	team, err := h.service.UpdateTeam(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "teamID"), req.Name)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, team)
}

// AddMemberRequest represents member addition request body.
type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=member admin"`
}

// AddMember handles POST /orgs/{orgID}/teams/{teamID}/members.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	member, err := h.service.AddMember(r.Context(), chi.URLParam(r, "teamID"), req.Email, domain.TeamRole(req.Role))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.rosterChanged()
	httputil.Success(w, http.StatusCreated, member)
}

// UpdateMemberRequest represents member role update request body.
type UpdateMemberRequest struct {
	Role string `json:"role" validate:"required,oneof=member admin"`
}

// UpdateMemberRole handles PATCH /orgs/{orgID}/teams/{teamID}/members/{memberID}.
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	member, err := h.service.UpdateMemberRole(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "memberID"), domain.TeamRole(req.Role))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.rosterChanged()
	httputil.Success(w, http.StatusOK, member)
}

// RemoveMember handles DELETE /orgs/{orgID}/teams/{teamID}/members/{memberID}.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveMember(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "memberID")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.rosterChanged()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrgNotFound), errors.Is(err, ErrTeamNotFound), errors.Is(err, ErrMemberNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNameTaken), errors.Is(err, ErrMemberExists):
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidRole):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
