package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pulsepage/pulsepage/internal/pkg/httputil"
)

// RequireTeamAccess allows the request through when the caller is a member
// of the {teamID} team or the creator of the {orgID} organization.
func (e *Evaluator) RequireTeamAccess() func(http.Handler) http.Handler {
	return e.middleware(true)
}

// RequireOrgCreator allows the request through only for the creator of the
// {orgID} organization.
func (e *Evaluator) RequireOrgCreator() func(http.Handler) http.Handler {
	return e.middleware(false)
}

func (e *Evaluator) middleware(allowTeamMember bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := httputil.GetUserID(r.Context())
			email := httputil.GetUserEmail(r.Context())
			if userID == "" {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// teamID is empty on organization-level routes. When present
			// it feeds the evaluator's org/team consistency check even on
			// creator-only routes.
			orgID := chi.URLParam(r, "orgID")
			teamID := chi.URLParam(r, "teamID")

			access, err := e.Evaluate(r.Context(), userID, email, orgID, teamID)
			if err != nil {
				slog.Error("authorization check failed", "error", err)
				httputil.Error(w, http.StatusInternalServerError, "internal error")
				return
			}

			granted := access.IsOrgCreator
			if allowTeamMember {
				granted = access.Granted()
			}
			if !granted {
				httputil.Error(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
