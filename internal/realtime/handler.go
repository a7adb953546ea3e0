package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pulsepage/pulsepage/internal/pkg/httputil"
	"github.com/pulsepage/pulsepage/internal/pkg/metrics"
)

// Handler handles HTTP requests for the realtime module.
type Handler struct {
	hub       *Hub
	heartbeat time.Duration
}

// NewHandler creates a new realtime handler. heartbeat is the interval
// between keep-alive comments on open streams.
func NewHandler(hub *Hub, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &Handler{hub: hub, heartbeat: heartbeat}
}

// RegisterProtectedRoutes registers realtime routes under a team scope.
// requireTeamAccess gates them on the caller's relation to the
// {orgID}/{teamID} URL params.
func (h *Handler) RegisterProtectedRoutes(r chi.Router, requireTeamAccess func(http.Handler) http.Handler) {
	r.Route("/orgs/{orgID}/teams/{teamID}/notifications", func(r chi.Router) {
		r.Use(requireTeamAccess)
		r.Get("/", h.ListNotifications)
		r.Delete("/", h.ClearNotifications)
		r.Get("/stream", h.StreamNotifications)
	})
}

// ListNotifications handles GET /orgs/{orgID}/teams/{teamID}/notifications.
// Returns the retained notification list, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	bridge, err := h.hub.Bridge(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		slog.Error("opening team bridge", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.Success(w, http.StatusOK, bridge.Notifications())
}

// ClearNotifications handles DELETE /orgs/{orgID}/teams/{teamID}/notifications.
// Empties the retained list without tearing down the stream.
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	bridge, err := h.hub.Bridge(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		slog.Error("opening team bridge", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	bridge.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// StreamNotifications handles GET /orgs/{orgID}/teams/{teamID}/notifications/stream.
// Streams notifications as server-sent events until the client disconnects.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	bridge, err := h.hub.Bridge(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		slog.Error("opening team bridge", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	ch, detach := bridge.Attach()
	defer detach()

	metrics.RealtimeStreams.Inc()
	defer metrics.RealtimeStreams.Dec()

	// The server's write timeout would kill the stream before the first
	// heartbeat. Lift it for this response only.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		slog.Warn("clearing stream write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-bridge.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case n := <-ch:
			payload, err := json.Marshal(n)
			if err != nil {
				slog.Warn("marshal notification", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
