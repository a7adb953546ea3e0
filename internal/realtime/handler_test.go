package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamRecorder records write deadline changes the way a real
// *http.response would accept them through http.NewResponseController.
type streamRecorder struct {
	*httptest.ResponseRecorder
	mu        sync.Mutex
	deadlines []time.Time
}

func (r *streamRecorder) SetWriteDeadline(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadlines = append(r.deadlines, t)
	return nil
}

func streamRequest(ctx context.Context, teamID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("teamID", teamID)
	req := httptest.NewRequest(http.MethodGet, "/orgs/org-1/teams/"+teamID+"/notifications/stream", nil)
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rctx))
}

func TestHandler_StreamLiftsWriteDeadline(t *testing.T) {
	feed := NewMemoryFeed()
	defer feed.Close()
	hub := NewHub(feed, 10)
	defer hub.Close()
	h := NewHandler(hub, time.Second)

	// Pre-canceled context makes the handler return right after the
	// stream is set up.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.StreamNotifications(rec, streamRequest(ctx, "team-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	// The server write timeout must not apply to a long-lived stream;
	// the handler clears it before the first heartbeat is due.
	require.Len(t, rec.deadlines, 1)
	assert.True(t, rec.deadlines[0].IsZero())
}
