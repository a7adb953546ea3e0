package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/pulsepage/pulsepage/internal/pkg/metrics"
)

// BridgeState is the lifecycle state of a team bridge.
type BridgeState int32

// Bridge states. Transitions only move forward: Idle -> Subscribing ->
// Active -> Closed.
const (
	StateIdle BridgeState = iota
	StateSubscribing
	StateActive
	StateClosed
)

func (s BridgeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const clientBuffer = 16

// Bridge consumes one team's change feed, folds changes into
// display-ready notifications and fans them out to attached clients.
// It keeps a bounded newest-first list so a client connecting late still
// sees recent history.
type Bridge struct {
	feed     Feed
	teamID   string
	capacity int

	mu            sync.RWMutex
	state         BridgeState
	sub           Subscription
	notifications []domain.Notification
	clients       map[chan domain.Notification]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewBridge creates a bridge for one team. capacity bounds the retained
// notification list; values below 1 fall back to 1.
func NewBridge(feed Feed, teamID string, capacity int) *Bridge {
	if capacity < 1 {
		capacity = 1
	}
	return &Bridge{
		feed:     feed,
		teamID:   teamID,
		capacity: capacity,
		state:    StateIdle,
		clients:  make(map[chan domain.Notification]struct{}),
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (b *Bridge) State() BridgeState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Start subscribes to the feed and begins consuming changes. Calling
// Start on a bridge past Idle is an error.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateIdle {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("start bridge: state is %s, want idle", state)
	}
	b.state = StateSubscribing
	b.mu.Unlock()

	sub, err := b.feed.Subscribe(ctx, b.teamID)
	if err != nil {
		b.mu.Lock()
		b.state = StateClosed
		b.mu.Unlock()
		return fmt.Errorf("start bridge: %w", err)
	}

	b.mu.Lock()
	if b.state == StateClosed {
		// Closed while subscribing.
		b.mu.Unlock()
		return sub.Close()
	}
	b.sub = sub
	b.state = StateActive
	b.mu.Unlock()

	go b.run(sub)
	return nil
}

func (b *Bridge) run(sub Subscription) {
	for change := range sub.Changes() {
		notification, ok := notificationFrom(change)
		if !ok {
			continue
		}
		b.push(notification)
	}
	b.Close()
}

func (b *Bridge) push(n domain.Notification) {
	b.mu.Lock()
	b.notifications = append([]domain.Notification{n}, b.notifications...)
	if len(b.notifications) > b.capacity {
		b.notifications = b.notifications[:b.capacity]
	}
	clients := make([]chan domain.Notification, 0, len(b.clients))
	for ch := range b.clients {
		clients = append(clients, ch)
	}
	b.mu.Unlock()

	for _, ch := range clients {
		select {
		case ch <- n:
			metrics.RealtimeNotificationsDelivered.Inc()
		default:
			metrics.RealtimeNotificationsDropped.Inc()
		}
	}
}

// Notifications returns the retained list, newest first.
func (b *Bridge) Notifications() []domain.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Notification, len(b.notifications))
	copy(out, b.notifications)
	return out
}

// Clear empties the retained notification list. Attached clients keep
// receiving live notifications.
func (b *Bridge) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = nil
}

// Attach registers a client channel for live notifications. The returned
// function detaches the client.
func (b *Bridge) Attach() (<-chan domain.Notification, func()) {
	ch := make(chan domain.Notification, clientBuffer)

	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	detach := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
		})
	}
	return ch, detach
}

// Close tears the bridge down. Safe to call multiple times and from any
// state.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		sub := b.sub
		b.state = StateClosed
		b.clients = make(map[chan domain.Notification]struct{})
		b.mu.Unlock()

		if sub != nil {
			if err := sub.Close(); err != nil {
				slog.Warn("closing feed subscription", "team_id", b.teamID, "error", err)
			}
		}
		close(b.done)
	})
}

// Done is closed when the bridge has shut down.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// notificationFrom folds one change event into a display-ready
// notification. Changes that carry nothing worth showing report ok=false.
func notificationFrom(change domain.Change) (domain.Notification, bool) {
	var row struct {
		Title         string `json:"title"`
		Name          string `json:"name"`
		Message       string `json:"message"`
		Status        string `json:"status"`
		CurrentStatus string `json:"current_status"`
	}
	if err := json.Unmarshal(change.Row, &row); err != nil {
		slog.Warn("dropping change with malformed row", "table", change.Table, "error", err)
		return domain.Notification{}, false
	}

	n := domain.Notification{
		ID:        uuid.NewString(),
		Timestamp: change.OccurredAt,
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	switch {
	case change.Table == domain.ChangeTableIncidents && change.Op == domain.ChangeOpInsert:
		n.Type = domain.NotificationTypeNewIncident
		n.Message = fmt.Sprintf("New incident: %s", row.Title)
	case change.Table == domain.ChangeTableIncidentUpdates && change.Op == domain.ChangeOpInsert:
		n.Type = domain.NotificationTypeIncidentUpdate
		n.Message = fmt.Sprintf("Incident update (%s): %s", row.Status, row.Message)
	case change.Table == domain.ChangeTableServices && change.Op == domain.ChangeOpUpdate:
		n.Type = domain.NotificationTypeServiceStatus
		n.Message = fmt.Sprintf("Service %s is now %s", row.Name, row.CurrentStatus)
	default:
		return domain.Notification{}, false
	}
	return n, true
}
