package realtime

import (
	"context"
	"sync"
)

// Hub owns one bridge per team, created lazily on first use.
type Hub struct {
	feed     Feed
	capacity int

	mu      sync.Mutex
	bridges map[string]*Bridge
}

// NewHub creates a hub. capacity is passed to every bridge it creates.
func NewHub(feed Feed, capacity int) *Hub {
	return &Hub{
		feed:     feed,
		capacity: capacity,
		bridges:  make(map[string]*Bridge),
	}
}

// Bridge returns the live bridge for a team, starting one if needed.
func (h *Hub) Bridge(ctx context.Context, teamID string) (*Bridge, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b, ok := h.bridges[teamID]; ok && b.State() != StateClosed {
		return b, nil
	}

	b := NewBridge(h.feed, teamID, h.capacity)
	if err := b.Start(ctx); err != nil {
		return nil, err
	}
	h.bridges[teamID] = b
	return b, nil
}

// Close shuts down every bridge.
func (h *Hub) Close() {
	h.mu.Lock()
	bridges := make([]*Bridge, 0, len(h.bridges))
	for _, b := range h.bridges {
		bridges = append(bridges, b)
	}
	h.bridges = make(map[string]*Bridge)
	h.mu.Unlock()

	for _, b := range bridges {
		b.Close()
	}
}
