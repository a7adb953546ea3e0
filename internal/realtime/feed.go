// Package realtime delivers row-level change events to connected clients.
// Mutating services publish domain.Change values to a Feed; per-team
// bridges consume the feed, fold changes into display-ready notifications
// and fan them out to streaming connections.
package realtime

import (
	"context"

	"github.com/pulsepage/pulsepage/internal/domain"
)

// Publisher is the write side of the change feed. Mutating services
// depend on this interface only.
type Publisher interface {
	Publish(ctx context.Context, change domain.Change) error
}

// Subscription is a live stream of changes for one team. Changes is
// closed after Close returns or when the feed shuts down.
type Subscription interface {
	Changes() <-chan domain.Change
	Close() error
}

// Feed is a per-team change event transport.
type Feed interface {
	Publisher
	Subscribe(ctx context.Context, teamID string) (Subscription, error)
}
