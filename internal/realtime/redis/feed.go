// Package redis provides a Redis pub/sub implementation of the change feed.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pulsepage/pulsepage/internal/domain"
	"github.com/pulsepage/pulsepage/internal/realtime"
	goredis "github.com/redis/go-redis/v9"
)

const subscriptionBuffer = 64

// Feed implements realtime.Feed on Redis pub/sub. Every API instance
// publishes to and subscribes from the same channels, so change events
// reach clients connected to any instance.
type Feed struct {
	client *goredis.Client
}

// NewFeed creates a Redis-backed feed.
func NewFeed(client *goredis.Client) *Feed {
	return &Feed{client: client}
}

func channelFor(teamID string) string {
	return fmt.Sprintf("team:%s:changes", teamID)
}

// Publish sends the change to the team's channel. Delivery is
// fire-and-forget: Redis pub/sub does not retain messages for absent
// subscribers.
func (f *Feed) Publish(ctx context.Context, change domain.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := f.client.Publish(ctx, channelFor(change.TeamID), payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe opens a subscription on the team's channel.
func (f *Feed) Subscribe(ctx context.Context, teamID string) (realtime.Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channelFor(teamID))

	// Wait for the subscription to be confirmed so no change published
	// after Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channelFor(teamID), err)
	}

	sub := &subscription{
		pubsub: pubsub,
		ch:     make(chan domain.Change, subscriptionBuffer),
	}
	go sub.run()
	return sub, nil
}

type subscription struct {
	pubsub *goredis.PubSub
	ch     chan domain.Change
	once   sync.Once
}

func (s *subscription) run() {
	defer close(s.ch)

	for msg := range s.pubsub.Channel() {
		var change domain.Change
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			slog.Warn("dropping malformed change event", "channel", msg.Channel, "error", err)
			continue
		}
		s.ch <- change
	}
}

func (s *subscription) Changes() <-chan domain.Change {
	return s.ch
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		// Closing the PubSub closes its Channel, which ends run and
		// closes s.ch.
		err = s.pubsub.Close()
	})
	return err
}
