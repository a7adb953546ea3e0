package realtime

import (
	"context"
	"sync"

	"github.com/pulsepage/pulsepage/internal/domain"
)

const memorySubscriptionBuffer = 64

// MemoryFeed is an in-process Feed. It only reaches subscribers in the
// same process, which is enough for tests and single-instance deployments.
type MemoryFeed struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	closed bool
}

// NewMemoryFeed creates an in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		subs: make(map[string]map[*memorySubscription]struct{}),
	}
}

// Publish delivers the change to every live subscription of its team.
// Subscribers that cannot keep up lose the change rather than block the
// publisher.
func (f *MemoryFeed) Publish(_ context.Context, change domain.Change) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for sub := range f.subs[change.TeamID] {
		select {
		case sub.ch <- change:
		default:
		}
	}
	return nil
}

// Subscribe opens a subscription for a team's changes.
func (f *MemoryFeed) Subscribe(_ context.Context, teamID string) (Subscription, error) {
	sub := &memorySubscription{
		feed:   f,
		teamID: teamID,
		ch:     make(chan domain.Change, memorySubscriptionBuffer),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[teamID] == nil {
		f.subs[teamID] = make(map[*memorySubscription]struct{})
	}
	f.subs[teamID][sub] = struct{}{}
	return sub, nil
}

// Close terminates all subscriptions.
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for _, subs := range f.subs {
		for sub := range subs {
			close(sub.ch)
		}
	}
	f.subs = make(map[string]map[*memorySubscription]struct{})
	return nil
}

type memorySubscription struct {
	feed   *MemoryFeed
	teamID string
	ch     chan domain.Change
	once   sync.Once
}

func (s *memorySubscription) Changes() <-chan domain.Change {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		if subs, ok := s.feed.subs[s.teamID]; ok {
			if _, live := subs[s]; live {
				delete(subs, s)
				close(s.ch)
			}
		}
	})
	return nil
}
