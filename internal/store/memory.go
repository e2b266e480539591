package store

import (
	"sync"

	"github.com/i474232898/skywatch/internal/weather"
)

// MemoryStore is a concurrency-safe single-slot store for the current
// weather outcome. Subscribers are notified of every publication.
type MemoryStore struct {
	mu sync.RWMutex

	current weather.Outcome

	// key: subscription id, value: latest unseen outcome (buffer of one)
	subs   map[int]chan weather.Outcome
	nextID int
}

// NewMemoryStore creates a MemoryStore holding the empty outcome.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		current: weather.Empty(),
		subs:    make(map[int]chan weather.Outcome),
	}
}

// Publish replaces the current outcome unconditionally.
func (s *MemoryStore) Publish(o weather.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = o
	s.notifyLocked(o)
}

// PublishIfNewer replaces the current outcome only when o carries a higher
// sequence number than the current one.
func (s *MemoryStore) PublishIfNewer(o weather.Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current.IsEmpty() && o.Seq <= s.current.Seq {
		return false
	}
	s.current = o
	s.notifyLocked(o)
	return true
}

// Current returns the current outcome.
func (s *MemoryStore) Current() weather.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers an observer. The returned channel always holds the
// most recent unseen outcome; older unseen ones are dropped. Call the
// returned func to unsubscribe.
func (s *MemoryStore) Subscribe() (<-chan weather.Outcome, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan weather.Outcome, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
	return ch, cancel
}

// Subscribers reports how many observers are registered.
func (s *MemoryStore) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// notifyLocked must be called with s.mu held for writing.
func (s *MemoryStore) notifyLocked(o weather.Outcome) {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- o
	}
}
