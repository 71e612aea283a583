package session

import (
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"connectkit/internal/model"
)

// Store is the single source of truth for the session context. All
// mutation goes through Dispatch; every other component reads snapshots.
type Store struct {
	mu   sync.Mutex
	ctx  model.SessionContext
	feed event.Feed
}

// NewStore returns a store holding the initial context (chain id 1,
// nothing connected).
func NewStore() *Store {
	return &Store{ctx: model.NewSessionContext()}
}

// Get returns the current context snapshot.
func (s *Store) Get() model.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Dispatch applies one event atomically and notifies every subscriber
// with the new snapshot before returning. Subscribers observe events in
// exact dispatch order; the lock is held across the send so no two
// dispatches interleave their notifications.
func (s *Store) Dispatch(ev Event) model.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = reduce(s.ctx, ev)
	s.feed.Send(s.ctx)
	return s.ctx
}

// Observe subscribes ch to context snapshots. The current snapshot is
// replayed into ch immediately, and every subsequent dispatch delivers
// the resulting snapshot in order. ch must be buffered; a subscriber that
// stops draining it blocks dispatch for everyone.
func (s *Store) Observe(ch chan<- model.SessionContext) event.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.feed.Subscribe(ch)
	ch <- s.ctx
	return sub
}
