package credential

import (
	"context"
	"sync"
	"time"
)

// StateEntry binds an OAuth state value to the user who started the flow and
// the PKCE verifier generated for it.
type StateEntry struct {
	UserID    uint64
	Verifier  string
	ExpiresAt time.Time
}

// StateStore holds anti-forgery state for in-flight authorization flows.
// Entries are write-once-read-once: TakeOnce removes on read, and a
// background sweep prunes entries that expired unconsumed.
type StateStore struct {
	mu      sync.Mutex
	entries map[string]StateEntry
	ttl     time.Duration
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		entries: make(map[string]StateEntry),
		ttl:     ttl,
	}
}

func (s *StateStore) Put(state string, userID uint64, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state] = StateEntry{
		UserID:    userID,
		Verifier:  verifier,
		ExpiresAt: time.Now().Add(s.ttl),
	}
}

// TakeOnce atomically removes and returns the entry for state. A second call
// with the same state, or a call after expiry, reports false.
func (s *StateStore) TakeOnce(state string) (StateEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[state]
	if !ok {
		return StateEntry{}, false
	}
	delete(s.entries, state)
	if time.Now().After(e.ExpiresAt) {
		return StateEntry{}, false
	}
	return e, true
}

// Sweep removes expired entries every interval until ctx is cancelled.
func (s *StateStore) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for k, e := range s.entries {
				if now.After(e.ExpiresAt) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		}
	}
}
