// Package session keeps per-visitor state: the rate-limit window and the
// contact-form challenge. Sessions expire after a fixed idle-independent TTL
// and the store is bounded; the least recently used session is dropped first.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/viewavocats/estimia/internal/antispam"
	"github.com/viewavocats/estimia/internal/ratelimit"
)

// State is one session. Callers must hold Lock while reading or mutating
// Requests or Spam.
type State struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	Requests ratelimit.Window
	Spam     antispam.State
}

// Lock acquires the session lock.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *State) Unlock() { s.mu.Unlock() }

// Store holds live sessions.
type Store struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *State]
	guard *antispam.Guard

	nowFunc func() time.Time
	newID   func() string
}

// NewStore creates a store holding at most size sessions, each for ttl.
// guard seeds the challenge of new sessions.
func NewStore(size int, ttl time.Duration, guard *antispam.Guard) *Store {
	if size <= 0 {
		size = 10000
	}
	return &Store{
		cache:   expirable.NewLRU[string, *State](size, nil, ttl),
		guard:   guard,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

// Get returns the live session with the given id.
func (s *Store) Get(id string) (*State, bool) {
	if id == "" {
		return nil, false
	}
	return s.cache.Get(id)
}

// GetOrCreate returns the session for id, creating a new one with a fresh id
// when id is empty, unknown or expired. created reports whether the returned
// session is new.
func (s *Store) GetOrCreate(id string) (st *State, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.Get(id); ok {
		return st, false
	}

	st = &State{
		ID:        s.newID(),
		CreatedAt: s.nowFunc(),
	}
	if s.guard != nil {
		st.Spam = s.guard.NewState()
	}
	s.cache.Add(st.ID, st)
	return st, true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}
