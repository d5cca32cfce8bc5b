package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultIdleTTL         = 2 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// Session is one visitor's registry.
type Session struct {
	ID       string
	Registry *Registry

	lastSeen time.Time
}

// Store holds live sessions in memory and evicts idle ones.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore returns a store whose sessions expire after ttl without use.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a new empty session.
func (s *Store) Create() *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		Registry: NewRegistry(),
	}
	s.mu.Lock()
	sess.lastSeen = s.now()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a live session and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.now().Sub(sess.lastSeen) > s.ttl {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess, true
}

// Delete forgets the session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleaner sweeps expired sessions every interval until ctx is done.
func (s *Store) StartCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Store) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Printf("evicted %d idle sessions", n)
			}
		}
	}
}
