// ABOUTME: Thread-safe in-memory session store with TTL expiry and a size cap
// ABOUTME: Evicts the oldest session at capacity and sweeps expired sessions in the background

package store

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// memoryEntry stores a session and its list element for O(1) eviction.
type memoryEntry struct {
	session Session
	element *list.Element
}

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
// A doubly-linked list keeps creation order so the oldest session is evicted
// first when maxSize is reached.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	order    *list.List // session ids, oldest at front
	maxSize  int
	now      func() time.Time
	done     chan struct{}
	closed   bool
}

// Ensure MemoryStore implements SessionStore.
var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding at most maxSize sessions (0 means unbounded).
// A background goroutine removes expired sessions every sweep interval.
func NewMemoryStore(maxSize int, sweep time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		order:    list.New(),
		maxSize:  maxSize,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if sweep <= 0 {
		sweep = time.Minute
	}
	go s.cleanup(sweep)
	return s
}

// CreateSession stores a copy of session.
func (s *MemoryStore) CreateSession(ctx context.Context, session *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return ErrSessionExists
	}
	if s.maxSize > 0 && len(s.sessions) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.order.PushBack(session.ID)
	s.sessions[session.ID] = &memoryEntry{session: *session, element: elem}
	return nil
}

// GetSession returns a copy of a live session.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok || entry.session.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	session := entry.session
	return &session, nil
}

// DeleteSession removes a session and reports whether it was live.
func (s *MemoryStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return false, nil
	}
	live := !entry.session.Expired(s.now())
	s.removeLocked(id, entry)
	return live, nil
}

// DeleteExpiredSessions removes every expired session.
func (s *MemoryStore) DeleteExpiredSessions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.runCleanup()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// removeLocked must be called with mu held.
func (s *MemoryStore) removeLocked(id string, entry *memoryEntry) {
	s.order.Remove(entry.element)
	delete(s.sessions, id)
}

// evictOldest removes the oldest session. Must be called with mu held.
func (s *MemoryStore) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.sessions, id)
}

// cleanup runs in a background goroutine, periodically removing expired sessions.
func (s *MemoryStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCleanup()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) runCleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.sessions {
		if entry.session.Expired(now) {
			s.removeLocked(id, entry)
		}
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.done)
		s.closed = true
	}
	return nil
}
