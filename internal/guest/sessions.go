package guest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrFailedToGenerateID = errors.New("failed to generate guest session id")

const (
	DefaultSessionTTL = 24 * time.Hour
	sessionIDBytes    = 16
)

type sessionEntry struct {
	tracker  *Tracker
	lastSeen time.Time
}

// Sessions keeps guest quotas on the server, keyed by an opaque session id,
// so a client cannot reset its count by reporting a lower one.
type Sessions struct {
	mu          sync.RWMutex
	entries     map[string]*sessionEntry
	maxMessages int
	ttl         time.Duration
	now         func() time.Time
}

func NewSessions(maxMessages int, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		entries:     make(map[string]*sessionEntry),
		maxMessages: maxMessages,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Start issues a new guest session.
func (s *Sessions) Start() (string, *Tracker, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		logrus.Errorf("failed to read random bytes for guest session: %v", err)
		return "", nil, ErrFailedToGenerateID
	}
	id := hex.EncodeToString(buf)

	tracker := NewTracker(s.maxMessages, WithClock(s.now))

	s.mu.Lock()
	s.entries[id] = &sessionEntry{tracker: tracker, lastSeen: s.now()}
	s.mu.Unlock()

	logrus.Debugf("started guest session %s", id)
	return id, tracker, nil
}

// Lookup returns the tracker for id. When the client reports a higher count
// than the server has seen, the server count is raised to match.
func (s *Sessions) Lookup(id string, reported int) (*Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.lastSeen) > s.ttl {
		delete(s.entries, id)
		return nil, false
	}
	entry.lastSeen = s.now()

	entry.tracker.atLeast(reported)
	return entry.tracker, true
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep drops sessions idle for longer than the TTL.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions until ctx is done.
func (s *Sessions) Run(ctx context.Context) {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logrus.Debugf("removed %d expired guest sessions", n)
			}
		}
	}
}
