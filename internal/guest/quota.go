// Package guest tracks how many messages an unauthenticated visitor has sent
// in the current browser session.
package guest

import (
	"sync"
	"time"
)

// DefaultMaxMessages is the number of messages a guest may send before being
// asked to sign up.
const DefaultMaxMessages = 5

// State is a point-in-time copy of a tracker.
type State struct {
	MessageCount     int       `json:"messageCount"`
	MaxGuestMessages int       `json:"maxGuestMessages"`
	SessionStartTime time.Time `json:"sessionStartTime"`
	LastMessageTime  time.Time `json:"lastMessageTime,omitempty"`
}

// Tracker holds the quota state of one guest session. The count only moves
// forward until Reset is called explicitly.
type Tracker struct {
	mu    sync.Mutex
	state State
	now   func() time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now for session and message timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(maxMessages int, opts ...Option) *Tracker {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.state = State{
		MaxGuestMessages: maxMessages,
		SessionStartTime: t.now(),
	}
	return t
}

// Restore rebuilds a tracker from a count reported by the client.
// Negative counts are treated as zero.
func Restore(maxMessages, count int, opts ...Option) *Tracker {
	t := NewTracker(maxMessages, opts...)
	if count > 0 {
		t.state.MessageCount = count
	}
	return t
}

// Increment records one accepted guest message.
func (t *Tracker) Increment() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.MessageCount++
	t.state.LastMessageTime = t.now()
}

func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return max(0, t.state.MaxGuestMessages-t.state.MessageCount)
}

func (t *Tracker) HasReachedLimit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.MessageCount >= t.state.MaxGuestMessages
}

// IsLastFree reports whether the next accepted message is the last one the
// guest gets for free.
func (t *Tracker) IsLastFree() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.MessageCount == t.state.MaxGuestMessages-1
}

func (t *Tracker) atLeast(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if count > t.state.MessageCount {
		t.state.MessageCount = count
	}
}

// Reset starts a new guest session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.MessageCount = 0
	t.state.SessionStartTime = t.now()
	t.state.LastMessageTime = time.Time{}
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.MessageCount
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
