// Package completion turns an ordered, role-tagged message history into the
// assistant's next reply.
package completion

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured = errors.New("OpenAI API key is not configured")
	ErrUpstream      = errors.New("completion provider failed")
	ErrEmptyAnswer   = errors.New("completion provider returned no answer")
)

type Message struct {
	Role    string
	Content string
}

type Result struct {
	Text string
	// Language is the ISO 639-1 code of the user's language when detection
	// is enabled, empty otherwise.
	Language string
}

// Provider is implemented by completion backends. Implementations add their
// own persona instruction; callers pass only user and assistant turns.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (*Result, error)
}
