// Package chat runs one conversation: it applies the guest quota, asks the
// completion provider for a reply, keeps the ordered history and saves it for
// signed-in users in the background.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"kataba/internal/completion"
	"kataba/internal/conversations"
	"kataba/internal/guest"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrBusy             = errors.New("a message is already being processed")
	ErrNoCaller         = errors.New("caller is required")
	ErrCompletionFailed = errors.New("failed to get response from AI")
)

// Unlimited is reported as RemainingMessages for signed-in users.
const Unlimited = -1

const (
	DefaultCompletionTimeout = 60 * time.Second
	DefaultPersistTimeout    = 15 * time.Second
)

// Persister is the part of the conversation store a session writes to.
type Persister interface {
	Create(ctx context.Context, ownerID int64, title string, messages []conversations.Message, privacyMode bool) (*conversations.Conversation, error)
	Replace(ctx context.Context, id string, ownerID int64, title string, messages []conversations.Message) (*conversations.Conversation, error)
}

// Observer receives outcomes for metrics. All methods must be safe for
// concurrent use.
type Observer interface {
	ChatOutcome(mode, outcome string)
	ObserveCompletion(d time.Duration, err error)
	PersistFailed(op string)
}

type Status struct {
	IsGuestMode       bool `json:"isGuestMode"`
	ReachedLimit      bool `json:"reachedLimit"`
	RemainingMessages int  `json:"remainingMessages"`
}

type Reply struct {
	Content  string
	Language string
	Status   Status
}

// Session holds the in-memory history of one conversation. At most one
// Submit runs at a time; history is append-only.
type Session struct {
	completer completion.Provider
	store     Persister
	observer  Observer

	inflight *semaphore.Weighted

	mu             sync.Mutex
	messages       []conversations.Message
	conversationID string
	title          string
	privacyMode    bool
	autoCreate     bool

	completionTimeout time.Duration
	persistTimeout    time.Duration
	now               func() time.Time

	persistMu sync.Mutex
	pending   sync.WaitGroup
}

type Option func(*Session)

// WithHistory seeds the session with earlier turns of the conversation.
func WithHistory(messages []conversations.Message) Option {
	return func(s *Session) {
		s.messages = append([]conversations.Message(nil), messages...)
	}
}

// WithConversation binds the session to an existing stored conversation.
func WithConversation(id, title string) Option {
	return func(s *Session) {
		s.conversationID = id
		s.title = title
	}
}

// WithAutoCreate makes the first save of an unsaved conversation create it.
func WithAutoCreate(privacyMode bool) Option {
	return func(s *Session) {
		s.autoCreate = true
		s.privacyMode = privacyMode
	}
}

func WithCompletionTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.completionTimeout = d
		}
	}
}

func WithPersistTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates a session. store may be nil when nothing is persisted.
func NewSession(completer completion.Provider, store Persister, opts ...Option) *Session {
	s := &Session{
		completer:         completer,
		store:             store,
		observer:          nopObserver{},
		inflight:          semaphore.NewWeighted(1),
		completionTimeout: DefaultCompletionTimeout,
		persistTimeout:    DefaultPersistTimeout,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

// Submit sends one user message and returns the assistant reply.
//
// A guest over quota gets LimitMessage without the provider being called and
// without the message entering history. A provider failure appends
// ApologyMessage and returns it together with an error wrapping
// ErrCompletionFailed; the user message stays in history. Persistence never
// affects the result.
func (s *Session) Submit(ctx context.Context, text string, caller Caller) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if caller == nil {
		return nil, ErrNoCaller
	}
	if !s.inflight.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer s.inflight.Release(1)

	var (
		quota   *guest.Tracker
		ownerID int64
		mode    = "user"
	)
	switch c := caller.(type) {
	case Guest:
		if c.Quota == nil {
			return nil, ErrNoCaller
		}
		quota = c.Quota
		mode = "guest"
	case Authenticated:
		ownerID = c.OwnerID
	default:
		return nil, fmt.Errorf("unsupported caller %T", caller)
	}

	if quota != nil && quota.HasReachedLimit() {
		s.observer.ChatOutcome(mode, "refused")
		logrus.Infof("guest reached the limit of %d messages", quota.Snapshot().MaxGuestMessages)
		return &Reply{
			Content: LimitMessage,
			Status:  Status{IsGuestMode: true, ReachedLimit: true, RemainingMessages: 0},
		}, nil
	}

	history := s.append(conversations.RoleUser, text)

	lastFree := false
	if quota != nil {
		lastFree = quota.IsLastFree()
		quota.Increment()
	}

	result, err := s.complete(ctx, history)
	if err != nil {
		s.append(conversations.RoleAssistant, ApologyMessage)
		s.observer.ChatOutcome(mode, "failed")
		if quota == nil {
			s.persist(ctx, ownerID)
		}
		return &Reply{Content: ApologyMessage, Status: s.status(quota)}, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	content := result.Text
	if lastFree {
		content += UpsellSuffix
	}
	s.append(conversations.RoleAssistant, content)
	s.observer.ChatOutcome(mode, "ok")

	if quota == nil {
		s.persist(ctx, ownerID)
	}

	return &Reply{
		Content:  content,
		Language: result.Language,
		Status:   s.status(quota),
	}, nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []conversations.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]conversations.Message(nil), s.messages...)
}

// ConversationID is empty until the conversation has been saved once.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Wait blocks until background saves started so far have finished.
func (s *Session) Wait() {
	s.pending.Wait()
}

func (s *Session) append(role conversations.Role, content string) []completion.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, conversations.NewMessage(role, content, s.now()))

	out := make([]completion.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = completion.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func (s *Session) complete(ctx context.Context, history []completion.Message) (*completion.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.completionTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.completer.Complete(ctx, history)
	s.observer.ObserveCompletion(time.Since(start), err)
	if err != nil {
		logrus.Errorf("completion failed: %v", err)
		return nil, err
	}
	return result, nil
}

func (s *Session) status(quota *guest.Tracker) Status {
	if quota == nil {
		return Status{RemainingMessages: Unlimited}
	}
	return Status{
		IsGuestMode:       true,
		ReachedLimit:      quota.HasReachedLimit(),
		RemainingMessages: quota.Remaining(),
	}
}

// persist saves the history in the background. Saves of one session run one
// after another and each writes the latest history, so the last one wins.
func (s *Session) persist(ctx context.Context, ownerID int64) {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	skip := s.conversationID == "" && !s.autoCreate
	s.mu.Unlock()
	if skip {
		return
	}

	detached := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		s.persistMu.Lock()
		defer s.persistMu.Unlock()

		ctx, cancel := context.WithTimeout(detached, s.persistTimeout)
		defer cancel()

		s.mu.Lock()
		id, title, privacy := s.conversationID, s.title, s.privacyMode
		messages := append([]conversations.Message(nil), s.messages...)
		s.mu.Unlock()

		if id != "" {
			if _, err := s.store.Replace(ctx, id, ownerID, title, messages); err != nil {
				s.observer.PersistFailed("replace")
				logrus.WithError(err).WithField("conversation_id", id).Error("failed to save conversation")
			}
			return
		}

		conv, err := s.store.Create(ctx, ownerID, title, messages, privacy)
		if err != nil {
			s.observer.PersistFailed("create")
			logrus.WithError(err).WithField("owner_id", ownerID).Error("failed to create conversation")
			return
		}

		s.mu.Lock()
		if s.conversationID == "" {
			s.conversationID = conv.ID
			s.title = conv.Title
		}
		s.mu.Unlock()
		logrus.Infof("created conversation %s for user %d", conv.ID, ownerID)
	}()
}

type nopObserver struct{}

func (nopObserver) ChatOutcome(string, string) {}

func (nopObserver) ObserveCompletion(time.Duration, error) {}

func (nopObserver) PersistFailed(string) {}
