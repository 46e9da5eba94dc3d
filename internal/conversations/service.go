package conversations

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Create stores a new conversation. An empty title is derived from the first
// user message.
func (s *Service) Create(ctx context.Context, ownerID int64, title string, messages []Message, privacyMode bool) (*Conversation, error) {
	title = resolveTitle(title, messages)
	logrus.Debugf("creating conversation %q for user %d with %d messages", title, ownerID, len(messages))
	return s.repo.Create(ctx, ownerID, title, messages, privacyMode)
}

func (s *Service) Replace(ctx context.Context, id string, ownerID int64, title string, messages []Message) (*Conversation, error) {
	return s.ReplaceWithPrivacy(ctx, id, ownerID, title, messages, nil)
}

// ReplaceWithPrivacy replaces the conversation and, when privacyMode is set,
// switches its privacy mode in the same write.
func (s *Service) ReplaceWithPrivacy(ctx context.Context, id string, ownerID int64, title string, messages []Message, privacyMode *bool) (*Conversation, error) {
	title = resolveTitle(title, messages)
	logrus.Debugf("replacing conversation %s of user %d with %d messages", id, ownerID, len(messages))
	return s.repo.ReplaceWithPrivacy(ctx, id, ownerID, title, messages, privacyMode)
}

func (s *Service) Get(ctx context.Context, id string, ownerID int64) (*Conversation, error) {
	return s.repo.Get(ctx, id, ownerID)
}

func (s *Service) List(ctx context.Context, ownerID int64) ([]Summary, error) {
	return s.repo.List(ctx, ownerID)
}

func (s *Service) Delete(ctx context.Context, id string, ownerID int64) error {
	logrus.Debugf("deleting conversation %s of user %d", id, ownerID)
	return s.repo.Delete(ctx, id, ownerID)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func resolveTitle(title string, messages []Message) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return DeriveTitle(messages)
}
