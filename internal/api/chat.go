package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"kataba/internal/auth"
	"kataba/internal/chat"
	"kataba/internal/completion"
	"kataba/internal/conversations"
	"kataba/internal/guest"

	"github.com/sirupsen/logrus"
)

type ChatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type ChatRequest struct {
	Messages          []ChatMessage `json:"messages"`
	ConversationID    string        `json:"conversationId,omitempty"`
	GuestMessageCount int           `json:"guestMessageCount,omitempty"`
	GuestSessionID    string        `json:"guestSessionId,omitempty"`
}

type ChatResponse struct {
	Content           string `json:"content"`
	IsGuestMode       bool   `json:"isGuestMode"`
	ReachedLimit      bool   `json:"reachedLimit"`
	RemainingMessages int    `json:"remainingMessages"`
	Language          string `json:"language,omitempty"`
}

// chatErrorResponse carries the apology shown to the user alongside the error.
type chatErrorResponse struct {
	Error string `json:"error"`
	ChatResponse
}

const invalidMessages = "Invalid request: messages must be an array"

// ChatHandler answers the last user message in the request. Earlier messages
// are the conversation so far.
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidMessages, err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, invalidMessages, "at least one message is required")
		return
	}
	history, text, err := splitMessages(req.Messages, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	if h.completer == nil {
		logrus.Error("chat request received but OPENAI_API_KEY is not set")
		writeError(w, http.StatusInternalServerError, completion.ErrNotConfigured.Error(), "")
		return
	}

	ctx := r.Context()
	opts := []chat.Option{
		chat.WithHistory(history),
		chat.WithCompletionTimeout(h.opts.CompletionTimeout),
		chat.WithPersistTimeout(h.opts.PersistTimeout),
	}
	if h.metrics != nil {
		opts = append(opts, chat.WithObserver(h.metrics))
	}

	var (
		caller  chat.Caller
		gateKey string
	)
	if userID, ok := auth.GetUserIDFromContext(ctx); ok {
		caller = chat.Authenticated{OwnerID: userID}
		if req.ConversationID != "" {
			conv, err := h.conversationService.Get(ctx, req.ConversationID, userID)
			switch {
			case err == nil:
				opts = append(opts, chat.WithConversation(conv.ID, conv.Title))
				gateKey = "conversation:" + conv.ID
			case errors.Is(err, conversations.ErrNotFound), errors.Is(err, conversations.ErrNotAuthorized):
				h.writeStoreError(w, err)
				return
			default:
				// The store is down: answer anyway and skip saving this turn.
				logrus.WithError(err).WithField("conversation_id", req.ConversationID).Warn("failed to load conversation, replying without saving")
				if h.metrics != nil {
					h.metrics.PersistFailed("load")
				}
			}
		}
	} else {
		quota, known := h.guests.Lookup(req.GuestSessionID, req.GuestMessageCount)
		if !known {
			quota = guest.Restore(h.opts.MaxGuestMessages, req.GuestMessageCount)
		}
		caller = chat.Guest{Quota: quota}
		if req.GuestSessionID != "" {
			gateKey = "guest:" + req.GuestSessionID
		}
	}

	release, ok := h.gate.TryAcquire(gateKey)
	if !ok {
		writeError(w, http.StatusConflict, chat.ErrBusy.Error(), "")
		return
	}
	defer release()

	session := chat.NewSession(h.completer, h.conversationService, opts...)
	reply, err := session.Submit(ctx, text, caller)
	h.track(session)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		case errors.Is(err, chat.ErrBusy):
			writeError(w, http.StatusConflict, err.Error(), "")
		case errors.Is(err, chat.ErrCompletionFailed):
			writeJSON(w, http.StatusInternalServerError, chatErrorResponse{
				Error:        "Failed to get response from AI",
				ChatResponse: toChatResponse(reply),
			})
		default:
			logrus.Errorf("chat request failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, toChatResponse(reply))
}

func toChatResponse(reply *chat.Reply) ChatResponse {
	if reply == nil {
		return ChatResponse{}
	}
	return ChatResponse{
		Content:           reply.Content,
		IsGuestMode:       reply.Status.IsGuestMode,
		ReachedLimit:      reply.Status.ReachedLimit,
		RemainingMessages: reply.Status.RemainingMessages,
		Language:          reply.Language,
	}
}

// track keeps the handler aware of saves still running after the response.
func (h *Handler) track(session *chat.Session) {
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		session.Wait()
	}()
}

// splitMessages validates the request messages and separates the new user
// turn from the history before it.
func splitMessages(in []ChatMessage, now time.Time) ([]conversations.Message, string, error) {
	out, err := toMessages(in, now)
	if err != nil {
		return nil, "", err
	}
	last := out[len(out)-1]
	if last.Role != conversations.RoleUser {
		return nil, "", errors.New("the last message must come from the user")
	}
	if strings.TrimSpace(last.Content) == "" {
		return nil, "", chat.ErrEmptyMessage
	}
	return out[:len(out)-1], last.Content, nil
}

func toMessages(in []ChatMessage, now time.Time) ([]conversations.Message, error) {
	out := make([]conversations.Message, 0, len(in))
	for _, m := range in {
		role := conversations.Role(m.Role)
		if !role.Valid() {
			return nil, errors.New("message role must be user or assistant")
		}
		at := now
		if m.Timestamp != nil && !m.Timestamp.IsZero() {
			at = *m.Timestamp
		}
		out = append(out, conversations.NewMessage(role, m.Content, at))
	}
	return out, nil
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversations.ErrNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found", "")
	case errors.Is(err, conversations.ErrNotAuthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, conversations.ErrConflict):
		writeError(w, http.StatusConflict, "Conversation already exists", "")
	default:
		logrus.Errorf("conversation store failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "Conversation store unavailable", "")
	}
}
