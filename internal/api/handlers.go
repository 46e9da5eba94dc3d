package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"kataba/internal/auth"
	"kataba/internal/chat"
	"kataba/internal/completion"
	"kataba/internal/conversations"
	"kataba/internal/guest"
	"kataba/internal/metrics"
	"kataba/internal/users"

	"github.com/sirupsen/logrus"
)

type Options struct {
	JWTSigningKey     string
	JWTTTL            time.Duration
	MaxGuestMessages  int
	GuestSessionTTL   time.Duration
	CompletionTimeout time.Duration
	PersistTimeout    time.Duration
}

type Handler struct {
	userService         *users.Service
	conversationService *conversations.Service
	completer           completion.Provider
	metrics             *metrics.Recorder
	guests              *guest.Sessions
	gate                *chat.Gate
	opts                Options

	// pending tracks background conversation saves started by chat requests.
	pending sync.WaitGroup
}

// NewHandler wires the HTTP API. completer may be nil when no provider is
// configured; chat requests then fail with 500.
func NewHandler(
	userService *users.Service,
	conversationService *conversations.Service,
	completer completion.Provider,
	recorder *metrics.Recorder,
	opts Options,
) *Handler {
	if opts.JWTTTL <= 0 {
		opts.JWTTTL = 24 * time.Hour
	}
	return &Handler{
		userService:         userService,
		conversationService: conversationService,
		completer:           completer,
		metrics:             recorder,
		guests:              guest.NewSessions(opts.MaxGuestMessages, opts.GuestSessionTTL),
		gate:                chat.NewGate(),
		opts:                opts,
	}
}

// SweepGuestSessions drops idle guest sessions until ctx is done.
func (h *Handler) SweepGuestSessions(ctx context.Context) {
	h.guests.Run(ctx)
}

// Wait blocks until every background save started by a chat request is done.
func (h *Handler) Wait() {
	h.pending.Wait()
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Login    string  `json:"login"`
	Password string  `json:"password"`
	Email    *string `json:"email,omitempty"`
}

type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      *users.WebUser `json:"user"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, errText, message string) {
	writeJSON(w, status, errorResponse{Error: errText, Message: message})
}

func rejectUnauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
}

func (h *Handler) RegisterWebUserHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	user, err := h.userService.RegisterWebUser(r.Context(), req.Login, req.Password, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		case errors.Is(err, users.ErrUserAlreadyExists):
			writeError(w, http.StatusConflict, "User already exists", err.Error())
		default:
			logrus.Errorf("failed to register user '%s': %v", req.Login, err)
			writeError(w, http.StatusServiceUnavailable, "Failed to register user", "")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) AuthLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body", "login and password are required")
		return
	}

	user, err := h.userService.AuthenticateWebUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		logrus.Errorf("failed to authenticate user '%s': %v", req.Login, err)
		writeError(w, http.StatusServiceUnavailable, "Failed to authenticate", "")
		return
	}

	token, err := auth.GenerateJWTToken(user.ID, h.opts.JWTSigningKey, h.opts.JWTTTL)
	if err != nil {
		logrus.Errorf("failed to issue token for user %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.opts.JWTTTL).UTC(),
		User:      user,
	})
}

func (h *Handler) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	user, err := h.userService.GetWebUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found", "")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to load user", "")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type GuestSessionResponse struct {
	GuestSessionID    string `json:"guestSessionId"`
	MaxGuestMessages  int    `json:"maxGuestMessages"`
	RemainingMessages int    `json:"remainingMessages"`
}

// StartGuestSessionHandler issues a guest session id whose message count is
// kept on the server.
func (h *Handler) StartGuestSessionHandler(w http.ResponseWriter, _ *http.Request) {
	id, tracker, err := h.guests.Start()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, GuestSessionResponse{
		GuestSessionID:    id,
		MaxGuestMessages:  tracker.Snapshot().MaxGuestMessages,
		RemainingMessages: tracker.Remaining(),
	})
}
