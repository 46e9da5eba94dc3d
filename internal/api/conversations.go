package api

import (
	"encoding/json"
	"net/http"
	"time"

	"kataba/internal/auth"
)

type SaveConversationRequest struct {
	Title       string        `json:"title"`
	Messages    []ChatMessage `json:"messages"`
	PrivacyMode *bool         `json:"privacyMode,omitempty"`
}

func (h *Handler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	list, err := h.conversationService.List(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var req SaveConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid request body", "messages must be a non-empty array")
		return
	}
	messages, err := toMessages(req.Messages, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	privacy := req.PrivacyMode != nil && *req.PrivacyMode
	conv, err := h.conversationService.Create(r.Context(), userID, req.Title, messages, privacy)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *Handler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	conv, err := h.conversationService.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// UpdateConversationHandler replaces the title and the whole message list.
// A privacyMode value in the body is applied to the messages stored with it.
func (h *Handler) UpdateConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var req SaveConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Messages == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "messages must be an array")
		return
	}
	messages, err := toMessages(req.Messages, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	conv, err := h.conversationService.ReplaceWithPrivacy(r.Context(), r.PathValue("id"), userID, req.Title, messages, req.PrivacyMode)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	if err := h.conversationService.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
