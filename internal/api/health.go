package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Services  map[string]bool `json:"services"`
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbUp := true
	if err := h.conversationService.Ping(ctx); err != nil {
		logrus.Warnf("health check: database ping failed: %v", err)
		dbUp = false
	}

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Services: map[string]bool{
			"chat":     h.completer != nil,
			"database": dbUp,
		},
	}
	status := http.StatusOK
	if !dbUp {
		resp.Status = "error"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
