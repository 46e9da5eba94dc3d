package api

import (
	"net/http"

	"kataba/internal/auth"
	"kataba/internal/middleware"
)

// Routes builds the full HTTP surface with CORS and request logging applied.
func (h *Handler) Routes(corsOrigin string) http.Handler {
	key := h.opts.JWTSigningKey
	required := func(fn http.HandlerFunc) http.Handler {
		return auth.JWTMiddleware(fn, key, rejectUnauthorized)
	}
	optional := func(fn http.HandlerFunc) http.Handler {
		return auth.OptionalJWTMiddleware(fn, key, rejectUnauthorized)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", optional(h.ChatHandler))
	mux.HandleFunc("POST /api/guest/session", h.StartGuestSessionHandler)

	mux.Handle("GET /api/conversations", required(h.ListConversationsHandler))
	mux.Handle("POST /api/conversations", required(h.CreateConversationHandler))
	mux.Handle("GET /api/conversations/{id}", required(h.GetConversationHandler))
	mux.Handle("PUT /api/conversations/{id}", required(h.UpdateConversationHandler))
	mux.Handle("DELETE /api/conversations/{id}", required(h.DeleteConversationHandler))

	mux.HandleFunc("POST /api/auth/register", h.RegisterWebUserHandler)
	mux.HandleFunc("POST /api/auth/login", h.AuthLoginHandler)
	mux.Handle("GET /api/users/me", required(h.GetCurrentUserHandler))

	mux.HandleFunc("GET /api/health", h.HealthHandler)

	var handler http.Handler = mux
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
		handler = h.metrics.InstrumentHandler(mux)
	}

	return middleware.Chain(handler,
		middleware.RequestLogging,
		middleware.CORS(corsOrigin),
	)
}
