package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router creates and configures the HTTP router
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestIDHeaderMiddleware)
	r.Use(recoverMiddleware(h.logger))
	r.Use(logMiddleware(h.logger))

	// Public informational endpoints, never rate limited
	r.Get("/", h.GetIndex)
	r.Get("/health", h.GetHealth)

	// Linking flow
	r.Group(func(r chi.Router) {
		if h.limiters != nil {
			r.Use(h.limiters.QRLimiter())
		}
		r.Get("/qr/{deviceID}", h.GetQR)
	})
	r.Get("/auth/callback", h.AuthCallback)
	r.Get("/u/{code}", h.RedirectShort)

	// Command and credential endpoints
	r.Group(func(r chi.Router) {
		if h.limiters != nil {
			r.Use(h.limiters.CommandLimiter())
		}
		r.Post("/command", h.PostCommand)
	})
	r.Post("/refresh", h.PostRefresh)
	r.Get("/device/{deviceID}/status", h.GetDeviceStatus)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"NOT_FOUND","message":"not found"}`))
	})

	return r
}
