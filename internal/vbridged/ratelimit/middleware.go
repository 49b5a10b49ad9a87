package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures the rate limiting middleware for a route group
type Options struct {
	// LimitType selects the registered limit to enforce
	LimitType string

	// DeviceIDParam names the chi URL parameter carrying the device
	// id, when the route has one
	DeviceIDParam string

	// SkipLimitCheck bypasses the limiter for matching requests
	SkipLimitCheck func(r *http.Request) bool
}

// Middleware enforces a registered limit on a route group. Store
// failures fail open: a broken Redis must not take voice commands
// down with it.
func Middleware(service Service, logger *slog.Logger, options Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			reqLogger := logger.With("requestId", reqID)

			if options.SkipLimitCheck != nil && options.SkipLimitCheck(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := buildKey(r, options)

			err := service.Allow(r.Context(), key)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			if errors.Is(err, ErrLimitExceeded) {
				handleLimitExceeded(w, r, reqLogger)
				return
			}

			reqLogger.Error("rate limit store unavailable, allowing request",
				"error", err,
				"type", options.LimitType,
				"path", r.URL.Path,
			)
			next.ServeHTTP(w, r)
		})
	}
}

// buildKey creates a rate limit key from the request
func buildKey(r *http.Request, options Options) LimitKey {
	key := LimitKey{
		Type:     options.LimitType,
		RemoteIP: realIP(r),
		Endpoint: r.URL.Path,
	}

	if options.DeviceIDParam != "" {
		key.DeviceID = chi.URLParam(r, options.DeviceIDParam)
	}
	if key.DeviceID == "" {
		key.DeviceID = r.FormValue("device_id")
	}

	return key
}

// handleLimitExceeded sends a 429 Too Many Requests response
func handleLimitExceeded(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	logger.Warn("rate limit exceeded",
		"path", r.URL.Path,
		"method", r.Method,
		"remoteIP", realIP(r),
	)

	w.Header().Set("Retry-After", "60")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprint(w, `{"error":"rate_limit_exceeded","message":"Too many requests, please retry later"}`)
}

// realIP extracts the client IP using standard proxy headers
func realIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if parts := strings.Split(xff, ","); len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}

	return host
}

// EndpointLimiters provides pre-configured middleware for the
// abuse-prone routes
type EndpointLimiters struct {
	service Service
	logger  *slog.Logger
}

// NewEndpointLimiters creates a provider of standard limiters
func NewEndpointLimiters(service Service, logger *slog.Logger) *EndpointLimiters {
	return &EndpointLimiters{
		service: service,
		logger:  logger,
	}
}

// QRLimiter throttles QR generation, which creates link sessions and
// must not be grindable
func (e *EndpointLimiters) QRLimiter() func(http.Handler) http.Handler {
	return Middleware(e.service, e.logger, Options{
		LimitType:     TypeQRRequest,
		DeviceIDParam: "deviceID",
	})
}

// CommandLimiter throttles voice command submission, which fans out
// to transcription and provider calls
func (e *EndpointLimiters) CommandLimiter() func(http.Handler) http.Handler {
	return Middleware(e.service, e.logger, Options{
		LimitType: TypeCommand,
	})
}
