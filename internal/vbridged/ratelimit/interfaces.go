// Package ratelimit throttles abuse-prone endpoints: QR generation
// and voice command submission.
package ratelimit

import (
	"context"
	"time"

	"github.com/voicebridge/voicebridge/internal/vbridged/config"
)

// LimitKey identifies a specific rate limit counter
type LimitKey struct {
	Type     string // e.g., "qr_request", "command"
	DeviceID string // device identifier when the route carries one
	RemoteIP string // remote IP for unauthenticated limits
	Endpoint string // API endpoint for specific limits
}

// Limit defines a rate limit window
type Limit struct {
	// Rate is the number of operations allowed per period
	Rate int

	// Period is the time window for the rate
	Period time.Duration

	// BurstSize allows a short burst over the rate (optional)
	BurstSize int
}

// Store handles rate limit state persistence
type Store interface {
	// Increment bumps a counter and returns the current count.
	// Returns ErrLimitExceeded when the count passes the limit.
	Increment(ctx context.Context, key LimitKey, limit Limit) (int, error)

	// Reset clears a rate limit counter
	Reset(ctx context.Context, key LimitKey) error
}

// Service manages rate limiting for the application
type Service interface {
	// Allow checks if an operation should be allowed
	Allow(ctx context.Context, key LimitKey) error

	// GetLimit returns the configured limit for a key type
	GetLimit(limitType string) Limit

	// Reset clears rate limit counters for a key
	Reset(ctx context.Context, key LimitKey) error

	// RegisterConfiguredLimits installs limits from config
	RegisterConfiguredLimits(cfg config.RateLimitConfig)
}

// Error types for rate limiting
var (
	ErrLimitExceeded = NewError("RATE_LIMITED", "rate limit exceeded")
	ErrStoreError    = NewError("STORE_ERROR", "rate limit store error")
	ErrInvalidLimit  = NewError("INVALID_LIMIT", "invalid rate limit configuration")
	ErrInvalidKey    = NewError("INVALID_KEY", "invalid rate limit key")
)

// Error represents a rate limiting error
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// NewError creates a new rate limit error
func NewError(code string, message string) Error {
	return Error{
		Code:    code,
		Message: message,
	}
}
