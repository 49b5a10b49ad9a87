package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voicebridge/voicebridge/internal/vbridged/config"
)

type service struct {
	store   Store
	logger  *slog.Logger
	limits  map[string]Limit
	limitsM sync.RWMutex
}

// NewService creates a new rate limiting service
func NewService(store Store, logger *slog.Logger) Service {
	return &service{
		store:  store,
		logger: logger,
		limits: make(map[string]Limit),
	}
}

// RegisterLimit adds or updates a rate limit configuration
func (s *service) RegisterLimit(limitType string, limit Limit) error {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return ErrInvalidLimit
	}

	s.limitsM.Lock()
	defer s.limitsM.Unlock()

	s.limits[limitType] = limit
	return nil
}

// Allow checks if an operation should be allowed
func (s *service) Allow(ctx context.Context, key LimitKey) error {
	if key.Type == "" {
		return ErrInvalidKey
	}

	limit := s.GetLimit(key.Type)
	if limit.Rate == 0 {
		s.logger.Warn("no rate limit configured for type",
			"type", key.Type,
		)
		return nil
	}

	count, err := s.store.Increment(ctx, key, limit)
	if err != nil {
		return err
	}

	s.logger.Debug("rate limit check",
		"type", key.Type,
		"count", count,
		"limit", limit.Rate,
		"deviceId", key.DeviceID,
		"endpoint", key.Endpoint,
	)

	return nil
}

// GetLimit returns the configured limit for a key type
func (s *service) GetLimit(limitType string) Limit {
	s.limitsM.RLock()
	defer s.limitsM.RUnlock()

	return s.limits[limitType]
}

// Reset clears rate limit counters for a key
func (s *service) Reset(ctx context.Context, key LimitKey) error {
	if key.Type == "" {
		return ErrInvalidKey
	}

	if err := s.store.Reset(ctx, key); err != nil {
		s.logger.Error("failed to reset rate limit",
			"error", err,
			"type", key.Type,
			"deviceId", key.DeviceID,
			"endpoint", key.Endpoint,
		)
		return err
	}

	return nil
}

// RegisterConfiguredLimits installs the per-endpoint limits. A limit
// that fails registration leaves its endpoint unthrottled, so the
// failure is logged loudly rather than dropped.
func (s *service) RegisterConfiguredLimits(cfg config.RateLimitConfig) {
	if err := s.RegisterLimit(TypeQRRequest, Limit{
		Rate:   cfg.QRPerMinute,
		Period: time.Minute,
	}); err != nil {
		s.logger.Error("qr rate limit not registered, endpoint unthrottled",
			"error", err,
			"rate", cfg.QRPerMinute,
		)
	}
	if err := s.RegisterLimit(TypeCommand, Limit{
		Rate:      cfg.CommandPerMinute,
		Period:    time.Minute,
		BurstSize: 5,
	}); err != nil {
		s.logger.Error("command rate limit not registered, endpoint unthrottled",
			"error", err,
			"rate", cfg.CommandPerMinute,
		)
	}
}

// Limit type names used across the HTTP layer
const (
	TypeQRRequest = "qr_request"
	TypeCommand   = "command"
)
