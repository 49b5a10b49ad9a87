// Package session tracks the lifecycle of device OAuth linkage attempts
package session

import (
	"context"
	"log/slog"
	"time"
)

// Service manages auth session lifecycle
type Service struct {
	repo   Repository
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates a session registry service
func NewService(repo Repository, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{repo: repo, ttl: ttl, logger: logger}
}

// Begin creates a new pending session for the device, superseding any
// existing pending session, and returns it with its oauth state
func (s *Service) Begin(ctx context.Context, deviceID string) (*AuthSession, error) {
	sess, err := NewAuthSession(deviceID, s.ttl)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("began auth session",
		"deviceID", deviceID,
		"expiresAt", sess.ExpiresAt,
	)
	return sess, nil
}

// Consume atomically validates and completes the session for the given
// state. Unknown, expired, and already-consumed states all fail with
// ErrInvalidState so a replayed callback is indistinguishable from a
// forged one.
func (s *Service) Consume(ctx context.Context, state string) (*AuthSession, error) {
	sess, err := s.repo.Consume(ctx, state)
	if err != nil {
		return nil, err
	}

	s.logger.Info("consumed auth session", "deviceID", sess.DeviceID)
	return sess, nil
}

// Fail marks a previously consumed session as failed
func (s *Service) Fail(ctx context.Context, sess *AuthSession) {
	if err := s.repo.SetStatus(ctx, sess.ID, StatusFailed); err != nil {
		s.logger.Error("failed to mark session failed",
			"error", err,
			"deviceID", sess.DeviceID,
		)
	}
}

// PurgeExpired sweeps pending sessions past expiry. Lookups already
// treat expired rows as absent; this keeps the table tidy.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("purged expired auth sessions", "count", n)
	}
	return n, nil
}
