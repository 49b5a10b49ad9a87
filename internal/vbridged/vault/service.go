// Package vault encrypts, stores, and refreshes per-device provider tokens
package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
)

// Service is the credential vault. It is constructed once at process
// start with the encryption key and shared by reference; it holds the
// only decryption capability in the process.
type Service struct {
	repo      Repository
	cipher    *Cipher
	refresher TokenRefresher
	margin    time.Duration
	group     singleflight.Group
	logger    *slog.Logger
}

// NewService creates a vault service
func NewService(repo Repository, cipher *Cipher, refresher TokenRefresher, margin time.Duration, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cipher:    cipher,
		refresher: refresher,
		margin:    margin,
		logger:    logger,
	}
}

// Store encrypts and persists a token record, atomically replacing any
// prior record for the device
func (s *Service) Store(ctx context.Context, deviceID, accessToken, refreshToken string, expiresAt time.Time, scopes string) error {
	encAccess, err := s.cipher.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	encRefresh, err := s.cipher.Encrypt(refreshToken)
	if err != nil {
		return fmt.Errorf("encrypting refresh token: %w", err)
	}

	record := &TokenRecord{
		DeviceID:              deviceID,
		EncryptedAccessToken:  encAccess,
		EncryptedRefreshToken: encRefresh,
		AccessTokenExpiresAt:  expiresAt,
		Scopes:                scopes,
		UpdatedAt:             time.Now(),
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return err
	}

	s.logger.Info("stored token record",
		"deviceID", deviceID,
		"expiresAt", expiresAt,
	)
	return nil
}

// GetValidAccessToken returns a usable access token for the device,
// transparently refreshing it first when it is within the safety margin
// of expiry. Concurrent refreshes for the same device are coalesced
// into a single provider call.
func (s *Service) GetValidAccessToken(ctx context.Context, deviceID string) (string, error) {
	record, err := s.repo.Find(ctx, deviceID)
	if err != nil {
		return "", err
	}

	if !record.Expired(s.margin) {
		return s.decryptAccess(ctx, record)
	}

	return s.coalescedRefresh(ctx, deviceID, false)
}

// Refresh forces a provider refresh for the device regardless of the
// current token's expiry and returns the resulting status
func (s *Service) Refresh(ctx context.Context, deviceID string) (*Status, error) {
	if _, err := s.coalescedRefresh(ctx, deviceID, true); err != nil {
		return nil, err
	}
	return s.Status(ctx, deviceID)
}

// Status reports the device's authentication state, or
// ErrNotAuthenticated when no record exists
func (s *Service) Status(ctx context.Context, deviceID string) (*Status, error) {
	record, err := s.repo.Find(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	return &Status{
		DeviceID:      deviceID,
		Authenticated: true,
		Expired:       record.Expired(0),
		ExpiresAt:     record.AccessTokenExpiresAt,
		Scopes:        record.Scopes,
		UpdatedAt:     record.UpdatedAt,
	}, nil
}

// Invalidate removes the device's token record, forcing it back
// through the linking flow
func (s *Service) Invalidate(ctx context.Context, deviceID string) error {
	return s.repo.Delete(ctx, deviceID)
}

// coalescedRefresh serializes concurrent refresh attempts per device
// through a singleflight group so only one provider call is made
func (s *Service) coalescedRefresh(ctx context.Context, deviceID string, force bool) (string, error) {
	v, err, _ := s.group.Do(deviceID, func() (interface{}, error) {
		record, err := s.repo.Find(ctx, deviceID)
		if err != nil {
			return nil, err
		}

		// Another flight may have refreshed while we waited
		if !force && !record.Expired(s.margin) {
			return s.decryptAccess(ctx, record)
		}

		refreshToken, err := s.cipher.Decrypt(record.EncryptedRefreshToken)
		if err != nil {
			s.invalidateCorrupt(ctx, deviceID, err)
			return nil, err
		}

		token, err := s.refresher.RefreshToken(ctx, refreshToken)
		if err != nil {
			if verrors.IsUpstreamUnavailable(err) {
				return nil, err
			}
			// The provider rejected the refresh token. The record is
			// useless now; remove it so the device relinks.
			if delErr := s.repo.Delete(ctx, deviceID); delErr != nil {
				s.logger.Error("failed to invalidate rejected record",
					"error", delErr,
					"deviceID", deviceID,
				)
			}
			s.logger.Warn("refresh rejected by provider", "deviceID", deviceID)
			return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}

		// The provider may omit a rotated refresh token; keep the old one
		newRefresh := token.RefreshToken
		if newRefresh == "" {
			newRefresh = refreshToken
		}
		scopes := token.Scopes
		if scopes == "" {
			scopes = record.Scopes
		}

		if err := s.Store(ctx, deviceID, token.AccessToken, newRefresh, token.ExpiresAt, scopes); err != nil {
			return nil, err
		}

		return token.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Service) decryptAccess(ctx context.Context, record *TokenRecord) (string, error) {
	token, err := s.cipher.Decrypt(record.EncryptedAccessToken)
	if err != nil {
		s.invalidateCorrupt(ctx, record.DeviceID, err)
		return "", err
	}
	return token, nil
}

// invalidateCorrupt removes a record whose ciphertext failed
// authentication. This is logged loudly: it means tampering or a key
// mismatch, never a recoverable condition.
func (s *Service) invalidateCorrupt(ctx context.Context, deviceID string, cause error) {
	s.logger.Error("token record failed integrity check, invalidating",
		"deviceID", deviceID,
		"error", cause,
	)
	if err := s.repo.Delete(ctx, deviceID); err != nil {
		s.logger.Error("failed to invalidate corrupt record",
			"error", err,
			"deviceID", deviceID,
		)
	}
}
