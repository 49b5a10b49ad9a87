// Package oauth drives the device linking flow: issuing provider
// authorization URLs bound to pending sessions and handling the
// provider callback.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/voicebridge/voicebridge/internal/vbridged/device"
	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
	"github.com/voicebridge/voicebridge/internal/vbridged/session"
	"github.com/voicebridge/voicebridge/internal/vbridged/spotify"
)

var (
	// ErrInvalidDeviceID indicates a device identifier outside the
	// accepted character set or length
	ErrInvalidDeviceID = fmt.Errorf("%w: invalid device id", verrors.ErrInvalidInput)

	// ErrCsrfOrExpired indicates a callback whose state parameter did
	// not match a live pending session. Forged, replayed, and expired
	// callbacks are indistinguishable here on purpose.
	ErrCsrfOrExpired = errors.New("state mismatch or session expired")

	// ErrProviderDenied indicates the user declined authorization at
	// the provider
	ErrProviderDenied = errors.New("authorization denied by user")

	// ErrExchangeFailed indicates the code exchange with the provider
	// did not produce tokens
	ErrExchangeFailed = errors.New("code exchange failed")
)

// CodeExchanger is the provider surface the linking flow needs
type CodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*spotify.Token, error)
}

// TokenStore persists exchanged credentials for a device
type TokenStore interface {
	Store(ctx context.Context, deviceID string, tok *spotify.Token) error
}

// Controller coordinates session state with the provider
type Controller struct {
	sessions *session.Service
	tokens   TokenStore
	provider CodeExchanger
	logger   *slog.Logger
}

// NewController creates a linking controller
func NewController(sessions *session.Service, tokens TokenStore, provider CodeExchanger, logger *slog.Logger) *Controller {
	return &Controller{
		sessions: sessions,
		tokens:   tokens,
		provider: provider,
		logger:   logger,
	}
}

// StartLink begins a linking attempt for a device and returns the
// provider authorization URL to present to the user. Any prior
// pending attempt for the device is superseded.
func (c *Controller) StartLink(ctx context.Context, deviceID string) (string, error) {
	const op = "oauth.StartLink"

	if !device.ValidID(deviceID) {
		return "", verrors.NewError("INVALID_DEVICE_ID", "device id must be 1-64 characters of [A-Za-z0-9_-]", op, ErrInvalidDeviceID)
	}

	sess, err := c.sessions.Begin(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("starting link session: %w", err)
	}

	c.logger.Info("link started",
		"deviceId", deviceID,
		"sessionId", sess.ID,
	)
	return c.provider.AuthCodeURL(sess.OAuthState), nil
}

// HandleCallback completes a linking attempt from the provider
// redirect. The state is consumed exactly once before the code is
// trusted; on success the device's credentials are stored and the
// device id is returned.
func (c *Controller) HandleCallback(ctx context.Context, state, code, providerErr string) (string, error) {
	const op = "oauth.HandleCallback"

	if providerErr != "" {
		// Best effort: mark the session failed so its state cannot
		// be replayed with a forged code later.
		if sess, err := c.sessions.Consume(ctx, state); err == nil {
			c.sessions.Fail(ctx, sess)
		}
		c.logger.Info("authorization denied", "providerError", providerErr)
		return "", verrors.NewError("ACCESS_DENIED", "authorization was denied", op, ErrProviderDenied)
	}

	sess, err := c.sessions.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, session.ErrInvalidState) {
			return "", verrors.NewError("INVALID_STATE", "link session not found or expired", op, ErrCsrfOrExpired)
		}
		return "", fmt.Errorf("consuming link session: %w", err)
	}

	tok, err := c.provider.Exchange(ctx, code)
	if err != nil {
		c.sessions.Fail(ctx, sess)
		c.logger.Error("code exchange failed",
			"deviceId", sess.DeviceID,
			"error", err,
		)
		return "", verrors.NewError("EXCHANGE_FAILED", "could not exchange authorization code", op, fmt.Errorf("%w: %v", ErrExchangeFailed, err))
	}

	if err := c.tokens.Store(ctx, sess.DeviceID, tok); err != nil {
		c.sessions.Fail(ctx, sess)
		return "", fmt.Errorf("storing credentials for %s: %w", sess.DeviceID, err)
	}

	c.logger.Info("device linked", "deviceId", sess.DeviceID)
	return sess.DeviceID, nil
}
