package vault

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	// ErrNotAuthenticated indicates no token record exists for the device
	ErrNotAuthenticated = errors.New("device not authenticated")

	// ErrRefreshFailed indicates the provider rejected the refresh token;
	// the stale record has been invalidated and the device must relink
	ErrRefreshFailed = errors.New("token refresh rejected by provider")

	// ErrIntegrity indicates stored ciphertext failed authentication;
	// the record has been invalidated
	ErrIntegrity = errors.New("token record failed integrity check")
)

// TokenRecord is the durable credential for a device. Token fields are
// only ever stored in encrypted form; the plaintext exists in memory
// for the duration of a single operation.
type TokenRecord struct {
	DeviceID              string
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	AccessTokenExpiresAt  time.Time
	Scopes                string
	UpdatedAt             time.Time
}

// Expired reports whether the access token is past or within margin of
// its expiry
func (r *TokenRecord) Expired(margin time.Duration) bool {
	return !time.Now().Before(r.AccessTokenExpiresAt.Add(-margin))
}

// Status describes a device's authentication state for reporting
type Status struct {
	DeviceID      string
	Authenticated bool
	Expired       bool
	ExpiresAt     time.Time
	Scopes        string
	UpdatedAt     time.Time
}

// ProviderToken is the result of a provider token exchange or refresh
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	Scopes       string
	ExpiresAt    time.Time
}

// Repository defines storage operations for token records
type Repository interface {
	// Save stores a record, atomically replacing any prior record for
	// the same device
	Save(ctx context.Context, record *TokenRecord) error

	// Find returns the record for a device, or ErrNotAuthenticated
	Find(ctx context.Context, deviceID string) (*TokenRecord, error)

	// Delete removes the record for a device. Deleting an absent
	// record is not an error.
	Delete(ctx context.Context, deviceID string) error
}

// TokenRefresher exchanges a refresh token for fresh provider tokens.
// A returned error wrapping errors.ErrUpstreamUnavailable is treated as
// transient; any other error means the provider rejected the token.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*ProviderToken, error)
}
