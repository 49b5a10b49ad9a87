package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	// ErrInvalidState indicates an unknown, expired, or already
	// consumed oauth state
	ErrInvalidState = errors.New("invalid or expired oauth state")
)

// Status is the lifecycle state of an auth session
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// AuthSession represents one in-flight or completed OAuth linkage
// attempt for a device
type AuthSession struct {
	ID         uuid.UUID
	DeviceID   string
	OAuthState string
	Status     Status
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// NewAuthSession creates a pending session with a fresh random state.
// The state is 32 bytes from crypto/rand, base64url encoded, and is
// globally unique for practical purposes.
func NewAuthSession(deviceID string, ttl time.Duration) (*AuthSession, error) {
	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		return nil, err
	}

	now := time.Now()
	return &AuthSession{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		OAuthState: base64.RawURLEncoding.EncodeToString(stateBytes),
		Status:     StatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// IsExpired checks if the session has passed its expiry
func (s *AuthSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Repository defines storage operations for auth sessions
type Repository interface {
	// Create stores a new pending session and, in the same atomic
	// step, expires any prior pending session for the device
	Create(ctx context.Context, sess *AuthSession) error

	// Consume atomically finds the pending, unexpired session for the
	// state and flips it to completed, returning it. A second call
	// with the same state fails with ErrInvalidState.
	Consume(ctx context.Context, state string) (*AuthSession, error)

	// SetStatus updates a session's status by id
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error

	// PurgeExpired marks pending sessions past expiry as expired and
	// returns how many rows changed
	PurgeExpired(ctx context.Context) (int64, error)
}
