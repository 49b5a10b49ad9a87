package oauth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/voicebridge/internal/vbridged/oauth"
	"github.com/voicebridge/voicebridge/internal/vbridged/session"
	"github.com/voicebridge/voicebridge/internal/vbridged/spotify"
)

// memSessionRepo is a minimal in-memory session repository
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session.AuthSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]*session.AuthSession)}
}

func (r *memSessionRepo) Create(ctx context.Context, sess *session.AuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.DeviceID == sess.DeviceID && s.Status == session.StatusPending {
			s.Status = session.StatusExpired
		}
	}
	cp := *sess
	r.sessions[sess.ID] = &cp
	return nil
}

func (r *memSessionRepo) Consume(ctx context.Context, state string) (*session.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.OAuthState == state && s.Status == session.StatusPending && !s.IsExpired() {
			s.Status = session.StatusCompleted
			cp := *s
			return &cp, nil
		}
	}
	return nil, session.ErrInvalidState
}

func (r *memSessionRepo) SetStatus(ctx context.Context, id uuid.UUID, status session.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Status = status
	}
	return nil
}

func (r *memSessionRepo) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (r *memSessionRepo) statusOf(id uuid.UUID) session.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id].Status
}

// fakeExchanger records exchange calls
type fakeExchanger struct {
	calls int
	token *spotify.Token
	err   error
}

func (f *fakeExchanger) AuthCodeURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*spotify.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

// fakeTokenStore records stored tokens per device
type fakeTokenStore struct {
	stored map[string]*spotify.Token
	err    error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{stored: make(map[string]*spotify.Token)}
}

func (f *fakeTokenStore) Store(ctx context.Context, deviceID string, tok *spotify.Token) error {
	if f.err != nil {
		return f.err
	}
	f.stored[deviceID] = tok
	return nil
}

func newController(repo session.Repository, store oauth.TokenStore, provider oauth.CodeExchanger) *oauth.Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewService(repo, 5*time.Minute, logger)
	return oauth.NewController(sessions, store, provider, logger)
}

func validToken() *spotify.Token {
	return &spotify.Token{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
		Scopes:       "user-modify-playback-state",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestStartLinkReturnsAuthURL(t *testing.T) {
	ctrl := newController(newMemSessionRepo(), newFakeTokenStore(), &fakeExchanger{})

	url, err := ctrl.StartLink(context.Background(), "kitchen-speaker")
	require.NoError(t, err)
	assert.Contains(t, url, "state=")
}

func TestStartLinkRejectsInvalidDeviceID(t *testing.T) {
	ctrl := newController(newMemSessionRepo(), newFakeTokenStore(), &fakeExchanger{})

	for _, id := range []string{"", "has space", "semi;colon", "über-device"} {
		_, err := ctrl.StartLink(context.Background(), id)
		assert.ErrorIs(t, err, oauth.ErrInvalidDeviceID, "id %q", id)
	}
}

func TestCallbackCompletesLink(t *testing.T) {
	repo := newMemSessionRepo()
	store := newFakeTokenStore()
	provider := &fakeExchanger{token: validToken()}
	ctrl := newController(repo, store, provider)
	ctx := context.Background()

	_, err := ctrl.StartLink(ctx, "dev-1")
	require.NoError(t, err)

	var state string
	for _, s := range repo.sessions {
		state = s.OAuthState
	}

	deviceID, err := ctrl.HandleCallback(ctx, state, "auth-code", "")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", deviceID)
	assert.Equal(t, "access-abc", store.stored["dev-1"].AccessToken)
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	provider := &fakeExchanger{token: validToken()}
	ctrl := newController(newMemSessionRepo(), newFakeTokenStore(), provider)

	_, err := ctrl.HandleCallback(context.Background(), "forged-state", "auth-code", "")
	assert.ErrorIs(t, err, oauth.ErrCsrfOrExpired)
	assert.Zero(t, provider.calls, "a bad state must never reach the exchanger")
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	repo := newMemSessionRepo()
	provider := &fakeExchanger{token: validToken()}
	ctrl := newController(repo, newFakeTokenStore(), provider)
	ctx := context.Background()

	_, err := ctrl.StartLink(ctx, "dev-1")
	require.NoError(t, err)
	var state string
	for _, s := range repo.sessions {
		state = s.OAuthState
	}

	_, err = ctrl.HandleCallback(ctx, state, "auth-code", "")
	require.NoError(t, err)

	_, err = ctrl.HandleCallback(ctx, state, "auth-code", "")
	assert.ErrorIs(t, err, oauth.ErrCsrfOrExpired)
	assert.Equal(t, 1, provider.calls)
}

func TestCallbackProviderDenied(t *testing.T) {
	repo := newMemSessionRepo()
	provider := &fakeExchanger{token: validToken()}
	ctrl := newController(repo, newFakeTokenStore(), provider)
	ctx := context.Background()

	_, err := ctrl.StartLink(ctx, "dev-1")
	require.NoError(t, err)
	var sessID uuid.UUID
	var state string
	for id, s := range repo.sessions {
		sessID, state = id, s.OAuthState
	}

	_, err = ctrl.HandleCallback(ctx, state, "", "access_denied")
	assert.ErrorIs(t, err, oauth.ErrProviderDenied)
	assert.Zero(t, provider.calls, "a denied callback must never reach the exchanger")
	assert.Equal(t, session.StatusFailed, repo.statusOf(sessID))

	// The state died with the denial
	_, err = ctrl.HandleCallback(ctx, state, "auth-code", "")
	assert.ErrorIs(t, err, oauth.ErrCsrfOrExpired)
}

func TestCallbackExchangeFailure(t *testing.T) {
	repo := newMemSessionRepo()
	store := newFakeTokenStore()
	provider := &fakeExchanger{err: errors.New("invalid_grant")}
	ctrl := newController(repo, store, provider)
	ctx := context.Background()

	_, err := ctrl.StartLink(ctx, "dev-1")
	require.NoError(t, err)
	var sessID uuid.UUID
	var state string
	for id, s := range repo.sessions {
		sessID, state = id, s.OAuthState
	}

	_, err = ctrl.HandleCallback(ctx, state, "bad-code", "")
	assert.ErrorIs(t, err, oauth.ErrExchangeFailed)
	assert.Equal(t, session.StatusFailed, repo.statusOf(sessID))
	assert.Empty(t, store.stored)
}
