package session_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/voicebridge/internal/vbridged/session"
)

// memRepo mirrors the postgres repository's atomicity guarantees with
// a mutex so the service's concurrency behavior can be tested without
// a database
type memRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session.AuthSession
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: make(map[uuid.UUID]*session.AuthSession)}
}

func (r *memRepo) Create(ctx context.Context, sess *session.AuthSession) error {
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

func (r *memRepo) Consume(ctx context.Context, state string) (*session.AuthSession, error) {
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

func (r *memRepo) SetStatus(ctx context.Context, id uuid.UUID, status session.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Status = status
	}
	return nil
}

func (r *memRepo) PurgeExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.Status == session.StatusPending && s.IsExpired() {
			s.Status = session.StatusExpired
			n++
		}
	}
	return n, nil
}

func (r *memRepo) statusOf(id uuid.UUID) session.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id].Status
}

func newTestService(repo session.Repository, ttl time.Duration) *session.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return session.NewService(repo, ttl, logger)
}

func TestBeginIssuesUniqueStates(t *testing.T) {
	svc := newTestService(newMemRepo(), 5*time.Minute)
	ctx := context.Background()

	a, err := svc.Begin(ctx, "dev-1")
	require.NoError(t, err)
	b, err := svc.Begin(ctx, "dev-2")
	require.NoError(t, err)

	assert.NotEqual(t, a.OAuthState, b.OAuthState)
	assert.Equal(t, session.StatusPending, a.Status)
	assert.True(t, a.ExpiresAt.After(time.Now()))
}

func TestBeginSupersedesPriorPending(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, 5*time.Minute)
	ctx := context.Background()

	first, err := svc.Begin(ctx, "dev-1")
	require.NoError(t, err)
	second, err := svc.Begin(ctx, "dev-1")
	require.NoError(t, err)

	// The superseded state must be dead
	_, err = svc.Consume(ctx, first.OAuthState)
	assert.ErrorIs(t, err, session.ErrInvalidState)

	// The new state is live
	got, err := svc.Consume(ctx, second.OAuthState)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", got.DeviceID)
}

func TestConsumeIsSingleUse(t *testing.T) {
	svc := newTestService(newMemRepo(), 5*time.Minute)
	ctx := context.Background()

	sess, err := svc.Begin(ctx, "dev-1")
	require.NoError(t, err)

	_, err = svc.Consume(ctx, sess.OAuthState)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, sess.OAuthState)
	assert.ErrorIs(t, err, session.ErrInvalidState)
}

func TestConcurrentConsumeExactlyOnce(t *testing.T) {
	svc := newTestService(newMemRepo(), 5*time.Minute)
	ctx := context.Background()

	sess, err := svc.Begin(ctx, "dev-1")
	require.NoError(t, err)

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Consume(ctx, sess.OAuthState)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, session.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, wins, "exactly one caller may consume the state")
}

func TestConsumeExpiredSession(t *testing.T) {
	svc := newTestService(newMemRepo(), -time.Second)
	ctx := context.Background()

	sess, err := svc.Begin(ctx, "dev-1")
	require.NoError(t, err)

	_, err = svc.Consume(ctx, sess.OAuthState)
	assert.ErrorIs(t, err, session.ErrInvalidState)
}

func TestFailMarksSession(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, 5*time.Minute)
	ctx := context.Background()

	sess, err := svc.Begin(ctx, "dev-1")
	require.NoError(t, err)
	consumed, err := svc.Consume(ctx, sess.OAuthState)
	require.NoError(t, err)

	svc.Fail(ctx, consumed)
	assert.Equal(t, session.StatusFailed, repo.statusOf(sess.ID))
}

func TestPurgeExpired(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()

	stale := newTestService(repo, -time.Second)
	fresh := newTestService(repo, 5*time.Minute)

	_, err := stale.Begin(ctx, "dev-old")
	require.NoError(t, err)
	_, err = fresh.Begin(ctx, "dev-new")
	require.NoError(t, err)

	n, err := fresh.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
