package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/voicebridge/internal/vbridged/config"
)

// memStore is an in-process Store with the same contract as the Redis
// implementation
type memStore struct {
	mu     sync.Mutex
	counts map[LimitKey]int
	err    error
}

func newMemStore() *memStore {
	return &memStore{counts: make(map[LimitKey]int)}
}

func (s *memStore) Increment(ctx context.Context, key LimitKey, limit Limit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.counts[key]++
	count := s.counts[key]
	if count > limit.Rate+limit.BurstSize {
		return count, ErrLimitExceeded
	}
	return count, nil
}

func (s *memStore) Reset(ctx context.Context, key LimitKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store Store) Service {
	svc := NewService(store, testLogger())
	svc.RegisterConfiguredLimits(config.RateLimitConfig{
		QRPerMinute:      3,
		CommandPerMinute: 2,
	})
	return svc
}

func TestAllowUnderLimit(t *testing.T) {
	svc := newTestService(newMemStore())
	key := LimitKey{Type: TypeQRRequest, DeviceID: "dev-1"}

	for i := 0; i < 3; i++ {
		assert.NoError(t, svc.Allow(context.Background(), key))
	}
	assert.ErrorIs(t, svc.Allow(context.Background(), key), ErrLimitExceeded)
}

func TestAllowIsolatesKeys(t *testing.T) {
	svc := newTestService(newMemStore())

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Allow(context.Background(), LimitKey{Type: TypeQRRequest, DeviceID: "dev-1"}))
	}
	assert.NoError(t, svc.Allow(context.Background(), LimitKey{Type: TypeQRRequest, DeviceID: "dev-2"}))
}

func TestAllowRequiresKeyType(t *testing.T) {
	svc := newTestService(newMemStore())

	assert.ErrorIs(t, svc.Allow(context.Background(), LimitKey{}), ErrInvalidKey)
}

func TestAllowUnconfiguredTypePasses(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())

	assert.NoError(t, svc.Allow(context.Background(), LimitKey{Type: "unconfigured"}))
}

func TestResetClearsCounter(t *testing.T) {
	svc := newTestService(newMemStore())
	key := LimitKey{Type: TypeCommand, DeviceID: "dev-1"}

	// Command limit is 2 per minute plus a burst of 5
	for i := 0; i < 7; i++ {
		require.NoError(t, svc.Allow(context.Background(), key))
	}
	require.ErrorIs(t, svc.Allow(context.Background(), key), ErrLimitExceeded)

	require.NoError(t, svc.Reset(context.Background(), key))
	assert.NoError(t, svc.Allow(context.Background(), key))
}

func TestRegisterConfiguredLimitsRejectsZeroRate(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	svc := NewService(newMemStore(), logger)
	svc.RegisterConfiguredLimits(config.RateLimitConfig{
		QRPerMinute:      0,
		CommandPerMinute: 2,
	})

	assert.Equal(t, 0, svc.GetLimit(TypeQRRequest).Rate)
	assert.Equal(t, 2, svc.GetLimit(TypeCommand).Rate)
	assert.Contains(t, logBuf.String(), "qr rate limit not registered")
}

func TestRegisterConfiguredLimits(t *testing.T) {
	svc := newTestService(newMemStore())

	qr := svc.GetLimit(TypeQRRequest)
	assert.Equal(t, 3, qr.Rate)
	assert.Equal(t, time.Minute, qr.Period)

	cmd := svc.GetLimit(TypeCommand)
	assert.Equal(t, 2, cmd.Rate)
	assert.Equal(t, 5, cmd.BurstSize)
}

func TestMiddlewareReturns429(t *testing.T) {
	svc := newTestService(newMemStore())
	limited := Middleware(svc, testLogger(), Options{LimitType: TypeQRRequest})(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = httptest.NewRecorder()
		limited.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/qr/dev-1", nil))
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "rate_limit_exceeded")
}

func TestMiddlewareFailsOpenOnStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	svc := newTestService(store)
	limited := Middleware(svc, testLogger(), Options{LimitType: TypeQRRequest})(okHandler())

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr/dev-1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareSkipCheck(t *testing.T) {
	svc := newTestService(newMemStore())
	limited := Middleware(svc, testLogger(), Options{
		LimitType:      TypeQRRequest,
		SkipLimitCheck: func(r *http.Request) bool { return true },
	})(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr/dev-1", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
