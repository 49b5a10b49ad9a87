package shorturl_test

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/voicebridge/internal/vbridged/shorturl"
)

type memRepo struct {
	mu     sync.Mutex
	byCode map[string]string
	byURL  map[string]string

	// forceCollisions makes the next N inserts fail as code collisions
	forceCollisions int
}

func newMemRepo() *memRepo {
	return &memRepo{
		byCode: make(map[string]string),
		byURL:  make(map[string]string),
	}
}

func (r *memRepo) Insert(ctx context.Context, code, longURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forceCollisions > 0 {
		r.forceCollisions--
		return shorturl.ErrDuplicateCode
	}
	if _, ok := r.byCode[code]; ok {
		return shorturl.ErrDuplicateCode
	}
	if _, ok := r.byURL[longURL]; ok {
		return shorturl.ErrDuplicateURL
	}
	r.byCode[code] = longURL
	r.byURL[longURL] = code
	return nil
}

func (r *memRepo) FindByURL(ctx context.Context, longURL string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.byURL[longURL]
	if !ok {
		return "", shorturl.ErrCodeNotFound
	}
	return code, nil
}

func (r *memRepo) FindByCode(ctx context.Context, code string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	longURL, ok := r.byCode[code]
	if !ok {
		return "", shorturl.ErrCodeNotFound
	}
	return longURL, nil
}

func newService(repo shorturl.Repository) *shorturl.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return shorturl.NewService(repo, logger)
}

func TestShortenAndResolve(t *testing.T) {
	svc := newService(newMemRepo())
	ctx := context.Background()

	code, err := svc.Shorten(ctx, "https://accounts.example.com/authorize?state=abc")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[a-zA-Z0-9]{6}$`), code)

	longURL, err := svc.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.example.com/authorize?state=abc", longURL)
}

func TestShortenIsIdempotentPerURL(t *testing.T) {
	svc := newService(newMemRepo())
	ctx := context.Background()

	a, err := svc.Shorten(ctx, "https://example.com/one")
	require.NoError(t, err)
	b, err := svc.Shorten(ctx, "https://example.com/one")
	require.NoError(t, err)
	c, err := svc.Shorten(ctx, "https://example.com/two")
	require.NoError(t, err)

	assert.Equal(t, a, b, "same URL must map to the same code")
	assert.NotEqual(t, a, c)
}

func TestShortenRetriesOnCollision(t *testing.T) {
	repo := newMemRepo()
	repo.forceCollisions = 2
	svc := newService(repo)

	code, err := svc.Shorten(context.Background(), "https://example.com/one")
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestShortenGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newMemRepo()
	repo.forceCollisions = 100
	svc := newService(repo)

	_, err := svc.Shorten(context.Background(), "https://example.com/one")
	assert.ErrorIs(t, err, shorturl.ErrCodeExhausted)
}

func TestResolveUnknownCode(t *testing.T) {
	svc := newService(newMemRepo())

	_, err := svc.Resolve(context.Background(), "zzzzzz")
	assert.ErrorIs(t, err, shorturl.ErrCodeNotFound)
}
