// Package shorturl issues short redirect codes for long provider
// authorization URLs so they fit in a scannable QR code.
package shorturl

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
)

const (
	codeLength   = 6
	codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	maxAttempts = 5
)

var (
	// ErrCodeNotFound indicates no mapping exists for a code
	ErrCodeNotFound = errors.New("short code not found")

	// ErrCodeExhausted indicates repeated collisions while issuing a
	// code, which at 62^6 capacity means something is badly wrong
	ErrCodeExhausted = errors.New("could not allocate a unique short code")
)

// Repository persists code to URL mappings
type Repository interface {
	// Insert stores a new mapping. ErrDuplicateCode signals a code
	// collision; ErrDuplicateURL signals the URL is already mapped.
	Insert(ctx context.Context, code, longURL string) error
	FindByURL(ctx context.Context, longURL string) (string, error)
	FindByCode(ctx context.Context, code string) (string, error)
}

// Sentinel errors the repository reports on unique violations
var (
	ErrDuplicateCode = errors.New("short code already in use")
	ErrDuplicateURL  = errors.New("url already shortened")
)

// Service issues and resolves short codes
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a short URL service
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Shorten returns the code for a URL, reusing an existing mapping
// when one exists. Authorization URLs carry a fresh state each time,
// so in practice every QR request mints a new row; session GC bounds
// how long those rows stay useful, not how many accumulate.
// TODO: purge rows older than the session TTL alongside session GC.
func (s *Service) Shorten(ctx context.Context, longURL string) (string, error) {
	if code, err := s.repo.FindByURL(ctx, longURL); err == nil {
		return code, nil
	} else if !errors.Is(err, ErrCodeNotFound) {
		return "", fmt.Errorf("looking up url: %w", err)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}

		err = s.repo.Insert(ctx, code, longURL)
		switch {
		case err == nil:
			return code, nil
		case errors.Is(err, ErrDuplicateURL):
			// Lost a race with a concurrent shorten of the same URL.
			return s.repo.FindByURL(ctx, longURL)
		case errors.Is(err, ErrDuplicateCode):
			s.logger.Warn("short code collision", "attempt", attempt+1)
			continue
		default:
			return "", fmt.Errorf("storing short url: %w", err)
		}
	}

	return "", ErrCodeExhausted
}

// Resolve returns the long URL for a code
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	return s.repo.FindByCode(ctx, code)
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating short code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
