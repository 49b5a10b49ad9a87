// Package postgres implements short URL persistence.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/voicebridge/voicebridge/internal/vbridged/shorturl"
)

// Repository stores short URL mappings in PostgreSQL
type Repository struct {
	db *sql.DB
}

// NewRepository creates a short URL repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, code, longURL string) error {
	const op = "ShortURLRepository.Insert"

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO short_urls (code, long_url)
		VALUES ($1, $2)
	`, code, longURL)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "long_url") {
				return shorturl.ErrDuplicateURL
			}
			return shorturl.ErrDuplicateCode
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *Repository) FindByURL(ctx context.Context, longURL string) (string, error) {
	const op = "ShortURLRepository.FindByURL"

	var code string
	err := r.db.QueryRowContext(ctx, `
		SELECT code FROM short_urls WHERE long_url = $1
	`, longURL).Scan(&code)
	if err == sql.ErrNoRows {
		return "", shorturl.ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return code, nil
}

func (r *Repository) FindByCode(ctx context.Context, code string) (string, error) {
	const op = "ShortURLRepository.FindByCode"

	var longURL string
	err := r.db.QueryRowContext(ctx, `
		SELECT long_url FROM short_urls WHERE code = $1
	`, code).Scan(&longURL)
	if err == sql.ErrNoRows {
		return "", shorturl.ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return longURL, nil
}
