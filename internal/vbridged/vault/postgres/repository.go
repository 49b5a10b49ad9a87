package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
	"github.com/voicebridge/voicebridge/internal/vbridged/vault"
)

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepository(db *sql.DB, logger *slog.Logger) vault.Repository {
	return &Repository{db: db, logger: logger}
}

// Save upserts the record in a single statement so a reader never
// observes a partially written row
func (r *Repository) Save(ctx context.Context, record *vault.TokenRecord) error {
	const op = "TokenRepository.Save"

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_tokens (
			device_id, encrypted_access_token, encrypted_refresh_token,
			access_token_expires_at, scopes, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (device_id) DO UPDATE SET
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
			access_token_expires_at = EXCLUDED.access_token_expires_at,
			scopes = EXCLUDED.scopes,
			updated_at = EXCLUDED.updated_at
	`,
		record.DeviceID,
		record.EncryptedAccessToken,
		record.EncryptedRefreshToken,
		record.AccessTokenExpiresAt,
		record.Scopes,
		record.UpdatedAt,
	)
	if err != nil {
		return verrors.NewError("DB_ERROR", "failed to save token record", op, err)
	}
	return nil
}

func (r *Repository) Find(ctx context.Context, deviceID string) (*vault.TokenRecord, error) {
	const op = "TokenRepository.Find"

	var record vault.TokenRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT
			device_id, encrypted_access_token, encrypted_refresh_token,
			access_token_expires_at, scopes, updated_at
		FROM device_tokens
		WHERE device_id = $1
	`, deviceID).Scan(
		&record.DeviceID,
		&record.EncryptedAccessToken,
		&record.EncryptedRefreshToken,
		&record.AccessTokenExpiresAt,
		&record.Scopes,
		&record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, vault.ErrNotAuthenticated
	}
	if err != nil {
		return nil, verrors.NewError("DB_ERROR", "failed to find token record", op, err)
	}
	return &record, nil
}

func (r *Repository) Delete(ctx context.Context, deviceID string) error {
	const op = "TokenRepository.Delete"

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM device_tokens
		WHERE device_id = $1
	`, deviceID)
	if err != nil {
		return verrors.NewError("DB_ERROR", "failed to delete token record", op, err)
	}
	return nil
}
