package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voicebridge/voicebridge/internal/vbridged/database"
	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
	"github.com/voicebridge/voicebridge/internal/vbridged/session"
)

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepository(db *sql.DB, logger *slog.Logger) session.Repository {
	return &Repository{db: db, logger: logger}
}

// Create inserts the new pending session and expires any prior pending
// session for the device inside one transaction
func (r *Repository) Create(ctx context.Context, sess *session.AuthSession) error {
	const op = "SessionRepository.Create"

	err := database.RunInTx(ctx, r.db, nil, func(tx *database.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE auth_sessions
			SET status = 'expired'
			WHERE device_id = $1 AND status = 'pending'
		`, sess.DeviceID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO auth_sessions (
				id, device_id, oauth_state, status, created_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6)
		`,
			sess.ID,
			sess.DeviceID,
			sess.OAuthState,
			sess.Status,
			sess.CreatedAt,
			sess.ExpiresAt,
		)
		return err
	})

	if err != nil {
		return verrors.NewError("DB_ERROR", "failed to create auth session", op, err)
	}
	return nil
}

// Consume flips the matching pending row to completed in a single
// statement. The WHERE clause carries the validity checks, so two
// concurrent callbacks with the same state race on one row update and
// exactly one wins.
func (r *Repository) Consume(ctx context.Context, state string) (*session.AuthSession, error) {
	const op = "SessionRepository.Consume"

	var sess session.AuthSession
	err := r.db.QueryRowContext(ctx, `
		UPDATE auth_sessions
		SET status = 'completed'
		WHERE oauth_state = $1
		  AND status = 'pending'
		  AND expires_at > NOW()
		RETURNING id, device_id, oauth_state, status, created_at, expires_at
	`, state).Scan(
		&sess.ID,
		&sess.DeviceID,
		&sess.OAuthState,
		&sess.Status,
		&sess.CreatedAt,
		&sess.ExpiresAt,
	)

	if err == sql.ErrNoRows {
		return nil, session.ErrInvalidState
	}
	if err != nil {
		return nil, verrors.NewError("DB_ERROR", "failed to consume auth session", op, err)
	}
	return &sess, nil
}

func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status session.Status) error {
	const op = "SessionRepository.SetStatus"

	_, err := r.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET status = $2
		WHERE id = $1
	`, id, status)
	if err != nil {
		return verrors.NewError("DB_ERROR", "failed to update auth session", op, err)
	}
	return nil
}

func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	const op = "SessionRepository.PurgeExpired"

	result, err := r.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET status = 'expired'
		WHERE status = 'pending' AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, verrors.NewError("DB_ERROR", "failed to purge auth sessions", op, err)
	}

	return result.RowsAffected()
}
