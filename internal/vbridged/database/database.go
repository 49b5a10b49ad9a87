// Package database provides utilities for database operations
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
)

// Tx wraps a database transaction with additional functionality
type Tx struct {
	*sql.Tx
}

// TxOptions defines options for transaction execution
type TxOptions struct {
	// Isolation sets the transaction isolation level
	Isolation sql.IsolationLevel
	// ReadOnly indicates if the transaction is read-only
	ReadOnly bool
}

// SetupDatabase opens a connection pool and verifies connectivity,
// retrying the initial ping to tolerate a database that is still starting
func SetupDatabase(connStr string, maxRetries int, retryInterval time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	for attempt := 0; ; attempt++ {
		err = db.Ping()
		if err == nil {
			break
		}
		if attempt >= maxRetries {
			db.Close()
			return nil, fmt.Errorf("error connecting to database after %d attempts: %w", attempt+1, err)
		}
		time.Sleep(retryInterval)
	}

	return db, nil
}

// RunInTx executes a function within a transaction
func RunInTx(ctx context.Context, db *sql.DB, opts *TxOptions, fn func(*Tx) error) error {
	var txOpts *sql.TxOptions
	if opts != nil {
		txOpts = &sql.TxOptions{
			Isolation: opts.Isolation,
			ReadOnly:  opts.ReadOnly,
		}
	}

	tx, err := db.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	wtx := &Tx{Tx: tx}

	if err := fn(wtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// MapError converts database-specific errors to domain errors
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return verrors.NewError(
				"CONFLICT",
				"resource already exists",
				op,
				err,
			)
		case "23514": // check_violation
			return verrors.NewError(
				"INVALID_INPUT",
				pqErr.Message,
				op,
				verrors.ErrInvalidInput,
			)
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return verrors.NewError(
			"NOT_FOUND",
			"resource not found",
			op,
			verrors.ErrNotFound,
		)
	}

	return verrors.NewError(
		"INTERNAL",
		"internal database error",
		op,
		err,
	)
}

// IsUniqueViolation reports whether err is a postgres unique constraint failure
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
