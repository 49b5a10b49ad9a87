package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	v1 "github.com/voicebridge/voicebridge/api/types/v1"
	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
	"github.com/voicebridge/voicebridge/internal/vbridged/intent"
	"github.com/voicebridge/voicebridge/internal/vbridged/oauth"
	"github.com/voicebridge/voicebridge/internal/vbridged/playback"
	"github.com/voicebridge/voicebridge/internal/vbridged/shorturl"
	"github.com/voicebridge/voicebridge/internal/vbridged/transcribe"
	"github.com/voicebridge/voicebridge/internal/vbridged/vault"
)

// apiError pairs a machine-readable code with an HTTP status
type apiError struct {
	Code    string
	Message string
	Status  int
	Cause   error
}

func (e *apiError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *apiError) Unwrap() error {
	return e.Cause
}

// mapError converts domain errors to API errors. This is the single
// place that decides status codes, so every route fails the same way
// for the same cause.
func mapError(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, oauth.ErrInvalidDeviceID):
		return &apiError{"INVALID_DEVICE_ID", "device id must be 1-64 characters of letters, digits, hyphen, underscore", http.StatusBadRequest, err}

	case errors.Is(err, oauth.ErrCsrfOrExpired):
		return &apiError{"INVALID_STATE", "link session not found or expired, scan a fresh QR code", http.StatusBadRequest, err}

	case errors.Is(err, oauth.ErrProviderDenied):
		return &apiError{"ACCESS_DENIED", "authorization was denied", http.StatusBadRequest, err}

	case errors.Is(err, oauth.ErrExchangeFailed):
		return &apiError{"EXCHANGE_FAILED", "could not complete authorization", http.StatusBadRequest, err}

	case errors.Is(err, intent.ErrUnrecognized):
		return &apiError{"UNRECOGNIZED_COMMAND", "could not understand the command", http.StatusBadRequest, err}

	case errors.Is(err, intent.ErrAmbiguousTarget):
		return &apiError{"AMBIGUOUS_TARGET", "could not tell what to play", http.StatusBadRequest, err}

	case errors.Is(err, playback.ErrTargetNotFound):
		return &apiError{"TARGET_NOT_FOUND", "nothing in the catalog matched", http.StatusBadRequest, err}

	case errors.Is(err, playback.ErrNoActiveDevice):
		return &apiError{"NO_ACTIVE_DEVICE", "no playback device is active, open the player app first", http.StatusConflict, err}

	case errors.Is(err, vault.ErrRefreshFailed):
		return &apiError{"REFRESH_FAILED", "stored credentials were rejected, device must relink", http.StatusBadRequest, err}

	case errors.Is(err, vault.ErrIntegrity):
		return &apiError{"CREDENTIALS_INVALIDATED", "stored credentials failed verification, device must relink", http.StatusUnauthorized, err}

	case errors.Is(err, vault.ErrNotAuthenticated):
		return &apiError{"NOT_LINKED", "device is not linked", http.StatusUnauthorized, err}

	case errors.Is(err, transcribe.ErrEmptyTranscript):
		return &apiError{"TRANSCRIPTION_FAILED", "no speech recognized in the audio", http.StatusBadRequest, err}

	case errors.Is(err, shorturl.ErrCodeNotFound):
		return &apiError{"NOT_FOUND", "short link not found", http.StatusNotFound, err}

	case errors.Is(err, verrors.ErrUpstreamUnavailable):
		return &apiError{"UPSTREAM_UNAVAILABLE", "an upstream service is unavailable, try again", http.StatusServiceUnavailable, err}

	case errors.Is(err, verrors.ErrInvalidInput):
		return &apiError{"INVALID_INPUT", "invalid request", http.StatusBadRequest, err}

	case errors.Is(err, verrors.ErrNotFound):
		return &apiError{"NOT_FOUND", "not found", http.StatusNotFound, err}

	default:
		return &apiError{"INTERNAL_ERROR", "an unexpected error occurred", http.StatusInternalServerError, err}
	}
}

// writeError writes an error as the standard JSON envelope
func writeError(w http.ResponseWriter, err error, logger *slog.Logger) {
	ae := mapError(err)

	if ae.Status >= 500 {
		logger.Error("request failed", "code", ae.Code, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(ae.Status)

	resp := v1.ErrorResponse{
		Error:   ae.Code,
		Message: ae.Message,
	}
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		logger.Error("failed to write error response",
			"error", encodeErr,
			"originalError", err,
		)
	}
}

// writeJSON writes a success payload
func writeJSON(w http.ResponseWriter, status int, payload interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
