// Package http implements the service's HTTP boundary.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	v1 "github.com/voicebridge/voicebridge/api/types/v1"
	"github.com/voicebridge/voicebridge/internal/vbridged/device"
	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
	"github.com/voicebridge/voicebridge/internal/vbridged/oauth"
	"github.com/voicebridge/voicebridge/internal/vbridged/pipeline"
	"github.com/voicebridge/voicebridge/internal/vbridged/qr"
	"github.com/voicebridge/voicebridge/internal/vbridged/ratelimit"
	"github.com/voicebridge/voicebridge/internal/vbridged/shorturl"
	"github.com/voicebridge/voicebridge/internal/vbridged/vault"
)

// Uploaded voice clips are a few seconds of audio; anything bigger is
// not a voice command.
const maxUploadSize = 10 << 20

// Handler exposes the voice bridge over HTTP
type Handler struct {
	oauth     *oauth.Controller
	pipeline  *pipeline.Pipeline
	vault     *vault.Service
	shortener *shorturl.Service
	limiters  *ratelimit.EndpointLimiters
	baseURL   string
	version   string
	logger    *slog.Logger
}

// NewHandler creates an HTTP handler. limiters may be nil when rate
// limiting is disabled.
func NewHandler(
	oauthCtrl *oauth.Controller,
	pipe *pipeline.Pipeline,
	vaultSvc *vault.Service,
	shortener *shorturl.Service,
	limiters *ratelimit.EndpointLimiters,
	baseURL string,
	version string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		oauth:     oauthCtrl,
		pipeline:  pipe,
		vault:     vaultSvc,
		shortener: shortener,
		limiters:  limiters,
		baseURL:   baseURL,
		version:   version,
		logger:    logger,
	}
}

// GetQR begins a linking attempt and renders the authorization URL as
// a PNG QR code. The URL is shortened first because provider
// authorization URLs are too long to scan reliably.
func (h *Handler) GetQR(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	authURL, err := h.oauth.StartLink(r.Context(), deviceID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	code, err := h.shortener.Shorten(r.Context(), authURL)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	png, err := qr.EncodePNG(h.baseURL+"/u/"+code, 256)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	// Each QR carries a fresh single-use state; caching one would
	// hand out a dead link.
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Write(png)
}

// AuthCallback completes the linking flow from the provider redirect.
// The user sees this page on their phone, so it renders HTML.
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	deviceID, err := h.oauth.HandleCallback(r.Context(), q.Get("state"), q.Get("code"), q.Get("error"))
	if err != nil {
		ae := mapError(err)
		renderErrorPage(w, ae.Status, ae.Message, h.logger)
		return
	}

	renderSuccessPage(w, deviceID, h.logger)
}

// PostCommand accepts a multipart voice command upload and runs it
// through the pipeline
func (h *Handler) PostCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, verrors.NewError("INVALID_INPUT", "could not parse upload", "http.PostCommand", verrors.ErrInvalidInput), h.logger)
		return
	}

	deviceID := r.FormValue("device_id")

	file, header, err := r.FormFile("audio")
	if err != nil {
		// The original device firmware uploads under "file"
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		writeError(w, verrors.NewError("MISSING_AUDIO", "no audio file in upload", "http.PostCommand", verrors.ErrInvalidInput), h.logger)
		return
	}
	defer file.Close()

	outcome, err := h.pipeline.Run(r.Context(), deviceID, header.Filename, file)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	resp := v1.CommandResponse{
		Transcript: outcome.Transcript,
		Message:    outcome.Message,
	}
	if outcome.Command != nil {
		resp.Action = string(outcome.Command.Action)
		resp.Target = string(outcome.Command.Target)
		resp.Query = outcome.Command.Query
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// PostRefresh forces a credential refresh for a device
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	var req v1.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, verrors.NewError("INVALID_INPUT", "could not parse request body", "http.PostRefresh", verrors.ErrInvalidInput), h.logger)
		return
	}

	if !device.ValidID(req.DeviceID) {
		writeError(w, verrors.NewError("INVALID_DEVICE_ID", "invalid device id", "http.PostRefresh", verrors.ErrInvalidInput), h.logger)
		return
	}

	status, err := h.vault.Refresh(r.Context(), req.DeviceID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, v1.RefreshResponse{
		DeviceID:  status.DeviceID,
		ExpiresAt: status.ExpiresAt,
		Scopes:    status.Scopes,
	}, h.logger)
}

// GetDeviceStatus reports whether a device is linked and its token
// state. Unknown devices are a 404 rather than a 401: this endpoint
// answers "does this device exist here", not "may you act".
func (h *Handler) GetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	if !device.ValidID(deviceID) {
		writeError(w, verrors.NewError("INVALID_DEVICE_ID", "invalid device id", "http.GetDeviceStatus", verrors.ErrInvalidInput), h.logger)
		return
	}

	status, err := h.vault.Status(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, vault.ErrNotAuthenticated) {
			writeError(w, &apiError{"NOT_LINKED", "device is not linked", http.StatusNotFound, err}, h.logger)
			return
		}
		writeError(w, err, h.logger)
		return
	}

	resp := v1.DeviceStatusResponse{
		DeviceID:    status.DeviceID,
		Linked:      true,
		TokenValid:  !status.Expired,
		ExpiresAt:   &status.ExpiresAt,
		Scopes:      status.Scopes,
		LastUpdated: &status.UpdatedAt,
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// RedirectShort resolves a short code to its long URL
func (h *Handler) RedirectShort(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	longURL, err := h.shortener.Resolve(r.Context(), code)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	http.Redirect(w, r, longURL, http.StatusFound)
}

// GetHealth is the liveness probe
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, v1.HealthResponse{
		Status:  "ok",
		Version: h.version,
	}, h.logger)
}

// GetIndex describes the service
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, v1.IndexResponse{
		Service: "voicebridge",
		Endpoints: map[string]string{
			"qr":       "/qr/{deviceID}",
			"callback": "/auth/callback",
			"command":  "/command",
			"refresh":  "/refresh",
			"status":   "/device/{deviceID}/status",
			"shortURL": "/u/{code}",
			"health":   "/health",
		},
	}, h.logger)
}
