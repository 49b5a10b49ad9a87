// Package v1 defines the JSON types shared between the server and
// its clients.
package v1

import "time"

// CommandResponse reports the outcome of a processed voice command
type CommandResponse struct {
	// Transcript is the recognized text of the uploaded audio
	Transcript string `json:"transcript"`

	// Action is the playback action that was taken
	Action string `json:"action,omitempty"`

	// Target is the kind of catalog item the command named, if any
	Target string `json:"target,omitempty"`

	// Query is the search text extracted from the command, if any
	Query string `json:"query,omitempty"`

	// Message is a human-readable description of what happened
	Message string `json:"message"`
}

// RefreshRequest asks for a forced credential refresh
type RefreshRequest struct {
	DeviceID string `json:"device_id"`
}

// RefreshResponse reports the credential state after a refresh
type RefreshResponse struct {
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Scopes    string    `json:"scopes,omitempty"`
}

// DeviceStatusResponse reports whether a device is linked
type DeviceStatusResponse struct {
	DeviceID    string     `json:"device_id"`
	Linked      bool       `json:"linked"`
	TokenValid  bool       `json:"token_valid"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Scopes      string     `json:"scopes,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// IndexResponse describes the service and its endpoints
type IndexResponse struct {
	Service   string            `json:"service"`
	Endpoints map[string]string `json:"endpoints"`
}
