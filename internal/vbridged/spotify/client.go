// Package spotify is the playback-provider client.
//
// API shapes follow https://developer.spotify.com/documentation/web-api/reference/
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
)

const (
	authURL  = "https://accounts.spotify.com/authorize"
	tokenURL = "https://accounts.spotify.com/api/token"
	baseURL  = "https://api.spotify.com/v1"

	requestTimeout = 10 * time.Second
)

// ErrRefreshRejected indicates the token endpoint rejected the refresh
// token (revoked or invalid), as opposed to being unreachable
var ErrRefreshRejected = errors.New("refresh token rejected")

// Token is the result of a code exchange or refresh
type Token struct {
	AccessToken  string
	RefreshToken string
	Scopes       string
	ExpiresAt    time.Time
}

// Device is a provider playback device (speaker, phone, app instance)
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// PlaybackState is the provider's current playback report
type PlaybackState struct {
	Device    Device `json:"device"`
	IsPlaying bool   `json:"is_playing"`
}

// Item is a search result entry
type Item struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// APIError is a non-2xx provider response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
}

// Client talks to the Spotify accounts service and Web API
type Client struct {
	oauth   *oauth2.Config
	http    *http.Client
	base    string
	timeout time.Duration
	logger  *slog.Logger
}

// Config holds provider OAuth settings
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// NewClient creates a provider client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		http:    &http.Client{Timeout: requestTimeout},
		base:    baseURL,
		timeout: requestTimeout,
		logger:  logger,
	}
}

// AuthCodeURL returns the provider authorization URL carrying the
// anti-CSRF state
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, mapTokenEndpointError("code exchange", err)
	}
	return fromOAuth2Token(tok), nil
}

// Refresh trades a refresh token for a fresh access token. A 4xx from
// the token endpoint means the refresh token is no longer usable and
// maps to ErrRefreshRejected; anything else is transient.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
		}
		return nil, fmt.Errorf("%w: refreshing token: %v", verrors.ErrUpstreamUnavailable, err)
	}
	return fromOAuth2Token(tok), nil
}

func fromOAuth2Token(tok *oauth2.Token) *Token {
	scopes, _ := tok.Extra("scope").(string)
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scopes:       scopes,
		ExpiresAt:    tok.Expiry,
	}
}

func mapTokenEndpointError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", verrors.ErrUpstreamUnavailable, op, err)
}

// CurrentPlayback returns the user's current playback state, or nil
// when the provider reports no active device
func (c *Client) CurrentPlayback(ctx context.Context, accessToken string) (*PlaybackState, error) {
	var state PlaybackState
	status, err := c.doRequest(ctx, http.MethodGet, "/me/player", accessToken, nil, &state)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &state, nil
}

// Search returns the first result of the given type, or nil when the
// provider returns no matches
func (c *Client) Search(ctx context.Context, accessToken, query, itemType string) (*Item, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=%s&limit=1",
		url.QueryEscape(query), url.QueryEscape(itemType))

	var payload map[string]struct {
		Items []Item `json:"items"`
	}
	if _, err := c.doRequest(ctx, http.MethodGet, endpoint, accessToken, nil, &payload); err != nil {
		return nil, err
	}

	items := payload[itemType+"s"].Items
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// Play resumes playback on the active device
func (c *Client) Play(ctx context.Context, accessToken string) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/me/player/play", accessToken, nil, nil)
	return err
}

// PlayContext starts playback of an album, artist, or playlist context
func (c *Client) PlayContext(ctx context.Context, accessToken, contextURI string) error {
	body, _ := json.Marshal(map[string]string{"context_uri": contextURI})
	_, err := c.doRequest(ctx, http.MethodPut, "/me/player/play", accessToken, body, nil)
	return err
}

// PlayURIs starts playback of the given track URIs
func (c *Client) PlayURIs(ctx context.Context, accessToken string, uris []string) error {
	body, _ := json.Marshal(map[string][]string{"uris": uris})
	_, err := c.doRequest(ctx, http.MethodPut, "/me/player/play", accessToken, body, nil)
	return err
}

// Pause pauses playback
func (c *Client) Pause(ctx context.Context, accessToken string) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/me/player/pause", accessToken, nil, nil)
	return err
}

// Next skips to the next track
func (c *Client) Next(ctx context.Context, accessToken string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/me/player/next", accessToken, nil, nil)
	return err
}

// Previous skips to the previous track
func (c *Client) Previous(ctx context.Context, accessToken string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/me/player/previous", accessToken, nil, nil)
	return err
}

// QueueAdd appends a track to the playback queue
func (c *Client) QueueAdd(ctx context.Context, accessToken, uri string) error {
	endpoint := "/me/player/queue?uri=" + url.QueryEscape(uri)
	_, err := c.doRequest(ctx, http.MethodPost, endpoint, accessToken, nil, nil)
	return err
}

// doRequest performs an authenticated request with a bounded timeout,
// retrying exactly once on transient failure. A second transient
// failure surfaces as ErrUpstreamUnavailable; it is not retried
// further so a flaky network cannot execute a command twice beyond
// the single retry.
func (c *Client) doRequest(ctx context.Context, method, endpoint, accessToken string, body []byte, result interface{}) (int, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		status, err := c.attempt(ctx, method, endpoint, accessToken, body, result)
		if err == nil {
			return status, nil
		}
		if !isTransient(err) {
			return 0, err
		}
		lastErr = err
	}

	c.logger.Warn("provider unavailable after retry",
		"method", method,
		"endpoint", endpoint,
		"error", lastErr,
	)
	return 0, fmt.Errorf("%w: %v", verrors.ErrUpstreamUnavailable, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, endpoint, accessToken string, body []byte, result interface{}) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &transientError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return 0, &transientError{&APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
			return 0, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(data))
}
