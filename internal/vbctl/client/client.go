// Package client provides an HTTP client for the voice bridge API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	v1 "github.com/voicebridge/voicebridge/api/types/v1"
)

// Client provides methods for interacting with the voice bridge API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = ""

	return &Client{
		baseURL: u.String(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// DeviceStatus fetches a device's linking state
func (c *Client) DeviceStatus(ctx context.Context, deviceID string) (*v1.DeviceStatusResponse, error) {
	var resp v1.DeviceStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/device/"+deviceID+"/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh forces a credential refresh for a device
func (c *Client) Refresh(ctx context.Context, deviceID string) (*v1.RefreshResponse, error) {
	var resp v1.RefreshResponse
	req := v1.RefreshRequest{DeviceID: deviceID}
	if err := c.doJSON(ctx, http.MethodPost, "/refresh", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks server liveness
func (c *Client) Health(ctx context.Context) (*v1.HealthResponse, error) {
	var resp v1.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveQR fetches the linking QR code for a device and writes the PNG
// to outPath
func (c *Client) SaveQR(ctx context.Context, deviceID, outPath string) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/qr/"+deviceID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	png, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading QR image: %w", err)
	}
	if err := os.WriteFile(outPath, png, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", outPath, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, pathStr string, body, result interface{}) error {
	resp, err := c.doRequest(ctx, method, pathStr, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, pathStr string, body interface{}) (*http.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, pathStr)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr v1.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server error (%d %s): %s", resp.StatusCode, apiErr.Error, apiErr.Message)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
