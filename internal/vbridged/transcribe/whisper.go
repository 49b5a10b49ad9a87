// Package transcribe turns uploaded audio into text via the OpenAI
// audio transcription API.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
)

const (
	transcriptionURL = "https://api.openai.com/v1/audio/transcriptions"

	defaultTimeout = 30 * time.Second
)

// ErrEmptyTranscript indicates the transcription service returned no
// usable text for the audio
var ErrEmptyTranscript = errors.New("empty transcript")

var validExtensions = map[string]bool{
	".mp3":  true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".m4a":  true,
	".wav":  true,
	".webm": true,
}

// ValidFormat reports whether the uploaded filename carries an audio
// extension the transcription service accepts
func ValidFormat(filename string) bool {
	return validExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Transcriber converts audio to text
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// WhisperClient calls the hosted transcription endpoint
type WhisperClient struct {
	apiKey  string
	model   string
	url     string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// NewWhisperClient creates a transcription client. A zero timeout
// selects the default.
func NewWhisperClient(apiKey, model string, timeout time.Duration, logger *slog.Logger) *WhisperClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WhisperClient{
		apiKey:  apiKey,
		model:   model,
		url:     transcriptionURL,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Transcribe uploads the audio and returns the recognized text. The
// audio is buffered once so a transient failure can be retried with
// an identical body.
func (c *WhisperClient) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	body, contentType, err := c.buildForm(audio, filename)
	if err != nil {
		return "", err
	}

	text, err := c.send(ctx, body, contentType)
	if err != nil && errors.Is(err, verrors.ErrUpstreamUnavailable) {
		c.logger.Warn("transcription retry", "filename", filename, "error", err)
		text, err = c.send(ctx, body, contentType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

func (c *WhisperClient) buildForm(audio io.Reader, filename string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, "", fmt.Errorf("failed to buffer audio: %w", err)
	}
	if err := w.WriteField("model", c.model); err != nil {
		return nil, "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *WhisperClient) send(ctx context.Context, body []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: transcription request: %v", verrors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: transcription service returned %d", verrors.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode transcription: %w", err)
	}
	return payload.Text, nil
}
