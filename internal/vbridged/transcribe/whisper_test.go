package transcribe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(serverURL string) *WhisperClient {
	c := NewWhisperClient("test-key", "whisper-1", 0, testLogger())
	c.url = serverURL
	return c
}

func TestValidFormat(t *testing.T) {
	valid := []string{"clip.wav", "clip.mp3", "CLIP.WAV", "voice.m4a", "a.webm", "b.mp4", "c.mpeg", "d.mpga"}
	for _, name := range valid {
		assert.True(t, ValidFormat(name), "expected %q to be accepted", name)
	}

	invalid := []string{"notes.txt", "clip.ogg", "clip", "", ".wav.exe", "archive.zip"}
	for _, name := range invalid {
		assert.False(t, ValidFormat(name), "expected %q to be rejected", name)
	}
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "clip.wav", header.Filename)

		w.Write([]byte(`{"text":" pause the music "}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	text, err := client.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav")

	require.NoError(t, err)
	assert.Equal(t, "pause the music", text)
}

func TestTranscribeRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text":"next"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	text, err := client.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav")

	require.NoError(t, err)
	assert.Equal(t, "next", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTranscribeGivesUpAfterRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav")

	assert.ErrorIs(t, err, verrors.ErrUpstreamUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTranscribeClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad audio"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav")

	require.Error(t, err)
	assert.NotErrorIs(t, err, verrors.ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTranscribeEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   "}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav")

	assert.ErrorIs(t, err, ErrEmptyTranscript)
}
