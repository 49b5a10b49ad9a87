// Package pipeline runs the full voice command flow: credential gate,
// transcription, intent resolution, playback dispatch.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/voicebridge/voicebridge/internal/vbridged/device"
	verrors "github.com/voicebridge/voicebridge/internal/vbridged/errors"
	"github.com/voicebridge/voicebridge/internal/vbridged/intent"
	"github.com/voicebridge/voicebridge/internal/vbridged/playback"
	"github.com/voicebridge/voicebridge/internal/vbridged/transcribe"
	"github.com/voicebridge/voicebridge/internal/vbridged/vault"
)

// CredentialGate reports whether a device holds stored credentials
type CredentialGate interface {
	Status(ctx context.Context, deviceID string) (*vault.Status, error)
}

// CommandDispatcher executes a resolved command
type CommandDispatcher interface {
	Dispatch(ctx context.Context, deviceID string, cmd *intent.PlaybackCommand) (*playback.Result, error)
}

// Outcome is the result of a processed voice command
type Outcome struct {
	Transcript  string
	Command     *intent.PlaybackCommand
	ActionTaken string
	Message     string
}

// Pipeline processes uploaded voice commands end to end
type Pipeline struct {
	gate        CredentialGate
	transcriber transcribe.Transcriber
	dispatcher  CommandDispatcher
	logger      *slog.Logger
}

// New creates a command pipeline
func New(gate CredentialGate, transcriber transcribe.Transcriber, dispatcher CommandDispatcher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		gate:        gate,
		transcriber: transcriber,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Run processes a voice command for a device. The credential check
// happens before transcription so audio from unlinked devices is
// rejected without spending a transcription call.
func (p *Pipeline) Run(ctx context.Context, deviceID, filename string, audio io.Reader) (*Outcome, error) {
	const op = "pipeline.Run"

	if !device.ValidID(deviceID) {
		return nil, verrors.NewError("INVALID_DEVICE_ID", "device id must be 1-64 characters of [A-Za-z0-9_-]", op, verrors.ErrInvalidInput)
	}
	if !transcribe.ValidFormat(filename) {
		return nil, verrors.NewError("UNSUPPORTED_FORMAT", "unsupported audio format", op, verrors.ErrInvalidInput)
	}

	if _, err := p.gate.Status(ctx, deviceID); err != nil {
		return nil, err
	}

	transcript, err := p.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}

	p.logger.Info("transcript resolved",
		"deviceId", deviceID,
		"transcript", transcript,
	)

	cmd, err := intent.Resolve(transcript)
	if err != nil {
		return &Outcome{Transcript: transcript}, err
	}

	result, err := p.dispatcher.Dispatch(ctx, deviceID, cmd)
	if err != nil {
		return &Outcome{Transcript: transcript, Command: cmd}, err
	}

	return &Outcome{
		Transcript:  transcript,
		Command:     cmd,
		ActionTaken: result.ActionTaken,
		Message:     result.ActionTaken,
	}, nil
}
