// Package playback executes resolved commands against the provider
// on behalf of a device.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voicebridge/voicebridge/internal/vbridged/intent"
	"github.com/voicebridge/voicebridge/internal/vbridged/spotify"
)

var (
	// ErrNoActiveDevice indicates the provider account has no device
	// currently available for playback
	ErrNoActiveDevice = errors.New("no active playback device")

	// ErrTargetNotFound indicates the catalog search produced no match
	ErrTargetNotFound = errors.New("no matching catalog item")
)

// TokenSource yields a usable access token for a device
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, deviceID string) (string, error)
}

// Provider is the playback surface the dispatcher needs
type Provider interface {
	CurrentPlayback(ctx context.Context, accessToken string) (*spotify.PlaybackState, error)
	Search(ctx context.Context, accessToken, query, itemType string) (*spotify.Item, error)
	Play(ctx context.Context, accessToken string) error
	PlayContext(ctx context.Context, accessToken, contextURI string) error
	PlayURIs(ctx context.Context, accessToken string, uris []string) error
	Pause(ctx context.Context, accessToken string) error
	Next(ctx context.Context, accessToken string) error
	Previous(ctx context.Context, accessToken string) error
	QueueAdd(ctx context.Context, accessToken, uri string) error
}

// Result describes what the dispatcher did, for user-facing feedback
type Result struct {
	ActionTaken string
	ItemName    string
}

// Dispatcher executes playback commands
type Dispatcher struct {
	tokens   TokenSource
	provider Provider
	logger   *slog.Logger
}

// NewDispatcher creates a command dispatcher
func NewDispatcher(tokens TokenSource, provider Provider, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		tokens:   tokens,
		provider: provider,
		logger:   logger,
	}
}

// Dispatch executes a resolved command for a device. The active
// device check happens after credentials resolve and before any
// catalog search, so an unlinked device never reaches the provider
// and a device-less account never pays for a search.
func (d *Dispatcher) Dispatch(ctx context.Context, deviceID string, cmd *intent.PlaybackCommand) (*Result, error) {
	accessToken, err := d.tokens.GetValidAccessToken(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	state, err := d.provider.CurrentPlayback(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("checking playback state: %w", err)
	}
	if state == nil || state.Device.ID == "" {
		return nil, ErrNoActiveDevice
	}

	switch cmd.Action {
	case intent.ActionPause:
		if err := d.provider.Pause(ctx, accessToken); err != nil {
			return nil, err
		}
		return &Result{ActionTaken: "paused"}, nil

	case intent.ActionResume:
		if err := d.provider.Play(ctx, accessToken); err != nil {
			return nil, err
		}
		return &Result{ActionTaken: "resumed"}, nil

	case intent.ActionNext:
		if err := d.provider.Next(ctx, accessToken); err != nil {
			return nil, err
		}
		return &Result{ActionTaken: "skipped to next track"}, nil

	case intent.ActionPrevious:
		if err := d.provider.Previous(ctx, accessToken); err != nil {
			return nil, err
		}
		return &Result{ActionTaken: "went back to previous track"}, nil

	case intent.ActionPlay:
		return d.playTarget(ctx, accessToken, cmd)

	case intent.ActionQueue:
		return d.queueTrack(ctx, accessToken, cmd)

	default:
		return nil, fmt.Errorf("unsupported action %q", cmd.Action)
	}
}

func (d *Dispatcher) playTarget(ctx context.Context, accessToken string, cmd *intent.PlaybackCommand) (*Result, error) {
	item, err := d.search(ctx, accessToken, cmd)
	if err != nil {
		return nil, err
	}

	switch cmd.Target {
	case intent.TargetTrack:
		err = d.provider.PlayURIs(ctx, accessToken, []string{item.URI})
	default:
		err = d.provider.PlayContext(ctx, accessToken, item.URI)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info("playback started",
		"target", string(cmd.Target),
		"item", item.Name,
	)
	return &Result{
		ActionTaken: fmt.Sprintf("playing %s %q", cmd.Target, item.Name),
		ItemName:    item.Name,
	}, nil
}

func (d *Dispatcher) queueTrack(ctx context.Context, accessToken string, cmd *intent.PlaybackCommand) (*Result, error) {
	item, err := d.search(ctx, accessToken, cmd)
	if err != nil {
		return nil, err
	}
	if err := d.provider.QueueAdd(ctx, accessToken, item.URI); err != nil {
		return nil, err
	}
	return &Result{
		ActionTaken: fmt.Sprintf("queued %q", item.Name),
		ItemName:    item.Name,
	}, nil
}

func (d *Dispatcher) search(ctx context.Context, accessToken string, cmd *intent.PlaybackCommand) (*spotify.Item, error) {
	if cmd.Target == intent.TargetTrack {
		// "Thriller by Michael Jackson" narrows the search with a
		// field filter instead of a free-text blob.
		if title, artist, ok := splitByArtist(cmd.Query); ok {
			filtered := fmt.Sprintf("track:%q artist:%q", title, artist)
			item, err := d.provider.Search(ctx, accessToken, filtered, string(cmd.Target))
			if err != nil {
				return nil, fmt.Errorf("searching for %q: %w", cmd.Query, err)
			}
			if item != nil {
				return item, nil
			}
			// The marker can split a title that merely contains "by";
			// fall back to the free-text query before giving up.
			d.logger.Debug("filtered search missed, retrying free text",
				"query", cmd.Query,
			)
		}
	}

	item, err := d.provider.Search(ctx, accessToken, cmd.Query, string(cmd.Target))
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", cmd.Query, err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %q", ErrTargetNotFound, cmd.Query)
	}
	return item, nil
}

// splitByArtist splits "title by artist" / "title de artist" on the
// last marker so titles containing "by" stay intact.
func splitByArtist(query string) (title, artist string, ok bool) {
	lower := strings.ToLower(query)
	for _, marker := range []string{" by ", " de ", " do ", " da "} {
		if idx := strings.LastIndex(lower, marker); idx > 0 {
			title = strings.TrimSpace(query[:idx])
			artist = strings.TrimSpace(query[idx+len(marker):])
			if title != "" && artist != "" {
				return title, artist, true
			}
		}
	}
	return "", "", false
}
