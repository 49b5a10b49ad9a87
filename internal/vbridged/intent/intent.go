// Package intent resolves voice transcripts into playback commands.
//
// Resolution is pure string work: no provider calls, no storage. The
// grammar covers English and Portuguese because the original device
// fleet ships to both markets.
package intent

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrUnrecognized indicates the transcript matched no known
	// command shape
	ErrUnrecognized = errors.New("unrecognized command")

	// ErrAmbiguousTarget indicates a play command whose target was
	// empty after normalization
	ErrAmbiguousTarget = errors.New("ambiguous or empty target")
)

// Action is what the user asked the player to do
type Action string

const (
	ActionPlay     Action = "play"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionQueue    Action = "queue"
)

// TargetType is the kind of catalog object a play or queue command
// names
type TargetType string

const (
	TargetNone     TargetType = ""
	TargetTrack    TargetType = "track"
	TargetAlbum    TargetType = "album"
	TargetArtist   TargetType = "artist"
	TargetPlaylist TargetType = "playlist"
)

// PlaybackCommand is a fully resolved user intention
type PlaybackCommand struct {
	Action Action
	Target TargetType
	Query  string
}

type targetPattern struct {
	re     *regexp.Regexp
	action Action
	target TargetType
}

// Typed patterns are tried before the generic "play X" fallback so
// that "play the album X" never degrades to a track search.
var targetPatterns = []targetPattern{
	{regexp.MustCompile(`(?i)^(?:play|toca|toque|tocar)\s+(?:the\s+)?album\s+(.+)$`), ActionPlay, TargetAlbum},
	{regexp.MustCompile(`(?i)^(?:play|toca|toque|tocar)\s+(?:o\s+|a\s+)?(?:álbum|album)\s+(.+)$`), ActionPlay, TargetAlbum},
	{regexp.MustCompile(`(?i)^(?:play|toca|toque|tocar)\s+(?:songs?\s+by|music\s+by|the\s+artist)\s+(.+)$`), ActionPlay, TargetArtist},
	{regexp.MustCompile(`(?i)^(?:play|toca|toque|tocar)\s+(?:músicas?\s+d[eoa]|o\s+artista|a\s+artista)\s+(.+)$`), ActionPlay, TargetArtist},
	{regexp.MustCompile(`(?i)^(?:play|toca|toque|tocar)\s+(?:the\s+)?playlist\s+(.+)$`), ActionPlay, TargetPlaylist},
	{regexp.MustCompile(`(?i)^(?:play|toca|toque|tocar)\s+(?:a\s+)?playlist\s+(.+)$`), ActionPlay, TargetPlaylist},
	{regexp.MustCompile(`(?i)^(?:queue|add\s+to\s+(?:the\s+)?queue|adiciona(?:r)?\s+(?:à|a)\s+fila)\s+(.+)$`), ActionQueue, TargetTrack},
}

type controlPattern struct {
	re     *regexp.Regexp
	action Action
}

var controlPatterns = []controlPattern{
	{regexp.MustCompile(`(?i)^(?:pause|stop|pausa(?:r)?|para(?:r)?)$`), ActionPause},
	{regexp.MustCompile(`(?i)^(?:resume|continue|unpause|continua(?:r)?|retoma(?:r)?|volta(?:r)?\s+a\s+tocar)$`), ActionResume},
	{regexp.MustCompile(`(?i)^(?:next|skip|next\s+(?:track|song)|skip\s+(?:this\s+)?(?:track|song)|próxima(?:\s+(?:música|faixa))?|proxima(?:\s+(?:musica|faixa))?|pula(?:r)?)$`), ActionNext},
	{regexp.MustCompile(`(?i)^(?:previous|back|previous\s+(?:track|song)|go\s+back|anterior|(?:música|faixa)\s+anterior|volta(?:r)?)$`), ActionPrevious},
	{regexp.MustCompile(`(?i)^(?:play|toca(?:r)?)$`), ActionResume},
}

var genericPlay = regexp.MustCompile(`(?i)^(?:play|toca|toque|tocar)\s+(.+)$`)

var fillerPrefix = regexp.MustCompile(`(?i)^(?:please|hey|ok|okay|por\s+favor|ei|oi)[\s,]+`)

// Resolve maps a transcript to a playback command. It trims
// punctuation and leading filler, tries typed targets first, then
// exact transport controls, then the generic play form which resolves
// to a track search.
func Resolve(transcript string) (*PlaybackCommand, error) {
	text := normalize(transcript)
	if text == "" {
		return nil, ErrUnrecognized
	}

	for _, p := range targetPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			query := cleanQuery(m[1])
			if query == "" {
				return nil, ErrAmbiguousTarget
			}
			return &PlaybackCommand{Action: p.action, Target: p.target, Query: query}, nil
		}
	}

	for _, p := range controlPatterns {
		if p.re.MatchString(text) {
			return &PlaybackCommand{Action: p.action}, nil
		}
	}

	if m := genericPlay.FindStringSubmatch(text); m != nil {
		query := cleanQuery(m[1])
		if query == "" {
			return nil, ErrAmbiguousTarget
		}
		return &PlaybackCommand{Action: ActionPlay, Target: TargetTrack, Query: query}, nil
	}

	return nil, ErrUnrecognized
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".!?,;:")
	s = strings.TrimSpace(s)
	for {
		stripped := fillerPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimSpace(stripped)
	}
	return strings.Join(strings.Fields(s), " ")
}

func cleanQuery(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".!?,;:\"'")
	return strings.TrimSpace(s)
}
