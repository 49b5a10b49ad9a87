package intent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/voicebridge/internal/vbridged/intent"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       intent.PlaybackCommand
	}{
		{
			name:       "generic play resolves to track",
			transcript: "play Thriller by Michael Jackson",
			want: intent.PlaybackCommand{
				Action: intent.ActionPlay,
				Target: intent.TargetTrack,
				Query:  "Thriller by Michael Jackson",
			},
		},
		{
			name:       "album beats generic play",
			transcript: "play the album Abbey Road",
			want: intent.PlaybackCommand{
				Action: intent.ActionPlay,
				Target: intent.TargetAlbum,
				Query:  "Abbey Road",
			},
		},
		{
			name:       "artist form",
			transcript: "play songs by Elis Regina",
			want: intent.PlaybackCommand{
				Action: intent.ActionPlay,
				Target: intent.TargetArtist,
				Query:  "Elis Regina",
			},
		},
		{
			name:       "playlist form",
			transcript: "play the playlist Morning Coffee",
			want: intent.PlaybackCommand{
				Action: intent.ActionPlay,
				Target: intent.TargetPlaylist,
				Query:  "Morning Coffee",
			},
		},
		{
			name:       "queue form",
			transcript: "queue Bohemian Rhapsody",
			want: intent.PlaybackCommand{
				Action: intent.ActionQueue,
				Target: intent.TargetTrack,
				Query:  "Bohemian Rhapsody",
			},
		},
		{
			name:       "pause",
			transcript: "pause",
			want:       intent.PlaybackCommand{Action: intent.ActionPause},
		},
		{
			name:       "stop means pause",
			transcript: "Stop.",
			want:       intent.PlaybackCommand{Action: intent.ActionPause},
		},
		{
			name:       "resume",
			transcript: "resume",
			want:       intent.PlaybackCommand{Action: intent.ActionResume},
		},
		{
			name:       "bare play means resume",
			transcript: "play",
			want:       intent.PlaybackCommand{Action: intent.ActionResume},
		},
		{
			name:       "next track",
			transcript: "next track",
			want:       intent.PlaybackCommand{Action: intent.ActionNext},
		},
		{
			name:       "skip",
			transcript: "skip this song",
			want:       intent.PlaybackCommand{Action: intent.ActionNext},
		},
		{
			name:       "previous",
			transcript: "previous track",
			want:       intent.PlaybackCommand{Action: intent.ActionPrevious},
		},
		{
			name:       "filler prefix stripped",
			transcript: "please play the album Kind of Blue",
			want: intent.PlaybackCommand{
				Action: intent.ActionPlay,
				Target: intent.TargetAlbum,
				Query:  "Kind of Blue",
			},
		},
		{
			name:       "trailing punctuation stripped",
			transcript: "Play Hotel California!",
			want: intent.PlaybackCommand{
				Action: intent.ActionPlay,
				Target: intent.TargetTrack,
				Query:  "Hotel California",
			},
		},
		{
			name:       "portuguese play",
			transcript: "toca Garota de Ipanema",
			want: intent.PlaybackCommand{
				Action: intent.ActionPlay,
				Target: intent.TargetTrack,
				Query:  "Garota de Ipanema",
			},
		},
		{
			name:       "portuguese album",
			transcript: "toca o álbum Clube da Esquina",
			want: intent.PlaybackCommand{
				Action: intent.ActionPlay,
				Target: intent.TargetAlbum,
				Query:  "Clube da Esquina",
			},
		},
		{
			name:       "portuguese artist",
			transcript: "toca músicas de Caetano Veloso",
			want: intent.PlaybackCommand{
				Action: intent.ActionPlay,
				Target: intent.TargetArtist,
				Query:  "Caetano Veloso",
			},
		},
		{
			name:       "portuguese pause",
			transcript: "pausa",
			want:       intent.PlaybackCommand{Action: intent.ActionPause},
		},
		{
			name:       "portuguese next",
			transcript: "próxima música",
			want:       intent.PlaybackCommand{Action: intent.ActionNext},
		},
		{
			name:       "portuguese previous",
			transcript: "anterior",
			want:       intent.PlaybackCommand{Action: intent.ActionPrevious},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := intent.Resolve(tt.transcript)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		wantErr    error
	}{
		{"gibberish", "asdfasdf qwerty", intent.ErrUnrecognized},
		{"empty", "", intent.ErrUnrecognized},
		{"only punctuation", "...", intent.ErrUnrecognized},
		{"unrelated sentence", "what is the weather today", intent.ErrUnrecognized},
		{"quotes-only target", `play ""`, intent.ErrAmbiguousTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := intent.Resolve(tt.transcript)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
