// Package source resolves playlist references into filtered, playable queues.
package source

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
	"github.com/osa030/musikbox/internal/infra/lastfm"
)

// ErrUnsupportedRef is returned when no configured source understands a reference.
var ErrUnsupportedRef = errors.New("no source supports this reference")

// Source is the interface for playlist sources.
// Different implementations resolve references against different catalogs
// (e.g., the MusicFun API, Spotify, local playlist files).
type Source interface {
	// Name returns the configured display name.
	Name() string
	// Type returns the source type (used in config).
	Type() string
	// Supports reports whether ref is a reference this source can resolve.
	Supports(ref string) bool
	// Resolve fetches the playlist ref points at.
	Resolve(ctx context.Context, ref string) (*playlist.Playlist, error)
}

// MusicFunClient defines the catalog operations needed by the musicfun source.
type MusicFunClient interface {
	FetchPlaylist(ctx context.Context, id string) (*playlist.Playlist, error)
	FetchTracks(ctx context.Context, q playlist.Query) (*playlist.Page[track.Track], error)
}

// SpotifyClient defines the Spotify operations needed by the spotify source.
type SpotifyClient interface {
	GetPlaylist(ctx context.Context, ref string) (*playlist.Playlist, error)
}

// CoverLookup finds album art for tracks that come without a cover.
type CoverLookup interface {
	GetTrackInfo(ctx context.Context, trackName, artistName string) (*lastfm.TrackInfo, error)
}

// decodeSettings decodes free-form source settings into out, applies
// defaults and validates the result.
func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.WeakDecode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
