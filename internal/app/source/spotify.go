package source

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/infra/spotify"
)

// SpotifySourceConfig is the settings block of a spotify source.
type SpotifySourceConfig struct {
	MaxTracks int `mapstructure:"max_tracks" validate:"gte=0"` // 0 keeps every track
}

// SpotifySource resolves Spotify playlists to their preview clips.
// References are spotify:playlist:<id> URIs or open.spotify.com playlist URLs.
type SpotifySource struct {
	name   string
	client SpotifyClient
	config SpotifySourceConfig
}

// NewSpotifySource creates a new SpotifySource.
func NewSpotifySource(name string, client SpotifyClient, settings map[string]any) (*SpotifySource, error) {
	if client == nil {
		return nil, errors.New("spotify client is required")
	}

	var config SpotifySourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &SpotifySource{name: name, client: client, config: config}, nil
}

func (s *SpotifySource) Name() string { return s.name }

func (s *SpotifySource) Type() string { return "spotify" }

func (s *SpotifySource) Supports(ref string) bool {
	return spotify.IsPlaylistRef(ref)
}

func (s *SpotifySource) Resolve(ctx context.Context, ref string) (*playlist.Playlist, error) {
	pl, err := s.client.GetPlaylist(ctx, ref)
	if err != nil {
		return nil, err
	}
	if s.config.MaxTracks > 0 && len(pl.Tracks) > s.config.MaxTracks {
		pl.Tracks = pl.Tracks[:s.config.MaxTracks]
	}
	return pl, nil
}
