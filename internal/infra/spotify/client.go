// Package spotify provides a client for the Spotify API.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
)

// SourceName is stamped on tracks produced by this client.
const SourceName = "spotify"

// pageLimit is the Spotify API maximum per playlist page.
const pageLimit = 100

// Client is a Spotify API client.
// Tracks it returns point at 30 second preview clips, the only audio the
// Web API serves directly.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	// Read-only scopes: the player never edits playlists
	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
		),
	)

	// Get HTTP client with auto-refresh capability
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := auth.Client(ctx, token)

	return newClient(spotify.New(httpClient), cfg.Market), nil
}

func newClient(client *spotify.Client, market string) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// GetPlaylist retrieves a playlist and every track that has a preview clip.
// ref may be a playlist ID, URI or open.spotify.com URL.
func (c *Client) GetPlaylist(ctx context.Context, ref string) (*playlist.Playlist, error) {
	playlistID := extractPlaylistID(ref)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var meta *spotify.FullPlaylist
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID), spotify.Market(c.market))
		if err != nil {
			return err
		}
		meta = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}

	tracks, err := c.GetPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	result := &playlist.Playlist{
		ID:          string(meta.ID),
		Title:       meta.Name,
		Description: meta.Description,
		Tracks:      tracks,
	}
	if len(meta.Images) > 0 {
		result.Cover = meta.Images[0].URL
	}
	return result, nil
}

// GetPlaylistTracks retrieves all playable tracks from a playlist.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistRef string) ([]track.Track, error) {
	playlistID := extractPlaylistID(playlistRef)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var tracks []track.Track
	skipped := 0
	offset := 0

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(pageLimit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Only process tracks (exclude episodes)
			if item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			t, ok := c.convertTrack(item.Track.Track)
			if !ok {
				skipped++
				continue
			}
			tracks = append(tracks, t)
		}

		if len(page.Items) < pageLimit {
			break
		}
		offset += pageLimit
	}

	if skipped > 0 {
		zlog.Debug().Msgf("spotify: skipped %d tracks without preview in playlist %s", skipped, playlistID)
	}
	return tracks, nil
}

// GetTrack retrieves track information by ID, URL, or URI.
func (c *Client) GetTrack(ctx context.Context, trackRef string) (*track.Track, error) {
	id := extractTrackID(trackRef)

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	t, ok := c.convertTrack(result)
	if !ok {
		return nil, errors.Newf("track %s has no preview", id)
	}
	return &t, nil
}

// Search searches for tracks that have a preview clip.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if query == "" {
		return nil, errors.New("search query is required")
	}
	limit = min(max(limit, 1), 50)

	var result *spotify.SearchResult
	err := c.retry(ctx, func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(limit),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}
	if result.Tracks == nil {
		return []track.Track{}, nil
	}

	tracks := make([]track.Track, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		if t, ok := c.convertTrack(&result.Tracks.Tracks[i]); ok {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

// convertTrack converts a Spotify FullTrack to a domain Track.
// It reports false when the track has no preview to play.
func (c *Client) convertTrack(t *spotify.FullTrack) (track.Track, bool) {
	if t.PreviewURL == "" {
		return track.Track{}, false
	}

	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var cover string
	if len(t.Album.Images) > 0 {
		cover = t.Album.Images[0].URL
	}

	// Duration stays unknown: the media is the preview clip, not the full track.
	return track.Track{
		ID:     string(t.ID),
		URL:    t.PreviewURL,
		Title:  t.Name,
		Artist: strings.Join(artists, ", "),
		Album:  t.Album.Name,
		Cover:  cover,
		Source: SourceName,
	}, true
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry cancelled")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// IsPlaylistRef reports whether input looks like a Spotify playlist URI or URL.
func IsPlaylistRef(input string) bool {
	input = strings.TrimSpace(input)
	return strings.HasPrefix(input, "spotify:playlist:") ||
		(strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/"))
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles spotify:<kind>:ID URIs and open.spotify.com/<kind>/ID URLs,
// including localized intl-XX paths. Anything else is assumed to be an ID.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if id, ok := strings.CutPrefix(input, "spotify:"+kind+":"); ok {
		return id
	}

	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/"+kind+"/") {
		parts := strings.Split(input, "/"+kind+"/")
		// Remove query parameters and trailing slashes
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
