package source

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/domain/playlist"
)

const (
	musicFunPlaylistPrefix = "musicfun:playlist:"
	musicFunTracksRef      = "musicfun:tracks"
)

// MusicFunSourceConfig is the settings block of a musicfun source.
type MusicFunSourceConfig struct {
	PageSize      int    `mapstructure:"page_size" default:"20" validate:"gte=1,lte=100"`
	Search        string `mapstructure:"search"`
	SortBy        string `mapstructure:"sort_by" validate:"omitempty,oneof=addedAt likesCount"`
	SortDirection string `mapstructure:"sort_direction" validate:"omitempty,oneof=asc desc"`
}

// MusicFunSource resolves MusicFun playlists and track listings.
//
// References:
//   - musicfun:playlist:<id>  a whole playlist
//   - musicfun:tracks[?search=..&sort_by=..&sort_direction=..&page=..&tag=..]
//     one page of the public track listing
type MusicFunSource struct {
	name   string
	client MusicFunClient
	config MusicFunSourceConfig
}

// NewMusicFunSource creates a new MusicFunSource.
func NewMusicFunSource(name string, client MusicFunClient, settings map[string]any) (*MusicFunSource, error) {
	if client == nil {
		return nil, errors.New("musicfun client is required")
	}

	var config MusicFunSourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("musicfun source config: %+v", config)
	return &MusicFunSource{name: name, client: client, config: config}, nil
}

func (s *MusicFunSource) Name() string { return s.name }

func (s *MusicFunSource) Type() string { return "musicfun" }

func (s *MusicFunSource) Supports(ref string) bool {
	ref = strings.TrimSpace(ref)
	return strings.HasPrefix(ref, musicFunPlaylistPrefix) ||
		ref == musicFunTracksRef || strings.HasPrefix(ref, musicFunTracksRef+"?")
}

func (s *MusicFunSource) Resolve(ctx context.Context, ref string) (*playlist.Playlist, error) {
	ref = strings.TrimSpace(ref)
	if id, ok := strings.CutPrefix(ref, musicFunPlaylistPrefix); ok {
		if id == "" {
			return nil, errors.Newf("missing playlist id in %q", ref)
		}
		return s.client.FetchPlaylist(ctx, id)
	}

	q, err := s.tracksQuery(ref)
	if err != nil {
		return nil, err
	}
	page, err := s.client.FetchTracks(ctx, q)
	if err != nil {
		return nil, err
	}

	title := "MusicFun tracks"
	if q.Search != "" {
		title += ": " + q.Search
	}
	return &playlist.Playlist{
		ID:     ref,
		Title:  title,
		Tracks: page.Items,
	}, nil
}

// tracksQuery merges the configured listing defaults with the ref's query string.
func (s *MusicFunSource) tracksQuery(ref string) (playlist.Query, error) {
	q := playlist.Query{
		PageNumber:    1,
		PageSize:      s.config.PageSize,
		Search:        s.config.Search,
		SortBy:        s.config.SortBy,
		SortDirection: playlist.SortDirection(s.config.SortDirection),
	}

	_, raw, _ := strings.Cut(ref, "?")
	params, err := url.ParseQuery(raw)
	if err != nil {
		return q, errors.Wrapf(err, "invalid query in %q", ref)
	}
	if v := params.Get("search"); v != "" {
		q.Search = v
	}
	if v := params.Get("sort_by"); v != "" {
		q.SortBy = v
	}
	if v := params.Get("sort_direction"); v != "" {
		q.SortDirection = playlist.SortDirection(v)
	}
	if v := params.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, errors.Newf("invalid page %q", v)
		}
		q.PageNumber = n
	}
	q.TagIDs = params["tag"]
	return q, nil
}
