package source

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
	"github.com/osa030/musikbox/internal/infra/lastfm"
)

var errNotFound = errors.New("not found")

type fakeMusicFun struct {
	playlists map[string]*playlist.Playlist
	tracks    []track.Track
	err       error
	queries   []playlist.Query
}

func (f *fakeMusicFun) FetchPlaylist(ctx context.Context, id string) (*playlist.Playlist, error) {
	if f.err != nil {
		return nil, f.err
	}
	pl, ok := f.playlists[id]
	if !ok {
		return nil, errNotFound
	}
	return clonePlaylist(pl), nil
}

func (f *fakeMusicFun) FetchTracks(ctx context.Context, q playlist.Query) (*playlist.Page[track.Track], error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return &playlist.Page[track.Track]{Items: append([]track.Track(nil), f.tracks...), PageNumber: q.PageNumber}, nil
}

type fakeSpotify struct {
	pl  *playlist.Playlist
	err error
}

func (f *fakeSpotify) GetPlaylist(ctx context.Context, ref string) (*playlist.Playlist, error) {
	if f.err != nil {
		return nil, f.err
	}
	return clonePlaylist(f.pl), nil
}

type fakeCovers struct {
	mu    sync.Mutex
	info  map[string]*lastfm.TrackInfo // keyed by title
	calls []string
}

func (f *fakeCovers) GetTrackInfo(ctx context.Context, trackName, artistName string) (*lastfm.TrackInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, trackName)
	info, ok := f.info[trackName]
	if !ok {
		return nil, lastfm.ErrNotFound
	}
	return info, nil
}

// stubSource resolves every ref with the given prefix.
type stubSource struct {
	name   string
	prefix string
	pl     *playlist.Playlist
	err    error
	calls  int
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Type() string { return "stub" }

func (s *stubSource) Supports(ref string) bool {
	return len(ref) >= len(s.prefix) && ref[:len(s.prefix)] == s.prefix
}

func (s *stubSource) Resolve(ctx context.Context, ref string) (*playlist.Playlist, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return clonePlaylist(s.pl), nil
}
