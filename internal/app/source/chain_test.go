package source

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musikbox/internal/app/filter"
	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
	"github.com/osa030/musikbox/internal/infra/lastfm"
)

func TestChain_Resolve(t *testing.T) {
	primary := &stubSource{name: "primary", prefix: "stub:", err: errors.New("503 Service Unavailable")}
	fallback := &stubSource{name: "fallback", prefix: "stub:", pl: &playlist.Playlist{
		ID: "p",
		Tracks: []track.Track{
			{URL: "a.mp3", Title: "A", Artist: "X"},
			{URL: ""},
			{URL: "b.mp3", Title: "B", Artist: "Y", Cover: "own.png"},
		},
	}}
	other := &stubSource{name: "other", prefix: "other:"}

	chain := NewChain([]Source{other, primary, fallback})

	res, err := chain.Resolve(context.Background(), " stub:list ")
	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Source)
	assert.Equal(t, []string{"a.mp3", "b.mp3"}, res.Playlist.URLs())
	assert.Equal(t, map[string]int{filter.CodeNotPlayable: 1}, res.Rejected)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, other.calls)
}

func TestChain_ResolveErrors(t *testing.T) {
	failing := &stubSource{name: "failing", prefix: "stub:", err: errors.New("boom")}
	chain := NewChain([]Source{failing})

	_, err := chain.Resolve(context.Background(), "nothing:here")
	assert.ErrorIs(t, err, ErrUnsupportedRef)
	assert.False(t, chain.Supports("nothing:here"))
	assert.True(t, chain.Supports("stub:x"))

	_, err = chain.Resolve(context.Background(), "stub:x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all sources failed")
	assert.Contains(t, err.Error(), "boom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = chain.Resolve(ctx, "stub:x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChain_Covers(t *testing.T) {
	covers := &fakeCovers{info: map[string]*lastfm.TrackInfo{
		"A": {Cover: "https://img/a.png", Album: "Album A"},
	}}
	src := &stubSource{name: "s", prefix: "stub:", pl: &playlist.Playlist{Tracks: []track.Track{
		{URL: "a.mp3", Title: "A", Artist: "X"},
		{URL: "b.mp3", Title: "B", Artist: "Y"},
		{URL: "c.mp3", Title: "C", Artist: "Z", Cover: "own.png"},
		{URL: "d.mp3", Title: "D"},
	}}}

	chain := NewChain([]Source{src}, WithCovers(covers))
	res, err := chain.Resolve(context.Background(), "stub:x")
	require.NoError(t, err)

	tracks := res.Playlist.Tracks
	assert.Equal(t, "https://img/a.png", tracks[0].Cover)
	assert.Equal(t, "Album A", tracks[0].Album)
	assert.Empty(t, tracks[1].Cover, "lookup miss leaves the track unchanged")
	assert.Equal(t, "own.png", tracks[2].Cover)
	assert.Equal(t, []string{"A", "B"}, covers.calls, "tracks with covers or no artist are not looked up")
}

func TestChain_Admit(t *testing.T) {
	filters := filter.NewChain()
	filters.Add(filter.NewPlayableFilter())
	filters.Add(filter.NewDuplicateTrackFilter())
	covers := &fakeCovers{info: map[string]*lastfm.TrackInfo{"A": {Cover: "a.png"}}}
	chain := NewChain(nil, WithFilters(filters), WithCovers(covers))

	queue := []track.Track{{URL: "q.mp3"}}

	got, result := chain.Admit(context.Background(), track.Track{URL: "a.mp3", Title: "A", Artist: "X"}, queue)
	assert.True(t, result.Accepted)
	assert.Equal(t, "a.png", got.Cover)

	_, result = chain.Admit(context.Background(), track.Track{URL: "q.mp3"}, queue)
	assert.Equal(t, filter.Reject(filter.CodeDuplicateTrack), result)
	assert.Same(t, filters, chain.Filters())
}
