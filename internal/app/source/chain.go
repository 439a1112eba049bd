package source

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/musikbox/internal/app/filter"
	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
	"github.com/osa030/musikbox/internal/infra/lastfm"
)

// Result is a resolved, filtered playlist.
type Result struct {
	Playlist *playlist.Playlist
	Source   string         // Display name of the source that resolved it
	Rejected map[string]int // Filter rejections per code
}

// Chain resolves references through the first source that can serve them.
type Chain struct {
	sources []Source
	filters *filter.Chain
	covers  CoverLookup
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithFilters runs admission filters over every resolved playlist.
func WithFilters(filters *filter.Chain) ChainOption {
	return func(c *Chain) { c.filters = filters }
}

// WithCovers fills missing track covers from lookup.
func WithCovers(lookup CoverLookup) ChainOption {
	return func(c *Chain) { c.covers = lookup }
}

// NewChain creates a new source chain.
func NewChain(sources []Source, opts ...ChainOption) *Chain {
	c := &Chain{sources: sources}
	for _, opt := range opts {
		opt(c)
	}
	if c.filters == nil {
		c.filters = filter.NewChain()
		c.filters.Add(filter.NewPlayableFilter())
	}
	return c
}

// Sources returns the configured sources in resolution order.
func (c *Chain) Sources() []Source {
	return c.sources
}

// Filters returns the admission filter chain.
func (c *Chain) Filters() *filter.Chain {
	return c.filters
}

// Supports reports whether any source understands ref.
func (c *Chain) Supports(ref string) bool {
	return lo.SomeBy(c.sources, func(s Source) bool { return s.Supports(ref) })
}

// Resolve fetches ref, trying each supporting source in order until one succeeds,
// then filters the tracks and fills in missing covers.
func (c *Chain) Resolve(ctx context.Context, ref string) (*Result, error) {
	ref = strings.TrimSpace(ref)
	candidates := lo.Filter(c.sources, func(s Source, _ int) bool { return s.Supports(ref) })
	if len(candidates) == 0 {
		return nil, errors.Wrapf(ErrUnsupportedRef, "%q", ref)
	}

	var lastErr error
	for i, s := range candidates {
		zlog.Debug().Msgf("trying source: index=%d total=%d name=%s type=%s ref=%s",
			i+1, len(candidates), s.Name(), s.Type(), ref)

		pl, err := s.Resolve(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "resolve cancelled")
			}
			zlog.Warn().Msgf("source failed, trying next: source=%s error=%v", s.Name(), err)
			lastErr = err
			continue
		}

		admitted, rejected := c.filters.Apply(ctx, pl.Tracks)
		pl.Tracks = c.enrich(ctx, admitted)

		zlog.Info().Msgf("source resolved playlist: source=%s ref=%s tracks=%d rejected=%v",
			s.Name(), ref, len(pl.Tracks), rejected)
		return &Result{Playlist: pl, Source: s.Name(), Rejected: rejected}, nil
	}

	return nil, errors.Wrapf(lastErr, "all sources failed to resolve %q", ref)
}

// Admit checks a single track against queue with the admission filters.
func (c *Chain) Admit(ctx context.Context, t track.Track, queue []track.Track) (track.Track, filter.Result) {
	result := c.filters.Execute(ctx, t, queue)
	if !result.Accepted {
		return t, result
	}
	return c.enrich(ctx, []track.Track{t})[0], result
}

// enrich fills missing covers and albums from the cover lookup.
// Lookup failures leave the track unchanged.
func (c *Chain) enrich(ctx context.Context, tracks []track.Track) []track.Track {
	if c.covers == nil {
		return tracks
	}
	for i := range tracks {
		t := &tracks[i]
		if t.Cover != "" || t.Title == "" || t.Artist == "" {
			continue
		}
		info, err := c.covers.GetTrackInfo(ctx, t.Title, t.Artist)
		if err != nil {
			if !errors.Is(err, lastfm.ErrNotFound) {
				zlog.Debug().Msgf("cover lookup failed for %s: %v", t.Label(), err)
			}
			continue
		}
		t.Cover = info.Cover
		if t.Album == "" {
			t.Album = info.Album
		}
	}
	return tracks
}
