package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/domain/track"
)

// Settings resolves whether a filter is enabled and with which settings.
// *config.Config satisfies it.
type Settings interface {
	IsFilterEnabled(name string) bool
	GetFilterSettings(name string) map[string]any
}

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig builds a chain holding the playable filter followed by
// every registered filter enabled in settings, in name order.
func NewChainFromConfig(settings Settings) (*Chain, error) {
	chain := NewChain()
	chain.Add(NewPlayableFilter())

	factories := GetRegistered()
	for _, name := range Names() {
		if name == playableFilterName || settings == nil || !settings.IsFilterEnabled(name) {
			continue
		}
		f := factories[name]()
		if err := f.ValidateConfig(settings.GetFilterSettings(name)); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("filter enabled: %s", name)
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(ctx context.Context, t track.Track, admitted []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, admitted)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply admits tracks in order, each checked against those admitted before it.
// It returns the admitted tracks and the number of rejections per code.
func (c *Chain) Apply(ctx context.Context, tracks []track.Track) ([]track.Track, map[string]int) {
	admitted := make([]track.Track, 0, len(tracks))
	rejected := make(map[string]int)
	for _, t := range tracks {
		result := c.Execute(ctx, t, admitted)
		if !result.Accepted {
			rejected[result.Code]++
			zlog.Debug().Msgf("filter: rejected %s (%s)", t.Label(), result.Code)
			continue
		}
		admitted = append(admitted, t)
	}
	return admitted, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
