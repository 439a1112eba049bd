package filter

import (
	"context"

	"github.com/osa030/musikbox/internal/domain/track"
)

const playableFilterName = "playable_filter"

// PlayableFilter rejects tracks without a media locator. It is always on.
type PlayableFilter struct{}

// NewPlayableFilter creates a new playable filter.
func NewPlayableFilter() *PlayableFilter {
	return &PlayableFilter{}
}

func (f *PlayableFilter) Name() string {
	return playableFilterName
}

func (f *PlayableFilter) Description() string {
	return "Rejects tracks that have no playable media URL (always enabled)"
}

func (f *PlayableFilter) ReturnCodes() []string {
	return []string{CodeNotPlayable}
}

func (f *PlayableFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *PlayableFilter) Check(ctx context.Context, t track.Track, admitted []track.Track) Result {
	if err := t.Validate(); err != nil {
		return Reject(CodeNotPlayable)
	}
	return Accept()
}

func init() {
	Register(playableFilterName, func() Filter {
		return NewPlayableFilter()
	})
}
