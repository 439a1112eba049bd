package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/domain/track"
)

const durationLimitFilterName = "duration_limit_filter"

// DurationLimitConfig bounds the playing time of admitted tracks.
// Values are Go durations such as "90s" or "8m"; a zero Max leaves the window open.
type DurationLimitConfig struct {
	Min time.Duration `yaml:"min" mapstructure:"min" validate:"gte=0"`
	Max time.Duration `yaml:"max" mapstructure:"max" validate:"gte=0"`
}

// contains reports whether d falls inside the configured window.
func (c DurationLimitConfig) contains(d time.Duration) bool {
	if d < c.Min {
		return false
	}
	return c.Max == 0 || d <= c.Max
}

// DurationLimitFilter keeps tracks that are too short or too long out of the queue.
// A track of unknown length passes, since its duration is only known once decoded.
type DurationLimitFilter struct {
	window *DurationLimitConfig
}

// NewDurationLimitFilter creates a filter with no window; it admits everything until configured.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return durationLimitFilterName
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects tracks whose known length falls outside [min, max]"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{CodeDurationLimitExceeded}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var window DurationLimitConfig
	if err := decodeSettings(settings, &window); err != nil {
		return err
	}
	if window.Max > 0 && window.Min > window.Max {
		return errors.Newf("min (%s) exceeds max (%s)", window.Min, window.Max)
	}

	f.window = &window
	zlog.Info().Msgf("%s: admitting tracks between %s and %s", durationLimitFilterName, window.Min, maxLabel(window.Max))
	return nil
}

func (f *DurationLimitFilter) Check(ctx context.Context, t track.Track, admitted []track.Track) Result {
	if f.window == nil || !t.HasDuration() || f.window.contains(t.Duration) {
		return Accept()
	}
	return Reject(CodeDurationLimitExceeded)
}

func maxLabel(d time.Duration) string {
	if d == 0 {
		return "unbounded"
	}
	return d.String()
}

// decodeSettings decodes filter settings into out. Duration fields accept
// strings like "3m30s". Defaults are applied before validation.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
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

func init() {
	Register(durationLimitFilterName, func() Filter {
		return NewDurationLimitFilter()
	})
}
