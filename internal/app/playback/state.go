// Package playback provides the playback engine: a single media resource
// driven through a track queue with shuffle and repeat modes.
package playback

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musikbox/internal/domain/track"
)

// Status is the coarse playback state derived from a State snapshot.
type Status int

const (
	StatusNoTrack Status = iota // Nothing selected
	StatusLoading               // Media is loading
	StatusPaused                // Ready and paused
	StatusPlaying               // Ready and playing
	StatusErrored               // Last load or playback faulted
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusNoTrack:
		return "no_track"
	case StatusLoading:
		return "loading"
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// RepeatMode governs end-of-track and end-of-queue advancement.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop at the end of the queue
	RepeatAll                   // Wrap around the queue
	RepeatOne                   // Restart the current track
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// Next returns the mode that follows m in the off -> all -> one -> off cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RepeatMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RepeatMode) UnmarshalText(text []byte) error {
	parsed, err := ParseRepeatMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseRepeatMode converts "off", "one" or "all" to a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "off", "":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	default:
		return RepeatOff, errors.Newf("invalid repeat mode: %q", s)
	}
}

// State is an immutable snapshot of the engine's observable state.
type State struct {
	Track       *track.Track // Current track, nil when nothing is selected
	Index       int          // Queue index, -1 when no queue entry is selected
	QueueLength int
	IsPlaying   bool
	CurrentTime time.Duration
	Duration    time.Duration // 0 while unknown
	Volume      float64
	IsShuffle   bool
	RepeatMode  RepeatMode
	IsLoading   bool
	Error       *Error

	HasTrack     bool
	IsQueueEmpty bool
	CanGoNext    bool
	CanGoPrev    bool
}

// Status derives the coarse playback status.
func (s State) Status() Status {
	switch {
	case s.Track == nil:
		return StatusNoTrack
	case s.Error != nil:
		return StatusErrored
	case s.IsLoading:
		return StatusLoading
	case s.IsPlaying:
		return StatusPlaying
	default:
		return StatusPaused
	}
}
