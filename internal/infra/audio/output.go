// Package audio provides the beep-backed media resource driven by the
// playback engine.
package audio

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
)

var (
	// ErrNoDevice is returned by Play when the build has no audio output.
	ErrNoDevice = errors.New("no audio output device available")
	// ErrNoSource is returned by Play when no media is loaded.
	ErrNoSource = errors.New("no media source loaded")
	// ErrClosed is returned by Play after Close.
	ErrClosed = errors.New("audio resource closed")
)

// Config holds audio resource configuration.
type Config struct {
	SampleRate   int           // Output sample rate in Hz
	BufferSize   time.Duration // Speaker buffer length
	TickInterval time.Duration // Time-update signal interval while playing
	LoadTimeout  time.Duration // Upper bound for fetching and decoding one track
	MaxBytes     int64         // Largest media payload accepted
}

// DefaultConfig returns the stock audio configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:   44100,
		BufferSize:   100 * time.Millisecond,
		TickInterval: 250 * time.Millisecond,
		LoadTimeout:  30 * time.Second,
		MaxBytes:     64 << 20,
	}
}

// output is the sink decoded audio is mixed into.
type output interface {
	// available reports whether play can produce sound.
	available() bool
	sampleRate() beep.SampleRate
	// play attaches a streamer to the mixer.
	play(s beep.Streamer) error
	// lock and unlock guard streamer state shared with the mixer.
	lock()
	unlock()
	// clear detaches every streamer.
	clear()
	close()
}
