//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"sync"

	"github.com/gopxl/beep/v2"
)

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires cgo for the native sound libraries on linux.
const AudioAvailable = false

// nullOutput decodes but never plays. Play requests are rejected.
type nullOutput struct {
	mu   sync.Mutex
	rate beep.SampleRate
}

func newOutput(config Config) output {
	return &nullOutput{rate: beep.SampleRate(config.SampleRate)}
}

func (o *nullOutput) available() bool            { return false }
func (o *nullOutput) sampleRate() beep.SampleRate { return o.rate }
func (o *nullOutput) play(beep.Streamer) error    { return ErrNoDevice }
func (o *nullOutput) lock()                       { o.mu.Lock() }
func (o *nullOutput) unlock()                     { o.mu.Unlock() }
func (o *nullOutput) clear()                      {}
func (o *nullOutput) close()                      {}
