//go:build (linux && cgo) || windows || darwin

package audio

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

// speakerOutput mixes into the system speaker. The speaker is initialized
// lazily on the first play so a server without a sound card still starts.
type speakerOutput struct {
	rate       beep.SampleRate
	bufferSize int

	initOnce sync.Once
	initErr  error
}

func newOutput(config Config) output {
	rate := beep.SampleRate(config.SampleRate)
	return &speakerOutput{
		rate:       rate,
		bufferSize: rate.N(config.BufferSize),
	}
}

func (o *speakerOutput) init() error {
	o.initOnce.Do(func() {
		if err := speaker.Init(o.rate, o.bufferSize); err != nil {
			o.initErr = errors.Wrap(err, "failed to initialize speaker")
		}
	})
	return o.initErr
}

func (o *speakerOutput) available() bool {
	return o.init() == nil
}

func (o *speakerOutput) sampleRate() beep.SampleRate {
	return o.rate
}

func (o *speakerOutput) play(s beep.Streamer) error {
	if err := o.init(); err != nil {
		return err
	}
	speaker.Play(s)
	return nil
}

func (o *speakerOutput) lock() {
	if o.init() == nil {
		speaker.Lock()
	}
}

func (o *speakerOutput) unlock() {
	if o.init() == nil {
		speaker.Unlock()
	}
}

func (o *speakerOutput) clear() {
	if o.init() == nil {
		speaker.Clear()
	}
}

func (o *speakerOutput) close() {
	if o.init() == nil {
		speaker.Close()
	}
}
