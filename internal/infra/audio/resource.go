package audio

import (
	"context"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/app/playback"
)

// Resource plays one media source at a time through beep.
// It implements playback.Resource.
type Resource struct {
	mu sync.Mutex

	config     Config
	out        output
	client     *http.Client
	dispatch   *dispatcher
	generation atomic.Uint64

	src    string
	cancel context.CancelFunc // Pending load

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	gain     *effects.Volume

	attached      bool
	attachToken   uint64
	playing       bool
	playWhenReady bool
	level         float64
	tickStop      chan struct{}

	closed bool
}

var _ playback.Resource = (*Resource)(nil)

// New creates a resource that outputs through the system speaker when the
// build supports it.
func New(config Config) *Resource {
	return newResource(config, newOutput(config), &http.Client{})
}

func newResource(config Config, out output, client *http.Client) *Resource {
	defaults := DefaultConfig()
	if config.SampleRate <= 0 {
		config.SampleRate = defaults.SampleRate
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = defaults.LoadTimeout
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = defaults.MaxBytes
	}

	r := &Resource{
		config: config,
		out:    out,
		client: client,
		level:  1,
	}
	r.dispatch = newDispatcher(r.generation.Load)
	return r
}

// OnSignal registers the handler that receives signals.
func (r *Resource) OnSignal(fn func(playback.Signal)) {
	r.dispatch.setHandler(fn)
}

// Load starts fetching and decoding url, superseding any pending load.
func (r *Resource) Load(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	r.resetLocked()
	gen := r.generation.Add(1)
	r.src = url

	ctx, cancel := context.WithTimeout(context.Background(), r.config.LoadTimeout)
	r.cancel = cancel

	zlog.Debug().Msgf("audio: loading: gen=%d src=%s", gen, url)
	r.dispatch.push(gen, playback.Signal{Type: playback.SignalLoadStart})
	go r.load(ctx, cancel, gen, url)
}

// load releases ctx once the fetch is settled, whatever the outcome.
func (r *Resource) load(ctx context.Context, cancel context.CancelFunc, gen uint64, url string) {
	defer cancel()

	data, err := fetch(ctx, r.client, url, r.config.MaxBytes)
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	if err == nil {
		streamer, format, err = decode(data, url)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || gen != r.generation.Load() {
		if streamer != nil {
			_ = streamer.Close()
		}
		return
	}
	r.cancel = nil

	if err != nil {
		zlog.Debug().Msgf("audio: load failed: gen=%d err=%v", gen, err)
		r.dispatch.push(gen, playback.Signal{Type: playback.SignalError, Fault: faultOf(err)})
		return
	}

	r.streamer = streamer
	r.format = format
	duration := format.SampleRate.D(streamer.Len())
	zlog.Debug().Msgf("audio: loaded: gen=%d rate=%d duration=%s", gen, format.SampleRate, duration)

	r.dispatch.push(gen, playback.Signal{Type: playback.SignalMetadataLoaded, Duration: duration})
	r.dispatch.push(gen, playback.Signal{Type: playback.SignalCanPlay})

	if r.playWhenReady {
		r.playWhenReady = false
		if err := r.startLocked(); err != nil {
			zlog.Debug().Msgf("audio: deferred play failed: %v", err)
			r.dispatch.push(gen, playback.Signal{Type: playback.SignalPause})
		}
	}
}

// Unload drops the current source.
func (r *Resource) Unload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.resetLocked()
	r.generation.Add(1)
	r.src = ""
}

// Play starts playback, or defers it until the pending load can play.
func (r *Resource) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return ErrClosed
	case r.src == "":
		return ErrNoSource
	case !r.out.available():
		return ErrNoDevice
	case r.streamer == nil:
		r.playWhenReady = true
		return nil
	}
	return r.startLocked()
}

// startLocked must be called with lock held and a decoded streamer.
func (r *Resource) startLocked() error {
	if r.playing {
		return nil
	}

	gen := r.generation.Load()
	if !r.attached {
		r.attachToken++
		token := r.attachToken

		resampled := beep.Resample(4, r.format.SampleRate, r.out.sampleRate(), r.streamer)
		r.ctrl = &beep.Ctrl{Streamer: resampled, Paused: true}
		r.gain = &effects.Volume{Streamer: r.ctrl, Base: 2}
		r.applyLevelLocked()

		chain := beep.Seq(r.gain, beep.Callback(func() {
			// Runs on the mixer goroutine with the mixer lock held.
			go r.handleEnded(gen, token)
		}))
		if err := r.out.play(chain); err != nil {
			return err
		}
		r.attached = true
	}

	r.out.lock()
	r.ctrl.Paused = false
	r.out.unlock()

	r.playing = true
	r.startTickerLocked(gen)
	r.dispatch.push(gen, playback.Signal{Type: playback.SignalPlay})
	return nil
}

// Pause pauses playback and cancels a deferred play.
func (r *Resource) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.playWhenReady = false
	if !r.playing {
		return
	}
	r.out.lock()
	r.ctrl.Paused = true
	r.out.unlock()

	r.playing = false
	r.stopTickerLocked()
	r.dispatch.push(r.generation.Load(), playback.Signal{Type: playback.SignalPause})
}

// Seek moves the decoded stream to pos.
func (r *Resource) Seek(pos time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streamer == nil {
		return
	}

	n := min(max(0, r.format.SampleRate.N(pos)), r.streamer.Len())
	r.out.lock()
	err := r.streamer.Seek(n)
	actual := r.streamer.Position()
	r.out.unlock()
	if err != nil {
		zlog.Warn().Msgf("audio: seek failed: %v", err)
	}

	r.dispatch.push(r.generation.Load(), playback.Signal{
		Type:     playback.SignalSeeked,
		Position: r.format.SampleRate.D(actual),
	})
}

// SetVolume sets the output level in [0, 1].
func (r *Resource) SetVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.level = v
	if r.gain != nil {
		r.out.lock()
		r.applyLevelLocked()
		r.out.unlock()
	}
	r.dispatch.push(0, playback.Signal{Type: playback.SignalVolumeChange, Volume: v})
}

// applyLevelLocked maps the linear level onto the gain effect.
func (r *Resource) applyLevelLocked() {
	r.gain.Volume, r.gain.Silent = gainFor(r.level)
}

// gainFor converts a linear level into a base-2 exponent.
func gainFor(level float64) (volume float64, silent bool) {
	if level <= 0 || math.IsNaN(level) {
		return 0, true
	}
	return math.Log2(math.Min(level, 1)), false
}

// Position returns the current stream position.
func (r *Resource) Position() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positionLocked()
}

func (r *Resource) positionLocked() time.Duration {
	if r.streamer == nil {
		return 0
	}
	r.out.lock()
	pos := r.streamer.Position()
	r.out.unlock()
	return r.format.SampleRate.D(pos)
}

func (r *Resource) handleEnded(gen, token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || gen != r.generation.Load() || token != r.attachToken {
		return
	}

	r.attached = false
	r.playing = false
	r.stopTickerLocked()

	// Decoders end the stream early on a bad frame and keep the cause.
	if r.streamer != nil {
		if err := r.streamer.Err(); err != nil {
			zlog.Debug().Msgf("audio: stream failed: gen=%d err=%v", gen, err)
			fault := faultOf(newFault(playback.MediaErrDecode, err))
			r.dispatch.push(gen, playback.Signal{Type: playback.SignalError, Fault: fault})
			return
		}
	}

	zlog.Debug().Msgf("audio: ended: gen=%d", gen)
	r.dispatch.push(gen, playback.Signal{Type: playback.SignalTimeUpdate, Position: r.positionLocked()})
	r.dispatch.push(gen, playback.Signal{Type: playback.SignalEnded})
}

// startTickerLocked must be called with lock held.
func (r *Resource) startTickerLocked(gen uint64) {
	r.stopTickerLocked()
	stop := make(chan struct{})
	r.tickStop = stop

	go func() {
		ticker := time.NewTicker(r.config.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.dispatch.push(gen, playback.Signal{Type: playback.SignalTimeUpdate, Position: r.Position()})
			}
		}
	}()
}

// stopTickerLocked must be called with lock held.
func (r *Resource) stopTickerLocked() {
	if r.tickStop != nil {
		close(r.tickStop)
		r.tickStop = nil
	}
}

// resetLocked releases the current stream and cancels a pending load.
// Must be called with lock held.
func (r *Resource) resetLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.stopTickerLocked()
	if r.attached {
		r.out.clear()
		r.attached = false
	}
	if r.streamer != nil {
		if err := r.streamer.Close(); err != nil {
			zlog.Debug().Msgf("audio: failed to close stream: %v", err)
		}
	}
	r.streamer = nil
	r.format = beep.Format{}
	r.ctrl = nil
	r.gain = nil
	r.playing = false
	r.playWhenReady = false
}

// Close releases the stream, stops signal delivery and closes the output.
func (r *Resource) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.resetLocked()
	r.generation.Add(1)
	r.src = ""
	r.mu.Unlock()

	r.dispatch.close()
	r.out.close()
	return nil
}
