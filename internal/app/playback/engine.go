package playback

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/domain/track"
)

// Config holds engine configuration.
type Config struct {
	InitialVolume    float64       // Volume applied on construction and after Destroy (0..1)
	RestartThreshold time.Duration // Prev restarts the current track once this much has played
	EventBuffer      int           // Per-subscriber channel capacity
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		InitialVolume:    0.7,
		RestartThreshold: 3 * time.Second,
		EventBuffer:      16,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRandom replaces the source of random indexes used by shuffle.
// intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(e *Engine) {
		e.intn = intn
	}
}

// Engine is the playback state machine. It owns one media resource and
// the queue; every mutation goes through its methods.
type Engine struct {
	mu sync.Mutex

	resource Resource
	config   Config
	intn     func(n int) int

	// Queue management
	queue []track.Track
	index int

	// Current track state
	current     *track.Track
	isPlaying   bool
	currentTime time.Duration
	duration    time.Duration
	isLoading   bool
	err         *Error

	// Modifiers
	volume  float64
	shuffle bool
	repeat  RepeatMode

	// Subscribers
	subscribers map[string]chan Event

	closed    bool
	closeOnce sync.Once
}

// New creates an engine bound to the given resource.
func New(resource Resource, config Config, opts ...Option) *Engine {
	if config.RestartThreshold < 0 {
		config.RestartThreshold = 0
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultConfig().EventBuffer
	}
	config.InitialVolume = clampVolume(config.InitialVolume)

	e := &Engine{
		resource:    resource,
		config:      config,
		intn:        rand.IntN,
		queue:       make([]track.Track, 0),
		index:       -1,
		volume:      config.InitialVolume,
		subscribers: make(map[string]chan Event),
	}
	for _, opt := range opts {
		opt(e)
	}

	resource.SetVolume(e.volume)
	resource.OnSignal(e.HandleSignal)
	return e
}

// LoadQueue replaces the queue and selects startIndex, clamped into range.
func (e *Engine) LoadQueue(tracks []track.Track, startIndex int, autoplay bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.queue = make([]track.Track, len(tracks))
	copy(e.queue, tracks)

	idx := min(max(0, startIndex), max(0, len(e.queue)-1))
	zlog.Debug().Msgf("playback: queue loaded: tracks=%d start=%d autoplay=%v", len(e.queue), idx, autoplay)

	e.emitLocked(EventQueueLoaded)
	e.setTrackByIndexLocked(idx, autoplay)
}

// SetTrackByIndex selects a queue entry. An index outside the queue clears
// playback state; that is a reset, not a fault.
func (e *Engine) SetTrackByIndex(index int, autoplay bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.setTrackByIndexLocked(index, autoplay)
}

// SetTrack loads a track that need not be part of the queue.
// The queue index is left untouched.
func (e *Engine) SetTrack(t track.Track, autoplay bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.setTrackLocked(t, autoplay)
}

// Play requests playback of the current media.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.playLocked()
}

// Pause stops playback, keeping the position.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.pauseLocked()
	e.emitLocked(EventStateChanged)
}

// TogglePlayPause pauses when playing and plays otherwise.
func (e *Engine) TogglePlayPause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.isPlaying {
		e.pauseLocked()
		e.emitLocked(EventStateChanged)
		return
	}
	e.playLocked()
}

// Seek moves to pos, clamped to [0, duration] when the duration is known.
func (e *Engine) Seek(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.seekLocked(pos)
	e.emitLocked(EventStateChanged)
}

// SetVolume sets the output volume, clamped to [0, 1].
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.volume = clampVolume(v)
	e.resource.SetVolume(e.volume)
	e.emitLocked(EventStateChanged)
}

// Next advances according to the repeat and shuffle modes.
func (e *Engine) Next() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.nextLocked()
}

// Prev goes back one track, or restarts the current one when it has
// played past the restart threshold.
func (e *Engine) Prev() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || len(e.queue) == 0 {
		return
	}

	prevIndex := e.index
	if e.shuffle {
		if len(e.queue) > 1 {
			prevIndex = e.randomOtherIndexLocked()
		}
	} else {
		if e.resource.Position() > e.config.RestartThreshold {
			e.seekLocked(0)
			e.emitLocked(EventStateChanged)
			return
		}
		prevIndex = e.index - 1
	}

	if prevIndex < 0 {
		if e.repeat != RepeatAll {
			e.seekLocked(0)
			e.emitLocked(EventStateChanged)
			return
		}
		prevIndex = len(e.queue) - 1
	}

	e.setTrackByIndexLocked(prevIndex, true)
}

// ToggleShuffle flips shuffle mode.
func (e *Engine) ToggleShuffle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.shuffle = !e.shuffle
	e.emitLocked(EventStateChanged)
}

// SetShuffle sets shuffle mode explicitly.
func (e *Engine) SetShuffle(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.shuffle = on
	e.emitLocked(EventStateChanged)
}

// CycleRepeatMode advances off -> all -> one -> off.
func (e *Engine) CycleRepeatMode() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.repeat = e.repeat.Next()
	e.emitLocked(EventStateChanged)
}

// SetRepeatMode sets the repeat mode explicitly.
func (e *Engine) SetRepeatMode(m RepeatMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.repeat = m
	e.emitLocked(EventStateChanged)
}

// ClearError empties the error slot.
func (e *Engine) ClearError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.err = nil
	e.emitLocked(EventStateChanged)
}

// Destroy stops playback, releases the loaded media and resets every field
// to its initial value. Safe to call repeatedly.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.destroyLocked()
}

func (e *Engine) destroyLocked() {
	e.clearLocked()
	e.queue = make([]track.Track, 0)
	e.shuffle = false
	e.repeat = RepeatOff
	e.volume = e.config.InitialVolume
	e.resource.SetVolume(e.volume)

	zlog.Debug().Msg("playback: engine destroyed")
	e.emitLocked(EventDestroyed)
}

// Close destroys the engine, closes every subscription and the resource.
// Further commands are ignored.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.destroyLocked()
		e.closed = true
		for id, ch := range e.subscribers {
			close(ch)
			delete(e.subscribers, id)
		}
		e.mu.Unlock()

		err = e.resource.Close()
	})
	return err
}

// State returns a snapshot of the observable state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Queue returns a copy of the queue.
func (e *Engine) Queue() []track.Track {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]track.Track, len(e.queue))
	copy(result, e.queue)
	return result
}

// Subscribe registers a subscriber and returns its ID and event channel.
// A subscriber that falls behind loses older events, never the latest one.
func (e *Engine) Subscribe() (string, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan Event, e.config.EventBuffer)
	if e.closed {
		close(ch)
		return id, ch
	}
	e.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (e *Engine) Unsubscribe(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ch, ok := e.subscribers[id]; ok {
		close(ch)
		delete(e.subscribers, id)
	}
}

// HandleSignal applies a resource signal. It is registered with the
// resource on construction and may also be called directly.
func (e *Engine) HandleSignal(sig Signal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	switch sig.Type {
	case SignalTimeUpdate:
		e.currentTime = e.clampPositionLocked(sig.Position)
		e.emitLocked(EventTimeUpdate)
	case SignalMetadataLoaded:
		if sig.Duration > 0 {
			e.duration = sig.Duration
		} else {
			e.duration = 0
		}
		e.emitLocked(EventStateChanged)
	case SignalPlay:
		e.isPlaying = true
		e.emitLocked(EventStateChanged)
	case SignalPause:
		e.isPlaying = false
		e.emitLocked(EventStateChanged)
	case SignalSeeked:
		e.currentTime = e.clampPositionLocked(sig.Position)
		e.emitLocked(EventStateChanged)
	case SignalVolumeChange:
		e.volume = clampVolume(sig.Volume)
		e.emitLocked(EventStateChanged)
	case SignalEnded:
		e.handleEndedLocked()
	case SignalLoadStart:
		e.isLoading = true
		e.err = nil
		e.emitLocked(EventStateChanged)
	case SignalCanPlay:
		e.isLoading = false
		e.emitLocked(EventStateChanged)
	case SignalError:
		e.handleErrorLocked(sig.Fault)
	default:
		zlog.Debug().Msgf("playback: ignoring unknown signal: %v", sig.Type)
	}
}

// setTrackByIndexLocked must be called with lock held.
func (e *Engine) setTrackByIndexLocked(index int, autoplay bool) {
	if len(e.queue) == 0 || index < 0 || index >= len(e.queue) {
		e.clearLocked()
		e.emitLocked(EventCleared)
		return
	}
	e.index = index
	e.setTrackLocked(e.queue[index], autoplay)
}

// setTrackLocked must be called with lock held.
func (e *Engine) setTrackLocked(t track.Track, autoplay bool) {
	current := t
	e.current = &current
	e.resource.Load(t.URL)

	if t.HasDuration() {
		e.duration = t.Duration
	} else {
		e.duration = 0
	}
	e.currentTime = 0
	e.err = nil

	zlog.Debug().Msgf("playback: track set: index=%d track=%s autoplay=%v", e.index, t.Label(), autoplay)
	e.emitLocked(EventTrackChanged)

	if autoplay {
		e.playLocked()
	}
}

// playLocked must be called with lock held.
func (e *Engine) playLocked() {
	if err := e.resource.Play(); err != nil {
		// A rejected request means playback did not start; it is not a fault.
		zlog.Debug().Msgf("playback: play request rejected: %v", err)
		e.isPlaying = false
	} else {
		e.isPlaying = true
	}
	e.emitLocked(EventStateChanged)
}

// pauseLocked must be called with lock held.
func (e *Engine) pauseLocked() {
	e.resource.Pause()
	e.isPlaying = false
}

// seekLocked must be called with lock held.
func (e *Engine) seekLocked(pos time.Duration) {
	safe := e.clampPositionLocked(pos)
	e.resource.Seek(safe)
	e.currentTime = safe
}

// nextLocked must be called with lock held.
func (e *Engine) nextLocked() {
	if len(e.queue) == 0 {
		return
	}

	if e.repeat == RepeatOne && e.index != -1 {
		e.setTrackByIndexLocked(e.index, true)
		return
	}

	nextIndex := e.index
	if e.shuffle {
		if len(e.queue) > 1 {
			nextIndex = e.randomOtherIndexLocked()
		}
	} else {
		nextIndex = e.index + 1
	}

	if nextIndex >= len(e.queue) {
		if e.repeat != RepeatAll {
			// End of queue: keep the last track loaded, paused at the start.
			e.pauseLocked()
			e.resource.Seek(0)
			e.currentTime = 0
			zlog.Debug().Msg("playback: end of queue reached")
			e.emitLocked(EventStateChanged)
			return
		}
		nextIndex = 0
	}

	e.setTrackByIndexLocked(nextIndex, true)
}

// randomOtherIndexLocked draws indexes until one differs from the current.
// Must be called with lock held and len(queue) > 1.
func (e *Engine) randomOtherIndexLocked() int {
	for {
		idx := e.intn(len(e.queue))
		if idx != e.index {
			return idx
		}
	}
}

// handleEndedLocked must be called with lock held.
func (e *Engine) handleEndedLocked() {
	if len(e.queue) == 0 {
		e.isPlaying = false
		e.currentTime = 0
		e.emitLocked(EventStateChanged)
		return
	}
	e.nextLocked()
}

// handleErrorLocked must be called with lock held.
func (e *Engine) handleErrorLocked(fault *MediaFault) {
	e.isLoading = false
	e.err = classifyFault(fault, e.currentCopyLocked())
	e.isPlaying = false

	if fault != nil && fault.Detail != "" {
		zlog.Warn().Msgf("playback: media fault: kind=%s code=%s detail=%s", e.err.Kind, fault.Code, fault.Detail)
	} else {
		zlog.Warn().Msgf("playback: media fault: kind=%s message=%s", e.err.Kind, e.err.Message)
	}
	e.emitLocked(EventError)
}

// clearLocked resets the selection, keeping the queue and modifiers.
// Must be called with lock held.
func (e *Engine) clearLocked() {
	e.resource.Pause()
	e.resource.Unload()
	e.current = nil
	e.isPlaying = false
	e.currentTime = 0
	e.duration = 0
	e.index = -1
	e.isLoading = false
	e.err = nil
}

// clampPositionLocked must be called with lock held.
func (e *Engine) clampPositionLocked(pos time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if e.duration > 0 && pos > e.duration {
		return e.duration
	}
	return pos
}

func (e *Engine) currentCopyLocked() *track.Track {
	if e.current == nil {
		return nil
	}
	t := *e.current
	return &t
}

// snapshotLocked must be called with lock held.
func (e *Engine) snapshotLocked() State {
	s := State{
		Track:       e.currentCopyLocked(),
		Index:       e.index,
		QueueLength: len(e.queue),
		IsPlaying:   e.isPlaying,
		CurrentTime: e.currentTime,
		Duration:    e.duration,
		Volume:      e.volume,
		IsShuffle:   e.shuffle,
		RepeatMode:  e.repeat,
		IsLoading:   e.isLoading,
	}
	if e.err != nil {
		errCopy := *e.err
		s.Error = &errCopy
	}

	s.HasTrack = s.Track != nil
	s.IsQueueEmpty = len(e.queue) == 0
	s.CanGoNext = !s.IsQueueEmpty && (e.index < len(e.queue)-1 || e.repeat == RepeatAll)
	s.CanGoPrev = !s.IsQueueEmpty && (e.index > 0 || e.repeat == RepeatAll)
	return s
}

// emitLocked sends a snapshot to every subscriber without blocking.
// Must be called with lock held.
func (e *Engine) emitLocked(typ EventType) {
	if len(e.subscribers) == 0 {
		return
	}

	ev := Event{Type: typ, State: e.snapshotLocked()}
	for _, ch := range e.subscribers {
		select {
		case ch <- ev:
			continue
		default:
		}

		// Subscriber is behind: drop its oldest event to make room.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
