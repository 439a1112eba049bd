package playback

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musikbox/internal/domain/track"
)

var (
	trackA = track.Track{URL: "https://cdn.example.com/a.mp3", Title: "A", Artist: "Artist"}
	trackB = track.Track{URL: "https://cdn.example.com/b.mp3", Title: "B", Artist: "Artist", Duration: 200 * time.Second}
	trackC = track.Track{URL: "https://cdn.example.com/c.mp3", Title: "C", Artist: "Artist"}
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeResource) {
	t.Helper()
	res := newFakeResource()
	e := New(res, DefaultConfig(), opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e, res
}

func assertInitialState(t *testing.T, s State) {
	t.Helper()
	assert.Nil(t, s.Track)
	assert.Equal(t, -1, s.Index)
	assert.Equal(t, 0, s.QueueLength)
	assert.False(t, s.IsPlaying)
	assert.Zero(t, s.CurrentTime)
	assert.Zero(t, s.Duration)
	assert.Equal(t, 0.7, s.Volume)
	assert.False(t, s.IsShuffle)
	assert.Equal(t, RepeatOff, s.RepeatMode)
	assert.False(t, s.IsLoading)
	assert.Nil(t, s.Error)
	assert.False(t, s.HasTrack)
	assert.True(t, s.IsQueueEmpty)
	assert.False(t, s.CanGoNext)
	assert.False(t, s.CanGoPrev)
	assert.Equal(t, StatusNoTrack, s.Status())
}

func TestEngine_InitialState(t *testing.T) {
	e, res := newTestEngine(t)

	assertInitialState(t, e.State())
	assert.Equal(t, 0.7, res.volume, "initial volume should be applied to the resource")
	assert.NotNil(t, res.handler, "engine should register for resource signals")
}

func TestEngine_LoadQueue_ClampsStartIndex(t *testing.T) {
	tests := []struct {
		name       string
		startIndex int
		wantIndex  int
		wantTrack  track.Track
	}{
		{name: "negative start", startIndex: -5, wantIndex: 0, wantTrack: trackA},
		{name: "first", startIndex: 0, wantIndex: 0, wantTrack: trackA},
		{name: "middle", startIndex: 1, wantIndex: 1, wantTrack: trackB},
		{name: "last", startIndex: 2, wantIndex: 2, wantTrack: trackC},
		{name: "past the end", startIndex: 10, wantIndex: 2, wantTrack: trackC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, res := newTestEngine(t)

			e.LoadQueue([]track.Track{trackA, trackB, trackC}, tt.startIndex, true)

			s := e.State()
			require.NotNil(t, s.Track)
			assert.Equal(t, tt.wantIndex, s.Index)
			assert.Equal(t, tt.wantTrack, *s.Track)
			assert.Equal(t, tt.wantTrack.URL, res.lastLoad())
			assert.Equal(t, 3, s.QueueLength)
			assert.True(t, s.IsPlaying)
		})
	}
}

func TestEngine_LoadQueue_Empty(t *testing.T) {
	e, res := newTestEngine(t)

	e.LoadQueue([]track.Track{trackA}, 0, true)
	e.LoadQueue(nil, 0, true)

	s := e.State()
	assert.Nil(t, s.Track)
	assert.Equal(t, -1, s.Index)
	assert.True(t, s.IsQueueEmpty)
	assert.False(t, s.IsPlaying)
	assert.Nil(t, s.Error, "empty queue is a reset, not a fault")
	assert.Empty(t, res.currentSrc(), "media should be released")
}

func TestEngine_LoadQueue_CopiesInput(t *testing.T) {
	e, _ := newTestEngine(t)

	tracks := []track.Track{trackA, trackB}
	e.LoadQueue(tracks, 0, false)
	tracks[0] = trackC

	assert.Equal(t, trackA, e.Queue()[0])
}

func TestEngine_LoadQueue_NoAutoplay(t *testing.T) {
	e, res := newTestEngine(t)

	e.LoadQueue([]track.Track{trackA, trackB}, 1, false)

	s := e.State()
	assert.Equal(t, 1, s.Index)
	assert.False(t, s.IsPlaying)
	assert.Equal(t, 0, res.plays)
	assert.Equal(t, StatusPaused, s.Status())
}

func TestEngine_SetTrackByIndex_OutOfBoundsClears(t *testing.T) {
	tests := []struct {
		name  string
		index int
	}{
		{name: "negative", index: -1},
		{name: "equal to length", index: 2},
		{name: "far past the end", index: 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, res := newTestEngine(t)
			e.LoadQueue([]track.Track{trackA, trackB}, 0, true)

			e.SetTrackByIndex(tt.index, true)

			s := e.State()
			assert.Nil(t, s.Track)
			assert.Equal(t, -1, s.Index)
			assert.False(t, s.IsPlaying)
			assert.Nil(t, s.Error)
			assert.Equal(t, 2, s.QueueLength, "queue is kept")
			assert.Empty(t, res.currentSrc())
		})
	}
}

func TestEngine_SetTrack_Duration(t *testing.T) {
	e, _ := newTestEngine(t)

	e.SetTrack(trackB, false)
	assert.Equal(t, 200*time.Second, e.State().Duration, "known duration is seeded")

	e.SetTrack(trackA, false)
	assert.Zero(t, e.State().Duration, "unknown duration waits for metadata")

	e.HandleSignal(Signal{Type: SignalMetadataLoaded, Duration: 95 * time.Second})
	assert.Equal(t, 95*time.Second, e.State().Duration)
}

func TestEngine_SetTrack_ResetsPositionAndKeepsIndex(t *testing.T) {
	e, res := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA, trackB}, 1, true)
	res.advance(50 * time.Second)
	require.Equal(t, 50*time.Second, e.State().CurrentTime)

	e.SetTrack(trackC, true)

	s := e.State()
	assert.Zero(t, s.CurrentTime)
	assert.Equal(t, trackC, *s.Track)
	assert.Equal(t, 1, s.Index, "ad-hoc tracks do not move the queue index")
	assert.Equal(t, trackC.URL, res.lastLoad())
}

func TestEngine_Play_RejectedIsSilent(t *testing.T) {
	e, res := newTestEngine(t)
	res.setPlayErr(errPlayRejected)

	e.LoadQueue([]track.Track{trackA}, 0, true)

	s := e.State()
	assert.False(t, s.IsPlaying)
	assert.Nil(t, s.Error)
	assert.Equal(t, 1, res.plays)
}

func TestEngine_PauseAndToggle(t *testing.T) {
	e, res := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA}, 0, true)
	require.True(t, e.State().IsPlaying)

	e.Pause()
	assert.False(t, e.State().IsPlaying)
	assert.Equal(t, 1, res.pauses)

	e.TogglePlayPause()
	assert.True(t, e.State().IsPlaying)
	assert.Equal(t, 2, res.plays)

	e.TogglePlayPause()
	assert.False(t, e.State().IsPlaying)
	assert.Equal(t, 2, res.pauses)
}

func TestEngine_IsPlayingMirrorsSignals(t *testing.T) {
	e, res := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA}, 0, false)

	res.emit(Signal{Type: SignalPlay})
	assert.True(t, e.State().IsPlaying)

	res.emit(Signal{Type: SignalPause})
	assert.False(t, e.State().IsPlaying)
}

func TestEngine_Seek(t *testing.T) {
	tests := []struct {
		name     string
		track    track.Track
		seekTo   time.Duration
		expected time.Duration
	}{
		{name: "within known duration", track: trackB, seekTo: 30 * time.Second, expected: 30 * time.Second},
		{name: "past known duration", track: trackB, seekTo: 500 * time.Second, expected: 200 * time.Second},
		{name: "negative", track: trackB, seekTo: -5 * time.Second, expected: 0},
		{name: "unknown duration is unbounded", track: trackA, seekTo: 500 * time.Second, expected: 500 * time.Second},
		{name: "unknown duration negative", track: trackA, seekTo: -1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, res := newTestEngine(t)
			e.SetTrack(tt.track, false)

			e.Seek(tt.seekTo)

			assert.Equal(t, tt.expected, e.State().CurrentTime)
			assert.Equal(t, tt.expected, res.Position())
		})
	}
}

func TestEngine_SetVolume(t *testing.T) {
	tests := []struct {
		name     string
		volume   float64
		expected float64
	}{
		{name: "in range", volume: 0.42, expected: 0.42},
		{name: "zero", volume: 0, expected: 0},
		{name: "one", volume: 1, expected: 1},
		{name: "below range", volume: -3, expected: 0},
		{name: "above range", volume: 7.5, expected: 1},
		{name: "not a number", volume: math.NaN(), expected: 0},
		{name: "positive infinity", volume: math.Inf(1), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, res := newTestEngine(t)

			e.SetVolume(tt.volume)

			assert.Equal(t, tt.expected, e.State().Volume)
			assert.Equal(t, tt.expected, res.volume)
		})
	}
}

func TestEngine_Next_Sequence(t *testing.T) {
	tests := []struct {
		name      string
		repeat    RepeatMode
		wantTrack track.Track
		wantIndex int
		wantPlay  bool
	}{
		{name: "repeat off stops on last track", repeat: RepeatOff, wantTrack: trackC, wantIndex: 2, wantPlay: false},
		{name: "repeat all wraps to first", repeat: RepeatAll, wantTrack: trackA, wantIndex: 0, wantPlay: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, res := newTestEngine(t)
			e.LoadQueue([]track.Track{trackA, trackB, trackC}, 0, true)
			assert.Equal(t, trackA, *e.State().Track)

			e.Next()
			assert.Equal(t, trackB, *e.State().Track)
			assert.Equal(t, 1, e.State().Index)

			e.Next()
			assert.Equal(t, trackC, *e.State().Track)
			assert.Equal(t, 2, e.State().Index)

			res.advance(42 * time.Second)
			e.SetRepeatMode(tt.repeat)
			e.Next()

			s := e.State()
			require.NotNil(t, s.Track)
			assert.Equal(t, tt.wantTrack, *s.Track)
			assert.Equal(t, tt.wantIndex, s.Index)
			assert.Equal(t, tt.wantPlay, s.IsPlaying)
			assert.Zero(t, s.CurrentTime)
		})
	}
}

func TestEngine_Next_EndOfQueueKeepsTrackLoaded(t *testing.T) {
	e, res := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA}, 0, true)
	loads := res.loadCount()

	e.Next()

	s := e.State()
	assert.Equal(t, trackA, *s.Track)
	assert.False(t, s.IsPlaying)
	assert.Equal(t, loads, res.loadCount(), "no reload at end of queue")
	assert.Equal(t, trackA.URL, res.currentSrc())
	assert.Nil(t, s.Error)
}

func TestEngine_Next_RepeatOne(t *testing.T) {
	e, res := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA, trackB, trackC}, 1, true)
	e.SetRepeatMode(RepeatOne)
	res.advance(120 * time.Second)

	for i := 0; i < 3; i++ {
		e.Next()

		s := e.State()
		assert.Equal(t, 1, s.Index)
		assert.Equal(t, trackB, *s.Track)
		assert.Zero(t, s.CurrentTime)
		assert.True(t, s.IsPlaying)
	}
	assert.Equal(t, 4, res.loadCount(), "each next reloads the current track")
}

func TestEngine_Next_Shuffle(t *testing.T) {
	// Draws 0 (rejected: current) then 2.
	e, _ := newTestEngine(t, WithRandom(sequence(0, 2)))
	e.LoadQueue([]track.Track{trackA, trackB, trackC}, 0, true)
	e.ToggleShuffle()

	e.Next()

	s := e.State()
	assert.Equal(t, 2, s.Index)
	assert.Equal(t, trackC, *s.Track)
}

func TestEngine_Next_ShuffleNeverRepeatsCurrent(t *testing.T) {
	e, _ := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA, trackB}, 0, true)
	e.SetShuffle(true)

	for i := 0; i < 20; i++ {
		before := e.State().Index
		e.Next()
		assert.NotEqual(t, before, e.State().Index)
	}
}

func TestEngine_Next_ShuffleSingleTrackReloads(t *testing.T) {
	e, res := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA}, 0, true)
	e.SetShuffle(true)

	e.Next()

	assert.Equal(t, 0, e.State().Index)
	assert.Equal(t, 2, res.loadCount())
}

func TestEngine_Next_EmptyQueueIsNoop(t *testing.T) {
	e, res := newTestEngine(t)
	e.SetTrack(trackA, true)

	e.Next()

	assert.Equal(t, trackA, *e.State().Track)
	assert.Equal(t, 1, res.loadCount())
}

func TestEngine_Prev(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		repeat    RepeatMode
		elapsed   time.Duration
		wantIndex int
		wantLoads int
		wantSeek0 bool
	}{
		{name: "restarts after threshold", start: 1, elapsed: 4 * time.Second, wantIndex: 1, wantLoads: 1, wantSeek0: true},
		{name: "moves back within threshold", start: 1, elapsed: 2 * time.Second, wantIndex: 0, wantLoads: 2},
		{name: "exactly at threshold moves back", start: 2, elapsed: 3 * time.Second, wantIndex: 1, wantLoads: 2},
		{name: "first track repeat off stays", start: 0, elapsed: time.Second, wantIndex: 0, wantLoads: 1, wantSeek0: true},
		{name: "first track repeat all wraps", start: 0, repeat: RepeatAll, elapsed: time.Second, wantIndex: 2, wantLoads: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, res := newTestEngine(t)
			e.LoadQueue([]track.Track{trackA, trackB, trackC}, tt.start, true)
			e.SetRepeatMode(tt.repeat)
			res.advance(tt.elapsed)
			before := e.State().Track

			e.Prev()

			s := e.State()
			assert.Equal(t, tt.wantIndex, s.Index)
			assert.Equal(t, tt.wantLoads, res.loadCount())
			assert.Zero(t, s.CurrentTime)
			if tt.wantSeek0 {
				assert.Equal(t, *before, *s.Track, "track identity is kept")
				assert.Contains(t, res.seeks, time.Duration(0))
			}
		})
	}
}

func TestEngine_Prev_Shuffle(t *testing.T) {
	e, res := newTestEngine(t, WithRandom(sequence(1, 1, 2)))
	e.LoadQueue([]track.Track{trackA, trackB, trackC}, 1, true)
	e.SetShuffle(true)
	res.advance(30 * time.Second)

	e.Prev()

	// Shuffle ignores the restart threshold and draws until it leaves index 1.
	assert.Equal(t, 2, e.State().Index)
}

func TestEngine_CycleRepeatMode(t *testing.T) {
	e, _ := newTestEngine(t)

	expected := []RepeatMode{RepeatAll, RepeatOne, RepeatOff, RepeatAll}
	for _, want := range expected {
		e.CycleRepeatMode()
		assert.Equal(t, want, e.State().RepeatMode)
	}
}

func TestEngine_ToggleShuffle(t *testing.T) {
	e, _ := newTestEngine(t)

	e.ToggleShuffle()
	assert.True(t, e.State().IsShuffle)
	e.ToggleShuffle()
	assert.False(t, e.State().IsShuffle)
}

func TestEngine_Ended(t *testing.T) {
	t.Run("advances through the queue", func(t *testing.T) {
		e, res := newTestEngine(t)
		e.LoadQueue([]track.Track{trackA, trackB}, 0, true)

		res.emit(Signal{Type: SignalEnded})

		assert.Equal(t, 1, e.State().Index)
		assert.True(t, e.State().IsPlaying)
	})

	t.Run("repeat one restarts", func(t *testing.T) {
		e, res := newTestEngine(t)
		e.LoadQueue([]track.Track{trackA, trackB}, 0, true)
		e.SetRepeatMode(RepeatOne)

		res.emit(Signal{Type: SignalEnded})

		assert.Equal(t, 0, e.State().Index)
		assert.Equal(t, 2, res.loadCount())
	})

	t.Run("last track stops", func(t *testing.T) {
		e, res := newTestEngine(t)
		e.LoadQueue([]track.Track{trackA, trackB}, 1, true)
		res.advance(100 * time.Second)

		res.emit(Signal{Type: SignalEnded})

		s := e.State()
		assert.Equal(t, trackB, *s.Track)
		assert.False(t, s.IsPlaying)
		assert.Zero(t, s.CurrentTime)
	})

	t.Run("ad-hoc track without queue stops", func(t *testing.T) {
		e, res := newTestEngine(t)
		e.SetTrack(trackA, true)
		res.advance(10 * time.Second)

		res.emit(Signal{Type: SignalEnded})

		s := e.State()
		assert.Equal(t, trackA, *s.Track)
		assert.False(t, s.IsPlaying)
		assert.Zero(t, s.CurrentTime)
	})
}

func TestEngine_ErrorSignal(t *testing.T) {
	tests := []struct {
		name     string
		fault    *MediaFault
		wantKind ErrorKind
		wantCode MediaErrorCode
	}{
		{name: "aborted", fault: &MediaFault{Code: MediaErrAborted}, wantKind: ErrorKindNetwork, wantCode: MediaErrAborted},
		{name: "network", fault: &MediaFault{Code: MediaErrNetwork}, wantKind: ErrorKindNetwork, wantCode: MediaErrNetwork},
		{name: "decode", fault: &MediaFault{Code: MediaErrDecode}, wantKind: ErrorKindFormat, wantCode: MediaErrDecode},
		{name: "unsupported", fault: &MediaFault{Code: MediaErrSrcNotSupported}, wantKind: ErrorKindFormat, wantCode: MediaErrSrcNotSupported},
		{name: "unknown code", fault: &MediaFault{Code: 42}, wantKind: ErrorKindUnknown, wantCode: 42},
		{name: "no details", fault: nil, wantKind: ErrorKindUnknown, wantCode: MediaErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, res := newTestEngine(t)
			e.LoadQueue([]track.Track{trackA, trackB}, 1, true)
			res.emit(Signal{Type: SignalLoadStart})
			require.True(t, e.State().IsLoading)

			res.emit(Signal{Type: SignalError, Fault: tt.fault})

			s := e.State()
			require.NotNil(t, s.Error)
			assert.Equal(t, tt.wantKind, s.Error.Kind)
			assert.Equal(t, tt.wantCode, s.Error.Code)
			assert.NotEmpty(t, s.Error.Message)
			require.NotNil(t, s.Error.Track)
			assert.Equal(t, trackB, *s.Error.Track)
			assert.False(t, s.IsPlaying)
			assert.False(t, s.IsLoading)
			assert.Equal(t, StatusErrored, s.Status())
			assert.Equal(t, 1, res.loadCount(), "faults are never retried")
		})
	}
}

func TestEngine_ErrorLifecycle(t *testing.T) {
	e, res := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA, trackB}, 0, true)
	res.emit(Signal{Type: SignalError, Fault: &MediaFault{Code: MediaErrNetwork}})
	require.NotNil(t, e.State().Error)

	// Commands that do not load keep the error.
	e.Pause()
	e.SetVolume(0.3)
	assert.NotNil(t, e.State().Error)

	e.ClearError()
	assert.Nil(t, e.State().Error)

	res.emit(Signal{Type: SignalError, Fault: &MediaFault{Code: MediaErrDecode}})
	require.NotNil(t, e.State().Error)

	// A new load resets the slot.
	e.Next()
	assert.Nil(t, e.State().Error)

	res.emit(Signal{Type: SignalError, Fault: &MediaFault{Code: MediaErrDecode}})
	res.emit(Signal{Type: SignalLoadStart})
	assert.Nil(t, e.State().Error)
}

func TestEngine_LoadingSignals(t *testing.T) {
	e, res := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA}, 0, false)

	res.emit(Signal{Type: SignalLoadStart})
	assert.True(t, e.State().IsLoading)
	assert.Equal(t, StatusLoading, e.State().Status())

	res.emit(Signal{Type: SignalMetadataLoaded, Duration: -1})
	assert.Zero(t, e.State().Duration, "unbounded media reports zero duration")

	res.emit(Signal{Type: SignalCanPlay})
	assert.False(t, e.State().IsLoading)
	assert.Equal(t, StatusPaused, e.State().Status())
}

func TestEngine_TimeUpdateClampsToDuration(t *testing.T) {
	e, res := newTestEngine(t)
	e.SetTrack(trackB, true)

	res.advance(250 * time.Second)
	assert.Equal(t, 200*time.Second, e.State().CurrentTime)

	res.emit(Signal{Type: SignalSeeked, Position: 12 * time.Second})
	assert.Equal(t, 12*time.Second, e.State().CurrentTime)
}

func TestEngine_VolumeSignal(t *testing.T) {
	e, res := newTestEngine(t)

	res.emit(Signal{Type: SignalVolumeChange, Volume: 0.25})
	assert.Equal(t, 0.25, e.State().Volume)
}

func TestEngine_DerivedFlags(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		repeat   RepeatMode
		wantNext bool
		wantPrev bool
	}{
		{name: "first track", start: 0, wantNext: true, wantPrev: false},
		{name: "middle track", start: 1, wantNext: true, wantPrev: true},
		{name: "last track", start: 2, wantNext: false, wantPrev: true},
		{name: "last track repeat all", start: 2, repeat: RepeatAll, wantNext: true, wantPrev: true},
		{name: "first track repeat all", start: 0, repeat: RepeatAll, wantNext: true, wantPrev: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			e.LoadQueue([]track.Track{trackA, trackB, trackC}, tt.start, false)
			e.SetRepeatMode(tt.repeat)

			s := e.State()
			assert.True(t, s.HasTrack)
			assert.False(t, s.IsQueueEmpty)
			assert.Equal(t, tt.wantNext, s.CanGoNext)
			assert.Equal(t, tt.wantPrev, s.CanGoPrev)
		})
	}
}

func TestEngine_Destroy(t *testing.T) {
	e, res := newTestEngine(t)
	e.LoadQueue([]track.Track{trackA, trackB, trackC}, 1, true)
	e.SetVolume(0.2)
	e.SetShuffle(true)
	e.SetRepeatMode(RepeatOne)
	res.emit(Signal{Type: SignalError, Fault: &MediaFault{Code: MediaErrDecode}})

	e.Destroy()
	assertInitialState(t, e.State())
	assert.Empty(t, res.currentSrc())
	assert.Empty(t, e.Queue())

	assert.NotPanics(t, func() { e.Destroy() })
	assertInitialState(t, e.State())

	// The engine stays usable after a destroy.
	e.LoadQueue([]track.Track{trackA}, 0, true)
	assert.True(t, e.State().HasTrack)
}

func TestEngine_Close(t *testing.T) {
	res := newFakeResource()
	e := New(res, DefaultConfig())
	_, events := e.Subscribe()
	e.LoadQueue([]track.Track{trackA}, 0, true)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, 1, res.closed)

	for range events {
		// drain until closed
	}

	e.LoadQueue([]track.Track{trackB}, 0, true)
	res.emit(Signal{Type: SignalPlay})
	assertInitialState(t, e.State())

	_, late := e.Subscribe()
	_, ok := <-late
	assert.False(t, ok, "subscriptions after close are closed immediately")
}

func TestEngine_Subscribe(t *testing.T) {
	e, _ := newTestEngine(t)
	id, events := e.Subscribe()

	e.LoadQueue([]track.Track{trackA, trackB}, 0, true)

	var types []EventType
	for len(events) > 0 {
		ev := <-events
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventQueueLoaded, EventTrackChanged, EventStateChanged}, types)

	e.Unsubscribe(id)
	_, ok := <-events
	assert.False(t, ok)

	assert.NotPanics(t, func() { e.Unsubscribe(id) })
}

func TestEngine_Subscribe_LaggingSubscriberGetsLatest(t *testing.T) {
	res := newFakeResource()
	cfg := DefaultConfig()
	cfg.EventBuffer = 2
	e := New(res, cfg)
	defer e.Close()
	_, events := e.Subscribe()

	e.LoadQueue([]track.Track{trackA}, 0, false)
	for i := 1; i <= 10; i++ {
		e.SetVolume(float64(i) / 10)
	}

	var last Event
	for len(events) > 0 {
		last = <-events
	}
	assert.Equal(t, 1.0, last.State.Volume)
}

func TestEngine_ExampleWalkthrough(t *testing.T) {
	e, res := newTestEngine(t)

	e.LoadQueue([]track.Track{trackA, trackB, trackC}, 0, true)
	e.Next()
	res.emit(Signal{Type: SignalLoadStart})
	res.emit(Signal{Type: SignalError, Fault: &MediaFault{Code: MediaErrDecode}})

	s := e.State()
	require.NotNil(t, s.Error)
	assert.Equal(t, ErrorKindFormat, s.Error.Kind)
	assert.Equal(t, trackB, *s.Error.Track)
	assert.False(t, s.IsPlaying)
	assert.False(t, s.IsLoading)
}
