package playback

import (
	"errors"
	"sync"
	"time"
)

var errPlayRejected = errors.New("play() request was interrupted")

// fakeResource records calls from the engine. Tests emit signals explicitly.
type fakeResource struct {
	mu sync.Mutex

	src      string
	loads    []string
	playing  bool
	playErr  error
	plays    int
	pauses   int
	unloads  int
	seeks    []time.Duration
	volume   float64
	position time.Duration
	closed   int
	handler  func(Signal)
}

func newFakeResource() *fakeResource {
	return &fakeResource{}
}

func (f *fakeResource) Load(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.src = url
	f.loads = append(f.loads, url)
	f.position = 0
}

func (f *fakeResource) Unload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.src = ""
	f.unloads++
}

func (f *fakeResource) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeResource) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	f.playing = false
}

func (f *fakeResource) Seek(pos time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, pos)
	f.position = pos
}

func (f *fakeResource) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeResource) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeResource) OnSignal(fn func(Signal)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = fn
}

func (f *fakeResource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// emit delivers a signal the way a real resource would: outside any engine call.
func (f *fakeResource) emit(sig Signal) {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn != nil {
		fn(sig)
	}
}

// advance moves the media position and reports it.
func (f *fakeResource) advance(pos time.Duration) {
	f.mu.Lock()
	f.position = pos
	f.mu.Unlock()
	f.emit(Signal{Type: SignalTimeUpdate, Position: pos})
}

func (f *fakeResource) setPlayErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playErr = err
}

func (f *fakeResource) lastLoad() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return ""
	}
	return f.loads[len(f.loads)-1]
}

func (f *fakeResource) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func (f *fakeResource) currentSrc() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.src
}

// sequence returns an intn replacement yielding the given values in order.
func sequence(values ...int) func(int) int {
	var mu sync.Mutex
	i := 0
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		v := values[i%len(values)]
		i++
		return v % n
	}
}
