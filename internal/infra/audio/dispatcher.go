package audio

import (
	"sync"

	"github.com/osa030/musikbox/internal/app/playback"
)

type envelope struct {
	generation uint64 // 0 for signals that outlive loads
	signal     playback.Signal
}

// dispatcher delivers signals in order from a single goroutine. Signals
// stamped with a generation that is no longer current are dropped at
// delivery time, so a superseded load never reaches the handler.
type dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []envelope
	handler func(playback.Signal)
	closed  bool
	done    chan struct{}

	current func() uint64
}

func newDispatcher(current func() uint64) *dispatcher {
	d := &dispatcher{
		current: current,
		done:    make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *dispatcher) setHandler(fn func(playback.Signal)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = fn
}

func (d *dispatcher) push(generation uint64, sig playback.Signal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, envelope{generation: generation, signal: sig})
	d.cond.Signal()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		env := d.queue[0]
		d.queue[0] = envelope{}
		d.queue = d.queue[1:]
		handler := d.handler
		d.mu.Unlock()

		if handler == nil {
			continue
		}
		if env.generation != 0 && env.generation != d.current() {
			continue
		}
		handler(env.signal)
	}
}

// close stops delivery, discarding pending signals, and waits for the
// delivery goroutine to exit.
func (d *dispatcher) close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.queue = nil
		d.cond.Broadcast()
	}
	d.mu.Unlock()
	<-d.done
}
