// Package notification broadcasts playback events to live subscribers.
package notification

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/musikbox/internal/app/playback"
)

// sendTimeout bounds how long a slow subscriber may hold up a broadcast.
const sendTimeout = 500 * time.Millisecond

// ErrClosed is returned by Send once the manager has been closed.
var ErrClosed = errors.New("notification: manager closed")

// Notification is one broadcast playback event.
type Notification struct {
	SequenceNo uint64
	Type       playback.EventType
	State      playback.State
	At         time.Time
}

// Stream delivers notifications to one subscriber, typically a websocket.
type Stream interface {
	Send(*Notification) error
}

type subscriber struct {
	id     string
	stream Stream
	types  map[playback.EventType]struct{} // empty means every type
}

func (s *subscriber) wants(t playback.EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Manager fans notifications out to subscribers. Sequence numbers are
// assigned by Broadcast and are strictly increasing across all subscribers.
type Manager struct {
	seq     atomic.Uint64
	timeout time.Duration

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscribers: make(map[string]*subscriber),
		timeout:     sendTimeout,
	}
}

// Subscribe registers stream and returns its subscription ID. When types are
// given only those events are delivered. A closed manager returns "".
func (m *Manager) Subscribe(stream Stream, types ...playback.EventType) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ""
	}

	sub := &subscriber{
		id:     uuid.New().String(),
		stream: stream,
		types: lo.SliceToMap(types, func(t playback.EventType) (playback.EventType, struct{}) {
			return t, struct{}{}
		}),
	}
	m.subscribers[sub.id] = sub
	zlog.Debug().Msgf("notification: subscribed %s (%d active)", sub.id, len(m.subscribers))
	return sub.id
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, id)
}

// Broadcast stamps n with the next sequence number and delivers it to every
// interested subscriber in parallel. A stream whose Send fails is dropped;
// one that exceeds the timeout keeps its subscription and misses the event.
func (m *Manager) Broadcast(n *Notification) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return
	}
	targets := lo.Filter(lo.Values(m.subscribers), func(s *subscriber, _ int) bool {
		return s.wants(n.Type)
	})
	m.mu.RUnlock()

	n.SequenceNo = m.seq.Add(1)
	if n.At.IsZero() {
		n.At = time.Now()
	}

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, sub := range targets {
		go func() {
			defer wg.Done()
			m.deliver(sub, n)
		}()
	}
	wg.Wait()
}

func (m *Manager) deliver(sub *subscriber, n *Notification) {
	result := make(chan error, 1)
	go func() { result <- sub.stream.Send(n) }()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			zlog.Debug().Msgf("notification: dropping subscriber %s: %v", sub.id, err)
			m.Unsubscribe(sub.id)
		}
	case <-timer.C:
		zlog.Debug().Msgf("notification: %s missed event %d (send timed out)", sub.id, n.SequenceNo)
	}
}

// Send delivers n to a single subscriber as is, without a sequence number.
// Unknown IDs are a no-op.
func (m *Manager) Send(id string, n *Notification) error {
	m.mu.RLock()
	sub, ok := m.subscribers[id]
	closed := m.closed
	m.mu.RUnlock()

	switch {
	case closed:
		return ErrClosed
	case !ok:
		return nil
	}
	return sub.stream.Send(n)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// Close drops every subscription. Later broadcasts are discarded and
// Subscribe returns "".
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	clear(m.subscribers)
}
