package notification

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/app/playback"
)

// EventSource is the subscription side of the playback engine.
type EventSource interface {
	Subscribe() (string, <-chan playback.Event)
	Unsubscribe(id string)
}

// Handler reacts to playback events alongside the broadcast.
type Handler interface {
	Handle(ev playback.Event)
}

// Relay forwards engine events to the manager and any handlers until ctx is
// done or the engine closes the subscription.
func Relay(ctx context.Context, source EventSource, m *Manager, handlers ...Handler) {
	id, events := source.Subscribe()
	defer source.Unsubscribe(id)
	zlog.Debug().Msgf("notification: relaying engine events (subscription %s)", id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, h := range handlers {
				h.Handle(ev)
			}
			m.Broadcast(&Notification{Type: ev.Type, State: ev.State})
		}
	}
}
