package notification

import (
	"strings"

	"github.com/gen2brain/beeep"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/app/playback"
)

// NowPlaying shows a desktop notification whenever a new track starts loading.
type NowPlaying struct {
	notify func(title, message string) error
	last   string
}

// NewNowPlaying creates a desktop now-playing notifier.
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Handle implements Handler.
func (n *NowPlaying) Handle(ev playback.Event) {
	if ev.Type != playback.EventTrackChanged || ev.State.Track == nil {
		return
	}
	t := ev.State.Track
	// The same track again (repeat one, single-track queues) is not news.
	if t.URL == n.last {
		return
	}
	n.last = t.URL

	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = t.Label()
	}
	if err := n.notify("Now playing: "+title, t.Artist); err != nil {
		zlog.Debug().Msgf("notification: desktop notify failed: %v", err)
	}
}
