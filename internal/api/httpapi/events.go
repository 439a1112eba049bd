package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/app/notification"
	"github.com/osa030/musikbox/internal/app/playback"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Access is guarded by the bearer token, not the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsStream delivers notifications over a WebSocket connection.
type wsStream struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Send implements notification.Stream.
func (s *wsStream) Send(n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(toEventDTO(n))
}

func (s *wsStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// handleEvents streams playback events until the client goes away.
// The first message is a snapshot of the current state with sequence number 0.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	types, err := eventTypes(r.URL.Query()["types"])
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Debug().Msgf("api: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	stream := &wsStream{conn: conn}
	snapshot := &notification.Notification{
		Type:  playback.EventStateChanged,
		State: s.player.State(),
		At:    time.Now(),
	}
	if err := stream.Send(snapshot); err != nil {
		zlog.Debug().Msgf("api: failed to send snapshot: %v", err)
		return
	}

	id := s.events.Subscribe(stream, types...)
	if id == "" {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return
	}
	defer s.events.Unsubscribe(id)
	defer stream.close()
	zlog.Info().Msgf("api: event stream %s opened", id)

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Debug().Msgf("api: event stream %s closed unexpectedly: %v", id, err)
			}
			break
		}
	}
	zlog.Info().Msgf("api: event stream %s closed", id)
}

// eventTypes parses the types filter. Values may be repeated or comma separated.
func eventTypes(values []string) ([]playback.EventType, error) {
	var types []playback.EventType
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			t, err := playback.ParseEventType(name)
			if err != nil {
				return nil, err
			}
			types = append(types, t)
		}
	}
	return types, nil
}

func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
