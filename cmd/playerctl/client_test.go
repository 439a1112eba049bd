package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musikbox/internal/api/httpapi"
)

type request struct {
	auth, body, ctype, query string
}

// seen records the last request a test server handled.
type seen struct {
	mu  sync.Mutex
	req request
}

func (s *seen) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = request{
		auth:  r.Header.Get("Authorization"),
		body:  string(body),
		ctype: r.Header.Get("Content-Type"),
		query: r.URL.RawQuery,
	}
}

func (s *seen) last() request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req
}

func TestClient_Call(t *testing.T) {
	got := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.record(r)

		switch r.URL.Path {
		case "/api/volume":
			_ = json.NewEncoder(w).Encode(httpapi.StateDTO{Status: "paused", Volume: 0.4})
		case "/api/denied":
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(httpapi.ErrorResponse{Error: "missing or invalid token", Code: "unauthorized"})
		case "/api/queue":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(httpapi.QueueResponse{Accepted: 0, State: httpapi.StateDTO{Status: "idle"}})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/", "secret")
	ctx := context.Background()

	t.Run("decodes state", func(t *testing.T) {
		state, err := c.state(ctx, http.MethodPost, "/api/volume", map[string]float64{"volume": 0.4})
		require.NoError(t, err)
		assert.Equal(t, 0.4, state.Volume)
		req := got.last()
		assert.Equal(t, "Bearer secret", req.auth)
		assert.Equal(t, "application/json", req.ctype)
		assert.JSONEq(t, `{"volume":0.4}`, req.body)
	})

	t.Run("error envelope", func(t *testing.T) {
		err := c.call(ctx, http.MethodGet, "/api/denied", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unauthorized: missing or invalid token")
		assert.Empty(t, got.last().ctype)
	})

	t.Run("unprocessable body is still decoded", func(t *testing.T) {
		var resp httpapi.QueueResponse
		require.NoError(t, c.call(ctx, http.MethodPost, "/api/queue", map[string]string{"ref": "x"}, &resp))
		assert.Equal(t, "idle", resp.State.Status)
	})

	t.Run("bare status", func(t *testing.T) {
		err := c.call(ctx, http.MethodGet, "/api/broken", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})
}

func TestClient_Events(t *testing.T) {
	upgrader := websocket.Upgrader{}
	got := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.record(r)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(httpapi.EventDTO{SequenceNo: 3, Type: "error"})
	}))
	defer srv.Close()

	c := newClient(srv.URL, "secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := c.events(ctx, []string{"error", "cleared"})
	require.NoError(t, err)
	defer conn.Close()

	var ev httpapi.EventDTO
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, uint64(3), ev.SequenceNo)
	req := got.last()
	assert.Equal(t, "Bearer secret", req.auth)
	assert.Equal(t, "types=error%2Ccleared", req.query)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "0:00", clock(0))
	assert.Equal(t, "--:--", length(0))
	assert.Equal(t, "3:05", length(185))
}
