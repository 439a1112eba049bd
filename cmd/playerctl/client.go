package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/osa030/musikbox/internal/api/httpapi"
)

// client talks to the server's control API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// call sends body as JSON and decodes the response into out.
// Non-2xx responses carrying the error envelope become errors, unless
// the caller asked for the body anyway via out.
func (c *client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode >= 300 {
		var envelope httpapi.ErrorResponse
		if json.Unmarshal(data, &envelope) == nil && envelope.Code != "" {
			return errors.Newf("%s: %s", envelope.Code, envelope.Error)
		}
		if resp.StatusCode != http.StatusUnprocessableEntity || out == nil {
			return errors.Newf("server returned status %d", resp.StatusCode)
		}
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "failed to parse response")
}

func (c *client) state(ctx context.Context, method, path string, body any) (*httpapi.StateDTO, error) {
	var state httpapi.StateDTO
	if err := c.call(ctx, method, path, body, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// events dials the event stream, limited to types when any are given.
func (c *client) events(ctx context.Context, types []string) (*websocket.Conn, error) {
	u, err := url.Parse(c.base + "/api/events")
	if err != nil {
		return nil, errors.Wrap(err, "invalid server address")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if len(types) > 0 {
		u.RawQuery = url.Values{"types": {strings.Join(types, ",")}}.Encode()
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to event stream")
	}
	return conn, nil
}
