// Package main provides the command line remote for the playback server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/osa030/musikbox/internal/api/httpapi"
)

var (
	app    = kingpin.New("musikbox-playerctl", "musikbox playback remote")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "API token (or set MUSIKBOX_TOKEN env)").Envar("MUSIKBOX_TOKEN").String()

	stateCmd  = app.Command("state", "Show the playback state").Alias("status")
	playCmd   = app.Command("play", "Resume playback")
	pauseCmd  = app.Command("pause", "Pause playback")
	toggleCmd = app.Command("toggle", "Toggle play and pause")
	nextCmd   = app.Command("next", "Skip to the next track")
	prevCmd   = app.Command("prev", "Go back a track, or restart the current one")

	seekCmd      = app.Command("seek", "Seek within the current track")
	seekPosition = seekCmd.Arg("position", "Position, e.g. 90s or 1m30s").Required().Duration()

	volumeCmd   = app.Command("volume", "Set the volume")
	volumeLevel = volumeCmd.Arg("level", "Volume between 0 and 1").Required().Float64()

	shuffleCmd   = app.Command("shuffle", "Set or toggle shuffle")
	shuffleState = shuffleCmd.Arg("state", "on or off (toggles when omitted)").Enum("on", "off")

	repeatCmd  = app.Command("repeat", "Set or cycle the repeat mode")
	repeatMode = repeatCmd.Arg("mode", "off, one or all (cycles when omitted)").Enum("off", "one", "all")

	clearErrorCmd = app.Command("clear-error", "Dismiss the playback error")
	destroyCmd    = app.Command("destroy", "Stop and reset the player")

	queueCmd      = app.Command("queue", "Replace the queue, or list it when no reference is given")
	queueRef      = queueCmd.Arg("ref", "Source reference, e.g. musicfun:playlist:<id> or a playlist file").String()
	queueStart    = queueCmd.Flag("start", "Index to start from").Default("0").Int()
	queueAutoplay = queueCmd.Flag("autoplay", "Start playing right away").Default("true").Bool()

	trackCmd   = app.Command("track", "Play a queue entry by index, or a URL outside the queue")
	trackArg   = trackCmd.Arg("index-or-url", "Queue index or media URL").Required().String()
	trackTitle = trackCmd.Flag("title", "Title for a URL track").String()

	watchCmd   = app.Command("watch", "Stream playback events")
	watchTypes = watchCmd.Flag("type", "Only show these event types (repeatable)").
		Enums("state_changed", "time_update", "track_changed", "queue_loaded", "error", "cleared", "destroyed")

	playlistsCmd    = app.Command("playlists", "Browse catalog playlists")
	playlistsSearch = playlistsCmd.Flag("search", "Search text").String()
	playlistsPage   = playlistsCmd.Flag("page", "Page number").Default("1").Int()
	playlistsSize   = playlistsCmd.Flag("page-size", "Page size").Default("10").Int()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	c := newClient(*server, *token)
	ctx := context.Background()

	var err error
	switch command {
	case stateCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodGet, "/api/state", nil))
	case playCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodPost, "/api/play", nil))
	case pauseCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodPost, "/api/pause", nil))
	case toggleCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodPost, "/api/toggle", nil))
	case nextCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodPost, "/api/next", nil))
	case prevCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodPost, "/api/prev", nil))
	case seekCmd.FullCommand():
		pos := seekPosition.Seconds()
		err = showState(c.state(ctx, http.MethodPost, "/api/seek", httpapi.SeekRequest{Position: &pos}))
	case volumeCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodPost, "/api/volume", httpapi.VolumeRequest{Volume: volumeLevel}))
	case shuffleCmd.FullCommand():
		req := httpapi.ShuffleRequest{}
		if *shuffleState != "" {
			on := *shuffleState == "on"
			req.Enabled = &on
		}
		err = showState(c.state(ctx, http.MethodPost, "/api/shuffle", req))
	case repeatCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodPost, "/api/repeat", httpapi.RepeatRequest{Mode: *repeatMode}))
	case clearErrorCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodPost, "/api/clear-error", nil))
	case destroyCmd.FullCommand():
		err = showState(c.state(ctx, http.MethodPost, "/api/destroy", nil))
	case queueCmd.FullCommand():
		if *queueRef == "" {
			err = listQueue(ctx, c)
		} else {
			err = loadQueue(ctx, c)
		}
	case trackCmd.FullCommand():
		err = playTrack(ctx, c)
	case watchCmd.FullCommand():
		err = watch(ctx, c)
	case playlistsCmd.FullCommand():
		err = listPlaylists(ctx, c)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func showState(state *httpapi.StateDTO, err error) error {
	if err != nil {
		return err
	}
	printState(state)
	return nil
}

func loadQueue(ctx context.Context, c *client) error {
	var resp httpapi.QueueResponse
	req := httpapi.QueueRequest{Ref: *queueRef, StartIndex: *queueStart, Autoplay: *queueAutoplay}
	if err := c.call(ctx, http.MethodPost, "/api/queue", req, &resp); err != nil {
		return err
	}

	if resp.Title != "" {
		fmt.Printf("Playlist: %s (via %s)\n", resp.Title, resp.Source)
	}
	fmt.Printf("Queued %d tracks\n", resp.Accepted)
	codes := make([]string, 0, len(resp.Rejected))
	for code := range resp.Rejected {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		r := resp.Rejected[code]
		fmt.Printf("  Rejected [%s] x%d: %s\n", code, r.Count, r.Message)
	}
	if resp.Accepted == 0 {
		return fmt.Errorf("nothing playable in %s", *queueRef)
	}
	printState(&resp.State)
	return nil
}

func listQueue(ctx context.Context, c *client) error {
	var resp struct {
		Tracks []httpapi.TrackDTO `json:"tracks"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/queue", nil, &resp); err != nil {
		return err
	}
	state, err := c.state(ctx, http.MethodGet, "/api/state", nil)
	if err != nil {
		return err
	}
	if len(resp.Tracks) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}
	for i, t := range resp.Tracks {
		marker := "  "
		if i == state.Index {
			marker = "▶ "
		}
		fmt.Printf("%s%3d. %s\n", marker, i, trackLabel(&t))
	}
	return nil
}

func playTrack(ctx context.Context, c *client) error {
	if index, err := strconv.Atoi(*trackArg); err == nil {
		return showState(c.state(ctx, http.MethodPost, fmt.Sprintf("/api/track/%d", index), nil))
	}
	req := httpapi.TrackRequest{TrackDTO: httpapi.TrackDTO{URL: *trackArg, Title: *trackTitle}}
	return showState(c.state(ctx, http.MethodPost, "/api/track", req))
}

func listPlaylists(ctx context.Context, c *client) error {
	params := url.Values{}
	params.Set("page", strconv.Itoa(*playlistsPage))
	params.Set("page_size", strconv.Itoa(*playlistsSize))
	if *playlistsSearch != "" {
		params.Set("search", *playlistsSearch)
	}

	var page httpapi.PageDTO[httpapi.PlaylistDTO]
	if err := c.call(ctx, http.MethodGet, "/api/catalog/playlists?"+params.Encode(), nil, &page); err != nil {
		return err
	}
	fmt.Printf("Page %d/%d (%d playlists)\n", page.PageNumber, page.PagesCount, page.TotalCount)
	for _, p := range page.Items {
		fmt.Printf("  %-40s %s\n", p.Title, p.Ref)
	}
	return nil
}

func watch(ctx context.Context, c *client) error {
	conn, err := c.events(ctx, *watchTypes)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Println("Watching playback events. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var ev httpapi.EventDTO
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			fmt.Printf("Stream closed: %v\n", err)
			return nil
		}
		printEvent(&ev)
	}
}

func printEvent(ev *httpapi.EventDTO) {
	// time updates arrive several times a second; keep them on one line
	if ev.Type == "time_update" {
		fmt.Printf("\r  %s / %s", clock(ev.State.CurrentTime), length(ev.State.Duration))
		return
	}
	fmt.Printf("\n[Sequence: %d] === %s ===\n", ev.SequenceNo, strings.ToUpper(strings.ReplaceAll(ev.Type, "_", " ")))
	printState(&ev.State)
}

func printState(s *httpapi.StateDTO) {
	fmt.Printf("  Status: %s\n", formatStatus(s.Status))
	if s.Track != nil {
		fmt.Printf("  Track: %s\n", trackLabel(s.Track))
		if s.Track.Cover != "" {
			fmt.Printf("  Cover: %s\n", s.Track.Cover)
		}
	}
	if s.Index >= 0 {
		fmt.Printf("  Queue: %d/%d\n", s.Index+1, s.QueueLength)
	} else if s.QueueLength > 0 {
		fmt.Printf("  Queue: %d tracks\n", s.QueueLength)
	}
	fmt.Printf("  Position: %s / %s\n", clock(s.CurrentTime), length(s.Duration))
	fmt.Printf("  Volume: %.0f%%  Shuffle: %t  Repeat: %s\n", s.Volume*100, s.IsShuffle, s.RepeatMode)
	if s.Error != nil {
		fmt.Printf("  Error [%s/%s]: %s\n", s.Error.Kind, s.Error.CodeName, s.Error.Message)
	}
}

func formatStatus(status string) string {
	switch status {
	case "playing":
		return "▶️  Playing"
	case "paused":
		return "⏸  Paused"
	case "loading":
		return "⏳ Loading"
	case "errored":
		return "⚠️  Error"
	case "no_track":
		return "⏹  No track"
	default:
		return "❓ Unknown"
	}
}

func trackLabel(t *httpapi.TrackDTO) string {
	label := t.Title
	if label == "" {
		label = t.URL
	}
	if t.Artist != "" {
		label = t.Artist + " - " + label
	}
	return label
}

// clock formats seconds as m:ss.
func clock(seconds float64) string {
	d := time.Duration(max(seconds, 0) * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// length is clock for durations, where zero means unknown.
func length(seconds float64) string {
	if seconds <= 0 {
		return "--:--"
	}
	return clock(seconds)
}
