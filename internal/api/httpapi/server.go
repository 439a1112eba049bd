// Package httpapi provides the HTTP control surface of the player.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/osa030/musikbox/internal/app/filter"
	"github.com/osa030/musikbox/internal/app/notification"
	"github.com/osa030/musikbox/internal/app/playback"
	"github.com/osa030/musikbox/internal/app/source"
	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
)

// Player is the subset of the playback engine the API drives.
type Player interface {
	LoadQueue(tracks []track.Track, startIndex int, autoplay bool)
	SetTrackByIndex(index int, autoplay bool)
	SetTrack(t track.Track, autoplay bool)
	Play()
	Pause()
	TogglePlayPause()
	Seek(pos time.Duration)
	SetVolume(v float64)
	Next()
	Prev()
	ToggleShuffle()
	SetShuffle(on bool)
	CycleRepeatMode()
	SetRepeatMode(m playback.RepeatMode)
	ClearError()
	Destroy()
	State() playback.State
	Queue() []track.Track
}

// Resolver turns references and ad-hoc tracks into admitted tracks.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*source.Result, error)
	Admit(ctx context.Context, t track.Track, queue []track.Track) (track.Track, filter.Result)
}

// Catalog browses the remote catalog.
type Catalog interface {
	FetchPlaylists(ctx context.Context, q playlist.Query) (*playlist.Page[playlist.Playlist], error)
	FetchTracks(ctx context.Context, q playlist.Query) (*playlist.Page[track.Track], error)
}

// Messages maps rejection codes to user-facing text.
type Messages interface {
	GetMessage(code string) string
}

// Config holds the optional parts of the API.
type Config struct {
	Token        string       // Bearer token; empty disables auth
	DefaultTrack *track.Track // Started by toggle when nothing is loaded
	Catalog      Catalog      // nil disables the catalog routes
	Messages     Messages
}

// Server serves the control API.
type Server struct {
	player   Player
	resolver Resolver
	events   *notification.Manager
	config   Config
	validate *validator.Validate
}

// New creates the API server.
func New(player Player, resolver Resolver, events *notification.Manager, config Config) *Server {
	return &Server{
		player:   player,
		resolver: resolver,
		events:   events,
		config:   config,
		validate: validator.New(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(requestID, logRequests)
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// Subrouters answer mismatches themselves.
	api := router.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = router.NotFoundHandler
	api.MethodNotAllowedHandler = router.MethodNotAllowedHandler
	api.Use(bearerAuth(s.config.Token))

	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.handleGetQueue).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.handleLoadQueue).Methods(http.MethodPost)
	api.HandleFunc("/track", s.handleSetTrack).Methods(http.MethodPost)
	api.HandleFunc("/track/{index:[0-9]+}", s.handleSetTrackByIndex).Methods(http.MethodPost)

	api.HandleFunc("/play", s.command(s.player.Play)).Methods(http.MethodPost)
	api.HandleFunc("/pause", s.command(s.player.Pause)).Methods(http.MethodPost)
	api.HandleFunc("/toggle", s.handleToggle).Methods(http.MethodPost)
	api.HandleFunc("/next", s.command(s.player.Next)).Methods(http.MethodPost)
	api.HandleFunc("/prev", s.command(s.player.Prev)).Methods(http.MethodPost)
	api.HandleFunc("/seek", s.handleSeek).Methods(http.MethodPost)
	api.HandleFunc("/volume", s.handleVolume).Methods(http.MethodPost)
	api.HandleFunc("/shuffle", s.handleShuffle).Methods(http.MethodPost)
	api.HandleFunc("/repeat", s.handleRepeat).Methods(http.MethodPost)
	api.HandleFunc("/clear-error", s.command(s.player.ClearError)).Methods(http.MethodPost)
	api.HandleFunc("/destroy", s.command(s.player.Destroy)).Methods(http.MethodPost)

	api.HandleFunc("/catalog/playlists", s.handleCatalogPlaylists).Methods(http.MethodGet)
	api.HandleFunc("/catalog/tracks", s.handleCatalogTracks).Methods(http.MethodGet)

	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	return router
}
