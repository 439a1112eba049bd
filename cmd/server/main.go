// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/musikbox/internal/api/httpapi"
	"github.com/osa030/musikbox/internal/app/filter"
	"github.com/osa030/musikbox/internal/app/notification"
	"github.com/osa030/musikbox/internal/app/playback"
	"github.com/osa030/musikbox/internal/app/source"
	"github.com/osa030/musikbox/internal/domain/track"
	"github.com/osa030/musikbox/internal/infra/audio"
	"github.com/osa030/musikbox/internal/infra/config"
	"github.com/osa030/musikbox/internal/infra/lastfm"
	"github.com/osa030/musikbox/internal/infra/logger"
	"github.com/osa030/musikbox/internal/infra/musicfun"
	"github.com/osa030/musikbox/internal/infra/spotify"
)

var (
	app        = kingpin.New("musikbox-server", "musikbox playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
	listSourcesCmd = app.Command("list-sources", "List configured sources and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == listSourcesCmd.FullCommand() {
		printSources(cfg)
		return
	}

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	warnUnknownFilters(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clients, catalog, err := newClients(ctx, cfg)
	if err != nil {
		return err
	}

	sources, err := source.NewChainFromConfig(cfg, clients)
	if err != nil {
		return errors.Wrap(err, "failed to create sources")
	}
	for _, s := range sources.Sources() {
		if fs, ok := s.(*source.FileSource); ok {
			fs.OnChange(func(path string) {
				zlog.Info().Msgf("Playlist file changed: %s", path)
			})
			go func() {
				if err := fs.Watch(ctx); err != nil {
					zlog.Warn().Msgf("File source %s stopped watching: %v", fs.Name(), err)
				}
			}()
		}
	}

	resource := audio.New(audio.Config{
		SampleRate:   cfg.Audio.SampleRate,
		BufferSize:   cfg.Audio.Buffer(),
		TickInterval: cfg.Audio.TickInterval(),
		LoadTimeout:  cfg.Audio.LoadTimeout(),
		MaxBytes:     cfg.Audio.MaxBytes(),
	})
	engine := playback.New(resource, playback.Config{
		InitialVolume:    cfg.Player.InitialVolume,
		RestartThreshold: cfg.Player.RestartThreshold(),
		EventBuffer:      cfg.Player.EventBuffer,
	})

	events := notification.NewManager()
	var handlers []notification.Handler
	if cfg.Player.Notify {
		handlers = append(handlers, notification.NewNowPlaying())
	}
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		notification.Relay(ctx, engine, events, handlers...)
	}()

	if ref := cfg.Player.StartupQueue; ref != "" {
		if err := loadStartupQueue(ctx, sources, engine, ref); err != nil {
			zlog.Warn().Msgf("Startup queue not loaded: %v", err)
		}
	}

	apiConfig := httpapi.Config{
		Token:    cfg.Server.Token,
		Messages: cfg,
	}
	if catalog != nil {
		apiConfig.Catalog = catalog
	}
	if dt := cfg.Player.DefaultTrack; dt.URL != "" {
		apiConfig.DefaultTrack = &track.Track{URL: dt.URL, Title: dt.Title, Artist: dt.Artist, Cover: dt.Cover}
	}
	api := httpapi.New(engine, sources, events, apiConfig)

	serverAddr := cfg.Server.Addr
	// h2c lets HTTP/2 clients talk to the API without TLS.
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           h2c.NewHandler(api.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", serverAddr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Closing the engine ends the relay and every event stream.
	if err := engine.Close(); err != nil {
		zlog.Error().Msgf("Failed to close engine: %v", err)
	}
	cancel()
	<-relayDone
	events.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// newClients builds the catalog clients the configured sources need.
// Only configured clients are set, so the source factory sees nil interfaces
// for the rest.
func newClients(ctx context.Context, cfg *config.Config) (source.Clients, *musicfun.Client, error) {
	var clients source.Clients
	var catalog *musicfun.Client

	if cfg.MusicFun.APIKey != "" {
		c, err := musicfun.New(musicfun.Config{
			BaseURL:           cfg.MusicFun.BaseURL,
			APIKey:            cfg.MusicFun.APIKey,
			AccessToken:       cfg.MusicFun.AccessToken,
			RefreshToken:      cfg.MusicFun.RefreshToken,
			RequestsPerSecond: cfg.MusicFun.RequestsPerSecond,
			Timeout:           cfg.MusicFun.Timeout(),
		})
		if err != nil {
			return clients, nil, errors.Wrap(err, "failed to create MusicFun client")
		}
		zlog.Info().Msgf("MusicFun catalog enabled (authenticated=%t)", c.Authenticated())
		clients.MusicFun = c
		catalog = c
	}

	if cfg.HasSource(config.SourceSpotify) {
		c, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return clients, nil, errors.Wrap(err, "failed to create Spotify client")
		}
		clients.Spotify = c
	}

	if cfg.LastFM.APIKey != "" {
		c, err := lastfm.New(lastfm.Config{APIKey: cfg.LastFM.APIKey, CacheSize: cfg.LastFM.CacheSize})
		if err != nil {
			return clients, nil, errors.Wrap(err, "failed to create Last.fm client")
		}
		zlog.Info().Msg("Last.fm cover enrichment enabled")
		clients.Covers = c
	}

	return clients, catalog, nil
}

// loadStartupQueue resolves ref and queues it paused. Sources are usually
// remote, so transient failures are retried with backoff.
func loadStartupQueue(ctx context.Context, sources *source.Chain, engine *playback.Engine, ref string) error {
	maxRetries := 5
	baseDelay := 1 * time.Second

	zlog.Info().Msgf("Loading startup queue: ref=%s", ref)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying startup queue in %v...", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := sources.Resolve(ctx, ref)
		if errors.Is(err, source.ErrUnsupportedRef) {
			return err
		}
		if err != nil {
			lastErr = err
			zlog.Warn().Msgf("Failed to resolve startup queue (attempt %d/%d): %v", i+1, maxRetries, err)
			continue
		}
		if len(result.Playlist.Tracks) == 0 {
			return errors.Newf("%s has no playable tracks", ref)
		}

		engine.LoadQueue(result.Playlist.Tracks, 0, false)
		zlog.Info().Msgf("Startup queue loaded from %s: %d tracks", result.Source, len(result.Playlist.Tracks))
		return nil
	}
	return errors.Wrapf(lastErr, "failed after %d attempts", maxRetries)
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, name := range filter.Names() {
		f := filter.GetRegistered()[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// printSources prints the configured sources in resolution order.
func printSources(cfg *config.Config) {
	fmt.Println("Configured Sources:")
	for i, s := range cfg.Sources {
		fmt.Printf("  %d. %-20s type=%s\n", i+1, s.Name, s.Type)
	}
	enabled := lo.Filter(filter.Names(), func(name string, _ int) bool {
		return cfg.IsFilterEnabled(name)
	})
	if len(enabled) > 0 {
		fmt.Printf("Enabled filters: %s\n", strings.Join(enabled, ", "))
	}
}

// warnUnknownFilters logs configured filters that are not registered.
func warnUnknownFilters(cfg *config.Config) {
	registry := filter.GetRegistered()
	for _, name := range lo.Keys(cfg.Filters) {
		if _, ok := registry[name]; !ok {
			zlog.Warn().Msgf("Unknown filter in config: %s", name)
		}
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
