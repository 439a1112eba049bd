// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Source types.
const (
	SourceMusicFun = "musicfun"
	SourceSpotify  = "spotify"
	SourceFile     = "file"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Player   PlayerConfig            `yaml:"player"`
	Audio    AudioConfig             `yaml:"audio"`
	Sources  []SourceConfig          `yaml:"sources" validate:"required,min=1,dive"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Messages MessagesConfig          `yaml:"messages"`
	MusicFun MusicFunConfig          `yaml:"musicfun"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
	LastFM   LastFMConfig            `yaml:"lastfm"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Token string      `yaml:"token"` // Bearer token for the control API; empty disables auth
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// PlayerConfig represents playback engine configuration.
type PlayerConfig struct {
	InitialVolume      float64            `yaml:"initial_volume" default:"0.7" validate:"gte=0,lte=1"`
	RestartThresholdMs int                `yaml:"restart_threshold_ms" default:"3000" validate:"gte=0"`
	EventBuffer        int                `yaml:"event_buffer" default:"16" validate:"gte=1"`
	Notify             bool               `yaml:"notify"`
	StartupQueue       string             `yaml:"startup_queue"` // Source ref queued (paused) at startup
	DefaultTrack       DefaultTrackConfig `yaml:"default_track"`
}

// DefaultTrackConfig is the track toggle starts when nothing is loaded.
type DefaultTrackConfig struct {
	URL    string `yaml:"url"`
	Title  string `yaml:"title"`
	Artist string `yaml:"artist"`
	Cover  string `yaml:"cover"`
}

// AudioConfig represents audio output configuration.
type AudioConfig struct {
	SampleRate     int `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs       int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	TickIntervalMs int `yaml:"tick_interval_ms" default:"250" validate:"gte=10,lte=5000"`
	LoadTimeoutSec int `yaml:"load_timeout_sec" default:"30" validate:"gte=1"`
	MaxMegabytes   int `yaml:"max_megabytes" default:"64" validate:"gte=1"`
}

// SourceConfig represents a single track source configuration.
type SourceConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=musicfun spotify file"`
	Name     string         `yaml:"name" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages for filter results.
type MessagesConfig struct {
	Success               string `yaml:"success" default:"Queued"`
	DefaultError          string `yaml:"default_error" default:"Track rejected"`
	NotPlayable           string `yaml:"not_playable" default:"Track has no playable media"`
	DuplicateTrack        string `yaml:"duplicate_track" default:"Track is already queued"`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"Track length is outside the allowed range"`
}

// MusicFunConfig represents the MusicFun catalog API configuration.
type MusicFunConfig struct {
	BaseURL           string  `yaml:"base_url" default:"https://musicfun.it-incubator.app/api/1.0" validate:"url"`
	APIKey            string  `yaml:"api_key"`
	AccessToken       string  `yaml:"access_token"`
	RefreshToken      string  `yaml:"refresh_token"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"5" validate:"gt=0"`
	TimeoutSec        int     `yaml:"timeout_sec" default:"10" validate:"gte=1"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// LastFMConfig represents Last.fm cover enrichment configuration.
// Enrichment is enabled when APIKey is set.
type LastFMConfig struct {
	APIKey    string `yaml:"api_key"`
	CacheSize int    `yaml:"cache_size" default:"512" validate:"gte=0"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML content.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	// Defaults go first so explicit zero values in the file survive.
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"MUSIKBOX_TOKEN", &c.Server.Token},
		{"MUSICFUN_API_KEY", &c.MusicFun.APIKey},
		{"MUSICFUN_ACCESS_TOKEN", &c.MusicFun.AccessToken},
		{"MUSICFUN_REFRESH_TOKEN", &c.MusicFun.RefreshToken},
		{"SPOTIFY_CLIENT_ID", &c.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret},
		{"SPOTIFY_REFRESH_TOKEN", &c.Spotify.RefreshToken},
		{"LASTFM_API_KEY", &c.LastFM.APIKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.target = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateCredentials(); err != nil {
		return err
	}

	return nil
}

// validateCredentials checks that every configured source type has the
// credentials it needs.
func (c *Config) validateCredentials() error {
	if c.HasSource(SourceMusicFun) && c.MusicFun.APIKey == "" {
		return errors.New("musicfun.api_key is required when a musicfun source is configured")
	}
	if c.HasSource(SourceSpotify) {
		if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
			return errors.New("spotify.client_id, client_secret and refresh_token are required when a spotify source is configured")
		}
	}
	return nil
}

// HasSource reports whether a source of the given type is configured.
func (c *Config) HasSource(sourceType string) bool {
	for _, s := range c.Sources {
		if s.Type == sourceType {
			return true
		}
	}
	return false
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "not_playable":
		return c.Messages.NotPlayable
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	default:
		return c.Messages.DefaultError
	}
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}

// RestartThreshold returns the position after which prev restarts the current track.
func (p PlayerConfig) RestartThreshold() time.Duration {
	return time.Duration(p.RestartThresholdMs) * time.Millisecond
}

// Buffer returns the speaker buffer length.
func (a AudioConfig) Buffer() time.Duration {
	return time.Duration(a.BufferMs) * time.Millisecond
}

// TickInterval returns the time-update interval.
func (a AudioConfig) TickInterval() time.Duration {
	return time.Duration(a.TickIntervalMs) * time.Millisecond
}

// LoadTimeout returns the per-track load timeout.
func (a AudioConfig) LoadTimeout() time.Duration {
	return time.Duration(a.LoadTimeoutSec) * time.Second
}

// MaxBytes returns the largest accepted media payload.
func (a AudioConfig) MaxBytes() int64 {
	return int64(a.MaxMegabytes) << 20
}

// Timeout returns the HTTP timeout for catalog requests.
func (m MusicFunConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSec) * time.Second
}
