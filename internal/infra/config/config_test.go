package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
sources:
  - type: file
    name: Local
    settings:
      dir: ./playlists
`

func validConfig() Config {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		panic(err)
	}
	return *cfg
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 0.7, cfg.Player.InitialVolume)
	assert.Equal(t, 3*time.Second, cfg.Player.RestartThreshold())
	assert.Equal(t, 16, cfg.Player.EventBuffer)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 250*time.Millisecond, cfg.Audio.TickInterval())
	assert.Equal(t, 30*time.Second, cfg.Audio.LoadTimeout())
	assert.Equal(t, int64(64<<20), cfg.Audio.MaxBytes())
	assert.Equal(t, "https://musicfun.it-incubator.app/api/1.0", cfg.MusicFun.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.MusicFun.Timeout())
	assert.Equal(t, "JP", cfg.Spotify.Market)
	assert.Equal(t, "Track is already queued", cfg.GetMessage("duplicate_track"))
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "./playlists", cfg.Sources[0].Settings["dir"])
}

func TestParse_ExplicitZeroSurvivesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
player:
  initial_volume: 0
  restart_threshold_ms: 0
`))
	require.NoError(t, err)

	assert.Zero(t, cfg.Player.InitialVolume)
	assert.Zero(t, cfg.Player.RestartThreshold())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{name: "malformed yaml", yaml: "sources: [", errMsg: "failed to parse config file"},
		{name: "no sources", yaml: "server:\n  token: abc\n", errMsg: "Sources"},
		{name: "unknown source type", yaml: "sources:\n  - type: tape\n    name: Tape\n", errMsg: "Type"},
		{name: "volume out of range", yaml: minimalYAML + "player:\n  initial_volume: 1.5\n", errMsg: "InitialVolume"},
		{name: "negative restart threshold", yaml: minimalYAML + "player:\n  restart_threshold_ms: -1\n", errMsg: "RestartThresholdMs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Validate_Credentials(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "file source needs nothing",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "musicfun source without api key",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{Type: SourceMusicFun, Name: "MusicFun"})
			},
			wantErr: true,
			errMsg:  "musicfun.api_key",
		},
		{
			name: "musicfun source with api key",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{Type: SourceMusicFun, Name: "MusicFun"})
				c.MusicFun.APIKey = "key"
			},
			wantErr: false,
		},
		{
			name: "spotify source missing secret",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{Type: SourceSpotify, Name: "Spotify"})
				c.Spotify.ClientID = "id"
				c.Spotify.RefreshToken = "refresh"
			},
			wantErr: true,
			errMsg:  "spotify.client_id",
		},
		{
			name: "invalid market length",
			mutate: func(c *Config) {
				c.Spotify.Market = "JAPAN"
			},
			wantErr: true,
			errMsg:  "Market",
		},
		{
			name: "missing source name",
			mutate: func(c *Config) {
				c.Sources[0].Name = ""
			},
			wantErr: true,
			errMsg:  "Name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  token: from-file
sources:
  - type: musicfun
    name: MusicFun
musicfun:
  api_key: file-key
`), 0o644))

	t.Setenv("MUSIKBOX_TOKEN", "from-env")
	t.Setenv("MUSICFUN_API_KEY", "env-key")
	t.Setenv("LASTFM_API_KEY", "lastfm-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Server.Token)
	assert.Equal(t, "env-key", cfg.MusicFun.APIKey)
	assert.Equal(t, "lastfm-key", cfg.LastFM.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_Filters(t *testing.T) {
	cfg := validConfig()
	cfg.Filters = map[string]FilterConfig{
		"duration_limit_filter":  {Enabled: true, Settings: map[string]any{"max": "8m"}},
		"duplicate_track_filter": {Enabled: false},
	}

	assert.True(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown"))
	assert.Equal(t, "8m", cfg.GetFilterSettings("duration_limit_filter")["max"])
	assert.Nil(t, cfg.GetFilterSettings("unknown"))
}

func TestConfig_GetMessage(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, cfg.Messages.NotPlayable, cfg.GetMessage("not_playable"))
	assert.Equal(t, cfg.Messages.DurationLimitExceeded, cfg.GetMessage("duration_limit_exceeded"))
	assert.Equal(t, cfg.Messages.DefaultError, cfg.GetMessage("something_else"))
}
