package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musikbox/internal/infra/config"
)

func TestNewChainFromConfig(t *testing.T) {
	cfg := &config.Config{
		Sources: []config.SourceConfig{
			{Type: config.SourceMusicFun, Name: "catalog", Settings: map[string]any{"page_size": 10}},
			{Type: config.SourceSpotify, Name: "previews"},
			{Type: config.SourceFile, Name: "local", Settings: map[string]any{"dir": t.TempDir()}},
		},
		Filters: map[string]config.FilterConfig{
			"duplicate_track_filter": {Enabled: true},
		},
	}

	chain, err := NewChainFromConfig(cfg, Clients{
		MusicFun: &fakeMusicFun{},
		Spotify:  &fakeSpotify{},
		Covers:   &fakeCovers{},
	})
	require.NoError(t, err)

	names := make([]string, 0, 3)
	for _, s := range chain.Sources() {
		names = append(names, s.Name()+"/"+s.Type())
	}
	assert.Equal(t, []string{"catalog/musicfun", "previews/spotify", "local/file"}, names)
	assert.Len(t, chain.Filters().Filters(), 2)
	assert.NotNil(t, chain.covers)
}

func TestNewChainFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sources []config.SourceConfig
		filters map[string]config.FilterConfig
		clients Clients
		errMsg  string
	}{
		{
			name:   "no sources",
			errMsg: "no sources configured",
		},
		{
			name:    "unknown type",
			sources: []config.SourceConfig{{Type: "radio", Name: "r"}},
			errMsg:  "unsupported source type",
		},
		{
			name:    "missing client",
			sources: []config.SourceConfig{{Type: config.SourceSpotify, Name: "previews"}},
			errMsg:  "spotify client is required",
		},
		{
			name:    "bad filter settings",
			sources: []config.SourceConfig{{Type: config.SourceFile, Name: "local"}},
			filters: map[string]config.FilterConfig{
				"duration_limit_filter": {Enabled: true, Settings: map[string]any{"max": "-3m"}},
			},
			errMsg: "duration_limit_filter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Sources: tt.sources, Filters: tt.filters}
			_, err := NewChainFromConfig(cfg, tt.clients)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
