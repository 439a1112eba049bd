package source

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/app/filter"
	"github.com/osa030/musikbox/internal/infra/config"
)

// Clients holds the catalog clients sources are built on. Nil clients are
// only an error when a configured source needs them.
type Clients struct {
	MusicFun MusicFunClient
	Spotify  SpotifyClient
	Covers   CoverLookup
}

// NewChainFromConfig creates a source chain from configuration.
func NewChainFromConfig(cfg *config.Config, clients Clients) (*Chain, error) {
	if len(cfg.Sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	var sources []Source
	for i, scfg := range cfg.Sources {
		var s Source
		var err error
		zlog.Debug().Msgf("creating source: index=%d type=%s settings=%+v", i+1, scfg.Type, scfg.Settings)
		switch scfg.Type {
		case config.SourceMusicFun:
			s, err = NewMusicFunSource(scfg.Name, clients.MusicFun, scfg.Settings)

		case config.SourceSpotify:
			s, err = NewSpotifySource(scfg.Name, clients.Spotify, scfg.Settings)

		case config.SourceFile:
			s, err = NewFileSource(scfg.Name, scfg.Settings)

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, scfg.Type)
		}

		sources = append(sources, s)
		zlog.Info().Msgf("registered source: index=%d type=%s name=%s", i+1, scfg.Type, scfg.Name)
	}

	filters, err := filter.NewChainFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	opts := []ChainOption{WithFilters(filters)}
	if clients.Covers != nil {
		opts = append(opts, WithCovers(clients.Covers))
	}
	return NewChain(sources, opts...), nil
}
