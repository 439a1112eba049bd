package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
)

// FileSourceName is stamped on tracks read from playlist files.
const FileSourceName = "file"

// FileSourceConfig is the settings block of a file source.
type FileSourceConfig struct {
	Dir   string `mapstructure:"dir" default:"."` // Base directory for relative refs
	Watch bool   `mapstructure:"watch"`           // Cache parsed files and reload them on change
}

// FileSource reads playlists from YAML files.
//
// References are file:<path> or any path ending in .yaml/.yml. A file holds a
// playlist document:
//
//	title: Evening
//	tracks:
//	  - url: music/one.mp3
//	    title: One
//	    artist: Someone
//	    duration: 3m20s
//
// Relative track URLs are resolved against the playlist file's directory.
type FileSource struct {
	name   string
	config FileSourceConfig

	mu        sync.Mutex
	cache     map[string]*playlist.Playlist
	listeners []func(path string)
}

// NewFileSource creates a new FileSource.
func NewFileSource(name string, settings map[string]any) (*FileSource, error) {
	var config FileSourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(config.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid dir %q", config.Dir)
	}
	config.Dir = dir

	return &FileSource{
		name:   name,
		config: config,
		cache:  make(map[string]*playlist.Playlist),
	}, nil
}

func (s *FileSource) Name() string { return s.name }

func (s *FileSource) Type() string { return FileSourceName }

func (s *FileSource) Supports(ref string) bool {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "file:") {
		return true
	}
	if strings.Contains(ref, "://") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ref))
	return ext == ".yaml" || ext == ".yml"
}

func (s *FileSource) Resolve(ctx context.Context, ref string) (*playlist.Playlist, error) {
	path := s.path(ref)

	s.mu.Lock()
	cached, ok := s.cache[path]
	s.mu.Unlock()
	if ok {
		zlog.Debug().Msgf("file source: using cached playlist %s", path)
		return clonePlaylist(cached), nil
	}

	pl, err := readPlaylist(path)
	if err != nil {
		return nil, err
	}

	if s.config.Watch {
		s.mu.Lock()
		s.cache[path] = pl
		s.mu.Unlock()
	}
	return clonePlaylist(pl), nil
}

// OnChange registers fn to be called with the path of every changed playlist file.
func (s *FileSource) OnChange(fn func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Watch watches the base directory until ctx is done, dropping cached
// playlists whose files change. It returns immediately when watching is off.
func (s *FileSource) Watch(ctx context.Context) error {
	if !s.config.Watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.config.Dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", s.config.Dir)
	}
	zlog.Info().Msgf("file source: watching %s", s.config.Dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 || !s.Supports(event.Name) {
				continue
			}
			s.invalidate(filepath.Clean(event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Msgf("file source: watch error: %v", err)
		}
	}
}

func (s *FileSource) invalidate(path string) {
	s.mu.Lock()
	delete(s.cache, path)
	listeners := append([]func(string){}, s.listeners...)
	s.mu.Unlock()

	zlog.Info().Msgf("file source: playlist changed: %s", path)
	for _, fn := range listeners {
		fn(path)
	}
}

// path maps a ref to an absolute file path.
func (s *FileSource) path(ref string) string {
	p := strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(p, "file:"); ok {
		p = strings.TrimPrefix(rest, "//")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.config.Dir, p)
	}
	return filepath.Clean(p)
}

func readPlaylist(path string) (*playlist.Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read playlist file %s", path)
	}

	var pl playlist.Playlist
	if err := yaml.Unmarshal(data, &pl); err != nil {
		return nil, errors.Wrapf(err, "failed to parse playlist file %s", path)
	}

	if pl.ID == "" {
		pl.ID = path
	}
	if pl.Title == "" {
		pl.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	dir := filepath.Dir(path)
	for i := range pl.Tracks {
		t := &pl.Tracks[i]
		t.URL = resolveLocator(dir, strings.TrimSpace(t.URL))
		if t.Cover != "" {
			t.Cover = resolveLocator(dir, t.Cover)
		}
		t.Source = FileSourceName
	}
	return &pl, nil
}

// resolveLocator makes a relative path absolute against dir; URLs pass through.
func resolveLocator(dir, locator string) string {
	if locator == "" || strings.Contains(locator, "://") || strings.HasPrefix(locator, "file:") || filepath.IsAbs(locator) {
		return locator
	}
	return filepath.Join(dir, locator)
}

func clonePlaylist(pl *playlist.Playlist) *playlist.Playlist {
	c := *pl
	c.Tracks = append([]track.Track(nil), pl.Tracks...)
	return &c
}
