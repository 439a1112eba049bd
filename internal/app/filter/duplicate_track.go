package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/osa030/musikbox/internal/domain/track"
)

// DuplicateTrackConfig represents the configuration for DuplicateTrackFilter.
type DuplicateTrackConfig struct {
	// IgnoreVersions turns remaster/live/edit detection off, leaving exact URL matches only.
	IgnoreVersions bool `yaml:"ignore_versions" mapstructure:"ignore_versions"`
}

// DuplicateTrackFilter admits each track once per queue.
// Detects:
// - Exact media URL matches
// - Other versions (normalized title + same main artist)
// Excludes:
// - Cover songs (same title but different artist)
type DuplicateTrackFilter struct {
	config DuplicateTrackConfig
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already in the queue, including remasters and alternate versions. Covers by other artists are allowed"
}

func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{CodeDuplicateTrack}
}

func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	var config DuplicateTrackConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = config
	return nil
}

func (f *DuplicateTrackFilter) Check(ctx context.Context, requested track.Track, admitted []track.Track) Result {
	duplicate := lo.ContainsBy(admitted, func(queued track.Track) bool {
		if queued.URL == requested.URL {
			return true
		}
		return !f.config.IgnoreVersions && isOtherVersion(queued, requested)
	})
	if duplicate {
		return Reject(CodeDuplicateTrack)
	}
	return Accept()
}

// isOtherVersion checks if two tracks are the same song (remaster/different version).
func isOtherVersion(track1, track2 track.Track) bool {
	name1 := normalizeTrackName(track1.Title)
	if name1 == "" || name1 != normalizeTrackName(track2.Title) {
		return false
	}

	// Same normalized name - a different artist means a cover
	return isSameArtist(track1, track2)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}

	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*live`),             // "- Live"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}

	whitespace = regexp.MustCompile(`\s+`)
)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = whitespace.ReplaceAllString(normalized, " ")

	return strings.TrimRight(normalized, " -")
}

// isSameArtist compares the main (first listed) artists, case-insensitively.
func isSameArtist(track1, track2 track.Track) bool {
	a1, a2 := mainArtist(track1.Artist), mainArtist(track2.Artist)
	if a1 == "" || a2 == "" {
		return false
	}
	return strings.EqualFold(a1, a2)
}

func mainArtist(artist string) string {
	main, _, _ := strings.Cut(artist, ",")
	return strings.TrimSpace(main)
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
