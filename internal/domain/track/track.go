// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrMissingURL is returned when a track has no playable locator.
var ErrMissingURL = errors.New("track url is required")

// Track represents a playable media resource.
// Tracks are values: the player swaps the reference it holds, it never edits one.
type Track struct {
	ID       string        `yaml:"id"`       // Source-specific ID (optional)
	URL      string        `yaml:"url"`      // Playable media locator
	Title    string        `yaml:"title"`    // Display title
	Artist   string        `yaml:"artist"`   // Display artist
	Album    string        `yaml:"album"`    // Album name (optional)
	Cover    string        `yaml:"cover"`    // Cover image locator (optional)
	Duration time.Duration `yaml:"duration"` // Known length, 0 if unknown
	Source   string        `yaml:"-"`        // Name of the source that produced it
}

// HasDuration reports whether the track length is known up front.
func (t *Track) HasDuration() bool {
	return t.Duration > 0
}

// Label returns "Artist - Title", falling back to whichever part is set.
func (t *Track) Label() string {
	title := strings.TrimSpace(t.Title)
	artist := strings.TrimSpace(t.Artist)
	switch {
	case title != "" && artist != "":
		return artist + " - " + title
	case title != "":
		return title
	case artist != "":
		return artist
	default:
		return t.URL
	}
}

// Validate checks that the track can be handed to a media resource.
func (t *Track) Validate() error {
	if strings.TrimSpace(t.URL) == "" {
		return ErrMissingURL
	}
	return nil
}
