// Package playlist provides the Playlist domain entity and catalog paging types.
package playlist

import (
	"time"

	"github.com/osa030/musikbox/internal/domain/track"
)

// Playlist represents an ordered collection of tracks from a catalog.
type Playlist struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Cover       string        `yaml:"cover"`
	Tracks      []track.Track `yaml:"tracks"`
}

// URLs returns the media locators of all tracks in order.
func (p *Playlist) URLs() []string {
	urls := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		urls[i] = t.URL
	}
	return urls
}

// TotalDuration returns the summed known duration of all tracks.
// Tracks with unknown duration contribute nothing.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// SortDirection is the ordering of a catalog query.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Query holds the paging, search and sort arguments understood by catalogs.
// Zero values mean "not set" and are omitted from requests.
type Query struct {
	PageNumber    int
	PageSize      int
	Search        string
	SortBy        string // e.g. "addedAt", "likesCount"
	SortDirection SortDirection
	UserID        string
	TrackID       string
	PlaylistID    string
	TagIDs        []string
}

// Page is one page of a paginated catalog collection.
type Page[T any] struct {
	Items      []T
	PageNumber int
	PageSize   int
	TotalCount int
	PagesCount int
}

// HasNext reports whether another page follows this one.
func (p *Page[T]) HasNext() bool {
	return p.PageNumber < p.PagesCount
}
