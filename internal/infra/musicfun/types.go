package musicfun

import (
	"time"

	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
)

// Image types served in images.main.
const (
	imageOriginal  = "original"
	imageMedium    = "medium"
	imageThumbnail = "thumbnail"
)

// Cover preference: medium first, it is what a player card shows.
var coverOrder = []string{imageMedium, imageOriginal, imageThumbnail}

type listResponse[T any] struct {
	Data []resource[T] `json:"data"`
	Meta meta          `json:"meta"`
}

type itemResponse[T any] struct {
	Data resource[T] `json:"data"`
}

type resource[T any] struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes T      `json:"attributes"`
}

type meta struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	PagesCount int `json:"pagesCount"`
}

type images struct {
	Main []image `json:"main"`
}

type image struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type playlistAttributes struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AddedAt     time.Time `json:"addedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Order       int       `json:"order"`
	Tags        []tag     `json:"tags"`
	Images      images    `json:"images"`
	User        user      `json:"user"`
	LikesCount  int       `json:"likesCount"`
}

type attachment struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

type trackAttributes struct {
	Title       string       `json:"title"`
	Artist      string       `json:"artist"`
	Duration    float64      `json:"duration"` // seconds, 0 when unknown
	AddedAt     time.Time    `json:"addedAt"`
	Attachments []attachment `json:"attachments"`
	Images      images       `json:"images"`
	User        user         `json:"user"`
}

// Tokens is the token pair issued by the auth endpoints.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginArgs is the body of an OAuth code login.
type LoginArgs struct {
	Code           string `json:"code"`
	AccessTokenTTL string `json:"accessTokenTTL"` // e.g. "1d", "3m"
	RedirectURI    string `json:"redirectUri"`
	RememberMe     bool   `json:"rememberMe"`
}

func pickCover(imgs images) string {
	byType := make(map[string]string, len(imgs.Main))
	for _, img := range imgs.Main {
		if img.URL != "" {
			byType[img.Type] = img.URL
		}
	}
	for _, t := range coverOrder {
		if u, ok := byType[t]; ok {
			return u
		}
	}
	return ""
}

func toPlaylist(r resource[playlistAttributes]) playlist.Playlist {
	attrs := r.Attributes
	return playlist.Playlist{
		ID:          r.ID,
		Title:       attrs.Title,
		Description: attrs.Description,
		Cover:       pickCover(attrs.Images),
	}
}

// toTrack maps a track resource. It reports false when nothing is playable.
func toTrack(r resource[trackAttributes]) (track.Track, bool) {
	attrs := r.Attributes
	var src string
	for _, a := range attrs.Attachments {
		if a.URL != "" {
			src = a.URL
			break
		}
	}
	if src == "" {
		return track.Track{}, false
	}

	artist := attrs.Artist
	if artist == "" {
		artist = attrs.User.Name
	}
	return track.Track{
		ID:       r.ID,
		URL:      src,
		Title:    attrs.Title,
		Artist:   artist,
		Cover:    pickCover(attrs.Images),
		Duration: time.Duration(attrs.Duration * float64(time.Second)),
		Source:   SourceName,
	}, true
}

func toPage[T any](m meta, items []T) *playlist.Page[T] {
	return &playlist.Page[T]{
		Items:      items,
		PageNumber: m.Page,
		PageSize:   m.PageSize,
		TotalCount: m.TotalCount,
		PagesCount: m.PagesCount,
	}
}
