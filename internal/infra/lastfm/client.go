// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotFound is returned when Last.fm has no entry for the requested track.
var ErrNotFound = errors.New("track not found on last.fm")

// Last.fm error code for unknown tracks.
const errCodeTrackNotFound = 6

// Image sizes in descending order of preference.
var imageSizes = []string{"mega", "extralarge", "large", "medium", "small"}

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Bounded cache of track info, including misses.
	cache     map[string]*TrackInfo
	cacheKeys []string
	cacheSize int
	cacheMu   sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey    string
	CacheSize int // Entries kept; 0 disables caching
}

// TrackInfo is the subset of track.getInfo the player uses.
type TrackInfo struct {
	Name     string
	Artist   string
	Album    string
	Cover    string // Largest album image, empty when none
	Duration time.Duration
	Tags     []string
}

// getInfoResponse represents the response from track.getInfo API.
type getInfoResponse struct {
	Track struct {
		Name     string `json:"name"`
		Duration string `json:"duration"` // milliseconds
		Artist   struct {
			Name string `json:"name"`
		} `json:"artist"`
		Album struct {
			Title string  `json:"title"`
			Image []image `json:"image"`
		} `json:"album"`
		TopTags struct {
			Tag []struct {
				Name string `json:"name"`
			} `json:"tag"`
		} `json:"toptags"`
	} `json:"track"`
}

type image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

// apiError represents an error response from Last.fm API.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    "https://ws.audioscrobbler.com/2.0/",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string]*TrackInfo),
		cacheSize:  max(0, cfg.CacheSize),
	}, nil
}

// GetTrackInfo retrieves metadata and album art for a track.
// Reference: https://www.last.fm/api/show/track.getInfo
func (c *Client) GetTrackInfo(ctx context.Context, trackName, artistName string) (*TrackInfo, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}

	cacheKey := strings.ToLower(artistName + "\x00" + trackName)
	c.cacheMu.RLock()
	if info, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("lastfm: using cached info for track: %s - %s", artistName, trackName)
		if info == nil {
			return nil, ErrNotFound
		}
		return info, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("method", "track.getInfo")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("autocorrect", "1")

	var response getInfoResponse
	err := c.call(ctx, params, &response)
	if errors.Is(err, ErrNotFound) {
		c.store(cacheKey, nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	info := &TrackInfo{
		Name:   response.Track.Name,
		Artist: response.Track.Artist.Name,
		Album:  response.Track.Album.Title,
		Cover:  pickImage(response.Track.Album.Image),
	}
	if ms, err := strconv.Atoi(response.Track.Duration); err == nil && ms > 0 {
		info.Duration = time.Duration(ms) * time.Millisecond
	}
	for _, tag := range response.Track.TopTags.Tag {
		info.Tags = append(info.Tags, tag.Name)
	}

	c.store(cacheKey, info)
	zlog.Debug().Msgf("lastfm: cached info for track: %s - %s (cover: %v)", artistName, trackName, info.Cover != "")
	return info, nil
}

// call performs a GET request and decodes the JSON body into out.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	// Last.fm reports API errors in the body, sometimes with a 200 status.
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		if apiErr.Error == errCodeTrackNotFound {
			return ErrNotFound
		}
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// store caches info under key, evicting the oldest entry when full.
func (c *Client) store(key string, info *TrackInfo) {
	if c.cacheSize == 0 {
		return
	}

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if _, ok := c.cache[key]; !ok {
		if len(c.cacheKeys) >= c.cacheSize {
			oldest := c.cacheKeys[0]
			c.cacheKeys = c.cacheKeys[1:]
			delete(c.cache, oldest)
		}
		c.cacheKeys = append(c.cacheKeys, key)
	}
	c.cache[key] = info
}

// pickImage returns the largest non-empty image URL.
func pickImage(images []image) string {
	bySize := make(map[string]string, len(images))
	for _, img := range images {
		if img.URL != "" {
			bySize[img.Size] = img.URL
		}
	}
	for _, size := range imageSizes {
		if u, ok := bySize[size]; ok {
			return u
		}
	}
	for _, img := range images {
		if img.URL != "" {
			return img.URL
		}
	}
	return ""
}
