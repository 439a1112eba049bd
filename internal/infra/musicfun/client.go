// Package musicfun provides a client for the MusicFun catalog API.
package musicfun

import (
	"bytes"
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
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
)

// SourceName is stamped on tracks produced by this client.
const SourceName = "musicfun"

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://musicfun.it-incubator.app/api/1.0"

// pageLimit is the page size used when walking a whole collection.
const pageLimit = 50

var (
	// ErrUnauthorized is returned when the API rejects the credentials.
	ErrUnauthorized = errors.New("musicfun: unauthorized")
	// ErrNotFound is returned for unknown playlists or tracks.
	ErrNotFound = errors.New("musicfun: not found")
)

// Client is a MusicFun API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu      sync.Mutex
	tokens  oauth2.TokenSource // nil when anonymous
	refresh *refresher
}

// Config represents MusicFun client configuration.
type Config struct {
	BaseURL           string
	APIKey            string
	AccessToken       string
	RefreshToken      string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// New creates a new MusicFun client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("musicfun API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
	c.setTokens(Tokens{AccessToken: cfg.AccessToken, RefreshToken: cfg.RefreshToken})
	return c, nil
}

// OAuthURL returns the page a user opens to start the OAuth flow.
// The API redirects back to callback with a code for Login.
func (c *Client) OAuthURL(callback string) string {
	return c.baseURL + "/auth/oauth-redirect?callbackUrl=" + url.QueryEscape(callback)
}

// Login exchanges an OAuth code for tokens and authenticates the client with them.
func (c *Client) Login(ctx context.Context, args LoginArgs) (*Tokens, error) {
	if args.Code == "" {
		return nil, errors.New("oauth code is required")
	}
	if args.AccessTokenTTL == "" {
		args.AccessTokenTTL = "1d"
	}

	var tokens Tokens
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, args, &tokens, false); err != nil {
		return nil, errors.Wrap(err, "failed to login")
	}
	c.setTokens(tokens)
	zlog.Debug().Msg("musicfun: logged in")
	return &tokens, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}

	var tokens Tokens
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, body, &tokens, false); err != nil {
		return nil, errors.Wrap(err, "failed to refresh token")
	}
	return &tokens, nil
}

// FetchPlaylists returns one page of playlists matching q.
func (c *Client) FetchPlaylists(ctx context.Context, q playlist.Query) (*playlist.Page[playlist.Playlist], error) {
	var resp listResponse[playlistAttributes]
	if err := c.get(ctx, "/playlists", queryValues(q, true), &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch playlists")
	}

	items := make([]playlist.Playlist, len(resp.Data))
	for i, r := range resp.Data {
		items[i] = toPlaylist(r)
	}
	return toPage(resp.Meta, items), nil
}

// FetchTracks returns one page of playable tracks matching q, scoped to
// q.PlaylistID when set. Tracks without an audio attachment are left out.
func (c *Client) FetchTracks(ctx context.Context, q playlist.Query) (*playlist.Page[track.Track], error) {
	path := "/playlists/tracks"
	if q.PlaylistID != "" {
		path = "/playlists/" + url.PathEscape(q.PlaylistID) + "/tracks"
	}

	var resp listResponse[trackAttributes]
	if err := c.get(ctx, path, queryValues(q, false), &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch tracks")
	}
	return toPage(resp.Meta, playable(resp.Data)), nil
}

// FetchPlaylist retrieves a playlist together with its playable tracks.
func (c *Client) FetchPlaylist(ctx context.Context, id string) (*playlist.Playlist, error) {
	if id == "" {
		return nil, errors.New("playlist id is required")
	}

	var resp itemResponse[playlistAttributes]
	if err := c.get(ctx, "/playlists/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch playlist %s", id)
	}

	tracks, err := c.FetchPlaylistTracks(ctx, id)
	if err != nil {
		return nil, err
	}

	result := toPlaylist(resp.Data)
	result.Tracks = tracks
	return &result, nil
}

// FetchPlaylistTracks retrieves every playable track of a playlist in order.
func (c *Client) FetchPlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error) {
	if playlistID == "" {
		return nil, errors.New("playlist id is required")
	}

	var tracks []track.Track
	for page := 1; ; page++ {
		var resp listResponse[trackAttributes]
		params := queryValues(playlist.Query{PageNumber: page, PageSize: pageLimit}, false)
		if err := c.get(ctx, "/playlists/"+url.PathEscape(playlistID)+"/tracks", params, &resp); err != nil {
			return nil, errors.Wrapf(err, "failed to fetch tracks of playlist %s", playlistID)
		}
		tracks = append(tracks, playable(resp.Data)...)

		// Unpaged responses carry no meta.
		if resp.Meta.PagesCount == 0 || page >= resp.Meta.PagesCount || len(resp.Data) == 0 {
			break
		}
	}
	return tracks, nil
}

func playable(data []resource[trackAttributes]) []track.Track {
	tracks := make([]track.Track, 0, len(data))
	for _, r := range data {
		t, ok := toTrack(r)
		if !ok {
			zlog.Debug().Msgf("musicfun: skipping track %s without attachment", r.ID)
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks
}

// queryValues encodes q the way the list endpoints expect.
// trackId is only understood by the playlists endpoint.
func queryValues(q playlist.Query, withTrackID bool) url.Values {
	v := url.Values{}
	if q.PageNumber > 0 {
		v.Set("pageNumber", strconv.Itoa(q.PageNumber))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortDirection != "" {
		v.Set("sortDirection", string(q.SortDirection))
	}
	if q.UserID != "" {
		v.Set("userId", q.UserID)
	}
	if withTrackID && q.TrackID != "" {
		v.Set("trackId", q.TrackID)
	}
	for _, id := range q.TagIDs {
		v.Add("tagsIds", id)
	}
	return v
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	err := c.do(ctx, http.MethodGet, path, params, nil, out, true)
	if errors.Is(err, ErrUnauthorized) && c.forceRefresh() {
		zlog.Debug().Msg("musicfun: access token rejected, retrying with refreshed token")
		err = c.do(ctx, http.MethodGet, path, params, nil, out, true)
	}
	return err
}

// do performs one rate-limited request. The bearer token is attached when
// authed is set and the client holds tokens.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any, authed bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if src := c.tokenSource(); src != nil {
			tok, err := src.Token()
			if err != nil {
				return errors.Wrap(err, "failed to obtain access token")
			}
			tok.SetAuthHeader(req)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "%s %s", method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.Newf("musicfun API returned status %d: %s", resp.StatusCode, apiMessage(data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// apiMessage extracts the message of an error body, falling back to the raw text.
func apiMessage(data []byte) string {
	var body struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		switch m := body.Message.(type) {
		case string:
			if m != "" {
				return m
			}
		case []any:
			parts := make([]string, 0, len(m))
			for _, p := range m {
				if s, ok := p.(string); ok {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
		if body.Error != "" {
			return body.Error
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
