package musicfun

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// refresher is an oauth2.TokenSource that mints access tokens from the
// refresh endpoint. The API rotates refresh tokens, so the latest one is kept.
type refresher struct {
	client *Client

	mu           sync.Mutex
	refreshToken string
}

func (r *refresher) Token() (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.client.httpClient.Timeout)
	defer cancel()

	tokens, err := r.client.Refresh(ctx, r.refreshToken)
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken != "" {
		r.refreshToken = tokens.RefreshToken
	}
	zlog.Debug().Msg("musicfun: access token refreshed")
	return &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: r.refreshToken,
	}, nil
}

// setTokens replaces the credentials used for authenticated requests.
func (c *Client) setTokens(t Tokens) {
	var initial *oauth2.Token
	if t.AccessToken != "" {
		initial = &oauth2.Token{AccessToken: t.AccessToken, TokenType: "Bearer", RefreshToken: t.RefreshToken}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case t.RefreshToken != "":
		c.refresh = &refresher{client: c, refreshToken: t.RefreshToken}
		c.tokens = oauth2.ReuseTokenSource(initial, c.refresh)
	case initial != nil:
		c.refresh = nil
		c.tokens = oauth2.StaticTokenSource(initial)
	default:
		c.refresh = nil
		c.tokens = nil
	}
}

func (c *Client) tokenSource() oauth2.TokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// forceRefresh drops the cached access token. It reports false when there is
// no refresh token to mint a new one with.
func (c *Client) forceRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refresh == nil {
		return false
	}
	c.tokens = oauth2.ReuseTokenSource(nil, c.refresh)
	return true
}

// Authenticated reports whether requests carry a bearer token.
func (c *Client) Authenticated() bool {
	return c.tokenSource() != nil
}
