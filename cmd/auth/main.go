// Package main provides the catalog authentication tool.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/osa030/musikbox/internal/infra/logger"
	"github.com/osa030/musikbox/internal/infra/musicfun"
)

var (
	app  = kingpin.New("musikbox-auth", "Catalog authentication tool for musikbox")
	port = app.Flag("port", "Callback server port").Default("8888").Int()

	spotifyCmd   = app.Command("spotify", "Obtain a Spotify refresh token")
	clientID     = spotifyCmd.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = spotifyCmd.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()

	musicfunCmd = app.Command("musicfun", "Obtain MusicFun access and refresh tokens")
	apiKey      = musicfunCmd.Flag("api-key", "MusicFun API key").Envar("MUSICFUN_API_KEY").Required().String()
	baseURL     = musicfunCmd.Flag("base-url", "MusicFun API root").Default(musicfun.DefaultBaseURL).String()
	tokenTTL    = musicfunCmd.Flag("ttl", "Access token lifetime, e.g. 1d or 3m").Default("1d").String()
)

// callbackResult is what the browser redirect delivered.
type callbackResult struct {
	code string
	err  error
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if _, err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// A random path segment keeps stray requests from completing the flow.
	nonce := uuid.New().String()
	callbackPath := "/callback/" + nonce
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d%s", *port, callbackPath)

	var authURL string
	var spotify *spotifyauth.Authenticator
	switch command {
	case spotifyCmd.FullCommand():
		spotify = spotifyauth.New(
			spotifyauth.WithRedirectURL(redirectURI),
			spotifyauth.WithClientID(*clientID),
			spotifyauth.WithClientSecret(*clientSecret),
			spotifyauth.WithScopes(
				spotifyauth.ScopePlaylistReadPrivate,
				spotifyauth.ScopePlaylistReadCollaborative,
			),
		)
		authURL = spotify.AuthURL(nonce)
	case musicfunCmd.FullCommand():
		client, err := newMusicFunClient()
		if err != nil {
			zlog.Fatal().Msgf("Failed to create MusicFun client: %v", err)
		}
		authURL = client.OAuthURL(redirectURI)
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if spotify != nil {
			if st := r.FormValue("state"); st != nonce {
				http.Error(w, "State mismatch", http.StatusForbidden)
				zlog.Warn().Msgf("State mismatch: %s != %s", st, nonce)
				return
			}
		}
		code := r.FormValue("code")
		if code == "" {
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			deliver(results, callbackResult{err: fmt.Errorf("callback without code: %s", r.URL.RawQuery)})
			return
		}
		writeCompletePage(w)
		deliver(results, callbackResult{code: code})
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Msgf("Failed to start server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize musikbox:")
	fmt.Println("")
	fmt.Println(authURL)
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	result := <-results

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer func() {
		if err := server.Shutdown(ctx); err != nil {
			zlog.Warn().Msgf("Failed to shutdown server: %v", err)
		}
	}()

	if result.err != nil {
		zlog.Fatal().Msgf("Authorization failed: %v", result.err)
	}

	switch command {
	case spotifyCmd.FullCommand():
		token, err := spotify.Exchange(ctx, result.code)
		if err != nil {
			zlog.Fatal().Msgf("Failed to exchange code: %v", err)
		}
		printSpotify(token.RefreshToken)
	case musicfunCmd.FullCommand():
		client, err := newMusicFunClient()
		if err != nil {
			zlog.Fatal().Msgf("Failed to create MusicFun client: %v", err)
		}
		tokens, err := client.Login(ctx, musicfun.LoginArgs{
			Code:           result.code,
			AccessTokenTTL: *tokenTTL,
			RedirectURI:    redirectURI,
			RememberMe:     true,
		})
		if err != nil {
			zlog.Fatal().Msgf("Failed to log in: %v", err)
		}
		printMusicFun(tokens)
	}
}

// deliver hands over the first callback; later ones are dropped.
func deliver(results chan<- callbackResult, r callbackResult) {
	select {
	case results <- r:
	default:
	}
}

func newMusicFunClient() (*musicfun.Client, error) {
	return musicfun.New(musicfun.Config{BaseURL: *baseURL, APIKey: *apiKey})
}

func printSpotify(refreshToken string) {
	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Refresh Token:")
	fmt.Println(refreshToken)
	fmt.Println("")
	fmt.Println("Add this to your config.yaml:")
	fmt.Println("")
	fmt.Println("spotify:")
	fmt.Printf("  refresh_token: \"%s\"\n", refreshToken)
	fmt.Println("")
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", refreshToken)
}

func printMusicFun(tokens *musicfun.Tokens) {
	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Add this to your config.yaml:")
	fmt.Println("")
	fmt.Println("musicfun:")
	fmt.Printf("  access_token: \"%s\"\n", tokens.AccessToken)
	fmt.Printf("  refresh_token: \"%s\"\n", tokens.RefreshToken)
	fmt.Println("")
	fmt.Println("Or set as environment variables:")
	fmt.Printf("export MUSICFUN_ACCESS_TOKEN=\"%s\"\n", tokens.AccessToken)
	fmt.Printf("export MUSICFUN_REFRESH_TOKEN=\"%s\"\n", tokens.RefreshToken)
}

func writeCompletePage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>musikbox - Authorization Complete</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #3a7bd5 0%, #1c1c2b 100%);
            color: white;
        }
        .container {
            text-align: center;
            padding: 40px;
            background: rgba(0, 0, 0, 0.5);
            border-radius: 16px;
        }
        h1 { margin-bottom: 20px; }
        p { opacity: 0.8; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization Complete</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}
