package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	// ClientSecretsFile is the Google API credentials.json downloaded from the
	// cloud console, read from the config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile holds the Google access and refresh token.
	TokenFile = "google_token.json"

	// LocalhostAuthPort receives the OAuth redirect.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

var calendarScopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// Google runs the installed-app OAuth flow with credentials and tokens kept
// in Dir.
type Google struct {
	Dir    string
	Logger *zap.Logger
}

func NewGoogle(dir string, logger *zap.Logger) *Google {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Google{Dir: dir, Logger: logger.Named("google-auth")}
}

// Config reads the client secrets and pins the redirect to the local port.
func (g *Google) Config(scopes []string) (*oauth2.Config, error) {
	path := filepath.Join(g.Dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", path, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	redirect, changed := localRedirect(config.RedirectURL)
	if changed {
		g.Logger.Info("using local redirect url", zap.String("redirect_url", redirect))
	}
	config.RedirectURL = redirect
	return config, nil
}

// localRedirect forces localhost and out-of-band redirect urls onto
// LocalhostAuthPort. Other urls are returned unchanged.
func localRedirect(raw string) (string, bool) {
	if raw == "urn:ietf:wg:oauth:2.0:oob" || raw == "" {
		return fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort), true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw, false
	}
	if u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		return raw, false
	}
	if u.Port() == LocalhostAuthPort {
		return raw, false
	}
	u.Host = net.JoinHostPort(u.Hostname(), LocalhostAuthPort)
	return u.String(), true
}

// Client returns an HTTP client that refreshes its token. Without a saved
// token the browser flow is started.
func (g *Google) Client(ctx context.Context, scopes []string) (*http.Client, error) {
	config, err := g.Config(scopes)
	if err != nil {
		return nil, err
	}

	tokenFile := filepath.Join(g.Dir, TokenFile)
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		g.Logger.Info("no saved google token, starting web authorization", zap.String("path", tokenFile))
		tok, err = g.tokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}

	src := &savingSource{
		base:   config.TokenSource(ctx, tok),
		last:   tok,
		path:   tokenFile,
		logger: g.Logger,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// CalendarService returns an authenticated Calendar API service.
func (g *Google) CalendarService(ctx context.Context) (*calendar.Service, error) {
	client, err := g.Client(ctx, calendarScopes)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client for Calendar API: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google Calendar service: %w", err)
	}
	return srv, nil
}

// savingSource writes refreshed tokens back to disk.
type savingSource struct {
	base   oauth2.TokenSource
	last   *oauth2.Token
	path   string
	logger *zap.Logger
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			s.logger.Warn("failed to save refreshed token", zap.Error(err))
		}
		s.last = tok
	}
	return tok, nil
}

func (g *Google) tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", ":"+LocalhostAuthPort)
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	defer server.Shutdown(context.Background())

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// AccessTypeOffline is needed for a refresh token.
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Please open the following URL in your browser to authorize fieldtask:\n%s\n", authURL)
	g.Logger.Info("waiting for authorization code", zap.String("redirect_url", config.RedirectURL))

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out, please try again")
	}
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
