package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

// ErrAuthTimeout is returned when no browser callback arrives in time.
var ErrAuthTimeout = errors.New("authentication timeout")

// AuthConfig configures the interactive OAuth2 flow that obtains a refresh token.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	// TokenFile is where the token is saved; empty skips saving.
	TokenFile string
	// ListenAddr is the local callback address, such as "localhost:8080".
	ListenAddr string
	Timeout    time.Duration
}

func oauthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{sheets.SpreadsheetsScope},
	}
}

// Authorize runs the browser OAuth2 flow. showURL receives the consent URL the
// user has to open.
func Authorize(ctx context.Context, cfg AuthConfig, showURL func(string)) (*oauth2.Token, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	oc := oauthConfig(cfg.ClientID, cfg.ClientSecret, "http://"+listener.Addr().String()+"/callback")
	state := uuid.NewString()
	codes := make(chan string, 1)
	errs := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(state, codes, errs))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("callback server failed: %w", err)
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	showURL(oc.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	slog.Info("Waiting for Google Sheets authorization", "callback", listener.Addr().String())

	var code string
	select {
	case code = <-codes:
	case err := <-errs:
		return nil, err
	case <-time.After(cfg.Timeout):
		return nil, fmt.Errorf("%w: no response received within %s", ErrAuthTimeout, cfg.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := oc.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if cfg.TokenFile != "" {
		if err := SaveToken(cfg.TokenFile, token); err != nil {
			return token, err
		}
		slog.Info("Token saved", "file", cfg.TokenFile)
	}
	return token, nil
}

// callbackHandler receives the authorization code. Requests with a foreign
// state are rejected.
func callbackHandler(state string, codes chan<- string, errs chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		code := q.Get("code")
		if code == "" {
			select {
			case errs <- fmt.Errorf("no authorization code received: %s", q.Get("error")):
			default:
			}
			http.Error(w, "Authentication failed. Please try again.", http.StatusBadRequest)
			return
		}

		select {
		case codes <- code:
		default:
		}
		_, _ = fmt.Fprint(w, "Authentication successful. You can close this window and return to the terminal.")
	})
}

// LoadToken loads a token from file.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return token, nil
}

// SaveToken writes token to path with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}
