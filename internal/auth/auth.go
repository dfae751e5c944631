package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/beekhof/eventsync/internal/errors"
	"github.com/beekhof/eventsync/internal/log"
)

// authTimeout bounds how long the interactive flow waits for the browser.
const authTimeout = 5 * time.Minute

// TokenStore is an interface for saving and loading OAuth tokens.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// autoSaveTokenSource wraps an oauth2.TokenSource and automatically saves refreshed tokens.
type autoSaveTokenSource struct {
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.lastToken = token
	}

	return token, nil
}

// codeFunc obtains an authorization code for the given config and state.
// It may rewrite oauthConfig.RedirectURL before building the auth URL.
type codeFunc func(ctx context.Context, oauthConfig *oauth2.Config, state string) (string, error)

// needsAuthorization reports whether a stored token is unusable: absent, or
// expired with nothing to refresh it with.
func needsAuthorization(token *oauth2.Token) bool {
	if token == nil {
		return true
	}
	return !token.Valid() && token.RefreshToken == ""
}

// startLocalServer starts a local HTTP server to receive the OAuth callback.
// Returns the redirect URL, a channel for the authorization code, and a channel for errors.
// Uses port 8080 by default, or a random port if 8080 is unavailable.
func startLocalServer(ctx context.Context, state string) (string, <-chan string, <-chan error, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:8080")
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return "", nil, nil, nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", callbackHandler(state, codeChan, errorChan))
	server.Handler = log.WrapHandler(mux, log.FromContext(ctx))

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errorChan <- fmt.Errorf("server error: %w", err):
			default:
			}
		}
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}

	return redirectURL, codeChan, errorChan, shutdown, nil
}

// callbackHandler answers the browser redirect. Only the first callback is
// delivered; the channels are buffered with room for one value. Requests
// that neither carry the expected state nor report an error (favicon
// fetches, a stray visit) get a 400 and leave the flow waiting.
func callbackHandler(state string, codeChan chan<- string, errorChan chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		errMsg := query.Get("error")
		if query.Get("state") != state && errMsg == "" {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		if code := query.Get("code"); code != "" && errMsg == "" {
			fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
			select {
			case codeChan <- code:
			default:
			}
			return
		}

		if errMsg == "" {
			errMsg = "no authorization code received"
		}
		fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", errMsg)
		select {
		case errorChan <- fmt.Errorf("authorization error: %s", errMsg):
		default:
		}
	}
}

// browserCode runs the loopback redirect flow. The user opens the printed URL,
// and the local server captures the code from the redirect.
func browserCode(ctx context.Context, oauthConfig *oauth2.Config, state string) (string, error) {
	redirectURL, codeChan, errorChan, shutdown, err := startLocalServer(ctx, state)
	if err != nil {
		return "", err
	}
	defer shutdown()

	oauthConfig.RedirectURL = redirectURL
	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Printf("Starting local server on %s\n", redirectURL)
	if redirectURL != "http://127.0.0.1:8080" {
		fmt.Printf("Note: Port 8080 was unavailable. Make sure to add %s to your authorized redirect URIs in Google Cloud Console.\n", redirectURL)
	}
	fmt.Println("\nPlease visit the following URL to authorize the application:")
	fmt.Println(authURL)
	fmt.Println("\nWaiting for authorization...")

	select {
	case code := <-codeChan:
		return code, nil
	case err := <-errorChan:
		return "", fmt.Errorf("failed to receive authorization code: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(authTimeout):
		return "", fmt.Errorf("authorization timeout: no response received within %s", authTimeout)
	}
}

// readerCode prints the auth URL and reads a pasted code from reader.
func readerCode(reader io.Reader) codeFunc {
	return func(_ context.Context, oauthConfig *oauth2.Config, state string) (string, error) {
		authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)

		fmt.Println("Please visit the following URL to authorize the application:")
		fmt.Println(authURL)
		fmt.Print("Enter the authorization code: ")

		var code string
		if _, err := fmt.Fscanln(reader, &code); err != nil {
			return "", fmt.Errorf("failed to read authorization code: %w", err)
		}
		return code, nil
	}
}

// GetAuthenticatedClient returns an authenticated HTTP client using OAuth 2.0.
// If no usable token exists, it will guide the user through the interactive
// OAuth flow and persist the new token.
func GetAuthenticatedClient(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore) (*http.Client, error) {
	return authenticate(ctx, oauthConfig, tokenStore, browserCode)
}

// GetAuthenticatedClientWithReader is like GetAuthenticatedClient but reads a
// pasted authorization code from reader instead of running a local server.
func GetAuthenticatedClientWithReader(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, reader io.Reader) (*http.Client, error) {
	return authenticate(ctx, oauthConfig, tokenStore, readerCode(reader))
}

func authenticate(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, obtainCode codeFunc) (*http.Client, error) {
	const op errors.Op = "auth.GetAuthenticatedClient"
	logger := log.FromContext(ctx)

	token, err := tokenStore.LoadToken()
	switch {
	case stderrors.Is(err, ErrCorruptToken):
		logger.Warn("stored token is unreadable, re-authorizing", zap.Error(err))
		token = nil
	case err != nil:
		return nil, errors.E(op, errors.Auth, err)
	}

	if needsAuthorization(token) {
		if token != nil {
			logger.Info("stored token expired and cannot be refreshed, re-authorizing")
		}

		code, err := obtainCode(ctx, oauthConfig, uuid.NewString())
		if err != nil {
			return nil, errors.E(op, errors.Auth, err)
		}
		if code == "" {
			return nil, errors.E(op, errors.Auth, "no authorization code received")
		}

		token, err = oauthConfig.Exchange(ctx, code)
		if err != nil {
			return nil, errors.E(op, errors.Auth, fmt.Errorf("failed to exchange authorization code: %w", err))
		}

		if err := tokenStore.SaveToken(token); err != nil {
			return nil, errors.E(op, errors.Auth, err)
		}

		logger.Info("authorization successful", zap.Time("expiry", token.Expiry))
	}

	tokenSource := oauthConfig.TokenSource(ctx, token)

	autoSaveSource := &autoSaveTokenSource{
		source:     oauth2.ReuseTokenSource(token, tokenSource),
		tokenStore: tokenStore,
		lastToken:  token,
	}

	return oauth2.NewClient(ctx, autoSaveSource), nil
}
