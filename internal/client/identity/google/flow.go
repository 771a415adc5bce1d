// Package google runs the Google sign-in handshake for a terminal client:
// authorization code flow with PKCE, a loopback redirect listener and
// OIDC ID token verification.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/dmitrijs2005/wardrobe/internal/client/identity"
	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/logging"
	"golang.org/x/oauth2"
)

const (
	providerName = "google"
	issuer       = "https://accounts.google.com"
)

var (
	ErrStateMismatch = errors.New("oauth state mismatch")
	ErrDenied        = errors.New("oauth authorization denied")
	ErrNoIDToken     = errors.New("google did not return id_token")
)

type Config struct {
	ClientID     string
	ClientSecret string
	// RedirectURL must point at the loopback interface, e.g.
	// http://127.0.0.1:8765/callback. Port 0 picks a free port.
	RedirectURL string
	// Timeout bounds the whole handshake. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout is how long Authenticate waits for the user to finish
// signing in when Config.Timeout is not set.
const DefaultTimeout = 5 * time.Minute

// Opener shows the authorization URL to the user.
type Opener func(authURL string) error

type Flow struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	timeout  time.Duration
	open     Opener
	log      logging.Logger
}

// New discovers Google's OIDC endpoints and builds a Flow.
func New(ctx context.Context, cfg Config, open Opener, log logging.Logger) (*Flow, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	return NewWithEndpoint(cfg, provider.Endpoint(), provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}), open, log), nil
}

// NewWithEndpoint builds a Flow against explicit endpoints.
func NewWithEndpoint(cfg Config, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier, open Opener, log logging.Logger) *Flow {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Flow{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: verifier,
		timeout:  timeout,
		open:     open,
		log:      log.With("module", "google"),
	}
}

type callbackResult struct {
	code string
	err  error
}

// Authenticate runs the handshake. It fails with context.DeadlineExceeded when
// the user does not complete it within the configured timeout.
func (f *Flow) Authenticate(ctx context.Context) (identity.ExternalIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	redirect, err := url.Parse(f.oauth.RedirectURL)
	if err != nil {
		return identity.ExternalIdentity{}, fmt.Errorf("bad redirect url: %w", err)
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return identity.ExternalIdentity{}, fmt.Errorf("listen for oauth callback: %w", err)
	}
	redirect.Host = ln.Addr().String()

	cfg := f.oauth
	cfg.RedirectURL = redirect.String()

	state, err := common.MakeRandHexString(16)
	if err != nil {
		_ = ln.Close()
		return identity.ExternalIdentity{}, err
	}
	pkce := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("%w: %s", ErrDenied, q.Get("error"))
		case q.Get("state") != state:
			res.err = ErrStateMismatch
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
		} else {
			_, _ = w.Write([]byte("Signed in. You can close this window and return to the terminal."))
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(pkce))
	if err := f.open(authURL); err != nil {
		return identity.ExternalIdentity{}, fmt.Errorf("open browser: %w", err)
	}
	f.log.Debug(ctx, "waiting for oauth callback", "redirect", cfg.RedirectURL)

	var res callbackResult
	select {
	case <-ctx.Done():
		return identity.ExternalIdentity{}, fmt.Errorf("waiting for google callback: %w", ctx.Err())
	case res = <-results:
	}
	if res.err != nil {
		return identity.ExternalIdentity{}, res.err
	}

	token, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(pkce))
	if err != nil {
		return identity.ExternalIdentity{}, fmt.Errorf("google token exchange failed: %w", err)
	}

	return f.identityFromToken(ctx, token)
}

func (f *Flow) identityFromToken(ctx context.Context, token *oauth2.Token) (identity.ExternalIdentity, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return identity.ExternalIdentity{}, ErrNoIDToken
	}

	idToken, err := f.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.ExternalIdentity{}, fmt.Errorf("google id_token verification failed: %w", err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return identity.ExternalIdentity{}, fmt.Errorf("google id_token claims parse failed: %w", err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return identity.ExternalIdentity{}, errors.New("google id_token missing required claims")
	}

	f.log.Info(ctx, "google oidc verified", "email_verified", claims.EmailVerified)

	return identity.ExternalIdentity{
		Provider:      providerName,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		FirstName:     claims.GivenName,
		LastName:      claims.FamilyName,
		Picture:       claims.Picture,
	}, nil
}
