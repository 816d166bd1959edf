// Package auth implements the credential provider for the Photos Picker API:
// cached token → stored token → refresh → interactive browser consent, with
// single-flight acquisition across concurrent callers and persistence of
// every successfully acquired token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/pickframe/pickframe/internal/tokenfile"
)

// ErrCredentialConfig is returned when no OAuth client configuration is
// available and no interactive path can proceed.
var ErrCredentialConfig = errors.New("auth: oauth client configuration missing")

// Scope grants read access to media items the user picked.
const Scope = "https://www.googleapis.com/auth/photospicker.mediaitems.readonly"

// Google OAuth2 endpoints for installed applications.
const (
	authURL  = "https://accounts.google.com/o/oauth2/auth"
	tokenURL = "https://oauth2.googleapis.com/token"
)

// expirySkew treats tokens expiring within this window as already expired,
// so an API call never departs with a token about to lapse mid-flight.
const expirySkew = 30 * time.Second

// Provider acquires, refreshes, and persists OAuth2 credentials.
// Safe for concurrent use; acquisition is serialized so concurrent callers
// never run duplicate refresh or consent flows.
type Provider struct {
	credentialsPath string
	tokenPath       string
	listenPort      int
	openURL         func(string) error
	logger          *slog.Logger

	group singleflight.Group

	mu     sync.Mutex
	cached *oauth2.Token
	config *oauth2.Config
}

// NewProvider creates a Provider. credentialsPath points at the Google
// client secrets JSON; tokenPath at the persisted token. openURL launches
// the user's browser during the consent flow and may be nil, in which case
// the authorization URL is printed to stderr.
func NewProvider(credentialsPath, tokenPath string, listenPort int, openURL func(string) error, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	if openURL == nil {
		openURL = func(url string) error {
			fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", url)
			return nil
		}
	}

	return &Provider{
		credentialsPath: credentialsPath,
		tokenPath:       tokenPath,
		listenPort:      listenPort,
		openURL:         openURL,
		logger:          logger,
	}
}

// Token implements picker.TokenSource. It acquires a valid credential,
// blocking on refresh or interactive consent when necessary.
func (p *Provider) Token() (string, error) {
	tok, err := p.Acquire(context.Background())
	if err != nil {
		return "", err
	}

	return tok.AccessToken, nil
}

// Acquire returns a valid (non-expired) credential. The chain: cached
// credential → persisted credential → refresh → interactive consent.
// Every successful path persists the credential before returning.
// Concurrent callers share one in-flight acquisition.
func (p *Provider) Acquire(ctx context.Context) (*oauth2.Token, error) {
	result, err, _ := p.group.Do("acquire", func() (any, error) {
		return p.acquire(ctx)
	})
	if err != nil {
		return nil, err
	}

	tok, ok := result.(*oauth2.Token)
	if !ok {
		return nil, fmt.Errorf("auth: unexpected acquisition result type %T", result)
	}

	return tok, nil
}

func (p *Provider) acquire(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	cached := p.cached
	p.mu.Unlock()

	if valid(cached) {
		return cached, nil
	}

	tok, err := tokenfile.Load(p.tokenPath)
	if err != nil {
		p.logger.Warn("failed to load stored credentials",
			slog.String("path", p.tokenPath),
			slog.String("error", err.Error()),
		)

		tok = nil
	}

	if valid(tok) {
		return p.store(tok)
	}

	if tok != nil && tok.RefreshToken != "" {
		refreshed, refreshErr := p.refresh(ctx, tok)
		if refreshErr == nil {
			return p.store(refreshed)
		}

		p.logger.Warn("failed to refresh credentials, falling back to consent flow",
			slog.String("error", refreshErr.Error()),
		)
	}

	fresh, err := p.consent(ctx)
	if err != nil {
		return nil, err
	}

	return p.store(fresh)
}

// store caches the token in memory and persists it to disk.
func (p *Provider) store(tok *oauth2.Token) (*oauth2.Token, error) {
	if err := tokenfile.Save(p.tokenPath, tok); err != nil {
		return nil, fmt.Errorf("auth: persisting credentials: %w", err)
	}

	p.mu.Lock()
	p.cached = tok
	p.mu.Unlock()

	return tok, nil
}

// refresh exchanges the token's refresh token for a fresh access token.
func (p *Provider) refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	cfg, err := p.oauthConfig()
	if err != nil {
		return nil, err
	}

	refreshed, err := cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("auth: refreshing token: %w", err)
	}

	p.logger.Info("refreshed credentials", slog.Time("expiry", refreshed.Expiry))

	return refreshed, nil
}

// valid reports whether the token exists and is not expired (with skew).
func valid(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}

	if tok.Expiry.IsZero() {
		return true
	}

	return time.Until(tok.Expiry) > expirySkew
}

// clientSecrets mirrors the Google client secrets JSON for installed and
// web application types.
type clientSecrets struct {
	Installed *clientSecretsEntry `json:"installed"`
	Web       *clientSecretsEntry `json:"web"`
}

type clientSecretsEntry struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// oauthConfig lazily loads the client secrets file and builds the oauth2
// config. Returns ErrCredentialConfig when no secrets file is present.
func (p *Provider) oauthConfig() (*oauth2.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config != nil {
		return p.config, nil
	}

	data, err := os.ReadFile(p.credentialsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s not found", ErrCredentialConfig, p.credentialsPath)
		}

		return nil, fmt.Errorf("auth: reading client secrets %s: %w", p.credentialsPath, err)
	}

	var secrets clientSecrets
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrCredentialConfig, p.credentialsPath, err)
	}

	entry := secrets.Installed
	if entry == nil {
		entry = secrets.Web
	}

	if entry == nil || entry.ClientID == "" {
		return nil, fmt.Errorf("%w: %s has no installed or web client", ErrCredentialConfig, p.credentialsPath)
	}

	if entry.AuthURI == "" {
		entry.AuthURI = authURL
	}

	if entry.TokenURI == "" {
		entry.TokenURI = tokenURL
	}

	p.config = &oauth2.Config{
		ClientID:     entry.ClientID,
		ClientSecret: entry.ClientSecret,
		Scopes:       []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  entry.AuthURI,
			TokenURL: entry.TokenURI,
		},
	}

	return p.config, nil
}
