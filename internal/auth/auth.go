// Package auth links one Google account and hands out access tokens,
// refreshing them shortly before they expire.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	appLog "nailsync/internal/log"
)

// RefreshBefore is how long before expiry a token is replaced.
const RefreshBefore = 5 * time.Minute

// Scopes requested on consent: event read/write and files created by the app.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/drive.file",
}

// ErrNotAuthenticated is returned when no account has been linked.
var ErrNotAuthenticated = errors.New("not authenticated")

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides the Google endpoints; tests point it elsewhere.
	Endpoint *oauth2.Endpoint

	// TokenPath is where the linked token is persisted.
	TokenPath string
	Fs        afero.Fs

	// HTTPClient is used for code exchange and refresh.
	HTTPClient *http.Client
}

// Provider owns the linked token.
type Provider struct {
	oauth *oauth2.Config
	fs    afero.Fs
	path  string
	hc    *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

// NewProvider creates a provider and loads any persisted token.
func NewProvider(cfg Config) (*Provider, error) {
	ep := endpoints.Google
	if cfg.Endpoint != nil {
		ep = *cfg.Endpoint
	}
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	p := &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes:       Scopes,
		},
		fs:   fsys,
		path: cfg.TokenPath,
		hc:   cfg.HTTPClient,
	}

	if err := p.load(); err != nil {
		return nil, fmt.Errorf("auth: load token: %w", err)
	}
	return p, nil
}

// Configured reports whether client credentials are present.
func (p *Provider) Configured() bool {
	return p.oauth.ClientID != "" && p.oauth.ClientSecret != ""
}

// AuthCodeURL is the consent page URL. Offline access and a forced consent
// prompt make Google return a refresh token every time.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token and persists it.
func (p *Provider) Exchange(ctx context.Context, code string) error {
	tok, err := p.oauth.Exchange(p.withClient(ctx), code)
	if err != nil {
		return fmt.Errorf("auth: exchange code: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.save(tok); err != nil {
		return err
	}
	p.token = tok
	appLog.Info("google account linked", "expiry", tok.Expiry)
	return nil
}

// AccessToken returns a valid access token, refreshing it when it is within
// RefreshBefore of expiring.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == nil {
		return "", ErrNotAuthenticated
	}

	// The inner source gets only the refresh token so it always refreshes
	// when asked; the outer one decides when to ask.
	refresher := p.oauth.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: p.token.RefreshToken})
	tok, err := oauth2.ReuseTokenSourceWithExpiry(p.token, refresher, RefreshBefore).Token()
	if err != nil {
		return "", fmt.Errorf("auth: refresh token: %w", err)
	}

	if tok.AccessToken != p.token.AccessToken {
		refreshed := *tok
		if refreshed.RefreshToken == "" {
			refreshed.RefreshToken = p.token.RefreshToken
		}
		if err := p.save(&refreshed); err != nil {
			appLog.Warn("refreshed token not persisted", err)
		}
		p.token = &refreshed
		appLog.Debug("access token refreshed", "expiry", refreshed.Expiry)
	}
	return p.token.AccessToken, nil
}

// IsAuthenticated reports whether a token with a refresh token is held.
func (p *Provider) IsAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != nil && p.token.AccessToken != "" && p.token.RefreshToken != ""
}

// Expiry of the held access token, zero if none.
func (p *Provider) Expiry() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == nil {
		return time.Time{}
	}
	return p.token.Expiry
}

// Logout forgets the token and removes it from disk.
func (p *Provider) Logout() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.token = nil
	if p.path == "" {
		return nil
	}
	if err := p.fs.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("auth: remove token: %w", err)
	}
	appLog.Info("google account unlinked")
	return nil
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	if p.hc == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.hc)
}

func (p *Provider) load() error {
	if p.path == "" {
		return nil
	}
	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return err
	}
	p.token = &tok
	return nil
}

// save writes tok atomically with 0600 permissions. Callers hold p.mu.
func (p *Provider) save(tok *oauth2.Token) error {
	if p.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := p.fs.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := afero.TempFile(p.fs, dir, ".nailsync-token-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer p.fs.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := p.fs.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return p.fs.Rename(tmpName, p.path)
}
