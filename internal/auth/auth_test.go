package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	tokenURL  = "https://oauth.test/token"
	tokenPath = "/data/tokens.json"
)

func newTestProvider(t *testing.T, fsys afero.Fs) *Provider {
	t.Helper()
	hc := &http.Client{}
	gock.InterceptClient(hc)
	t.Cleanup(func() {
		gock.RestoreClient(hc)
		gock.OffAll()
	})

	p, err := NewProvider(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		Endpoint: &oauth2.Endpoint{
			AuthURL:   "https://oauth.test/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		TokenPath:  tokenPath,
		Fs:         fsys,
		HTTPClient: hc,
	})
	require.NoError(t, err)
	return p
}

func writeToken(t *testing.T, fsys afero.Fs, tok oauth2.Token) {
	t.Helper()
	data, err := json.Marshal(tok)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fsys, tokenPath, data, 0o600))
}

func readToken(t *testing.T, fsys afero.Fs) oauth2.Token {
	t.Helper()
	data, err := afero.ReadFile(fsys, tokenPath)
	require.NoError(t, err)
	var tok oauth2.Token
	require.NoError(t, json.Unmarshal(data, &tok))
	return tok
}

func TestProvider_NotAuthenticated(t *testing.T) {
	p := newTestProvider(t, afero.NewMemMapFs())

	assert.False(t, p.IsAuthenticated())
	_, err := p.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p := newTestProvider(t, afero.NewMemMapFs())

	u := p.AuthCodeURL("xyz")
	assert.Contains(t, u, "https://oauth.test/auth?")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "state=xyz")
	assert.Contains(t, u, "client_id=client")
	assert.True(t, p.Configured())
}

func TestProvider_ExchangePersistsToken(t *testing.T) {
	fsys := afero.NewMemMapFs()
	p := newTestProvider(t, fsys)

	gock.New("https://oauth.test").
		Post("/token").
		BodyString("code=abc").
		Reply(200).
		JSON(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})

	require.NoError(t, p.Exchange(context.Background(), "abc"))
	assert.True(t, p.IsAuthenticated())

	saved := readToken(t, fsys)
	assert.Equal(t, "access-1", saved.AccessToken)
	assert.Equal(t, "refresh-1", saved.RefreshToken)

	info, err := fsys.Stat(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, 0o600, int(info.Mode().Perm()))
}

func TestProvider_ValidTokenIsReused(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeToken(t, fsys, oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	})
	p := newTestProvider(t, fsys)

	tok, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
}

func TestProvider_RefreshesNearExpiry(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeToken(t, fsys, oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(2 * time.Minute),
	})
	p := newTestProvider(t, fsys)

	gock.New("https://oauth.test").
		Post("/token").
		BodyString("grant_type=refresh_token").
		Reply(200).
		JSON(map[string]any{
			"access_token": "access-2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})

	tok, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok)
	assert.True(t, gock.IsDone())

	saved := readToken(t, fsys)
	assert.Equal(t, "access-2", saved.AccessToken)
	assert.Equal(t, "refresh-1", saved.RefreshToken)
}

func TestProvider_RefreshFailure(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeToken(t, fsys, oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Minute),
	})
	p := newTestProvider(t, fsys)

	gock.New("https://oauth.test").
		Post("/token").
		Reply(400).
		JSON(map[string]string{"error": "invalid_grant"})

	_, err := p.AccessToken(context.Background())
	assert.Error(t, err)
}

func TestProvider_Logout(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeToken(t, fsys, oauth2.Token{AccessToken: "a", RefreshToken: "r"})
	p := newTestProvider(t, fsys)
	require.True(t, p.IsAuthenticated())

	require.NoError(t, p.Logout())
	assert.False(t, p.IsAuthenticated())

	exists, err := afero.Exists(fsys, tokenPath)
	require.NoError(t, err)
	assert.False(t, exists)

	// Idempotent.
	assert.NoError(t, p.Logout())
}
