// Package gcal hides the remote calendar and file store behind four
// operations: create, update, delete and list. Appointments are written as
// calendar events; fields the event schema cannot hold travel in the
// event's private extended properties, and inspiration photos are stored
// as files in a per-appointment folder.
package gcal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const (
	DefaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"
	DefaultDriveBaseURL    = "https://www.googleapis.com/drive/v3"
	DefaultUploadBaseURL   = "https://www.googleapis.com/upload/drive/v3"

	DefaultEventDuration = 90 * time.Minute
	DefaultFolderName    = "Nailsite Appointments"

	// colorFlamingo is the calendar's pink.
	colorFlamingo = "4"

	maxErrorBody = 4 << 10
)

// DefaultKeywords recognise events that describe nail appointments.
var DefaultKeywords = []string{"GEL", "MANICURE", "BUILDER", "NAIL"}

// TokenSource supplies bearer tokens. Refreshing is its business, not ours.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	IsAuthenticated() bool
}

// Config tunes the adapter. Zero values fall back to defaults.
type Config struct {
	CalendarID      string
	Location        *time.Location
	EventDuration   time.Duration
	Keywords        []string
	FallbackPrice   decimal.Decimal
	DriveFolderName string

	HTTPClient *http.Client

	CalendarBaseURL string
	DriveBaseURL    string
	UploadBaseURL   string
}

// Client talks to the calendar and file-store HTTP APIs.
type Client struct {
	tokens TokenSource
	http   *http.Client
	cfg    Config

	// folders caches Drive folder ids for the lifetime of the client.
	folders  *cache.Cache
	folderMu sync.Mutex
}

// New creates a Client.
func New(tokens TokenSource, cfg Config) *Client {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.EventDuration <= 0 {
		cfg.EventDuration = DefaultEventDuration
	}
	if cfg.Keywords == nil {
		cfg.Keywords = DefaultKeywords
	}
	if cfg.DriveFolderName == "" {
		cfg.DriveFolderName = DefaultFolderName
	}
	if cfg.CalendarBaseURL == "" {
		cfg.CalendarBaseURL = DefaultCalendarBaseURL
	}
	if cfg.DriveBaseURL == "" {
		cfg.DriveBaseURL = DefaultDriveBaseURL
	}
	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = DefaultUploadBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		tokens:  tokens,
		http:    hc,
		cfg:     cfg,
		folders: cache.New(cache.NoExpiration, 0),
	}
}

// Connected reports whether an account is linked.
func (c *Client) Connected() bool {
	return c.tokens != nil && c.tokens.IsAuthenticated()
}

// request describes one authenticated HTTP exchange.
type request struct {
	op          string
	method      string
	url         string
	body        io.Reader
	contentType string
}

// send performs r and returns the response for a 2xx status. Other
// statuses become a *RemoteSyncError carrying the op name.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	if c.tokens == nil {
		return nil, &RemoteSyncError{Op: r.op, Err: ErrNotConnected}
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, &RemoteSyncError{Op: r.op, Err: fmt.Errorf("access token: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return nil, &RemoteSyncError{Op: r.op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteSyncError{Op: r.op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &RemoteSyncError{Op: r.op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	return resp, nil
}

// sendJSON marshals in (if non-nil), performs the request and decodes the
// response into out (if non-nil).
func (c *Client) sendJSON(ctx context.Context, op, method, url string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &RemoteSyncError{Op: op, Err: err}
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, request{op: op, method: method, url: url, body: body, contentType: contentType})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteSyncError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
