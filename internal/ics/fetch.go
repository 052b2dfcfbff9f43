package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/spf13/afero"

	appLog "nailsync/internal/log"
)

const maxFeedBytes = 5 << 20

// Fetcher downloads ICS feeds, revalidating with ETag / Last-Modified and
// falling back to the cached copy when the origin is unreachable.
type Fetcher struct {
	client   *http.Client
	fs       afero.Fs
	cacheDir string
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewFetcher caches feeds under cacheDir on fsys. A nil client gets a
// 15 second timeout.
func NewFetcher(fsys afero.Fs, cacheDir string, client *http.Client) *Fetcher {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, fs: fsys, cacheDir: cacheDir}
}

// Fetch returns the feed body and whether it came from the cache.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]byte, bool, error) {
	if feedURL == "" {
		return nil, false, errors.New("feed URL is empty")
	}
	dir := f.cacheDirFor(feedURL)
	meta, _ := f.loadMeta(dir)
	cached, _ := afero.ReadFile(f.fs, path.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, false, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Warn("ics feed unreachable; using cached copy", err, "feed", redactURL(feedURL))
			return cached, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
		if err != nil {
			return nil, false, err
		}
		meta := cacheMeta{
			URL:          feedURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := f.save(dir, meta, body); err != nil {
			appLog.Warn("ics feed cache not saved", err, "feed", redactURL(feedURL))
		}
		return body, false, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, false, errors.New("304 Not Modified without a cached copy")
		}
		return cached, true, nil

	default:
		if len(cached) > 0 {
			appLog.Warn("ics feed error; using cached copy", errors.New(resp.Status), "feed", redactURL(feedURL))
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("fetch feed: %s", resp.Status)
	}
}

func (f *Fetcher) cacheDirFor(feedURL string) string {
	sum := sha256.Sum256([]byte(feedURL))
	return path.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := afero.ReadFile(f.fs, path.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// save writes the body before the metadata so metadata never points at a
// missing body.
func (f *Fetcher) save(dir string, meta cacheMeta, body []byte) error {
	if err := f.fs.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := afero.WriteFile(f.fs, path.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(f.fs, path.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed secrets.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
