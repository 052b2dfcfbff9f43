package gcal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "nailsync/internal/log"
	"nailsync/internal/model"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"

	// maxPhotoBytes bounds a single downloaded photo.
	maxPhotoBytes = 20 << 20

	downloadConcurrency = 4
)

type driveFile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

type driveFileList struct {
	Files []driveFile `json:"files"`
}

// AppointmentFolderName is "<YYYY-MM-DD> <client>" in the configured zone.
func AppointmentFolderName(a model.Appointment, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	name := strings.TrimSpace(a.ClientName)
	if name == "" {
		name = defaultSummaryName
	}
	return a.Date.In(loc).Format("2006-01-02") + " " + name
}

// ensureFolder returns the id of the folder called name under parent
// ("" = drive root), creating it if absent. Results are cached.
func (c *Client) ensureFolder(ctx context.Context, name, parent string) (string, error) {
	key := parent + "/" + name

	c.folderMu.Lock()
	defer c.folderMu.Unlock()

	if id, ok := c.folders.Get(key); ok {
		return id.(string), nil
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), folderMimeType)
	if parent != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parent))
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("fields", "files(id,name)")
	v.Set("spaces", "drive")

	var list driveFileList
	if err := c.sendJSON(ctx, "find folder", http.MethodGet, c.cfg.DriveBaseURL+"/files?"+v.Encode(), nil, &list); err != nil {
		return "", err
	}
	if len(list.Files) > 0 {
		id := list.Files[0].ID
		c.folders.Set(key, id, 0)
		return id, nil
	}

	meta := driveFile{Name: name, MimeType: folderMimeType}
	if parent != "" {
		meta.Parents = []string{parent}
	}
	var created driveFile
	if err := c.sendJSON(ctx, "create folder", http.MethodPost, c.cfg.DriveBaseURL+"/files?fields=id", meta, &created); err != nil {
		return "", err
	}
	appLog.Info("drive folder created", "name", name, "id", created.ID)
	c.folders.Set(key, created.ID, 0)
	return created.ID, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// uploadFile stores data as a new file in folderID and returns its id.
func (c *Client) uploadFile(ctx context.Context, folderID, name, mimeType string, data []byte) (string, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	meta, err := json.Marshal(driveFile{Name: name, Parents: []string{folderID}})
	if err != nil {
		return "", &RemoteSyncError{Op: "upload", Err: err}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return "", &RemoteSyncError{Op: "upload", Err: err}
	}
	if _, err := metaPart.Write(meta); err != nil {
		return "", &RemoteSyncError{Op: "upload", Err: err}
	}
	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {mimeType}})
	if err != nil {
		return "", &RemoteSyncError{Op: "upload", Err: err}
	}
	if _, err := mediaPart.Write(data); err != nil {
		return "", &RemoteSyncError{Op: "upload", Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &RemoteSyncError{Op: "upload", Err: err}
	}

	resp, err := c.send(ctx, request{
		op:          "upload",
		method:      http.MethodPost,
		url:         c.cfg.UploadBaseURL + "/files?uploadType=multipart&fields=id",
		body:        &body,
		contentType: "multipart/related; boundary=" + mw.Boundary(),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var f driveFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return "", &RemoteSyncError{Op: "upload", Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if f.ID == "" {
		return "", &RemoteSyncError{Op: "upload", Status: resp.StatusCode, Err: fmt.Errorf("response has no file id")}
	}
	return f.ID, nil
}

// downloadFile fetches a file's bytes and content type.
func (c *Client) downloadFile(ctx context.Context, fileID string) (model.Photo, error) {
	resp, err := c.send(ctx, request{
		op:     "download",
		method: http.MethodGet,
		url:    c.cfg.DriveBaseURL + "/files/" + url.PathEscape(fileID) + "?alt=media",
	})
	if err != nil {
		return model.Photo{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return model.Photo{}, &RemoteSyncError{Op: "download", Status: resp.StatusCode, Err: err}
	}
	mt := resp.Header.Get("Content-Type")
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	return model.InlinePhoto(mt, data), nil
}

// syncPhotos returns the remote file ids for a's photos, uploading inline
// ones into the appointment's folder. Photos that already reference a
// remote file are kept as-is. Uploads run concurrently; if any fails the
// whole batch fails.
func (c *Client) syncPhotos(ctx context.Context, a model.Appointment) ([]string, error) {
	if len(a.InspirationPhotos) == 0 {
		return nil, nil
	}

	ids := make([]string, len(a.InspirationPhotos))
	pending := false
	for i, p := range a.InspirationPhotos {
		if p.IsRemote() {
			ids[i] = p.FileID
		} else {
			pending = true
		}
	}
	if !pending {
		return ids, nil
	}

	root, err := c.ensureFolder(ctx, c.cfg.DriveFolderName, "")
	if err != nil {
		return nil, err
	}
	folder, err := c.ensureFolder(ctx, AppointmentFolderName(a, c.cfg.Location), root)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range a.InspirationPhotos {
		if !p.IsInline() {
			continue
		}
		name := fmt.Sprintf("inspiration-%d%s", i+1, extensionFor(p.MimeType))
		g.Go(func() error {
			id, err := c.uploadFile(gctx, folder, name, p.MimeType, p.Data)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// resolvePhotos replaces remote photo references on a with downloaded
// inline data.
func (c *Client) resolvePhotos(ctx context.Context, a *model.Appointment) error {
	if len(a.InspirationPhotos) == 0 {
		return nil
	}
	out := make([]model.Photo, len(a.InspirationPhotos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for i, p := range a.InspirationPhotos {
		if !p.IsRemote() {
			out[i] = p
			continue
		}
		g.Go(func() error {
			photo, err := c.downloadFile(gctx, p.FileID)
			if err != nil {
				return err
			}
			out[i] = photo
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	a.InspirationPhotos = out
	return nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ""
	}
}
