package model

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// PhotoKind tags which half of Photo is populated.
type PhotoKind string

const (
	PhotoInline PhotoKind = "inline"
	PhotoRemote PhotoKind = "remote"
)

// Photo is an inspiration image: either inline bytes or a reference to a
// file in the remote file store. Never both.
type Photo struct {
	Kind     PhotoKind `json:"kind"`
	MimeType string    `json:"mimeType,omitempty"`
	Data     []byte    `json:"data,omitempty"`
	FileID   string    `json:"fileId,omitempty"`
}

func InlinePhoto(mimeType string, data []byte) Photo {
	return Photo{Kind: PhotoInline, MimeType: mimeType, Data: data}
}

func RemotePhoto(fileID string) Photo {
	return Photo{Kind: PhotoRemote, FileID: fileID}
}

func (p Photo) IsInline() bool { return p.Kind == PhotoInline }
func (p Photo) IsRemote() bool { return p.Kind == PhotoRemote }

// Validate checks that exactly the half named by Kind is populated.
func (p Photo) Validate() error {
	switch p.Kind {
	case PhotoInline:
		if p.FileID != "" {
			return fmt.Errorf("photo: inline photo has a file id: %w", ErrInvalid)
		}
	case PhotoRemote:
		if p.FileID == "" || len(p.Data) != 0 {
			return fmt.Errorf("photo: remote photo needs a file id and no data: %w", ErrInvalid)
		}
	default:
		return fmt.Errorf("photo: unknown kind %q: %w", p.Kind, ErrInvalid)
	}
	return nil
}

func (p Photo) Clone() Photo {
	out := p
	if p.Data != nil {
		out.Data = append([]byte(nil), p.Data...)
	}
	return out
}

// DataURL renders an inline photo as "data:<mime>;base64,<payload>".
func (p Photo) DataURL() string {
	if !p.IsInline() {
		return ""
	}
	mt := p.MimeType
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// ParseDataURL decodes a base64 data URL (as produced by browser file
// readers) into an inline photo.
func ParseDataURL(s string) (Photo, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Photo{}, fmt.Errorf("photo: not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Photo{}, fmt.Errorf("photo: data URL has no payload")
	}
	mt, isB64 := strings.CutSuffix(meta, ";base64")
	if !isB64 {
		return Photo{}, fmt.Errorf("photo: only base64 data URLs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Photo{}, fmt.Errorf("photo: decode payload: %w", err)
	}
	return InlinePhoto(mt, data), nil
}
