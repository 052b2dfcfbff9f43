package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"nailsync/internal/model"
)

// Snapshot is the persisted layout: one blob holding every collection.
type Snapshot struct {
	Appointments   []model.Appointment  `json:"appointments"`
	Inventory      []model.PressOn      `json:"inventory"`
	Availabilities []model.Availability `json:"availabilities"`
}

// Persister loads and saves the whole snapshot.
type Persister interface {
	Load() (*Snapshot, error)
	Save(snap *Snapshot) error
}

// FilePersister stores the snapshot as JSON in a single file.
type FilePersister struct {
	fs   afero.Fs
	path string
}

// NewFilePersister creates a persister writing to path on fsys. A nil fsys
// means the OS filesystem.
func NewFilePersister(fsys afero.Fs, path string) *FilePersister {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FilePersister{fs: fsys, path: path}
}

// Load reads the snapshot. A missing file is an empty store, not an error.
// Dates come back as time.Time through their RFC 3339 JSON encoding.
func (p *FilePersister) Load() (*Snapshot, error) {
	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Snapshot{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return &Snapshot{}, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save writes the snapshot atomically: temp file in the same directory,
// fsync, chmod 0600, rename over the target.
func (p *FilePersister) Save(snap *Snapshot) error {
	if snap == nil {
		return errors.New("snapshot is nil")
	}

	dir := filepath.Dir(p.path)
	if err := p.fs.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(p.fs, dir, ".nailsync-store-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer p.fs.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
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
