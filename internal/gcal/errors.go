package gcal

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteSyncError reports a failed call to the calendar or file store.
// Op names the adapter operation ("create", "update", "upload", ...).
type RemoteSyncError struct {
	Op     string
	Status int
	Err    error
}

func (e *RemoteSyncError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteSyncError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a remote 404 or 410.
func IsNotFound(err error) bool {
	var rse *RemoteSyncError
	if !errors.As(err, &rse) {
		return false
	}
	return rse.Status == http.StatusNotFound || rse.Status == http.StatusGone
}

// ErrNotConnected is returned when no account is linked.
var ErrNotConnected = errors.New("calendar account not connected")
