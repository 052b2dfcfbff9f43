package syncer

import (
	"errors"
	"fmt"
)

// ErrNotConnected is reported when no remote account is linked.
var ErrNotConnected = errors.New("remote calendar not connected")

// Op names an outbound propagation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Outcome is the result of propagating one local change to the remote
// calendar. Err is nil on success; Skipped is set when nothing was sent.
type Outcome struct {
	Op            Op     `json:"op"`
	AppointmentID string `json:"appointmentId"`
	RemoteID      string `json:"remoteId,omitempty"`
	Skipped       bool   `json:"skipped,omitempty"`
	Err           error  `json:"-"`
}

func (o Outcome) OK() bool { return o.Err == nil }

// ReconciliationError aborts an inbound sync. Stage is "connect", "list",
// "photos" or "merge".
type ReconciliationError struct {
	Stage string
	Err   error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("sync from remote failed at %s: %v", e.Stage, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
