// Package syncer keeps the local store and the remote calendar in step.
// Local writes always land first; remote propagation is best effort and
// its failures are logged, never rolled back. Sync-in pulls a window of
// remote events and merges them into the store.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"nailsync/internal/gcal"
	appLog "nailsync/internal/log"
	"nailsync/internal/model"
	"nailsync/internal/store"
)

const (
	DefaultWindowMonths  = 3
	DefaultRemoteTimeout = 60 * time.Second
)

// Remote is the calendar side of the sync.
type Remote interface {
	Connected() bool
	CreateRemote(ctx context.Context, a model.Appointment) (string, error)
	UpdateRemote(ctx context.Context, remoteID string, a model.Appointment) error
	DeleteRemote(ctx context.Context, remoteID string) error
	ListRemote(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

// Store is the local side of the sync.
type Store interface {
	Appointments() []model.Appointment
	CreateAppointment(a model.Appointment) (model.Appointment, error)
	UpdateAppointment(id string, patch model.AppointmentPatch) (model.Appointment, error)
	DeleteAppointment(id string) (model.Appointment, bool, error)
	MergeSyncedBatch(incoming []model.Appointment) (store.MergeResult, error)
	LinkRemote(id, remoteID string) (model.Appointment, error)
}

type Options struct {
	WindowMonthsBefore int
	WindowMonthsAfter  int

	// RemoteTimeout bounds each outbound propagation.
	RemoteTimeout time.Duration

	Now func() time.Time
}

// Report describes one completed sync-from-remote pass.
type Report struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Fetched int       `json:"fetched"`
	Updated int       `json:"updated"`
	Added   int       `json:"added"`
	At      time.Time `json:"at"`
}

// Status is the last sync-from-remote attempt.
type Status struct {
	Last    *Report   `json:"last,omitempty"`
	LastErr string    `json:"lastError,omitempty"`
	LastTry time.Time `json:"lastAttempt,omitempty"`
	Running bool      `json:"running"`
}

type Orchestrator struct {
	store  Store
	remote Remote
	opts   Options

	// syncMu serialises sync-from-remote passes.
	syncMu sync.Mutex

	statusMu sync.Mutex
	status   Status
}

// New creates an orchestrator. remote may be nil, in which case every
// change stays local.
func New(s Store, remote Remote, opts Options) *Orchestrator {
	if opts.WindowMonthsBefore <= 0 {
		opts.WindowMonthsBefore = DefaultWindowMonths
	}
	if opts.WindowMonthsAfter <= 0 {
		opts.WindowMonthsAfter = DefaultWindowMonths
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = DefaultRemoteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{store: s, remote: remote, opts: opts}
}

func (o *Orchestrator) connected() bool {
	return o.remote != nil && o.remote.Connected()
}

// remoteContext detaches from the caller's cancellation so a closed HTTP
// request does not abort propagation of a change that is already stored.
func (o *Orchestrator) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.opts.RemoteTimeout)
}

// record logs a failed outcome and passes it through.
func record(out Outcome) Outcome {
	switch {
	case out.Err != nil:
		appLog.Warn("remote sync failed; local change kept", out.Err,
			"op", string(out.Op), "appointment_id", out.AppointmentID, "remote_id", out.RemoteID)
	case out.Skipped:
		appLog.Debug("remote sync skipped", "op", string(out.Op), "appointment_id", out.AppointmentID)
	default:
		appLog.Debug("remote sync done", "op", string(out.Op), "appointment_id", out.AppointmentID, "remote_id", out.RemoteID)
	}
	return out
}

// CreateAppointment stores a and then mirrors it to the remote calendar.
// A missing id is generated. The returned appointment carries the remote
// id when the remote write succeeded.
func (o *Orchestrator) CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, Outcome, error) {
	if a.ID == "" {
		a.ID = store.NewID()
	}
	a.RemoteEventID = ""

	stored, err := o.store.CreateAppointment(a)
	if err != nil {
		return model.Appointment{}, Outcome{}, err
	}

	out := Outcome{Op: OpCreate, AppointmentID: stored.ID}
	if !o.connected() {
		out.Skipped = true
		return stored, record(out), nil
	}

	rctx, cancel := o.remoteContext(ctx)
	defer cancel()

	remoteID, err := o.remote.CreateRemote(rctx, stored)
	if err != nil {
		out.Err = err
		return stored, record(out), nil
	}
	out.RemoteID = remoteID

	linked, err := o.store.LinkRemote(stored.ID, remoteID)
	if err != nil {
		// Deleted locally while the remote write was in flight.
		out.Err = err
		return stored, record(out), nil
	}
	return linked, record(out), nil
}

// UpdateAppointment applies patch locally and, if the record has been
// synced before, pushes the new state.
func (o *Orchestrator) UpdateAppointment(ctx context.Context, id string, patch model.AppointmentPatch) (model.Appointment, Outcome, error) {
	patch.RemoteEventID = nil

	updated, err := o.store.UpdateAppointment(id, patch)
	if err != nil {
		return model.Appointment{}, Outcome{}, err
	}

	out := Outcome{Op: OpUpdate, AppointmentID: id, RemoteID: updated.RemoteEventID}
	if updated.RemoteEventID == "" || !o.connected() {
		out.Skipped = true
		return updated, record(out), nil
	}

	rctx, cancel := o.remoteContext(ctx)
	defer cancel()

	out.Err = o.remote.UpdateRemote(rctx, updated.RemoteEventID, updated)
	return updated, record(out), nil
}

// DeleteAppointment removes the record locally and, if it had been
// synced, from the remote calendar. Deleting an unknown id is a no-op.
func (o *Orchestrator) DeleteAppointment(ctx context.Context, id string) (Outcome, error) {
	deleted, existed, err := o.store.DeleteAppointment(id)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Op: OpDelete, AppointmentID: id, RemoteID: deleted.RemoteEventID}
	if !existed || deleted.RemoteEventID == "" || !o.connected() {
		out.Skipped = true
		return record(out), nil
	}

	rctx, cancel := o.remoteContext(ctx)
	defer cancel()

	out.Err = o.remote.DeleteRemote(rctx, deleted.RemoteEventID)
	return record(out), nil
}

// PushUnsynced creates remote events for local appointments that have
// none yet. It is the manual retry for creates that failed earlier.
func (o *Orchestrator) PushUnsynced(ctx context.Context) ([]Outcome, error) {
	if !o.connected() {
		return nil, ErrNotConnected
	}

	var outcomes []Outcome
	for _, a := range o.store.Appointments() {
		if a.RemoteEventID != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		out := Outcome{Op: OpCreate, AppointmentID: a.ID}
		remoteID, err := o.remote.CreateRemote(ctx, a)
		if err != nil {
			out.Err = err
			outcomes = append(outcomes, record(out))
			continue
		}
		out.RemoteID = remoteID
		if _, err := o.store.LinkRemote(a.ID, remoteID); err != nil {
			out.Err = err
		}
		outcomes = append(outcomes, record(out))
	}
	return outcomes, nil
}

// Window is the sync-in range around now.
func (o *Orchestrator) Window() (from, to time.Time) {
	now := o.opts.Now()
	return now.AddDate(0, -o.opts.WindowMonthsBefore, 0), now.AddDate(0, o.opts.WindowMonthsAfter, 0)
}

// SyncFromRemote lists the remote window and merges it into the store.
// Any failure aborts the pass before anything is merged and is returned
// as a *ReconciliationError.
func (o *Orchestrator) SyncFromRemote(ctx context.Context) (Report, error) {
	o.syncMu.Lock()
	defer o.syncMu.Unlock()

	o.setRunning()
	rep, err := o.syncFromRemote(ctx)
	o.finish(rep, err)
	return rep, err
}

func (o *Orchestrator) syncFromRemote(ctx context.Context) (Report, error) {
	if !o.connected() {
		return Report{}, &ReconciliationError{Stage: "connect", Err: ErrNotConnected}
	}

	from, to := o.Window()
	rep := Report{From: from, To: to}

	incoming, err := o.remote.ListRemote(ctx, from, to)
	if err != nil {
		stage := "list"
		var rse *gcal.RemoteSyncError
		if errors.As(err, &rse) && rse.Op == "download" {
			stage = "photos"
		}
		return rep, &ReconciliationError{Stage: stage, Err: err}
	}
	rep.Fetched = len(incoming)

	res, err := o.store.MergeSyncedBatch(incoming)
	if err != nil {
		return rep, &ReconciliationError{Stage: "merge", Err: err}
	}
	rep.Updated = res.Updated
	rep.Added = res.Added
	rep.At = o.opts.Now()
	return rep, nil
}

func (o *Orchestrator) setRunning() {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	o.status.Running = true
	o.status.LastTry = o.opts.Now()
}

func (o *Orchestrator) finish(rep Report, err error) {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	o.status.Running = false
	if err != nil {
		o.status.LastErr = err.Error()
		appLog.Error("sync from remote failed", err)
		return
	}
	o.status.LastErr = ""
	o.status.Last = &rep
	appLog.Info("sync from remote done",
		"fetched", rep.Fetched, "updated", rep.Updated, "added", rep.Added,
		"from", rep.From.Format(time.DateOnly), "to", rep.To.Format(time.DateOnly))
}

// Status returns the last sync-from-remote attempt.
func (o *Orchestrator) Status() Status {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	st := o.status
	if st.Last != nil {
		last := *st.Last
		st.Last = &last
	}
	return st
}

// Connected reports whether a remote account is linked.
func (o *Orchestrator) Connected() bool {
	return o.connected()
}
