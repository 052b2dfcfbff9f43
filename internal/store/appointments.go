package store

import (
	"fmt"
	"sort"

	appLog "nailsync/internal/log"
	"nailsync/internal/model"
)

func appointmentID(a model.Appointment) string { return a.ID }

// Appointments returns a snapshot sorted by date.
func (s *Store) Appointments() []model.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Appointment, len(s.appointments))
	for i, a := range s.appointments {
		out[i] = a.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *Store) Appointment(id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := indexOf(s.appointments, id, appointmentID)
	if i < 0 {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return s.appointments[i].Clone(), nil
}

// CreateAppointment inserts a. It fails if the id is taken or the remote
// event id is already linked to another appointment. Zero timestamps are
// filled in.
func (s *Store) CreateAppointment(a model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := a.Validate(); err != nil {
		return model.Appointment{}, err
	}
	if indexOf(s.appointments, a.ID, appointmentID) >= 0 {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", a.ID, ErrAlreadyExists)
	}
	if a.RemoteEventID != "" && s.remoteOwner(a.RemoteEventID) != "" {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", a.ID, ErrDuplicateRemote)
	}

	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	a = a.Clone()

	if err := s.commit(appendCopy(s.appointments, a), s.pressOns, s.availabilities); err != nil {
		return model.Appointment{}, err
	}
	return a.Clone(), nil
}

// UpdateAppointment merges patch into the record and refreshes UpdatedAt.
func (s *Store) UpdateAppointment(id string, patch model.AppointmentPatch) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.appointments, id, appointmentID)
	if i < 0 {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}

	a := s.appointments[i].Clone()
	patch.Apply(&a)
	if err := a.Validate(); err != nil {
		return model.Appointment{}, err
	}
	if a.RemoteEventID != "" {
		if owner := s.remoteOwner(a.RemoteEventID); owner != "" && owner != id {
			return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrDuplicateRemote)
		}
	}
	a.UpdatedAt = s.now()

	if err := s.commit(replaced(s.appointments, i, a), s.pressOns, s.availabilities); err != nil {
		return model.Appointment{}, err
	}
	return a.Clone(), nil
}

// LinkRemote records remoteID on appointment id. If a sync-from-remote
// already imported that event as a separate record (its id is the remote
// id), the import is dropped so the event keeps a single local owner. Any
// other owner is a conflict.
func (s *Store) LinkRemote(id, remoteID string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.appointments, id, appointmentID)
	if i < 0 {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}

	dup := -1
	for j, a := range s.appointments {
		if j == i || a.RemoteEventID != remoteID {
			continue
		}
		if a.ID != remoteID {
			return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrDuplicateRemote)
		}
		dup = j
	}

	a := s.appointments[i].Clone()
	a.RemoteEventID = remoteID
	a.UpdatedAt = s.now()

	next := replaced(s.appointments, i, a)
	if dup >= 0 {
		next = without(next, dup)
	}
	if err := s.commit(next, s.pressOns, s.availabilities); err != nil {
		return model.Appointment{}, err
	}
	if dup >= 0 {
		appLog.Info("imported duplicate folded into local record", "appointment_id", id, "remote_id", remoteID)
	}
	return a.Clone(), nil
}

// DeleteAppointment removes the record and returns it. Deleting an absent
// id is a no-op: existed is false and nothing is written.
func (s *Store) DeleteAppointment(id string) (deleted model.Appointment, existed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.appointments, id, appointmentID)
	if i < 0 {
		return model.Appointment{}, false, nil
	}
	deleted = s.appointments[i]
	if err := s.commit(without(s.appointments, i), s.pressOns, s.availabilities); err != nil {
		return model.Appointment{}, true, err
	}
	return deleted, true, nil
}

// remoteOwner returns the id of the appointment linked to remoteID, if any.
func (s *Store) remoteOwner(remoteID string) string {
	for _, a := range s.appointments {
		if a.RemoteEventID == remoteID {
			return a.ID
		}
	}
	return ""
}
