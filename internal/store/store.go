// Package store is the local system of record for appointments, press-on
// inventory and availability slots. Every mutation is persisted before it
// becomes visible to readers.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "nailsync/internal/log"
	"nailsync/internal/model"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrDuplicateRemote  = errors.New("remote event id already linked to another appointment")
	ErrInvalidInventory = errors.New("invalid press-on")
)

// Store holds the in-memory collections and writes through to a Persister.
// Writers on the same id race with last-writer-wins semantics.
type Store struct {
	mu sync.RWMutex
	p  Persister
	now func() time.Time

	appointments   []model.Appointment
	pressOns       []model.PressOn
	availabilities []model.Availability
}

type Option func(*Store)

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open rehydrates a store from p.
func Open(p Persister, opts ...Option) (*Store, error) {
	if p == nil {
		return nil, errors.New("store: persister is nil")
	}
	snap, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}

	s := &Store{
		p:              p,
		now:            time.Now,
		appointments:   snap.Appointments,
		pressOns:       snap.Inventory,
		availabilities: snap.Availabilities,
	}
	for _, o := range opts {
		o(s)
	}

	appLog.Info("store rehydrated",
		"appointments", len(s.appointments),
		"pressons", len(s.pressOns),
		"availabilities", len(s.availabilities),
	)
	return s, nil
}

// NewID returns a fresh local identifier.
func NewID() string {
	return uuid.NewString()
}

// commit persists the candidate collections and, on success, swaps them in.
// Callers hold s.mu.
func (s *Store) commit(appts []model.Appointment, pos []model.PressOn, avs []model.Availability) error {
	snap := &Snapshot{
		Appointments:   appts,
		Inventory:      pos,
		Availabilities: avs,
	}
	if err := s.p.Save(snap); err != nil {
		return fmt.Errorf("store: persist: %w", err)
	}
	s.appointments = appts
	s.pressOns = pos
	s.availabilities = avs
	return nil
}

func indexOf[T any](items []T, id string, idOf func(T) string) int {
	for i := range items {
		if idOf(items[i]) == id {
			return i
		}
	}
	return -1
}

func without[T any](items []T, i int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func appendCopy[T any](items []T, v T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, v)
}

func replaced[T any](items []T, i int, v T) []T {
	out := append([]T(nil), items...)
	out[i] = v
	return out
}
