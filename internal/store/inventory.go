package store

import (
	"fmt"
	"sort"

	"nailsync/internal/model"
)

func availabilityID(a model.Availability) string { return a.ID }
func pressOnID(p model.PressOn) string           { return p.ID }

// Availabilities returns a snapshot sorted by date then start time.
func (s *Store) Availabilities() []model.Availability {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]model.Availability(nil), s.availabilities...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (s *Store) CreateAvailability(a model.Availability) (model.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = NewID()
	}
	if indexOf(s.availabilities, a.ID, availabilityID) >= 0 {
		return model.Availability{}, fmt.Errorf("availability %s: %w", a.ID, ErrAlreadyExists)
	}
	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	if err := s.commit(s.appointments, s.pressOns, appendCopy(s.availabilities, a)); err != nil {
		return model.Availability{}, err
	}
	return a, nil
}

// CreateAvailabilities inserts a batch in one write, skipping slots whose
// date and start time already exist. It returns the slots added.
func (s *Store) CreateAvailabilities(slots []model.Availability) ([]model.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := func(a model.Availability) string {
		return a.Date.Format("2006-01-02") + " " + a.StartTime
	}
	seen := make(map[string]struct{}, len(s.availabilities))
	for _, a := range s.availabilities {
		seen[key(a)] = struct{}{}
	}

	now := s.now()
	next := append([]model.Availability(nil), s.availabilities...)
	var added []model.Availability
	for _, a := range slots {
		if _, dup := seen[key(a)]; dup {
			continue
		}
		seen[key(a)] = struct{}{}
		if a.ID == "" {
			a.ID = NewID()
		}
		a.CreatedAt = now
		a.UpdatedAt = now
		next = append(next, a)
		added = append(added, a)
	}
	if len(added) == 0 {
		return nil, nil
	}

	if err := s.commit(s.appointments, s.pressOns, next); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *Store) UpdateAvailability(id string, patch model.AvailabilityPatch) (model.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.availabilities, id, availabilityID)
	if i < 0 {
		return model.Availability{}, fmt.Errorf("availability %s: %w", id, ErrNotFound)
	}
	a := s.availabilities[i]
	patch.Apply(&a)
	a.UpdatedAt = s.now()

	if err := s.commit(s.appointments, s.pressOns, replaced(s.availabilities, i, a)); err != nil {
		return model.Availability{}, err
	}
	return a, nil
}

// DeleteAvailability is idempotent.
func (s *Store) DeleteAvailability(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.availabilities, id, availabilityID)
	if i < 0 {
		return nil
	}
	return s.commit(s.appointments, s.pressOns, without(s.availabilities, i))
}

// PressOns returns a snapshot sorted by name.
func (s *Store) PressOns() []model.PressOn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]model.PressOn(nil), s.pressOns...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) CreatePressOn(p model.PressOn) (model.PressOn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Name == "" || p.Quantity < 0 {
		return model.PressOn{}, ErrInvalidInventory
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.Status == "" {
		p.Status = model.PressOnAvailable
	}
	if indexOf(s.pressOns, p.ID, pressOnID) >= 0 {
		return model.PressOn{}, fmt.Errorf("press-on %s: %w", p.ID, ErrAlreadyExists)
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if err := s.commit(s.appointments, appendCopy(s.pressOns, p), s.availabilities); err != nil {
		return model.PressOn{}, err
	}
	return p, nil
}

func (s *Store) UpdatePressOn(id string, patch model.PressOnPatch) (model.PressOn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.pressOns, id, pressOnID)
	if i < 0 {
		return model.PressOn{}, fmt.Errorf("press-on %s: %w", id, ErrNotFound)
	}
	p := s.pressOns[i]
	patch.Apply(&p)
	if p.Name == "" || p.Quantity < 0 {
		return model.PressOn{}, ErrInvalidInventory
	}
	p.UpdatedAt = s.now()

	if err := s.commit(s.appointments, replaced(s.pressOns, i, p), s.availabilities); err != nil {
		return model.PressOn{}, err
	}
	return p, nil
}

// DeletePressOn is idempotent.
func (s *Store) DeletePressOn(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.pressOns, id, pressOnID)
	if i < 0 {
		return nil
	}
	return s.commit(s.appointments, without(s.pressOns, i), s.availabilities)
}
