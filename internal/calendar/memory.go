package calendar

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests. Writes to one
// date serialize on that date's lock, so concurrent bookings of the same slot
// cannot both pass the conflict check.
type MemoryStore struct {
	mu        sync.Mutex
	byDate    map[string][]string
	byID      map[string]*Appointment
	dateLocks map[string]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory appointment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDate:    make(map[string][]string),
		byID:      make(map[string]*Appointment),
		dateLocks: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) lockDate(date string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.dateLocks[date]
	if !ok {
		l = &sync.Mutex{}
		s.dateLocks[date] = l
	}
	return l
}

// ListActive implements Store.
func (s *MemoryStore) ListActive(_ context.Context, date string) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(date), nil
}

func (s *MemoryStore) activeLocked(date string) []Appointment {
	var out []Appointment
	for _, id := range s.byDate[date] {
		if a := s.byID[id]; a != nil && a.Active() {
			out = append(out, *a)
		}
	}
	return out
}

// Create implements Store. The validate callback runs under the date lock
// against the appointments that are active at insert time.
func (s *MemoryStore) Create(_ context.Context, appt Appointment, validate func(existing []Appointment) error) (Appointment, error) {
	dl := s.lockDate(appt.Date)
	dl.Lock()
	defer dl.Unlock()

	s.mu.Lock()
	existing := s.activeLocked(appt.Date)
	s.mu.Unlock()

	if validate != nil {
		if err := validate(existing); err != nil {
			return Appointment{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := appt
	s.byID[appt.ID] = &cp
	s.byDate[appt.Date] = append(s.byDate[appt.Date], appt.ID)
	return appt, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return *a, nil
}

// SetStatus implements Store.
func (s *MemoryStore) SetStatus(_ context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}
