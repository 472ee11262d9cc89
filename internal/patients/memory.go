package patients

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-memory Directory used in development and tests.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byPhone map[string]*Patient
	byID    map[string]*Patient
	history map[string][]string
	now     func() time.Time
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byPhone: make(map[string]*Patient),
		byID:    make(map[string]*Patient),
		history: make(map[string][]string),
		now:     time.Now,
	}
}

// FindByPhoneAndDOB implements Directory.
func (d *MemoryDirectory) FindByPhoneAndDOB(_ context.Context, phone, dob string) (*Patient, error) {
	canonical, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byPhone[canonical]
	if !ok || p.Status != StatusActive || p.DateOfBirth == "" || p.DateOfBirth != dob {
		return nil, ErrNotFound
	}

	visited := d.now().UTC()
	p.LastVisit = &visited

	cp := *p
	return &cp, nil
}

// Create implements Directory.
func (d *MemoryDirectory) Create(_ context.Context, name, phone, dob, email string) (*Patient, error) {
	canonical, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byPhone[canonical]; exists {
		return nil, ErrDuplicatePhone
	}

	now := d.now().UTC()
	p := &Patient{
		ID:           uuid.NewString(),
		Name:         name,
		Phone:        canonical,
		DateOfBirth:  dob,
		Email:        email,
		RegisteredAt: now,
		LastVisit:    &now,
		Status:       StatusActive,
	}
	d.byPhone[canonical] = p
	d.byID[p.ID] = p

	cp := *p
	return &cp, nil
}

// UpdateField implements Directory.
func (d *MemoryDirectory) UpdateField(_ context.Context, patientID, field, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byID[patientID]
	if !ok {
		return ErrNotFound
	}
	switch field {
	case FieldDateOfBirth:
		p.DateOfBirth = value
	case FieldEmail:
		p.Email = value
	default:
		return ErrUnknownField
	}
	return nil
}

// AppointmentHistory implements Directory.
func (d *MemoryDirectory) AppointmentHistory(_ context.Context, patientID string, limit int) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.history[patientID]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

// RecordAppointment prepends an appointment to a patient's history. The
// calendar service calls it after a successful booking when configured as
// its recorder.
func (d *MemoryDirectory) RecordAppointment(patientID, appointmentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history[patientID] = append([]string{appointmentID}, d.history[patientID]...)
}
