package patients

import (
	"context"
	"errors"
)

// ErrNotFound indicates no active patient matched the lookup.
var ErrNotFound = errors.New("patients: not found")

// ErrDuplicatePhone indicates the normalized phone already belongs to a record.
var ErrDuplicatePhone = errors.New("patients: phone already registered")

// ErrUnknownField indicates UpdateField was given a field outside the
// post-registration set.
var ErrUnknownField = errors.New("patients: unknown field")

// Updatable fields for UpdateField. Name and phone are fixed at creation;
// only details collected later in the call may be patched in.
const (
	FieldDateOfBirth = "date_of_birth"
	FieldEmail       = "email"
)

// Directory is the patient identity store shared by all concurrent sessions.
type Directory interface {
	// FindByPhoneAndDOB returns the active patient matching BOTH fields
	// exactly, bumping their last-visit timestamp. A phone-only or DOB-only
	// match returns ErrNotFound.
	FindByPhoneAndDOB(ctx context.Context, phone, dob string) (*Patient, error)

	// Create registers a new patient. Phone is normalized before storage;
	// a duplicate normalized phone fails with ErrDuplicatePhone.
	Create(ctx context.Context, name, phone, dob, email string) (*Patient, error)

	// UpdateField patches date_of_birth or email on an existing record.
	UpdateField(ctx context.Context, patientID, field, value string) error

	// AppointmentHistory returns recent appointment identifiers for a
	// patient, newest first.
	AppointmentHistory(ctx context.Context, patientID string, limit int) ([]string, error)
}
