// Package patients owns patient identity records. Identity matching is always
// exact; fuzzy matching is never applied to identity fields.
package patients

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status marks whether a patient record is in active use.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Patient is one directory record. Phone is stored in canonical
// 1-XXX-XXX-XXXX form and uniquely identifies the patient.
type Patient struct {
	ID           string     `json:"patient_id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	DateOfBirth  string     `json:"date_of_birth,omitempty"` // YYYY-MM-DD, optional until verification
	Email        string     `json:"email,omitempty"`
	RegisteredAt time.Time  `json:"registration_date"`
	LastVisit    *time.Time `json:"last_visit,omitempty"`
	Status       Status     `json:"status"`
}

// ErrInvalidPhone indicates the supplied phone number does not contain a
// valid North American digit count.
var ErrInvalidPhone = errors.New("patients: invalid phone number")

// NormalizePhone strips non-digits and renders the canonical
// 1-XXX-XXX-XXXX form. Ten digits get the leading country code added; eleven
// digits must already start with 1. Normalization is idempotent. Anything
// else returns ErrInvalidPhone so the caller can ask the caller to repeat.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10:
		d = "1" + d
	case len(d) == 11 && d[0] == '1':
		// already has country code
	default:
		return "", fmt.Errorf("%w: got %d digits", ErrInvalidPhone, len(d))
	}

	return fmt.Sprintf("%s-%s-%s-%s", d[0:1], d[1:4], d[4:7], d[7:11]), nil
}

// ValidDOB reports whether a date of birth string is a real YYYY-MM-DD date.
func ValidDOB(dob string) bool {
	_, err := time.Parse("2006-01-02", dob)
	return err == nil
}
