// Package calendar validates appointment requests against clinic operating
// hours and existing bookings, and owns the appointment store.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Status of an appointment. Only non-cancelled appointments occupy calendar
// time.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Appointment is one booked visit. Dates are YYYY-MM-DD, times HH:MM; the
// occupied interval is the half-open [Time, Time+Duration). EstimatedCostRange
// is copied from the treatment at booking time and never recomputed.
type Appointment struct {
	ID                 string    `json:"appointment_id"`
	PatientID          string    `json:"patient_id"`
	Date               string    `json:"appointment_date"`
	Time               string    `json:"appointment_time"`
	DurationMinutes    int       `json:"duration_minutes"`
	TreatmentID        string    `json:"treatment_type,omitempty"`
	Status             Status    `json:"status"`
	Notes              string    `json:"notes,omitempty"`
	EstimatedCostRange string    `json:"estimated_cost_range,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Active reports whether the appointment still occupies its slot.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// Slot is a candidate (date, time, duration) triple offered to a caller.
type Slot struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Conflict describes the existing appointment a proposed slot overlaps.
type Conflict struct {
	AppointmentID string
	Time          string
	DurationMinutes int
}

var (
	// ErrInvalidSlot indicates a malformed date or time string.
	ErrInvalidSlot = errors.New("calendar: invalid date or time")
	// ErrOutsideBusinessHours indicates the interval leaves the clinic's
	// operating windows.
	ErrOutsideBusinessHours = errors.New("calendar: outside business hours")
	// ErrSlotUnavailable indicates the commit-time re-validation failed:
	// the slot conflicts or fell outside hours when the booking was applied.
	ErrSlotUnavailable = errors.New("calendar: slot unavailable")
	// ErrNotFound indicates the appointment does not exist.
	ErrNotFound = errors.New("calendar: appointment not found")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

func parseDate(date string) (time.Time, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSlot, date)
	}
	return d, nil
}

// timeToMinutes converts HH:MM to minutes since midnight.
func timeToMinutes(t string) (int, error) {
	parsed, err := time.Parse(timeLayout, t)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, t)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// minutesToTime converts minutes since midnight to HH:MM.
func minutesToTime(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// overlaps is the half-open interval overlap test.
func overlaps(startA, endA, startB, endB int) bool {
	return startA < endB && startB < endA
}
