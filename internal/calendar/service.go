package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smileright/dental-frontdesk/internal/clinic"
	"github.com/smileright/dental-frontdesk/internal/knowledge"
	"github.com/smileright/dental-frontdesk/pkg/logging"
)

// Store persists appointments. Create runs the supplied validate callback
// against the date's current active appointments inside the same critical
// section as the insert, so check-then-insert is atomic per date.
type Store interface {
	ListActive(ctx context.Context, date string) ([]Appointment, error)
	Create(ctx context.Context, appt Appointment, validate func(existing []Appointment) error) (Appointment, error)
	Get(ctx context.Context, id string) (Appointment, error)
	SetStatus(ctx context.Context, id string, status Status) error
}

// BookingRecorder receives successful bookings. The in-memory patient
// directory maintains per-patient history through it; the Postgres directory
// derives history from the appointments table and needs no recorder.
type BookingRecorder interface {
	RecordAppointment(patientID, appointmentID string)
}

// Options tunes slot scanning. Zero values fall back to clinic defaults.
type Options struct {
	SlotStepMinutes        int
	DefaultDurationMinutes int
	SuggestDaysAhead       int
	Recorder               BookingRecorder
}

func (o Options) withDefaults() Options {
	if o.SlotStepMinutes <= 0 {
		o.SlotStepMinutes = 30
	}
	if o.DefaultDurationMinutes <= 0 {
		o.DefaultDurationMinutes = 30
	}
	if o.SuggestDaysAhead <= 0 {
		o.SuggestDaysAhead = 7
	}
	return o
}

// Service validates appointment requests against clinic hours and existing
// bookings, proposes alternatives, and commits bookings atomically.
type Service struct {
	clinic  *clinic.Config
	store   Store
	catalog *knowledge.Catalog
	opts    Options
	logger  *logging.Logger
}

// NewService wires a calendar service. The clinic config and store are
// required; catalog may be nil when treatment durations are not needed.
func NewService(cfg *clinic.Config, store Store, catalog *knowledge.Catalog, opts Options, logger *logging.Logger) *Service {
	if cfg == nil {
		panic("calendar: clinic config required")
	}
	if store == nil {
		panic("calendar: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		clinic:  cfg,
		store:   store,
		catalog: catalog,
		opts:    opts.withDefaults(),
		logger:  logger.Component("calendar"),
	}
}

// IsWithinBusinessHours reports whether the whole interval
// [time, time+duration) falls inside one opening window on a business day.
func (s *Service) IsWithinBusinessHours(date, timeStr string, durationMinutes int) (bool, error) {
	day, err := parseDate(date)
	if err != nil {
		return false, err
	}
	start, err := timeToMinutes(timeStr)
	if err != nil {
		return false, err
	}
	if durationMinutes <= 0 {
		return false, fmt.Errorf("%w: duration %d", ErrInvalidSlot, durationMinutes)
	}
	for _, w := range s.clinic.WindowsFor(day.Weekday()) {
		if w.Contains(start, durationMinutes) {
			return true, nil
		}
	}
	return false, nil
}

// CheckConflict returns the first existing non-cancelled appointment whose
// interval overlaps the proposed one, or nil when the slot is free. This is
// advisory only; Book re-checks at commit time.
func (s *Service) CheckConflict(ctx context.Context, date, timeStr string, durationMinutes int) (*Conflict, error) {
	start, err := timeToMinutes(timeStr)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListActive(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("calendar: list appointments: %w", err)
	}
	return findConflict(existing, start, durationMinutes), nil
}

// SuggestAlternatives scans forward in fixed steps from the requested slot,
// within business hours on the requested day and then from opening time on
// subsequent open days, returning the first count free slots. Deterministic
// given the same stored appointments.
func (s *Service) SuggestAlternatives(ctx context.Context, date, timeStr string, durationMinutes, count int) ([]Slot, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	from, err := timeToMinutes(timeStr)
	if err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		durationMinutes = s.opts.DefaultDurationMinutes
	}
	if count <= 0 {
		count = 3
	}

	step := s.opts.SlotStepMinutes
	var slots []Slot
	for offset := 0; offset <= s.opts.SuggestDaysAhead && len(slots) < count; offset++ {
		current := day.AddDate(0, 0, offset)
		windows := s.clinic.WindowsFor(current.Weekday())
		if len(windows) == 0 {
			continue
		}
		dateStr := current.Format(dateLayout)
		existing, err := s.store.ListActive(ctx, dateStr)
		if err != nil {
			return nil, fmt.Errorf("calendar: list appointments: %w", err)
		}

		for _, w := range windows {
			start := w.Open
			if offset == 0 && from > start {
				// Round the requested time up to the next step boundary.
				start = ((from + step - 1) / step) * step
			}
			for t := start; t+durationMinutes <= w.Close && len(slots) < count; t += step {
				if findConflict(existing, t, durationMinutes) == nil {
					slots = append(slots, Slot{Date: dateStr, Time: minutesToTime(t), DurationMinutes: durationMinutes})
				}
			}
		}
	}
	return slots, nil
}

// Book commits an appointment. Business hours and conflicts are re-validated
// inside the store's per-date critical section; a commit-time failure of
// either check returns ErrSlotUnavailable even if an earlier advisory check
// passed. A zero duration falls back to the treatment's duration, then the
// clinic default. The estimated cost range is copied from the treatment at
// booking time and never recomputed.
func (s *Service) Book(ctx context.Context, patientID, date, timeStr string, durationMinutes int, treatmentID string) (Appointment, error) {
	if patientID == "" {
		return Appointment{}, errors.New("calendar: patient id required")
	}
	start, err := timeToMinutes(timeStr)
	if err != nil {
		return Appointment{}, err
	}
	if _, err := parseDate(date); err != nil {
		return Appointment{}, err
	}

	var costRange string
	if treatmentID != "" && s.catalog != nil {
		if t, ok := s.catalog.ByID(treatmentID); ok {
			if durationMinutes <= 0 {
				durationMinutes = t.DurationMinutes
			}
			costRange = fmt.Sprintf("$%d-$%d", t.PriceMin, t.PriceMax)
		}
	}
	if durationMinutes <= 0 {
		durationMinutes = s.opts.DefaultDurationMinutes
	}

	within, err := s.IsWithinBusinessHours(date, timeStr, durationMinutes)
	if err != nil {
		return Appointment{}, err
	}
	if !within {
		return Appointment{}, ErrOutsideBusinessHours
	}

	now := time.Now().UTC()
	appt := Appointment{
		ID:                 uuid.NewString(),
		PatientID:          patientID,
		Date:               date,
		Time:               timeStr,
		DurationMinutes:    durationMinutes,
		TreatmentID:        treatmentID,
		Status:             StatusScheduled,
		EstimatedCostRange: costRange,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	created, err := s.store.Create(ctx, appt, func(existing []Appointment) error {
		if c := findConflict(existing, start, durationMinutes); c != nil {
			return fmt.Errorf("%w: conflicts with %s at %s", ErrSlotUnavailable, c.AppointmentID, c.Time)
		}
		return nil
	})
	if err != nil {
		return Appointment{}, err
	}

	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordAppointment(patientID, created.ID)
	}

	s.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"patient_id", patientID,
		"date", date,
		"time", timeStr,
		"duration_minutes", durationMinutes,
	)
	return created, nil
}

// Cancel flips an appointment to cancelled, freeing its slot.
func (s *Service) Cancel(ctx context.Context, appointmentID string) error {
	if err := s.store.SetStatus(ctx, appointmentID, StatusCancelled); err != nil {
		return err
	}
	s.logger.Info("appointment cancelled", "appointment_id", appointmentID)
	return nil
}

// Summary describes one day's schedule load.
type Summary struct {
	Date          string `json:"date"`
	Booked        int    `json:"booked"`
	NextAvailable string `json:"next_available,omitempty"`
}

// ScheduleSummary reports how many active appointments a date holds and the
// next free slot from opening time.
func (s *Service) ScheduleSummary(ctx context.Context, date string) (Summary, error) {
	if _, err := parseDate(date); err != nil {
		return Summary{}, err
	}
	existing, err := s.store.ListActive(ctx, date)
	if err != nil {
		return Summary{}, fmt.Errorf("calendar: list appointments: %w", err)
	}
	out := Summary{Date: date, Booked: len(existing)}

	slots, err := s.SuggestAlternatives(ctx, date, "00:00", s.opts.DefaultDurationMinutes, 1)
	if err != nil {
		return Summary{}, err
	}
	if len(slots) > 0 && slots[0].Date == date {
		out.NextAvailable = slots[0].Time
	}
	return out, nil
}

// DefaultDuration exposes the configured fallback appointment length.
func (s *Service) DefaultDuration() int {
	return s.opts.DefaultDurationMinutes
}

func findConflict(existing []Appointment, start, durationMinutes int) *Conflict {
	end := start + durationMinutes
	for _, a := range existing {
		if !a.Active() {
			continue
		}
		aStart, err := timeToMinutes(a.Time)
		if err != nil {
			continue
		}
		if overlaps(start, end, aStart, aStart+a.DurationMinutes) {
			return &Conflict{AppointmentID: a.ID, Time: a.Time, DurationMinutes: a.DurationMinutes}
		}
	}
	return nil
}
