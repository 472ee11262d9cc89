package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs; narrowed for
// pgxmock injection in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is the production Store backed by pgx. Create serializes
// per date with a transaction-scoped advisory lock on the date key, so the
// conflict re-check and the insert commit atomically.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("calendar: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

const selectActive = `
	SELECT appointment_id, patient_id, appointment_date::text, appointment_time, duration_minutes,
	       COALESCE(treatment_type, ''), status, COALESCE(notes, ''), COALESCE(estimated_cost_range, ''),
	       created_at, updated_at
	FROM appointments
	WHERE appointment_date = $1::date AND status <> 'cancelled'
	ORDER BY appointment_time`

// ListActive implements Store.
func (s *PostgresStore) ListActive(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, selectActive, date)
	if err != nil {
		return nil, fmt.Errorf("calendar: query appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, appt Appointment, validate func(existing []Appointment) error) (Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Appointment{}, fmt.Errorf("calendar: begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize concurrent bookings for the same date.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, appt.Date); err != nil {
		return Appointment{}, fmt.Errorf("calendar: acquire date lock: %w", err)
	}

	rows, err := tx.Query(ctx, selectActive, appt.Date)
	if err != nil {
		return Appointment{}, fmt.Errorf("calendar: query appointments: %w", err)
	}
	existing, err := scanAppointments(rows)
	if err != nil {
		return Appointment{}, err
	}

	if validate != nil {
		if err := validate(existing); err != nil {
			return Appointment{}, err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (appointment_id, patient_id, appointment_date, appointment_time,
		                          duration_minutes, treatment_type, status, notes, estimated_cost_range,
		                          created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
	`, appt.ID, appt.PatientID, appt.Date, appt.Time, appt.DurationMinutes, appt.TreatmentID,
		string(appt.Status), appt.Notes, appt.EstimatedCostRange, appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		return Appointment{}, fmt.Errorf("calendar: insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Appointment{}, fmt.Errorf("calendar: commit booking: %w", err)
	}
	return appt, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (Appointment, error) {
	var a Appointment
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT appointment_id, patient_id, appointment_date::text, appointment_time, duration_minutes,
		       COALESCE(treatment_type, ''), status, COALESCE(notes, ''), COALESCE(estimated_cost_range, ''),
		       created_at, updated_at
		FROM appointments
		WHERE appointment_id = $1
	`, id).Scan(&a.ID, &a.PatientID, &a.Date, &a.Time, &a.DurationMinutes, &a.TreatmentID,
		&status, &a.Notes, &a.EstimatedCostRange, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("calendar: get appointment: %w", err)
	}
	a.Status = Status(status)
	return a, nil
}

// SetStatus implements Store.
func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments SET status = $1, updated_at = $2 WHERE appointment_id = $3
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("calendar: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		var a Appointment
		var status string
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Date, &a.Time, &a.DurationMinutes, &a.TreatmentID,
			&status, &a.Notes, &a.EstimatedCostRange, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("calendar: scan appointment: %w", err)
		}
		a.Status = Status(status)
		out = append(out, a)
	}
	return out, rows.Err()
}
