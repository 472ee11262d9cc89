package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the directory needs; narrowed for
// pgxmock injection in tests.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresDirectory is the production Directory backed by pgx.
type PostgresDirectory struct {
	pool PgxPool
}

// NewPostgresDirectory creates a directory backed by a pgx pool.
func NewPostgresDirectory(pool PgxPool) *PostgresDirectory {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresDirectory{pool: pool}
}

// FindByPhoneAndDOB implements Directory.
func (d *PostgresDirectory) FindByPhoneAndDOB(ctx context.Context, phone, dob string) (*Patient, error) {
	canonical, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	var p Patient
	var lastVisit *time.Time
	err = d.pool.QueryRow(ctx, `
		SELECT patient_id, name, phone, COALESCE(date_of_birth::text, ''), COALESCE(email, ''),
		       registration_date, last_visit, status
		FROM patients
		WHERE phone = $1 AND date_of_birth = $2::date AND status = 'active'
	`, canonical, dob).Scan(&p.ID, &p.Name, &p.Phone, &p.DateOfBirth, &p.Email, &p.RegisteredAt, &lastVisit, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patients: lookup by phone and dob: %w", err)
	}
	p.LastVisit = lastVisit

	if _, err := d.pool.Exec(ctx, `UPDATE patients SET last_visit = $1 WHERE patient_id = $2`, time.Now().UTC(), p.ID); err != nil {
		return nil, fmt.Errorf("patients: bump last visit: %w", err)
	}
	return &p, nil
}

// Create implements Directory.
func (d *PostgresDirectory) Create(ctx context.Context, name, phone, dob, email string) (*Patient, error) {
	canonical, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
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

	_, err = d.pool.Exec(ctx, `
		INSERT INTO patients (patient_id, name, phone, date_of_birth, email, registration_date, last_visit, status)
		VALUES ($1, $2, $3, NULLIF($4, '')::date, NULLIF($5, ''), $6, $7, 'active')
	`, p.ID, p.Name, p.Phone, p.DateOfBirth, p.Email, p.RegisteredAt, *p.LastVisit)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePhone
		}
		return nil, fmt.Errorf("patients: create: %w", err)
	}
	return p, nil
}

// UpdateField implements Directory.
func (d *PostgresDirectory) UpdateField(ctx context.Context, patientID, field, value string) error {
	var query string
	switch field {
	case FieldDateOfBirth:
		query = `UPDATE patients SET date_of_birth = $1::date WHERE patient_id = $2`
	case FieldEmail:
		query = `UPDATE patients SET email = $1 WHERE patient_id = $2`
	default:
		return ErrUnknownField
	}

	tag, err := d.pool.Exec(ctx, query, value, patientID)
	if err != nil {
		return fmt.Errorf("patients: update %s: %w", field, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppointmentHistory implements Directory.
func (d *PostgresDirectory) AppointmentHistory(ctx context.Context, patientID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.pool.Query(ctx, `
		SELECT appointment_id
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("patients: appointment history: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("patients: scan appointment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key")
}
