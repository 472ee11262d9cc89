package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var apptColumns = []string{
	"appointment_id", "patient_id", "appointment_date", "appointment_time", "duration_minutes",
	"treatment_type", "status", "notes", "estimated_cost_range", "created_at", "updated_at",
}

func TestPostgresStoreCreateLocksDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	appt := Appointment{
		ID: "appt-1", PatientID: "pat-1", Date: "2024-01-08", Time: "09:00",
		DurationMinutes: 45, Status: StatusScheduled, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("2024-01-08").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT appointment_id, patient_id`).
		WithArgs("2024-01-08").
		WillReturnRows(pgxmock.NewRows(apptColumns))
	mock.ExpectExec(`INSERT INTO appointments`).
		WithArgs(appt.ID, appt.PatientID, appt.Date, appt.Time, appt.DurationMinutes, "",
			"scheduled", "", "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	store := NewPostgresStore(mock)
	validated := false
	created, err := store.Create(context.Background(), appt, func(existing []Appointment) error {
		validated = true
		assert.Empty(t, existing)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, validated, "validate must run inside the booking transaction")
	assert.Equal(t, appt.ID, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreateValidateFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	existingRows := pgxmock.NewRows(apptColumns).
		AddRow("appt-0", "pat-0", "2024-01-08", "09:00", 45, "", "scheduled", "", "", now, now)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("2024-01-08").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT appointment_id, patient_id`).
		WithArgs("2024-01-08").
		WillReturnRows(existingRows)
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	appt := Appointment{ID: "appt-1", PatientID: "pat-1", Date: "2024-01-08", Time: "09:30",
		DurationMinutes: 30, Status: StatusScheduled, CreatedAt: now, UpdatedAt: now}

	_, err = store.Create(context.Background(), appt, func(existing []Appointment) error {
		require.Len(t, existing, 1)
		return ErrSlotUnavailable
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSetStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs("cancelled", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostgresStore(mock)
	assert.ErrorIs(t, store.SetStatus(context.Background(), "missing", StatusCancelled), ErrNotFound)
}
