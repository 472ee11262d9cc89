package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTranscript(t *testing.T) {
	f := newHandlerFixture(t)
	s := f.manager.Start("room-1")

	rec := f.do(t, http.MethodPost, "/calls/"+s.ID+"/turns", map[string]string{"text": "what are your hours?"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, f.ledger.Close(context.Background()))

	rec = f.do(t, http.MethodGet, "/admin/sessions/"+s.ID+"/transcript", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transcriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Lines, 2)
	assert.Equal(t, "caller", resp.Lines[0].Speaker)
	assert.Equal(t, "what are your hours?", resp.Lines[0].Text)
	assert.Equal(t, "assistant", resp.Lines[1].Speaker)
}

func TestGetTranscriptEmptySession(t *testing.T) {
	f := newHandlerFixture(t)
	require.NoError(t, f.ledger.Close(context.Background()))

	rec := f.do(t, http.MethodGet, "/admin/sessions/never-spoke/transcript", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transcriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Lines)
}

func TestGetSessionState(t *testing.T) {
	f := newHandlerFixture(t)
	s := f.manager.Start("room-9")

	rec := f.do(t, http.MethodGet, "/admin/sessions/"+s.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "greeter", resp.Role)
	assert.Equal(t, "room-9", resp.RoomID)
	assert.False(t, resp.Verified)

	rec = f.do(t, http.MethodGet, "/admin/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSchedule(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/schedule/2024-01-08", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"booked":0`)
	assert.Contains(t, rec.Body.String(), `"next_available":"08:00"`)

	rec = f.do(t, http.MethodGet, "/admin/schedule/not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAppointment(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	p, err := f.directory.Create(ctx, "Marie Tremblay", "514-555-0100", "1990-05-01", "")
	require.NoError(t, err)
	appt, err := f.cal.Book(ctx, p.ID, "2024-01-08", "09:00", 30, "")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/admin/appointments/"+appt.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	// The slot is free again after cancellation.
	conflict, err := f.cal.CheckConflict(ctx, "2024-01-08", "09:00", 30)
	require.NoError(t, err)
	assert.Nil(t, conflict)

	rec = f.do(t, http.MethodPost, "/admin/appointments/missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPatientHistory(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	p, err := f.directory.Create(ctx, "Jean Roy", "438-555-0123", "1985-03-12", "")
	require.NoError(t, err)
	appt, err := f.cal.Book(ctx, p.ID, "2024-01-08", "10:00", 30, "")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/admin/patients/"+p.ID+"/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp patientHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, p.ID, resp.PatientID)
	assert.Equal(t, []string{appt.ID}, resp.AppointmentIDs)

	rec = f.do(t, http.MethodGet, "/admin/patients/unknown/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"appointment_ids":[]`)
}
