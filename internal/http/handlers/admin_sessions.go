package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smileright/dental-frontdesk/internal/calendar"
	"github.com/smileright/dental-frontdesk/internal/conversation"
	"github.com/smileright/dental-frontdesk/internal/ledger"
	"github.com/smileright/dental-frontdesk/internal/patients"
	"github.com/smileright/dental-frontdesk/pkg/logging"
)

// TranscriptReader reads flushed transcript entries for one session. Both the
// Postgres sink and the in-memory sink satisfy it.
type TranscriptReader interface {
	Transcript(ctx context.Context, sessionID string) ([]ledger.Entry, error)
}

// AdminSessionsHandler serves the admin view of live sessions, transcripts,
// the day schedule, and appointment management.
type AdminSessionsHandler struct {
	manager     *conversation.Manager
	transcripts TranscriptReader
	directory   patients.Directory
	calendar    *calendar.Service
	logger      *logging.Logger
}

// NewAdminSessionsHandler creates the admin sessions handler. transcripts may
// be nil when recording is disabled.
func NewAdminSessionsHandler(manager *conversation.Manager, transcripts TranscriptReader, directory patients.Directory, cal *calendar.Service, logger *logging.Logger) *AdminSessionsHandler {
	if manager == nil {
		panic("handlers: session manager cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionsHandler{
		manager:     manager,
		transcripts: transcripts,
		directory:   directory,
		calendar:    cal,
		logger:      logger.Component("http.admin"),
	}
}

type transcriptLine struct {
	Speaker string `json:"speaker"`
	Role    string `json:"role"`
	Text    string `json:"text"`
	At      string `json:"at"`
}

type transcriptResponse struct {
	SessionID string           `json:"session_id"`
	Lines     []transcriptLine `json:"lines"`
}

// GetTranscript returns the recorded transcript of one session.
// GET /admin/sessions/{sessionID}/transcript
func (h *AdminSessionsHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "missing sessionID", http.StatusBadRequest)
		return
	}
	if h.transcripts == nil {
		http.Error(w, "recording disabled", http.StatusNotFound)
		return
	}

	entries, err := h.transcripts.Transcript(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("transcript read failed", "error", err, "session_id", sessionID)
		http.Error(w, "failed to read transcript", http.StatusInternalServerError)
		return
	}

	resp := transcriptResponse{SessionID: sessionID, Lines: make([]transcriptLine, 0, len(entries))}
	for _, e := range entries {
		resp.Lines = append(resp.Lines, transcriptLine{
			Speaker: e.Speaker,
			Role:    e.Role,
			Text:    e.Text,
			At:      e.At.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type sessionStateResponse struct {
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id,omitempty"`
	Role      string `json:"role"`
	Turns     int    `json:"turns"`
	Transfers int    `json:"transfers"`
	Verified  bool   `json:"verified"`
	Closed    bool   `json:"closed"`
}

// GetSession returns the live state of one session.
// GET /admin/sessions/{sessionID}
func (h *AdminSessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	s, ok := h.manager.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sessionStateResponse{
		SessionID: s.ID,
		RoomID:    s.RoomID,
		Role:      string(s.Role),
		Turns:     s.Turns,
		Transfers: len(s.Transfers),
		Verified:  s.Verified(),
		Closed:    s.Closed,
	})
}

// GetSchedule returns one day's booking load.
// GET /admin/schedule/{date}
func (h *AdminSessionsHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if h.calendar == nil {
		http.Error(w, "calendar unavailable", http.StatusNotFound)
		return
	}
	date := chi.URLParam(r, "date")
	summary, err := h.calendar.ScheduleSummary(r.Context(), date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// CancelAppointment flips an appointment to cancelled, freeing its slot.
// POST /admin/appointments/{appointmentID}/cancel
func (h *AdminSessionsHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	if h.calendar == nil {
		http.Error(w, "calendar unavailable", http.StatusNotFound)
		return
	}
	appointmentID := chi.URLParam(r, "appointmentID")
	if err := h.calendar.Cancel(r.Context(), appointmentID); err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("cancel failed", "error", err, "appointment_id", appointmentID)
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"appointment_id": appointmentID,
		"status":         "cancelled",
	})
}

type patientHistoryResponse struct {
	PatientID      string   `json:"patient_id"`
	AppointmentIDs []string `json:"appointment_ids"`
}

// GetPatientHistory returns a patient's recent appointment ids, newest first.
// GET /admin/patients/{patientID}/appointments
func (h *AdminSessionsHandler) GetPatientHistory(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		http.Error(w, "directory unavailable", http.StatusNotFound)
		return
	}
	patientID := chi.URLParam(r, "patientID")
	ids, err := h.directory.AppointmentHistory(r.Context(), patientID, 20)
	if err != nil {
		h.logger.Error("history read failed", "error", err, "patient_id", patientID)
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, patientHistoryResponse{PatientID: patientID, AppointmentIDs: ids})
}
