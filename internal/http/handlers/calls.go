// Package handlers holds the HTTP surface: call lifecycle endpoints used by
// the voice gateway, and admin endpoints for transcripts and schedules.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smileright/dental-frontdesk/internal/conversation"
	"github.com/smileright/dental-frontdesk/pkg/logging"
)

// CallsHandler drives the call lifecycle: start, turn, end. Turns are
// processed synchronously so the gateway gets the utterance in the response;
// gateways that deliver turns out of band pass ?async=1 to enqueue the turn
// for the worker instead.
type CallsHandler struct {
	machine   *conversation.Machine
	manager   *conversation.Manager
	publisher *conversation.Publisher
	logger    *logging.Logger
}

// NewCallsHandler creates the call lifecycle handler. publisher may be nil
// when no queue is configured; async requests then return 503.
func NewCallsHandler(machine *conversation.Machine, manager *conversation.Manager, publisher *conversation.Publisher, logger *logging.Logger) *CallsHandler {
	if machine == nil {
		panic("handlers: machine cannot be nil")
	}
	if manager == nil {
		panic("handlers: session manager cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CallsHandler{
		machine:   machine,
		manager:   manager,
		publisher: publisher,
		logger:    logger.Component("http.calls"),
	}
}

type startCallRequest struct {
	RoomID string `json:"room_id"`
}

type startCallResponse struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Greeting  string `json:"greeting"`
}

// StartCall opens a new session at the Greeter.
// POST /calls
func (h *CallsHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	// The body is optional; a bare POST starts an anonymous room.
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s := h.manager.Start(req.RoomID)
	h.machine.BeginSession(s)
	h.logger.Info("call started", "session_id", s.ID, "room_id", s.RoomID)

	writeJSON(w, http.StatusCreated, startCallResponse{
		SessionID: s.ID,
		Role:      string(s.Role),
		Greeting:  "Welcome to SmileRight Dental Clinic, this is Alex. How can I help you today?",
	})
}

type turnRequest struct {
	Text string `json:"text"`
}

type queuedResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// HandleTurn processes one finalized caller utterance and returns the reply.
// With ?async=1 the turn is enqueued for the worker and the reply arrives on
// the live feed instead.
// POST /calls/{sessionID}/turns
func (h *CallsHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "missing sessionID", http.StatusBadRequest)
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	s, ok := h.manager.Resume(r.Context(), sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if asyncRequested(r) {
		if h.publisher == nil {
			http.Error(w, "async processing not configured", http.StatusServiceUnavailable)
			return
		}
		if err := h.publisher.EnqueueTurn(r.Context(), sessionID, req.Text); err != nil {
			h.logger.Error("turn enqueue failed", "error", err, "session_id", sessionID)
			http.Error(w, "failed to enqueue turn", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{SessionID: sessionID, Status: "queued"})
		return
	}

	reply, err := h.machine.HandleTurn(r.Context(), s, req.Text)
	if err != nil {
		if errors.Is(err, conversation.ErrSessionClosed) {
			http.Error(w, "session closed", http.StatusGone)
			return
		}
		// The machine already produced an apology utterance for the caller.
		h.logger.Error("turn failed", "error", err, "session_id", sessionID)
	}

	if snapErr := h.manager.Snapshot(r.Context(), s); snapErr != nil {
		h.logger.Warn("session snapshot failed", "error", snapErr, "session_id", sessionID)
	}

	writeJSON(w, http.StatusOK, reply)
}

type endCallResponse struct {
	SessionID string `json:"session_id"`
	Turns     int    `json:"turns"`
	Transfers int    `json:"transfers"`
}

// EndCall closes a session. With ?async=1 the close is enqueued for the
// worker.
// POST /calls/{sessionID}/end
func (h *CallsHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "missing sessionID", http.StatusBadRequest)
		return
	}

	if asyncRequested(r) {
		if h.publisher == nil {
			http.Error(w, "async processing not configured", http.StatusServiceUnavailable)
			return
		}
		if _, ok := h.manager.Resume(r.Context(), sessionID); !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if err := h.publisher.EnqueueEnd(r.Context(), sessionID); err != nil {
			h.logger.Error("end enqueue failed", "error", err, "session_id", sessionID)
			http.Error(w, "failed to enqueue end", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{SessionID: sessionID, Status: "queued"})
		return
	}

	s, ok := h.manager.Close(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	h.machine.EndSession(s)
	h.logger.Info("call ended", "session_id", s.ID, "turns", s.Turns)

	writeJSON(w, http.StatusOK, endCallResponse{
		SessionID: s.ID,
		Turns:     s.Turns,
		Transfers: len(s.Transfers),
	})
}

// HealthCheck reports liveness.
// GET /health
func (h *CallsHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func asyncRequested(r *http.Request) bool {
	v := r.URL.Query().Get("async")
	return v == "1" || v == "true"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
