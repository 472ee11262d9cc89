package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smileright/dental-frontdesk/internal/calendar"
	"github.com/smileright/dental-frontdesk/internal/clinic"
	"github.com/smileright/dental-frontdesk/internal/conversation"
	"github.com/smileright/dental-frontdesk/internal/knowledge"
	"github.com/smileright/dental-frontdesk/internal/ledger"
	"github.com/smileright/dental-frontdesk/internal/patients"
)

type handlerFixture struct {
	machine   *conversation.Machine
	manager   *conversation.Manager
	sink      *ledger.MemorySink
	ledger    *ledger.Ledger
	cal       *calendar.Service
	directory *patients.MemoryDirectory
	queue     *conversation.MemoryQueue
	router    chi.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	cfg := clinic.Default()
	directory := patients.NewMemoryDirectory()
	catalog := knowledge.NewCatalog(nil)
	cal := calendar.NewService(cfg, calendar.NewMemoryStore(), catalog, calendar.Options{Recorder: directory}, nil)
	sink := ledger.NewMemorySink()
	led := ledger.New(sink, ledger.Config{FlushInterval: 10 * time.Millisecond}, nil, nil)
	t.Cleanup(func() { _ = led.Close(context.Background()) })

	machine := conversation.NewMachine(directory, cal, catalog, cfg, led)
	manager := conversation.NewManager(nil)
	queue := conversation.NewMemoryQueue(16)

	calls := NewCallsHandler(machine, manager, conversation.NewPublisher(queue, nil), nil)
	admin := NewAdminSessionsHandler(manager, sink, directory, cal, nil)

	r := chi.NewRouter()
	r.Get("/health", calls.HealthCheck)
	r.Post("/calls", calls.StartCall)
	r.Post("/calls/{sessionID}/turns", calls.HandleTurn)
	r.Post("/calls/{sessionID}/end", calls.EndCall)
	r.Get("/admin/sessions/{sessionID}", admin.GetSession)
	r.Get("/admin/sessions/{sessionID}/transcript", admin.GetTranscript)
	r.Get("/admin/schedule/{date}", admin.GetSchedule)
	r.Post("/admin/appointments/{appointmentID}/cancel", admin.CancelAppointment)
	r.Get("/admin/patients/{patientID}/appointments", admin.GetPatientHistory)

	return &handlerFixture{
		machine:   machine,
		manager:   manager,
		sink:      sink,
		ledger:    led,
		cal:       cal,
		directory: directory,
		queue:     queue,
		router:    r,
	}
}

// startWorker runs a queue consumer over the fixture's machine for the
// duration of the test.
func (f *handlerFixture) startWorker(t *testing.T, replies conversation.ReplySink) {
	t.Helper()
	worker := conversation.NewWorker(f.machine, f.manager, f.queue, nil,
		conversation.WithWorkerCount(1),
		conversation.WithReplySink(replies),
	)
	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	t.Cleanup(func() {
		cancel()
		worker.Wait()
	})
}

type recordedReplies struct {
	mu      sync.Mutex
	replies []conversation.Reply
}

func (r *recordedReplies) DeliverReply(_ context.Context, reply conversation.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recordedReplies) all() []conversation.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]conversation.Reply(nil), r.replies...)
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestStartCall(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/calls", map[string]string{"room_id": "room-7"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp startCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "greeter", resp.Role)
	assert.Contains(t, resp.Greeting, "SmileRight")

	s, ok := f.manager.Get(resp.SessionID)
	require.True(t, ok)
	assert.Equal(t, "room-7", s.RoomID)
}

func TestStartCallEmptyBody(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodPost, "/calls", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandleTurnProducesReply(t *testing.T) {
	f := newHandlerFixture(t)
	s := f.manager.Start("room-1")

	rec := f.do(t, http.MethodPost, "/calls/"+s.ID+"/turns", map[string]string{"text": "what are your hours?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply conversation.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, s.ID, reply.SessionID)
	assert.Contains(t, reply.Utterance, "SmileRight")
}

func TestHandleTurnValidation(t *testing.T) {
	f := newHandlerFixture(t)
	s := f.manager.Start("room-1")

	rec := f.do(t, http.MethodPost, "/calls/"+s.ID+"/turns", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/calls/unknown/turns", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTurnAsyncDeliversToReplySink(t *testing.T) {
	f := newHandlerFixture(t)
	replies := &recordedReplies{}
	f.startWorker(t, replies)
	s := f.manager.Start("room-1")

	rec := f.do(t, http.MethodPost, "/calls/"+s.ID+"/turns?async=1", map[string]string{"text": "what are your hours?"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "queued")

	require.Eventually(t, func() bool {
		return len(replies.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	reply := replies.all()[0]
	assert.Equal(t, s.ID, reply.SessionID)
	assert.Contains(t, reply.Utterance, "SmileRight")
}

func TestHandleTurnAsyncUnknownSession(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodPost, "/calls/unknown/turns?async=1", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTurnAsyncWithoutPublisher(t *testing.T) {
	f := newHandlerFixture(t)
	s := f.manager.Start("room-1")

	calls := NewCallsHandler(f.machine, f.manager, nil, nil)
	r := chi.NewRouter()
	r.Post("/calls/{sessionID}/turns", calls.HandleTurn)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{"text": "hi"}))
	req := httptest.NewRequest(http.MethodPost, "/calls/"+s.ID+"/turns?async=1", &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEndCallAsyncClosesSession(t *testing.T) {
	f := newHandlerFixture(t)
	replies := &recordedReplies{}
	f.startWorker(t, replies)
	s := f.manager.Start("room-1")

	rec := f.do(t, http.MethodPost, "/calls/"+s.ID+"/end?async=1", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		_, ok := f.manager.Get(s.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEndCall(t *testing.T) {
	f := newHandlerFixture(t)
	s := f.manager.Start("room-1")

	rec := f.do(t, http.MethodPost, "/calls/"+s.ID+"/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp endCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, s.ID, resp.SessionID)

	_, ok := f.manager.Get(s.ID)
	assert.False(t, ok)

	// A second end is a miss.
	rec = f.do(t, http.MethodPost, "/calls/"+s.ID+"/end", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
