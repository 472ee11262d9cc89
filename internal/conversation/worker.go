package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/smileright/dental-frontdesk/pkg/logging"
)

// ReplySink receives the assistant's reply for delivery back to the caller,
// e.g. a TTS bridge or the live transcript feed. Delivery failures are logged
// and do not fail the turn; the ledger already holds the utterance.
type ReplySink interface {
	DeliverReply(ctx context.Context, reply Reply) error
}

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	replies          ReplySink
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithReplySink wires a delivery target for assistant utterances.
func WithReplySink(sink ReplySink) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.replies = sink
	}
}

// Worker consumes turn jobs from the queue and drives the state machine.
type Worker struct {
	machine *Machine
	manager *Manager
	queue   queueClient
	replies ReplySink
	logger  *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker constructs a queue consumer around the state machine.
func NewWorker(machine *Machine, manager *Manager, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if machine == nil {
		panic("conversation: machine cannot be nil")
	}
	if manager == nil {
		panic("conversation: session manager cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		machine: machine,
		manager: manager,
		queue:   queue,
		replies: cfg.replies,
		logger:  logger.Component("conversation.worker"),
		cfg:     cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("turn worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("turn worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive turn jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode turn job", "error", err)
		w.deleteMessage(msg)
		return
	}

	switch payload.Kind {
	case jobTypeStart:
		s := w.manager.Start(payload.RoomID)
		w.machine.BeginSession(s)
		w.logger.Info("call started", "session_id", s.ID, "room_id", s.RoomID)
	case jobTypeTurn:
		w.handleTurn(ctx, payload)
	case jobTypeEnd:
		if s, ok := w.manager.Close(payload.SessionID); ok {
			w.machine.EndSession(s)
			w.logger.Info("call ended", "session_id", s.ID, "turns", s.Turns)
		}
	default:
		w.logger.Warn("unknown turn job kind", "kind", string(payload.Kind))
	}

	w.deleteMessage(msg)
}

func (w *Worker) handleTurn(ctx context.Context, payload queuePayload) {
	s, ok := w.manager.Resume(ctx, payload.SessionID)
	if !ok {
		w.logger.Warn("turn for unknown session dropped", "session_id", payload.SessionID)
		return
	}

	reply, err := w.machine.HandleTurn(ctx, s, payload.Text)
	if err != nil {
		if errors.Is(err, ErrSessionClosed) {
			w.logger.Warn("turn for closed session dropped", "session_id", payload.SessionID)
			return
		}
		w.logger.Error("turn processing failed", "error", err, "session_id", payload.SessionID)
		if reply.Utterance == "" {
			return
		}
		// The machine produced an apology; deliver it before giving up.
	}

	if snapErr := w.manager.Snapshot(ctx, s); snapErr != nil {
		w.logger.Warn("session snapshot failed", "error", snapErr, "session_id", s.ID)
	}

	if w.replies != nil {
		if deliverErr := w.replies.DeliverReply(ctx, reply); deliverErr != nil {
			w.logger.Warn("reply delivery failed", "error", deliverErr, "session_id", s.ID)
		}
	}
}

func (w *Worker) deleteMessage(msg queueMessage) {
	deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, msg.ReceiptHandle); err != nil {
		w.logger.Warn("failed to delete turn job", "error", err, "message_id", msg.ID)
	}
}
