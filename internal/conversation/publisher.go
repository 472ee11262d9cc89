package conversation

import (
	"context"
	"fmt"

	"github.com/smileright/dental-frontdesk/pkg/logging"
)

// Publisher enqueues call turns for asynchronous processing by the worker.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger.Component("conversation.publisher"),
	}
}

// EnqueueTurn publishes one finalized caller transcript segment.
func (p *Publisher) EnqueueTurn(ctx context.Context, sessionID, text string) error {
	return p.enqueue(ctx, queuePayload{Kind: jobTypeTurn, SessionID: sessionID, Text: text})
}

// EnqueueEnd publishes the close of a call.
func (p *Publisher) EnqueueEnd(ctx context.Context, sessionID string) error {
	return p.enqueue(ctx, queuePayload{Kind: jobTypeEnd, SessionID: sessionID})
}

func (p *Publisher) enqueue(ctx context.Context, payload queuePayload) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(payload)
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("turn job enqueued", "job_id", payload.ID, "kind", string(payload.Kind), "session_id", payload.SessionID)
	return nil
}
