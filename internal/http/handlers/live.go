package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/smileright/dental-frontdesk/internal/conversation"
	"github.com/smileright/dental-frontdesk/pkg/logging"
)

// LiveFeed broadcasts assistant replies to connected websocket listeners. It
// implements conversation.ReplySink, so the worker pushes into it directly; a
// slow listener is dropped rather than backing up turn processing.
type LiveFeed struct {
	logger *logging.Logger

	mu        sync.RWMutex
	listeners map[*websocket.Conn]chan liveEvent
}

type liveEvent struct {
	Type      string                        `json:"type"`
	SessionID string                        `json:"session_id"`
	Role      string                        `json:"role"`
	Utterance string                        `json:"utterance"`
	Transfers []conversation.TransferRecord `json:"transfers,omitempty"`
	Timestamp string                        `json:"timestamp"`
}

// NewLiveFeed creates the live transcript feed.
func NewLiveFeed(logger *logging.Logger) *LiveFeed {
	if logger == nil {
		logger = logging.Default()
	}
	return &LiveFeed{
		logger:    logger.Component("http.live"),
		listeners: make(map[*websocket.Conn]chan liveEvent),
	}
}

// DeliverReply implements conversation.ReplySink.
func (f *LiveFeed) DeliverReply(_ context.Context, reply conversation.Reply) error {
	event := liveEvent{
		Type:      "reply",
		SessionID: reply.SessionID,
		Role:      string(reply.Role),
		Utterance: reply.Utterance,
		Transfers: reply.Transfers,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for conn, ch := range f.listeners {
		select {
		case ch <- event:
		default:
			f.logger.Warn("dropping live event for slow listener", "remote", conn.Request().RemoteAddr)
		}
	}
	return nil
}

// Handler returns the websocket endpoint.
// GET /ws/live
func (f *LiveFeed) Handler() http.Handler {
	return websocket.Handler(f.serve)
}

func (f *LiveFeed) serve(conn *websocket.Conn) {
	ch := make(chan liveEvent, 32)

	f.mu.Lock()
	f.listeners[conn] = ch
	f.mu.Unlock()
	f.logger.Info("live listener connected", "remote", conn.Request().RemoteAddr)

	defer func() {
		f.mu.Lock()
		delete(f.listeners, conn)
		f.mu.Unlock()
		_ = conn.Close()
		f.logger.Info("live listener disconnected", "remote", conn.Request().RemoteAddr)
	}()

	// Reader goroutine: we ignore inbound frames but need the read to observe
	// the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event := <-ch:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := websocket.Message.Send(conn, string(data)); err != nil {
				return
			}
		}
	}
}

// ListenerCount reports connected listeners, for the health endpoint.
func (f *LiveFeed) ListenerCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}
