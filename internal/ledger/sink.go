package ledger

import (
	"context"
	"errors"
	"sync"
)

// MemorySink keeps flushed entries in memory for development and tests. A
// write failure can be injected to exercise the ledger's outage handling.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
	fail    error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write implements Sink.
func (s *MemorySink) Write(_ context.Context, batch []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.entries = append(s.entries, batch...)
	return nil
}

// Fail makes subsequent writes return the given error; nil restores service.
func (s *MemorySink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Entries returns a copy of everything flushed so far.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Transcript returns the flushed transcript entries for one session, in
// flush order.
func (s *MemorySink) Transcript(_ context.Context, sessionID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.SessionID == sessionID && e.Kind == KindTranscript {
			out = append(out, e)
		}
	}
	return out, nil
}

// DiscardSink drops every batch. Used when recording is disabled: the
// conversation path behaves identically but nothing is written durably.
type DiscardSink struct{}

// Write implements Sink.
func (DiscardSink) Write(context.Context, []Entry) error { return nil }

// Transcript implements the transcript reader contract with no data.
func (DiscardSink) Transcript(context.Context, string) ([]Entry, error) {
	return nil, errors.New("ledger: recording disabled")
}
