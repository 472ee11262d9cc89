// Package ledger is the append-only record of session events: transcript
// turns, tool invocations, agent transfers, and metric samples. Producers
// hand entries off via a non-blocking enqueue; a background loop flushes
// batches to the durable sink.
package ledger

import "time"

// Kind discriminates ledger entry payloads.
type Kind string

const (
	KindTranscript Kind = "transcript"
	KindTool       Kind = "tool"
	KindTransfer   Kind = "transfer"
	KindMetric     Kind = "metric"
	// KindMarker flags an audit event about the ledger itself, e.g. entries
	// lost during a sink outage.
	KindMarker Kind = "marker"
	// KindSession records a call opening or closing.
	KindSession Kind = "session"
)

// Session lifecycle statuses.
const (
	SessionStatusStarted = "started"
	SessionStatusClosed  = "closed"
)

// Speakers for transcript entries.
const (
	SpeakerCaller    = "caller"
	SpeakerAssistant = "assistant"
)

// Entry is one immutable ledger record. Ownership transfers to the ledger at
// enqueue time; producers hold no reference afterwards.
type Entry struct {
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	At        time.Time `json:"at"`

	// Transcript fields.
	Role    string `json:"role,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`

	// Tool invocation fields.
	Tool      string `json:"tool,omitempty"`
	Status    string `json:"status,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`

	// Transfer fields.
	FromRole string `json:"from_role,omitempty"`
	ToRole   string `json:"to_role,omitempty"`
	Reason   string `json:"reason,omitempty"`

	// Metric fields.
	Metric string  `json:"metric,omitempty"`
	Value  float64 `json:"value,omitempty"`

	// Session lifecycle fields.
	Room string `json:"room,omitempty"`
}

// Transcript builds a transcript-turn entry.
func Transcript(sessionID, role, speaker, text string) Entry {
	return Entry{
		SessionID: sessionID,
		Kind:      KindTranscript,
		At:        time.Now().UTC(),
		Role:      role,
		Speaker:   speaker,
		Text:      text,
	}
}

// Tool builds a tool-invocation entry.
func Tool(sessionID, role, tool, status string, latency time.Duration) Entry {
	return Entry{
		SessionID: sessionID,
		Kind:      KindTool,
		At:        time.Now().UTC(),
		Role:      role,
		Tool:      tool,
		Status:    status,
		LatencyMS: latency.Milliseconds(),
	}
}

// Transfer builds an agent-transfer entry.
func Transfer(sessionID, fromRole, toRole, reason string) Entry {
	return Entry{
		SessionID: sessionID,
		Kind:      KindTransfer,
		At:        time.Now().UTC(),
		FromRole:  fromRole,
		ToRole:    toRole,
		Reason:    reason,
	}
}

// SessionStarted builds an entry recording the opening of a call.
func SessionStarted(sessionID, roomID string) Entry {
	return Entry{
		SessionID: sessionID,
		Kind:      KindSession,
		At:        time.Now().UTC(),
		Status:    SessionStatusStarted,
		Room:      roomID,
	}
}

// SessionClosed builds an entry recording the close of a call.
func SessionClosed(sessionID string) Entry {
	return Entry{
		SessionID: sessionID,
		Kind:      KindSession,
		At:        time.Now().UTC(),
		Status:    SessionStatusClosed,
	}
}

// Metric builds a metric-sample entry.
func Metric(sessionID, name string, value float64) Entry {
	return Entry{
		SessionID: sessionID,
		Kind:      KindMetric,
		At:        time.Now().UTC(),
		Metric:    name,
		Value:     value,
	}
}

func lossMarker(dropped int) Entry {
	return Entry{
		Kind:   KindMarker,
		At:     time.Now().UTC(),
		Reason: "entries lost",
		Metric: "entries_lost",
		Value:  float64(dropped),
	}
}
