package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSink writes batches to the sessions, transcript_entries, metrics,
// and agent_transfers tables inside one transaction per batch, so a failed
// flush leaves nothing half-written and the ledger can safely retry it.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink creates a sink over an open database handle.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	if db == nil {
		panic("ledger: db handle required")
	}
	return &PostgresSink{db: db}
}

// Write implements Sink.
func (s *PostgresSink) Write(ctx context.Context, batch []Entry) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin flush tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range batch {
		switch e.Kind {
		case KindTranscript, KindTool, KindMarker:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO transcript_entries (session_id, at, entry_type, role, speaker, text, tool, status, latency_ms)
				VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)
			`, nullableSession(e.SessionID), e.At, string(e.Kind), e.Role, e.Speaker, markerText(e), e.Tool, e.Status, e.LatencyMS)
		case KindMetric:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO metrics (session_id, at, metric_name, value)
				VALUES ($1, $2, $3, $4)
			`, nullableSession(e.SessionID), e.At, e.Metric, e.Value)
		case KindTransfer:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO agent_transfers (session_id, at, from_role, to_role, reason)
				VALUES ($1, $2, $3, $4, NULLIF($5, ''))
			`, e.SessionID, e.At, e.FromRole, e.ToRole, e.Reason)
		case KindSession:
			if e.Status == SessionStatusStarted {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO sessions (session_id, room_id, started_at)
					VALUES ($1, NULLIF($2, ''), $3)
					ON CONFLICT (session_id) DO NOTHING
				`, e.SessionID, e.Room, e.At)
			} else {
				_, err = tx.ExecContext(ctx, `
					UPDATE sessions SET closed_at = $2
					WHERE session_id = $1 AND closed_at IS NULL
				`, e.SessionID, e.At)
			}
		default:
			err = fmt.Errorf("ledger: unknown entry kind %q", e.Kind)
		}
		if err != nil {
			return fmt.Errorf("ledger: insert %s entry: %w", e.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit flush: %w", err)
	}
	return nil
}

// Transcript returns the persisted transcript entries for one session,
// oldest first.
func (s *PostgresSink) Transcript(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, at, COALESCE(role, ''), COALESCE(speaker, ''), COALESCE(text, '')
		FROM transcript_entries
		WHERE session_id = $1 AND entry_type = 'transcript'
		ORDER BY at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query transcript: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e := Entry{Kind: KindTranscript}
		if err := rows.Scan(&e.SessionID, &e.At, &e.Role, &e.Speaker, &e.Text); err != nil {
			return nil, fmt.Errorf("ledger: scan transcript entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// markerText renders loss markers as readable transcript text; ordinary
// transcript entries keep their own text.
func markerText(e Entry) string {
	if e.Kind == KindMarker {
		return fmt.Sprintf("%s (%0.f entries)", e.Reason, e.Value)
	}
	return e.Text
}

// nullableSession lets ledger-level markers, which belong to no session, pass
// a NULL session id.
func nullableSession(id string) any {
	if id == "" {
		return nil
	}
	return id
}
