package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/smileright/dental-frontdesk/internal/calendar"
	"github.com/smileright/dental-frontdesk/internal/knowledge"
	"github.com/smileright/dental-frontdesk/internal/ledger"
	"github.com/smileright/dental-frontdesk/internal/patients"
)

// invokeTool runs one tool call under the active role's whitelist, a bounded
// timeout, and ledger/metrics accounting. A whitelist rejection is a handling
// error, not a session failure: it is ledgered and the call continues.
func (m *Machine) invokeTool(ctx context.Context, s *Session, tool string, fn func(ctx context.Context) error) error {
	if !toolAllowed(s.Role, tool) {
		m.logger.Warn("tool invocation outside role whitelist",
			"session_id", s.ID,
			"role", string(s.Role),
			"tool", tool,
		)
		m.ledger.Enqueue(ledger.Tool(s.ID, string(s.Role), tool, "rejected", 0))
		m.metrics.ObserveTool(tool, "rejected", 0)
		return ErrToolNotAllowed
	}

	ctx, cancel := context.WithTimeout(ctx, m.toolTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	status := toolStatus(err)
	m.ledger.Enqueue(ledger.Tool(s.ID, string(s.Role), tool, status, elapsed))
	m.metrics.ObserveTool(tool, status, elapsed.Seconds())
	return err
}

// toolStatus distinguishes expected domain outcomes from infrastructure
// failures, so dashboards don't page on every not-found lookup.
func toolStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, patients.ErrNotFound),
		errors.Is(err, patients.ErrDuplicatePhone),
		errors.Is(err, patients.ErrInvalidPhone),
		errors.Is(err, calendar.ErrSlotUnavailable),
		errors.Is(err, calendar.ErrOutsideBusinessHours),
		isNoMatch(err):
		return "miss"
	default:
		return "error"
	}
}

func isNoMatch(err error) bool {
	var nm *knowledge.NoMatchError
	return errors.As(err, &nm)
}

// transient reports whether an error is worth one bounded retry on a read
// path.
func transient(err error) bool {
	return toolStatus(err) == "error" || errors.Is(err, context.DeadlineExceeded)
}
