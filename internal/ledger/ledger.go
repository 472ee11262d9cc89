package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/smileright/dental-frontdesk/pkg/logging"
)

// Sink is durable storage for ledger batches. Write either persists the whole
// batch or returns an error; the ledger retries failed batches, so sinks must
// tolerate re-writes of the same entries only across process restarts, not
// within one run.
type Sink interface {
	Write(ctx context.Context, batch []Entry) error
}

// Config tunes batching and buffering.
type Config struct {
	// BatchSize triggers a flush when this many entries are pending.
	BatchSize int
	// FlushInterval triggers a flush even when the batch is not full.
	FlushInterval time.Duration
	// BufferCap bounds in-memory accumulation during sink outages; beyond it
	// the oldest entries are evicted and a single loss marker is recorded per
	// outage.
	BufferCap int
	// ShutdownGrace bounds the final drain in Close.
	ShutdownGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	if c.BufferCap <= 0 {
		c.BufferCap = 10000
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	return c
}

// Observer receives flush/drop counts, typically a metrics registry.
type Observer interface {
	LedgerFlushed(count int)
	LedgerDropped(count int)
}

// Ledger batches entries to a sink without blocking producers.
type Ledger struct {
	sink     Sink
	cfg      Config
	logger   *logging.Logger
	observer Observer

	mu       sync.Mutex
	pending  []Entry
	lost     int
	sinkDown bool
	closed   bool

	notify chan struct{}
	done   chan struct{}
	exited chan struct{}

	closeOnce sync.Once
}

// New starts a ledger with its background flush loop. The observer may be
// nil.
func New(sink Sink, cfg Config, logger *logging.Logger, observer Observer) *Ledger {
	if sink == nil {
		panic("ledger: sink required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Ledger{
		sink:     sink,
		cfg:      cfg.withDefaults(),
		logger:   logger.Component("ledger"),
		observer: observer,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Enqueue hands an entry to the ledger. It never blocks and never performs
// IO; entries beyond BufferCap evict the oldest pending entries and record
// one loss marker per outage.
func (l *Ledger) Enqueue(e Entry) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.pending = append(l.pending, e)

	if over := len(l.pending) - l.cfg.BufferCap; over > 0 {
		l.pending = l.pending[over:]
		if l.observer != nil {
			l.observer.LedgerDropped(over)
		}
		// One log line and, at recovery, one marker entry per outage.
		if l.lost == 0 {
			l.logger.Warn("ledger buffer full, evicting oldest entries", "dropped", over)
		}
		l.lost += over
	}
	full := len(l.pending) >= l.cfg.BatchSize
	l.mu.Unlock()

	if full {
		select {
		case l.notify <- struct{}{}:
		default:
		}
	}
}

// Close stops the flush loop and drains remaining entries within the
// configured grace period. Entries still pending after the grace period are
// discarded and the loss is logged once.
func (l *Ledger) Close(ctx context.Context) error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	<-l.exited

	grace, cancel := context.WithTimeout(ctx, l.cfg.ShutdownGrace)
	defer cancel()

	for {
		l.mu.Lock()
		remaining := len(l.pending)
		l.mu.Unlock()
		if remaining == 0 {
			break
		}
		if grace.Err() != nil {
			l.mu.Lock()
			dropped := len(l.pending)
			l.pending = nil
			l.closed = true
			l.mu.Unlock()
			if l.observer != nil {
				l.observer.LedgerDropped(dropped)
			}
			l.logger.Error("ledger shutdown grace expired, discarding entries", "dropped", dropped)
			return grace.Err()
		}
		l.flushOnce(grace)
	}

	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *Ledger) run() {
	defer close(l.exited)
	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.flushOnce(context.Background())
		case <-l.notify:
			l.flushOnce(context.Background())
		}
	}
}

// flushOnce writes one batch. A failed write puts the batch back at the front
// of the queue so partial batches are retried, not lost.
func (l *Ledger) flushOnce(ctx context.Context) {
	l.mu.Lock()
	if len(l.pending) == 0 {
		l.mu.Unlock()
		return
	}
	n := len(l.pending)
	if n > l.cfg.BatchSize {
		n = l.cfg.BatchSize
	}
	batch := make([]Entry, n)
	copy(batch, l.pending[:n])
	l.pending = l.pending[n:]
	l.mu.Unlock()

	if err := l.sink.Write(ctx, batch); err != nil {
		l.mu.Lock()
		l.pending = append(batch, l.pending...)
		first := !l.sinkDown
		l.sinkDown = true
		l.mu.Unlock()
		if first {
			l.logger.Error("ledger sink unreachable, buffering entries", "error", err)
		}
		return
	}

	l.mu.Lock()
	recovered := l.sinkDown
	l.sinkDown = false
	// The outage is over. Record the single loss marker now, so it cannot
	// itself be evicted while the sink is still down.
	if l.lost > 0 {
		l.pending = append([]Entry{lossMarker(l.lost)}, l.pending...)
		l.lost = 0
	}
	l.mu.Unlock()

	if recovered {
		l.logger.Info("ledger sink recovered", "flushed", len(batch))
	}
	if l.observer != nil {
		l.observer.LedgerFlushed(len(batch))
	}
}

// Pending reports how many entries await flushing.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
