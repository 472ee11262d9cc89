// Package metrics exposes Prometheus instrumentation for the voice front
// desk: dialogue turns, agent transfers, tool latency, bookings, and session
// ledger throughput.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// FrontDesk holds the counters and histograms for one process. A nil
// receiver is a no-op so components can run uninstrumented in tests.
type FrontDesk struct {
	turnsTotal     *prometheus.CounterVec
	turnLatency    *prometheus.HistogramVec
	transfersTotal *prometheus.CounterVec
	toolLatency    *prometheus.HistogramVec
	bookingsTotal  *prometheus.CounterVec
	ledgerFlushed  prometheus.Counter
	ledgerDropped  prometheus.Counter
}

func NewFrontDesk(reg prometheus.Registerer) *FrontDesk {
	m := &FrontDesk{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Caller turns handled, by active agent role",
		}, []string{"role"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Time to produce an utterance for one caller turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role"}),
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "conversation",
			Name:      "transfers_total",
			Help:      "Agent role transfers",
		}, []string{"from", "to"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Subsystem: "tools",
			Name:      "invocation_seconds",
			Help:      "Latency of tool invocations against directory, calendar, and knowledge base",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "status"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "calendar",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"status"}),
		ledgerFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "ledger",
			Name:      "entries_flushed_total",
			Help:      "Ledger entries durably written",
		}),
		ledgerDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "ledger",
			Name:      "entries_dropped_total",
			Help:      "Ledger entries evicted under buffer pressure",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.transfersTotal, m.toolLatency, m.bookingsTotal, m.ledgerFlushed, m.ledgerDropped)
	return m
}

func (m *FrontDesk) ObserveTurn(role string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(role).Inc()
	m.turnLatency.WithLabelValues(role).Observe(seconds)
}

func (m *FrontDesk) ObserveTransfer(from, to string) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(from, to).Inc()
}

func (m *FrontDesk) ObserveTool(tool, status string, seconds float64) {
	if m == nil {
		return
	}
	m.toolLatency.WithLabelValues(tool, status).Observe(seconds)
}

func (m *FrontDesk) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

// LedgerFlushed implements the ledger's Observer contract.
func (m *FrontDesk) LedgerFlushed(count int) {
	if m == nil {
		return
	}
	m.ledgerFlushed.Add(float64(count))
}

// LedgerDropped implements the ledger's Observer contract.
func (m *FrontDesk) LedgerDropped(count int) {
	if m == nil {
		return
	}
	m.ledgerDropped.Add(float64(count))
}
