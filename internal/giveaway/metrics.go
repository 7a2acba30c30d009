package giveaway

import "github.com/prometheus/client_golang/prometheus"

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	createdTotal   prometheus.Counter
	entriesTotal   prometheus.Counter
	endedTotal     prometheus.Counter
	endFailedTotal prometheus.Counter
	purgedTotal    prometheus.Counter
	sweepRecovered prometheus.Counter
	open           prometheus.Gauge
	pendingTimers  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		createdTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway", Name: "created_total", Help: "Giveaways created.",
		}),
		entriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway", Name: "entries_total", Help: "Accepted entries.",
		}),
		endedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway", Name: "ended_total", Help: "Giveaways closed.",
		}),
		endFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway", Name: "end_failures_total", Help: "Terminations whose write failed.",
		}),
		purgedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway", Name: "purged_total", Help: "Closed giveaways removed by retention.",
		}),
		sweepRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giveaway", Name: "sweep_recovered_total", Help: "Expired giveaways closed by the sweep.",
		}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "giveaway", Name: "open", Help: "Open giveaways at the last scan.",
		}),
		pendingTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "giveaway", Name: "pending_timers", Help: "Armed termination timers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.createdTotal, m.entriesTotal, m.endedTotal, m.endFailedTotal,
			m.purgedTotal, m.sweepRecovered, m.open, m.pendingTimers)
	}
	return m
}

func (m *Metrics) created() {
	if m != nil {
		m.createdTotal.Inc()
		m.open.Inc()
	}
}

func (m *Metrics) entered() {
	if m != nil {
		m.entriesTotal.Inc()
	}
}

func (m *Metrics) ended() {
	if m != nil {
		m.endedTotal.Inc()
		m.open.Dec()
	}
}

func (m *Metrics) endFailed() {
	if m != nil {
		m.endFailedTotal.Inc()
	}
}

func (m *Metrics) purged(n int) {
	if m != nil {
		m.purgedTotal.Add(float64(n))
	}
}

func (m *Metrics) recovered(n int) {
	if m != nil {
		m.sweepRecovered.Add(float64(n))
	}
}

func (m *Metrics) setOpen(n int) {
	if m != nil {
		m.open.Set(float64(n))
	}
}

func (m *Metrics) setPending(n int) {
	if m != nil {
		m.pendingTimers.Set(float64(n))
	}
}
