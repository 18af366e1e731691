package dfu

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts transfer activity. A nil *Metrics records nothing.
type Metrics struct {
	packets   *prometheus.CounterVec
	bytes     prometheus.Counter
	retries   prometheus.Counter
	responses *prometheus.CounterVec
	timeouts  prometheus.Counter
	runs      *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dfu",
			Name:      "packets_sent_total",
			Help:      "Packets written to the device, by pipe.",
		}, []string{"pipe"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dfu",
			Name:      "image_bytes_sent_total",
			Help:      "Firmware image bytes written to the packet pipe.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dfu",
			Name:      "send_retries_total",
			Help:      "Sends repeated after a transport failure.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dfu",
			Name:      "responses_total",
			Help:      "Control point responses received, by request and result.",
		}, []string{"request", "result"}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dfu",
			Name:      "response_timeouts_total",
			Help:      "Waits for a control point notification that timed out.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dfu",
			Name:      "scenario_runs_total",
			Help:      "Scenario runs, by scenario and outcome.",
		}, []string{"scenario", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.packets, m.bytes, m.retries, m.responses, m.timeouts, m.runs)
	}
	return m
}

func (m *Metrics) packetSent(pipe string, n int, image bool) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(pipe).Inc()
	if image {
		m.bytes.Add(float64(n))
	}
}

func (m *Metrics) retried() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *Metrics) response(r Response) {
	if m == nil {
		return
	}
	switch r.OpCode {
	case OpResponse:
		m.responses.WithLabelValues(r.Request.String(), r.Result.String()).Inc()
	case OpReceiptNotify:
		m.responses.WithLabelValues(r.OpCode.String(), "").Inc()
	}
}

func (m *Metrics) timedOut() {
	if m != nil {
		m.timeouts.Inc()
	}
}

func (m *Metrics) scenarioDone(name string, passed bool) {
	if m == nil {
		return
	}
	outcome := "pass"
	if !passed {
		outcome = "fail"
	}
	m.runs.WithLabelValues(name, outcome).Inc()
}
