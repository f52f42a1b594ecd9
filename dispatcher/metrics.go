package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	selections  *prometheus.CounterVec
	noSelection *prometheus.CounterVec
	inflight    *prometheus.GaugeVec
}

// NewMetrics creates the dispatch collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "selections_total",
			Help:      "Tasks chosen by the balancer.",
		}, []string{"algorithm", "task"}),
		noSelection: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "no_selection_total",
			Help:      "Dispatches that found no selectable task.",
		}, []string{"algorithm", "reason"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "inflight",
			Help:      "Jobs currently assigned to each task.",
		}, []string{"task"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.selections, m.noSelection, m.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) selected(algorithm, task string, inflight int64) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(algorithm, task).Inc()
	m.inflight.WithLabelValues(task).Set(float64(inflight))
}

func (m *Metrics) finished(task string, inflight int64) {
	if m == nil {
		return
	}
	m.inflight.WithLabelValues(task).Set(float64(inflight))
}

func (m *Metrics) missed(algorithm, reason string) {
	if m == nil {
		return
	}
	m.noSelection.WithLabelValues(algorithm, reason).Inc()
}

func (m *Metrics) forget(task string) {
	if m == nil {
		return
	}
	m.inflight.DeleteLabelValues(task)
}
