package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics are optional Prometheus counters updated by every Run sharing
// them.
type Metrics struct {
	Extracted prometheus.Counter
	Dropped   *prometheus.CounterVec
	Sunk      *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Extracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dblpfeeds",
			Name:      "records_extracted_total",
			Help:      "Records emitted by the extractor.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dblpfeeds",
			Name:      "records_dropped_total",
			Help:      "Records discarded by a filter, by reason.",
		}, []string{"reason"}),
		Sunk: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dblpfeeds",
			Name:      "records_sunk_total",
			Help:      "Records accepted by a sink, by sink name.",
		}, []string{"sink"}),
	}
	if reg != nil {
		reg.MustRegister(m.Extracted, m.Dropped, m.Sunk)
	}
	return m
}
