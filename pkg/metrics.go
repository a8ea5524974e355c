package densehash

// metrics.go contains a thin abstraction over Prometheus so that densehash
// can be used with or without metrics.  When the user passes a
// *prometheus.Registry via WithMetrics, we create labelled metrics and
// register them; otherwise a no-op sink is used and the hot path does not pay
// for metric updates. The shape follows the teacher repo's pkg/metrics.go:
// a metricsSink interface, a noop implementation, and a Prometheus-backed one
// wired up by a small factory.
//
// All metrics carry a "partition" label so single-threaded and sharded tables
// share one schema; a single-threaded Map always reports partition "0".
//
// ┌───────────────────────────────┬───────┐
// │ Metric                        │ Type  │
// ├───────────────────────────────┼───────┤
// │ densehash_inserts_total       │ Ctr   │
// │ densehash_lookup_hits_total   │ Ctr   │
// │ densehash_lookup_misses_total │ Ctr   │
// │ densehash_erases_total        │ Ctr   │
// │ densehash_erase_misses_total  │ Ctr   │
// │ densehash_resizes_total       │ Ctr   │
// │ densehash_size                │ Gge   │
// │ densehash_probe_length        │ Hist  │
// └───────────────────────────────┴───────┘
//
// © 2025 densehash authors. MIT License.

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

/*
   ---------------- Public (package-level) API ----------------
*/

// metricsSink is an internal interface abstracting away the concrete backend
// (Prometheus vs noop). Not exposed outside the package.
type metricsSink interface {
	incInsert(partition int)
	incLookup(partition int, hit bool)
	incErase(partition int, removed bool)
	incResize(partition int)
	setSize(partition int, size int)
	observeProbeLength(partition int, distance int)
}

/*
   ---------------- No-op implementation ----------------
*/

type noopMetrics struct{}

func (noopMetrics) incInsert(int)                {}
func (noopMetrics) incLookup(int, bool)           {}
func (noopMetrics) incErase(int, bool)            {}
func (noopMetrics) incResize(int)                 {}
func (noopMetrics) setSize(int, int)              {}
func (noopMetrics) observeProbeLength(int, int)   {}

/*
   ---------------- Prometheus implementation ----------------
*/

type promMetrics struct {
	inserts     *prometheus.CounterVec
	lookupHits  *prometheus.CounterVec
	lookupMiss  *prometheus.CounterVec
	erases      *prometheus.CounterVec
	erasesMiss  *prometheus.CounterVec
	resizes     *prometheus.CounterVec
	size        *prometheus.GaugeVec
	probeLength *prometheus.HistogramVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"partition"}

	pm := &promMetrics{
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "densehash",
			Name:      "inserts_total",
			Help:      "Number of keys newly inserted by Insert/Emplace/TryEmplace/Index.",
		}, label),
		lookupHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "densehash",
			Name:      "lookup_hits_total",
			Help:      "Number of lookups that found their key, including inserts that hit an existing key.",
		}, label),
		lookupMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "densehash",
			Name:      "lookup_misses_total",
			Help:      "Number of unsuccessful Find/Contains/Count calls.",
		}, label),
		erases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "densehash",
			Name:      "erases_total",
			Help:      "Number of keys successfully removed.",
		}, label),
		erasesMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "densehash",
			Name:      "erase_misses_total",
			Help:      "Number of Erase calls for an absent key.",
		}, label),
		resizes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "densehash",
			Name:      "resizes_total",
			Help:      "Number of completed rehash/resize cycles.",
		}, label),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "densehash",
			Name:      "size",
			Help:      "Current number of live entries.",
		}, label),
		probeLength: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "densehash",
			Name:      "probe_length",
			Help:      "Probe distance at which an entry is placed on insert or resize.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 255},
		}, label),
	}

	reg.MustRegister(pm.inserts, pm.lookupHits, pm.lookupMiss, pm.erases,
		pm.erasesMiss, pm.resizes, pm.size, pm.probeLength)
	return pm
}

func partitionLabel(p int) string { return strconv.Itoa(p) }

func (m *promMetrics) incInsert(partition int) {
	m.inserts.WithLabelValues(partitionLabel(partition)).Inc()
}

func (m *promMetrics) incLookup(partition int, hit bool) {
	if hit {
		m.lookupHits.WithLabelValues(partitionLabel(partition)).Inc()
		return
	}
	m.lookupMiss.WithLabelValues(partitionLabel(partition)).Inc()
}

func (m *promMetrics) incErase(partition int, removed bool) {
	if removed {
		m.erases.WithLabelValues(partitionLabel(partition)).Inc()
		return
	}
	m.erasesMiss.WithLabelValues(partitionLabel(partition)).Inc()
}

func (m *promMetrics) incResize(partition int) {
	m.resizes.WithLabelValues(partitionLabel(partition)).Inc()
}

func (m *promMetrics) setSize(partition int, size int) {
	m.size.WithLabelValues(partitionLabel(partition)).Set(float64(size))
}

func (m *promMetrics) observeProbeLength(partition int, distance int) {
	m.probeLength.WithLabelValues(partitionLabel(partition)).Observe(float64(distance))
}

/*
   ---------------- Factory ----------------
*/

// newMetricsSink decides which implementation to use. reg == nil disables
// metrics collection entirely.
func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
