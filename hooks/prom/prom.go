// Package prom exports arcache hook and speedup tracker events as Prometheus
// metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/arcache"
	"github.com/unkn0wn-root/arcache/backend/speedup"
)

// Adapter implements arcache.Hooks and speedup.Tracker. Raw keys never become
// label values.
type Adapter struct {
	gets          *prometheus.CounterVec
	getSeconds    prometheus.Histogram
	anomalies     *prometheus.CounterVec
	relaxed       prometheus.Counter
	rejected      prometheus.Counter
	invalidations *prometheus.CounterVec
	local         *prometheus.CounterVec
	recovered     prometheus.Counter
}

var (
	_ arcache.Hooks   = (*Adapter)(nil)
	_ speedup.Tracker = (*Adapter)(nil)
)

// New constructs the adapter and registers its collectors.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		}, labels)
	}

	a := &Adapter{
		gets: counterVec("gets_total", "Completed gets by result", "result"),
		getSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "get_duration_seconds",
			Help:        "Time spent in a get Await",
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
			ConstLabels: constLabels,
		}),
		anomalies:     counterVec("anomalies_total", "Unexpected stored types and undecodable values", "kind"),
		relaxed:       counter("timeout_relaxed_total", "Sub-fetches given extra time because the process was slow"),
		rejected:      counter("backend_set_rejected_total", "Writes the backend declined"),
		invalidations: counterVec("invalidations_total", "Stored group invalidations by kind", "kind"),
		local:         counterVec("speedup_local_total", "Speedup tier lookups", "tier", "outcome"),
		recovered:     counter("speedup_recovered_total", "Backend failures answered from a local copy"),
	}
	reg.MustRegister(a.gets, a.getSeconds, a.anomalies, a.relaxed, a.rejected, a.invalidations, a.local, a.recovered)
	return a
}

func (a *Adapter) GetCompleted(t arcache.ResultType, took time.Duration) {
	a.gets.WithLabelValues(t.String()).Inc()
	a.getSeconds.Observe(took.Seconds())
}

func (a *Adapter) EnvelopeTypeMismatch(string, string) {
	a.anomalies.WithLabelValues("envelope_type").Inc()
}

func (a *Adapter) ValueDecodeError(string, error) {
	a.anomalies.WithLabelValues("decode").Inc()
}

func (a *Adapter) InvalidationRecordIgnored(string, string) {
	a.anomalies.WithLabelValues("record_type").Inc()
}

func (a *Adapter) PriorInvalidationUnreadable(string, error) {
	a.anomalies.WithLabelValues("prior_unreadable").Inc()
}

func (a *Adapter) TimeoutRelaxed(time.Duration, time.Duration) { a.relaxed.Inc() }
func (a *Adapter) BackendSetRejected(string)                   { a.rejected.Inc() }

func (a *Adapter) InvalidationWritten(_ string, hard bool) {
	kind := "soft"
	if hard {
		kind = "hard"
	}
	a.invalidations.WithLabelValues(kind).Inc()
}

func (a *Adapter) SpeedupException(string, error) {
	a.anomalies.WithLabelValues("speedup").Inc()
}

func (a *Adapter) BackendGetFailureRecovered(string, error) { a.recovered.Inc() }
func (a *Adapter) LocalHit(t speedup.Tier)                  { a.local.WithLabelValues(t.String(), "hit").Inc() }
func (a *Adapter) LocalMiss(t speedup.Tier)                 { a.local.WithLabelValues(t.String(), "miss").Inc() }
