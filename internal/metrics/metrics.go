// Package metrics exposes tillsync's Prometheus instruments.
//
// Every method is safe on a nil *Metrics, so components can be built
// without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tillsync"

// Metrics holds the registered instruments.
type Metrics struct {
	storeAvailable prometheus.Gauge
	reachable      prometheus.Gauge
	merged         *prometheus.CounterVec
	reconciled     *prometheus.CounterVec
	replicated     prometheus.Counter
	jobDuration    *prometheus.HistogramVec
	jobSuccess     *prometheus.CounterVec
	jobFailure     *prometheus.CounterVec
}

// New registers the instruments on reg. A nil reg returns nil, which
// disables recording.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		storeAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_available",
			Help:      "1 when the on-device store is open and usable.",
		}),
		reachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reachable",
			Help:      "1 when the remote system of record answers reads fresh.",
		}),
		merged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_records_total",
			Help:      "Incoming product records by merge outcome.",
		}, []string{"outcome"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_orders_total",
			Help:      "Pending orders pushed to the remote, by result.",
		}, []string{"result"}),
		replicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replicated_notifications_total",
			Help:      "Notification change events applied locally.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled jobs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		jobSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_success_total",
			Help:      "Successful scheduled job runs.",
		}, []string{"job"}),
		jobFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failure_total",
			Help:      "Failed scheduled job runs.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.storeAvailable, m.reachable, m.merged, m.reconciled, m.replicated,
		m.jobDuration, m.jobSuccess, m.jobFailure)
	return m
}

func (m *Metrics) SetStoreAvailable(ok bool) {
	if m == nil {
		return
	}
	m.storeAvailable.Set(boolValue(ok))
}

func (m *Metrics) SetReachable(ok bool) {
	if m == nil {
		return
	}
	m.reachable.Set(boolValue(ok))
}

// ObserveMerge adds one product merge batch's outcome counts.
func (m *Metrics) ObserveMerge(inserted, updated, merged, unchanged, skipped int) {
	if m == nil {
		return
	}
	m.merged.WithLabelValues("inserted").Add(float64(inserted))
	m.merged.WithLabelValues("updated").Add(float64(updated))
	m.merged.WithLabelValues("merged").Add(float64(merged))
	m.merged.WithLabelValues("unchanged").Add(float64(unchanged))
	m.merged.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveReconcile adds one reconcile pass's counts.
func (m *Metrics) ObserveReconcile(synced, failed int) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues("synced").Add(float64(synced))
	m.reconciled.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) IncReplicated() {
	if m == nil {
		return
	}
	m.replicated.Inc()
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if job == "" {
		job = "unknown"
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	if err != nil {
		m.jobFailure.WithLabelValues(job).Inc()
		return
	}
	m.jobSuccess.WithLabelValues(job).Inc()
}

func boolValue(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
