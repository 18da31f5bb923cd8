package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics_ExportsCountersAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetStoreAvailable(true)
	m.SetReachable(false)
	m.ObserveMerge(2, 1, 1, 3, 0)
	m.ObserveReconcile(4, 1)
	m.IncReplicated()
	m.ObserveJob("reconcile-orders", 120*time.Millisecond, nil)
	m.ObserveJob("reconcile-orders", 10*time.Millisecond, errors.New("boom"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		name, label, value string
		want               float64
	}{
		{"tillsync_merge_records_total", "outcome", "inserted", 2},
		{"tillsync_merge_records_total", "outcome", "unchanged", 3},
		{"tillsync_reconcile_orders_total", "result", "synced", 4},
		{"tillsync_reconcile_orders_total", "result", "failed", 1},
		{"tillsync_job_success_total", "job", "reconcile-orders", 1},
		{"tillsync_job_failure_total", "job", "reconcile-orders", 1},
	}
	for _, c := range checks {
		got, err := fetchCounterValue(mfs, c.name, c.label, c.value)
		if err != nil {
			t.Fatalf("fetch %s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s{%s=%s} = %f, want %f", c.name, c.label, c.value, got, c.want)
		}
	}

	if got := gaugeValue(t, mfs, "tillsync_store_available"); got != 1 {
		t.Fatalf("store_available = %f, want 1", got)
	}
	if got := gaugeValue(t, mfs, "tillsync_reachable"); got != 0 {
		t.Fatalf("reachable = %f, want 0", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.SetStoreAvailable(true)
	m.ObserveMerge(1, 1, 1, 1, 1)
	m.ObserveJob("x", time.Second, nil)
	if New(nil) != nil {
		t.Fatal("New(nil) should disable metrics")
	}
}

func gaugeValue(t *testing.T, mfs []*dto.MetricFamily, name string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		t.Fatalf("gauge %q not found", name)
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
