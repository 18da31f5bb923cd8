package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/connectivity"
	"github.com/roach88/tillsync/internal/metrics"
	"github.com/roach88/tillsync/internal/remote"
	"github.com/roach88/tillsync/internal/session"
	"github.com/roach88/tillsync/internal/store"
)

func TestAdd_Validation(t *testing.T) {
	s := New(Params{})
	job := NewJob("a", func(context.Context) error { return nil })

	require.NoError(t, s.Add("@every 1m", job))
	require.Error(t, s.Add("@every 1m", job), "duplicate name")
	require.Error(t, s.Add("not a spec", NewJob("b", func(context.Context) error { return nil })))
	require.Error(t, s.Add("@every 1m", nil))
	assert.Equal(t, []string{"a"}, s.Jobs())
}

func TestRunNow_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(Params{Metrics: metrics.New(reg)})
	require.NoError(t, s.Add("@every 1h", NewJob("ok", func(context.Context) error { return nil })))
	require.NoError(t, s.Add("@every 1h", NewJob("bad", func(context.Context) error { return errors.New("boom") })))

	assert.True(t, s.RunNow(context.Background(), "ok"))
	assert.True(t, s.RunNow(context.Background(), "bad"))
	assert.False(t, s.RunNow(context.Background(), "missing"))

	assert.Equal(t, 1.0, counter(t, reg, "tillsync_job_success_total", "ok"))
	assert.Equal(t, 1.0, counter(t, reg, "tillsync_job_failure_total", "bad"))
}

func TestRunNow_SkipsOverlappingRun(t *testing.T) {
	s := New(Params{})
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, s.Add("@every 1h", NewJob("slow", func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	})))

	done := make(chan bool)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started
	assert.False(t, s.RunNow(context.Background(), "slow"))
	close(release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestStart_RunsOnSchedule(t *testing.T) {
	s := New(Params{})
	var runs atomic.Int32
	require.NoError(t, s.Add("* * * * * *", NewJob("tick", func(context.Context) error {
		runs.Add(1)
		return nil
	})))

	s.Start(context.Background())
	defer s.Stop()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

type fakeReconciler struct {
	calls atomic.Int32
}

func (f *fakeReconciler) ReconcilePending(context.Context) (session.ReconcileResult, error) {
	f.calls.Add(1)
	return session.ReconcileResult{}, nil
}

func TestTriggerOnReachable(t *testing.T) {
	ctx := context.Background()
	s := New(Params{})
	r := &fakeReconciler{}
	require.NoError(t, s.Add("@every 1h", ReconcileJob(r)))
	c := connectivity.New(connectivity.Options{})

	unsubscribe := s.TriggerOnReachable(ctx, c, JobReconcileOrders)
	c.ObserveRead(ctx, remote.ReadMeta{})
	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	c.ObserveRead(ctx, remote.ReadMeta{FromCache: true})
	unsubscribe()
	c.ObserveRead(ctx, remote.ReadMeta{})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), r.calls.Load())
}

type fakeRefresher struct {
	storeID string
	got     []string
}

func (f *fakeRefresher) CurrentStoreID() string { return f.storeID }

func (f *fakeRefresher) RefreshProducts(_ context.Context, storeID string) (store.MergeReport, error) {
	f.got = append(f.got, storeID)
	return store.MergeReport{}, nil
}

func TestRefreshProductsJob(t *testing.T) {
	f := &fakeRefresher{}
	job := RefreshProductsJob(f)
	assert.Equal(t, JobRefreshProducts, job.Name())

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, f.got, "no store selected")

	f.storeID = "S1"
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"S1"}, f.got)
}

func counter(t *testing.T, reg *prometheus.Registry, name, job string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "job" && lp.GetValue() == job {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

type manualReachability struct {
	fn func(bool)
}

func (m *manualReachability) Subscribe(fn func(bool)) func() {
	m.fn = fn
	return func() { m.fn = nil }
}

func TestStop_WaitsForTriggeredRun(t *testing.T) {
	ctx := context.Background()
	s := New(Params{})
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, s.Add("@every 1h", NewJob("slow", func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	})))
	r := &manualReachability{}
	s.TriggerOnReachable(ctx, r, "slow")

	r.fn(true)
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a triggered run was still going")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}

	r.fn(true)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "triggers after Stop are ignored")
}
