// Package scheduler runs the terminal's periodic sync jobs on cron
// schedules and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/tillsync/internal/logger"
	"github.com/roach88/tillsync/internal/metrics"
)

// Job is a named unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// NewJob wraps fn as a Job.
func NewJob(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

// Parser accepts standard five-field specs, an optional seconds field,
// and descriptors such as "@every 1m".
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Params configure a Scheduler.
type Params struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Scheduler owns a cron runner. A job never overlaps with itself; a run
// that comes due while the previous one is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	log     *logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	jobs    map[string]Job
	running map[string]bool
	ctx     context.Context
	stopped bool

	// triggered tracks runs started outside the cron runner.
	triggered sync.WaitGroup
}

func New(params Params) *Scheduler {
	log := logger.OrNop(params.Logger).Named("scheduler")
	return &Scheduler{
		cron:    cron.New(cron.WithParser(Parser), cron.WithLogger(cronLogger{log: log})),
		log:     log,
		metrics: params.Metrics,
		jobs:    make(map[string]Job),
		running: make(map[string]bool),
		ctx:     context.Background(),
	}
}

// Add registers job under spec. Job names must be unique.
func (s *Scheduler) Add(spec string, job Job) error {
	if job == nil {
		return errors.New("scheduler: nil job")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name()]; dup {
		return fmt.Errorf("scheduler: job %q already registered", job.Name())
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(s.context(), job) }); err != nil {
		return fmt.Errorf("scheduler: job %q spec %q: %w", job.Name(), spec, err)
	}
	s.jobs[job.Name()] = job
	return nil
}

// Start begins running scheduled jobs with ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.log.Info(ctx, "scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish, including
// runs started by TriggerOnReachable. Later triggers are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	<-s.cron.Stop().Done()
	s.triggered.Wait()
}

// goRun runs the named job on a tracked goroutine unless the scheduler
// has stopped.
func (s *Scheduler) goRun(ctx context.Context, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.triggered.Add(1)
	go func() {
		defer s.triggered.Done()
		s.RunNow(ctx, name)
	}()
	return true
}

// RunNow runs the named job immediately on the calling goroutine. It
// returns false when the job is unknown or already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) bool {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		s.log.Warn(s.log.WithField(ctx, "job", name), "unknown job", nil)
		return false
	}
	return s.run(ctx, job)
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	return out
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) run(ctx context.Context, job Job) bool {
	name := job.Name()
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.log.Debug(s.log.WithField(ctx, "job", name), "job still running, skipped")
		return false
	}
	s.running[name] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	jobCtx := s.log.WithField(ctx, "job", name)
	start := time.Now()
	err := job.Run(jobCtx)
	d := time.Since(start)
	s.metrics.ObserveJob(name, d, err)
	jobCtx = s.log.WithField(jobCtx, "duration_ms", d.Milliseconds())
	if err != nil {
		s.log.Error(jobCtx, "job failed", err)
		return true
	}
	s.log.Info(jobCtx, "job completed")
	return true
}

// cronLogger routes the cron runner's own messages into the app logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(l.log.WithFields(context.Background(), pairs(keysAndValues)), msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(l.log.WithFields(context.Background(), pairs(keysAndValues)), msg, err)
}

func pairs(kv []any) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
