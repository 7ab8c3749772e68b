// Package jobs runs scheduled maintenance on a cron clock in UTC.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"skillswap/internal/middleware"
	"skillswap/internal/observability"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
)

// ErrUnknownJob is returned by RunJob for unregistered names.
var ErrUnknownJob = errors.New("unknown job")

// Job is one named unit of scheduled work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// JobStatus describes a registered job for the admin API.
type JobStatus struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Runs         int        `json:"runs"`
	Running      bool       `json:"running"`
}

type entry struct {
	job     Job
	id      cron.EntryID
	lastRun time.Time
	lastDur time.Duration
	lastErr string
	runs    int
	running int
}

// Scheduler owns the cron clock and per-job run history.
type Scheduler struct {
	cron *cron.Cron
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	baseCtx context.Context
	started bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		now:     time.Now,
		entries: make(map[string]*entry),
		baseCtx: context.Background(),
	}
}

// Register adds a job. Names must be unique and schedules standard
// five-field cron expressions.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[job.Name]; dup {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	e := &entry{job: job}
	id, err := s.cron.AddFunc(job.Schedule, func() {
		_ = s.execute(s.context(), e)
	})
	if err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}
	e.id = id
	s.entries[job.Name] = e
	return nil
}

// Start begins firing jobs. Scheduled runs use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	middleware.Logger.Info("background jobs started", slog.Int("jobs", len(s.entries)))
}

// Stop halts the clock and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		middleware.Logger.Info("background jobs stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunJob executes one job immediately in the caller's goroutine.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	middleware.Logger.InfoContext(ctx, "manually running job", slog.String("job", name))
	return s.execute(ctx, e)
}

// Names lists registered jobs alphabetically.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status snapshots every job, ordered by name.
func (s *Scheduler) Status() []JobStatus {
	names := s.Names()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(names))
	for _, name := range names {
		e := s.entries[name]
		st := JobStatus{
			Name:      name,
			Schedule:  e.job.Schedule,
			LastError: e.lastErr,
			Runs:      e.runs,
			Running:   e.running > 0,
		}
		if next := s.cron.Entry(e.id).Next; !next.IsZero() {
			st.NextRun = &next
		}
		if !e.lastRun.IsZero() {
			last := e.lastRun
			st.LastRun = &last
			st.LastDuration = e.lastDur.String()
		}
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// execute runs e once. A panic is converted into an error so neither the
// cron goroutine nor later runs are affected.
func (s *Scheduler) execute(ctx context.Context, e *entry) (err error) {
	name := e.job.Name
	start := s.now()

	s.mu.Lock()
	e.running++
	s.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "job.run", attribute.String("job.name", name))
	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			err = fmt.Errorf("job %s panicked: %v", name, r)
			middleware.Logger.ErrorContext(ctx, "job panicked", slog.String("job", name),
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}

		elapsed := s.now().Sub(start)
		observability.JobRuns.WithLabelValues(name, outcome).Inc()
		observability.JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())

		s.mu.Lock()
		e.running--
		e.runs++
		e.lastRun = start
		e.lastDur = elapsed
		e.lastErr = ""
		if err != nil {
			e.lastErr = err.Error()
		}
		s.mu.Unlock()
		observability.EndSpan(span, err)
	}()

	middleware.Logger.InfoContext(ctx, "starting job", slog.String("job", name))
	if err = e.job.Run(ctx); err != nil {
		outcome = "failure"
		middleware.Logger.ErrorContext(ctx, "job failed", slog.String("job", name), slog.String("error", err.Error()))
		return err
	}
	middleware.Logger.InfoContext(ctx, "job completed", slog.String("job", name),
		slog.Duration("duration", s.now().Sub(start)))
	return nil
}
