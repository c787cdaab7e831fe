package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// DefaultSpec is the schedule used for jobs added with an empty spec.
const DefaultSpec = "@every 1h"

// Job is a unit of periodic work, typically a single pool monitor.
type Job interface {
	// Name identifies the job in logs and results.
	Name() string

	// Check runs one tick. A returned error is reported in the tick result;
	// it does not stop future ticks.
	Check(ctx context.Context) error
}

// loggingJob is implemented by jobs that carry their own logger. Errors the
// scheduler logs about such a job go through it.
type loggingJob interface {
	Logger() *slog.Logger
}

// TickResult holds the outcome of one tick of a [Job].
type TickResult struct {
	// JobName is the name of the job that ran.
	JobName string

	// StartedAt is when the tick began.
	StartedAt time.Time

	// Duration is how long the tick took.
	Duration time.Duration

	// Error is the error returned by the job, or a panic converted to an
	// error carrying a correlation id.
	Error error
}

// Scheduler runs jobs on cron schedules.
//
// Ticks of the same job never overlap: a tick that fires while the previous
// one is still running is skipped. Different jobs run concurrently. Results
// are emitted on the channel returned by [Scheduler.Results], which the
// caller must drain.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	logger  *slog.Logger
	results chan TickResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// NewScheduler creates a new [Scheduler]. Jobs are added with
// [Scheduler.Add] before [Scheduler.Start] is called.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		logger:  logger,
		results: make(chan TickResult, 16),
	}
}

// Add schedules job with a cron spec such as "@hourly", "@every 30m" or
// "0 */2 * * *". An empty spec uses [DefaultSpec].
//
// Returns an error if the cron expression is invalid or the scheduler already started.
func (s *Scheduler) Add(spec string, job Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if spec == "" {
		spec = DefaultSpec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return errors.New("cannot add jobs after start")
	}

	if _, err := s.cron.AddFunc(spec, func() { s.tick(job) }); err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", job.Name(), spec, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Results returns a receive-only channel that emits one [TickResult] per
// tick. The channel is closed when the scheduler stops.
func (s *Scheduler) Results() <-chan TickResult {
	return s.results
}

// Start runs every job once immediately, then hands them to the cron
// scheduler. Start is non-blocking and idempotent; it is a no-op after Stop.
//
// If ctx is nil, context.Background() is used as the parent context.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	for _, job := range jobs {
		s.wg.Add(1)
		go func(j Job) {
			defer s.wg.Done()
			s.tick(j)
		}(job)
	}

	s.cron.Start()
}

// Stop cancels in-flight ticks, waits for them to finish and closes the
// results channel. Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasStarted := s.started && !s.stopped
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if wasStarted {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()

	s.closeOnce.Do(func() { close(s.results) })
}

// tick runs one check of job and publishes the result.
func (s *Scheduler) tick(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.safeCheck(ctx, job)
	result := TickResult{
		JobName:   job.Name(),
		StartedAt: start,
		Duration:  time.Since(start),
		Error:     err,
	}

	select {
	case s.results <- result:
	case <-ctx.Done():
	}
}

// safeCheck calls job.Check with panic recovery. A panic is logged with its
// stack trace and a correlation id, and returned as an error carrying the id.
func (s *Scheduler) safeCheck(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.jobLogger(job).Error("check panic",
				"job", job.Name(),
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("check panic (correlation_id: %s)", correlationID)
		}
	}()
	return job.Check(ctx)
}

// jobLogger returns the job's own logger if it has one, else the scheduler's.
func (s *Scheduler) jobLogger(job Job) *slog.Logger {
	if lj, ok := job.(loggingJob); ok {
		if l := lj.Logger(); l != nil {
			return l
		}
	}
	return s.logger
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
