package background

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// IdleSweeper evicts tenant connections that have not been used recently.
type IdleSweeper interface {
	SweepIdle(ctx context.Context) int
}

// RetryDrainer re-applies parked projections.
type RetryDrainer interface {
	DrainRetries(ctx context.Context, batch int) (int, error)
}

// JobSchedulerOptions sets the job intervals
type JobSchedulerOptions struct {
	SweepInterval time.Duration
	RetryInterval time.Duration
	RetryBatch    int
}

const (
	JobIdleSweep       = "tenant-connection-sweep"
	JobProjectionRetry = "projection-retry-drain"
)

// JobScheduler runs the periodic maintenance of the process.
type JobScheduler struct {
	scheduler gocron.Scheduler
	sweeper   IdleSweeper
	drainer   RetryDrainer
	opts      JobSchedulerOptions
	logger    *zap.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex

	// ctx is handed to every task and cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(sweeper IdleSweeper, drainer RetryDrainer, opts JobSchedulerOptions, logger *zap.Logger) (*JobScheduler, error) {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Minute
	}
	if opts.RetryBatch <= 0 {
		opts.RetryBatch = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobScheduler{
		ctx:       ctx,
		cancel:    cancel,
		scheduler: scheduler,
		sweeper:   sweeper,
		drainer:   drainer,
		opts:      opts,
		logger:    logger,
		jobs:      make(map[string]gocron.Job),
	}
	if err := js.registerJobs(); err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

// Stop waits for running jobs to return.
func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	js.cancel()
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	if js.sweeper != nil {
		if err := js.AddJob(JobIdleSweep, js.opts.SweepInterval, js.sweepIdleConnections); err != nil {
			return err
		}
	}
	if js.drainer != nil {
		if err := js.AddJob(JobProjectionRetry, js.opts.RetryInterval, js.drainProjectionRetries); err != nil {
			return err
		}
	}
	return nil
}

func (js *JobScheduler) sweepIdleConnections(ctx context.Context) {
	if evicted := js.sweeper.SweepIdle(ctx); evicted > 0 {
		js.logger.Info("evicted idle tenant connections", zap.Int("count", evicted))
	}
}

// drainProjectionRetries keeps pulling batches until the queue runs dry or a
// batch comes back short.
func (js *JobScheduler) drainProjectionRetries(ctx context.Context) {
	total := 0
	for {
		n, err := js.drainer.DrainRetries(ctx, js.opts.RetryBatch)
		total += n
		if err != nil {
			js.logger.Error("projection retry drain failed", zap.Int("drained", total), zap.Error(err))
			return
		}
		if n < js.opts.RetryBatch || ctx.Err() != nil {
			break
		}
	}
	if total > 0 {
		js.logger.Info("re-applied parked projections", zap.Int("count", total))
	}
}

// AddJob runs task every interval, skipping a tick while the previous run is
// still going.
func (js *JobScheduler) AddJob(name string, interval time.Duration, task func(ctx context.Context)) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task, js.ctx),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}

	js.jobs[name] = job
	js.logger.Debug("registered job", zap.String("job", name), zap.Duration("interval", interval))
	return nil
}

// RemoveJob removes a job by name
func (js *JobScheduler) RemoveJob(name string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobs[name]; exists {
		err := js.scheduler.RemoveJob(job.ID())
		delete(js.jobs, name)
		return err
	}
	return nil
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

// JobStatus describes one scheduled job.
type JobStatus struct {
	Name    string    `json:"name"`
	LastRun time.Time `json:"last_run,omitempty"`
	NextRun time.Time `json:"next_run,omitempty"`
}

// GetJobStatus returns the status of all jobs
func (js *JobScheduler) GetJobStatus() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()

	status := make([]JobStatus, 0, len(js.jobs))
	for name, job := range js.jobs {
		s := JobStatus{Name: name}
		if last, err := job.LastRun(); err == nil {
			s.LastRun = last
		}
		if next, err := job.NextRun(); err == nil {
			s.NextRun = next
		}
		status = append(status, s)
	}
	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status
}
