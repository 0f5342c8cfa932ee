package analytics

import (
	"context"
	"sync"
	"time"

	"assetflow/internal/common"
	"assetflow/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SnapshotProjector applies one snapshot to the shared database.
type SnapshotProjector interface {
	Project(ctx context.Context, snap models.ProductSnapshot) error
}

// RetryQueue holds snapshots whose projection has to be attempted again.
type RetryQueue interface {
	PushProjectionJobs(ctx context.Context, jobs ...models.ProjectionJob) error
	PopProjectionJobs(ctx context.Context, max int) ([]models.ProjectionJob, error)
}

// DispatcherOptions sizes the worker pool and retry policy
type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Registerer  prometheus.Registerer
}

// Dispatcher runs projections off the request path. Failures never reach the
// caller that committed the tenant transaction; they are logged and parked in
// the retry queue.
type Dispatcher struct {
	projector SnapshotProjector
	queue     RetryQueue
	opts      DispatcherOptions
	logger    *zap.Logger
	metrics   *dispatcherMetrics
	now       func() time.Time

	jobs chan models.ProjectionJob
	wg   sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewDispatcher creates a projection dispatcher
func NewDispatcher(projector SnapshotProjector, queue RetryQueue, opts DispatcherOptions, logger *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		projector: projector,
		queue:     queue,
		opts:      opts,
		logger:    logger,
		metrics:   newDispatcherMetrics(opts.Registerer),
		now:       time.Now,
		jobs:      make(chan models.ProjectionJob, opts.QueueSize),
	}
}

// Start launches the workers. ctx bounds their projections, not their
// lifetime; Stop ends them.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				d.handle(ctx, job)
			}
		}()
	}
	d.logger.Info("projection dispatcher started", zap.Int("workers", d.opts.Workers))
}

// Dispatch never blocks. Snapshots that do not fit in the channel, or arrive
// after Stop, go straight to the retry queue.
func (d *Dispatcher) Dispatch(ctx context.Context, snapshots ...models.ProductSnapshot) {
	var overflow []models.ProjectionJob

	d.mu.RLock()
	for _, snap := range snapshots {
		job := models.ProjectionJob{Snapshot: snap, QueuedAt: d.now().UTC()}
		if d.closed {
			overflow = append(overflow, job)
			continue
		}
		select {
		case d.jobs <- job:
			d.metrics.queued.Inc()
		default:
			overflow = append(overflow, job)
		}
	}
	d.mu.RUnlock()

	if len(overflow) > 0 {
		d.logger.Warn("projection channel full, parking snapshots", zap.Int("count", len(overflow)))
		d.park(context.WithoutCancel(ctx), overflow...)
	}
}

// DrainRetries re-applies up to batch parked snapshots and returns how many
// were taken off the queue.
func (d *Dispatcher) DrainRetries(ctx context.Context, batch int) (int, error) {
	jobs, err := d.queue.PopProjectionJobs(ctx, batch)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			d.metrics.retried.Inc()
			d.handle(gctx, job)
			return nil
		})
	}
	return len(jobs), g.Wait()
}

// Stop closes intake and waits for the workers to finish what was queued.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	started := d.started
	d.mu.Unlock()

	if !started {
		// Nobody will read the channel; park what is left.
		var pending []models.ProjectionJob
		for job := range d.jobs {
			pending = append(pending, job)
		}
		d.park(ctx, pending...)
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("projection dispatcher drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) handle(ctx context.Context, job models.ProjectionJob) {
	err := d.projector.Project(ctx, job.Snapshot)
	if err == nil {
		d.metrics.projected.WithLabelValues("ok").Inc()
		return
	}
	d.metrics.projected.WithLabelValues("error").Inc()

	failure := &common.ProjectionFailure{
		Tenant:    job.Snapshot.TenantName,
		ProductID: job.Snapshot.Product.ID,
		Err:       err,
	}
	job.Attempts++
	job.LastErr = err.Error()

	if job.Attempts >= d.opts.MaxAttempts {
		d.metrics.dropped.Inc()
		d.logger.Error("projection abandoned",
			zap.String("tenant", failure.Tenant),
			zap.String("product_id", failure.ProductID.String()),
			zap.Int("attempt", job.Attempts),
			zap.Error(failure),
		)
		return
	}

	d.logger.Warn("projection failed, will retry",
		zap.String("tenant", failure.Tenant),
		zap.String("product_id", failure.ProductID.String()),
		zap.Int("attempt", job.Attempts),
		zap.Error(failure),
	)
	d.park(context.WithoutCancel(ctx), job)
}

func (d *Dispatcher) park(ctx context.Context, jobs ...models.ProjectionJob) {
	if len(jobs) == 0 {
		return
	}
	if d.queue == nil {
		d.metrics.dropped.Add(float64(len(jobs)))
		d.logger.Error("no retry queue configured, dropping projections", zap.Int("count", len(jobs)))
		return
	}
	if err := d.queue.PushProjectionJobs(ctx, jobs...); err != nil {
		d.metrics.dropped.Add(float64(len(jobs)))
		d.logger.Error("failed to park projections", zap.Int("count", len(jobs)), zap.Error(err))
	}
}

type dispatcherMetrics struct {
	queued    prometheus.Counter
	retried   prometheus.Counter
	dropped   prometheus.Counter
	projected *prometheus.CounterVec
}

func newDispatcherMetrics(reg prometheus.Registerer) *dispatcherMetrics {
	m := &dispatcherMetrics{
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetflow", Subsystem: "projection", Name: "queued_total",
			Help: "Snapshots accepted onto the in-process channel.",
		}),
		retried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetflow", Subsystem: "projection", Name: "retried_total",
			Help: "Snapshots taken off the retry queue.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetflow", Subsystem: "projection", Name: "dropped_total",
			Help: "Snapshots abandoned after exhausting retries or failing to park.",
		}),
		projected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetflow", Subsystem: "projection", Name: "attempts_total",
			Help: "Projection attempts by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.queued, m.retried, m.dropped, m.projected)
	}
	return m
}
