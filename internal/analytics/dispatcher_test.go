package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"assetflow/internal/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedProjector struct {
	mu       sync.Mutex
	failures int
	applied  []uuid.UUID
	block    chan struct{}
}

func (p *scriptedProjector) Project(ctx context.Context, snap models.ProductSnapshot) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("shared database unavailable")
	}
	p.applied = append(p.applied, snap.Product.ID)
	return nil
}

func (p *scriptedProjector) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.applied)
}

type memQueue struct {
	mu   sync.Mutex
	jobs []models.ProjectionJob
	err  error
}

func (q *memQueue) PushProjectionJobs(ctx context.Context, jobs ...models.ProjectionJob) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, jobs...)
	return nil
}

func (q *memQueue) PopProjectionJobs(ctx context.Context, max int) ([]models.ProjectionJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if max > len(q.jobs) {
		max = len(q.jobs)
	}
	out := append([]models.ProjectionJob(nil), q.jobs[:max]...)
	q.jobs = q.jobs[max:]
	return out, nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func snap() models.ProductSnapshot {
	return models.ProductSnapshot{TenantID: uuid.New(), TenantName: "acme", Product: models.Product{ID: uuid.New()}}
}

func TestDispatcher_ProjectsInBackground(t *testing.T) {
	projector := &scriptedProjector{}
	d := NewDispatcher(projector, &memQueue{}, DispatcherOptions{Workers: 2, QueueSize: 8}, zap.NewNop())
	d.Start(context.Background())

	d.Dispatch(context.Background(), snap(), snap(), snap())
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, 3, projector.count())
}

func TestDispatcher_FailuresAreParkedThenRetried(t *testing.T) {
	reg := prometheus.NewRegistry()
	projector := &scriptedProjector{failures: 1}
	queue := &memQueue{}
	d := NewDispatcher(projector, queue, DispatcherOptions{Workers: 1, MaxAttempts: 3, Registerer: reg}, zap.NewNop())
	d.Start(context.Background())

	d.Dispatch(context.Background(), snap())
	require.NoError(t, d.Stop(context.Background()))
	require.Equal(t, 1, queue.len())
	assert.Equal(t, 1, queue.jobs[0].Attempts)
	assert.NotEmpty(t, queue.jobs[0].LastErr)
	assert.Equal(t, 0, projector.count())

	n, err := d.DrainRetries(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, projector.count())
	assert.Equal(t, 0, queue.len())
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.retried))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.projected.WithLabelValues("error")))
}

func TestDispatcher_DropsAfterMaxAttempts(t *testing.T) {
	projector := &scriptedProjector{failures: 10}
	queue := &memQueue{}
	d := NewDispatcher(projector, queue, DispatcherOptions{Workers: 1, MaxAttempts: 2}, zap.NewNop())

	require.NoError(t, queue.PushProjectionJobs(context.Background(), models.ProjectionJob{Snapshot: snap(), Attempts: 1}))
	_, err := d.DrainRetries(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 0, queue.len())
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.dropped))
}

func TestDispatcher_OverflowGoesToQueue(t *testing.T) {
	projector := &scriptedProjector{block: make(chan struct{})}
	queue := &memQueue{}
	d := NewDispatcher(projector, queue, DispatcherOptions{Workers: 1, QueueSize: 1}, zap.NewNop())

	// Not started: the channel holds one snapshot, the rest overflow.
	d.Dispatch(context.Background(), snap(), snap(), snap())
	assert.Equal(t, 2, queue.len())

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, 3, queue.len())

	d.Dispatch(context.Background(), snap())
	assert.Equal(t, 4, queue.len())
	close(projector.block)
}

func TestDispatcher_StopHonoursDeadline(t *testing.T) {
	projector := &scriptedProjector{block: make(chan struct{})}
	d := NewDispatcher(projector, &memQueue{}, DispatcherOptions{Workers: 1}, zap.NewNop())
	d.Start(context.Background())
	d.Dispatch(context.Background(), snap())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)

	close(projector.block)
	assert.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_ParkFailureIsSwallowed(t *testing.T) {
	projector := &scriptedProjector{failures: 1}
	d := NewDispatcher(projector, &memQueue{err: errors.New("redis down")}, DispatcherOptions{Workers: 1}, zap.NewNop())
	d.Start(context.Background())

	assert.NotPanics(t, func() { d.Dispatch(context.Background(), snap()) })
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.dropped))
}
