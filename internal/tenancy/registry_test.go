package tenancy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"assetflow/internal/common"
	"assetflow/pkg/database"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDB struct {
	database.DB
	tenant string
	closed atomic.Bool
}

func (f *fakeDB) Close() { f.closed.Store(true) }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingDialer struct {
	calls    atomic.Int32
	failures int32
	delay    time.Duration
}

func (d *countingDialer) Dial(ctx context.Context, tenant string) (database.DB, error) {
	n := d.calls.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if n <= d.failures {
		return nil, errors.New("connection refused")
	}
	return &fakeDB{tenant: tenant}, nil
}

func newTestRegistry(d *countingDialer, clock *fakeClock) *Registry {
	return NewRegistry(d.Dial, RegistryOptions{
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		IdleTimeout: 10 * time.Minute,
		Registerer:  prometheus.NewRegistry(),
		Now:         clock.Now,
	}, zap.NewNop())
}

func TestAcquire_ConcurrentFirstUseDialsOnce(t *testing.T) {
	dialer := &countingDialer{delay: 20 * time.Millisecond}
	registry := newTestRegistry(dialer, &fakeClock{now: time.Now()})

	const callers = 50
	results := make([]database.DB, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := registry.Acquire(context.Background(), "acme")
			assert.NoError(t, err)
			results[i] = db
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), dialer.calls.Load())
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.metrics.open))
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.metrics.acquisitions.WithLabelValues("miss")))
	assert.Equal(t, float64(callers-1), testutil.ToFloat64(registry.metrics.acquisitions.WithLabelValues("hit")))
}

func TestAcquire_TenantsAreIsolated(t *testing.T) {
	dialer := &countingDialer{}
	registry := newTestRegistry(dialer, &fakeClock{now: time.Now()})

	a, err := registry.Acquire(context.Background(), "acme")
	require.NoError(t, err)
	b, err := registry.Acquire(context.Background(), "globex")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, "acme", a.(*fakeDB).tenant)
	assert.Equal(t, "globex", b.(*fakeDB).tenant)
	assert.Equal(t, 2, registry.Len())
}

func TestAcquire_RetriesThenSucceeds(t *testing.T) {
	dialer := &countingDialer{failures: 2}
	registry := newTestRegistry(dialer, &fakeClock{now: time.Now()})

	db, err := registry.Acquire(context.Background(), "acme")
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Equal(t, int32(3), dialer.calls.Load())
}

func TestAcquire_ExhaustedRetries(t *testing.T) {
	dialer := &countingDialer{failures: 100}
	registry := newTestRegistry(dialer, &fakeClock{now: time.Now()})

	_, err := registry.Acquire(context.Background(), "acme")

	var unavailable *common.ConnectionUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "acme", unavailable.Tenant)
	assert.Equal(t, 3, unavailable.Attempts)
	assert.Contains(t, err.Error(), "acme")
	assert.Equal(t, int32(3), dialer.calls.Load())
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.metrics.acquisitions.WithLabelValues("error")))
}

func TestAcquire_RequiresTenant(t *testing.T) {
	registry := newTestRegistry(&countingDialer{}, &fakeClock{now: time.Now()})

	_, err := registry.Acquire(context.Background(), "  ")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAcquire_CancelledWhileRetrying(t *testing.T) {
	dialer := &countingDialer{failures: 100}
	registry := NewRegistry(dialer.Dial, RegistryOptions{MaxAttempts: 5, RetryDelay: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := registry.Acquire(ctx, "acme")
	var unavailable *common.ConnectionUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweepIdle_EvictsOnlyIdleConnections(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	dialer := &countingDialer{}
	registry := newTestRegistry(dialer, clock)

	idle, err := registry.Acquire(context.Background(), "idle")
	require.NoError(t, err)
	clock.Advance(6 * time.Minute)
	busy, err := registry.Acquire(context.Background(), "busy")
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)

	evicted := registry.SweepIdle(context.Background())

	assert.Equal(t, 1, evicted)
	assert.True(t, idle.(*fakeDB).closed.Load())
	assert.False(t, busy.(*fakeDB).closed.Load())
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.metrics.evictions))
}

func TestSweepIdle_HitRefreshesLastUse(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	registry := newTestRegistry(&countingDialer{}, clock)

	db, err := registry.Acquire(context.Background(), "acme")
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)
	_, err = registry.Acquire(context.Background(), "acme")
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)

	assert.Equal(t, 0, registry.SweepIdle(context.Background()))
	assert.False(t, db.(*fakeDB).closed.Load())
}

func TestSweepIdle_RedialsAfterEviction(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	dialer := &countingDialer{}
	registry := newTestRegistry(dialer, clock)

	first, err := registry.Acquire(context.Background(), "acme")
	require.NoError(t, err)
	clock.Advance(11 * time.Minute)
	registry.SweepIdle(context.Background())

	second, err := registry.Acquire(context.Background(), "acme")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), dialer.calls.Load())
}

func TestClose_ClosesAllAndRefusesAcquire(t *testing.T) {
	registry := newTestRegistry(&countingDialer{}, &fakeClock{now: time.Now()})

	var dbs []database.DB
	for _, name := range []string{"a", "b", "c"} {
		db, err := registry.Acquire(context.Background(), name)
		require.NoError(t, err)
		dbs = append(dbs, db)
	}

	require.NoError(t, registry.Close(context.Background()))

	for _, db := range dbs {
		assert.True(t, db.(*fakeDB).closed.Load())
	}
	_, err := registry.Acquire(context.Background(), "a")
	assert.ErrorIs(t, err, common.ErrRegistryClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(registry.metrics.open))
	assert.NoError(t, registry.Close(context.Background()))
}

type gatedDialer struct {
	started chan struct{}
	release chan struct{}
}

func (d *gatedDialer) Dial(ctx context.Context, tenant string) (database.DB, error) {
	close(d.started)
	<-d.release
	return &fakeDB{tenant: tenant}, nil
}

func TestAcquire_WaiterHonoursItsOwnContext(t *testing.T) {
	dialer := &gatedDialer{started: make(chan struct{}), release: make(chan struct{})}
	registry := NewRegistry(dialer.Dial, RegistryOptions{Registerer: prometheus.NewRegistry()}, zap.NewNop())

	first := make(chan error, 1)
	go func() {
		_, err := registry.Acquire(context.Background(), "acme")
		first <- err
	}()
	<-dialer.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	begin := time.Now()
	_, err := registry.Acquire(ctx, "acme")

	var unavailable *common.ConnectionUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(begin), time.Second)

	close(dialer.release)
	require.NoError(t, <-first)

	db, err := registry.Acquire(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", db.(*fakeDB).tenant)
}
