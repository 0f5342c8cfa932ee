package tenancy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"assetflow/internal/common"
	"assetflow/pkg/database"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dialer opens a connection to one tenant's database.
type Dialer func(ctx context.Context, tenantName string) (database.DB, error)

// PoolDialer dials tenant databases derived from a DSN template.
func PoolDialer(baseURL string) Dialer {
	return func(ctx context.Context, tenantName string) (database.DB, error) {
		dsn, err := database.TenantDSN(baseURL, tenantName)
		if err != nil {
			return nil, err
		}
		return database.NewPool(ctx, dsn)
	}
}

// RegistryOptions tunes dialing and eviction.
type RegistryOptions struct {
	MaxAttempts int
	RetryDelay  time.Duration
	IdleTimeout time.Duration
	Registerer  prometheus.Registerer
	// Now is overridable in tests.
	Now func() time.Time
}

type tenantEntry struct {
	// sem is a one-slot lock. Waiting on it honours the caller's context, so
	// a request queued behind a slow dial can give up.
	sem        chan struct{}
	db         database.DB
	lastUsedAt time.Time
	evicted    bool
}

func newTenantEntry() *tenantEntry {
	return &tenantEntry{sem: make(chan struct{}, 1)}
}

func (e *tenantEntry) lock(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *tenantEntry) tryLock() bool {
	select {
	case e.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *tenantEntry) unlock() { <-e.sem }

// Registry owns one database connection per tenant. Creation and eviction of
// a tenant's connection are serialized on that tenant's entry; different
// tenants never wait on each other except for the short map lookup.
type Registry struct {
	dial    Dialer
	opts    RegistryOptions
	logger  *zap.Logger
	metrics *registryMetrics

	mu      sync.Mutex
	entries map[string]*tenantEntry
	closed  bool
}

// NewRegistry creates a registry that dials tenants lazily with dial.
func NewRegistry(dial Dialer, opts RegistryOptions, logger *zap.Logger) *Registry {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		dial:    dial,
		opts:    opts,
		logger:  logger,
		metrics: newRegistryMetrics(opts.Registerer),
		entries: make(map[string]*tenantEntry),
	}
}

// Acquire returns the tenant's connection, dialing it on first use.
func (r *Registry) Acquire(ctx context.Context, tenantName string) (database.DB, error) {
	key := strings.TrimSpace(tenantName)
	if key == "" {
		return nil, common.NewValidation("tenant", "is required")
	}

	for {
		entry, err := r.entry(key)
		if err != nil {
			return nil, err
		}

		if err := entry.lock(ctx); err != nil {
			r.metrics.acquisitions.WithLabelValues("error").Inc()
			return nil, &common.ConnectionUnavailableError{Tenant: key, Err: err}
		}
		if entry.evicted {
			// Swept between the map lookup and the lock; start over with a
			// fresh entry.
			entry.unlock()
			continue
		}

		if entry.db != nil {
			entry.lastUsedAt = r.opts.Now()
			db := entry.db
			entry.unlock()
			r.metrics.acquisitions.WithLabelValues("hit").Inc()
			return db, nil
		}

		db, err := r.dialWithRetry(ctx, key)
		if err != nil {
			entry.evicted = true
			entry.unlock()
			r.remove(key, entry)
			r.metrics.acquisitions.WithLabelValues("error").Inc()
			return nil, err
		}

		entry.db = db
		entry.lastUsedAt = r.opts.Now()
		entry.unlock()

		r.metrics.acquisitions.WithLabelValues("miss").Inc()
		r.metrics.open.Inc()
		r.logger.Info("tenant connection opened", zap.String("tenant", key))
		return db, nil
	}
}

func (r *Registry) entry(key string) (*tenantEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, common.ErrRegistryClosed
	}
	entry, ok := r.entries[key]
	if !ok {
		entry = newTenantEntry()
		r.entries[key] = entry
	}
	return entry, nil
}

func (r *Registry) remove(key string, entry *tenantEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[key] == entry {
		delete(r.entries, key)
	}
}

func (r *Registry) dialWithRetry(ctx context.Context, tenantName string) (database.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		db, err := r.dial(ctx, tenantName)
		if err == nil {
			return db, nil
		}
		lastErr = err
		r.logger.Warn("tenant connection attempt failed",
			zap.String("tenant", tenantName),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == r.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &common.ConnectionUnavailableError{Tenant: tenantName, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(r.opts.RetryDelay):
		}
	}
	return nil, &common.ConnectionUnavailableError{Tenant: tenantName, Attempts: r.opts.MaxAttempts, Err: lastErr}
}

// SweepIdle closes connections unused for longer than the idle timeout. An
// entry busy with a dial is skipped and revisited on the next sweep.
func (r *Registry) SweepIdle(ctx context.Context) int {
	r.mu.Lock()
	snapshot := make(map[string]*tenantEntry, len(r.entries))
	for k, e := range r.entries {
		snapshot[k] = e
	}
	r.mu.Unlock()

	now := r.opts.Now()
	evicted := 0
	for key, entry := range snapshot {
		if ctx.Err() != nil {
			break
		}
		if !entry.tryLock() {
			continue
		}
		if entry.evicted || entry.db == nil || now.Sub(entry.lastUsedAt) < r.opts.IdleTimeout {
			entry.unlock()
			continue
		}
		entry.evicted = true
		entry.db.Close()
		entry.db = nil
		entry.unlock()

		r.remove(key, entry)
		r.metrics.open.Dec()
		r.metrics.evictions.Inc()
		evicted++
		r.logger.Info("idle tenant connection evicted", zap.String("tenant", key))
	}
	return evicted
}

// Len reports the number of tenants with an entry in the registry.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close refuses new acquisitions and closes every open connection. In-flight
// operations on a closed connection fail on their own.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*tenantEntry)
	r.mu.Unlock()

	var (
		errMu sync.Mutex
		errs  error
	)
	g, _ := errgroup.WithContext(ctx)
	for key, entry := range entries {
		g.Go(func() error {
			if err := entry.lock(ctx); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("close tenant %s: %w", key, err))
				errMu.Unlock()
				return nil
			}
			defer entry.unlock()
			if entry.db == nil {
				return nil
			}
			if err := closeDB(entry.db); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("close tenant %s: %w", key, err))
				errMu.Unlock()
			}
			entry.db = nil
			entry.evicted = true
			r.metrics.open.Dec()
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("tenant registry closed", zap.Int("connections", len(entries)))
	return errs
}

func closeDB(db database.DB) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while closing: %v", p)
		}
	}()
	db.Close()
	return nil
}
