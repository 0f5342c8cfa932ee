package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"assetflow/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "assetflow:"

// CacheService is the redis-backed cache, retry queue and limiter
type CacheService interface {
	// Tenant registry caching
	GetTenant(ctx context.Context, name string) (*models.Tenant, error)
	SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error
	InvalidateTenant(ctx context.Context, name string) error

	// Read projection caching
	GetOverview(ctx context.Context) (*models.GlobalOverview, error)
	SetOverview(ctx context.Context, overview *models.GlobalOverview, ttl time.Duration) error
	InvalidateOverview(ctx context.Context) error

	// Projection retry queue
	PushProjectionJobs(ctx context.Context, jobs ...models.ProjectionJob) error
	PopProjectionJobs(ctx context.Context, max int) ([]models.ProjectionJob, error)
	ProjectionQueueLen(ctx context.Context) (int64, error)

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

type redisCacheService struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisCacheService creates a new redis cache service
func NewRedisCacheService(addr, password string, db int, logger *zap.Logger) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := addr
	for _, scheme := range []string{"redis://", "rediss://"} {
		parsedAddr = strings.TrimPrefix(parsedAddr, scheme)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.Warn("redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(pingErr))
	} else {
		logger.Debug("redis connection established", zap.String("addr", parsedAddr))
	}

	return NewCacheService(client, logger)
}

// NewCacheService wraps an existing client.
func NewCacheService(client redis.UniversalClient, logger *zap.Logger) CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisCacheService{client: client, logger: logger}
}

func tenantKey(name string) string {
	return fmt.Sprintf("%stenant:%s", keyPrefix, name)
}

const (
	overviewKey        = keyPrefix + "metrics:overview"
	projectionQueueKey = keyPrefix + "projection:retry"
)

func (r *redisCacheService) GetTenant(ctx context.Context, name string) (*models.Tenant, error) {
	var tenant models.Tenant
	found, err := r.getJSON(ctx, tenantKey(name), &tenant)
	if err != nil || !found {
		return nil, err
	}
	return &tenant, nil
}

func (r *redisCacheService) SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error {
	return r.setJSON(ctx, tenantKey(tenant.Name), tenant, ttl)
}

func (r *redisCacheService) InvalidateTenant(ctx context.Context, name string) error {
	return r.client.Del(ctx, tenantKey(name)).Err()
}

func (r *redisCacheService) GetOverview(ctx context.Context) (*models.GlobalOverview, error) {
	var overview models.GlobalOverview
	found, err := r.getJSON(ctx, overviewKey, &overview)
	if err != nil || !found {
		return nil, err
	}
	return &overview, nil
}

func (r *redisCacheService) SetOverview(ctx context.Context, overview *models.GlobalOverview, ttl time.Duration) error {
	return r.setJSON(ctx, overviewKey, overview, ttl)
}

func (r *redisCacheService) InvalidateOverview(ctx context.Context) error {
	return r.client.Del(ctx, overviewKey).Err()
}

func (r *redisCacheService) PushProjectionJobs(ctx context.Context, jobs ...models.ProjectionJob) error {
	if len(jobs) == 0 {
		return nil
	}
	values := make([]any, 0, len(jobs))
	for i := range jobs {
		data, err := json.Marshal(jobs[i])
		if err != nil {
			return fmt.Errorf("encode projection job: %w", err)
		}
		values = append(values, data)
	}
	return r.client.RPush(ctx, projectionQueueKey, values...).Err()
}

// PopProjectionJobs takes up to max jobs from the head of the queue. Entries
// that no longer decode are dropped with a log line.
func (r *redisCacheService) PopProjectionJobs(ctx context.Context, max int) ([]models.ProjectionJob, error) {
	if max <= 0 {
		return nil, nil
	}
	raw, err := r.client.LPopCount(ctx, projectionQueueKey, max).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	jobs := make([]models.ProjectionJob, 0, len(raw))
	for _, item := range raw {
		var job models.ProjectionJob
		if err := json.Unmarshal([]byte(item), &job); err != nil {
			r.logger.Error("dropping undecodable projection job", zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *redisCacheService) ProjectionQueueLen(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, projectionQueueKey).Result()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := fmt.Sprintf("%sratelimit:%s", keyPrefix, key)
	count, err := r.client.Incr(ctx, cacheKey).Result()
	if err != nil {
		return true, err
	}

	// Set expiry on first request
	if count == 1 {
		r.client.Expire(ctx, cacheKey, window)
	}

	return count > int64(limit), nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}

func (r *redisCacheService) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // cache miss
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (r *redisCacheService) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}
