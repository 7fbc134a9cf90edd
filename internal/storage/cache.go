package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workflowkit/engine/internal/config"
	"github.com/workflowkit/engine/internal/workflow"
	"github.com/workflowkit/engine/pkg/models"
)

// NewRedisClient opens a redis connection from config, grounded on the
// teacher's RedisCache constructor (parse URL, then apply config overrides).
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("storage: parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage: ping redis: %w", err)
	}
	return client, nil
}

// CachedExecutionStore wraps an ExecutionStore with a Redis read-through
// cache fronting GetByID, the hottest read on a live execution; GetRunning
// and the other reads pass straight through. Postgres stays the source of
// truth: every write invalidates the affected keys rather than updating
// them, and any cache miss or Redis error falls straight through to the
// underlying store. Every GetByID caller, workflow.reconstructSession
// included, reads through the cache.
type CachedExecutionStore struct {
	next workflow.ExecutionStore
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedExecutionStore wraps next with a Redis cache. A non-positive ttl
// defaults to 30 seconds.
func NewCachedExecutionStore(next workflow.ExecutionStore, rdb *redis.Client, ttl time.Duration) *CachedExecutionStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedExecutionStore{next: next, rdb: rdb, ttl: ttl}
}

func executionKey(id string) string { return "exec:" + id }

func (c *CachedExecutionStore) Create(ctx context.Context, exec *models.Execution) error {
	if err := c.next.Create(ctx, exec); err != nil {
		return err
	}
	c.invalidate(ctx, exec.ID)
	return nil
}

func (c *CachedExecutionStore) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	if exec, ok := c.getCached(ctx, id); ok {
		return exec, nil
	}
	exec, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.setCached(ctx, exec)
	return exec, nil
}

func (c *CachedExecutionStore) Update(ctx context.Context, exec *models.Execution) error {
	if err := c.next.Update(ctx, exec); err != nil {
		return err
	}
	c.invalidate(ctx, exec.ID)
	return nil
}

func (c *CachedExecutionStore) UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus) error {
	if err := c.next.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedExecutionStore) UpdateProgress(ctx context.Context, id string, progress models.ExecutionProgress) error {
	if err := c.next.UpdateProgress(ctx, id, progress); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedExecutionStore) UpdateNodeExecution(ctx context.Context, id string, ne *models.NodeExecution) error {
	if err := c.next.UpdateNodeExecution(ctx, id, ne); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedExecutionStore) GetRunning(ctx context.Context) ([]*models.Execution, error) {
	return c.next.GetRunning(ctx)
}

func (c *CachedExecutionStore) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return c.next.GetByWorkflow(ctx, workflowID)
}

func (c *CachedExecutionStore) GetHistory(ctx context.Context, workflowID string, limit int) ([]*models.Execution, error) {
	return c.next.GetHistory(ctx, workflowID, limit)
}

func (c *CachedExecutionStore) AppendLog(ctx context.Context, id string, line string) error {
	return c.next.AppendLog(ctx, id, line)
}

func (c *CachedExecutionStore) GetLogs(ctx context.Context, id string, skip, take int) ([]string, error) {
	return c.next.GetLogs(ctx, id, skip, take)
}

func (c *CachedExecutionStore) getCached(ctx context.Context, id string) (*models.Execution, bool) {
	data, err := c.rdb.Get(ctx, executionKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var exec models.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, false
	}
	return &exec, true
}

func (c *CachedExecutionStore) setCached(ctx context.Context, exec *models.Execution) {
	data, err := json.Marshal(exec)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, executionKey(exec.ID), data, c.ttl)
}

func (c *CachedExecutionStore) invalidate(ctx context.Context, id string) {
	c.rdb.Del(ctx, executionKey(id))
}
