package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowkit/engine/internal/config"
	"github.com/workflowkit/engine/pkg/models"
)

// fakeExecutionStore counts GetByID calls so the cache tests can assert a
// hit avoided a second round-trip to the backing store.
type fakeExecutionStore struct {
	getByIDCalls int
	exec         *models.Execution
	err          error
}

func (f *fakeExecutionStore) Create(context.Context, *models.Execution) error { return nil }
func (f *fakeExecutionStore) GetByID(context.Context, string) (*models.Execution, error) {
	f.getByIDCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.exec, nil
}
func (f *fakeExecutionStore) Update(context.Context, *models.Execution) error { return nil }
func (f *fakeExecutionStore) UpdateStatus(context.Context, string, models.ExecutionStatus) error {
	return nil
}
func (f *fakeExecutionStore) UpdateProgress(context.Context, string, models.ExecutionProgress) error {
	return nil
}
func (f *fakeExecutionStore) UpdateNodeExecution(context.Context, string, *models.NodeExecution) error {
	return nil
}
func (f *fakeExecutionStore) GetRunning(context.Context) ([]*models.Execution, error) { return nil, nil }
func (f *fakeExecutionStore) GetByWorkflow(context.Context, string) ([]*models.Execution, error) {
	return nil, nil
}
func (f *fakeExecutionStore) GetHistory(context.Context, string, int) ([]*models.Execution, error) {
	return nil, nil
}
func (f *fakeExecutionStore) AppendLog(context.Context, string, string) error { return nil }
func (f *fakeExecutionStore) GetLogs(context.Context, string, int, int) ([]string, error) {
	return nil, nil
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := NewRedisClient(config.RedisConfig{URL: "redis://" + s.Addr(), PoolSize: 10})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCachedExecutionStore_GetByID_CachesOnMiss(t *testing.T) {
	rdb := newTestRedisClient(t)
	backing := &fakeExecutionStore{exec: &models.Execution{ID: "exec-1", Status: models.ExecutionStatusRunning}}
	cached := NewCachedExecutionStore(backing, rdb, time.Minute)
	ctx := context.Background()

	first, err := cached.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", first.ID)
	assert.Equal(t, 1, backing.getByIDCalls)

	second, err := cached.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", second.ID)
	assert.Equal(t, 1, backing.getByIDCalls, "second read should be served from cache")
}

func TestCachedExecutionStore_UpdateStatus_InvalidatesCache(t *testing.T) {
	rdb := newTestRedisClient(t)
	backing := &fakeExecutionStore{exec: &models.Execution{ID: "exec-1", Status: models.ExecutionStatusRunning}}
	cached := NewCachedExecutionStore(backing, rdb, time.Minute)
	ctx := context.Background()

	_, err := cached.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, 1, backing.getByIDCalls)

	backing.exec = &models.Execution{ID: "exec-1", Status: models.ExecutionStatusCompleted}
	require.NoError(t, cached.UpdateStatus(ctx, "exec-1", models.ExecutionStatusCompleted))

	updated, err := cached.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, updated.Status)
	assert.Equal(t, 2, backing.getByIDCalls, "invalidated entry must be refetched")
}

func TestCachedExecutionStore_GetByID_PropagatesNotFound(t *testing.T) {
	rdb := newTestRedisClient(t)
	backing := &fakeExecutionStore{err: models.ErrExecutionNotFound}
	cached := NewCachedExecutionStore(backing, rdb, time.Minute)

	_, err := cached.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrExecutionNotFound)
}
