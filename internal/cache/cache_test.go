package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/plantcare/internal/config"
)

func TestMemoryCache_RoundTripIsByteIdentical(t *testing.T) {
	t.Parallel()
	c := NewMemory()
	ctx := context.Background()
	payload := []byte(`{"plan_id":"p1","confidence_score":0.8125}`)

	require.NoError(t, c.Set(ctx, "k", payload, time.Minute))
	payload[0] = 'X' // caller mutation must not leak into the cache

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"plan_id":"p1","confidence_score":0.8125}`, string(got))

	got[1] = 'Y'
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"plan_id":"p1","confidence_score":0.8125}`, string(again))
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()
	c := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	now = now.Add(59 * time.Minute)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrMiss))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_DeleteAndMiss(t *testing.T) {
	t.Parallel()
	c := NewMemory()
	ctx := context.Background()

	_, err := c.Get(ctx, "absent")
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrMiss))
	assert.NoError(t, c.Ping(ctx))
}

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockRedis) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockRedis) Close() error {
	return m.Called().Error(0)
}

func TestRedisCache_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		m := &mockRedis{}
		m.On("Get", ctx, "plantcare:careplan:p1").Return(redis.NewStringResult(`{"a":1}`, nil))
		got, err := NewRedis(m).Get(ctx, "plantcare:careplan:p1")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(got))
		m.AssertExpectations(t)
	})

	t.Run("miss", func(t *testing.T) {
		m := &mockRedis{}
		m.On("Get", ctx, "k").Return(redis.NewStringResult("", redis.Nil))
		_, err := NewRedis(m).Get(ctx, "k")
		assert.True(t, errors.Is(err, ErrMiss))
	})

	t.Run("error", func(t *testing.T) {
		m := &mockRedis{}
		m.On("Get", ctx, "k").Return(redis.NewStringResult("", errors.New("connection refused")))
		_, err := NewRedis(m).Get(ctx, "k")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrMiss))
		assert.Contains(t, err.Error(), "redis get k")
	})
}

func TestRedisCache_SetDeletePing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := &mockRedis{}
	val := []byte("v")
	m.On("Set", ctx, "k", val, time.Hour).Return(redis.NewStatusResult("OK", nil))
	m.On("Del", ctx, []string{"k"}).Return(redis.NewIntResult(1, nil))
	m.On("Ping", ctx).Return(redis.NewStatusResult("PONG", nil))
	m.On("Close").Return(nil)

	c := NewRedis(m)
	require.NoError(t, c.Set(ctx, "k", val, time.Hour))
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
	m.AssertExpectations(t)
}

func TestNew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, err := New(ctx, config.CacheConfig{Driver: "memory"}, config.RedisConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	_, err = New(ctx, config.CacheConfig{Driver: "memcached"}, config.RedisConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")

	_, err = New(ctx, config.CacheConfig{Driver: "redis"}, config.RedisConfig{URL: "not a url"})
	require.Error(t, err)
}

func TestPlanKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "plantcare:careplan:abc", PlanKey("plantcare:careplan:", "abc"))
}
