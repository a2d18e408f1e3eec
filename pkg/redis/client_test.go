package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopflow-backend/pkg/config"
)

type fakeCommands struct {
	values   map[string]string
	counters map[string]int64
	ttls     map[string]time.Duration
	expires  int
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		values:   map[string]string{},
		counters: map[string]int64{},
		ttls:     map[string]time.Duration{},
	}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.values[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires++
	if _, ok := f.ttls[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.values, key)
		delete(f.ttls, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestFixedWindowAllowCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	cmds := newFakeCommands()
	client := &Client{cmd: cmds}

	for want := int64(1); want <= 2; want++ {
		ok, n, err := client.FixedWindowAllow(ctx, "orders.create:u1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, n)
	}
	ok, n, err := client.FixedWindowAllow(ctx, "orders.create:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), n)

	assert.Equal(t, time.Minute, cmds.ttls["sf:rate_limit:orders.create:u1"])
	assert.Equal(t, 3, cmds.expires)
}

func TestIncrWithoutTTLSkipsExpire(t *testing.T) {
	cmds := newFakeCommands()
	client := &Client{cmd: cmds}

	n, err := client.IncrWithTTL(context.Background(), "counter", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, cmds.expires)
}

func TestSetNXGetDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.LockKey("cron-worker")

	won, err := client.SetNX(ctx, key, "replica-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = client.SetNX(ctx, key, "replica-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	owner, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "replica-a", owner)

	require.NoError(t, client.Del(ctx, key))
	require.NoError(t, client.Del(ctx))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, Nil)
}

func TestKeysUsePrefix(t *testing.T) {
	def := &Client{}
	assert.Equal(t, "sf:idempotency:user|POST|/api/orders:k1", def.IdempotencyKey("user|POST|/api/orders", "k1"))
	assert.Equal(t, "sf:rate_limit:orders.create", def.RateLimitKey("orders.create"))
	assert.Equal(t, "sf:lock:cron", def.LockKey(" cron "))
	assert.Equal(t, "sf:idempotency:scope", def.IdempotencyKey("scope", ""))

	custom := &Client{prefix: "shopflow-test"}
	assert.Equal(t, "shopflow-test:lock:cron", custom.LockKey("cron"))
}

func TestUninitializedClient(t *testing.T) {
	var nilClient *Client
	assert.ErrorIs(t, nilClient.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, nilClient.Close())

	_, err := (&Client{}).Get(context.Background(), "k")
	assert.ErrorIs(t, err, errNotInitialized)
}

func TestDialOptions(t *testing.T) {
	_, err := dialOptions(config.RedisConfig{})
	require.Error(t, err)

	opts, err := dialOptions(config.RedisConfig{URL: "redis://:secret@cache:6380/0", DB: 3, PoolSize: 20})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)

	opts, err = dialOptions(config.RedisConfig{Address: "localhost:6379", DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = dialOptions(config.RedisConfig{URL: "://bad"})
	require.Error(t, err)
}
