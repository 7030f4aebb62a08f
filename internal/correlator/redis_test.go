package correlator

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	s, err := NewRedisStore(&redis.Options{Addr: mr.Addr()}, "test:req:", ttl)
	if err != nil {
		mr.Close()
		t.Fatalf("failed to create RedisStore: %v", err)
	}
	return s, mr
}

func TestRedisStore_SingleUse(t *testing.T) {
	s, mr := newTestRedisStore(t, time.Minute)
	defer mr.Close()
	defer s.Close()
	ctx := context.Background()

	id, err := s.Create(ctx, url.Values{"grant_type": {"authorization_code"}, "multi": {"a", "b"}})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:req:"+id))
	assert.Equal(t, time.Minute, mr.TTL("test:req:"+id))

	got, err := s.Consume(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "authorization_code", got.Get("grant_type"))
	assert.Equal(t, []string{"a", "b"}, got["multi"])
	assert.False(t, mr.Exists("test:req:"+id))

	_, err = s.Consume(ctx, id)
	var ce *errorx.CorrelationError
	assert.ErrorAs(t, err, &ce)

	_, err = s.Consume(ctx, "")
	assert.ErrorAs(t, err, &ce)
}

func TestRedisStore_Expiry(t *testing.T) {
	s, mr := newTestRedisStore(t, 120*time.Second)
	defer mr.Close()
	defer s.Close()
	ctx := context.Background()

	id, err := s.Create(ctx, url.Values{})
	require.NoError(t, err)

	mr.FastForward(121 * time.Second)
	_, err = s.Consume(ctx, id)
	var ce *errorx.CorrelationError
	assert.ErrorAs(t, err, &ce)
}

func TestRedisStore_ConcurrentConsume(t *testing.T) {
	s, mr := newTestRedisStore(t, time.Minute)
	defer mr.Close()
	defer s.Close()
	ctx := context.Background()

	id, err := s.Create(ctx, url.Values{"k": {"v"}})
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, id); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestRedisStore_ConnectionFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(&redis.Options{Addr: addr}, "x:", time.Minute)
	assert.Error(t, err)
}
