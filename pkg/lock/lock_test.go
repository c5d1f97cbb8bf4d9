package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal(0)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for n := 0; n < 20; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, OfferKey("offer-1"))
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Len())
}

func TestLocal_DifferentKeysDoNotContend(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)
	ctx := context.Background()

	release1, err := l.Acquire(ctx, OfferKey("offer-1"))
	require.NoError(t, err)
	defer release1()

	release2, err := l.Acquire(ctx, OfferKey("offer-2"))
	require.NoError(t, err)
	release2()
}

func TestLocal_TimeoutIsConcurrencyConflict(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, OfferKey("offer-1"))
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(ctx, OfferKey("offer-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConcurrencyConflict))
	assert.True(t, apperr.IsRetryable(err))
	assert.Contains(t, err.Error(), "offer_id=offer-1")
}

func TestLocal_ReleaseTwiceIsNoop(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, OfferKey("offer-1"))
	require.NoError(t, err)
	release()
	release()

	release, err = l.Acquire(ctx, OfferKey("offer-1"))
	require.NoError(t, err)
	release()
	assert.Equal(t, 0, l.Len())
}

func TestLocal_CancelledContext(t *testing.T) {
	l := NewLocal(0)

	release, err := l.Acquire(context.Background(), OfferKey("offer-1"))
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, OfferKey("offer-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedis(client, RedisOptions{Prefix: "laborflow:lock:", TTL: time.Minute}, zap.NewNop())
	ctx := context.Background()

	release, err := l.Acquire(ctx, OfferKey("offer-1"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("laborflow:lock:offer:offer-1"))
	assert.Equal(t, time.Minute, mr.TTL("laborflow:lock:offer:offer-1"))

	release()
	assert.False(t, mr.Exists("laborflow:lock:offer:offer-1"))
}

func TestRedis_HeldLockIsConcurrencyConflict(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewRedis(client, RedisOptions{RetryInterval: time.Millisecond, MaxAttempts: 3}, zap.NewNop())
	ctx := context.Background()

	release, err := l.Acquire(ctx, OfferKey("offer-1"))
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(ctx, OfferKey("offer-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConcurrencyConflict))
	assert.True(t, errors.Is(err, errLockHeld))
}

func TestRedis_ReleaseDoesNotDeleteForeignLock(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedis(client, RedisOptions{}, zap.NewNop())
	ctx := context.Background()

	release, err := l.Acquire(ctx, OfferKey("offer-1"))
	require.NoError(t, err)

	// Simulate the lock expiring and another instance taking it
	require.NoError(t, mr.Set("offer:offer-1", "someone-else"))

	release()
	got, err := mr.Get("offer:offer-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedis_WaitsForRelease(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewRedis(client, RedisOptions{RetryInterval: 5 * time.Millisecond, MaxAttempts: 200}, zap.NewNop())
	ctx := context.Background()

	release, err := l.Acquire(ctx, OfferKey("offer-1"))
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	release2, err := l.Acquire(ctx, OfferKey("offer-1"))
	require.NoError(t, err)
	release2()
}
