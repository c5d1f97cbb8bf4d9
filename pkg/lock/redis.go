package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
)

// releaseScript deletes the key only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var errLockHeld = errors.New("lock held by another holder")

// RedisOptions configures a Redis lock
type RedisOptions struct {
	// Prefix is prepended to every key, e.g. "laborflow:lock:"
	Prefix string

	// TTL bounds how long a crashed holder can block an offer
	TTL time.Duration

	// RetryInterval is the wait between acquisition attempts
	RetryInterval time.Duration

	// MaxAttempts bounds acquisition attempts before giving up
	MaxAttempts int
}

// Redis is a lock shared by every instance talking to the same Redis deployment.
// Keys are set with SET NX PX and a random token; release is compare-and-delete.
type Redis struct {
	client redis.UniversalClient
	opts   RedisOptions
	logger *zap.Logger
}

// NewRedis creates a Redis lock, filling unset options with defaults
func NewRedis(client redis.UniversalClient, opts RedisOptions, logger *zap.Logger) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 40
	}
	return &Redis{client: client, opts: opts, logger: logger}
}

// Acquire retries SET NX until it wins, attempts run out or ctx is done
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	fullKey := r.opts.Prefix + key
	token := uuid.NewString()
	offerID := offerIDFromKey(key)

	for attempt := 1; ; attempt++ {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.opts.TTL).Result()
		if err != nil {
			return nil, apperr.ConcurrencyConflict(offerID, fmt.Errorf("failed to set lock key: %w", err))
		}
		if ok {
			break
		}
		if attempt >= r.opts.MaxAttempts {
			return nil, apperr.ConcurrencyConflict(offerID, errLockHeld)
		}

		timer := time.NewTimer(r.opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apperr.ConcurrencyConflict(offerID, ctx.Err())
		case <-timer.C:
		}
	}

	r.logger.Debug("Acquired lock", zap.String("key", fullKey))

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := releaseScript.Run(releaseCtx, r.client, []string{fullKey}, token).Err(); err != nil {
				r.logger.Warn("Failed to release lock", zap.String("key", fullKey), zap.Error(err))
			}
		})
	}, nil
}
