package attributes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "laborflow:attrs:"

// Cached fronts a Provider with a Redis read-through cache.
// Cache failures are logged and fall through to the wrapped provider.
type Cached struct {
	next   Provider
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps next with a cache whose entries live for ttl
func NewCached(next Provider, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Cached {
	return &Cached{next: next, client: client, ttl: ttl, logger: logger}
}

// GetAttributes serves hits from Redis and fetches misses from the wrapped provider
func (c *Cached) GetAttributes(ctx context.Context, employeeIDs []string) (map[string]Employee, error) {
	out := make(map[string]Employee, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(employeeIDs))
	for i, id := range employeeIDs {
		keys[i] = cacheKeyPrefix + id
	}

	misses := employeeIDs
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("Attribute cache read failed", zap.Error(err))
	} else {
		misses = nil
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				misses = append(misses, employeeIDs[i])
				continue
			}
			var emp Employee
			if err := json.Unmarshal([]byte(s), &emp); err != nil {
				misses = append(misses, employeeIDs[i])
				continue
			}
			out[employeeIDs[i]] = emp
		}
	}

	c.logger.Debug("Attribute cache lookup",
		zap.Int("requested", len(employeeIDs)),
		zap.Int("hits", len(employeeIDs)-len(misses)))

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.next.GetAttributes(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch employee attributes: %w", err)
	}

	pipe := c.client.Pipeline()
	for id, emp := range fetched {
		out[id] = emp
		data, err := json.Marshal(emp)
		if err != nil {
			continue
		}
		pipe.Set(ctx, cacheKeyPrefix+id, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Attribute cache write failed", zap.Error(err))
	}

	return out, nil
}

// Invalidate drops cached attributes, e.g. after an employee accepts an offer
func (c *Cached) Invalidate(ctx context.Context, employeeIDs ...string) error {
	if len(employeeIDs) == 0 {
		return nil
	}
	keys := make([]string, len(employeeIDs))
	for i, id := range employeeIDs {
		keys[i] = cacheKeyPrefix + id
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate attribute cache: %w", err)
	}
	return nil
}
