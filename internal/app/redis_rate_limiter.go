package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rate limit scopes for the payment endpoints. Order creation and payment
// verification are limited independently so a burst of verify retries cannot
// starve order creation.
const (
	RateLimitScopeOrder  = "order"
	RateLimitScopeVerify = "verify"
)

// Both payment endpoints are limited per minute; the window is fixed rather
// than configurable because Retry-After math and the limiter keys assume it.
const rateLimitWindow = time.Minute

var paymentRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisRateLimiter enforces fixed-window per-user limits on the payment
// endpoints using a Redis counter with expiry. A degraded limiter (nil client)
// allows everything, so a Redis outage never blocks settlement.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "celora:rate_limit"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisRateLimiter{
		client: client,
		prefix: trimmedPrefix,
	}
}

// Allow consumes one request from the user's window for the given scope. When
// the caller is over the per-minute limit it returns allowed=false together
// with the whole seconds until the window resets, ready for a Retry-After
// header.
func (r *RedisRateLimiter) Allow(ctx context.Context, scope string, userID uuid.UUID, perMinute int) (allowed bool, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || perMinute <= 0 {
		return true, 0, nil
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, scope, userID)
	windowMs := rateLimitWindow.Milliseconds()
	rawResult, err := paymentRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	if count <= int64(perMinute) {
		return true, 0, nil
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter, nil
}
