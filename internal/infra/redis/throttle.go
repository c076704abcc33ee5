package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 100
	backoffStep              = 10 * time.Millisecond
	backoffMax               = 50 * time.Millisecond
	windowSeconds            = 1
)

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.Limiter = (*SendThrottle)(nil)

// SendThrottle caps provider calls per second across every dispatcher
// instance sharing the Redis server.
type SendThrottle struct {
	client      *goredis.Client
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewSendThrottle(client *goredis.Client, limitPerSec int) (*SendThrottle, error) {
	return newSendThrottle(client, int64(limitPerSec), time.Now, sleepWithContext)
}

func newSendThrottle(
	client *goredis.Client,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*SendThrottle, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &SendThrottle{
		client:      client,
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}, nil
}

func (t *SendThrottle) Allow(ctx context.Context, scope string) (bool, error) {
	if t == nil || t.client == nil {
		return false, fmt.Errorf("send throttle is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(scope))
	if normalized == "" {
		return false, fmt.Errorf("throttle scope is required")
	}

	key := fmt.Sprintf("sms:throttle:%s:%d", normalized, t.now().UTC().Unix())
	result, err := allowScript.Run(ctx, t.client, []string{key}, t.limitPerSec, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate send throttle: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until a send slot is available in the current window or ctx ends.
func (t *SendThrottle) Wait(ctx context.Context, scope string) error {
	backoff := backoffStep
	for {
		allowed, err := t.Allow(ctx, scope)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := t.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff += backoffStep
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
