package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Counters outlive their calendar month so late reports still land.
const usageCounterTTL = 40 * 24 * time.Hour

var addUsageScript = goredis.NewScript(`
local total = redis.call("INCRBY", KEYS[1], ARGV[1])
if redis.call("TTL", KEYS[1]) < 0 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return total
`)

// UsageCounter keeps per-tenant monthly usage totals and the operator kill
// switch for SMS sending.
type UsageCounter struct {
	client *goredis.Client
}

func NewUsageCounter(client *goredis.Client) (*UsageCounter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &UsageCounter{client: client}, nil
}

func usageKey(tenantID string, key domain.RecordKind, at time.Time) string {
	return fmt.Sprintf("sms:usage:%s:%s:%s", tenantID, key, at.UTC().Format("2006-01"))
}

func disabledKey(tenantID string) string {
	return fmt.Sprintf("sms:disabled:%s", tenantID)
}

// Add increments the counter for the month containing at and returns the new total.
func (c *UsageCounter) Add(ctx context.Context, tenantID string, key domain.RecordKind, amount int64, at time.Time) (int64, error) {
	total, err := addUsageScript.Run(ctx, c.client,
		[]string{usageKey(tenantID, key, at)},
		amount, int64(usageCounterTTL.Seconds()),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to add usage: %w", err)
	}
	return total, nil
}

// Get returns the month's total and whether the counter exists.
func (c *UsageCounter) Get(ctx context.Context, tenantID string, key domain.RecordKind, at time.Time) (int64, bool, error) {
	total, err := c.client.Get(ctx, usageKey(tenantID, key, at)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read usage: %w", err)
	}
	return total, true, nil
}

// Seed initialises a missing counter. An existing counter is left untouched.
func (c *UsageCounter) Seed(ctx context.Context, tenantID string, key domain.RecordKind, at time.Time, value int64) error {
	if err := c.client.SetNX(ctx, usageKey(tenantID, key, at), value, usageCounterTTL).Err(); err != nil {
		return fmt.Errorf("failed to seed usage: %w", err)
	}
	return nil
}

func (c *UsageCounter) Disabled(ctx context.Context, tenantID string) (bool, error) {
	n, err := c.client.Exists(ctx, disabledKey(tenantID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read sms kill switch: %w", err)
	}
	return n > 0, nil
}

func (c *UsageCounter) SetDisabled(ctx context.Context, tenantID string, disabled bool) error {
	var err error
	if disabled {
		err = c.client.Set(ctx, disabledKey(tenantID), 1, 0).Err()
	} else {
		err = c.client.Del(ctx, disabledKey(tenantID)).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to update sms kill switch: %w", err)
	}
	return nil
}
