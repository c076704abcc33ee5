package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"go.uber.org/zap"
)

var _ StateReader = (*Tracker)(nil)

// Tracker derives the sending-enabled flag from the operator kill switch and
// the tenant's monthly SMS_EXEC_COUNT total. A monthly limit of zero means
// unlimited.
type Tracker struct {
	counter      Counter
	store        RecordStore
	monthlyLimit int64
	logger       *zap.Logger
	now          func() time.Time
}

func NewTracker(counter Counter, store RecordStore, monthlyLimit int64, logger *zap.Logger) (*Tracker, error) {
	if counter == nil {
		return nil, fmt.Errorf("usage counter is required")
	}
	if monthlyLimit < 0 {
		return nil, fmt.Errorf("monthly limit must not be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tracker{
		counter:      counter,
		store:        store,
		monthlyLimit: monthlyLimit,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (t *Tracker) SMSSendEnabled(ctx context.Context, tenantID string) (bool, error) {
	disabled, err := t.counter.Disabled(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if disabled {
		return false, nil
	}
	if t.monthlyLimit == 0 {
		return true, nil
	}

	used, err := t.monthToDate(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return used < t.monthlyLimit, nil
}

// monthToDate reads the Redis counter, rebuilding it from the durable ledger
// when it is missing (e.g. after a Redis flush).
func (t *Tracker) monthToDate(ctx context.Context, tenantID string) (int64, error) {
	now := t.now()

	used, ok, err := t.counter.Get(ctx, tenantID, domain.RecordKindSMSExecCount, now)
	if err != nil {
		return 0, err
	}
	if ok || t.store == nil {
		return used, nil
	}

	used, err = t.store.SumSince(ctx, tenantID, domain.RecordKindSMSExecCount, monthStart(now))
	if err != nil {
		return 0, fmt.Errorf("rebuilding usage counter: %w", err)
	}
	if err := t.counter.Seed(ctx, tenantID, domain.RecordKindSMSExecCount, now, used); err != nil {
		t.logger.Warn("failed to seed usage counter", zap.String("tenantId", tenantID), zap.Error(err))
	}
	return used, nil
}
