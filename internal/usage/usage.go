package usage

import (
	"context"
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
)

// StateReader answers whether a tenant may currently send SMS.
type StateReader interface {
	SMSSendEnabled(ctx context.Context, tenantID string) (bool, error)
}

// Reporter accepts usage reports without blocking the caller.
type Reporter interface {
	Report(report domain.UsageReport)
}

// Counter is the fast per-month usage store.
type Counter interface {
	Add(ctx context.Context, tenantID string, key domain.RecordKind, amount int64, at time.Time) (int64, error)
	Get(ctx context.Context, tenantID string, key domain.RecordKind, at time.Time) (int64, bool, error)
	Seed(ctx context.Context, tenantID string, key domain.RecordKind, at time.Time, value int64) error
	Disabled(ctx context.Context, tenantID string) (bool, error)
}

// RecordStore is the durable usage ledger.
type RecordStore interface {
	Create(ctx context.Context, r *domain.UsageRecord) error
	SumSince(ctx context.Context, tenantID string, key domain.RecordKind, since time.Time) (int64, error)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
