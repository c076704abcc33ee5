package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	infraredis "github.com/kursadbilgin/sms-dispatch/internal/infra/redis"
	goredis "github.com/redis/go-redis/v9"
)

type fakeRecordStore struct {
	mu         sync.Mutex
	records    []domain.UsageRecord
	createFn   func(ctx context.Context, r *domain.UsageRecord) error
	sumSinceFn func(ctx context.Context, tenantID string, key domain.RecordKind, since time.Time) (int64, error)
}

func (f *fakeRecordStore) Create(ctx context.Context, r *domain.UsageRecord) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, r); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeRecordStore) SumSince(ctx context.Context, tenantID string, key domain.RecordKind, since time.Time) (int64, error) {
	if f.sumSinceFn != nil {
		return f.sumSinceFn(ctx, tenantID, key, since)
	}
	return 0, nil
}

func (f *fakeRecordStore) snapshot() []domain.UsageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.UsageRecord(nil), f.records...)
}

func newTestCounter(t *testing.T) (*infraredis.UsageCounter, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	counter, err := infraredis.NewUsageCounter(rdb)
	if err != nil {
		t.Fatalf("NewUsageCounter() error = %v", err)
	}
	return counter, rdb
}
