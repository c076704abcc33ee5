package redis

import (
	"context"
	"testing"
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
)

func TestUsageCounterAddAndGet(t *testing.T) {
	t.Parallel()

	counter, err := NewUsageCounter(newTestRedisClient(t))
	if err != nil {
		t.Fatalf("NewUsageCounter() error = %v", err)
	}

	ctx := context.Background()
	march := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	if _, ok, err := counter.Get(ctx, "t-1", domain.RecordKindSMSExecCount, march); err != nil || ok {
		t.Fatalf("Get() on missing counter = ok %v, err %v", ok, err)
	}

	if total, err := counter.Add(ctx, "t-1", domain.RecordKindSMSExecCount, 3, march); err != nil || total != 3 {
		t.Fatalf("Add() = %d, %v; want 3", total, err)
	}
	if total, err := counter.Add(ctx, "t-1", domain.RecordKindSMSExecCount, 2, march); err != nil || total != 5 {
		t.Fatalf("Add() = %d, %v; want 5", total, err)
	}

	total, ok, err := counter.Get(ctx, "t-1", domain.RecordKindSMSExecCount, march)
	if err != nil || !ok || total != 5 {
		t.Fatalf("Get() = %d, %v, %v; want 5, true, nil", total, ok, err)
	}

	april := march.AddDate(0, 1, 0)
	if _, ok, _ := counter.Get(ctx, "t-1", domain.RecordKindSMSExecCount, april); ok {
		t.Fatal("counter leaked into the next month")
	}
}

func TestUsageCounterSeedDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	counter, err := NewUsageCounter(newTestRedisClient(t))
	if err != nil {
		t.Fatalf("NewUsageCounter() error = %v", err)
	}

	ctx := context.Background()
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	if err := counter.Seed(ctx, "t-1", domain.RecordKindSMSExecCount, now, 10); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if err := counter.Seed(ctx, "t-1", domain.RecordKindSMSExecCount, now, 99); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	total, _, err := counter.Get(ctx, "t-1", domain.RecordKindSMSExecCount, now)
	if err != nil || total != 10 {
		t.Fatalf("Get() = %d, %v; want 10", total, err)
	}
}

func TestUsageCounterKillSwitch(t *testing.T) {
	t.Parallel()

	counter, err := NewUsageCounter(newTestRedisClient(t))
	if err != nil {
		t.Fatalf("NewUsageCounter() error = %v", err)
	}

	ctx := context.Background()
	if disabled, err := counter.Disabled(ctx, "t-1"); err != nil || disabled {
		t.Fatalf("Disabled() = %v, %v; want false", disabled, err)
	}
	if err := counter.SetDisabled(ctx, "t-1", true); err != nil {
		t.Fatalf("SetDisabled(true) error = %v", err)
	}
	if disabled, _ := counter.Disabled(ctx, "t-1"); !disabled {
		t.Fatal("expected tenant to be disabled")
	}
	if disabled, _ := counter.Disabled(ctx, "t-2"); disabled {
		t.Fatal("kill switch leaked to another tenant")
	}
	if err := counter.SetDisabled(ctx, "t-1", false); err != nil {
		t.Fatalf("SetDisabled(false) error = %v", err)
	}
	if disabled, _ := counter.Disabled(ctx, "t-1"); disabled {
		t.Fatal("expected tenant to be re-enabled")
	}
}
