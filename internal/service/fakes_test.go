package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"github.com/kursadbilgin/sms-dispatch/internal/executor"
	"github.com/kursadbilgin/sms-dispatch/internal/provider"
	"github.com/kursadbilgin/sms-dispatch/internal/supervisor"
)

const mockConfigJSON = `{"type":"MOCK"}`

type fakeSender struct {
	mu     sync.Mutex
	calls  []string
	sendFn func(ctx context.Context, to string, message string) (int, error)
	closes atomic.Int32
}

func (f *fakeSender) Send(ctx context.Context, to string, message string) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, to)
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, to, message)
	}
	return 1, nil
}

func (f *fakeSender) Close() error {
	f.closes.Add(1)
	return nil
}

func (f *fakeSender) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeFactory struct {
	mu             sync.Mutex
	created        int
	createSenderFn func(cfg provider.Configuration) (provider.Sender, error)
}

func (f *fakeFactory) CreateSender(cfg provider.Configuration) (provider.Sender, error) {
	f.mu.Lock()
	f.created++
	f.mu.Unlock()
	return f.createSenderFn(cfg)
}

func (f *fakeFactory) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// sequenceFactory hands out senders in order.
func sequenceFactory(senders ...*fakeSender) *fakeFactory {
	var mu sync.Mutex
	next := 0
	return &fakeFactory{
		createSenderFn: func(provider.Configuration) (provider.Sender, error) {
			mu.Lock()
			defer mu.Unlock()
			s := senders[next]
			if next < len(senders)-1 {
				next++
			}
			return s, nil
		},
	}
}

type fakeSettingsRepo struct {
	mu        sync.Mutex
	stored    map[string]domain.AdminSettings
	findErr   error
	saveCalls int
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{stored: map[string]domain.AdminSettings{}}
}

func (f *fakeSettingsRepo) put(key string, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[key] = domain.AdminSettings{TenantID: domain.SystemTenantID, Key: key, JSONValue: []byte(value)}
}

func (f *fakeSettingsRepo) FindByKey(ctx context.Context, tenantID, key string) (*domain.AdminSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.stored[key]
	if !ok || tenantID != domain.SystemTenantID {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSettingsRepo) Save(ctx context.Context, s *domain.AdminSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	f.stored[s.Key] = *s
	return nil
}

type fakeGate struct {
	allowed bool
	calls   atomic.Int32
}

func (f *fakeGate) IsSendAllowed(ctx context.Context, tenantID string) bool {
	f.calls.Add(1)
	return f.allowed
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []domain.UsageReport
	notify  chan struct{}
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{notify: make(chan struct{}, 16)}
}

func (r *recordingReporter) Report(report domain.UsageReport) {
	r.mu.Lock()
	r.reports = append(r.reports, report)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recordingReporter) snapshot() []domain.UsageReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.UsageReport(nil), r.reports...)
}

type harness struct {
	settings   *fakeSettingsRepo
	factory    *fakeFactory
	gate       *fakeGate
	reporter   *recordingReporter
	supervisor *supervisor.Supervisor
	config     *ConfigManager
	service    *SMSService
}

func newHarness(t *testing.T, factory *fakeFactory, timeout time.Duration) *harness {
	t.Helper()

	pool, err := executor.NewPool(2, 8, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	pool.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})

	sup, err := supervisor.New(pool, timeout, nil)
	if err != nil {
		t.Fatalf("supervisor.New() error = %v", err)
	}
	sup.Start()

	settings := newFakeSettingsRepo()
	config, err := NewConfigManager(settings, factory, sup, domain.SMSSettingsKey, nil)
	if err != nil {
		t.Fatalf("NewConfigManager() error = %v", err)
	}
	t.Cleanup(config.Shutdown)

	gate := &fakeGate{allowed: true}
	reporter := newRecordingReporter()

	svc, err := NewSMSService(config, gate, reporter, factory, sup, nil)
	if err != nil {
		t.Fatalf("NewSMSService() error = %v", err)
	}

	return &harness{
		settings:   settings,
		factory:    factory,
		gate:       gate,
		reporter:   reporter,
		supervisor: sup,
		config:     config,
		service:    svc,
	}
}

func (h *harness) configure(t *testing.T) {
	t.Helper()

	h.settings.put(domain.SMSSettingsKey, mockConfigJSON)
	if err := h.service.UpdateConfiguration(context.Background()); err != nil {
		t.Fatalf("UpdateConfiguration() error = %v", err)
	}
}

func batch(addresses ...string) domain.DispatchRequest {
	return domain.DispatchRequest{
		TenantID:   "tenant-1",
		CustomerID: "customer-1",
		Addresses:  addresses,
		Message:    "hi",
	}
}
