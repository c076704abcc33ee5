package provider

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// MockScenario enumerates the behaviours supported by the mock sender.
type MockScenario string

const (
	MockScenarioSuccess MockScenario = "success"
	MockScenarioFailure MockScenario = "failure"
	MockScenarioHang    MockScenario = "hang"
)

func (s MockScenario) isValid() bool {
	switch s {
	case "", MockScenarioSuccess, MockScenarioFailure, MockScenarioHang:
		return true
	}
	return false
}

// MockSender is a deterministic sender for local environments.
type MockSender struct {
	scenario MockScenario
	latency  time.Duration
	sent     atomic.Int64
	closed   atomic.Bool
}

func NewMockSender(cfg MockConfig) (*MockSender, error) {
	if err := (Configuration{Type: TypeMock, Mock: &cfg}).Validate(); err != nil {
		return nil, err
	}

	scenario := MockScenario(strings.ToLower(strings.TrimSpace(cfg.Scenario)))
	if scenario == "" {
		scenario = MockScenarioSuccess
	}

	return &MockSender{
		scenario: scenario,
		latency:  time.Duration(cfg.LatencyMillis) * time.Millisecond,
	}, nil
}

func (m *MockSender) Send(ctx context.Context, to string, message string) (int, error) {
	if m.closed.Load() {
		return 0, &ProviderError{Message: "mock sender unavailable", Cause: ErrSenderClosed}
	}

	if m.latency > 0 {
		timer := time.NewTimer(m.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	switch m.scenario {
	case MockScenarioFailure:
		return 0, &ProviderError{Message: fmt.Sprintf("mock rejected recipient %s", to)}
	case MockScenarioHang:
		<-ctx.Done()
		return 0, ctx.Err()
	}

	m.sent.Add(1)
	return Segments(message), nil
}

// Sent reports how many messages were accepted.
func (m *MockSender) Sent() int64 {
	return m.sent.Load()
}

func (m *MockSender) Close() error {
	m.closed.Store(true)
	return nil
}
