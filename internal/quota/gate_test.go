package quota

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStateReader struct {
	smsSendEnabledFn func(ctx context.Context, tenantID string) (bool, error)
}

func (f *fakeStateReader) SMSSendEnabled(ctx context.Context, tenantID string) (bool, error) {
	return f.smsSendEnabledFn(ctx, tenantID)
}

func TestUsageGateIsSendAllowed(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		enabled bool
		err     error
		want    bool
	}{
		{name: "enabled", enabled: true, want: true},
		{name: "disabled", enabled: false, want: false},
		{name: "lookup error fails closed", enabled: true, err: errors.New("redis down"), want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var gotTenant string
			gate := NewUsageGate(&fakeStateReader{
				smsSendEnabledFn: func(_ context.Context, tenantID string) (bool, error) {
					gotTenant = tenantID
					return tc.enabled, tc.err
				},
			}, nil)

			if got := gate.IsSendAllowed(context.Background(), "tenant-7"); got != tc.want {
				t.Fatalf("IsSendAllowed() = %v, want %v", got, tc.want)
			}
			if gotTenant != "tenant-7" {
				t.Fatalf("tenant = %q, want tenant-7", gotTenant)
			}
		})
	}
}

func TestUsageGateLogsLookupFailure(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	gate := NewUsageGate(&fakeStateReader{
		smsSendEnabledFn: func(context.Context, string) (bool, error) {
			return false, errors.New("redis down")
		},
	}, zap.New(core))

	gate.IsSendAllowed(context.Background(), "t-1")

	if got := logs.FilterMessage("usage state lookup failed, refusing send").Len(); got != 1 {
		t.Fatalf("log entries = %d, want 1", got)
	}
}

func TestNilUsageGateRefuses(t *testing.T) {
	t.Parallel()

	if NewUsageGate(nil, nil).IsSendAllowed(context.Background(), "t-1") {
		t.Fatal("gate without state reader allowed a send")
	}
}
