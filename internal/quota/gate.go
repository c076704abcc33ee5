package quota

import (
	"context"

	"github.com/kursadbilgin/sms-dispatch/internal/usage"
	"go.uber.org/zap"
)

// Gate decides whether a tenant may send right now.
type Gate interface {
	IsSendAllowed(ctx context.Context, tenantID string) bool
}

var _ Gate = (*UsageGate)(nil)

// UsageGate consults the usage state reader. Lookup failures refuse the send.
type UsageGate struct {
	state  usage.StateReader
	logger *zap.Logger
}

func NewUsageGate(state usage.StateReader, logger *zap.Logger) *UsageGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageGate{state: state, logger: logger}
}

func (g *UsageGate) IsSendAllowed(ctx context.Context, tenantID string) bool {
	if g == nil || g.state == nil {
		return false
	}

	enabled, err := g.state.SMSSendEnabled(ctx, tenantID)
	if err != nil {
		g.logger.Error("usage state lookup failed, refusing send",
			zap.String("tenantId", tenantID),
			zap.Error(err),
		)
		return false
	}
	return enabled
}
