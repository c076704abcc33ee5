package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"github.com/kursadbilgin/sms-dispatch/internal/observability"
	"github.com/kursadbilgin/sms-dispatch/internal/queue"
	"go.uber.org/zap"
)

// BatchSender is the part of the dispatch engine the queue processor needs.
type BatchSender interface {
	SendBatch(ctx context.Context, req domain.DispatchRequest) (int, error)
	SendDirect(ctx context.Context, addresses []string, message string) (int, error)
}

// DispatchProcessor turns rule-engine queue messages into batch sends.
type DispatchProcessor struct {
	sender BatchSender
	rule   domain.AlarmRule
	logger *zap.Logger
}

func NewDispatchProcessor(sender BatchSender, rule domain.AlarmRule, logger *zap.Logger) (*DispatchProcessor, error) {
	if sender == nil {
		return nil, fmt.Errorf("batch sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchProcessor{
		sender: sender,
		rule:   rule,
		logger: logger,
	}, nil
}

// Handle is a queue.MessageHandler. Messages without a tenant are system
// scoped and skip the quota gate. Only an unavailable or cancelled
// dispatcher requeues; every other dispatch outcome is final and acked so a
// partially delivered batch is never resent.
func (p *DispatchProcessor) Handle(ctx context.Context, msg queue.DispatchMessage) error {
	logger := observability.WithContextLogger(p.logger, ctx).With(
		zap.String("messageId", msg.MessageID),
		zap.String("tenantId", msg.TenantID),
	)

	if msg.Trigger != nil {
		severity, raised, err := p.rule.Evaluate(msg.Trigger.DeviceType, msg.Trigger.Metadata)
		if err != nil {
			return fmt.Errorf("%w: %v", queue.ErrReject, err)
		}
		if !raised {
			logger.Debug("alarm rule not raised, skipping dispatch",
				zap.String("deviceType", msg.Trigger.DeviceType),
			)
			return nil
		}
		logger = logger.With(zap.String("severity", severity.String()))
	}

	sent, err := p.dispatch(ctx, msg)
	if err == nil {
		logger.Info("sms batch dispatched", zap.Int("sentUnits", sent))
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return fmt.Errorf("%w: %v", queue.ErrReject, err)
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrCanceled):
		logger.Warn("dispatcher unavailable, requeueing", zap.Error(err))
		return err
	}

	logger.Warn("sms batch dispatch failed",
		zap.String("kind", domain.KindOf(err).String()),
		zap.Error(err),
	)
	return nil
}

func (p *DispatchProcessor) dispatch(ctx context.Context, msg queue.DispatchMessage) (int, error) {
	req := msg.Request()
	if msg.SystemScoped() {
		return p.sender.SendDirect(ctx, req.Addresses, req.Message)
	}
	return p.sender.SendBatch(ctx, req)
}
