package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"github.com/kursadbilgin/sms-dispatch/internal/executor"
	"github.com/kursadbilgin/sms-dispatch/internal/observability"
	"github.com/kursadbilgin/sms-dispatch/internal/provider"
	"github.com/kursadbilgin/sms-dispatch/internal/quota"
	"github.com/kursadbilgin/sms-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/sms-dispatch/internal/usage"
	"go.uber.org/zap"
)

const (
	unitKindBatch        = "batch"
	unitKindDirect       = "direct"
	unitKindVerification = "verification"
)

// Runner executes a dispatch unit under the timeout supervisor.
type Runner interface {
	Run(ctx context.Context, kind string, task executor.Task) (int, error)
}

// VerificationRequest is an operator's test send against a candidate
// configuration.
type VerificationRequest struct {
	Configuration provider.Configuration
	Address       string
	Message       string
}

func (r VerificationRequest) Validate() error {
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("%w: numberTo is required", domain.ErrValidation)
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	return r.Configuration.Validate()
}

// SMSService is the dispatch engine. Every send runs as a unit on the worker
// pool, bounded by the supervisor's deadline.
type SMSService struct {
	config   *ConfigManager
	gate     quota.Gate
	reporter usage.Reporter
	factory  provider.Factory
	runner   Runner
	throttle ratelimit.Limiter
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewSMSService(
	config *ConfigManager,
	gate quota.Gate,
	reporter usage.Reporter,
	factory provider.Factory,
	runner Runner,
	logger *zap.Logger,
) (*SMSService, error) {
	if config == nil {
		return nil, fmt.Errorf("config manager is required")
	}
	if gate == nil {
		return nil, fmt.Errorf("quota gate is required")
	}
	if reporter == nil {
		return nil, fmt.Errorf("usage reporter is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("provider factory is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("dispatch runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SMSService{
		config:   config,
		gate:     gate,
		reporter: reporter,
		factory:  factory,
		runner:   runner,
		logger:   logger,
	}, nil
}

func (s *SMSService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SetThrottle paces provider calls. A nil limiter disables pacing.
func (s *SMSService) SetThrottle(throttle ratelimit.Limiter) {
	if s == nil {
		return
	}
	s.throttle = throttle
}

// SendBatch sends message to every address in order on the active handle and
// returns the number of units the provider accepted. The first failure aborts
// the rest of the batch; units already sent are still reported to usage
// accounting.
func (s *SMSService) SendBatch(ctx context.Context, req domain.DispatchRequest) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	req = req.Normalize()
	ctx = observability.WithTenantID(ctx, req.TenantID)

	if !s.config.Slot().Configured() {
		s.metrics.IncDispatch(unitKindBatch, string(domain.KindNotConfigured))
		return 0, domain.NotConfigured()
	}

	if !s.gate.IsSendAllowed(ctx, req.TenantID) {
		s.metrics.IncDispatch(unitKindBatch, string(domain.KindSendingDisabled))
		observability.WithContextLogger(s.logger, ctx).Info("sms batch refused by quota gate")
		return 0, domain.SendingDisabled()
	}

	return s.run(ctx, unitKindBatch, func(unitCtx context.Context) (int, error) {
		sent, err := s.sendOnActive(unitCtx, req.Addresses, req.Message)
		if sent > 0 {
			s.reporter.Report(domain.UsageReport{
				TenantID:   req.TenantID,
				CustomerID: req.CustomerID,
				Key:        domain.RecordKindSMSExecCount,
				Amount:     int64(sent),
			})
			s.metrics.AddSentUnits(sent)
		}
		if err != nil {
			observability.WithContextLogger(s.logger, unitCtx).Warn("sms batch aborted",
				zap.Int("sentUnits", sent),
				zap.Int("recipients", len(req.Addresses)),
				zap.Error(err),
			)
		}
		return sent, err
	})
}

// SendDirect sends a system-scoped message on the active handle without
// consulting the quota gate or reporting usage.
func (s *SMSService) SendDirect(ctx context.Context, addresses []string, message string) (int, error) {
	req := domain.DispatchRequest{TenantID: domain.SystemTenantID, Addresses: addresses, Message: message}
	if err := req.Validate(); err != nil {
		return 0, err
	}
	req = req.Normalize()
	ctx = observability.WithTenantID(ctx, req.TenantID)

	if !s.config.Slot().Configured() {
		s.metrics.IncDispatch(unitKindDirect, string(domain.KindNotConfigured))
		return 0, domain.NotConfigured()
	}

	return s.run(ctx, unitKindDirect, func(unitCtx context.Context) (int, error) {
		return s.sendOnActive(unitCtx, req.Addresses, req.Message)
	})
}

// SendVerification performs one send through a transient sender built from
// the supplied configuration. The sender is closed on every exit path,
// including after the caller has already been told the unit timed out.
func (s *SMSService) SendVerification(ctx context.Context, req VerificationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	address := strings.TrimSpace(req.Address)

	_, err := s.run(ctx, unitKindVerification, func(unitCtx context.Context) (int, error) {
		sender, err := s.factory.CreateSender(req.Configuration)
		if err != nil {
			return 0, translateProviderError(err)
		}
		defer func() {
			if closeErr := sender.Close(); closeErr != nil {
				s.logger.Warn("failed to release verification sender", zap.Error(closeErr))
			}
		}()

		units, err := sender.Send(unitCtx, address, req.Message)
		if err != nil {
			return 0, translateProviderError(err)
		}
		return units, nil
	})
	return err
}

func (s *SMSService) IsConfigured(tenantID string) bool {
	return s.config.IsConfigured(tenantID)
}

func (s *SMSService) UpdateConfiguration(ctx context.Context) error {
	return s.config.Reload(ctx)
}

// run hands task to the supervisor. Anything the unit did not translate
// itself (a recovered panic) surfaces as a provider failure.
func (s *SMSService) run(ctx context.Context, kind string, task executor.Task) (int, error) {
	units, err := s.runner.Run(ctx, kind, task)
	if err != nil {
		return units, translateProviderError(err)
	}
	return units, nil
}

func (s *SMSService) sendOnActive(ctx context.Context, addresses []string, message string) (int, error) {
	handle, ok := s.config.Slot().Acquire()
	if !ok {
		return 0, domain.NotConfigured()
	}
	defer handle.Release()

	sent := 0
	for _, address := range addresses {
		// Best-effort stop once the unit has been abandoned.
		if err := ctx.Err(); err != nil {
			return sent, translateProviderError(err)
		}
		if err := s.wait(ctx, handle.Type()); err != nil {
			return sent, translateProviderError(err)
		}

		units, err := handle.Send(ctx, address, message)
		if err != nil {
			return sent, translateProviderError(err)
		}
		sent += units
	}

	return sent, nil
}

func (s *SMSService) wait(ctx context.Context, providerType provider.Type) error {
	if s.throttle == nil {
		return nil
	}

	err := s.throttle.Wait(ctx, providerType.String())
	if err == nil || ctx.Err() != nil {
		return err
	}

	// A throttle outage does not stop delivery.
	s.logger.Warn("send throttle unavailable, sending without pacing", zap.Error(err))
	return nil
}

func translateProviderError(err error) error {
	var dispatchErr *domain.DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr
	}
	return domain.ProviderFailure(provider.MostSpecificCause(err))
}
