package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"github.com/kursadbilgin/sms-dispatch/internal/executor"
	"github.com/kursadbilgin/sms-dispatch/internal/observability"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every dispatch unit unless configured otherwise.
const DefaultTimeout = 30 * time.Second

// Submitter hands units to the worker pool.
type Submitter interface {
	Submit(ctx context.Context, task executor.Task) (*executor.Future, error)
}

// Timer is the supervisor's clock. Stop reports whether the timer was
// stopped before it fired.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type stdTimer struct {
	t *time.Timer
}

func (s stdTimer) C() <-chan time.Time { return s.t.C }
func (s stdTimer) Stop() bool          { return s.t.Stop() }

// Supervisor races every dispatch unit against a fixed deadline. Cancellation
// of the losing unit is best-effort: a running provider call may still
// complete after the caller has been told it timed out.
type Supervisor struct {
	pool     Submitter
	timeout  time.Duration
	newTimer func(d time.Duration) Timer
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	mu      sync.RWMutex
	running bool
	stopped bool
	stopCh  chan struct{}
}

func New(pool Submitter, timeout time.Duration, logger *zap.Logger) (*Supervisor, error) {
	if pool == nil {
		return nil, fmt.Errorf("worker pool is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Supervisor{
		pool:    pool,
		timeout: timeout,
		newTimer: func(d time.Duration) Timer {
			return stdTimer{t: time.NewTimer(d)}
		},
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}, nil
}

func (s *Supervisor) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *Supervisor) Timeout() time.Duration {
	return s.timeout
}

// Start enables the clock. A stopped supervisor cannot be restarted.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.running = true
	s.logger.Info("timeout supervisor started", zap.Duration("timeout", s.timeout))
}

// Stop disables the clock. Callers still waiting are released with
// Unavailable. Stop is idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.running = false
	close(s.stopCh)
	s.logger.Info("timeout supervisor stopped")
}

func (s *Supervisor) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Run submits task and waits for whichever comes first: the unit's result,
// the deadline, caller cancellation or supervisor shutdown. The deadline
// starts before submission. Errors returned by task propagate unchanged.
func (s *Supervisor) Run(ctx context.Context, kind string, task executor.Task) (int, error) {
	if !s.Running() {
		s.metrics.IncDispatch(kind, string(domain.KindUnavailable))
		return 0, domain.NewDispatchError(domain.KindUnavailable, "")
	}

	start := s.now()
	defer func() {
		s.metrics.ObserveDispatchDuration(kind, s.now().Sub(start))
	}()

	timer := s.newTimer(s.timeout)
	defer timer.Stop()

	// The deadline also bounds the wait for a queue slot.
	expired := make(chan struct{})
	submitCtx, cancelSubmit := context.WithCancel(ctx)
	defer cancelSubmit()
	released := make(chan struct{})
	defer close(released)
	go func() {
		select {
		case <-timer.C():
			close(expired)
			cancelSubmit()
		case <-s.stopCh:
			cancelSubmit()
		case <-released:
		}
	}()

	future, err := s.pool.Submit(submitCtx, task)
	if err != nil {
		return 0, s.submitFailure(ctx, kind, expired, err)
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("unitId", future.ID()),
		zap.String("kind", kind),
	)

	select {
	case <-future.Done():
		units, err := future.Result()
		s.recordOutcome(kind, err)
		return units, err

	case <-expired:
		if !future.Abandon(executor.StateTimedOut) {
			// Completed in the same instant the deadline fired.
			units, err := future.Result()
			s.recordOutcome(kind, err)
			return units, err
		}
		logger.Warn("dispatch unit timed out",
			zap.Duration("timeout", s.timeout),
			zap.String("state", future.State().String()),
		)
		s.metrics.IncDispatch(kind, string(domain.KindTimeout))
		return 0, domain.NewDispatchError(domain.KindTimeout, "")

	case <-ctx.Done():
		if !future.Abandon(executor.StateCanceled) {
			units, err := future.Result()
			s.recordOutcome(kind, err)
			return units, err
		}
		logger.Info("dispatch unit abandoned by caller", zap.Error(ctx.Err()))
		s.metrics.IncDispatch(kind, string(domain.KindCanceled))
		return 0, domain.NewDispatchError(domain.KindCanceled, "")

	case <-s.stopCh:
		future.Abandon(executor.StateCanceled)
		s.metrics.IncDispatch(kind, string(domain.KindUnavailable))
		return 0, domain.NewDispatchError(domain.KindUnavailable, "")
	}
}

func (s *Supervisor) submitFailure(ctx context.Context, kind string, expired <-chan struct{}, err error) error {
	switch {
	case errors.Is(err, executor.ErrPoolStopped):
		s.metrics.IncDispatch(kind, string(domain.KindUnavailable))
		return domain.NewDispatchError(domain.KindUnavailable, "")
	case isClosed(expired):
		s.logger.Warn("dispatch unit timed out waiting for a worker",
			zap.String("kind", kind),
			zap.Duration("timeout", s.timeout),
		)
		s.metrics.IncDispatch(kind, string(domain.KindTimeout))
		return domain.NewDispatchError(domain.KindTimeout, "")
	case ctx.Err() != nil:
		s.metrics.IncDispatch(kind, string(domain.KindCanceled))
		return domain.NewDispatchError(domain.KindCanceled, "")
	case isClosed(s.stopCh):
		s.metrics.IncDispatch(kind, string(domain.KindUnavailable))
		return domain.NewDispatchError(domain.KindUnavailable, "")
	}
	s.metrics.IncDispatch(kind, string(domain.KindUnavailable))
	return domain.NewDispatchError(domain.KindUnavailable, err.Error())
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (s *Supervisor) recordOutcome(kind string, err error) {
	outcome := "completed"
	if err != nil {
		outcome = string(domain.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.IncDispatch(kind, outcome)
}
