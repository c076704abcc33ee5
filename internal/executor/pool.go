package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kursadbilgin/sms-dispatch/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkers       = 1
	defaultQueueSize = 256
)

var (
	ErrPoolStopped = errors.New("worker pool is stopped")
	ErrUnitSkipped = errors.New("dispatch unit abandoned before it started")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("dispatch unit panicked: %v", e.Value)
}

// Pool runs dispatch units on a fixed set of workers fed by a bounded queue.
type Pool struct {
	workers int
	queue   chan *Future
	logger  *zap.Logger
	metrics *observability.Metrics

	baseCtx    context.Context
	baseCancel context.CancelFunc
	group      *errgroup.Group

	mu       sync.RWMutex
	started  bool
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPool(workers int, queueSize int, logger *zap.Logger) (*Pool, error) {
	if workers < minWorkers {
		return nil, fmt.Errorf("worker pool needs at least %d worker", minWorkers)
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &Pool{
		workers:    workers,
		queue:      make(chan *Future, queueSize),
		logger:     logger,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		stopCh:     make(chan struct{}),
	}, nil
}

func (p *Pool) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// Start launches the workers. It is a no-op when already started.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true

	p.group = &errgroup.Group{}
	for i := 0; i < p.workers; i++ {
		workerID := i + 1
		p.group.Go(func() error {
			p.work(workerID)
			return nil
		})
	}

	p.logger.Info("worker pool started",
		zap.Int("workers", p.workers),
		zap.Int("queueSize", cap(p.queue)),
	)
}

// Submit enqueues task. It blocks while the queue is full until the unit is
// accepted, ctx ends, or the pool stops.
func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	if task == nil {
		return nil, fmt.Errorf("task is required")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return nil, ErrPoolStopped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := newFuture(ctx, task)
	select {
	case <-p.stopCh:
		return nil, ErrPoolStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	case p.queue <- f:
		return f, nil
	}
}

// Stop refuses new units, fails queued ones with ErrPoolStopped and waits
// for running units. When ctx ends first, running units are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})

	p.mu.Lock()
	p.stopped = true
	group := p.group
	p.mu.Unlock()

	workersDone := make(chan struct{})
	go func() {
		if group != nil {
			_ = group.Wait()
		}
		close(workersDone)
	}()

	var err error
	select {
	case <-workersDone:
	case <-ctx.Done():
		p.baseCancel()
		err = ctx.Err()
	}

	p.drain()
	p.baseCancel()
	return err
}

func (p *Pool) drain() {
	for {
		select {
		case f := <-p.queue:
			f.fail(ErrPoolStopped)
		default:
			return
		}
	}
}

func (p *Pool) work(workerID int) {
	for {
		select {
		case <-p.stopCh:
			return
		case f := <-p.queue:
			p.run(workerID, f)
		}
	}
}

func (p *Pool) run(workerID int, f *Future) {
	if !f.start() {
		// Abandoned while queued.
		f.resolve(0, ErrUnitSkipped)
		p.logger.Debug("skipping abandoned dispatch unit",
			zap.Int("workerId", workerID),
			zap.String("unitId", f.id),
			zap.String("state", f.State().String()),
		)
		return
	}

	p.metrics.IncPoolInFlight()
	defer p.metrics.DecPoolInFlight()

	stop := context.AfterFunc(p.baseCtx, f.cancel)
	defer stop()

	units, err := p.execute(f)
	f.finish(units, err)
}

func (p *Pool) execute(f *Future) (units int, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger.Error("dispatch unit panicked",
				zap.String("unitId", f.id),
				zap.Any("panic", recovered),
			)
			units, err = 0, &PanicError{Value: recovered}
		}
	}()

	return f.task(f.ctx)
}
