package executor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the lifecycle of one dispatch unit.
type State int32

const (
	StateSubmitted State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateTimedOut
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCanceled:
		return "canceled"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Task is the work of one dispatch unit. It returns the number of units
// the provider accepted.
type Task func(ctx context.Context) (int, error)

// Future tracks one submitted task. Abandon is sticky: once a unit is
// timed out or canceled its eventual result is recorded but its state no
// longer changes.
type Future struct {
	id    string
	task  Task
	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	doneOnce sync.Once
	done     chan struct{}
	units    int
	err      error
}

func newFuture(parent context.Context, task Task) *Future {
	// The unit outlives the submitting call when it is abandoned; it keeps
	// the caller's values but only stops on Abandon or pool shutdown.
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))

	return &Future{
		id:     uuid.NewString(),
		task:   task,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (f *Future) ID() string {
	return f.id
}

func (f *Future) State() State {
	return State(f.state.Load())
}

// Done is closed once the task has returned or was skipped.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the task outcome. It is only meaningful after Done is closed.
func (f *Future) Result() (int, error) {
	<-f.done
	return f.units, f.err
}

// Abandon moves a pending or running unit to state (StateTimedOut or
// StateCanceled) and cancels its context. It returns false if the unit had
// already finished.
func (f *Future) Abandon(state State) bool {
	if state != StateTimedOut && state != StateCanceled {
		return false
	}
	for {
		current := State(f.state.Load())
		if current.Terminal() {
			return false
		}
		if f.state.CompareAndSwap(int32(current), int32(state)) {
			f.cancel()
			return true
		}
	}
}

func (f *Future) start() bool {
	return f.state.CompareAndSwap(int32(StateSubmitted), int32(StateRunning))
}

func (f *Future) finish(units int, err error) {
	next := StateCompleted
	if err != nil {
		next = StateFailed
	}
	f.state.CompareAndSwap(int32(StateRunning), int32(next))
	f.resolve(units, err)
}

// fail resolves a unit that never ran.
func (f *Future) fail(err error) {
	f.state.CompareAndSwap(int32(StateSubmitted), int32(StateFailed))
	f.resolve(0, err)
}

func (f *Future) resolve(units int, err error) {
	f.doneOnce.Do(func() {
		f.units = units
		f.err = err
		f.cancel()
		close(f.done)
	})
}
