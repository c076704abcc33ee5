package provider

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle owns one live sender. Dispatch units lease it for the duration of a
// batch; once retired it refuses new leases and closes the sender after the
// last outstanding lease is released.
type Handle struct {
	id           string
	providerType Type
	sender       Sender

	mu      sync.Mutex
	leases  int
	retired bool

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func NewHandle(providerType Type, sender Sender) *Handle {
	return &Handle{
		id:           uuid.NewString(),
		providerType: providerType,
		sender:       sender,
		closed:       make(chan struct{}),
	}
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) Type() Type {
	return h.providerType
}

func (h *Handle) tryAcquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.retired {
		return false
	}
	h.leases++
	return true
}

// Release returns a lease taken by Slot.Acquire.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.leases > 0 {
		h.leases--
	}
	drained := h.retired && h.leases == 0
	h.mu.Unlock()

	if drained {
		h.close()
	}
}

// Retire marks the handle as replaced. The sender is closed immediately when
// no leases are outstanding, otherwise on the final Release.
func (h *Handle) Retire() {
	if h == nil {
		return
	}

	h.mu.Lock()
	h.retired = true
	drained := h.leases == 0
	h.mu.Unlock()

	if drained {
		h.close()
	}
}

// Send forwards to the underlying sender. Callers must hold a lease.
func (h *Handle) Send(ctx context.Context, to string, message string) (int, error) {
	return h.sender.Send(ctx, to, message)
}

// Closed is closed once the sender has been released.
func (h *Handle) Closed() <-chan struct{} {
	return h.closed
}

func (h *Handle) CloseErr() error {
	select {
	case <-h.closed:
		return h.closeErr
	default:
		return nil
	}
}

func (h *Handle) close() {
	h.closeOnce.Do(func() {
		if h.sender != nil {
			h.closeErr = h.sender.Close()
		}
		close(h.closed)
	})
}

// Slot holds the single active handle.
type Slot struct {
	current atomic.Pointer[Handle]
}

// Acquire leases the active handle. It returns false when no handle is
// installed.
func (s *Slot) Acquire() (*Handle, bool) {
	for {
		h := s.current.Load()
		if h == nil {
			return nil, false
		}
		if h.tryAcquire() {
			return h, true
		}
		// Retired between Load and tryAcquire; a replacement is already
		// installed or the slot was emptied.
		if s.current.Load() == h {
			return nil, false
		}
	}
}

// Swap installs next (nil empties the slot) and returns the previous handle.
// The caller is responsible for retiring it.
func (s *Slot) Swap(next *Handle) *Handle {
	return s.current.Swap(next)
}

func (s *Slot) Configured() bool {
	return s.current.Load() != nil
}

// Current returns the installed handle without leasing it.
func (s *Slot) Current() *Handle {
	return s.current.Load()
}
