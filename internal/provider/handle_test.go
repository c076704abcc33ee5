package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

type countingSender struct {
	closes atomic.Int32
	sends  atomic.Int32
}

func (c *countingSender) Send(context.Context, string, string) (int, error) {
	c.sends.Add(1)
	return 1, nil
}

func (c *countingSender) Close() error {
	c.closes.Add(1)
	return nil
}

func TestSlotEmpty(t *testing.T) {
	t.Parallel()

	var slot Slot
	if slot.Configured() {
		t.Fatal("empty slot reports configured")
	}
	if _, ok := slot.Acquire(); ok {
		t.Fatal("Acquire() on empty slot succeeded")
	}
}

func TestHandleRetireWithoutLeasesClosesImmediately(t *testing.T) {
	t.Parallel()

	sender := &countingSender{}
	h := NewHandle(TypeMock, sender)
	h.Retire()
	h.Retire()

	select {
	case <-h.Closed():
	default:
		t.Fatal("handle not closed after retire")
	}
	if got := sender.closes.Load(); got != 1 {
		t.Fatalf("closes = %d, want 1", got)
	}
}

func TestHandleRetireWaitsForOutstandingLease(t *testing.T) {
	t.Parallel()

	var slot Slot
	oldSender := &countingSender{}
	old := NewHandle(TypeMock, oldSender)
	slot.Swap(old)

	lease, ok := slot.Acquire()
	if !ok || lease != old {
		t.Fatal("Acquire() did not return the installed handle")
	}

	replacement := NewHandle(TypeMock, &countingSender{})
	if prev := slot.Swap(replacement); prev != old {
		t.Fatal("Swap() returned unexpected previous handle")
	}
	old.Retire()

	if oldSender.closes.Load() != 0 {
		t.Fatal("sender closed while a lease is outstanding")
	}
	if _, err := lease.Send(context.Background(), "+1", "x"); err != nil {
		t.Fatalf("Send() through retired lease: %v", err)
	}

	next, ok := slot.Acquire()
	if !ok || next != replacement {
		t.Fatal("Acquire() after swap did not return replacement")
	}
	next.Release()

	lease.Release()
	if got := oldSender.closes.Load(); got != 1 {
		t.Fatalf("closes = %d, want 1", got)
	}
}

func TestSlotConcurrentSwapReleasesEveryHandleOnce(t *testing.T) {
	t.Parallel()

	var slot Slot
	const generations = 50
	senders := make([]*countingSender, generations)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if h, ok := slot.Acquire(); ok {
					_, _ = h.Send(context.Background(), "+1", "x")
					h.Release()
				}
			}
		}()
	}

	for i := 0; i < generations; i++ {
		senders[i] = &countingSender{}
		slot.Swap(NewHandle(TypeMock, senders[i])).Retire()
	}
	slot.Swap(nil).Retire()
	close(stop)
	wg.Wait()

	for i, s := range senders {
		if got := s.closes.Load(); got != 1 {
			t.Fatalf("sender %d closed %d times, want 1", i, got)
		}
	}
	if slot.Configured() {
		t.Fatal("slot still configured after emptying")
	}
}
