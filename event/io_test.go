package event

import (
	"context"
	"errors"
	"testing"
)

func TestRead_SucceedsWithoutSuspending(t *testing.T) {
	loop := NewLoop()
	target := NewPipeTarget(loop, 9, nil, nil)

	calls := 0
	n, err := Read(context.Background(), target, func() (uint32, error) {
		calls++
		return 5, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 || calls != 1 {
		t.Fatalf("expected a single successful attempt returning 5, got n=%d calls=%d", n, calls)
	}
}

func TestRead_PropagatesNonBlockingError(t *testing.T) {
	loop := NewLoop()
	target := NewPipeTarget(loop, 9, nil, nil)
	boom := errors.New("boom")

	_, err := Read(context.Background(), target, func() (uint32, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom to propagate, got %v", err)
	}
}

func TestWrite_SucceedsWithoutSuspending(t *testing.T) {
	loop := NewLoop()
	target := NewPipeTarget(loop, 9, nil, nil)

	n, err := Write(context.Background(), target, func() (uint32, error) {
		return 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
}

func TestRead_WouldBlockWithoutDrivenContextErrors(t *testing.T) {
	// Without a current fiber attached to ctx (i.e. outside a Driver-run
	// dispatch), EventedWaitReadable has nothing to suspend and must report
	// an error rather than spin or panic.
	loop := NewLoop()
	target := NewPipeTarget(loop, 9, nil, nil)

	_, err := Read(context.Background(), target, func() (uint32, error) {
		return 0, ErrWouldBlock
	})
	if err == nil {
		t.Fatal("expected an error when suspension is attempted outside a driven context")
	}
}
