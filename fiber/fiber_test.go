package fiber

import "testing"

func TestFiber_DeadAndResumable(t *testing.T) {
	ctx := NewContext(16, DefaultStackWindow, EntryDescriptor{})
	f := NewFiber("worker", ctx)

	if f.Dead() {
		t.Error("new fiber should not be dead")
	}
	if f.Resumable() {
		t.Error("new fiber should not be resumable before it ever suspends")
	}

	ctx.MarkResumable()
	if !f.Resumable() {
		t.Error("fiber should report resumable once its context is marked so")
	}

	ctx.ClearResumable()
	if f.Resumable() {
		t.Error("fiber should not report resumable after being cleared")
	}

	f.MarkDead()
	if !f.Dead() {
		t.Error("fiber should be dead after MarkDead")
	}
}

func TestContext_PendingResult(t *testing.T) {
	ctx := NewContext(16, DefaultStackWindow, EntryDescriptor{})
	ctx.SetPendingResult(42, nil)

	val, err := ctx.TakePendingResult()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Fatalf("expected 42, got %d", val)
	}

	// Taking again should return the zero value: TakePendingResult clears.
	val, err = ctx.TakePendingResult()
	if val != 0 || err != nil {
		t.Fatalf("expected cleared state (0, nil), got (%d, %v)", val, err)
	}
}
