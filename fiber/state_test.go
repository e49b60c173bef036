package fiber

import "testing"

func TestRuntimeState_SetTakeNext(t *testing.T) {
	rs := NewRuntimeState()

	if got := rs.TakeNext(); got != nil {
		t.Fatalf("expected nil on empty queue, got %v", got)
	}

	f := NewFiber("worker", NewContext(16, DefaultStackWindow, EntryDescriptor{}))
	rs.SetNext(f)

	got := rs.TakeNext()
	if got != f {
		t.Fatalf("expected %v, got %v", f, got)
	}
	if got := rs.TakeNext(); got != nil {
		t.Fatalf("expected queue cleared after Take, got %v", got)
	}
}

func TestRuntimeState_ObserveAndCached(t *testing.T) {
	rs := NewRuntimeState()
	if rs.Cached() != Normal {
		t.Fatalf("expected fresh RuntimeState cached as Normal, got %v", rs.Cached())
	}
	rs.observe(Unwinding)
	if rs.Cached() != Unwinding {
		t.Fatalf("expected Unwinding, got %v", rs.Cached())
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		Normal:    "normal",
		Unwinding: "unwinding",
		Rewinding: "rewinding",
		State(99): "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
