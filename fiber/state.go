package fiber

import "sync/atomic"

// State mirrors the three states of the Binaryen asyncify protocol, read
// from the guest's asyncify_get_state export.
type State int32

const (
	Normal State = iota
	Unwinding
	Rewinding
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Unwinding:
		return "unwinding"
	case Rewinding:
		return "rewinding"
	default:
		return "unknown"
	}
}

// RuntimeState is the single asyncify state machine shared by every fiber
// running on one WASM instance. Only one fiber may be mid-unwind or
// mid-rewind at a time; the module's own asyncify_* exports enforce that by
// construction, this type only tracks which fiber the Driver should dispatch
// next once the current unwind settles.
type RuntimeState struct {
	cached int32 // last State observed via GetState, for diagnostics only
	next   atomic.Pointer[Fiber]
}

// NewRuntimeState creates a fresh state machine in the Normal state with no
// fiber queued.
func NewRuntimeState() *RuntimeState {
	return &RuntimeState{}
}

// SetNext records which fiber the Driver should dispatch once the current
// unwind (if any) finishes settling. Called by Switch.
func (rs *RuntimeState) SetNext(f *Fiber) {
	rs.next.Store(f)
}

// TakeNext reads and clears the queued fiber. Called by Driver at the top of
// its dispatch loop.
func (rs *RuntimeState) TakeNext() *Fiber {
	return rs.next.Swap(nil)
}

func (rs *RuntimeState) observe(s State) {
	atomic.StoreInt32(&rs.cached, int32(s))
}

// Cached returns the last State observed by a Switch or Driver call, without
// making a guest call. Useful for logging and the CLI's fiber-state view;
// never use it to make scheduling decisions.
func (rs *RuntimeState) Cached() State {
	return State(atomic.LoadInt32(&rs.cached))
}
