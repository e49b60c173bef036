package fiber

import (
	"fmt"
	"sync/atomic"

	"github.com/wippyai/fiber-runtime/engine"
)

// minWindow is the smallest usable instrumentation buffer: the Binaryen
// asyncify runtime itself refuses to unwind into a window with no room for
// at least one stack slot.
const minWindow = 16

// Buffer is a fiber's instrumentation buffer: the dataAddr asyncify_start_unwind
// and asyncify_start_rewind take. Layout, fixed by the Binaryen asyncify ABI:
//
//	Addr+0:  current cursor (u32)   - grows as locals are pushed while unwinding
//	Addr+4:  end of window (u32)    - unwind fails if current would exceed this
//	Addr+8:  saved-locals bytes, StackSize long
type Buffer struct {
	Addr      uint32
	StackSize uint32
}

// Low is the first address of the saved-locals window.
func (b Buffer) Low() uint32 { return b.Addr + 8 }

// High is one past the last usable address of the saved-locals window.
func (b Buffer) High() uint32 { return b.Addr + 8 + b.StackSize }

// Bytes returns a copy of the buffer's saved-locals window, for host-side
// debugging only.
// The guest's instrumentation pass owns every byte in this window while
// Unwinding or Rewinding; this package never mutates it and callers must
// not either, since the saved locals are not a Go-visible GC root set (see
// package fiber's doc comment on the shadow-stack open question).
func (b Buffer) Bytes(mem *engine.Memory) ([]byte, error) {
	raw, err := mem.Read(b.Low(), b.StackSize)
	if err != nil {
		return nil, fmt.Errorf("buffer: read saved-locals window: %w", err)
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Fresh reports whether the buffer has never been initialized: the fiber it
// belongs to has not yet run its first segment.
func (b Buffer) Fresh(mem *engine.Memory) (bool, error) {
	cur, err := mem.ReadU32(b.Addr)
	if err != nil {
		return false, fmt.Errorf("buffer: read cursor: %w", err)
	}
	return cur == 0, nil
}

// Init writes the initial cursor and window end so the guest's asyncify
// instrumentation has a valid window to unwind into on the fiber's first run.
func (b Buffer) Init(mem *engine.Memory) error {
	if b.StackSize < minWindow {
		return fmt.Errorf("buffer: window %d below minimum %d", b.StackSize, minWindow)
	}
	if err := mem.WriteU32(b.Addr, b.Low()); err != nil {
		return fmt.Errorf("buffer: write cursor: %w", err)
	}
	if err := mem.WriteU32(b.Addr+4, b.High()); err != nil {
		return fmt.Errorf("buffer: write window end: %w", err)
	}
	return nil
}

// EntryDescriptor identifies what a non-main fiber should run when the
// Driver first dispatches it: a call to the runtime's fiber trampoline
// export with this value as its single argument (typically a pointer to a
// guest-side closure environment).
type EntryDescriptor struct {
	Arg uint64
}

// Context is a fiber's private scheduling state: its instrumentation buffer
// plus what to call the first time it runs.
type Context struct {
	Buffer    Buffer
	Entry     EntryDescriptor
	MainFiber bool
	resumable atomic.Bool

	pendingResult uint64
	pendingErr    error
}

// SetPendingResult stashes the result of the operation that suspended this
// fiber, for Resume to hand back to the guest once the fiber is rewound.
func (c *Context) SetPendingResult(v uint64, err error) {
	c.pendingResult = v
	c.pendingErr = err
}

// TakePendingResult returns and clears the stashed result.
func (c *Context) TakePendingResult() (uint64, error) {
	v, err := c.pendingResult, c.pendingErr
	c.pendingResult, c.pendingErr = 0, nil
	return v, err
}

// NewContext allocates a Context for a fiber whose buffer lives at addr and
// spans stackSize bytes of saved-locals window.
func NewContext(addr, stackSize uint32, entry EntryDescriptor) *Context {
	return &Context{
		Buffer: Buffer{Addr: addr, StackSize: stackSize},
		Entry:  entry,
	}
}

// Fresh reports whether this fiber has never run.
func (c *Context) Fresh(mem *engine.Memory) (bool, error) {
	return c.Buffer.Fresh(mem)
}

// Resumable reports whether the Driver may dispatch the fiber on a future
// pass: it suspended mid-call and is waiting to be rewound back into, or it
// was spawned and has not run yet. A fresh Context starts out not resumable.
func (c *Context) Resumable() bool { return c.resumable.Load() }

// MarkResumable flags the fiber as eligible for the Driver to dispatch on a
// future pass. Called by Switch right before it starts an unwind on this
// fiber's behalf, and by runtime.Program.Spawn for a fiber not yet run.
func (c *Context) MarkResumable() { c.resumable.Store(true) }

// ClearResumable flags the fiber as currently dispatched (or dead). Called
// by Driver immediately before it re-enters a fiber, so a fiber can never be
// dispatched twice concurrently.
func (c *Context) ClearResumable() { c.resumable.Store(false) }
