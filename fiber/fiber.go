package fiber

// Fiber is a schedulable unit of guest execution: a Context plus the
// bookkeeping the Driver and Switch need to decide whether it can run again.
type Fiber struct {
	Name string
	ctx  *Context
	dead bool

	// OnTimeout, if set, is invoked by the caller that owns the fiber's
	// pending operation when that operation's deadline elapses instead of
	// completing normally. No package in this module calls it: package event
	// takes its timeout callbacks through Event.OnTimeout instead.
	OnTimeout func()
}

// NewFiber wraps ctx as a named, schedulable fiber.
func NewFiber(name string, ctx *Context) *Fiber {
	return &Fiber{Name: name, ctx: ctx}
}

// Context returns the fiber's instrumentation context.
func (f *Fiber) Context() *Context { return f.ctx }

// Dead reports whether the fiber's entry point has returned or trapped.
// Dead fibers are never dispatched again even if still queued as next.
func (f *Fiber) Dead() bool { return f.dead }

// MarkDead flags the fiber as finished. Called by Driver once a dispatch of
// this fiber returns from its entry point without suspending, or fails.
func (f *Fiber) MarkDead() { f.dead = true }

// Resumable reports whether the Driver may dispatch the fiber: it is
// suspended with a saved call stack to rewind into, or it was spawned by
// runtime.Program.Spawn and has not run yet.
func (f *Fiber) Resumable() bool { return f.ctx.Resumable() }
