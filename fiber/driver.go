package fiber

import (
	"context"
	"fmt"

	"github.com/wippyai/fiber-runtime/engine"
)

// Driver is the boundary loop: the only code in this package that actually
// calls into the guest. It dispatches one fiber at a time, settles whatever
// unwind that dispatch triggers, and repeats with whichever fiber Switch
// queued next, until nothing is left runnable.
type Driver struct {
	instance   *engine.Instance
	ax         *AsyncifyExports
	rs         *RuntimeState
	mainEntry  string
	trampoline string

	// Idle is called whenever RuntimeState has no next fiber queued. It gives
	// a caller-supplied scheduler (the event loop, in practice) a chance to
	// produce more runnable work before Run gives up. It should return true
	// if it may have done so (the driver will check TakeNext again) and
	// false if there is nothing left it can do. A nil Idle means Run exits
	// as soon as the queue goes empty.
	Idle func(ctx context.Context) bool
}

// NewDriver builds a Driver over an already-instantiated, already-bound
// instance. mainEntry is the export the main fiber runs (the module's
// run_main / _start equivalent); trampoline is the export every other
// fiber's entry point is a call into, taking the fiber's EntryDescriptor.Arg
// as its single i64 argument.
func NewDriver(instance *engine.Instance, ax *AsyncifyExports, rs *RuntimeState, mainEntry, trampoline string) *Driver {
	return &Driver{instance: instance, ax: ax, rs: rs, mainEntry: mainEntry, trampoline: trampoline}
}

// Run drives mainFiber to completion, servicing every fiber it (transitively,
// via Switch) spawns and suspends along the way. It returns once no fiber is
// left runnable: the RuntimeState's queued-next slot is empty, or points at
// a dead or non-resumable fiber. The returned values are whatever mainFiber's
// entry point returned the dispatch it finally completed on.
func (d *Driver) Run(ctx context.Context, mainFiber *Fiber) ([]uint64, error) {
	mainResults, err := d.EnterMain(ctx, mainFiber)
	if err != nil {
		return nil, err
	}

	for {
		f, done, results, err := d.Step(ctx)
		if err != nil {
			return nil, err
		}
		if f == mainFiber {
			mainResults = results
		}
		if done {
			return mainResults, nil
		}
	}
}

// EnterMain makes the first dispatch of mainFiber: the same call Run makes
// before entering its loop. Exposed so a caller that wants to drive a
// Driver one dispatch at a time (the CLI's interactive mode) can reproduce
// Run's exact sequence without running it to completion in a single call.
func (d *Driver) EnterMain(ctx context.Context, mainFiber *Fiber) ([]uint64, error) {
	if !mainFiber.Context().MainFiber {
		return nil, fmt.Errorf("fiber: EnterMain requires a main fiber")
	}
	return d.enter(ctx, mainFiber)
}

// Step performs exactly one iteration of Run's dispatch loop: service
// whichever fiber RuntimeState has queued, or call Idle once if the queue
// is empty. f reports which fiber was dispatched this call (nil whenever the
// queue was empty and Idle ran, or nothing was left to dispatch); done reports
// there is nothing left runnable, matching the condition under which Run
// would return.
func (d *Driver) Step(ctx context.Context) (f *Fiber, done bool, results []uint64, err error) {
	next := d.rs.TakeNext()
	if next == nil {
		if d.Idle != nil && d.Idle(ctx) {
			return nil, false, nil, nil
		}
		return nil, true, nil, nil
	}
	if next.Dead() || !next.Resumable() {
		return nil, true, nil, nil
	}

	// Clear resumable before dispatch so a fiber already mid-run can never
	// be handed a second, concurrent entry.
	next.Context().ClearResumable()

	mem := d.instance.Memory()
	fresh, err := next.Context().Fresh(mem)
	if err != nil {
		return nil, false, nil, fmt.Errorf("fiber: %s: %w", next.Name, err)
	}

	if fresh {
		if err := next.Context().Buffer.Init(mem); err != nil {
			return nil, false, nil, fmt.Errorf("fiber: %s: %w", next.Name, err)
		}
	} else if err := d.ax.StartRewind(ctx, next.Context().Buffer.Addr); err != nil {
		return nil, false, nil, fmt.Errorf("fiber: %s: %w", next.Name, err)
	}

	results, err = d.enter(ctx, next)
	if err != nil {
		return nil, false, nil, err
	}
	return next, false, results, nil
}

// enter makes exactly one guest call on behalf of f: its entry point if this
// is f's first run or a replay of it if f was rewound, then settles the
// resulting asyncify state.
func (d *Driver) enter(ctx context.Context, f *Fiber) ([]uint64, error) {
	ctx = WithCurrentFiber(ctx, f)

	var results []uint64
	var err error
	if f.Context().MainFiber {
		results, err = d.instance.Call(ctx, d.mainEntry)
	} else {
		results, err = d.instance.Call(ctx, d.trampoline, f.Context().Entry.Arg)
	}
	if err != nil {
		f.MarkDead()
		return nil, fmt.Errorf("fiber: dispatch %s: %w", f.Name, err)
	}

	state, err := d.ax.GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("fiber: %s: %w", f.Name, err)
	}
	d.rs.observe(state)

	switch state {
	case Unwinding:
		if err := d.ax.StopUnwind(ctx); err != nil {
			return nil, fmt.Errorf("fiber: %s: %w", f.Name, err)
		}
	case Normal:
		f.MarkDead()
	default:
		return nil, fmt.Errorf("fiber: %s left module in state %s after dispatch", f.Name, state)
	}
	return results, nil
}
