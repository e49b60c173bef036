package fiber

import (
	"context"
	"fmt"
)

// Suspend captures current's call stack via asyncify_start_unwind and queues
// next to be the fiber the Driver dispatches once the unwind settles.
// Called by a host import handler the first time it is reached while the
// module is Normal.
func Suspend(ctx context.Context, rs *RuntimeState, ax *AsyncifyExports, current *Fiber, next *Fiber) error {
	if current == nil {
		return fmt.Errorf("fiber: suspend with no current fiber")
	}
	current.Context().MarkResumable()
	rs.SetNext(next)
	if err := ax.StartUnwind(ctx, current.Context().Buffer.Addr); err != nil {
		return fmt.Errorf("fiber: suspend %s: %w", current.Name, err)
	}
	return nil
}

// Resume ends a rewind in progress and hands back the result the suspended
// operation produced. Called by a host import handler the second time it is
// reached for the same call site, now with the module Rewinding.
func Resume(ctx context.Context, ax *AsyncifyExports, current *Fiber) (uint64, error) {
	if current == nil {
		return 0, fmt.Errorf("fiber: resume with no current fiber")
	}
	if err := ax.StopRewind(ctx); err != nil {
		return 0, fmt.Errorf("fiber: resume %s: %w", current.Name, err)
	}
	val, opErr := current.Context().TakePendingResult()
	return val, opErr
}

// Switch is the single suspension point a host import handler calls
// whenever it might need to yield the guest back to the scheduler. It reads
// the module's asyncify state and does exactly one of two things:
//
//   - Normal: the handler is being reached for the first time on this call
//     path. Switch marks current suspended, queues next to run, and starts
//     an unwind. The handler's own return value is discarded; the guest
//     call stack is about to be torn down.
//   - Rewinding: the handler is being replayed after current was rewound
//     back in. Switch stops the rewind and returns the stashed result from
//     whichever operation suspended current, which the handler should hand
//     back to the guest as if the call had completed normally.
//
// The handler is expected to call Switch unconditionally; it never needs to
// inspect the asyncify state itself.
func Switch(ctx context.Context, rs *RuntimeState, ax *AsyncifyExports, current *Fiber, next *Fiber) (uint64, error) {
	state, err := ax.GetState(ctx)
	if err != nil {
		return 0, err
	}
	rs.observe(state)

	if state == Rewinding {
		return Resume(ctx, ax, current)
	}
	return 0, Suspend(ctx, rs, ax, current, next)
}

type ctxKey int

const (
	ctxKeyRuntimeState ctxKey = iota
	ctxKeyAsyncifyExports
	ctxKeyCurrentFiber
)

// WithRuntimeState attaches rs to ctx for host import handlers to retrieve.
func WithRuntimeState(ctx context.Context, rs *RuntimeState) context.Context {
	return context.WithValue(ctx, ctxKeyRuntimeState, rs)
}

// RuntimeStateFromContext retrieves the RuntimeState attached by WithRuntimeState.
func RuntimeStateFromContext(ctx context.Context) *RuntimeState {
	rs, _ := ctx.Value(ctxKeyRuntimeState).(*RuntimeState)
	return rs
}

// WithAsyncifyExports attaches ax to ctx for host import handlers to retrieve.
func WithAsyncifyExports(ctx context.Context, ax *AsyncifyExports) context.Context {
	return context.WithValue(ctx, ctxKeyAsyncifyExports, ax)
}

// AsyncifyExportsFromContext retrieves the AsyncifyExports attached by
// WithAsyncifyExports.
func AsyncifyExportsFromContext(ctx context.Context) *AsyncifyExports {
	ax, _ := ctx.Value(ctxKeyAsyncifyExports).(*AsyncifyExports)
	return ax
}

// WithCurrentFiber attaches the fiber the Driver is currently dispatching,
// so host import handlers deep in a call chain can find it without it being
// threaded through every intermediate call.
func WithCurrentFiber(ctx context.Context, f *Fiber) context.Context {
	return context.WithValue(ctx, ctxKeyCurrentFiber, f)
}

// CurrentFiberFromContext retrieves the fiber attached by WithCurrentFiber.
func CurrentFiberFromContext(ctx context.Context) *Fiber {
	f, _ := ctx.Value(ctxKeyCurrentFiber).(*Fiber)
	return f
}

// Yield is the context-based convenience a wasip1 host import handler calls:
// it pulls the RuntimeState, AsyncifyExports and current fiber out of ctx
// and calls Switch. next is the fiber the scheduler wants to run once
// current suspends; pass the same fiber to resume it immediately once its
// operation is ready (e.g. a non-blocking poll that found data waiting).
func Yield(ctx context.Context, next *Fiber) (uint64, error) {
	rs := RuntimeStateFromContext(ctx)
	ax := AsyncifyExportsFromContext(ctx)
	current := CurrentFiberFromContext(ctx)
	if rs == nil || ax == nil {
		return 0, fmt.Errorf("fiber: yield called outside a driven context")
	}
	return Switch(ctx, rs, ax, current, next)
}
