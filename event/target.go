package event

import "context"

// Target is the I/O side of the evented read/write helpers and of an FD
// Event: whatever can be waited on, resumed, and closed. FileTarget wraps a
// real *os.File; PipeTarget is an in-process double used for tests and for
// guest-to-guest channel-style communication, explicitly carved out of the
// networking Non-goal.
type Target interface {
	FD() uint32

	// ResumeRead/ResumeWrite are called by Loop when this target's read or
	// write side becomes ready, or when its companion timeout fires first
	// (timedOut == true in that case).
	ResumeRead(timedOut bool)
	ResumeWrite(timedOut bool)

	// EventedWaitReadable/EventedWaitWritable suspend the fiber found in ctx
	// (see fiber.CurrentFiberFromContext) on an FdRead/FdWrite Event against
	// this target. onTimeout, if non-nil, runs if the wait's companion
	// timeout fires before ResumeRead/ResumeWrite does; raiseIfClosed governs
	// whether a target already closed out from under the wait is reported as
	// an error or treated as a spurious, silent wake.
	EventedWaitReadable(ctx context.Context, raiseIfClosed bool, onTimeout func()) error
	EventedWaitWritable(ctx context.Context, raiseIfClosed bool, onTimeout func()) error

	// EventedResumePendingReaders/Writers wake every fiber currently
	// suspended on this target, regardless of readiness. Evented helpers
	// call these once their attempt loop exits, success or failure, so a
	// closed or errored target never strands a waiter.
	EventedResumePendingReaders()
	EventedResumePendingWriters()

	EventedClose() error
}
