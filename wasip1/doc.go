// Package wasip1 implements the WASI Preview-1 surface this runtime exposes
// to the guest module as its Host ABI (§6): poll_oneoff and the clock
// subscriptions the event loop and fiber sleep build on, fd_read/fd_write
// routed through the evented I/O helpers, path_open's flag/rights/errno
// translation, and proc_exit. It is the wire-format layer above package
// event: it decodes/encodes the 48-byte Subscription and 32-byte Event
// structs and otherwise defers all scheduling policy to event.Loop.
//
// POSIX surfaces WASI Preview-1 has no mapping for at all - sockets, signals,
// fork, pipes (as kernel objects), chown, realpath, file locks, user/group
// lookup - are not wired here because there is no host import to wire them
// to: no host function is registered for them, so a module importing one
// fails to instantiate. ErrSandboxUnavailable is returned only by
// fd_read/fd_write on a descriptor whose target has no byte stream.
package wasip1
