// Package fiber implements the cooperative fiber scheduler described by the
// runtime's asyncify-based concurrency model: many logical fibers share one
// WASM instance and take turns running on its single call stack, using the
// Binaryen asyncify protocol to save and restore each fiber's unfinished
// call stack into a fiber-private region of linear memory. The compile-time
// instrumentation pass that adds the asyncify control exports to a module
// is an external collaborator (see BindAsyncify and ValidateRemoveList for
// the contract this package expects from it); package engine is the wazero
// host this package drives.
//
// # Core pieces
//
//	RuntimeState - the module-wide Normal/Unwinding/Rewinding state machine
//	Context       - a fiber's instrumentation buffer and entry point
//	Fiber         - a schedulable unit of guest execution wrapping a Context
//	Driver        - the boundary loop that dispatches fibers and drains unwinds
//	Switch        - the single primitive a host import handler calls to
//	                suspend the currently running fiber
//
// # What this package does not do
//
// It does not decide which fiber runs next beyond the one explicitly handed
// to RuntimeState.SetNext: round-robin scheduling, channel rendezvous, and
// other guest-visible concurrency primitives are layered on top by the
// caller (see package runtime), not implemented here. The instrumentation
// buffer's bytes are opaque to this package; the Driver only ever touches
// the two 32-bit cursors at its head, and the saved locals are read only by
// Buffer.Bytes, which copies them out uninterpreted.
//
// # Shadow stack is not a GC root set
//
// This Go host process never runs a guest garbage collector itself - the
// guest's own compiled code owns its heap - so a suspended fiber's saved
// locals are just opaque bytes from here. Buffer.Bytes returns a copy of
// them for host-side debugging. Never
// mutate that window during Unwinding or Rewinding: a guest GC embedding
// that needs to scan it for roots must do so on its own terms, since this
// package makes no attempt to interpret the saved locals' layout.
package fiber
