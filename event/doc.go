// Package event implements the single-threaded event loop that reconciles
// WASI readiness (poll_oneoff) with suspended fibers: the ordered pending set
// described by the runtime's concurrency model, the Event/Target contract
// evented I/O helpers suspend against, and the poll routine both the loop and
// package wasip1's guest-facing poll_oneoff import share.
//
// The loop itself never touches wasm linear memory or the WASI wire format;
// it works over plain Go values (Subscription, ResultEvent) and leaves wire
// encoding to package wasip1. This keeps the scheduling policy - ordering,
// de-duplication, companion-timeout pairing - in one place regardless of
// whether the poll was triggered internally (a suspended evented read) or by
// the guest calling poll_oneoff directly.
package event
