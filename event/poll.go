package event

import (
	"bufio"
	"context"
	"time"
)

// Prober reports whether a descriptor is currently ready; FileTarget and
// PipeTarget each supply one bound to themselves so Poll never needs to
// resolve a bare fd number itself (doing so would mean opening and, worse,
// closing a second *os.File over someone else's descriptor).
type Prober func() bool

// SubscriptionKind mirrors the WASI Preview-1 eventtype discriminant, minus
// the parts this runtime never exposes (sockets).
type SubscriptionKind int

const (
	SubClock SubscriptionKind = iota
	SubFDRead
	SubFDWrite
)

// MonotonicClockID is CLOCK_MONOTONIC's WASI clock id; it is the only clock
// this runtime's event loop ever subscribes on.
const MonotonicClockID = 1

// NonBlockingUserdata is the sentinel userdata Loop.Run attaches to the
// zero-duration filler subscription it appends when run is called
// non-blocking, so the underlying poll returns immediately without the
// caller needing a real pending event.
const NonBlockingUserdata = ^uint64(0)

// Subscription is poll_oneoff's input, decoupled from the 48-byte wire
// layout: a clock deadline, or a descriptor plus a readiness probe.
type Subscription struct {
	Userdata uint64
	Kind     SubscriptionKind

	// Clock subscriptions (Kind == SubClock).
	Deadline time.Time

	// Descriptor subscriptions (Kind == SubFDRead / SubFDWrite). FD is kept
	// only for wasip1's wire round-trip (userdata recovery on the guest
	// side needs no help from it); readiness is always decided by Ready.
	FD uint32
	// Ready reports whether the descriptor is currently ready. A nil Ready
	// is treated as always-ready (matching the common WASI case: a regular
	// file never blocks).
	Ready Prober
}

// ResultEvent is poll_oneoff's output, decoupled from the 32-byte wire
// layout.
type ResultEvent struct {
	Userdata uint64
	Kind     SubscriptionKind
	Err      error
}

// Poll evaluates every subscription exactly once and returns the ones that
// fired: clock subscriptions whose deadline has passed, and descriptor
// subscriptions whose Ready probe reports true. It never blocks; callers
// that want blocking semantics loop it behind a sleep (see Loop.Run).
func Poll(_ context.Context, subs []Subscription) []ResultEvent {
	now := time.Now()
	var fired []ResultEvent
	for _, s := range subs {
		switch s.Kind {
		case SubClock:
			if !s.Deadline.After(now) {
				fired = append(fired, ResultEvent{Userdata: s.Userdata, Kind: s.Kind})
			}
		case SubFDRead, SubFDWrite:
			if s.Ready == nil || s.Ready() {
				fired = append(fired, ResultEvent{Userdata: s.Userdata, Kind: s.Kind})
			}
		}
	}
	return fired
}

// ProbeReader implements the readiness heuristic this runtime grounds on
// wazero's WASI poll_oneoff host function: a regular file is always ready
// (the common WASI case, and the reason evented I/O's suspension branch is
// cold); a character device or pipe (stdin in interactive mode being the
// motivating case) gets a short, non-blocking peek through r, which the
// caller must also use for its real reads so the peeked byte is never lost.
func ProbeReader(regular bool, r *bufio.Reader) bool {
	if regular {
		return true
	}
	return peekReady(r)
}

// peekReady samples a single byte of lookahead without consuming it from the
// caller's point of view, bounded by a short timeout so a dead-slow or
// silent peer never stalls the whole loop.
func peekReady(r *bufio.Reader) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		_, err := r.Peek(1)
		done <- err == nil
	}()

	select {
	case ready := <-done:
		return ready
	case <-ctx.Done():
		return false
	}
}
