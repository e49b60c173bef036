package event

import (
	"context"
	"sync"
	"time"

	"github.com/wippyai/fiber-runtime/fiber"
)

// DefaultIdlePoll is the interval Run waits between polls when there is
// nothing pending (or nothing has fired yet on a blocking run): the "yield
// to the host" poll described by the runtime's concurrency model.
const DefaultIdlePoll = 100 * time.Millisecond

type eventKind int

const (
	kindFDRead eventKind = iota
	kindFDWrite
	kindTimeout
)

// readinessProber is the unexported hook Target implementations use to give
// Loop a readiness probe without widening the public Target contract (§4.G
// deliberately does not expose one). FileTarget and PipeTarget both
// implement it.
type readinessProber interface {
	ProbeReadable() bool
	ProbeWritable() bool
}

// Event is a single registration against a Loop: a clock deadline (Timeout
// kind) or a descriptor wait (FdRead/FdWrite kind), optionally paired with a
// companion clock subscription sharing the even/odd userdata convention.
type Event struct {
	loop   *Loop
	kind   eventKind
	target Target
	onTimeout func()

	userdata          uint64
	hasCompanion      bool
	companionUserdata uint64

	hasDeadline bool
	deadline    time.Time

	active bool
}

// Add registers the event. A nil timeout means: for a Timeout-kind event,
// fire on the very next run; for an FdRead/FdWrite event, wait indefinitely
// (no companion clock). A non-nil timeout clamps negative durations to zero
// and, for FD kinds, attaches a companion clock subscription sharing this
// event's userdata pair.
func (e *Event) Add(timeout *time.Duration) {
	e.loop.mu.Lock()
	defer e.loop.mu.Unlock()

	switch {
	case timeout != nil:
		d := *timeout
		if d < 0 {
			d = 0
		}
		e.hasDeadline = true
		e.deadline = time.Now().Add(d)
		if e.kind != kindTimeout {
			e.hasCompanion = true
			e.companionUserdata = e.userdata | 1
		}
	case e.kind == kindTimeout:
		e.hasDeadline = true
		e.deadline = time.Now()
		e.hasCompanion = false
	default:
		e.hasDeadline = false
		e.hasCompanion = false
	}

	if !e.active {
		e.loop.pending = append(e.loop.pending, e)
		e.active = true
	}
}

// OnTimeout sets the callback Run invokes if this event's companion (or, for
// a bare Timeout event, itself) fires before the event is otherwise
// dispatched. Mirrors the per-wait "&on_timeout" block evented_wait_readable
// and evented_wait_writable take.
func (e *Event) OnTimeout(fn func()) *Event {
	e.onTimeout = fn
	return e
}

// Delete removes the event from its loop's pending set if registered; safe
// to call repeatedly or on an event that was never added.
func (e *Event) Delete() {
	e.loop.remove(e)
}

// Loop is the process-wide (per-runtime) event loop: an ordered pending set
// and nothing else, per §4.F. It additionally keeps a small FIFO of fibers a
// Target resumed but that the Driver has not yet been handed, since
// RuntimeState's next-fiber slot holds only one fiber at a time while a
// single dispatch (e.g. EventedResumePendingReaders) can wake several.
type Loop struct {
	mu      sync.Mutex
	pending []*Event
	counter uint64
	ready   []*fiber.Fiber
}

// NewLoop returns an empty Loop.
func NewLoop() *Loop {
	return &Loop{}
}

// nextUserdata hands out an even userdata; a companion clock subscription,
// when one is attached, always takes the next odd value.
func (l *Loop) nextUserdata() uint64 {
	l.mu.Lock()
	l.counter++
	v := l.counter << 1
	l.mu.Unlock()
	return v
}

func (l *Loop) remove(e *Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !e.active {
		return
	}
	e.active = false
	for i, p := range l.pending {
		if p == e {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return
		}
	}
}

// CreateFDReadEvent returns an Event bound to this loop that, once added,
// dispatches via target.ResumeRead.
func (l *Loop) CreateFDReadEvent(target Target) *Event {
	return &Event{loop: l, kind: kindFDRead, target: target, userdata: l.nextUserdata()}
}

// CreateFDWriteEvent is the write-side symmetric form of CreateFDReadEvent.
func (l *Loop) CreateFDWriteEvent(target Target) *Event {
	return &Event{loop: l, kind: kindFDWrite, target: target, userdata: l.nextUserdata()}
}

// CreateTimeoutEvent returns a bare clock Event whose dispatch calls fn
// (a fiber's select-timeout action) once its deadline passes.
func (l *Loop) CreateTimeoutEvent(fn func()) *Event {
	return &Event{loop: l, kind: kindTimeout, onTimeout: fn, userdata: l.nextUserdata()}
}

// Sleep blocks the calling goroutine for d (clamped to zero if negative),
// expressed as a single clock subscription resolved by a single poll.
func (l *Loop) Sleep(ctx context.Context, d time.Duration) {
	if d < 0 {
		d = 0
	}
	deadline := time.Now().Add(d)
	sleepCtx(ctx, d)
	Poll(ctx, []Subscription{{Userdata: 1, Kind: SubClock, Deadline: deadline}})
}

// Interrupt is a no-op under this single-threaded cooperative model: there
// is no other thread to wake.
func (l *Loop) Interrupt() {}

// EnqueueReady queues f to be handed to RuntimeState the next time Idle
// finds it has nothing else to do. Target implementations call this from
// ResumeRead/ResumeWrite rather than touching RuntimeState directly.
func (l *Loop) EnqueueReady(f *fiber.Fiber) {
	l.mu.Lock()
	l.ready = append(l.ready, f)
	l.mu.Unlock()
}

func (l *Loop) popReady() *fiber.Fiber {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ready) == 0 {
		return nil
	}
	f := l.ready[0]
	l.ready = l.ready[1:]
	return f
}

// Idle returns a fiber.Driver.Idle-compatible hook bound to rs: it first
// drains any fiber a Target resumed but that has not yet been dispatched,
// and only calls Run itself once that queue is empty. With neither a ready
// fiber nor a pending event it returns false, so the Driver can finish.
func (l *Loop) Idle(rs *fiber.RuntimeState) func(ctx context.Context) bool {
	return func(ctx context.Context) bool {
		if f := l.popReady(); f != nil {
			rs.SetNext(f)
			return true
		}
		l.mu.Lock()
		empty := len(l.pending) == 0
		l.mu.Unlock()
		if empty {
			return false
		}
		return l.Run(ctx, true)
	}
}

// Run drains the pending set into a local batch, polls it once (retrying
// behind an idle sleep when blocking and nothing has fired yet), and
// dispatches every event that fired at most once, re-queuing the rest. It
// always returns true: in the single-threaded model there is no way to
// statically rule out more work existing.
func (l *Loop) Run(ctx context.Context, blocking bool) bool {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		idle := time.Duration(0)
		if blocking {
			idle = DefaultIdlePoll
		}
		sleepCtx(ctx, idle)
		return true
	}

	subs := l.buildSubscriptions(batch)
	if !blocking {
		subs = append(subs, Subscription{Userdata: NonBlockingUserdata, Kind: SubClock, Deadline: time.Now()})
	}

	var results []ResultEvent
pollLoop:
	for {
		results = Poll(ctx, subs)
		for _, r := range results {
			if r.Userdata != NonBlockingUserdata {
				break pollLoop
			}
		}
		if !blocking {
			break
		}
		select {
		case <-ctx.Done():
			break pollLoop
		case <-time.After(DefaultIdlePoll):
		}
	}

	l.dispatch(batch, results)
	return true
}

func (l *Loop) buildSubscriptions(batch []*Event) []Subscription {
	subs := make([]Subscription, 0, len(batch)*2)
	for _, e := range batch {
		switch e.kind {
		case kindTimeout:
			subs = append(subs, Subscription{Userdata: e.userdata, Kind: SubClock, Deadline: e.deadline})
		case kindFDRead, kindFDWrite:
			k := SubFDRead
			if e.kind == kindFDWrite {
				k = SubFDWrite
			}
			subs = append(subs, Subscription{Userdata: e.userdata, Kind: k, FD: e.target.FD(), Ready: e.readyProbe()})
			if e.hasCompanion {
				subs = append(subs, Subscription{Userdata: e.companionUserdata, Kind: SubClock, Deadline: e.deadline})
			}
		}
	}
	return subs
}

func (e *Event) readyProbe() Prober {
	rp, ok := e.target.(readinessProber)
	if !ok {
		return nil
	}
	if e.kind == kindFDWrite {
		return rp.ProbeWritable
	}
	return rp.ProbeReadable
}

// dispatch walks the results of a single poll and fires each pending event
// at most once, re-queuing the ones that neither fired nor timed out.
func (l *Loop) dispatch(batch []*Event, results []ResultEvent) {
	fired := make(map[*Event]bool, len(batch))

	for _, r := range results {
		if r.Userdata == NonBlockingUserdata {
			continue
		}
		e, isCompanion := recoverEvent(batch, r.Userdata)
		if e == nil || fired[e] {
			continue
		}

		switch e.kind {
		case kindTimeout:
			if !e.deadline.After(time.Now()) {
				fired[e] = true
				if e.onTimeout != nil {
					e.onTimeout()
				}
			}
		case kindFDRead:
			fired[e] = true
			if isCompanion && e.onTimeout != nil {
				e.onTimeout()
			}
			e.target.ResumeRead(isCompanion)
		case kindFDWrite:
			fired[e] = true
			if isCompanion && e.onTimeout != nil {
				e.onTimeout()
			}
			e.target.ResumeWrite(isCompanion)
		}
	}

	l.mu.Lock()
	for _, e := range batch {
		if fired[e] {
			e.active = false
			continue
		}
		e.active = true
		l.pending = append(l.pending, e)
	}
	l.mu.Unlock()
}

// recoverEvent finds the batch event a fired userdata belongs to, and
// reports whether it was the companion (timeout) side of the pair.
func recoverEvent(batch []*Event, userdata uint64) (e *Event, isCompanion bool) {
	for _, ev := range batch {
		if ev.userdata == userdata {
			return ev, false
		}
		if ev.hasCompanion && ev.companionUserdata == userdata {
			return ev, true
		}
	}
	return nil, false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
