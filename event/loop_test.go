package event

import (
	"context"
	"testing"
	"time"
)

// fakeTarget is a minimal Target double for exercising Loop's dispatch
// logic directly, without a fiber or real descriptor in the loop.
type fakeTarget struct {
	fd            uint32
	ready         bool
	readResumes   []bool
	writeResumes  []bool
}

func (t *fakeTarget) FD() uint32 { return t.fd }
func (t *fakeTarget) ResumeRead(timedOut bool)  { t.readResumes = append(t.readResumes, timedOut) }
func (t *fakeTarget) ResumeWrite(timedOut bool) { t.writeResumes = append(t.writeResumes, timedOut) }
func (t *fakeTarget) EventedWaitReadable(context.Context, bool, func()) error { return nil }
func (t *fakeTarget) EventedWaitWritable(context.Context, bool, func()) error { return nil }
func (t *fakeTarget) EventedResumePendingReaders()                           {}
func (t *fakeTarget) EventedResumePendingWriters()                           {}
func (t *fakeTarget) EventedClose() error                                    { return nil }
func (t *fakeTarget) ProbeReadable() bool                                    { return t.ready }
func (t *fakeTarget) ProbeWritable() bool                                    { return t.ready }

func TestLoop_FDReadDispatchesOnceWhenReady(t *testing.T) {
	l := NewLoop()
	target := &fakeTarget{fd: 3, ready: true}
	l.CreateFDReadEvent(target).Add(nil)

	l.Run(context.Background(), false)

	if len(target.readResumes) != 1 {
		t.Fatalf("expected exactly one resume, got %d", len(target.readResumes))
	}
	if target.readResumes[0] {
		t.Fatal("expected timedOut=false for a plain readiness fire")
	}
}

func TestLoop_NotReadyStaysPending(t *testing.T) {
	l := NewLoop()
	target := &fakeTarget{fd: 3, ready: false}
	l.CreateFDReadEvent(target).Add(nil)

	l.Run(context.Background(), false)

	if len(target.readResumes) != 0 {
		t.Fatal("target should not have been resumed while not ready")
	}
	if len(l.pending) != 1 {
		t.Fatalf("expected the event to be re-queued, got %d pending", len(l.pending))
	}
}

func TestLoop_CompanionTimeoutFiresOnce(t *testing.T) {
	l := NewLoop()
	target := &fakeTarget{fd: 3, ready: false}
	ev := l.CreateFDReadEvent(target)
	d := time.Millisecond
	ev.Add(&d)

	time.Sleep(5 * time.Millisecond)
	l.Run(context.Background(), false)

	if len(target.readResumes) != 1 {
		t.Fatalf("expected exactly one resume from the companion timeout, got %d", len(target.readResumes))
	}
	if !target.readResumes[0] {
		t.Fatal("expected timedOut=true when the companion clock fired")
	}
	if len(l.pending) != 0 {
		t.Fatal("a fired FD+companion pair must not be re-queued")
	}
}

func TestLoop_UserdataEvenOddPairing(t *testing.T) {
	l := NewLoop()
	target := &fakeTarget{fd: 3}
	ev := l.CreateFDReadEvent(target)
	if ev.userdata%2 != 0 {
		t.Fatalf("expected an even userdata for the primary event, got %d", ev.userdata)
	}
	d := time.Second
	ev.Add(&d)
	if ev.companionUserdata != ev.userdata+1 {
		t.Fatalf("expected companion userdata %d, got %d", ev.userdata+1, ev.companionUserdata)
	}
}

func TestLoop_TimeoutEventInvokesCallback(t *testing.T) {
	l := NewLoop()
	fired := false
	ev := l.CreateTimeoutEvent(func() { fired = true })
	ev.Add(nil) // Timeout kind with nil timeout fires on the very next run.

	l.Run(context.Background(), false)

	if !fired {
		t.Fatal("expected the timeout callback to run")
	}
}

func TestLoop_DeleteRemovesPendingEvent(t *testing.T) {
	l := NewLoop()
	target := &fakeTarget{fd: 3, ready: true}
	ev := l.CreateFDReadEvent(target)
	ev.Add(nil)
	ev.Delete()

	l.Run(context.Background(), false)

	if len(target.readResumes) != 0 {
		t.Fatal("a deleted event must never dispatch")
	}
}

func TestLoop_RunEmptyIsNonBlockingWhenNotBlocking(t *testing.T) {
	l := NewLoop()
	start := time.Now()
	l.Run(context.Background(), false)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("non-blocking run with nothing pending took %v, want near-instant", elapsed)
	}
}

func TestLoop_Sleep(t *testing.T) {
	l := NewLoop()
	start := time.Now()
	l.Sleep(context.Background(), 10*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("sleep returned after %v, want at least 10ms", elapsed)
	}
}

func TestLoop_SleepClampsNegative(t *testing.T) {
	l := NewLoop()
	start := time.Now()
	l.Sleep(context.Background(), -time.Second)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("negative sleep duration should clamp to zero, took %v", elapsed)
	}
}
