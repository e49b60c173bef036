package event

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/wippyai/fiber-runtime/fiber"
)

// PipeTarget is an in-process Target double backed by an io.Reader/io.Writer
// pair with host-settable readiness. It models guest-to-guest channel-style
// communication and is the vehicle the package's own tests use to exercise
// the suspend/resume path without a real file descriptor; both uses are
// explicitly carved out of the networking Non-goal.
type PipeTarget struct {
	fd   uint32
	loop *Loop
	r    io.Reader
	w    io.Writer

	mu       sync.Mutex
	readable bool
	writable bool
	closed   bool
	readers  []*fiber.Fiber
	writers  []*fiber.Fiber
}

// NewPipeTarget wraps r and w as a Target identified by fd (a synthetic
// descriptor number the caller picks; it only needs to be unique within a
// PreopenTable-like registry, never a real kernel fd).
func NewPipeTarget(loop *Loop, fd uint32, r io.Reader, w io.Writer) *PipeTarget {
	return &PipeTarget{fd: fd, loop: loop, r: r, w: w}
}

// FD implements Target.
func (t *PipeTarget) FD() uint32 { return t.fd }

// Reader returns the wrapped reader.
func (t *PipeTarget) Reader() io.Reader { return t.r }

// Writer returns the wrapped writer.
func (t *PipeTarget) Writer() io.Writer { return t.w }

// SetReadable toggles whether the pipe currently reports data available,
// waking any waiting readers on a transition to true.
func (t *PipeTarget) SetReadable(ready bool) {
	t.mu.Lock()
	t.readable = ready
	t.mu.Unlock()
	if ready {
		t.ResumeRead(false)
	}
}

// SetWritable is SetReadable's write-side symmetric form.
func (t *PipeTarget) SetWritable(ready bool) {
	t.mu.Lock()
	t.writable = ready
	t.mu.Unlock()
	if ready {
		t.ResumeWrite(false)
	}
}

func (t *PipeTarget) ProbeReadable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readable
}

func (t *PipeTarget) ProbeWritable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writable
}

// ResumeRead implements Target.
func (t *PipeTarget) ResumeRead(timedOut bool) {
	t.mu.Lock()
	waiters := t.readers
	t.readers = nil
	t.mu.Unlock()
	for _, f := range waiters {
		f.Context().SetPendingResult(boolToU64(timedOut), nil)
		t.loop.EnqueueReady(f)
	}
}

// ResumeWrite implements Target.
func (t *PipeTarget) ResumeWrite(timedOut bool) {
	t.mu.Lock()
	waiters := t.writers
	t.writers = nil
	t.mu.Unlock()
	for _, f := range waiters {
		f.Context().SetPendingResult(boolToU64(timedOut), nil)
		t.loop.EnqueueReady(f)
	}
}

// EventedWaitReadable implements Target.
func (t *PipeTarget) EventedWaitReadable(ctx context.Context, raiseIfClosed bool, onTimeout func()) error {
	return t.wait(ctx, kindFDRead, raiseIfClosed, onTimeout)
}

// EventedWaitWritable implements Target.
func (t *PipeTarget) EventedWaitWritable(ctx context.Context, raiseIfClosed bool, onTimeout func()) error {
	return t.wait(ctx, kindFDWrite, raiseIfClosed, onTimeout)
}

func (t *PipeTarget) wait(ctx context.Context, kind eventKind, raiseIfClosed bool, onTimeout func()) error {
	f := fiber.CurrentFiberFromContext(ctx)
	if f == nil {
		return fmt.Errorf("event: wait called outside a driven context")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		if raiseIfClosed {
			return fmt.Errorf("event: target closed while waiting")
		}
		return nil
	}
	if kind == kindFDWrite {
		t.writers = append(t.writers, f)
	} else {
		t.readers = append(t.readers, f)
	}
	t.mu.Unlock()

	var ev *Event
	if kind == kindFDWrite {
		ev = t.loop.CreateFDWriteEvent(t)
	} else {
		ev = t.loop.CreateFDReadEvent(t)
	}
	if onTimeout != nil {
		ev.OnTimeout(onTimeout)
	}
	ev.Add(nil)

	_, err := fiber.Yield(ctx, nil)
	return err
}

// EventedResumePendingReaders implements Target.
func (t *PipeTarget) EventedResumePendingReaders() { t.ResumeRead(false) }

// EventedResumePendingWriters implements Target.
func (t *PipeTarget) EventedResumePendingWriters() { t.ResumeWrite(false) }

// EventedClose implements Target.
func (t *PipeTarget) EventedClose() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.EventedResumePendingReaders()
	t.EventedResumePendingWriters()
	if c, ok := t.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
