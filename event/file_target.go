package event

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/wippyai/fiber-runtime/fiber"
)

// FileTarget is the Target implementation backing a real open file
// descriptor. Per §4.H's rationale, a regular file (the overwhelming common
// WASI case) is always ready and never suspends a waiter; only a character
// device or pipe - stdin in interactive mode being the motivating case -
// ever takes the suspend/resume path.
type FileTarget struct {
	file    *os.File
	loop    *Loop
	regular bool

	mu      sync.Mutex
	reader  *bufio.Reader
	readers []*fiber.Fiber
	writers []*fiber.Fiber
	closed  bool
}

// NewFileTarget wraps f for evented use against loop.
func NewFileTarget(loop *Loop, f *os.File) (*FileTarget, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("event: stat target: %w", err)
	}
	return &FileTarget{file: f, loop: loop, regular: info.Mode().IsRegular()}, nil
}

// FD implements Target.
func (t *FileTarget) FD() uint32 { return uint32(t.file.Fd()) }

// File returns the wrapped descriptor.
func (t *FileTarget) File() *os.File { return t.file }

// Reader returns the buffered reader wasip1 must read actual bytes through
// once the target is non-regular, so a readiness peek is never lost to a
// reader that bypassed it.
func (t *FileTarget) Reader() *bufio.Reader {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reader == nil {
		t.reader = bufio.NewReader(t.file)
	}
	return t.reader
}

func (t *FileTarget) ProbeReadable() bool {
	if t.regular {
		return true
	}
	return ProbeReader(false, t.Reader())
}

func (t *FileTarget) ProbeWritable() bool {
	// This runtime always reports a descriptor as blocking (§4.I); a
	// blocking write never surfaces EAGAIN, so there is nothing to probe.
	return true
}

// ResumeRead implements Target.
func (t *FileTarget) ResumeRead(timedOut bool) {
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
func (t *FileTarget) ResumeWrite(timedOut bool) {
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
func (t *FileTarget) EventedWaitReadable(ctx context.Context, raiseIfClosed bool, onTimeout func()) error {
	return t.wait(ctx, kindFDRead, raiseIfClosed, onTimeout)
}

// EventedWaitWritable implements Target.
func (t *FileTarget) EventedWaitWritable(ctx context.Context, raiseIfClosed bool, onTimeout func()) error {
	return t.wait(ctx, kindFDWrite, raiseIfClosed, onTimeout)
}

func (t *FileTarget) wait(ctx context.Context, kind eventKind, raiseIfClosed bool, onTimeout func()) error {
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
func (t *FileTarget) EventedResumePendingReaders() { t.ResumeRead(false) }

// EventedResumePendingWriters implements Target.
func (t *FileTarget) EventedResumePendingWriters() { t.ResumeWrite(false) }

// EventedClose implements Target.
func (t *FileTarget) EventedClose() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.EventedResumePendingReaders()
	t.EventedResumePendingWriters()
	return t.file.Close()
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
