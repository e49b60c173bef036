package event

import (
	"os"
	"testing"
)

func TestFileTarget_RegularFileAlwaysReady(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "event-target-*")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	loop := NewLoop()
	target, err := NewFileTarget(loop, f)
	if err != nil {
		t.Fatalf("new file target: %v", err)
	}

	if !target.ProbeReadable() {
		t.Error("a regular file must always report readable")
	}
	if !target.ProbeWritable() {
		t.Error("a regular file must always report writable")
	}
	if target.FD() != uint32(f.Fd()) {
		t.Errorf("FD() = %d, want %d", target.FD(), f.Fd())
	}
}

func TestFileTarget_ResumeWithNoWaitersIsHarmless(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "event-target-*")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	loop := NewLoop()
	target, err := NewFileTarget(loop, f)
	if err != nil {
		t.Fatalf("new file target: %v", err)
	}

	// No waiters registered: resuming must be a harmless no-op.
	target.ResumeRead(false)
	target.ResumeWrite(true)
}

func TestFileTarget_CloseFlushesWaitersAndClosesFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "event-target-*")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}

	loop := NewLoop()
	target, err := NewFileTarget(loop, f)
	if err != nil {
		t.Fatalf("new file target: %v", err)
	}

	if err := target.EventedClose(); err != nil {
		t.Fatalf("evented close: %v", err)
	}
	if _, err := f.Stat(); err == nil {
		t.Error("expected the underlying file to be closed")
	}
}
