package event

import (
	"bytes"
	"testing"
)

func TestPipeTarget_ReadinessToggle(t *testing.T) {
	loop := NewLoop()
	var buf bytes.Buffer
	target := NewPipeTarget(loop, 42, &buf, &buf)

	if target.ProbeReadable() {
		t.Error("a fresh pipe target should start unready")
	}
	target.SetReadable(true)
	if !target.ProbeReadable() {
		t.Error("expected readable after SetReadable(true)")
	}
	target.SetReadable(false)
	if target.ProbeReadable() {
		t.Error("expected unready after SetReadable(false)")
	}
}

func TestPipeTarget_SetReadableWithNoWaitersIsHarmless(t *testing.T) {
	loop := NewLoop()
	target := NewPipeTarget(loop, 7, nil, nil)

	target.SetReadable(true)
	target.SetReadable(false)
}

func TestPipeTarget_Close(t *testing.T) {
	loop := NewLoop()
	var buf bytes.Buffer
	target := NewPipeTarget(loop, 7, &buf, &buf)

	if err := target.EventedClose(); err != nil {
		t.Fatalf("evented close: %v", err)
	}
}
