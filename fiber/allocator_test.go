package fiber

import "testing"

func TestBufferAllocator_NonOverlapping(t *testing.T) {
	a := NewBufferAllocator(1024, 256)

	b1 := a.Allocate()
	b2 := a.Allocate()

	if b1.Addr != 1024 {
		t.Fatalf("expected first buffer at base 1024, got %d", b1.Addr)
	}
	if b2.Addr != b1.Addr+8+b1.StackSize {
		t.Fatalf("expected second buffer to start after the first's window, got %d want %d",
			b2.Addr, b1.Addr+8+b1.StackSize)
	}
	if b1.StackSize != 256 || b2.StackSize != 256 {
		t.Fatalf("expected both buffers sized 256, got %d and %d", b1.StackSize, b2.StackSize)
	}
}

func TestBuffer_LowHigh(t *testing.T) {
	b := Buffer{Addr: 100, StackSize: 64}
	if b.Low() != 108 {
		t.Errorf("Low() = %d, want 108", b.Low())
	}
	if b.High() != 172 {
		t.Errorf("High() = %d, want 172", b.High())
	}
}
