package wasip1

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/wippyai/fiber-runtime/engine"
	"github.com/wippyai/fiber-runtime/event"
	"github.com/wippyai/fiber-runtime/internal/wasmtest"
)

// newTestMemory builds a one-page memory-only module and returns an
// engine.Memory view over it for exercising the wire codec directly.
func newTestMemory(t *testing.T) *engine.Memory {
	t.Helper()
	ctx := context.Background()

	raw := wasmtest.MemoryOnlyModule()

	eng, err := engine.New(ctx, &engine.Config{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })

	mod, err := eng.CompileModule(ctx, raw)
	if err != nil {
		t.Fatalf("compile module: %v", err)
	}
	inst, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return inst.Memory()
}

type fakeResolver struct {
	targets map[uint32]event.Target
}

func (r *fakeResolver) Resolve(fd uint32) (event.Target, bool) {
	t, ok := r.targets[fd]
	return t, ok
}

func TestDecodeSubscriptions_Clock(t *testing.T) {
	mem := newTestMemory(t)

	buf := make([]byte, subscriptionSize)
	binary.LittleEndian.PutUint64(buf[0:8], 42)
	buf[8] = eventTypeClock
	binary.LittleEndian.PutUint64(buf[16+8:16+16], uint64(5*time.Millisecond))
	if err := mem.Write(0, buf); err != nil {
		t.Fatalf("write subscription: %v", err)
	}

	subs, err := DecodeSubscriptions(mem, 0, 1, &fakeResolver{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(subs) != 1 || subs[0].Userdata != 42 || subs[0].Kind != event.SubClock {
		t.Fatalf("unexpected subscription: %+v", subs)
	}
}

func TestDecodeSubscriptions_FDRead(t *testing.T) {
	mem := newTestMemory(t)

	buf := make([]byte, subscriptionSize)
	binary.LittleEndian.PutUint64(buf[0:8], 7)
	buf[8] = eventTypeFDRead
	binary.LittleEndian.PutUint32(buf[16:20], 9)
	if err := mem.Write(0, buf); err != nil {
		t.Fatalf("write subscription: %v", err)
	}

	resolver := &fakeResolver{targets: map[uint32]event.Target{9: &stubTarget{readable: true}}}
	subs, err := DecodeSubscriptions(mem, 0, 1, resolver)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(subs) != 1 || subs[0].FD != 9 || subs[0].Kind != event.SubFDRead {
		t.Fatalf("unexpected subscription: %+v", subs)
	}
	if subs[0].Ready == nil || !subs[0].Ready() {
		t.Fatal("expected the resolved target's readiness probe to report ready")
	}
}

func TestEncodeResults_RoundTrip(t *testing.T) {
	mem := newTestMemory(t)

	results := []event.ResultEvent{
		{Userdata: 11, Kind: event.SubFDWrite},
		{Userdata: 12, Kind: event.SubClock},
	}
	n, err := EncodeResults(mem, 0, results)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 events written, got %d", n)
	}

	raw, err := mem.Read(0, eventSize*2)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if raw[8] != byte(ErrnoSuccess) {
		t.Fatalf("expected errno SUCCESS in the first event, got %d", raw[8])
	}
}

type stubTarget struct{ readable bool }

func (s *stubTarget) FD() uint32                                              { return 0 }
func (s *stubTarget) ResumeRead(bool)                                         {}
func (s *stubTarget) ResumeWrite(bool)                                        {}
func (s *stubTarget) EventedWaitReadable(context.Context, bool, func()) error { return nil }
func (s *stubTarget) EventedWaitWritable(context.Context, bool, func()) error { return nil }
func (s *stubTarget) EventedResumePendingReaders()                           {}
func (s *stubTarget) EventedResumePendingWriters()                           {}
func (s *stubTarget) EventedClose() error                                    { return nil }
func (s *stubTarget) ProbeReadable() bool                                    { return s.readable }
func (s *stubTarget) ProbeWritable() bool                                    { return s.readable }
