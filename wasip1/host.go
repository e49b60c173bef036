// Package wasip1 wires the WASI Preview-1 snapshot surface this runtime
// supports onto package event's single-threaded loop and package fiber's
// suspension point, following the host-module registration pattern
// fiber/driver_test.go uses (NewHostModuleBuilder + WithGoModuleFunction against a
// raw value stack) rather than a reflection-based ABI like the teacher's
// retired component-model bindings used.
package wasip1

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/fiber-runtime/engine"
	"github.com/wippyai/fiber-runtime/event"
)

// Namespace is the module name every import in this file is registered
// under, matching the WASI Preview-1 snapshot guests expect.
const Namespace = "wasi_snapshot_preview1"

// Host is the WASI Preview-1 import surface bound to one event.Loop and one
// FDTable. It carries no fiber.RuntimeState of its own: a host function that
// needs to suspend reaches it through ctx via fiber.Yield, the same way
// package fiber's own Switch helper expects.
type Host struct {
	loop     *event.Loop
	fds      *FDTable
	preopens *PreopenTable
	start    time.Time
}

// NewHost builds a Host ready to register against a wazero runtime.
func NewHost(loop *event.Loop, fds *FDTable, preopens *PreopenTable) *Host {
	return &Host{loop: loop, fds: fds, preopens: preopens, start: time.Now()}
}

// Instantiate registers every import this runtime implements under
// Namespace against rt, ready for a guest module to link against.
func (h *Host) Instantiate(ctx context.Context, rt wazero.Runtime) error {
	b := rt.NewHostModuleBuilder(Namespace)

	h.exportFunc(b, "fd_read", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, h.fdRead)
	h.exportFunc(b, "fd_write", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, h.fdWrite)
	h.exportFunc(b, "fd_close", []api.ValueType{api.ValueTypeI32}, h.fdClose)
	h.exportFunc(b, "poll_oneoff", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, h.pollOneoff)
	h.exportFunc(b, "clock_time_get", []api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeI32}, h.clockTimeGet)
	h.exportFunc(b, "clock_res_get", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, h.clockResGet)

	// proc_exit is declared with no result: per the WASI Preview-1 snapshot
	// it never returns to the guest at all, so unlike every other import
	// here it cannot share exportFunc's one-i32-result signature.
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.procExit), []api.ValueType{api.ValueTypeI32}, nil).
		Export("proc_exit")
	h.exportFunc(b, "fd_prestat_get", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, h.fdPrestatGet)
	h.exportFunc(b, "fd_prestat_dir_name", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, h.fdPrestatDirName)
	h.exportFunc(b, "path_open", []api.ValueType{
		api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
		api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeI64, api.ValueTypeI32, api.ValueTypeI32,
	}, h.pathOpen)

	_, err := b.Instantiate(ctx)
	return err
}

// exportFunc registers fn (params -> one i32 errno result) under name,
// mirroring fiber/driver_test.go's raw WithGoModuleFunction pattern: host
// functions read their arguments directly off the value stack instead of
// going through wazero's reflection-based binder, since several of these
// imports (poll_oneoff, path_open) need the guest's linear memory alongside
// their scalar arguments.
func (h *Host) exportFunc(b wazero.HostModuleBuilder, name string, params []api.ValueType, fn func(ctx context.Context, mod api.Module, stack []uint64)) {
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(fn), params, []api.ValueType{api.ValueTypeI32}).
		Export(name)
}

func (h *Host) memory(mod api.Module) *engine.Memory {
	return engine.WrapMemory(mod.Memory())
}

func errnoResult(stack []uint64, e Errno) {
	stack[0] = uint64(e)
}

func (h *Host) fdRead(ctx context.Context, mod api.Module, stack []uint64) {
	fd := uint32(stack[0])
	iovsPtr, iovsLen, nreadPtr := uint32(stack[1]), uint32(stack[2]), uint32(stack[3])
	mem := h.memory(mod)

	d, ok := h.fds.Get(fd)
	if !ok || !d.Readable {
		errnoResult(stack, ErrnoBadf)
		return
	}

	n, err := event.Read(ctx, d.Target, func() (uint32, error) {
		return readIOVs(mem, d.Target, iovsPtr, iovsLen)
	})
	if err != nil {
		errnoResult(stack, ErrnoFromHostError(err))
		return
	}
	if err := mem.WriteU32(nreadPtr, n); err != nil {
		errnoResult(stack, ErrnoFault)
		return
	}
	errnoResult(stack, ErrnoSuccess)
}

func (h *Host) fdWrite(ctx context.Context, mod api.Module, stack []uint64) {
	fd := uint32(stack[0])
	iovsPtr, iovsLen, nwrittenPtr := uint32(stack[1]), uint32(stack[2]), uint32(stack[3])
	mem := h.memory(mod)

	d, ok := h.fds.Get(fd)
	if !ok || !d.Writable {
		errnoResult(stack, ErrnoBadf)
		return
	}

	n, err := event.Write(ctx, d.Target, func() (uint32, error) {
		return writeIOVs(mem, d.Target, iovsPtr, iovsLen)
	})
	if err != nil {
		errnoResult(stack, ErrnoFromHostError(err))
		return
	}
	if err := mem.WriteU32(nwrittenPtr, n); err != nil {
		errnoResult(stack, ErrnoFault)
		return
	}
	errnoResult(stack, ErrnoSuccess)
}

func (h *Host) fdClose(_ context.Context, _ api.Module, stack []uint64) {
	fd := uint32(stack[0])
	d, ok := h.fds.Remove(fd)
	if !ok {
		errnoResult(stack, ErrnoBadf)
		return
	}
	if d.Target != nil {
		_ = d.Target.EventedClose()
	}
	errnoResult(stack, ErrnoSuccess)
}

// pollOneoff implements poll_oneoff (§4.F, §6) without going through
// event.Loop's pending set: it decodes the guest's subscription array once,
// retries event.Poll in a loop exactly like Loop.Run's own retry, and stops
// at the first subscription that fires - per §4.F, poll_oneoff always
// blocks until at least one event is ready.
func (h *Host) pollOneoff(ctx context.Context, mod api.Module, stack []uint64) {
	subsPtr, eventsPtr, nsubscriptions, neventsPtr := uint32(stack[0]), uint32(stack[1]), uint32(stack[2]), uint32(stack[3])
	mem := h.memory(mod)

	subs, err := DecodeSubscriptions(mem, subsPtr, nsubscriptions, h.fds)
	if err != nil {
		errnoResult(stack, ErrnoFromHostError(err))
		return
	}

	var results []event.ResultEvent
	for {
		results = event.Poll(ctx, subs)
		if len(results) > 0 {
			break
		}
		select {
		case <-ctx.Done():
			errnoResult(stack, ErrnoIntr)
			return
		case <-time.After(event.DefaultIdlePoll):
		}
	}

	n, err := EncodeResults(mem, eventsPtr, results)
	if err != nil {
		errnoResult(stack, ErrnoFromHostError(err))
		return
	}
	if err := mem.WriteU32(neventsPtr, n); err != nil {
		errnoResult(stack, ErrnoFault)
		return
	}
	errnoResult(stack, ErrnoSuccess)
}

// clockTimeGet implements clock_time_get for CLOCK_MONOTONIC (id 1, §6); any
// other clock id is rejected rather than silently answered, since this
// runtime only ever subscribes its own event loop on the monotonic clock.
func (h *Host) clockTimeGet(_ context.Context, mod api.Module, stack []uint64) {
	clockID := uint32(stack[0])
	resultPtr := uint32(stack[2])
	if clockID != event.MonotonicClockID {
		errnoResult(stack, ErrnoNotsup)
		return
	}
	mem := h.memory(mod)
	now := uint64(time.Since(h.start).Nanoseconds())
	if err := mem.WriteU64(resultPtr, now); err != nil {
		errnoResult(stack, ErrnoFault)
		return
	}
	errnoResult(stack, ErrnoSuccess)
}

func (h *Host) clockResGet(_ context.Context, mod api.Module, stack []uint64) {
	clockID := uint32(stack[0])
	resultPtr := uint32(stack[1])
	if clockID != event.MonotonicClockID {
		errnoResult(stack, ErrnoNotsup)
		return
	}
	mem := h.memory(mod)
	if err := mem.WriteU64(resultPtr, 1); err != nil {
		errnoResult(stack, ErrnoFault)
		return
	}
	errnoResult(stack, ErrnoSuccess)
}

// procExit implements proc_exit by panicking with wazero's own exit
// sentinel, the same mechanism wazero's bundled wasi_snapshot_preview1
// implementation uses: it unwinds straight out of the guest call without
// running destructors, which is exactly what proc_exit is specified to do.
func (h *Host) procExit(_ context.Context, _ api.Module, stack []uint64) {
	panic(sys.NewExitError(uint32(stack[0])))
}

func (h *Host) fdPrestatGet(_ context.Context, mod api.Module, stack []uint64) {
	fd := uint32(stack[0])
	prestatPtr := uint32(stack[1])
	mem := h.memory(mod)

	for _, p := range h.preopens.Prestats() {
		if p.FD != fd {
			continue
		}
		// prestat_t: tag (u32, 0 == Dir) followed by the dir name's byte
		// length (u32).
		if err := mem.WriteU32(prestatPtr, 0); err != nil {
			errnoResult(stack, ErrnoFault)
			return
		}
		if err := mem.WriteU32(prestatPtr+4, uint32(len(p.Path))); err != nil {
			errnoResult(stack, ErrnoFault)
			return
		}
		errnoResult(stack, ErrnoSuccess)
		return
	}
	errnoResult(stack, ErrnoBadf)
}

func (h *Host) fdPrestatDirName(_ context.Context, mod api.Module, stack []uint64) {
	fd := uint32(stack[0])
	pathPtr, pathLen := uint32(stack[1]), uint32(stack[2])
	mem := h.memory(mod)

	for _, p := range h.preopens.Prestats() {
		if p.FD != fd {
			continue
		}
		name := p.Path
		if uint32(len(name)) > pathLen {
			errnoResult(stack, ErrnoInval)
			return
		}
		if err := mem.Write(pathPtr, []byte(name)); err != nil {
			errnoResult(stack, ErrnoFault)
			return
		}
		errnoResult(stack, ErrnoSuccess)
		return
	}
	errnoResult(stack, ErrnoBadf)
}

// pathOpen implements path_open (§4.I): translate the guest's path and
// flags, open the file against the preopen table, and insert the resulting
// Descriptor into the FD table under the out-param fd the guest supplied a
// pointer for.
func (h *Host) pathOpen(_ context.Context, mod api.Module, stack []uint64) {
	// stack layout: fd, dirflags, path_ptr, path_len, oflags, fs_rights_base,
	// fs_rights_inheriting, fdflags, opened_fd_out_ptr. The dirfd (stack[0])
	// and dirflags (stack[1]) are unused: this runtime resolves every guest
	// path against one global PreopenTable rather than per-directory handles.
	pathPtr, pathLen := uint32(stack[2]), uint32(stack[3])
	oflags := OFlags(uint32(stack[4]))
	fsRightsBase := Rights(stack[5])
	fdFlags := uint32(stack[7])
	fdOutPtr := uint32(stack[8])
	mem := h.memory(mod)

	raw, err := mem.Read(pathPtr, pathLen)
	if err != nil {
		errnoResult(stack, ErrnoFault)
		return
	}

	req := OpenRequest{
		Path:     string(raw),
		Flags:    oflags,
		Readable: fsRightsBase&RightFdRead != 0 || fsRightsBase&WritableRights == 0,
		Writable: fsRightsBase&RightFdWrite != 0,
	}
	if fdFlags&uint32(ONonblock) != 0 {
		req.Flags |= ONonblock
	}

	res, err := OpenFile(h.preopens, req)
	if err != nil {
		errnoResult(stack, ErrnoFromHostError(err))
		return
	}

	target, ferr := event.NewFileTarget(h.loop, res.File)
	if ferr != nil {
		_ = res.File.Close()
		errnoResult(stack, ErrnoIO)
		return
	}

	fd := h.fds.Insert(&Descriptor{
		Target:   target,
		Readable: req.Readable,
		Writable: req.Writable,
		Path:     req.Path,
	})

	if err := mem.WriteU32(fdOutPtr, fd); err != nil {
		errnoResult(stack, ErrnoFault)
		return
	}
	errnoResult(stack, ErrnoSuccess)
}
