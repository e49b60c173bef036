package runtime

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/fiber-runtime/engine"
	wasmruntimeerrors "github.com/wippyai/fiber-runtime/errors"
	"github.com/wippyai/fiber-runtime/event"
	"github.com/wippyai/fiber-runtime/fiber"
	"github.com/wippyai/fiber-runtime/wasip1"
)

// ProgramConfig describes one guest program's environment: its preopened
// directories (§4.I's PreopenTable, generalized to (parent_fd,
// relative_path) resolution) and the entry points the Driver dispatches.
type ProgramConfig struct {
	// Preopens maps a guest-visible logical path to a host physical path.
	// Entries are assigned WASI fds starting at 3 (0-2 are stdio).
	Preopens map[string]string

	// Stdin/Stdout/Stderr default to os.Stdin/os.Stdout/os.Stderr.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// MainEntry is the export the main fiber runs (spec.md §6's run_main).
	// Defaults to "run_main".
	MainEntry string
	// Trampoline is the export every spawned fiber's entry point calls
	// through. Defaults to MainEntry's value when unset, matching modules
	// with no spawn support of their own.
	Trampoline string

	// StackWindow sizes each fiber's saved-locals window. Defaults to
	// fiber.DefaultStackWindow.
	StackWindow uint32
	// BufferBase is the linear-memory address the first fiber's
	// instrumentation buffer is allocated at. Defaults to 1<<20 (1 MiB), set
	// comfortably past where a small module's own data typically ends.
	BufferBase uint32
}

func (c ProgramConfig) withDefaults() ProgramConfig {
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.MainEntry == "" {
		c.MainEntry = "run_main"
	}
	if c.Trampoline == "" {
		c.Trampoline = c.MainEntry
	}
	if c.StackWindow == 0 {
		c.StackWindow = fiber.DefaultStackWindow
	}
	if c.BufferBase == 0 {
		c.BufferBase = 1 << 20
	}
	return c
}

// Program is one loaded, instantiated guest module ready to run: the
// fiber.Driver that dispatches it, the event.Loop that feeds the Driver's
// Idle hook, and the wasip1 tables the guest's WASI imports resolve
// against.
type Program struct {
	module   *engine.Module
	instance *engine.Instance

	rs        *fiber.RuntimeState
	ax        *fiber.AsyncifyExports
	driver    *fiber.Driver
	loop      *event.Loop
	fds       *wasip1.FDTable
	allocator *fiber.BufferAllocator

	mu        sync.Mutex
	fibers    []*fiber.Fiber
	mainFiber *fiber.Fiber
	runCtx    context.Context
}

// LoadFiberModule compiles wasmBytes, registers the WASI Preview-1 host
// surface package wasip1 implements, instantiates the module, and binds
// the asyncify control exports, returning a Program ready for Run.
//
// wasmBytes must already carry the five asyncify control exports
// (asyncify_get_state/start_unwind/stop_unwind/start_rewind/stop_rewind):
// producing them is the job of the post-compile instrumentation pass,
// which spec.md §1 explicitly places outside this runtime's scope ("the
// multi-pass post-link toolchain... We specify only the contract the
// runtime requires from that pipeline"). LoadFiberModule enforces that
// contract - see fiber.BindAsyncify and fiber.ValidateRemoveList - but
// never performs the instrumentation itself.
func (r *Runtime) LoadFiberModule(ctx context.Context, wasmBytes []byte, cfg ProgramConfig) (*Program, error) {
	cfg = cfg.withDefaults()

	module, err := r.engine.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, wasmruntimeerrors.Load("compile module", err)
	}

	loop := event.NewLoop()
	fds, err := newStdioFDTable(loop, cfg)
	if err != nil {
		module.Close(ctx)
		return nil, err
	}
	preopens := wasip1.NewPreopenTable(3, cfg.Preopens)

	host := wasip1.NewHost(loop, fds, preopens)
	if err := host.Instantiate(ctx, r.engine.Runtime()); err != nil {
		module.Close(ctx)
		return nil, wasmruntimeerrors.Registration(wasmruntimeerrors.PhaseHost, wasip1.Namespace, "*", err)
	}

	instance, err := module.Instantiate(ctx, wazero.NewModuleConfig())
	if err != nil {
		module.Close(ctx)
		return nil, wasmruntimeerrors.Instantiation(err)
	}

	ax, err := fiber.BindAsyncify(instance)
	if err != nil {
		instance.Close(ctx)
		module.Close(ctx)
		return nil, wasmruntimeerrors.Wrap(wasmruntimeerrors.PhaseFiber, wasmruntimeerrors.KindBadState, err, "bind asyncify exports")
	}
	if err := fiber.ValidateRemoveList(instance, cfg.MainEntry, cfg.Trampoline); err != nil {
		instance.Close(ctx)
		module.Close(ctx)
		return nil, wasmruntimeerrors.Wrap(wasmruntimeerrors.PhaseFiber, wasmruntimeerrors.KindBadState, err, "validate asyncify removelist")
	}

	rs := fiber.NewRuntimeState()
	driver := fiber.NewDriver(instance, ax, rs, cfg.MainEntry, cfg.Trampoline)
	driver.Idle = loop.Idle(rs)

	return &Program{
		module:    module,
		instance:  instance,
		rs:        rs,
		ax:        ax,
		driver:    driver,
		loop:      loop,
		fds:       fds,
		allocator: fiber.NewBufferAllocator(cfg.BufferBase, cfg.StackWindow),
	}, nil
}

func newStdioFDTable(loop *event.Loop, cfg ProgramConfig) (*wasip1.FDTable, error) {
	mk := func(f *os.File, readable, writable bool) (*wasip1.Descriptor, error) {
		target, err := event.NewFileTarget(loop, f)
		if err != nil {
			return nil, wasmruntimeerrors.Wrap(wasmruntimeerrors.PhaseWASI, wasmruntimeerrors.KindInvalidData, err, "wrap stdio descriptor")
		}
		return &wasip1.Descriptor{Target: target, Readable: readable, Writable: writable, Path: f.Name()}, nil
	}

	stdin, err := mk(cfg.Stdin, true, false)
	if err != nil {
		return nil, err
	}
	stdout, err := mk(cfg.Stdout, false, true)
	if err != nil {
		return nil, err
	}
	stderr, err := mk(cfg.Stderr, false, true)
	if err != nil {
		return nil, err
	}
	return wasip1.NewFDTable(stdin, stdout, stderr), nil
}

// Spawn allocates a fresh fiber ready to run entryArg through the
// program's trampoline export, and queues it to run on the next Driver
// idle pass. Mirrors the Go-level construction fiber/driver_test.go uses
// directly; a compiled guest's own spawn-time code is responsible for
// producing entryArg (typically a pointer to a closure environment) since
// that convention belongs to the compiler pipeline, not this runtime.
func (p *Program) Spawn(name string, entryArg uint64) *fiber.Fiber {
	buf := p.allocator.Allocate()
	ctx := fiber.NewContext(buf.Addr, buf.StackSize, fiber.EntryDescriptor{Arg: entryArg})
	ctx.MarkResumable()
	f := fiber.NewFiber(name, ctx)
	p.addFiber(f)
	p.loop.EnqueueReady(f)
	return f
}

func (p *Program) addFiber(f *fiber.Fiber) {
	p.mu.Lock()
	p.fibers = append(p.fibers, f)
	p.mu.Unlock()
}

// Fibers returns every fiber spawned so far, including the main fiber once
// Run or Step has been called. For the CLI's interactive fiber list; the
// returned slice is a snapshot and does not reflect later spawns.
func (p *Program) Fibers() []*fiber.Fiber {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*fiber.Fiber, len(p.fibers))
	copy(out, p.fibers)
	return out
}

// Loop returns the program's event loop, for callers (the CLI's interactive
// mode, tests) that need to inspect or drive it directly.
func (p *Program) Loop() *event.Loop { return p.loop }

// RuntimeState returns the program's asyncify state machine, for callers
// that need to inspect scheduling state (the CLI's fiber inspector).
func (p *Program) RuntimeState() *fiber.RuntimeState { return p.rs }

func (p *Program) newMainFiber() (*fiber.Fiber, error) {
	buf := p.allocator.Allocate()
	mainCtx := fiber.NewContext(buf.Addr, buf.StackSize, fiber.EntryDescriptor{})
	mainCtx.MainFiber = true
	if err := mainCtx.Buffer.Init(p.instance.Memory()); err != nil {
		return nil, wasmruntimeerrors.Wrap(wasmruntimeerrors.PhaseFiber, wasmruntimeerrors.KindUnwindOverflow, err, "init main fiber buffer")
	}
	f := fiber.NewFiber("main", mainCtx)
	p.addFiber(f)
	return f, nil
}

// Run executes the entry point contract (spec.md §6): the module's own ctors
// have already run when LoadFiberModule instantiated it (wazero's
// start-function convention), run_main then drives to completion through the Driver's
// dispatch loop - servicing every fiber it transitively spawns - and a
// clean exit is reported as status 0. A guest call to proc_exit instead
// unwinds the Go call stack as a *sys.ExitError, which Run recovers and
// reports as the requested status rather than letting it escape as a panic.
func (p *Program) Run(ctx context.Context) (status uint32, err error) {
	defer func() {
		if r := recover(); r != nil {
			exitErr, ok := r.(*sys.ExitError)
			if !ok {
				panic(r)
			}
			status, err = exitErr.ExitCode(), nil
		}
	}()

	mainFiber, err := p.newMainFiber()
	if err != nil {
		return 0, err
	}

	runCtx := fiber.WithAsyncifyExports(fiber.WithRuntimeState(ctx, p.rs), p.ax)

	_, runErr := p.driver.Run(runCtx, mainFiber)
	if runErr != nil {
		var exitErr *sys.ExitError
		if errors.As(runErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, runErr
	}
	return 0, nil
}

// Step advances the program by exactly one fiber dispatch (or idle pass),
// rather than running to completion: the first call performs the same
// run_main dispatch Run's first call does, and every call thereafter
// services whichever fiber fiber.Driver.Step would. The CLI's interactive
// mode calls this repeatedly so it can render fiber state between
// dispatches. done reports the program has nothing left runnable; status
// and err are only meaningful once done is true.
func (p *Program) Step(ctx context.Context) (done bool, status uint32, err error) {
	defer func() {
		if r := recover(); r != nil {
			exitErr, ok := r.(*sys.ExitError)
			if !ok {
				panic(r)
			}
			done, status, err = true, exitErr.ExitCode(), nil
		}
	}()

	if p.mainFiber == nil {
		mainFiber, ferr := p.newMainFiber()
		if ferr != nil {
			return true, 0, ferr
		}
		p.mainFiber = mainFiber
		p.runCtx = fiber.WithAsyncifyExports(fiber.WithRuntimeState(ctx, p.rs), p.ax)

		if _, enterErr := p.driver.EnterMain(p.runCtx, p.mainFiber); enterErr != nil {
			var exitErr *sys.ExitError
			if errors.As(enterErr, &exitErr) {
				return true, exitErr.ExitCode(), nil
			}
			return true, 0, enterErr
		}
		return false, 0, nil
	}

	_, stepDone, _, stepErr := p.driver.Step(p.runCtx)
	if stepErr != nil {
		var exitErr *sys.ExitError
		if errors.As(stepErr, &exitErr) {
			return true, exitErr.ExitCode(), nil
		}
		return true, 0, stepErr
	}
	return stepDone, 0, nil
}

// Close tears down the instance and compiled module. The FDTable's
// remaining descriptors (including stdio) are closed along with it.
func (p *Program) Close(ctx context.Context) error {
	fdErr := p.fds.Close()
	instErr := p.instance.Close(ctx)
	modErr := p.module.Close(ctx)
	switch {
	case instErr != nil:
		return instErr
	case modErr != nil:
		return modErr
	default:
		return fdErr
	}
}
