// Package fiberruntime is a Go host for WASI Preview-1 core WASM modules
// that use the Binaryen asyncify transform to implement cooperative fibers:
// many logical threads of guest execution sharing one WASM instance's
// single call stack, switching only at well-defined suspension points
// (a blocking read, write, or poll_oneoff).
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	fiberruntime/      Root package doc only; no exported API of its own
//	├── runtime/       Orchestration: compile, validate, instantiate, run
//	├── engine/        wazero integration (compile, instantiate, linear memory)
//	├── fiber/         The asyncify state machine, fiber contexts, the
//	│                  boundary driver, and the suspend/resume switch -
//	│                  including the instrumentation *contract* (the five
//	│                  control exports a module must already carry; see
//	│                  fiber.BindAsyncify and fiber.ValidateRemoveList)
//	├── event/         The single-threaded event loop and descriptor contract
//	├── wasip1/        The WASI Preview-1 host surface (fd_read/fd_write/
//	│                  poll_oneoff/clock/proc_exit/path_open) wired to event
//	├── resource/      Handle table backing wasip1's file descriptor table
//	├── errors/        Structured, phase/kind-tagged error type
//	└── cmd/run/       CLI: batch-run a module, or step its driver loop live
//
// # Quick start
//
//	rt, err := runtime.New(ctx, &runtime.Config{})
//	defer rt.Close(ctx)
//
//	prog, err := rt.LoadFiberModule(ctx, wasmBytes, runtime.ProgramConfig{
//	    Preopens: map[string]string{"/": "."},
//	})
//	defer prog.Close(ctx)
//
//	status, err := prog.Run(ctx)
//
// # What this is not
//
// This is not a WebAssembly Component Model runtime: there is no WIT type
// system, no canonical ABI, no component linking. A module loaded here is a
// flat core WASM module importing the WASI Preview-1 surface and exporting
// the five asyncify control exports; the compiler pipeline that produces such a
// module (and that decides what a guest-level "spawn" or "channel" means)
// is external to this repository.
//
// # Thread safety
//
// A Runtime holds at most one Program: LoadFiberModule registers the WASI
// host module under its fixed name and nothing removes it, so a second
// LoadFiberModule on the same Runtime fails. A Program's Driver
// dispatches one fiber at a time by construction (that is the entire point
// of the asyncify state machine) and is not meant to be driven from more
// than one goroutine concurrently.
package fiberruntime
