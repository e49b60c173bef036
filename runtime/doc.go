// Package runtime wires together package engine, package fiber, package
// event and package wasip1 into a single driveable program: compile an
// already asyncify-instrumented core WASM module, register the WASI
// Preview-1 host surface, instantiate, and run the boundary driver loop to
// completion.
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
// Loading a module not already run through the asyncify instrumentation
// pass is a configuration error here, not something this package repairs:
// §4.A's removelist (the program entry, the trampoline, and the five
// asyncify exports themselves) is a property of the compiler pipeline that
// produced the module, which this spec treats as an external collaborator.
package runtime
