package fiber_test

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wippyai/fiber-runtime/engine"
	"github.com/wippyai/fiber-runtime/fiber"
	"github.com/wippyai/fiber-runtime/internal/wasmtest"
)

// TestDriver_SelfYieldRoundTrip runs a module already carrying the asyncify
// control exports through the engine and driver, and checks that a fiber
// which yields once and immediately reschedules itself resumes with the
// value stashed for it across the unwind/rewind cycle.
func TestDriver_SelfYieldRoundTrip(t *testing.T) {
	ctx := context.Background()
	wasmBytes := wasmtest.YieldModule()

	eng, err := engine.New(ctx, &engine.Config{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer eng.Close(ctx)

	rs := fiber.NewRuntimeState()

	var fiberCtx *fiber.Context
	var ax *fiber.AsyncifyExports
	var currentFiber *fiber.Fiber

	_, err = eng.Runtime().NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
			currentFiber.Context().SetPendingResult(7, nil)
			val, err := fiber.Switch(ctx, rs, ax, currentFiber, currentFiber)
			if err == nil {
				stack[0] = val
			}
		}), nil, []api.ValueType{api.ValueTypeI32}).
		Export("yield").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate host module: %v", err)
	}

	mod, err := eng.CompileModule(ctx, wasmBytes)
	if err != nil {
		t.Fatalf("compile module: %v", err)
	}
	defer mod.Close(ctx)

	inst, err := mod.Instantiate(ctx, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	ax, err = fiber.BindAsyncify(inst)
	if err != nil {
		t.Fatalf("bind asyncify: %v", err)
	}

	fiberCtx = fiber.NewContext(16, fiber.DefaultStackWindow, fiber.EntryDescriptor{})
	fiberCtx.MainFiber = true
	mainFiber := fiber.NewFiber("main", fiberCtx)
	currentFiber = mainFiber

	if err := fiberCtx.Buffer.Init(inst.Memory()); err != nil {
		t.Fatalf("init buffer: %v", err)
	}

	driver := fiber.NewDriver(inst, ax, rs, "run", "run")
	results, err := driver.Run(ctx, mainFiber)
	if err != nil {
		t.Fatalf("driver run: %v", err)
	}

	if !mainFiber.Dead() {
		t.Error("main fiber should be dead after completing its entry point")
	}
	if len(results) != 1 || results[0] != 7 {
		t.Fatalf("expected run() to return 7 after the yield/resume round trip, got %v", results)
	}
}
