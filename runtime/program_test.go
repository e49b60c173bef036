package runtime_test

import (
	"context"
	"testing"

	"github.com/wippyai/fiber-runtime/internal/wasmtest"
	"github.com/wippyai/fiber-runtime/runtime"
)

func newTestRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	rt, err := runtime.New(context.Background(), &runtime.Config{})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close(context.Background()) })
	return rt
}

func TestProgram_RunToCompletion(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)

	prog, err := rt.LoadFiberModule(ctx, wasmtest.ConstModule(), runtime.ProgramConfig{})
	if err != nil {
		t.Fatalf("load fiber module: %v", err)
	}
	defer prog.Close(ctx)

	status, err := prog.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if status != 0 {
		t.Fatalf("expected status 0 for a clean return, got %d", status)
	}

	fibers := prog.Fibers()
	if len(fibers) != 1 {
		t.Fatalf("expected exactly the main fiber to be tracked, got %d", len(fibers))
	}
	if !fibers[0].Dead() {
		t.Error("main fiber should be dead once run_main returns without suspending")
	}
}

func TestProgram_StepDrivesToCompletion(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)

	prog, err := rt.LoadFiberModule(ctx, wasmtest.ConstModule(), runtime.ProgramConfig{})
	if err != nil {
		t.Fatalf("load fiber module: %v", err)
	}
	defer prog.Close(ctx)

	// A module with no suspension points completes within two Steps: the
	// first runs the main fiber's entry dispatch to Normal, the second finds
	// nothing else queued and reports done.
	done, status, err := prog.Step(ctx)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !done {
		done, status, err = prog.Step(ctx)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if !done {
		t.Fatal("expected Step to report done for a module with no suspension points")
	}
	if status != 0 {
		t.Fatalf("expected status 0, got %d", status)
	}
}

func TestProgram_SpawnTracksFiber(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)

	prog, err := rt.LoadFiberModule(ctx, wasmtest.ConstModule(), runtime.ProgramConfig{})
	if err != nil {
		t.Fatalf("load fiber module: %v", err)
	}
	defer prog.Close(ctx)

	f := prog.Spawn("worker", 0)
	if f == nil {
		t.Fatal("expected a non-nil fiber")
	}

	fibers := prog.Fibers()
	if len(fibers) != 1 || fibers[0] != f {
		t.Fatalf("expected Spawn's fiber to be visible via Fibers, got %v", fibers)
	}
}

// TestProgram_LoadFiberModuleRejectsPlainModule checks that LoadFiberModule
// refuses a module lacking the asyncify control exports rather than trying
// to instrument it itself: producing those exports is the instrumentation
// pass's job, which stays external to this runtime (spec.md §1).
func TestProgram_LoadFiberModuleRejectsPlainModule(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)

	_, err := rt.LoadFiberModule(ctx, wasmtest.MemoryOnlyModule(), runtime.ProgramConfig{})
	if err == nil {
		t.Fatal("expected LoadFiberModule to reject a module with no asyncify exports")
	}
}
