package fiber

import (
	"context"
	"fmt"

	"github.com/wippyai/fiber-runtime/engine"
)

// asyncifyExportNames are the five exports the Binaryen asyncify pass adds
// to an instrumented module. They, the program's
// entry point, and the fiber trampoline export are the only functions a
// correct RemoveList must keep off the instrumentation list: none of them
// may themselves be unwound, or the state machine they implement would be
// unwinding itself.
var asyncifyExportNames = []string{
	"asyncify_get_state",
	"asyncify_start_unwind",
	"asyncify_stop_unwind",
	"asyncify_start_rewind",
	"asyncify_stop_rewind",
}

// AsyncifyExports binds the five asyncify control exports of one instance.
// A single AsyncifyExports is shared by every fiber running on that
// instance, since they operate on one module-wide state machine.
type AsyncifyExports struct {
	instance *engine.Instance
}

// BindAsyncify looks up the instrumentation exports on inst. It fails if the
// module was never run through an external asyncify instrumentation pass -
// that pass is not this package's responsibility (spec.md §1 scopes it out
// as an external collaborator); BindAsyncify only verifies the contract the
// pass must have honored.
func BindAsyncify(inst *engine.Instance) (*AsyncifyExports, error) {
	for _, name := range asyncifyExportNames {
		if inst.ExportedFunction(name) == nil {
			return nil, fmt.Errorf("fiber: module missing %s export (run it through an asyncify instrumentation pass first)", name)
		}
	}
	return &AsyncifyExports{instance: inst}, nil
}

// GetState reads the module's current asyncify state.
func (a *AsyncifyExports) GetState(ctx context.Context) (State, error) {
	res, err := a.instance.Call(ctx, "asyncify_get_state")
	if err != nil {
		return Normal, fmt.Errorf("asyncify_get_state: %w", err)
	}
	if len(res) == 0 {
		return Normal, fmt.Errorf("asyncify_get_state: no result")
	}
	return State(int32(res[0])), nil
}

// StartUnwind begins saving the call stack into the buffer at dataAddr.
// Every call currently on the guest stack unwinds back to the entry point
// the Driver called; Driver then reads the state with asyncify_get_state and,
// finding Unwinding, stops the unwind.
func (a *AsyncifyExports) StartUnwind(ctx context.Context, dataAddr uint32) error {
	_, err := a.instance.Call(ctx, "asyncify_start_unwind", uint64(dataAddr))
	if err != nil {
		return fmt.Errorf("asyncify_start_unwind: %w", err)
	}
	return nil
}

// StopUnwind ends an unwind in progress, returning the state machine to Normal.
func (a *AsyncifyExports) StopUnwind(ctx context.Context) error {
	_, err := a.instance.Call(ctx, "asyncify_stop_unwind")
	if err != nil {
		return fmt.Errorf("asyncify_stop_unwind: %w", err)
	}
	return nil
}

// StartRewind begins replaying a previously saved call stack from the
// buffer at dataAddr. The following guest call must target the same entry
// point originally unwound, or the replay diverges.
func (a *AsyncifyExports) StartRewind(ctx context.Context, dataAddr uint32) error {
	_, err := a.instance.Call(ctx, "asyncify_start_rewind", uint64(dataAddr))
	if err != nil {
		return fmt.Errorf("asyncify_start_rewind: %w", err)
	}
	return nil
}

// StopRewind ends a rewind in progress, returning the state machine to Normal.
func (a *AsyncifyExports) StopRewind(ctx context.Context) error {
	_, err := a.instance.Call(ctx, "asyncify_stop_rewind")
	if err != nil {
		return fmt.Errorf("asyncify_stop_rewind: %w", err)
	}
	return nil
}

// ValidateRemoveList checks that the reserved names - the five asyncify
// exports plus the caller-supplied entry points (program entry, fiber
// trampoline) - are all exported by the module. It returns an error naming
// the first one absent, or nil. It checks presence only: whether the
// instrumentation pass really kept those functions off its instrumented
// list is not checked, since the binary carries no record of that list.
func ValidateRemoveList(inst *engine.Instance, extraReserved ...string) error {
	for _, name := range asyncifyExportNames {
		if inst.ExportedFunction(name) == nil {
			return fmt.Errorf("fiber: required export %s absent", name)
		}
	}
	for _, name := range extraReserved {
		if inst.ExportedFunction(name) == nil {
			return fmt.Errorf("fiber: required entry point %s absent", name)
		}
	}
	return nil
}
