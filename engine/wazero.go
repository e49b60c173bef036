package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
)

// Engine creates and owns a wazero runtime instance.
type Engine struct {
	runtime wazero.Runtime
}

// Config holds configuration for engine creation.
type Config struct {
	// MemoryLimitPages caps memory per instance in pages (64KB each).
	// 0 means wazero's default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	// Thread operations are guest-only and are not exposed to host functions.
	EnableThreads bool
}

// New creates a new wazero-backed engine.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.EnableThreads {
			runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
		}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &Engine{runtime: rt}, nil
}

// Runtime returns the underlying wazero runtime, for callers that need to
// register host modules directly (e.g. wasi_snapshot_preview1).
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Close releases all resources held by the engine, including every
// instance and compiled module it produced.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// CompileModule parses and validates a core WASM binary.
func (e *Engine) CompileModule(ctx context.Context, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}
	return &Module{engine: e, compiled: compiled}, nil
}

// Module is a compiled core WASM module, not yet instantiated.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// ImportedFunctions lists the module's imports as "module.name" strings,
// useful for deciding which host functions the caller must provide.
func (m *Module) ImportedFunctions() []string {
	imports := m.compiled.ImportedFunctions()
	names := make([]string, 0, len(imports))
	for _, imp := range imports {
		module, name, _ := imp.Import()
		names = append(names, module+"."+name)
	}
	return names
}

// ExportedFunctionNames lists the module's exported function names.
func (m *Module) ExportedFunctionNames() []string {
	exports := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	return names
}

// Instantiate links the module against the runtime's registered host
// modules and returns a running Instance.
func (m *Module) Instantiate(ctx context.Context, modCfg wazero.ModuleConfig) (*Instance, error) {
	if modCfg == nil {
		modCfg = wazero.NewModuleConfig()
	}
	inst, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate module: %w", err)
	}
	return &Instance{module: inst}, nil
}

// Close releases the compiled module's cached code.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// Instance is a running core module instance. It is not safe for
// concurrent use: the Asyncify state machine layered on top (package
// fiber) assumes a single goroutine drives calls into it.
type Instance struct {
	module api.Module
	mu     sync.Mutex
}

// Module returns the underlying wazero api.Module, for callers that need
// direct access (e.g. package fiber reading asyncify exports).
func (i *Instance) Module() api.Module {
	return i.module
}

// ExportedFunction looks up an exported function by name, or nil if absent.
func (i *Instance) ExportedFunction(name string) api.Function {
	return i.module.ExportedFunction(name)
}

// Memory returns the instance's linear memory wrapper.
func (i *Instance) Memory() *Memory {
	mem := i.module.Memory()
	if mem == nil {
		return nil
	}
	return &Memory{mem: mem}
}

// Call invokes an exported function by name under the instance's lock,
// since wazero instances are not safe for concurrent calls.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found", name)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return fn.Call(ctx, args...)
}

// Close tears down the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

// Memory wraps wazero linear memory with the small set of accessors the
// fiber and wasip1 packages need.
type Memory struct {
	mem api.Memory
}

// WrapMemory adapts a wazero api.Memory - as handed to a host function
// through its api.Module argument - into the accessor type the rest of this
// module's packages share, so a host function registered outside package
// engine (wasip1's WASI imports, in practice) never has to touch the wazero
// API directly.
func WrapMemory(mem api.Memory) *Memory {
	return &Memory{mem: mem}
}

func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d length=%d", offset, length)
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d length=%d", offset, len(data))
	}
	return nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read u32 out of bounds: offset=%d", offset)
	}
	return val, nil
}

func (m *Memory) WriteU32(offset, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("write u32 out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read u64 out of bounds: offset=%d", offset)
	}
	return val, nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("write u64 out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Raw returns the underlying wazero api.Memory.
func (m *Memory) Raw() api.Memory {
	return m.mem
}
