package runtime

import (
	"context"

	"github.com/wippyai/fiber-runtime/engine"
	"github.com/wippyai/fiber-runtime/errors"
)

// Config configures the underlying engine. Mirrors engine.Config; kept as
// its own type so callers never need to import package engine just to spin
// up a Runtime.
type Config struct {
	MemoryLimitPages uint32
	EnableThreads    bool
}

// Runtime owns one wazero engine and the Program loaded against it. Only one
// LoadFiberModule call per Runtime succeeds: the WASI host module it
// registers keeps its fixed name for the engine's lifetime.
type Runtime struct {
	engine *engine.Engine
}

// New creates a Runtime. cfg may be nil for engine defaults.
func New(ctx context.Context, cfg *Config) (*Runtime, error) {
	var engCfg *engine.Config
	if cfg != nil {
		engCfg = &engine.Config{MemoryLimitPages: cfg.MemoryLimitPages, EnableThreads: cfg.EnableThreads}
	}

	eng, err := engine.New(ctx, engCfg)
	if err != nil {
		return nil, errors.Load("create engine", err)
	}
	return &Runtime{engine: eng}, nil
}

// Close releases every resource the engine holds. Every Program loaded from
// this Runtime must be closed first.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}
