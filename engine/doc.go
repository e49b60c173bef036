// Package engine provides a thin wazero wrapper used to compile and
// instantiate core WebAssembly modules.
//
// It deliberately stays small: the Component Model canonical ABI, WIT
// type resolution, and multi-module component linking a full component
// runtime would need are out of scope here. This repository targets
// plain core WASM modules already instrumented with the Asyncify pass
// by an external toolchain, driven through a WASI Preview-1 host surface
// (see package wasip1) and a fiber scheduler (see package fiber).
//
// # Architecture
//
//	Engine   - owns a wazero.Runtime and its compilation cache
//	Module   - a compiled core module, not yet instantiated
//	Instance - a running module instance with exported functions and memory
//
// # Instantiation flow
//
//  1. Engine.CompileModule() parses and validates the WASM binary
//  2. Module.Instantiate() links it against host modules and returns an Instance
//  3. Instance exposes exported functions and linear memory to callers
//
// # Thread safety
//
// Engine and Module are safe for concurrent use. Instance is not;
// wazero instances (and the Asyncify state machine layered on top of
// them by package fiber) assume a single goroutine drives calls.
//
// # Known limitations
//
// Memory64 (64-bit linear memory addressing) is not supported; this
// follows from the underlying wazero runtime, which does not
// implement the Memory64 proposal.
package engine
