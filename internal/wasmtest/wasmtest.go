// Package wasmtest hand-assembles tiny, fixed WebAssembly binaries for use
// as test fixtures. Each module it returns is written byte-by-byte to
// already carry the five asyncify control exports a real instrumentation
// pass would have added - runtime.LoadFiberModule and fiber.BindAsyncify
// both require that contract to already hold on the bytes they're given,
// and this package never implements the pass itself, only its output for
// one fixed call shape.
package wasmtest

const (
	secType   = 1
	secImport = 2
	secFunc   = 3
	secMemory = 5
	secGlobal = 6
	secExport = 7
	secCode   = 10

	valI32     = 0x7f
	kindFunc   = 0x00
	kindMemory = 0x02

	opCall      = 0x10
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Const  = 0x41
	opI32Eq     = 0x46
	opIf        = 0x04
	opReturn    = 0x0f
	opDrop      = 0x1a
	opEnd       = 0x0b
	blockVoid   = 0x40
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func str(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

// vec length-prefixes a sequence of already-encoded items, per the WASM
// binary format's vec(T) convention.
func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func exportEntry(name string, kind byte, idx uint32) []byte {
	e := str(name)
	e = append(e, kind)
	e = append(e, uleb(idx)...)
	return e
}

func codeEntry(body []byte) []byte {
	entry := append([]byte{0x00}, body...) // 0 local decl groups
	return append(uleb(uint32(len(entry))), entry...)
}

var (
	sigNoneToI32  = []byte{0x60, 0x00, 0x01, valI32} // () -> i32
	sigI32ToNone  = []byte{0x60, 0x01, valI32, 0x00} // (i32) -> ()
	sigNoneToNone = []byte{0x60, 0x00, 0x00}         // () -> ()
)

// The fake state global: 0 Normal, 1 Unwinding, 2 Rewinding, mirroring
// fiber.State without pulling that package in.
var globalSection = section(secGlobal, vec([]byte{valI32, 0x01, opI32Const, 0x00, opEnd}))

var memorySection = section(secMemory, vec([]byte{0x00, 0x01})) // one memory, min 1 page

// fiberMemorySection is the memory of the modules assemble builds: min 17
// pages, enough to hold a fiber buffer at ProgramConfig's default 1 MiB
// BufferBase.
var fiberMemorySection = section(secMemory, vec([]byte{0x00, 0x11}))

// asyncifyExportEntries returns the five asyncify export entries, whose
// functions occupy func indices base..base+4 in this fixed order:
// get_state, start_unwind, stop_unwind, start_rewind, stop_rewind.
func asyncifyExportEntries(base uint32) [][]byte {
	return [][]byte{
		exportEntry("asyncify_get_state", kindFunc, base),
		exportEntry("asyncify_start_unwind", kindFunc, base+1),
		exportEntry("asyncify_stop_unwind", kindFunc, base+2),
		exportEntry("asyncify_start_rewind", kindFunc, base+3),
		exportEntry("asyncify_stop_rewind", kindFunc, base+4),
	}
}

// asyncifyCode emits bodies for the five asyncify exports in the same
// order asyncifyExportEntries assumes: start_unwind/start_rewind have type
// index 1 ((i32)->()), but every body here ignores its argument and just
// flips the fake state global.
func asyncifyCode() [][]byte {
	return [][]byte{
		codeEntry([]byte{opGlobalGet, 0x00, opEnd}),                   // get_state
		codeEntry([]byte{opI32Const, 0x01, opGlobalSet, 0x00, opEnd}), // start_unwind(addr)
		codeEntry([]byte{opI32Const, 0x00, opGlobalSet, 0x00, opEnd}), // stop_unwind
		codeEntry([]byte{opI32Const, 0x02, opGlobalSet, 0x00, opEnd}), // start_rewind(addr)
		codeEntry([]byte{opI32Const, 0x00, opGlobalSet, 0x00, opEnd}), // stop_rewind
	}
}

func assemble(typeSec, importSec, funcSec, exportSec []byte, codeEntries [][]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(secType, typeSec)...)
	if importSec != nil {
		out = append(out, section(secImport, importSec)...)
	}
	out = append(out, section(secFunc, funcSec)...)
	out = append(out, fiberMemorySection...)
	out = append(out, globalSection...)
	out = append(out, section(secExport, exportSec)...)
	out = append(out, section(secCode, vec(codeEntries...))...)
	return out
}

// MemoryOnlyModule is a one-page-memory module with no functions at all,
// just enough to get a real engine.Memory for exercising wire-codec logic.
func MemoryOnlyModule() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, memorySection...)
	out = append(out, section(secExport, vec(exportEntry("memory", kindMemory, 0)))...)
	return out
}

// ConstModule already carries the five asyncify exports; its run_main
// export returns a constant without ever suspending, exercising
// LoadFiberModule's ordinary, no-suspension-point path.
func ConstModule() []byte {
	typeSec := vec(sigNoneToI32, sigI32ToNone, sigNoneToNone)
	// func idx0: run_main (type0); idx1: get_state (type0); idx2/4: start_*
	// (type1); idx3/5: stop_* (type2).
	funcSec := vec(uleb(0), uleb(0), uleb(1), uleb(2), uleb(1), uleb(2))
	exportSec := vec(append([][]byte{
		exportEntry("memory", kindMemory, 0),
		exportEntry("run_main", kindFunc, 0),
	}, asyncifyExportEntries(1)...)...)
	codeEntries := append([][]byte{
		codeEntry([]byte{opI32Const, 42, opEnd}), // run_main
	}, asyncifyCode()...)
	return assemble(typeSec, nil, funcSec, exportSec, codeEntries)
}

// YieldModule already carries the five asyncify exports; its run export
// calls the imported env.yield once and returns whatever it reports - a
// hand-authored stand-in for what a real asyncify pass would emit around
// that one call site, without implementing the pass itself.
func YieldModule() []byte {
	typeSec := vec(sigNoneToI32, sigI32ToNone, sigNoneToNone)
	importSec := vec(append(str("env"), append(str("yield"), kindFunc, 0x00)...))
	// func idx0 is the env.yield import; idx1: run (type0); idx2:
	// get_state (type0); idx3/5: start_* (type1); idx4/6: stop_* (type2).
	funcSec := vec(uleb(0), uleb(0), uleb(1), uleb(2), uleb(1), uleb(2))
	exportSec := vec(append([][]byte{
		exportEntry("memory", kindMemory, 0),
		exportEntry("run", kindFunc, 1),
	}, asyncifyExportEntries(2)...)...)

	runBody := []byte{
		opCall, 0x00, // call env.yield (func idx 0)
		opGlobalGet, 0x00,
		opI32Const, 0x01,
		opI32Eq,
		opIf, blockVoid,
		opI32Const, 0x00,
		opReturn,
		opEnd, // end if
		opEnd, // end func (falls through with yield's result still on the stack)
	}
	codeEntries := append([][]byte{codeEntry(runBody)}, asyncifyCode()...)
	return assemble(typeSec, importSec, funcSec, exportSec, codeEntries)
}
