package wasip1

import (
	"errors"
	"io/fs"
	"os"

	wasmruntimeerrors "github.com/wippyai/fiber-runtime/errors"
)

// Errno is the WASI Preview-1 errno wire value: a 16-bit value returned by
// (almost) every host import.
type Errno uint16

// The subset of WASI errno values this runtime's host functions actually
// produce. Numeric values match the WASI Preview-1 snapshot so a guest's
// own errno.h-equivalent constants line up without translation.
const (
	ErrnoSuccess Errno = 0
	ErrnoAcces   Errno = 2
	ErrnoBadf    Errno = 8
	ErrnoExist   Errno = 20
	ErrnoFault   Errno = 21
	ErrnoInval   Errno = 28
	ErrnoIO      Errno = 29
	ErrnoIsdir   Errno = 31
	ErrnoNoent   Errno = 44
	ErrnoNosys   Errno = 52
	ErrnoNotdir  Errno = 54
	ErrnoNotsup  Errno = 58
	ErrnoAgain   Errno = 6
	ErrnoIntr    Errno = 27
)

// ErrSandboxUnavailable reports a POSIX surface this runtime never maps
// because WASI Preview-1 itself has no import for it (sockets, signals,
// fork, pipes as kernel objects, chown, realpath, file locks, TTY control,
// hostname, user/group lookup). Per §6 it must be returned, never silently
// swallowed.
func ErrSandboxUnavailable(operation string) error {
	return wasmruntimeerrors.New(wasmruntimeerrors.PhaseWASI, wasmruntimeerrors.KindSandboxUnavailable).
		Detail("%s has no WASI Preview-1 mapping and is unavailable in the sandbox", operation).
		Build()
}

// ErrnoFromHostError maps a host-side error - as produced by the standard
// library's file operations - to a WASI errno. It is total: every error the
// runtime's filesystem calls can raise lands on a concrete errno, falling
// back to ErrnoIO rather than ever panicking or propagating raw.
func ErrnoFromHostError(err error) Errno {
	if err == nil {
		return ErrnoSuccess
	}
	if se, ok := err.(*wasmruntimeerrors.Error); ok {
		switch se.Kind {
		case wasmruntimeerrors.KindInvalidInput:
			return ErrnoInval
		case wasmruntimeerrors.KindSandboxUnavailable:
			return ErrnoNosys
		case wasmruntimeerrors.KindTranslatedIO:
			return ErrnoIO
		}
	}
	switch {
	case os.IsNotExist(err):
		return ErrnoNoent
	case os.IsExist(err):
		return ErrnoExist
	case os.IsPermission(err):
		return ErrnoAcces
	}
	switch {
	case errors.Is(err, fs.ErrInvalid):
		return ErrnoInval
	case errors.Is(err, fs.ErrClosed):
		return ErrnoBadf
	}
	return ErrnoIO
}

// WASIErrnoToHostErrno translates a WASI Preview-1 errno observed from
// path_open into the host errno it originated from or best maps to, per
// §4.I. The table is total: every WASI errno value maps to something,
// defaulting to EIO.
func WASIErrnoToHostErrno(e Errno) error {
	switch e {
	case ErrnoSuccess:
		return nil
	case ErrnoAcces:
		return os.ErrPermission
	case ErrnoNoent:
		return os.ErrNotExist
	case ErrnoExist:
		return os.ErrExist
	case ErrnoIsdir:
		return errIsDir
	case ErrnoNotdir:
		return errNotDir
	case ErrnoInval:
		return fs.ErrInvalid
	case ErrnoBadf:
		return fs.ErrClosed
	default:
		return errIO
	}
}

var (
	errIsDir  = newPathError("isdir")
	errNotDir = newPathError("notdir")
	errIO     = newPathError("io")
)

func newPathError(kind string) error {
	return wasmruntimeerrors.New(wasmruntimeerrors.PhaseWASI, wasmruntimeerrors.KindTranslatedIO).
		Detail("path_open: %s", kind).
		Build()
}

