package wasip1

import (
	"encoding/binary"
	"io"

	"github.com/wippyai/fiber-runtime/engine"
	"github.com/wippyai/fiber-runtime/event"
)

// iovecSize is the wire size of a WASI ciovec_t/iovec_t: a guest pointer
// followed by a byte length, both u32.
const iovecSize = 8

// readinessChecker is satisfied by event.FileTarget and event.PipeTarget;
// fd_read/fd_write use it to decide whether an attempt would block before
// ever touching the underlying reader or writer, exactly the role
// evented_read/evented_write's "attempt" closure plays in §4.H.
type readinessChecker interface {
	ProbeReadable() bool
	ProbeWritable() bool
}

// sourceReader recovers the underlying byte source behind a Target. FileTarget
// and PipeTarget are the only two Target implementations this runtime has,
// so a type switch stands in for a method the public Target contract
// deliberately does not carry (§4.G).
func sourceReader(target event.Target) (io.Reader, bool) {
	switch t := target.(type) {
	case *event.FileTarget:
		return t.Reader(), true
	case *event.PipeTarget:
		return t.Reader(), true
	default:
		return nil, false
	}
}

func sourceWriter(target event.Target) (io.Writer, bool) {
	switch t := target.(type) {
	case *event.FileTarget:
		return t.File(), true
	case *event.PipeTarget:
		return t.Writer(), true
	default:
		return nil, false
	}
}

// readIOVs is fd_read's attempt closure: it fills the guest's iovec array
// from target's underlying reader, stopping at the first short read (WASI
// permits returning less than requested) and turning io.EOF into a clean
// zero-byte success rather than an error.
func readIOVs(mem *engine.Memory, target event.Target, iovsPtr, iovsLen uint32) (uint32, error) {
	if rc, ok := target.(readinessChecker); ok && !rc.ProbeReadable() {
		return 0, event.ErrWouldBlock
	}
	r, ok := sourceReader(target)
	if !ok {
		return 0, ErrSandboxUnavailable("fd_read on this descriptor kind")
	}

	var total uint32
	for i := uint32(0); i < iovsLen; i++ {
		bufPtr, bufLen, err := readIOVecEntry(mem, iovsPtr+i*iovecSize)
		if err != nil {
			return total, err
		}
		if bufLen == 0 {
			continue
		}

		chunk := make([]byte, bufLen)
		n, rerr := r.Read(chunk)
		if n > 0 {
			if werr := mem.Write(bufPtr, chunk[:n]); werr != nil {
				return total, werr
			}
			total += uint32(n)
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
		if uint32(n) < bufLen {
			break
		}
	}
	return total, nil
}

// writeIOVs is fd_write's attempt closure, symmetric to readIOVs.
func writeIOVs(mem *engine.Memory, target event.Target, iovsPtr, iovsLen uint32) (uint32, error) {
	if rc, ok := target.(readinessChecker); ok && !rc.ProbeWritable() {
		return 0, event.ErrWouldBlock
	}
	w, ok := sourceWriter(target)
	if !ok {
		return 0, ErrSandboxUnavailable("fd_write on this descriptor kind")
	}

	var total uint32
	for i := uint32(0); i < iovsLen; i++ {
		bufPtr, bufLen, err := readIOVecEntry(mem, iovsPtr+i*iovecSize)
		if err != nil {
			return total, err
		}
		if bufLen == 0 {
			continue
		}

		data, err := mem.Read(bufPtr, bufLen)
		if err != nil {
			return total, err
		}
		n, werr := w.Write(data)
		total += uint32(n)
		if werr != nil {
			return total, werr
		}
		if uint32(n) < bufLen {
			break
		}
	}
	return total, nil
}

func readIOVecEntry(mem *engine.Memory, at uint32) (ptr, length uint32, err error) {
	raw, err := mem.Read(at, iovecSize)
	if err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint32(raw[0:4]), binary.LittleEndian.Uint32(raw[4:8]), nil
}
