package wasip1

import (
	"os"
	"strings"

	wasmruntimeerrors "github.com/wippyai/fiber-runtime/errors"
)

// OFlags are the POSIX open(2) flag bits path_open's caller supplies, named
// the way the guest ABI names them rather than Go's os package constants.
type OFlags uint32

const (
	OCreat    OFlags = 1 << iota // O_CREAT
	OTrunc                       // O_TRUNC
	OExcl                        // O_EXCL
	OAppend                      // O_APPEND
	ONonblock                    // O_NONBLOCK
	OSync                        // O_SYNC
)

// Rights is the WASI Preview-1 rights bitset path_open derives from the
// requested access mode (§4.I). Only the subset this runtime actually
// checks or reports is named; the rest of the WASI rights space collapses
// to these two derived sets.
type Rights uint64

const (
	RightFdRead             Rights = 1 << iota // FdRead
	RightFdSeek                                // FdSeek
	RightFdTell                                // FdTell
	RightFdFilestatGet                         // FdFilestatGet
	RightFdReaddir                             // FdReaddir
	RightPollFdReadwrite                       // PollFdReadwrite
	RightFdWrite                               // FdWrite
	RightFdDatasync                            // FdDatasync
	RightFdSync                                // FdSync
	RightFdAllocate                            // FdAllocate
	RightFdFilestatSetSize                     // FdFilestatSetSize
	RightFdFilestatSetTimes                    // FdFilestatSetTimes
)

// ReadableRights is the rights set granted when a descriptor is opened for
// reading (§4.I).
const ReadableRights = RightFdRead | RightFdSeek | RightFdTell | RightFdFilestatGet | RightFdReaddir | RightPollFdReadwrite

// WritableRights is the rights set granted when a descriptor is opened for
// writing (§4.I).
const WritableRights = RightFdWrite | RightFdSeek | RightFdTell | RightFdFilestatGet | RightFdDatasync | RightFdSync | RightFdAllocate | RightFdFilestatSetSize | RightFdFilestatSetTimes | RightPollFdReadwrite

// OpenRequest is path_open's translated input (§4.I).
type OpenRequest struct {
	Path     string
	Flags    OFlags
	Readable bool
	Writable bool
}

// OpenResult is what OpenFile hands back: the opened file, the rights it
// carries (base == inheriting, per §4.I), and whether the guest asked for
// read, write or (absent either) the read-only default.
type OpenResult struct {
	File   *os.File
	Rights Rights
}

// OpenFile implements the File Open Translation contract (§4.I, §5.J):
// reject an embedded NUL, resolve the guest path against preopens to get a
// (parent_fd, relative_path) pair, translate POSIX flags, derive rights, and
// always report the descriptor as blocking - WASI is effectively blocking,
// so this runtime never tells a guest otherwise.
func OpenFile(preopens *PreopenTable, req OpenRequest) (*OpenResult, error) {
	if strings.ContainsRune(req.Path, 0) {
		return nil, wasmruntimeerrors.New(wasmruntimeerrors.PhaseWASI, wasmruntimeerrors.KindInvalidInput).
			Detail("path_open: path contains an embedded NUL").
			Build()
	}

	parentFD, relative, ok := preopens.Resolve(req.Path)
	if !ok {
		return nil, WASIErrnoToHostErrno(ErrnoNoent)
	}
	physical, ok := preopens.Physical(parentFD, relative)
	if !ok {
		return nil, WASIErrnoToHostErrno(ErrnoNoent)
	}

	rights := ReadableRights
	switch {
	case req.Readable && req.Writable:
		rights = ReadableRights | WritableRights
	case req.Writable:
		rights = WritableRights
	case req.Readable:
		rights = ReadableRights
	}

	osFlags := translateFlags(req)
	f, err := os.OpenFile(physical, osFlags, 0o644)
	if err != nil {
		return nil, WASIErrnoToHostErrno(hostErrnoFromOpenErr(err))
	}

	return &OpenResult{File: f, Rights: rights}, nil
}

func translateFlags(req OpenRequest) int {
	flags := 0
	switch {
	case req.Writable && req.Readable:
		flags = os.O_RDWR
	case req.Writable:
		flags = os.O_WRONLY
	default:
		flags = os.O_RDONLY
	}
	if req.Flags&OCreat != 0 {
		flags |= os.O_CREATE
	}
	if req.Flags&OTrunc != 0 {
		flags |= os.O_TRUNC
	}
	if req.Flags&OExcl != 0 {
		flags |= os.O_EXCL
	}
	if req.Flags&OAppend != 0 {
		flags |= os.O_APPEND
	}
	if req.Flags&OSync != 0 {
		flags |= os.O_SYNC
	}
	// O_NONBLOCK has no host-level effect here: §4.I always reports the
	// descriptor back to the guest as blocking.
	return flags
}

func hostErrnoFromOpenErr(err error) Errno {
	if os.IsNotExist(err) {
		return ErrnoNoent
	}
	if os.IsExist(err) {
		return ErrnoExist
	}
	if os.IsPermission(err) {
		return ErrnoAcces
	}
	if pe, ok := err.(*os.PathError); ok {
		if pe.Err != nil && strings.Contains(pe.Err.Error(), "is a directory") {
			return ErrnoIsdir
		}
	}
	return ErrnoIO
}
