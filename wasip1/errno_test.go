package wasip1

import (
	"os"
	"testing"

	wasmruntimeerrors "github.com/wippyai/fiber-runtime/errors"
)

func TestErrnoFromHostError_Total(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Errno
	}{
		{"nil", nil, ErrnoSuccess},
		{"not exist", os.ErrNotExist, ErrnoNoent},
		{"exist", os.ErrExist, ErrnoExist},
		{"permission", os.ErrPermission, ErrnoAcces},
		{"invalid input", wasmruntimeerrors.New(wasmruntimeerrors.PhaseWASI, wasmruntimeerrors.KindInvalidInput).Build(), ErrnoInval},
		{"sandbox unavailable", ErrSandboxUnavailable("socket"), ErrnoNosys},
		{"invalid", os.ErrInvalid, ErrnoInval},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ErrnoFromHostError(c.err); got != c.want {
				t.Fatalf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestWASIErrnoToHostErrno_Total(t *testing.T) {
	if WASIErrnoToHostErrno(ErrnoSuccess) != nil {
		t.Fatal("success must translate to a nil error")
	}
	for _, e := range []Errno{ErrnoAcces, ErrnoNoent, ErrnoExist, ErrnoIsdir, ErrnoNotdir, ErrnoInval, ErrnoBadf, ErrnoNosys} {
		if err := WASIErrnoToHostErrno(e); err == nil {
			t.Fatalf("errno %d should translate to a non-nil error", e)
		}
	}
}
