package event

import (
	"context"
	"errors"
)

// ErrWouldBlock is the sentinel an attempt closure passed to Read/Write
// returns to signal EAGAIN: "try again once the target reports readable or
// writable." Ordinary errors propagate straight through.
var ErrWouldBlock = errors.New("event: would block")

// Read implements the evented_read helper (§4.H): call attempt; on success
// return its count; on ErrWouldBlock, suspend the current fiber on the
// target's readable side and retry once woken; any other error propagates.
// Whether the loop exits by return or by error, every fiber still waiting on
// this target is resumed, so a target that closes or errors mid-wait never
// strands a reader.
func Read(ctx context.Context, target Target, attempt func() (uint32, error)) (n uint32, err error) {
	defer target.EventedResumePendingReaders()

	for {
		n, err = attempt()
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return 0, err
		}
		if waitErr := target.EventedWaitReadable(ctx, true, nil); waitErr != nil {
			return 0, waitErr
		}
	}
}

// Write is Read's symmetric write-side form.
func Write(ctx context.Context, target Target, attempt func() (uint32, error)) (n uint32, err error) {
	defer target.EventedResumePendingWriters()

	for {
		n, err = attempt()
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return 0, err
		}
		if waitErr := target.EventedWaitWritable(ctx, true, nil); waitErr != nil {
			return 0, waitErr
		}
	}
}
