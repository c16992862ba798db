package mstp

import (
	"bytes"

	"github.com/gocomm/mstp-gateway/internal/metrics"
)

// receiver accumulates octets from the port and exposes the cycle-synchronous
// view of the last complete frame the master's doCycle expects: whether a
// valid frame or an invalid one arrived since the last poll, plus the
// silence and activity counters the state tables key off of.
type receiver struct {
	buf   bytes.Buffer
	clock Clock

	lastActivity int64 // clock.NowMillis() at last octet received
	eventCount   int

	validFrame   *Frame
	invalidFrame bool

	// onDecoded, if set, fires for every successfully decoded frame
	// (independent of validFrame/invalidFrame, which the state machine
	// consumes one at a time) — the hook the frame tap subscribes through.
	onDecoded func(Frame)
}

func newReceiver(clock Clock) *receiver {
	return &receiver{clock: clock, lastActivity: clock.NowMillis()}
}

// feed appends newly read octets and parses as many complete frames as are
// available. Only the most recently completed frame (valid or invalid) is
// retained for the next doCycle poll, matching the reference state tables'
// single-frame-at-a-time dispatch: a flood of frames within one cycle
// collapses to "the latest one," the same as the protocol's own byte-level
// receive state machine being re-entered one octet at a time.
func (r *receiver) feed(octets []byte) {
	if len(octets) == 0 {
		return
	}
	r.eventCount += len(octets)
	r.lastActivity = r.clock.NowMillis()
	r.buf.Write(octets)

	DecodeStream(&r.buf, func(fr Frame) {
		metrics.IncFramesRx()
		if r.onDecoded != nil {
			r.onDecoded(fr)
		}
		f := fr
		r.validFrame = &f
		r.invalidFrame = false
	}, func() {
		metrics.IncMalformed()
		r.invalidFrame = true
		r.validFrame = nil
	})
}

// silence reports milliseconds since the last octet was received.
func (r *receiver) silence() int64 {
	return r.clock.NowMillis() - r.lastActivity
}

// markActivity resets the silence timer as if an octet had just been seen on
// the wire. A half-duplex station cannot tell its own transmission from a
// received one, and the protocol's silence-based timers (PASS_TOKEN's retry
// spacing and POLL_FOR_MASTER's poll spacing chief among them) only produce
// their intended cadence if sending a
// frame counts as wire activity the same as receiving one.
func (r *receiver) markActivity() {
	r.lastActivity = r.clock.NowMillis()
}

// takeValid consumes and returns the pending valid frame, if any.
func (r *receiver) takeValid() (Frame, bool) {
	if r.validFrame == nil {
		return Frame{}, false
	}
	fr := *r.validFrame
	r.validFrame = nil
	return fr, true
}

// takeInvalid consumes the pending invalid-frame flag.
func (r *receiver) takeInvalid() bool {
	v := r.invalidFrame
	r.invalidFrame = false
	return v
}

// resetEventCount zeroes the octet-activity counter, as the state tables
// require on most transitions out of a token-holding or polling state.
func (r *receiver) resetEventCount() { r.eventCount = 0 }

// events reports the number of octets received since the last reset.
func (r *receiver) events() int { return r.eventCount }
