package mstp

import (
	"fmt"
	"sync"
	"sync/atomic"

	events "github.com/docker/go-events"

	"github.com/gocomm/mstp-gateway/internal/metrics"
)

// MasterState is one of the seven master-node states plus IDLE.
type MasterState int

const (
	StateIdle MasterState = iota
	StateUseToken
	StateWaitForReply
	StateDoneWithToken
	StatePassToken
	StateNoToken
	StatePollForMaster
	StateAnswerDataRequest
)

func (s MasterState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateUseToken:
		return "USE_TOKEN"
	case StateWaitForReply:
		return "WAIT_FOR_REPLY"
	case StateDoneWithToken:
		return "DONE_WITH_TOKEN"
	case StatePassToken:
		return "PASS_TOKEN"
	case StateNoToken:
		return "NO_TOKEN"
	case StatePollForMaster:
		return "POLL_FOR_MASTER"
	case StateAnswerDataRequest:
		return "ANSWER_DATA_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// Protocol-defined timing and retry constants, all in milliseconds unless
// noted.
const (
	NoTokenTimeout  = 500
	ReplyTimeout    = 255
	ReplyDelay      = 250
	MinUsageTimeout = 20
	MaxUsageTimeout = 100
	SlotTime        = 10
	PollInterval    = 50
	RetryToken      = 1
	MinOctets       = 4

	defaultMaxInfoFrames = 1
)

// PortReader is the non-blocking octet source doCycle drains each pass. A
// zero-length, nil-error read means "no data currently available" — the
// state machine never blocks waiting for one.
type PortReader interface {
	ReadAvailable() ([]byte, error)
}

// FrameSender transmits one encoded frame; used by the master to hand off
// every frame it originates to the wire sender (internal/transport.AsyncTx
// in the gateway process, a fake in tests).
type FrameSender interface {
	SendFrame(Frame) error
}

// ReceiveHooks lets the upper layer observe application data without the
// master depending on any specific device-object implementation.
type ReceiveHooks struct {
	// DataNoReply is called for unsolicited and test-response frames.
	DataNoReply func(Frame)
	// DataNeedingReply is called for frames that must be answered within
	// ReplyDelay; the upper layer eventually calls SetReplyFrame.
	DataNeedingReply func(Frame)
}

// Master implements the MS/TP master-node state machine. A single goroutine
// must call DoCycle repeatedly. QueueFrame, SetReplyFrame, SetMaxInfoFrames,
// SetUsageTimeout, Snapshot, HasReceivedToken and Terminate are safe to call
// concurrently from other goroutines; SetClock, SetHooks, SetEventSink,
// SetTap and SetMaxMaster are not synchronized with DoCycle.
type Master struct {
	in  PortReader
	out FrameSender

	thisStation uint8
	maxMaster   uint8

	maxInfoFramesMu sync.RWMutex
	maxInfoFrames   int
	usageTimeoutMu  sync.RWMutex
	usageTimeout    int64
	retryCountLimit int

	clock Clock
	rx    *receiver

	stateMu sync.Mutex
	state   MasterState

	nextStation uint8
	pollStation uint8
	soleMaster  bool

	receivedToken bool
	retryCount    int
	tokenCount    int
	frameCount    int

	replyDeadline int64
	replySource   uint8

	toSend *frameQueue
	reply  *replySlot

	hooks  ReceiveHooks
	sink   events.Sink
	closed atomic.Bool
}

// NewMaster constructs a Master bound to in/out. thisStation must be
// within [0, maxMaster] and maxMaster within [0, 127].
// retryCount seeds the initial RETRY_TOKEN budget override (0 uses the
// protocol default of RetryToken retries).
func NewMaster(in PortReader, out FrameSender, thisStation, maxMaster uint8, retryCount int) (*Master, error) {
	if err := ValidateStationAddress(thisStation, maxMaster); err != nil {
		return nil, err
	}
	if retryCount < 0 {
		return nil, fmt.Errorf("%w: retryCount %d is negative", ErrConfig, retryCount)
	}
	m := &Master{
		in:              in,
		out:             out,
		thisStation:     thisStation,
		maxMaster:       maxMaster,
		maxInfoFrames:   defaultMaxInfoFrames,
		usageTimeout:    MinUsageTimeout,
		retryCountLimit: retryCount,
		clock:           NewSystemClock(),
		state:           StateIdle,
		nextStation:     thisStation,
		pollStation:     thisStation,
		toSend:          newFrameQueue(256),
		reply:           &replySlot{},
		sink:            discardSink{},
	}
	m.rx = newReceiver(m.clock)
	metrics.SetState(m.state.String())
	return m, nil
}

// SetClock overrides the master's time source; intended for tests before the
// first call to DoCycle.
func (m *Master) SetClock(c Clock) {
	m.clock = c
	m.rx.clock = c
}

// SetHooks installs the upper-layer delivery callbacks.
func (m *Master) SetHooks(h ReceiveHooks) { m.hooks = h }

// SetEventSink replaces the event sink every StateChange is published to.
func (m *Master) SetEventSink(s events.Sink) {
	if s == nil {
		s = discardSink{}
	}
	m.sink = s
}

// SetTap installs a fire-and-forget observer invoked with every
// successfully decoded frame (valid or addressed to another station),
// independent of the upper-layer hooks.
func (m *Master) SetTap(fn func(Frame)) {
	m.rx.onDecoded = fn
}

// SetMaxMaster updates the largest address considered part of the token ring.
func (m *Master) SetMaxMaster(v uint8) error {
	if v > MaxMaster {
		return fmt.Errorf("%w: maxMaster %d exceeds %d", ErrConfig, v, MaxMaster)
	}
	m.maxMaster = v
	return nil
}

// SetMaxInfoFrames updates how many frames this master sends per token hold.
func (m *Master) SetMaxInfoFrames(v int) error {
	if v < 1 {
		return fmt.Errorf("%w: maxInfoFrames %d must be >= 1", ErrConfig, v)
	}
	m.maxInfoFramesMu.Lock()
	m.maxInfoFrames = v
	m.maxInfoFramesMu.Unlock()
	return nil
}

func (m *Master) getMaxInfoFrames() int {
	m.maxInfoFramesMu.RLock()
	defer m.maxInfoFramesMu.RUnlock()
	return m.maxInfoFrames
}

// SetUsageTimeout updates the silence threshold (ms) applied after passing
// the token or sending a Poll-For-Master.
func (m *Master) SetUsageTimeout(ms int) error {
	if ms < MinUsageTimeout || ms > MaxUsageTimeout {
		return fmt.Errorf("%w: usageTimeout %d outside [%d,%d]", ErrConfig, ms, MinUsageTimeout, MaxUsageTimeout)
	}
	m.usageTimeoutMu.Lock()
	m.usageTimeout = int64(ms)
	m.usageTimeoutMu.Unlock()
	return nil
}

func (m *Master) getUsageTimeout() int64 {
	m.usageTimeoutMu.RLock()
	defer m.usageTimeoutMu.RUnlock()
	return m.usageTimeout
}

// Terminate permanently stops the master. DoCycle, QueueFrame, and
// SetReplyFrame all return ErrClosed afterward; idempotent.
func (m *Master) Terminate() {
	m.closed.Store(true)
}

// HasReceivedToken reports whether this station has ever held the token.
func (m *Master) HasReceivedToken() bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.receivedToken
}

// QueueFrame enqueues an outbound application frame. Only
// FrameBACnetDataExpectingReply, FrameBACnetDataNotExpectingReply, and
// FrameTestRequest may be originated by the upper layer.
func (m *Master) QueueFrame(fr Frame) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !fr.Type.sendable() {
		return fmt.Errorf("%w: %s", ErrFrameType, fr.Type)
	}
	return m.toSend.push(fr)
}

// SetReplyFrame supplies the reply to a pending data-expecting-reply
// request. If the master is still in ANSWER_DATA_REQUEST for that request it
// is installed directly for the next cycle; otherwise it is queued like any
// other outbound frame.
func (m *Master) SetReplyFrame(fr Frame) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !fr.Type.sendable() {
		return fmt.Errorf("%w: %s", ErrFrameType, fr.Type)
	}
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.state == StateAnswerDataRequest {
		m.reply.store(fr)
		return nil
	}
	return m.toSend.push(fr)
}

// Status is a snapshot of the master's address/state/counters for the admin
// HTTP endpoint.
type Status struct {
	ThisStation      uint8  `json:"thisStation"`
	NextStation      uint8  `json:"nextStation"`
	PollStation      uint8  `json:"pollStation"`
	State            string `json:"state"`
	SoleMaster       bool   `json:"soleMaster"`
	HasReceivedToken bool   `json:"hasReceivedToken"`
	TokenCount       int    `json:"tokenCount"`
	FrameCount       int    `json:"frameCount"`
	RetryCount       int    `json:"retryCount"`
	QueueDepth       int    `json:"queueDepth"`
}

// Snapshot returns the current Status.
func (m *Master) Snapshot() Status {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return Status{
		ThisStation:      m.thisStation,
		NextStation:      m.nextStation,
		PollStation:      m.pollStation,
		State:            m.state.String(),
		SoleMaster:       m.soleMaster,
		HasReceivedToken: m.receivedToken,
		TokenCount:       m.tokenCount,
		FrameCount:       m.frameCount,
		RetryCount:       m.retryCount,
		QueueDepth:       m.toSend.len(),
	}
}

func (m *Master) adjacent(x uint8) uint8 { return adjacentStation(x, m.maxMaster) }

// retryLimit returns the configured token-pass retry budget, defaulting to
// the protocol's RetryToken when the constructor was given 0.
func (m *Master) retryLimit() int {
	if m.retryCountLimit > 0 {
		return m.retryCountLimit
	}
	return RetryToken
}

// transition moves the state machine to next, publishing a StateChange event
// and updating the per-state gauge. Callers hold stateMu.
func (m *Master) transition(next MasterState) {
	prev := m.state
	m.state = next
	metrics.SetQueueDepth(m.toSend.len())
	if prev != next {
		metrics.SetState(next.String())
		m.publish(prev, next)
	}
}

// now returns the clock's current millisecond reading.
func (m *Master) now() int64 { return m.clock.NowMillis() }

// DoCycle drains any currently available octets, then evaluates the current
// state exactly once. A single call may traverse several states if each
// transition does not need to wait for new activity (e.g. DONE_WITH_TOKEN
// falling straight through to PASS_TOKEN). DoCycle never blocks.
func (m *Master) DoCycle() error {
	if m.closed.Load() {
		return ErrClosed
	}
	octets, err := m.in.ReadAvailable()
	if err != nil {
		return err
	}
	m.rx.feed(octets)

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	for {
		advanced, err := m.step()
		if err != nil {
			return err
		}
		if !advanced {
			return nil
		}
	}
}

// step evaluates the current state once and reports whether it produced a
// transition worth re-evaluating immediately (true) or the cycle should wait
// for the next call (false). Callers hold stateMu.
func (m *Master) step() (bool, error) {
	switch m.state {
	case StateIdle:
		return m.stepIdle()
	case StateUseToken:
		return m.stepUseToken()
	case StateWaitForReply:
		return m.stepWaitForReply()
	case StateDoneWithToken:
		return m.stepDoneWithToken()
	case StatePassToken:
		return m.stepPassToken()
	case StateNoToken:
		return m.stepNoToken()
	case StatePollForMaster:
		return m.stepPollForMaster()
	case StateAnswerDataRequest:
		return m.stepAnswerDataRequest()
	default:
		return false, fmt.Errorf("%w: unknown state %v", ErrConfig, m.state)
	}
}

// sendToken transmits a Token frame to dest.
func (m *Master) sendToken(dest uint8) error {
	err := m.out.SendFrame(Frame{Type: FrameToken, Destination: dest, Source: m.thisStation})
	if err == nil {
		metrics.IncTokensPassed()
		m.rx.markActivity()
	}
	return err
}

// sendPFM transmits a Poll-For-Master frame to dest.
func (m *Master) sendPFM(dest uint8) error {
	err := m.out.SendFrame(Frame{Type: FramePollForMaster, Destination: dest, Source: m.thisStation})
	if err == nil {
		metrics.IncPollForMaster()
		m.rx.markActivity()
	}
	return err
}

// clampReplyDeadline enforces ReplyDelay as an upper bound on how far in the
// future replyDeadline may sit, guarding against a wall-clock regression
// making a stale deadline look artificially distant.
func (m *Master) clampReplyDeadline() {
	nowMs := m.now()
	if m.replyDeadline-nowMs > ReplyDelay {
		m.replyDeadline = nowMs + ReplyDelay
	}
}
