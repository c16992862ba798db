package mstp

import "errors"

// Sentinel errors, classified the way internal/server/errors.go classifies
// transport faults in the reference gateway: wrap with %w and dispatch with
// errors.Is at call sites.
var (
	// ErrConfig marks a construction or invocation fault: a programmer error
	// such as an out-of-range address, timeout or frame type.
	ErrConfig = errors.New("mstp: invalid configuration")

	// ErrFrameType is returned by QueueFrame/SetReplyFrame for a frame type
	// the upper layer is not permitted to originate.
	ErrFrameType = errors.New("mstp: frame type not sendable by upper layer")

	// ErrQueueFull is returned when framesToSend is at capacity.
	ErrQueueFull = errors.New("mstp: outbound queue full")

	// ErrClosed is returned by operations attempted after Terminate.
	ErrClosed = errors.New("mstp: master terminated")
)
