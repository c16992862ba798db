// Package transport provides backend-agnostic plumbing for moving MS/TP
// frames between an octet stream and the master state machine: a bounded,
// non-blocking single-goroutine sender (AsyncTx) and the small set of
// interfaces a wire backend implements to participate in it.
package transport

import "github.com/gocomm/mstp-gateway/internal/mstp"

// FrameSink is a generic MS/TP frame transmission target.
type FrameSink interface {
	SendFrame(mstp.Frame) error
}
