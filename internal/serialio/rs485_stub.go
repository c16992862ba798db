//go:build !linux

package serialio

import (
	"errors"
	"time"
)

// ErrRS485Unsupported is returned by OpenRS485 on platforms where manual
// RTS direction control is not implemented.
var ErrRS485Unsupported = errors.New("serialio: RS-485 RTS control is only supported on linux")

// RS485Port is not implemented on this platform.
type RS485Port struct{}

// OpenRS485 always fails on non-Linux platforms.
func OpenRS485(name string, baud int, readTimeout, turnaround time.Duration) (*RS485Port, error) {
	return nil, ErrRS485Unsupported
}

func (r *RS485Port) Write(p []byte) (int, error) { return 0, ErrRS485Unsupported }
func (r *RS485Port) Read(p []byte) (int, error)  { return 0, ErrRS485Unsupported }
func (r *RS485Port) Close() error                { return nil }
