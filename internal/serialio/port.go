// Package serialio provides the octet-stream transport backends an MS/TP
// master reads from and writes to: a plain tarm/serial UART port, and on
// Linux a variant that toggles RTS around each write for half-duplex
// EIA-485 transceivers without automatic direction control.
package serialio

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts an octet-stream device for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open connects to a UART at name/baud via tarm/serial.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
