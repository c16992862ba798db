//go:build linux

package serialio

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// RS485Port wraps a plain Port opened against a termios-backed device node
// and drives RTS by hand around each write, for half-duplex EIA-485
// transceivers that have no automatic direction-control circuit. The master
// calls Write once per transmission, so RTS toggling here is sufficient —
// receive is simply "RTS low" the rest of the time.
type RS485Port struct {
	inner    Port
	ctrl     *os.File // separate handle to the same device node, used only for RTS ioctls
	// turnaround is held after asserting RTS and before releasing it, to give
	// the attached transceiver time to finish driving the line.
	turnaround time.Duration
}

// OpenRS485 opens name as a termios device and wraps it for manual RTS
// direction control. baud and readTimeout behave as in Open.
func OpenRS485(name string, baud int, readTimeout, turnaround time.Duration) (*RS485Port, error) {
	p, err := Open(name, baud, readTimeout)
	if err != nil {
		return nil, err
	}
	ctrl, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serialio: open %s for RTS control: %w", name, err)
	}
	return &RS485Port{inner: p, ctrl: ctrl, turnaround: turnaround}, nil
}

func (r *RS485Port) setRTS(on bool) error {
	req := uint(unix.TIOCMBIC)
	if on {
		req = uint(unix.TIOCMBIS)
	}
	return unix.IoctlSetInt(int(r.ctrl.Fd()), req, unix.TIOCM_RTS)
}

func (r *RS485Port) Write(p []byte) (int, error) {
	if err := r.setRTS(true); err != nil {
		return 0, fmt.Errorf("serialio: assert RTS: %w", err)
	}
	n, err := r.inner.Write(p)
	time.Sleep(r.turnaround)
	if rerr := r.setRTS(false); rerr != nil && err == nil {
		err = fmt.Errorf("serialio: release RTS: %w", rerr)
	}
	return n, err
}

func (r *RS485Port) Read(p []byte) (int, error) { return r.inner.Read(p) }

func (r *RS485Port) Close() error {
	_ = r.ctrl.Close()
	return r.inner.Close()
}
