package serialio

import (
	"errors"
	"io"
)

// PortReader adapts a Port's blocking-with-read-timeout Read into the
// non-blocking mstp.PortReader a Master's cycle expects: a read timeout
// (reported by tarm/serial as n=0, err=nil) or a benign EOF is surfaced as
// "no data" rather than an error, so one doCycle pass never waits longer
// than the port's configured read timeout.
type PortReader struct {
	port Port
	buf  []byte
}

// NewPortReader wraps p, reading at most bufSize octets per ReadAvailable
// call.
func NewPortReader(p Port, bufSize int) *PortReader {
	return &PortReader{port: p, buf: make([]byte, bufSize)}
}

// ReadAvailable implements mstp.PortReader.
func (r *PortReader) ReadAvailable() ([]byte, error) {
	n, err := r.port.Read(r.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, r.buf[:n])
		if err != nil && isBenignReadErr(err) {
			return out, nil
		}
		return out, err
	}
	if err != nil && !isBenignReadErr(err) {
		return nil, err
	}
	return nil, nil
}

func isBenignReadErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
