package serialio

import (
	"context"
	"errors"

	"github.com/gocomm/mstp-gateway/internal/logging"
	"github.com/gocomm/mstp-gateway/internal/metrics"
	"github.com/gocomm/mstp-gateway/internal/mstp"
	"github.com/gocomm/mstp-gateway/internal/transport"
)

// ErrTxOverflow is returned by SendFrame when the writer's outbound buffer
// is full; the frame is dropped rather than blocking the master's cycle.
var ErrTxOverflow = errors.New("serialio: tx overflow")

// TXWriter funnels every frame write through one goroutine, so a wedged
// device cannot block the master state machine that calls SendFrame.
type TXWriter struct{ base *transport.AsyncTx }

// NewTXWriter creates a TXWriter with a buffered channel of size buf,
// encoding each frame with mstp.Encode before writing it to sp.
func NewTXWriter(parent context.Context, sp Port, buf int) *TXWriter {
	send := func(fr mstp.Frame) error {
		_, err := sp.Write(mstp.Encode(fr))
		return err
	}
	hooks := transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrPortWrite)
			logging.L().Error("port_write_error", "error", err)
		},
		OnAfter: func() { metrics.IncFramesTx() },
		OnDrop: func() error {
			metrics.IncTxOverflow()
			metrics.IncError(metrics.ErrWireOverflow)
			return ErrTxOverflow
		},
	}
	return &TXWriter{base: transport.NewAsyncTx(parent, buf, send, hooks)}
}

// SendFrame queues a frame for asynchronous write (drops with ErrTxOverflow
// if the buffer is full).
func (w *TXWriter) SendFrame(fr mstp.Frame) error { return w.base.SendFrame(fr) }

// Close stops the writer and waits for the goroutine to exit.
func (w *TXWriter) Close() { w.base.Close() }
