package main

import "time"

const (
	// portReadBufSize is the per-Read() buffer size handed to the serial
	// port; the master's own receiver accumulates/decodes across calls, so
	// this only bounds a single syscall's worth of octets.
	portReadBufSize = 4096
	// txQueueSize is the capacity of the async wire-sender's ring.
	txQueueSize = 1024

	cycleBackoffMin = 20 * time.Millisecond
	cycleBackoffMax = 500 * time.Millisecond

	// rs485Turnaround is held after the write returns and before RTS is
	// released, giving the transceiver time to finish driving the line
	// before the port reverts to receive.
	rs485Turnaround = 2 * time.Millisecond
)
