package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gocomm/mstp-gateway/internal/mstp"
	"github.com/gocomm/mstp-gateway/internal/serialio"
)

// fakePort implements serialio.Port for tests.
type fakePort struct {
	reads [][]byte
	idx   int
	sent  []byte
}

func (f *fakePort) Read(p []byte) (int, error) {
	if f.idx >= len(f.reads) {
		return 0, nil // mimic a tarm/serial read timeout
	}
	chunk := f.reads[f.idx]
	f.idx++
	return copy(p, chunk), nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.sent = append(f.sent, p...)
	return len(p), nil
}

func (f *fakePort) Close() error { return nil }

func TestInitTarmBackend_WiresPortReaderAndWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fp := &fakePort{reads: [][]byte{mstp.Encode(mstp.Frame{Type: mstp.FrameToken, Destination: 1, Source: 2})}}
	openTarmPort = func(name string, baud int, to time.Duration) (serialio.Port, error) { return fp, nil }
	defer func() { openTarmPort = serialio.Open }()

	cfg := baseConfig()
	pr, tw, cleanup, err := initTarmBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("initTarmBackend: %v", err)
	}
	defer cleanup()

	octets, err := pr.ReadAvailable()
	if err != nil {
		t.Fatalf("ReadAvailable: %v", err)
	}
	if len(octets) == 0 {
		t.Fatalf("expected the fed frame's octets, got none")
	}

	if err := tw.SendFrame(mstp.Frame{Type: mstp.FramePollForMaster, Destination: 3, Source: 1}); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && len(fp.sent) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if len(fp.sent) == 0 {
		t.Fatalf("expected the queued frame to reach the port")
	}
}

func TestInitTarmBackend_OpenError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	openTarmPort = func(name string, baud int, to time.Duration) (serialio.Port, error) { return nil, io.ErrClosedPipe }
	defer func() { openTarmPort = serialio.Open }()

	cfg := baseConfig()
	_, _, _, err := initTarmBackend(ctx, cfg)
	if err == nil {
		t.Fatalf("expected error from failing port open")
	}
}
