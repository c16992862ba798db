package tap

import (
	"testing"
	"time"

	"github.com/gocomm/mstp-gateway/internal/mstp"
)

func TestTap_Broadcast_DropDoesNotBlock(t *testing.T) {
	tp := New()
	o := &Observer{Out: make(chan mstp.Frame, 4), Closed: make(chan struct{})}
	tp.Add(o)
	defer tp.Remove(o)

	// Don't read from o.Out to simulate a slow observer.
	start := time.Now()
	for i := 0; i < 1000; i++ {
		tp.Broadcast(mstp.Frame{Type: mstp.FrameBACnetDataNotExpectingReply, Destination: mstp.Broadcast})
	}
	elapsed := time.Since(start)
	if elapsed > time.Second {
		t.Fatalf("Broadcast took too long: %s", elapsed)
	}
	if len(o.Out) != cap(o.Out) {
		t.Fatalf("expected observer buffer to be full, got len=%d cap=%d", len(o.Out), cap(o.Out))
	}
}

func TestTap_Broadcast_DropKeepsOthersFlowing(t *testing.T) {
	tp := New()
	slow := &Observer{Out: make(chan mstp.Frame, 1), Closed: make(chan struct{})}
	fast := &Observer{Out: make(chan mstp.Frame, 16), Closed: make(chan struct{})}
	tp.Add(slow)
	tp.Add(fast)
	defer tp.Remove(slow)
	defer tp.Remove(fast)

	// Fill the slow observer's buffer and leave it unread.
	tp.Broadcast(mstp.Frame{Type: mstp.FrameToken})

	for i := 0; i < 10; i++ {
		tp.Broadcast(mstp.Frame{Type: mstp.FrameToken})
	}

	got := 0
	timeout := time.After(200 * time.Millisecond)
loop:
	for {
		select {
		case <-fast.Out:
			got++
			if got >= 5 {
				break loop
			}
		case <-timeout:
			break loop
		}
	}
	if got == 0 {
		t.Fatalf("fast observer did not receive any frames while slow was backpressured")
	}
}

func TestTap_KickClosesObserver(t *testing.T) {
	tp := New()
	tp.Policy = PolicyKick
	o := &Observer{Out: make(chan mstp.Frame), Closed: make(chan struct{})}
	tp.Add(o)
	defer tp.Remove(o)

	tp.Broadcast(mstp.Frame{Type: mstp.FrameToken})

	select {
	case <-o.Closed:
	default:
		t.Fatalf("expected observer to be closed under PolicyKick")
	}
}

func TestTap_CountTracksAddRemove(t *testing.T) {
	tp := New()
	if tp.Count() != 0 {
		t.Fatalf("expected 0 observers initially")
	}
	o := &Observer{Out: make(chan mstp.Frame, 1), Closed: make(chan struct{})}
	tp.Add(o)
	if tp.Count() != 1 {
		t.Fatalf("expected 1 observer after Add")
	}
	tp.Remove(o)
	if tp.Count() != 0 {
		t.Fatalf("expected 0 observers after Remove")
	}
}
