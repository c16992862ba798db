package mstp

import (
	"testing"
	"time"
)

func TestReceiver_TakeValid_ConsumesOnce(t *testing.T) {
	clk := NewFakeClock()
	r := newReceiver(clk)

	r.feed(Encode(Frame{Type: FrameToken, Destination: 1, Source: 2}))

	fr, ok := r.takeValid()
	if !ok {
		t.Fatalf("expected a valid frame")
	}
	if fr.Type != FrameToken || fr.Destination != 1 || fr.Source != 2 {
		t.Fatalf("unexpected frame: %+v", fr)
	}

	if _, ok := r.takeValid(); ok {
		t.Fatalf("takeValid should not return the same frame twice")
	}
}

func TestReceiver_TakeInvalid_ConsumesOnce(t *testing.T) {
	clk := NewFakeClock()
	r := newReceiver(clk)

	bad := Encode(Frame{Type: FrameToken, Destination: 1, Source: 2})
	bad[7] ^= 0xFF
	r.feed(bad)

	if !r.takeInvalid() {
		t.Fatalf("expected invalid frame flag set")
	}
	if r.takeInvalid() {
		t.Fatalf("takeInvalid should not fire twice")
	}
}

func TestReceiver_OnDecoded_FiresIndependentlyOfTakeValid(t *testing.T) {
	clk := NewFakeClock()
	r := newReceiver(clk)

	var tapped []Frame
	r.onDecoded = func(fr Frame) { tapped = append(tapped, fr) }

	r.feed(Encode(Frame{Type: FrameToken, Destination: 1, Source: 2}))

	fr, ok := r.takeValid()
	if !ok {
		t.Fatalf("expected the state machine to still see the frame")
	}
	if len(tapped) != 1 || tapped[0].Type != fr.Type {
		t.Fatalf("tap did not observe the decoded frame: %+v", tapped)
	}
}

func TestReceiver_Silence_TracksClockAdvance(t *testing.T) {
	clk := NewFakeClock()
	r := newReceiver(clk)

	r.feed([]byte{0x55})
	clk.Advance(42 * time.Millisecond)

	if got := r.silence(); got != 42 {
		t.Fatalf("silence() = %d, want 42", got)
	}
}

func TestReceiver_EventCount_AccumulatesAndResets(t *testing.T) {
	clk := NewFakeClock()
	r := newReceiver(clk)

	r.feed([]byte{0x01, 0x02, 0x03})
	if r.events() != 3 {
		t.Fatalf("events() = %d, want 3", r.events())
	}

	r.resetEventCount()
	if r.events() != 0 {
		t.Fatalf("events() after reset = %d, want 0", r.events())
	}
}

func TestReceiver_LatestFrameWinsWithinOneFeed(t *testing.T) {
	clk := NewFakeClock()
	r := newReceiver(clk)

	first := Encode(Frame{Type: FrameToken, Destination: 1, Source: 2})
	second := Encode(Frame{Type: FramePollForMaster, Destination: 3, Source: 4})
	r.feed(append(first, second...))

	fr, ok := r.takeValid()
	if !ok {
		t.Fatalf("expected a valid frame")
	}
	if fr.Type != FramePollForMaster {
		t.Fatalf("expected the most recently decoded frame to win, got %v", fr.Type)
	}
}
