package mstp

import (
	"bytes"
	"testing"
)

func TestEncodeDecode_RoundTrip_NoData(t *testing.T) {
	f := Frame{Type: FrameToken, Destination: 3, Source: 7}
	wire := Encode(f)

	var buf bytes.Buffer
	buf.Write(wire)

	var got []Frame
	DecodeStream(&buf, func(fr Frame) { got = append(got, fr) }, func() { t.Fatalf("unexpected malformed callback") })

	if len(got) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(got))
	}
	if got[0].Type != f.Type || got[0].Destination != f.Destination || got[0].Source != f.Source {
		t.Fatalf("got %+v, want %+v", got[0], f)
	}
	if len(got[0].Data) != 0 {
		t.Fatalf("got data %v, want empty", got[0].Data)
	}
}

func TestEncodeDecode_RoundTrip_Chunked(t *testing.T) {
	want := []Frame{
		{Type: FrameBACnetDataExpectingReply, Destination: 1, Source: 2, Data: []byte{0x01, 0x02, 0x03}},
		{Type: FrameBACnetDataNotExpectingReply, Destination: Broadcast, Source: 4, Data: []byte{0xAA}},
		{Type: FrameTestRequest, Destination: 9, Source: 8, Data: bytes.Repeat([]byte{0x5A}, 64)},
		{Type: FramePollForMaster, Destination: 5, Source: 6},
	}

	var stream []byte
	for _, f := range want {
		stream = append(stream, Encode(f)...)
	}

	var buf bytes.Buffer
	var got []Frame
	chunkSizes := []int{1, 2, 3, 5, 7, 11}
	cs := 0
	for pos := 0; pos < len(stream); {
		n := chunkSizes[cs%len(chunkSizes)]
		cs++
		if pos+n > len(stream) {
			n = len(stream) - pos
		}
		buf.Write(stream[pos : pos+n])
		pos += n

		DecodeStream(&buf, func(fr Frame) { got = append(got, fr) }, func() {
			t.Fatalf("unexpected malformed callback mid-stream")
		})
	}

	if len(got) != len(want) {
		t.Fatalf("decoded %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Type != want[i].Type || got[i].Destination != want[i].Destination || got[i].Source != want[i].Source {
			t.Fatalf("frame %d header mismatch: got %+v, want %+v", i, got[i], want[i])
		}
		if !bytes.Equal(got[i].Data, want[i].Data) {
			t.Fatalf("frame %d data mismatch: got % X, want % X", i, got[i].Data, want[i].Data)
		}
	}
}

// TestDecodeStream_MalformedCRC_Resyncs confirms a corrupted header CRC is
// reported once and the decoder recovers to pick up the next valid frame.
func TestDecodeStream_MalformedCRC_Resyncs(t *testing.T) {
	good := Encode(Frame{Type: FrameToken, Destination: 2, Source: 3})
	bad := Encode(Frame{Type: FramePollForMaster, Destination: 4, Source: 5})
	bad[7] ^= 0xFF // corrupt header CRC

	var buf bytes.Buffer
	buf.Write(bad)
	buf.Write(good)

	malformed := 0
	var got []Frame
	DecodeStream(&buf, func(fr Frame) { got = append(got, fr) }, func() { malformed++ })

	if malformed == 0 {
		t.Fatalf("expected at least one malformed callback")
	}
	if len(got) != 1 || got[0].Type != FrameToken {
		t.Fatalf("expected to recover the trailing Token frame, got %+v", got)
	}
}

// TestDecodeStream_MalformedDataCRC_Resyncs corrupts a data-bearing frame's
// trailing CRC and checks the decoder resyncs past it.
func TestDecodeStream_MalformedDataCRC_Resyncs(t *testing.T) {
	bad := Encode(Frame{Type: FrameBACnetDataNotExpectingReply, Destination: 1, Source: 2, Data: []byte{0x11, 0x22}})
	bad[len(bad)-1] ^= 0xFF // corrupt data CRC high byte
	good := Encode(Frame{Type: FrameToken, Destination: 9, Source: 10})

	var buf bytes.Buffer
	buf.Write(bad)
	buf.Write(good)

	malformed := 0
	var got []Frame
	DecodeStream(&buf, func(fr Frame) { got = append(got, fr) }, func() { malformed++ })

	if malformed == 0 {
		t.Fatalf("expected malformed callback for corrupted data CRC")
	}
	if len(got) != 1 || got[0].Type != FrameToken {
		t.Fatalf("expected to recover the trailing Token frame, got %+v", got)
	}
}

// TestDecodeStream_PartialFrame_WaitsForMore ensures a frame split across
// calls is not reported until the trailer has fully arrived.
func TestDecodeStream_PartialFrame_WaitsForMore(t *testing.T) {
	wire := Encode(Frame{Type: FrameBACnetDataExpectingReply, Destination: 1, Source: 2, Data: []byte{0x01, 0x02, 0x03, 0x04}})

	var buf bytes.Buffer
	buf.Write(wire[:len(wire)-1])

	var got []Frame
	DecodeStream(&buf, func(fr Frame) { got = append(got, fr) }, func() { t.Fatalf("unexpected malformed callback") })
	if len(got) != 0 {
		t.Fatalf("decoded %d frames before trailer arrived, want 0", len(got))
	}

	buf.Write(wire[len(wire)-1:])
	DecodeStream(&buf, func(fr Frame) { got = append(got, fr) }, func() { t.Fatalf("unexpected malformed callback") })
	if len(got) != 1 {
		t.Fatalf("decoded %d frames after trailer arrived, want 1", len(got))
	}
}

// TestDecodeStream_LeadingNoise_Skipped confirms octets before the first
// preamble are discarded without surfacing a malformed callback.
func TestDecodeStream_LeadingNoise_Skipped(t *testing.T) {
	wire := Encode(Frame{Type: FrameToken, Destination: 1, Source: 2})

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x11, 0x22, 0x33})
	buf.Write(wire)

	malformed := 0
	var got []Frame
	DecodeStream(&buf, func(fr Frame) { got = append(got, fr) }, func() { malformed++ })

	if malformed != 0 {
		t.Fatalf("leading noise before any preamble should not count as malformed, got %d", malformed)
	}
	if len(got) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(got))
	}
}

func TestCompactBuffer_ReclaimsCapacity(t *testing.T) {
	// A backing array much larger than its live content, with most of the
	// live content already consumed — the shape a long run of noise on a
	// quiet bus leaves behind.
	backing := make([]byte, 8192, 65536)
	buf := bytes.NewBuffer(backing)
	buf.Next(6200)

	wantLen := buf.Len()
	if !CompactBuffer(buf) {
		t.Fatalf("expected CompactBuffer to reclaim capacity")
	}
	if buf.Len() != wantLen {
		t.Fatalf("CompactBuffer changed buffered content: len=%d, want %d", buf.Len(), wantLen)
	}
}
