package mstp

import (
	"bytes"
	"encoding/binary"
)

// preamble is the two-octet MS/TP frame marker.
var preamble = []byte{0x55, 0xFF}

const (
	headerLen  = 8 // preamble(2) + type(1) + dest(1) + src(1) + len(2) + hdrCRC(1)
	trailerLen = 2 // data CRC, low byte then high byte
)

// Encode renders f as a complete MS/TP frame, ready to write to the wire.
func Encode(f Frame) []byte {
	n := len(f.Data)
	out := make([]byte, headerLen, headerLen+n+trailerLen)
	out[0], out[1] = preamble[0], preamble[1]
	out[2] = byte(f.Type)
	out[3] = f.Destination
	out[4] = f.Source
	binary.BigEndian.PutUint16(out[5:7], uint16(n))
	out[7] = headerCRC(out[2], out[3], out[4], out[5], out[6])
	if n == 0 {
		return out
	}
	out = append(out, f.Data...)
	crc := dataCRC(f.Data)
	out = append(out, byte(crc), byte(crc>>8))
	return out
}

// CompactBuffer reclaims consumed prefix capacity once a streaming
// accumulator has grown large relative to its unread content. It returns
// true if compaction occurred. Mirrors the reference gateway's serial codec
// reclaim heuristic (internal/serial/codec.go) so a long run of noise on a
// quiet bus cannot pin a large backing array.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	if len(data) < 1024 {
		return false
	}
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}

// DecodeStream consumes as many complete frames as are available from in,
// invoking out for each and onMalformed for each length/CRC failure it
// resyncs past. It never blocks and returns after draining every complete
// frame currently buffered, leaving any trailing partial frame in place for
// the next call. Malformed length fields or CRC failures resync by
// discarding one octet and searching for the next preamble — the same
// recovery strategy as internal/serial/codec.go's DecodeStream.
func DecodeStream(in *bytes.Buffer, out func(Frame), onMalformed func()) {
	for {
		_ = CompactBuffer(in)
		data := in.Bytes()
		if len(data) < len(preamble) {
			return
		}

		i := bytes.Index(data, preamble)
		if i < 0 {
			if in.Len() > 1 {
				last := data[len(data)-1]
				in.Reset()
				_ = in.WriteByte(last)
			}
			return
		}
		if i > 0 {
			in.Next(i)
			continue
		}

		if len(data) < headerLen {
			return
		}

		typ, dest, src := data[2], data[3], data[4]
		lenHi, lenLo := data[5], data[6]
		hdrCRC := data[7]
		length := int(binary.BigEndian.Uint16([]byte{lenHi, lenLo}))

		if length > MaxDataLen {
			onMalformed()
			in.Next(1)
			continue
		}
		if !validHeaderCRC(typ, dest, src, lenHi, lenLo, hdrCRC) {
			onMalformed()
			in.Next(1)
			continue
		}

		total := headerLen + length
		if length > 0 {
			total += trailerLen
		}
		if len(data) < total {
			return
		}

		ft := FrameType(typ)
		if !ft.known() {
			ft = frameUnknown
		}

		if length == 0 {
			out(Frame{Type: ft, Destination: dest, Source: src})
			in.Next(total)
			continue
		}

		payload := data[headerLen : headerLen+length]
		lo, hi := data[headerLen+length], data[headerLen+length+1]
		if !validDataCRC(payload, lo, hi) {
			onMalformed()
			in.Next(1)
			continue
		}

		fdata := make([]byte, length)
		copy(fdata, payload)
		out(Frame{Type: ft, Destination: dest, Source: src, Data: fdata})
		in.Next(total)
	}
}
