package scale

import (
	"encoding/binary"
	"math/bits"
)

// Encoder builds SCALE encoded values. It is used to construct storage
// fixtures and is the inverse of Decoder.
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded data
func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) Raw(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

func (e *Encoder) U8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

func (e *Encoder) U16(v uint16) *Encoder {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
	return e
}

func (e *Encoder) U64(v uint64) *Encoder {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
	return e
}

func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.U8(1)
	}
	return e.U8(0)
}

// Compact appends a compact encoded integer using the smallest mode
func (e *Encoder) Compact(v uint64) *Encoder {
	switch {
	case v < 1<<6:
		e.buf = append(e.buf, byte(v<<2))
	case v < 1<<14:
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(v<<2)|0b01)
	case v < 1<<30:
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v<<2)|0b10)
	default:
		n := (bits.Len64(v) + 7) / 8
		e.buf = append(e.buf, byte((n-4)<<2)|0b11)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], v)
		e.buf = append(e.buf, tmp[:n]...)
	}
	return e
}

// EncodeVec returns the SCALE encoding of a vector
func EncodeVec[T any](items []T, elem func(*Encoder, T)) []byte {
	e := new(Encoder)
	e.Compact(uint64(len(items)))
	for _, item := range items {
		elem(e, item)
	}
	return e.Bytes()
}
