// Package scale implements the subset of the SCALE codec needed to decode
// SubtensorModule storage values.
package scale

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ErrTrailingData is returned by Finish when not all input was consumed
type ErrTrailingData struct {
	Remaining int
}

func (e ErrTrailingData) Error() string {
	return fmt.Sprintf("scale: %d trailing bytes after value", e.Remaining)
}

// ErrInvalidBool is returned for a bool byte other than 0 or 1
type ErrInvalidBool struct {
	Value byte
}

func (e ErrInvalidBool) Error() string {
	return fmt.Sprintf("scale: invalid bool byte 0x%02x", e.Value)
}

// Decoder decodes SCALE values from a byte slice
type Decoder struct {
	data   []byte
	offset int
}

// NewDecoder returns a Decoder reading from data
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Remaining returns the number of bytes not consumed yet
func (d *Decoder) Remaining() int {
	return len(d.data) - d.offset
}

// Finish returns an error if there is unconsumed data left
func (d *Decoder) Finish() error {
	if n := d.Remaining(); n > 0 {
		return ErrTrailingData{Remaining: n}
	}
	return nil
}

// Bytes returns the next n bytes without copying
func (d *Decoder) Bytes(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.data[d.offset : d.offset+n : d.offset+n]
	d.offset += n
	return b, nil
}

func (d *Decoder) U8() (uint8, error) {
	b, err := d.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) U16() (uint16, error) {
	b, err := d.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) U32() (uint32, error) {
	b, err := d.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) U64() (uint64, error) {
	b, err := d.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.U8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool{Value: v}
	}
}

// Compact decodes a compact encoded unsigned integer.
// The two least significant bits of the first byte select the mode.
func (d *Decoder) Compact() (uint64, error) {
	first, err := d.U8()
	if err != nil {
		return 0, err
	}
	switch first & 0b11 {
	case 0b00:
		return uint64(first >> 2), nil
	case 0b01:
		second, err := d.U8()
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16([]byte{first, second}) >> 2), nil
	case 0b10:
		rest, err := d.Bytes(3)
		if err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint32([]byte{first, rest[0], rest[1], rest[2]})
		return uint64(v >> 2), nil
	default:
		n := int(first>>2) + 4
		if n > 8 {
			return 0, fmt.Errorf("scale: compact integer of %d bytes does not fit uint64", n)
		}
		b, err := d.Bytes(n)
		if err != nil {
			return 0, err
		}
		var buf [8]byte
		copy(buf[:], b)
		return binary.LittleEndian.Uint64(buf[:]), nil
	}
}

// Vec decodes a compact length prefixed vector, using elem to decode every
// element.
func Vec[T any](d *Decoder, elem func(*Decoder) (T, error)) ([]T, error) {
	n, err := d.Compact()
	if err != nil {
		return nil, err
	}
	// Every element takes at least one byte, so this protects against huge
	// allocations for corrupt lengths.
	if n > uint64(d.Remaining()) {
		return nil, fmt.Errorf("scale: vector length %d exceeds remaining %d bytes",
			n, d.Remaining())
	}
	out := make([]T, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := elem(d)
		if err != nil {
			return nil, fmt.Errorf("scale: vector element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeAll decodes a single value with fn and checks that all input was
// consumed.
func DecodeAll[T any](data []byte, fn func(*Decoder) (T, error)) (T, error) {
	d := NewDecoder(data)
	v, err := fn(d)
	if err != nil {
		return v, err
	}
	if err := d.Finish(); err != nil {
		var empty T
		return empty, err
	}
	return v, nil
}
