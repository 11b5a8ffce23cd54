package snapshot

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Use errors.Is to check which kind of error a snapshot failed with.
var (
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
	ErrTransport         = errors.New("transport error")
	ErrMalformedKey      = errors.New("malformed storage key")
	ErrUnknownMember     = errors.New("unknown member")
	ErrMemberCount       = errors.New("member count mismatch")
)

// TransportError is returned when connecting to the backend or iterating
// a storage map fails.
type TransportError struct {
	Map string // empty when the connection could not be established
	Err error
}

func (e *TransportError) Error() string {
	if e.Map == "" {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return fmt.Sprintf("transport error fetching map %s: %v", e.Map, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// MalformedKeyError is returned when a storage key is too short to contain
// the expected index suffix.
type MalformedKeyError struct {
	Map  string
	Key  []byte
	Need int // minimum key length
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed key in map %s: key 0x%x has %d bytes, need at least %d",
		e.Map, e.Key, len(e.Key), e.Need)
}

func (e *MalformedKeyError) Is(target error) bool {
	return target == ErrMalformedKey
}

// UnknownMemberError is returned when a map refers to a neuron that is
// not present in the identity map.
type UnknownMemberError struct {
	Map      string
	SubnetID uint16
	NeuronID int // vector positions can exceed the uint16 range
}

func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("map %s references unknown neuron (%d, %d)",
		e.Map, e.SubnetID, e.NeuronID)
}

func (e *UnknownMemberError) Is(target error) bool {
	return target == ErrUnknownMember
}

// MemberCountMismatchError is returned when a per subnet vector has fewer
// entries than the subnet has neurons in the identity map.
type MemberCountMismatchError struct {
	Map      string
	SubnetID uint16
	Got      int // vector length
	Want     int // neurons in the identity map
}

func (e *MemberCountMismatchError) Error() string {
	return fmt.Sprintf("map %s has %d entries for subnet %d, but the subnet has %d neurons",
		e.Map, e.Got, e.SubnetID, e.Want)
}

func (e *MemberCountMismatchError) Is(target error) bool {
	return target == ErrMemberCount
}

// inMap records the map name in a key error
func inMap(err error, name string) error {
	var mk *MalformedKeyError
	if errors.As(err, &mk) {
		mk.Map = name
	}
	return err
}
