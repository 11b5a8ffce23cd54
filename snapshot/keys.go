package snapshot

import (
	"encoding/binary"
)

// Sizes of the index suffixes of storage keys. Substrate appends the
// SCALE encoded index to the key for Identity hashed maps.
const (
	GroupSuffixSize  = 2
	MemberSuffixSize = 4
)

// DecodeGroupKey returns the subnet id stored in the last 2 bytes of a
// single index key.
func DecodeGroupKey(key []byte) (uint16, error) {
	if len(key) < GroupSuffixSize {
		return 0, &MalformedKeyError{Key: key, Need: GroupSuffixSize}
	}
	return binary.LittleEndian.Uint16(key[len(key)-2:]), nil
}

// DecodeMemberKey returns the subnet id and neuron uid stored in the last
// 4 bytes of a dual index key.
func DecodeMemberKey(key []byte) (group, member uint16, err error) {
	n := len(key)
	if n < MemberSuffixSize {
		return 0, 0, &MalformedKeyError{Key: key, Need: MemberSuffixSize}
	}
	group = binary.LittleEndian.Uint16(key[n-4 : n-2])
	member = binary.LittleEndian.Uint16(key[n-2:])
	return group, member, nil
}

// EncodeGroupSuffix returns the single index key suffix for a subnet
func EncodeGroupSuffix(group uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, group)
}

// EncodeMemberSuffix returns the dual index key suffix for a neuron
func EncodeMemberSuffix(group, member uint16) []byte {
	b := make([]byte, 0, MemberSuffixSize)
	b = binary.LittleEndian.AppendUint16(b, group)
	return binary.LittleEndian.AppendUint16(b, member)
}
