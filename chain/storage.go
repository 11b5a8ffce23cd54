package chain

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// StoragePrefixSize is the size of the prefix shared by all keys of one
// storage item: twox128(pallet) ++ twox128(item)
const StoragePrefixSize = 32

// Twox128 is the 128 bit xxHash variant used for pallet and storage names.
// It concatenates two little-endian xxh64 digests with seeds 0 and 1.
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	for seed := uint64(0); seed < 2; seed++ {
		d := xxhash.NewWithSeed(seed)
		_, _ = d.Write(data) // never fails
		binary.LittleEndian.PutUint64(out[seed*8:], d.Sum64())
	}
	return out
}

// StoragePrefix returns the key prefix under which all entries of a storage
// map are stored.
func StoragePrefix(pallet, item string) []byte {
	prefix := make([]byte, 0, StoragePrefixSize)
	prefix = append(prefix, Twox128([]byte(pallet))...)
	prefix = append(prefix, Twox128([]byte(item))...)
	return prefix
}
