// Package tester contains conformance tests for storage backends
package tester

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/storage"
)

var (
	// Block is the block the Fixture entries are stored at
	Block = chain.MustParseHash("0x1111111111111111111111111111111111111111111111111111111111111111")

	// UnknownBlock must not be known to the backend
	UnknownBlock = chain.MustParseHash("0x2222222222222222222222222222222222222222222222222222222222222222")

	PrefixFoo = chain.StoragePrefix("Tester", "Foo")
	PrefixBar = chain.StoragePrefix("Tester", "Bar")
)

func key(prefix []byte, suffix ...byte) []byte {
	k := append([]byte{}, prefix...)
	return append(k, suffix...)
}

// Fixture returns the entries a backend must contain at Block before
// calling DoBackendTests.
func Fixture() []storage.KV {
	return []storage.KV{
		{Key: key(PrefixFoo, 1, 0), Value: []byte("foo-1")},
		{Key: key(PrefixFoo, 2, 0), Value: []byte("foo-2")},
		{Key: key(PrefixFoo, 3, 0), Value: []byte{}},
		{Key: key(PrefixFoo, 4, 0, 9, 0), Value: []byte("foo-4-9")},
		{Key: key(PrefixFoo, 5, 0), Value: []byte("foo-5")},
		{Key: key(PrefixBar, 1, 0), Value: []byte("bar-1")},
	}
}

func collect(ctx context.Context, c storage.Conn, at chain.Hash, prefix []byte) ([]storage.KV, error) {
	var kvs []storage.KV
	err := c.Iterate(ctx, at, prefix, func(kv storage.KV) error {
		kvs = append(kvs, kv)
		return nil
	})
	return kvs, err
}

// DoBackendTests tests a backend for conformance
func DoBackendTests(t *testing.T, dial storage.Dialer) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := dial(ctx)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, c.Close())
	}()

	fixture := Fixture()

	// Iterate one map
	kvs, err := collect(ctx, c, Block, PrefixFoo)
	require.NoError(t, err)
	assert.ElementsMatch(t, normalize(fixture[:5]), normalize(kvs))

	// Iterate another map with the same connection
	kvs, err = collect(ctx, c, Block, PrefixBar)
	require.NoError(t, err)
	assert.ElementsMatch(t, normalize(fixture[5:]), normalize(kvs))

	// Unused prefix
	kvs, err = collect(ctx, c, Block, chain.StoragePrefix("Tester", "Nothing"))
	require.NoError(t, err)
	assert.Len(t, kvs, 0)

	// Unknown block
	_, err = collect(ctx, c, UnknownBlock, PrefixFoo)
	assert.Error(t, err)

	// Callback errors abort the iteration and are returned unchanged
	errStop := errors.New("stop")
	calls := 0
	err = c.Iterate(ctx, Block, PrefixFoo, func(kv storage.KV) error {
		calls++
		return errStop
	})
	assert.Equal(t, errStop, err)
	assert.Equal(t, 1, calls)

	// Connection is still usable after an aborted iteration
	kvs, err = collect(ctx, c, Block, PrefixFoo)
	require.NoError(t, err)
	assert.Len(t, kvs, 5)

	// Cancelled context
	cctx, ccancel := context.WithCancel(ctx)
	ccancel()
	_, err = collect(cctx, c, Block, PrefixFoo)
	assert.Error(t, err)
}

// normalize maps nil and empty values to the same representation
func normalize(kvs []storage.KV) []storage.KV {
	out := make([]storage.KV, len(kvs))
	for i, kv := range kvs {
		out[i] = storage.KV{Key: kv.Key, Value: append([]byte{}, kv.Value...)}
	}
	return out
}
