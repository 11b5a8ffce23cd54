package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoscan/neuronsnap/config"
	"github.com/taoscan/neuronsnap/storage"
	"github.com/taoscan/neuronsnap/storage/tester"
)

func TestBackend(t *testing.T) {
	b := New()
	for _, kv := range tester.Fixture() {
		b.Put(tester.Block, kv.Key, kv.Value)
	}
	tester.DoBackendTests(t, b.Dial)
	assert.Equal(t, 1, b.Dials())
}

func TestConn_concurrentUse(t *testing.T) {
	b := New()
	b.AddBlock(tester.Block)
	b.Put(tester.Block, []byte("a"), []byte("1"))
	c, err := b.Dial(context.Background())
	require.NoError(t, err)

	err = c.Iterate(context.Background(), tester.Block, nil, func(kv storage.KV) error {
		// Nested use of the same connection is concurrent use
		return c.Iterate(context.Background(), tester.Block, nil, func(storage.KV) error {
			return nil
		})
	})
	assert.EqualError(t, err, "concurrent use of connection")

	require.NoError(t, c.Close())
	err = c.Iterate(context.Background(), tester.Block, nil, func(storage.KV) error { return nil })
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, storage.BackendNames(), "memory")
	dial, err := storage.GetBackend(config.Node{Backend: "memory"})
	require.NoError(t, err)
	c, err := dial(context.Background())
	require.NoError(t, err)
	assert.NoError(t, c.Close())

	_, err = storage.GetBackend(config.Node{Backend: "nope"})
	assert.Error(t, err)
}
