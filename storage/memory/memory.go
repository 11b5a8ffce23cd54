// Package memory implements an in-memory chain state backend
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/config"
	"github.com/taoscan/neuronsnap/storage"
)

// Backend holds the storage state of any number of blocks
type Backend struct {
	mu     sync.RWMutex
	blocks map[chain.Hash]map[string][]byte

	dials atomic.Int32
}

// Put stores a value under the key in the state of block at.
// The key and value are copied.
func (b *Backend) Put(at chain.Hash, key, value []byte) {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	b.mu.Lock()
	defer b.mu.Unlock()
	state, exists := b.blocks[at]
	if !exists {
		state = make(map[string][]byte)
		b.blocks[at] = state
	}
	state[string(key)] = valueCopy
}

// AddBlock makes an empty block state known
func (b *Backend) AddBlock(at chain.Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.blocks[at]; !exists {
		b.blocks[at] = make(map[string][]byte)
	}
}

// Dials returns the number of connections dialed so far
func (b *Backend) Dials() int {
	return int(b.dials.Load())
}

// Dial returns a new connection to this backend
func (b *Backend) Dial(ctx context.Context) (storage.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.dials.Inc()
	return &Conn{b: b}, nil
}

// entries returns copies of all entries with prefix at the block, sorted
// by key.
func (b *Backend) entries(at chain.Hash, prefix []byte) ([]storage.KV, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	state, exists := b.blocks[at]
	if !exists {
		return nil, fmt.Errorf("unknown block %s", at)
	}
	var kvs []storage.KV
	for k, v := range state {
		key := []byte(k)
		if !bytes.HasPrefix(key, prefix) {
			continue
		}
		valueCopy := make([]byte, len(v))
		copy(valueCopy, v) // safe, because v was a copy itself
		kvs = append(kvs, storage.KV{Key: key, Value: valueCopy})
	}
	sort.Slice(kvs, func(i, j int) bool {
		return bytes.Compare(kvs[i].Key, kvs[j].Key) < 0
	})
	return kvs, nil
}

// Conn is a connection to a memory Backend. Like real connections, it
// refuses concurrent use.
type Conn struct {
	b      *Backend
	busy   atomic.Bool
	closed atomic.Bool
}

func (c *Conn) Iterate(ctx context.Context, at chain.Hash, prefix []byte, fn func(storage.KV) error) error {
	if c.closed.Load() {
		return fmt.Errorf("connection closed")
	}
	if !c.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("concurrent use of connection")
	}
	defer c.busy.Store(false)

	kvs, err := c.b.entries(at, prefix)
	if err != nil {
		return err
	}
	for _, kv := range kvs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(kv); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) Close() error {
	c.closed.Store(true)
	return nil
}

// New returns an empty Backend
func New() *Backend {
	return &Backend{blocks: make(map[chain.Hash]map[string][]byte)}
}

func init() {
	storage.RegisterBackend("memory", func(n config.Node) (storage.Dialer, error) {
		return New().Dial, nil
	})
}
