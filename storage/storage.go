// Package storage defines the interface to chain state storage backends and
// keeps a registry of available backend types.
package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/config"
)

// KV is a raw storage entry
type KV struct {
	Key   []byte
	Value []byte
}

// Conn is a single established backend connection.
// A Conn is not safe for concurrent use.
type Conn interface {
	// Iterate calls fn for every entry whose key starts with prefix in the
	// state at the given block. No order is guaranteed. An error returned
	// by fn aborts the iteration and is returned as is.
	Iterate(ctx context.Context, at chain.Hash, prefix []byte, fn func(KV) error) error
	Close() error
}

// Dialer establishes a new Conn
type Dialer func(ctx context.Context) (Conn, error)

// InitFunc returns a Dialer for the given node configuration
type InitFunc func(n config.Node) (Dialer, error)

var backends = make(map[string]InitFunc)

// RegisterBackend registers a backend type. It is intended to be called
// from init functions.
func RegisterBackend(typeName string, initFunc InitFunc) {
	backends[typeName] = initFunc
}

// GetBackend returns a Dialer for the configured backend type
func GetBackend(n config.Node) (Dialer, error) {
	if n.Backend == "" {
		return nil, fmt.Errorf("no node.backend configured")
	}
	initFunc, exists := backends[n.Backend]
	if !exists {
		return nil, fmt.Errorf("node.backend %q not found or registered", n.Backend)
	}
	return initFunc(n)
}

// BackendNames returns the names of all registered backends
func BackendNames() []string {
	var names []string
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
