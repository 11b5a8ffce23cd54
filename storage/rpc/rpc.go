// Package rpc implements a storage backend that reads chain state from a
// Substrate archive node over JSON-RPC.
//
// Storage maps are iterated the way legacy clients do: keys are listed page
// by page with state_getKeysPaged, and the values for every page are fetched
// with state_queryStorageAt. All calls are pinned to the requested block.
package rpc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/config"
	"github.com/taoscan/neuronsnap/storage"
)

const (
	methodGetKeysPaged   = "state_getKeysPaged"
	methodQueryStorageAt = "state_queryStorageAt"
)

// changeSet is an element of the state_queryStorageAt result.
// Every change is a [key, value] pair where the value can be null.
type changeSet struct {
	Block   string      `json:"block"`
	Changes [][]*string `json:"changes"`
}

// Conn is a connection to a node
type Conn struct {
	c        caller
	pageSize int
	l        logrus.FieldLogger
}

// Dial connects to the node configured in n
func Dial(ctx context.Context, n config.Node) (*Conn, error) {
	if n.URL == "" {
		return nil, fmt.Errorf("rpc: no node.url configured")
	}
	u, err := url.Parse(n.URL)
	if err != nil {
		return nil, errors.Wrap(err, "rpc: parse node url")
	}
	pageSize := n.PageSize
	if pageSize < 1 {
		pageSize = config.DefaultPageSize
	}
	if n.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.DialTimeout)
		defer cancel()
	}

	var c caller
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		ws, err := dialWebsocket(ctx, n.URL)
		if err != nil {
			return nil, errors.Wrapf(err, "rpc: connect to %s", u.Redacted())
		}
		c = ws
	case "http", "https":
		c = &httpCaller{url: n.URL, client: &http.Client{}}
	default:
		return nil, fmt.Errorf("rpc: unsupported url scheme %q", u.Scheme)
	}

	return &Conn{
		c:        c,
		pageSize: pageSize,
		l:        logrus.WithField("component", "rpc").WithField("node", u.Redacted()),
	}, nil
}

// Iterate implements storage.Conn
func (c *Conn) Iterate(ctx context.Context, at chain.Hash, prefix []byte, fn func(storage.KV) error) error {
	prefixHex := chain.EncodeHex(prefix)
	blockHex := at.String()
	var startKey interface{} // JSON null for the first page
	pages := 0
	for {
		var keys []string
		params := []interface{}{prefixHex, c.pageSize, startKey, blockHex}
		if err := c.c.call(ctx, methodGetKeysPaged, params, &keys); err != nil {
			return err
		}
		pages++
		if len(keys) == 0 {
			break
		}

		var sets []changeSet
		if err := c.c.call(ctx, methodQueryStorageAt, []interface{}{keys, blockHex}, &sets); err != nil {
			return err
		}
		values := make(map[string]*string, len(keys))
		for _, set := range sets {
			for _, change := range set.Changes {
				if len(change) != 2 || change[0] == nil {
					return fmt.Errorf("rpc: %s: malformed change entry", methodQueryStorageAt)
				}
				values[strings.ToLower(*change[0])] = change[1]
			}
		}

		for _, keyHex := range keys {
			valueHex := values[strings.ToLower(keyHex)]
			if valueHex == nil {
				// Not found or removed between the two calls
				continue
			}
			key, err := chain.DecodeHex(keyHex)
			if err != nil {
				return errors.Wrapf(err, "rpc: decode key %q", keyHex)
			}
			value, err := chain.DecodeHex(*valueHex)
			if err != nil {
				return errors.Wrapf(err, "rpc: decode value for key %q", keyHex)
			}
			if err := fn(storage.KV{Key: key, Value: value}); err != nil {
				return err
			}
		}

		if len(keys) < c.pageSize {
			break
		}
		startKey = keys[len(keys)-1]
	}
	c.l.WithField("pages", pages).WithField("prefix", prefixHex).Debug("Iterated storage")
	return nil
}

// Close closes the connection
func (c *Conn) Close() error {
	return c.c.close()
}

func init() {
	storage.RegisterBackend("rpc", func(n config.Node) (storage.Dialer, error) {
		if n.URL == "" {
			return nil, fmt.Errorf("rpc: no node.url configured")
		}
		return func(ctx context.Context) (storage.Conn, error) {
			c, err := Dial(ctx, n)
			if err != nil {
				return nil, err
			}
			return c, nil
		}, nil
	})
}
