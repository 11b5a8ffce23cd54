package rpc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/taoscan/neuronsnap/chain"
	"github.com/taoscan/neuronsnap/config"
	"github.com/taoscan/neuronsnap/storage"
	"github.com/taoscan/neuronsnap/storage/tester"
)

// fakeNode implements the two storage RPC methods on top of in-memory state
type fakeNode struct {
	mu     sync.Mutex
	blocks map[string]map[string]string // block hex -> key hex -> value hex
	calls  map[string]int
	stall  bool // never answer
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		blocks: make(map[string]map[string]string),
		calls:  make(map[string]int),
	}
}

func (n *fakeNode) put(at chain.Hash, key, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	state, ok := n.blocks[at.String()]
	if !ok {
		state = make(map[string]string)
		n.blocks[at.String()] = state
	}
	state[chain.EncodeHex(key)] = chain.EncodeHex(value)
}

func (n *fakeNode) callCount(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *fakeNode) handle(reqData []byte) []byte {
	var req struct {
		ID     uint64        `json:"id"`
		Method string        `json:"method"`
		Params []interface{} `json:"params"`
	}
	if err := json.Unmarshal(reqData, &req); err != nil {
		panic(err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[req.Method]++

	reply := func(result interface{}, rpcErr *Error) []byte {
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		data, err := json.Marshal(resp)
		if err != nil {
			panic(err)
		}
		return data
	}

	switch req.Method {
	case methodGetKeysPaged:
		prefix := req.Params[0].(string)
		count := int(req.Params[1].(float64))
		var start string
		if req.Params[2] != nil {
			start = req.Params[2].(string)
		}
		state, ok := n.blocks[req.Params[3].(string)]
		if !ok {
			return reply(nil, &Error{Code: 4003, Message: "Client error: UnknownBlock"})
		}
		var keys []string
		for k := range state {
			if strings.HasPrefix(k, prefix) && k > start {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		if len(keys) > count {
			keys = keys[:count]
		}
		if keys == nil {
			keys = []string{}
		}
		return reply(keys, nil)

	case methodQueryStorageAt:
		rawKeys := req.Params[0].([]interface{})
		state := n.blocks[req.Params[1].(string)]
		var changes [][]interface{}
		for _, rk := range rawKeys {
			k := rk.(string)
			if v, ok := state[k]; ok {
				changes = append(changes, []interface{}{k, v})
			} else {
				changes = append(changes, []interface{}{k, nil})
			}
		}
		return reply([]interface{}{
			map[string]interface{}{"block": req.Params[1], "changes": changes},
		}, nil)

	default:
		return reply(nil, &Error{Code: -32601, Message: "Method not found"})
	}
}

func (n *fakeNode) websocketServer(t *testing.T) *httptest.Server {
	s := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		for {
			var msg []byte
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
			n.mu.Lock()
			stall := n.stall
			n.mu.Unlock()
			if stall {
				continue
			}
			// A notification that must be skipped by the client
			_ = websocket.Message.Send(ws, `{"jsonrpc":"2.0","method":"system_health","params":{}}`)
			if err := websocket.Message.Send(ws, string(n.handle(msg))); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (n *fakeNode) httpServer(t *testing.T) *httptest.Server {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(n.handle(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func seededNode() *fakeNode {
	n := newFakeNode()
	for _, kv := range tester.Fixture() {
		n.put(tester.Block, kv.Key, kv.Value)
	}
	return n
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestBackend_websocket(t *testing.T) {
	n := seededNode()
	s := n.websocketServer(t)
	node := config.Node{Backend: "rpc", URL: wsURL(s), PageSize: 2}
	tester.DoBackendTests(t, func(ctx context.Context) (storage.Conn, error) {
		return Dial(ctx, node)
	})
	// With a page size of 2, five keys take three pages
	assert.Greater(t, n.callCount(methodGetKeysPaged), 3)
}

func TestBackend_http(t *testing.T) {
	n := seededNode()
	s := n.httpServer(t)
	dial, err := storage.GetBackend(config.Node{Backend: "rpc", URL: s.URL, PageSize: 3})
	require.NoError(t, err)
	tester.DoBackendTests(t, dial)
}

func TestIterate_paging(t *testing.T) {
	n := newFakeNode()
	prefix := chain.StoragePrefix("Tester", "Paged")
	var want []storage.KV
	for i := 0; i < 10; i++ {
		kv := storage.KV{
			Key:   append(append([]byte{}, prefix...), byte(i), 0),
			Value: []byte{byte(i)},
		}
		want = append(want, kv)
		n.put(tester.Block, kv.Key, kv.Value)
	}
	s := n.websocketServer(t)

	for _, pageSize := range []int{1, 3, 5, 10, 1000} {
		c, err := Dial(context.Background(), config.Node{URL: wsURL(s), PageSize: pageSize})
		require.NoError(t, err)
		var got []storage.KV
		err = c.Iterate(context.Background(), tester.Block, prefix, func(kv storage.KV) error {
			got = append(got, kv)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, want, got, "page size %d", pageSize)
		assert.NoError(t, c.Close())
	}
}

func TestIterate_skipsRemovedValues(t *testing.T) {
	n := seededNode()
	s := n.httpServer(t)
	c, err := Dial(context.Background(), config.Node{URL: s.URL, PageSize: 100})
	require.NoError(t, err)

	// Remove a key between listing and querying by wrapping the caller
	c.c = &removingCaller{caller: c.c, node: n, key: chain.EncodeHex(tester.Fixture()[0].Key)}

	var got []storage.KV
	err = c.Iterate(context.Background(), tester.Block, tester.PrefixFoo, func(kv storage.KV) error {
		got = append(got, kv)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 4)
	for _, kv := range got {
		assert.False(t, bytes.Equal(tester.Fixture()[0].Key, kv.Key))
	}
}

type removingCaller struct {
	caller
	node *fakeNode
	key  string
}

func (r *removingCaller) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if method == methodQueryStorageAt {
		r.node.mu.Lock()
		delete(r.node.blocks[tester.Block.String()], r.key)
		r.node.mu.Unlock()
	}
	return r.caller.call(ctx, method, params, result)
}

func TestIterate_contextTimeout(t *testing.T) {
	n := seededNode()
	n.stall = true
	s := n.websocketServer(t)
	c, err := Dial(context.Background(), config.Node{URL: wsURL(s)})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = c.Iterate(ctx, tester.Block, tester.PrefixFoo, func(storage.KV) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDial_errors(t *testing.T) {
	ctx := context.Background()
	_, err := Dial(ctx, config.Node{})
	assert.Error(t, err)

	_, err = Dial(ctx, config.Node{URL: "ftp://node.example.org"})
	assert.EqualError(t, err, `rpc: unsupported url scheme "ftp"`)

	_, err = storage.GetBackend(config.Node{Backend: "rpc"})
	assert.Error(t, err)
}

func TestIterate_rpcError(t *testing.T) {
	n := seededNode()
	s := n.httpServer(t)
	c, err := Dial(context.Background(), config.Node{URL: s.URL})
	require.NoError(t, err)
	err = c.Iterate(context.Background(), tester.UnknownBlock, tester.PrefixFoo, func(storage.KV) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnknownBlock")
}
