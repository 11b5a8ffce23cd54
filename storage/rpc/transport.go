package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/net/websocket"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxResponseSize limits the size of a single JSON-RPC response
const maxResponseSize = 64 << 20

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      *uint64             `json:"id"`
	Result  jsoniter.RawMessage `json:"result"`
	Error   *Error              `json:"error"`
}

// Error is an error returned by the node
type Error struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// caller performs a single JSON-RPC call
type caller interface {
	call(ctx context.Context, method string, params []interface{}, result interface{}) error
	close() error
}

func decodeResponse(resp response, method string, result interface{}) error {
	if resp.Error != nil {
		return errors.Wrap(resp.Error, method)
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return errors.Wrapf(err, "%s: decode result", method)
	}
	return nil
}

// wsCaller talks to the node over a websocket. Responses are matched by
// request id, anything else is skipped.
type wsCaller struct {
	ws     *websocket.Conn
	nextID atomic.Uint64
}

func dialWebsocket(ctx context.Context, url string) (*wsCaller, error) {
	cfg, err := websocket.NewConfig(url, "http://localhost/")
	if err != nil {
		return nil, err
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	return &wsCaller{ws: ws}, nil
}

func (w *wsCaller) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := w.nextID.Inc()
	data, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}

	// Unblock reads and writes when the context is done
	deadline, _ := ctx.Deadline() // zero time means no deadline
	if err := w.ws.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = w.ws.SetDeadline(time.Now())
	})
	defer stop()

	if err := websocket.Message.Send(w.ws, string(data)); err != nil {
		return ctxErrOr(ctx, errors.Wrapf(err, "%s: send", method))
	}
	for {
		var msg []byte
		if err := websocket.Message.Receive(w.ws, &msg); err != nil {
			return ctxErrOr(ctx, errors.Wrapf(err, "%s: receive", method))
		}
		var resp response
		if err := json.Unmarshal(msg, &resp); err != nil {
			return errors.Wrapf(err, "%s: decode response", method)
		}
		if resp.ID == nil || *resp.ID != id {
			continue // notification or stale response
		}
		return decodeResponse(resp, method, result)
	}
}

func (w *wsCaller) close() error {
	return w.ws.Close()
}

// httpCaller talks to the node with one HTTP POST per call
type httpCaller struct {
	url    string
	client *http.Client
	nextID atomic.Uint64
}

func (h *httpCaller) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	id := h.nextID.Inc()
	data, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := h.client.Do(req)
	if err != nil {
		return ctxErrOr(ctx, errors.Wrap(err, method))
	}
	defer func() {
		_ = res.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return ctxErrOr(ctx, errors.Wrapf(err, "%s: read response", method))
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected HTTP status %d", method, res.StatusCode)
	}
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.Wrapf(err, "%s: decode response", method)
	}
	return decodeResponse(resp, method, result)
}

func (h *httpCaller) close() error {
	h.client.CloseIdleConnections()
	return nil
}

// ctxErrOr returns the context error if the context is done, otherwise err.
// This turns deadline errors caused by cancellation into context errors.
func ctxErrOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
