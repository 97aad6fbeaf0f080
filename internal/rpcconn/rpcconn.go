// Package rpcconn implements the minimal synchronous JSON-RPC transport
// shared by the directory-service and bindings-storage clients, grounded on
// the teacher's ovsdb/internal/jsonrpc package (Request/Response shape,
// Send/Receive over a single encoder/decoder pair, optional debug logging
// of the wire bytes).
package rpcconn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
)

// Request is a JSON-RPC 1.0 style request, matching what both the
// directory service and bindings-storage service speak.
type Request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Response is a JSON-RPC reply.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is a server-reported RPC failure.
type RPCError struct {
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// Logger receives raw wire bytes when debug logging is enabled.
type Logger interface {
	Debug(msg string, args ...any)
}

// Conn is a synchronous, single-outstanding-request JSON-RPC connection:
// every call in this module issues one request and waits for its matching
// response before returning, mirroring the teacher's Client.rpc. Requests
// are serialized with a mutex rather than pipelined.
type Conn struct {
	rwc    io.ReadWriteCloser
	enc    *json.Encoder
	dec    *json.Decoder
	mu     sync.Mutex
	nextID uint64
	log    Logger
}

// NewConn wraps rwc as a JSON-RPC connection. log may be nil.
func NewConn(rwc io.ReadWriteCloser, log Logger) *Conn {
	return &Conn{
		rwc: rwc,
		enc: json.NewEncoder(rwc),
		dec: json.NewDecoder(rwc),
		log: log,
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.rwc.Close() }

// Call issues method(params) and decodes the result into out. A non-nil
// RPC-level error from the server is returned as-is; ctx cancellation is
// checked before the round trip but does not interrupt an in-flight
// Encode/Decode (the underlying connection has no half-duplex deadline
// hook to cancel on, matching spec §5's "no deadlines on directory calls
// are exposed here; the directory client must complete or fail each call").
func (c *Conn) Call(ctx context.Context, method string, params any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := strconv.FormatUint(atomic.AddUint64(&c.nextID, 1), 10)
	req := Request{ID: id, Method: method, Params: params}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.log != nil {
		b, _ := json.Marshal(req)
		c.log.Debug("rpcconn: request", "body", string(b))
	}
	if err := c.enc.Encode(req); err != nil {
		return fmt.Errorf("rpcconn: encode request: %w", err)
	}

	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return fmt.Errorf("rpcconn: decode response: %w", err)
	}
	if c.log != nil {
		c.log.Debug("rpcconn: response", "id", resp.ID)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}
