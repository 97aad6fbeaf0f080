// Package bindings implements the authenticator's bindings-storage client:
// the external service of record for host/user join and leave, per spec
// §6. Structurally identical to the directory client (a JSON-RPC transport
// grounded on the teacher's ovsdb.Client), kept as a separate package
// because it is a distinct external collaborator with its own contract.
package bindings

import (
	"context"
	"net"

	"github.com/ovsauth/authcore/internal/rpcconn"
)

// Storage is everything the authenticator asks bindings-storage to persist,
// per spec §6. A Client satisfies it over JSON-RPC; tests use a fake.
type Storage interface {
	StoreBindingState(ctx context.Context, dpid uint64, port uint16, dladdr uint64, nwaddr uint32, hostname string) error
	RemoveBindingState(ctx context.Context, dpid uint64, port uint16, dladdr uint64, nwaddr uint32) error
	RemoveMachine(ctx context.Context, dpid uint64, port uint16, dladdr uint64) error
	AddNameForLocation(ctx context.Context, dpid uint64, port uint16, name string) error
	RemoveNameForLocation(ctx context.Context, dpid uint64, port uint16, name string) error
}

// Client is a JSON-RPC bindings-storage client.
type Client struct {
	conn *rpcconn.Conn
}

// Option configures a Client at construction time.
type Option func(*clientConfig)

type clientConfig struct {
	log rpcconn.Logger
}

// WithDebugLog enables wire-level debug logging.
func WithDebugLog(l rpcconn.Logger) Option {
	return func(c *clientConfig) { c.log = l }
}

// Dial connects to a bindings-storage service listening on network/addr.
func Dial(network, addr string, opts ...Option) (*Client, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

// New wraps an existing connection as a bindings-storage Client.
func New(conn net.Conn, opts ...Option) *Client {
	cfg := clientConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	return &Client{conn: rpcconn.NewConn(conn, cfg.log)}
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

var _ Storage = (*Client)(nil)

func (c *Client) StoreBindingState(ctx context.Context, dpid uint64, port uint16, dladdr uint64, nwaddr uint32, hostname string) error {
	return c.conn.Call(ctx, "store_binding_state", []any{dpid, port, dladdr, nwaddr, hostname}, nil)
}

func (c *Client) RemoveBindingState(ctx context.Context, dpid uint64, port uint16, dladdr uint64, nwaddr uint32) error {
	return c.conn.Call(ctx, "remove_binding_state", []any{dpid, port, dladdr, nwaddr}, nil)
}

func (c *Client) RemoveMachine(ctx context.Context, dpid uint64, port uint16, dladdr uint64) error {
	return c.conn.Call(ctx, "remove_machine", []any{dpid, port, dladdr}, nil)
}

func (c *Client) AddNameForLocation(ctx context.Context, dpid uint64, port uint16, name string) error {
	return c.conn.Call(ctx, "add_name_for_location", []any{dpid, port, name}, nil)
}

func (c *Client) RemoveNameForLocation(ctx context.Context, dpid uint64, port uint16, name string) error {
	return c.conn.Call(ctx, "remove_name_for_location", []any{dpid, port, name}, nil)
}
