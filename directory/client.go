package directory

import (
	"context"
	"net"

	"github.com/ovsauth/authcore/internal/rpcconn"
)

// Client is a JSON-RPC directory-service client, grounded on the teacher's
// ovsdb.Client (Dial/New/Option pattern over a net.Conn). Every directory
// RPC failure is surfaced as a Go error; per spec §7 the caller (the
// pipeline or a reaction handler) is responsible for collapsing that into
// an empty/negative result rather than failing the operation.
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

// Dial connects to a directory service listening on network/addr.
func Dial(network, addr string, opts ...Option) (*Client, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

// New wraps an existing connection as a directory-service Client.
func New(conn net.Conn, opts ...Option) *Client {
	cfg := clientConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	return &Client{conn: rpcconn.NewConn(conn, cfg.log)}
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

var _ Service = (*Client)(nil)

func (c *Client) IsRouter(ctx context.Context, dladdr uint64) (bool, error) {
	var out bool
	err := c.conn.Call(ctx, "is_router", []any{dladdr}, &out)
	return out, err
}

func (c *Client) IsGateway(ctx context.Context, dladdr uint64) (bool, error) {
	var out bool
	err := c.conn.Call(ctx, "is_gateway", []any{dladdr}, &out)
	return out, err
}

func (c *Client) SwitchGroups(ctx context.Context, dpid uint64) ([]string, error) {
	var out []string
	err := c.conn.Call(ctx, "search_switch_groups", []any{dpid}, &out)
	return out, err
}

func (c *Client) LocationGroups(ctx context.Context, dpid uint64, port uint16) ([]string, error) {
	var out []string
	err := c.conn.Call(ctx, "search_location_groups", []any{dpid, port}, &out)
	return out, err
}

func (c *Client) HostGroups(ctx context.Context, hostname string) ([]string, error) {
	var out []string
	err := c.conn.Call(ctx, "search_host_groups", []any{hostname}, &out)
	return out, err
}

func (c *Client) UserGroups(ctx context.Context, username string) ([]string, error) {
	var out []string
	err := c.conn.Call(ctx, "search_user_groups", []any{username}, &out)
	return out, err
}

func (c *Client) DladdrGroups(ctx context.Context, dladdr uint64) ([]string, error) {
	var out []string
	err := c.conn.Call(ctx, "search_dladdr_groups", []any{dladdr}, &out)
	return out, err
}

func (c *Client) NwaddrGroups(ctx context.Context, nwaddr uint32) ([]string, error) {
	var out []string
	err := c.conn.Call(ctx, "search_nwaddr_groups", []any{nwaddr}, &out)
	return out, err
}

func (c *Client) DiscoveredSwitchName(ctx context.Context, dpid uint64) (string, error) {
	var out string
	err := c.conn.Call(ctx, "get_discovered_switch_name", []any{dpid}, &out)
	return out, err
}

func (c *Client) DiscoveredLocationName(ctx context.Context, dpid uint64, port uint16) (string, error) {
	var out string
	err := c.conn.Call(ctx, "get_discovered_location_name", []any{dpid, port}, &out)
	return out, err
}

func (c *Client) DiscoveredHostName(ctx context.Context, dladdr uint64) (string, error) {
	var out string
	err := c.conn.Call(ctx, "get_discovered_host_name", []any{dladdr}, &out)
	return out, err
}

func (c *Client) ModifyHostGroup(ctx context.Context, hostname, group string, add bool) error {
	return c.conn.Call(ctx, "modify_host_group", []any{hostname, group, add}, nil)
}
