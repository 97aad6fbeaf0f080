package bindings

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/ovsauth/authcore/internal/rpcconn"
)

func fakeBindingsServer(t *testing.T, server net.Conn, handle func(method string, params json.RawMessage) (any, string)) {
	t.Helper()
	go func() {
		dec := json.NewDecoder(server)
		enc := json.NewEncoder(server)
		for {
			var req struct {
				ID     string          `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if err := dec.Decode(&req); err != nil {
				return
			}
			result, errMsg := handle(req.Method, req.Params)
			resp := rpcconn.Response{ID: req.ID}
			if errMsg != "" {
				resp.Error = &rpcconn.RPCError{Message: errMsg}
			} else if result != nil {
				b, _ := json.Marshal(result)
				resp.Result = b
			}
			if err := enc.Encode(resp); err != nil {
				return
			}
		}
	}()
}

func TestClientStoreAndRemoveBindingState(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var calls []string
	fakeBindingsServer(t, server, func(method string, params json.RawMessage) (any, string) {
		calls = append(calls, method)
		return nil, ""
	})

	c := New(client)
	defer c.Close()

	if err := c.StoreBindingState(context.Background(), 1, 5, 0x0102030405, 10, "alice"); err != nil {
		t.Fatalf("StoreBindingState: %v", err)
	}
	if err := c.RemoveBindingState(context.Background(), 1, 5, 0x0102030405, 10); err != nil {
		t.Fatalf("RemoveBindingState: %v", err)
	}
	if len(calls) != 2 || calls[0] != "store_binding_state" || calls[1] != "remove_binding_state" {
		t.Fatalf("unexpected call sequence: %v", calls)
	}
}

func TestClientRemoveMachineSurfacesServerError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	fakeBindingsServer(t, server, func(method string, params json.RawMessage) (any, string) {
		return nil, "unknown machine"
	})

	c := New(client)
	defer c.Close()

	err := c.RemoveMachine(context.Background(), 1, 5, 0x0102030405)
	if err == nil || err.Error() != "unknown machine" {
		t.Fatalf("expected server error, got %v", err)
	}
}
