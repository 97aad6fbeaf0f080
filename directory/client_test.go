package directory

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/ovsauth/authcore/internal/rpcconn"
)

func fakeDirectoryServer(t *testing.T, server net.Conn, handle func(method string, params json.RawMessage) (any, string)) {
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

func TestClientIsRouter(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	fakeDirectoryServer(t, server, func(method string, params json.RawMessage) (any, string) {
		if method != "is_router" {
			return nil, "unexpected method " + method
		}
		return true, ""
	})

	c := New(client)
	defer c.Close()

	isRouter, err := c.IsRouter(context.Background(), 0x0102030405)
	if err != nil {
		t.Fatalf("IsRouter: %v", err)
	}
	if !isRouter {
		t.Fatal("expected true")
	}
}

func TestClientDladdrGroupsAndNwaddrGroups(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	fakeDirectoryServer(t, server, func(method string, params json.RawMessage) (any, string) {
		switch method {
		case "search_dladdr_groups":
			return []string{"eng"}, ""
		case "search_nwaddr_groups":
			return []string{"eng-subnet"}, ""
		default:
			return nil, "unexpected method " + method
		}
	})

	c := New(client)
	defer c.Close()

	dlGroups, err := c.DladdrGroups(context.Background(), 0x0102030405)
	if err != nil || len(dlGroups) != 1 || dlGroups[0] != "eng" {
		t.Fatalf("DladdrGroups: %v err %v", dlGroups, err)
	}
	nwGroups, err := c.NwaddrGroups(context.Background(), 10)
	if err != nil || len(nwGroups) != 1 || nwGroups[0] != "eng-subnet" {
		t.Fatalf("NwaddrGroups: %v err %v", nwGroups, err)
	}
}

func TestClientModifyHostGroup(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var gotAdd bool
	fakeDirectoryServer(t, server, func(method string, params json.RawMessage) (any, string) {
		if method != "modify_host_group" {
			return nil, "unexpected method " + method
		}
		var args []json.RawMessage
		_ = json.Unmarshal(params, &args)
		_ = json.Unmarshal(args[2], &gotAdd)
		return nil, ""
	})

	c := New(client)
	defer c.Close()

	if err := c.ModifyHostGroup(context.Background(), "alice", "eng", true); err != nil {
		t.Fatalf("ModifyHostGroup: %v", err)
	}
	if !gotAdd {
		t.Fatal("expected add=true to reach the server")
	}
}
