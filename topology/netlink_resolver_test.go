//go:build linux

package topology

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/genetlink/genltest"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

func TestNewNetlinkResolverNoFamilyIsNotExist(t *testing.T) {
	conn := genltest.Dial(func(greq genetlink.Message, nreq netlink.Message) ([]genetlink.Message, error) {
		return familyMessages([]string{"TASKSTATS", "nl80211"}), nil
	})

	_, err := newNetlinkResolver(conn, nil)
	if !os.IsNotExist(err) {
		t.Fatalf("expected is-not-exist error, got: %v", err)
	}
}

func TestNetlinkResolverIsInternal(t *testing.T) {
	const (
		vportCmdGet  = 3
		vportFamilyID = 7
		internalPort = 4
	)

	conn := genltest.Dial(func(greq genetlink.Message, nreq netlink.Message) ([]genetlink.Message, error) {
		if nreq.Header.Type == unix.GENL_ID_CTRL && greq.Header.Command == unix.CTRL_CMD_GETFAMILY {
			return familyMessages([]string{ovsVportFamily}), nil
		}
		if greq.Header.Command == vportCmdGet {
			return []genetlink.Message{
				vportMessage(t, internalPort, ovsVportTypeInternal),
				vportMessage(t, internalPort+1, 1 /* netdev */),
			}, nil
		}
		return nil, fmt.Errorf("unexpected request: %+v", nreq)
	})

	ports := map[uint16]uint32{5: internalPort, 6: internalPort + 1}
	lookup := func(dpid uint64, port uint16) (uint32, bool) {
		ifindex, ok := ports[port]
		return ifindex, ok
	}

	r, err := newNetlinkResolver(conn, lookup)
	if err != nil {
		t.Fatalf("newNetlinkResolver: %v", err)
	}
	defer r.Close()

	internal, err := r.IsInternal(context.Background(), 1, 5)
	if err != nil || !internal {
		t.Fatalf("expected port 5 internal, got %v err %v", internal, err)
	}
	internal, err = r.IsInternal(context.Background(), 1, 6)
	if err != nil || internal {
		t.Fatalf("expected port 6 non-internal, got %v err %v", internal, err)
	}
	internal, err = r.IsInternal(context.Background(), 1, 99)
	if err != nil || internal {
		t.Fatalf("expected unmapped port to default non-internal, got %v err %v", internal, err)
	}
}

func vportMessage(t *testing.T, ifindex, vportType uint32) genetlink.Message {
	t.Helper()
	data, err := netlink.MarshalAttributes([]netlink.Attribute{
		{Type: ovsVportAttrType, Data: nlenc.Uint32Bytes(vportType)},
		{Type: ovsVportAttrIfindex, Data: nlenc.Uint32Bytes(ifindex)},
	})
	if err != nil {
		t.Fatalf("marshal vport attributes: %v", err)
	}
	return genetlink.Message{Data: data}
}

func familyMessages(families []string) []genetlink.Message {
	msgs := make([]genetlink.Message, 0, len(families))
	var id uint16
	for _, f := range families {
		data, err := netlink.MarshalAttributes([]netlink.Attribute{
			{Type: unix.CTRL_ATTR_FAMILY_ID, Data: nlenc.Uint16Bytes(id)},
			{Type: unix.CTRL_ATTR_FAMILY_NAME, Data: nlenc.Bytes(f)},
		})
		if err != nil {
			panic(fmt.Sprintf("marshal family attributes: %v", err))
		}
		msgs = append(msgs, genetlink.Message{Data: data})
		id++
	}
	return msgs
}
