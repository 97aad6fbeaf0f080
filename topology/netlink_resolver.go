package topology

import (
	"context"
	"fmt"
	"os"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
)

// ovsVportFamily is the generic netlink family name the kernel's Open
// vSwitch datapath module registers, mirrored from ovsnl/internal/ovsh's
// VportFamily constant.
const ovsVportFamily = "ovs_vport"

// ovsVportAttrPortNo/Type/Ifindex mirror ovsnl/internal/ovsh's
// VportAttr* enum; duplicated narrowly here rather than importing the
// teacher's internal package, since this module's vport use is read-only
// attribute scraping, not full vport CRUD.
const (
	ovsVportAttrPortNo  = 1
	ovsVportAttrType    = 2
	ovsVportAttrIfindex = 8
)

// ovsVportTypeInternal mirrors ovsnl/internal/ovsh.VportTypeInternal. A
// "patch" vport type does not exist in the kernel datapath netlink family
// this resolver queries — patch ports are an ofproto-level (userspace)
// construct, not a kernel vport type — so internal-port detection here
// checks only VportTypeInternal.
const ovsVportTypeInternal = 2

// PortIfindexFunc bridges an OpenFlow (dpid, port) pair to the kernel
// network-interface index backing it. Supplying this mapping is the
// colocated vswitch's/topology module's job (spec.md §1's "out of scope"
// topology/routing collaborator); NetlinkResolver only consumes it.
type PortIfindexFunc func(dpid uint64, port uint16) (ifindex uint32, ok bool)

// NetlinkResolver answers IsInternal by querying the local kernel
// datapath's vport list over generic netlink, grounded on ovsnl.Client's
// genetlink.Dial + family lookup + attribute scrape pattern.
type NetlinkResolver struct {
	conn        *genetlink.Conn
	family      genetlink.Family
	portIfindex PortIfindexFunc
}

// DialNetlinkResolver dials the local generic-netlink socket and resolves
// the ovs_vport family. Returns an error satisfying os.IsNotExist if the
// kernel OVS datapath module isn't loaded, matching ovsnl.New's contract.
func DialNetlinkResolver(portIfindex PortIfindexFunc) (*NetlinkResolver, error) {
	conn, err := genetlink.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("topology: dial genetlink: %w", err)
	}
	return newNetlinkResolver(conn, portIfindex)
}

// newNetlinkResolver resolves the ovs_vport family over an already-dialed
// connection; split out from DialNetlinkResolver so tests can drive it with
// github.com/mdlayher/genetlink/genltest instead of a real kernel socket.
func newNetlinkResolver(conn *genetlink.Conn, portIfindex PortIfindexFunc) (*NetlinkResolver, error) {
	families, err := conn.ListFamilies()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("topology: list genetlink families: %w", err)
	}
	for _, family := range families {
		if family.Name == ovsVportFamily {
			return &NetlinkResolver{conn: conn, family: family, portIfindex: portIfindex}, nil
		}
	}
	conn.Close()
	return nil, os.ErrNotExist
}

// Close releases the underlying netlink socket.
func (r *NetlinkResolver) Close() error {
	return r.conn.Close()
}

// IsInternal reports whether the vport behind (dpid, port) has kernel
// vport type "internal".
func (r *NetlinkResolver) IsInternal(ctx context.Context, dpid uint64, port uint16) (bool, error) {
	ifindex, ok := r.portIfindex(dpid, port)
	if !ok {
		return false, nil
	}

	req := genetlink.Message{
		Header: genetlink.Header{
			Command: 3, // OVS_VPORT_CMD_GET
			Version: uint8(r.family.Version),
		},
	}
	flags := netlink.HeaderFlagsRequest | netlink.HeaderFlagsDump
	msgs, err := r.conn.Execute(req, r.family.ID, flags)
	if err != nil {
		return false, fmt.Errorf("topology: list vports: %w", err)
	}

	for _, m := range msgs {
		attrs, err := netlink.UnmarshalAttributes(m.Data)
		if err != nil {
			continue
		}
		var typ uint32
		var gotIfindex uint32
		var hasIfindex bool
		for _, a := range attrs {
			switch a.Type {
			case ovsVportAttrType:
				typ = nlenc.Uint32(a.Data)
			case ovsVportAttrIfindex:
				gotIfindex = nlenc.Uint32(a.Data)
				hasIfindex = true
			}
		}
		if hasIfindex && gotIfindex == ifindex {
			return typ == ovsVportTypeInternal, nil
		}
	}
	return false, nil
}

