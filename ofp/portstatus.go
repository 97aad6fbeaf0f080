package ofp

import (
	"encoding/binary"

	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/ofp/internal/ofph"
)

// PhyPort describes one switch port, as carried in PORT_STATUS and
// FEATURES_REPLY.
type PhyPort struct {
	PortNo uint16
	HWAddr [6]byte
	Name   string
	Config uint32
	State  uint32
}

func parsePhyPort(b []byte) PhyPort {
	name := b[8:24]
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	var hw [6]byte
	copy(hw[:], b[2:8])
	return PhyPort{
		PortNo: binary.BigEndian.Uint16(b[0:2]),
		HWAddr: hw,
		Name:   string(name[:n]),
		Config: binary.BigEndian.Uint32(b[24:28]),
		State:  binary.BigEndian.Uint32(b[28:32]),
	}
}

// PortStatus is a decoded OFPT_PORT_STATUS.
type PortStatus struct {
	Xid    uint32
	Reason uint8
	Desc   PhyPort
}

func parsePortStatus(log authlog.Logger, hdr Header, body []byte) (*PortStatus, error) {
	if len(body) != ofph.SizeofPortStatus {
		log.Debug("ofp: dropping malformed PORT_STATUS", "len", len(body), "want", ofph.SizeofPortStatus)
		return nil, ErrDropped
	}
	return &PortStatus{
		Xid:    hdr.Xid,
		Reason: body[0],
		Desc:   parsePhyPort(body[8:]),
	}, nil
}
