package ofp

import (
	"encoding/binary"

	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/ofp/internal/ofph"
)

// FeaturesReply is a decoded OFPT_FEATURES_REPLY. Ports count is derived
// from (header length - fixed portion) / sizeof(phy_port), per spec §6.
type FeaturesReply struct {
	Xid          uint32
	Dpid         uint64
	NBuffers     uint32
	NTables      uint8
	Capabilities uint32
	Actions      uint32
	Ports        []PhyPort
}

func parseFeaturesReply(log authlog.Logger, hdr Header, body []byte) (*FeaturesReply, error) {
	if len(body) < ofph.SizeofFeaturesReplyFixed {
		log.Debug("ofp: dropping short FEATURES_REPLY", "len", len(body))
		return nil, ErrDropped
	}
	rest := body[ofph.SizeofFeaturesReplyFixed:]
	if len(rest)%ofph.SizeofPhyPort != 0 {
		log.Debug("ofp: dropping FEATURES_REPLY with non-modular port list", "trailing", len(rest))
		return nil, ErrDropped
	}

	fr := &FeaturesReply{
		Xid:          hdr.Xid,
		Dpid:         binary.BigEndian.Uint64(body[0:8]),
		NBuffers:     binary.BigEndian.Uint32(body[8:12]),
		NTables:      body[12],
		Capabilities: binary.BigEndian.Uint32(body[16:20]),
		Actions:      binary.BigEndian.Uint32(body[20:24]),
	}
	n := len(rest) / ofph.SizeofPhyPort
	fr.Ports = make([]PhyPort, n)
	for i := 0; i < n; i++ {
		fr.Ports[i] = parsePhyPort(rest[i*ofph.SizeofPhyPort : (i+1)*ofph.SizeofPhyPort])
	}
	return fr, nil
}
