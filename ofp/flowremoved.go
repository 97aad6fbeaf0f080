package ofp

import (
	"encoding/binary"

	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/ofp/internal/ofph"
)

// Match is a decoded ofp_match: the wildcard-qualified flow selector
// carried by FLOW_REMOVED and STATS_REPLY/FLOW entries.
type Match struct {
	Wildcards uint32
	InPort    uint16
	DLSrc     [6]byte
	DLDst     [6]byte
	DLVlan    uint16
	DLType    uint16
	NWSrc     uint32
	NWDst     uint32
	TPSrc     uint16
	TPDst     uint16
}

func parseMatch(b []byte) Match {
	var m Match
	m.Wildcards = binary.BigEndian.Uint32(b[0:4])
	m.InPort = binary.BigEndian.Uint16(b[4:6])
	copy(m.DLSrc[:], b[6:12])
	copy(m.DLDst[:], b[12:18])
	m.DLVlan = binary.BigEndian.Uint16(b[18:20])
	m.DLType = binary.BigEndian.Uint16(b[22:24])
	m.NWSrc = binary.BigEndian.Uint32(b[28:32])
	m.NWDst = binary.BigEndian.Uint32(b[32:36])
	m.TPSrc = binary.BigEndian.Uint16(b[36:38])
	m.TPDst = binary.BigEndian.Uint16(b[38:40])
	return m
}

// FlowRemoved is a decoded OFPT_FLOW_REMOVED.
type FlowRemoved struct {
	Xid         uint32
	Match       Match
	Cookie      uint64
	Priority    uint16
	Reason      uint8
	DurationSec uint32
	IdleTimeout uint16
	PacketCount uint64
	ByteCount   uint64
}

func parseFlowRemoved(log authlog.Logger, hdr Header, body []byte) (*FlowRemoved, error) {
	if len(body) != ofph.SizeofFlowRemoved {
		log.Debug("ofp: dropping malformed FLOW_REMOVED", "len", len(body), "want", ofph.SizeofFlowRemoved)
		return nil, ErrDropped
	}
	m := parseMatch(body[:ofph.SizeofMatch])
	rest := body[ofph.SizeofMatch:]
	return &FlowRemoved{
		Xid:         hdr.Xid,
		Match:       m,
		Cookie:      binary.BigEndian.Uint64(rest[0:8]),
		Priority:    binary.BigEndian.Uint16(rest[8:10]),
		Reason:      rest[10],
		DurationSec: binary.BigEndian.Uint32(rest[12:16]),
		IdleTimeout: binary.BigEndian.Uint16(rest[20:22]),
		PacketCount: binary.BigEndian.Uint64(rest[24:32]),
		ByteCount:   binary.BigEndian.Uint64(rest[32:40]),
	}, nil
}
