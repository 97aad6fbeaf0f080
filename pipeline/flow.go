// Package pipeline implements spec §4.3's packet-in pipeline: flow
// extraction, LLDP/broadcast/multicast triage, and unicast source/
// destination resolution against the host/location store. Grounded on
// ofp's binary.BigEndian decoding style and hoststate's store API.
package pipeline

import "encoding/binary"

// EtherType values the pipeline inspects directly.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeVLAN uint16 = 0x8100
	EtherTypeLLDP uint16 = 0x88cc
)

// IP protocol numbers the pipeline inspects for transport ports.
const (
	ipProtoTCP = 6
	ipProtoUDP = 17
)

// Flow is the subset of a packet-in's headers spec §4.3 step 1 extracts.
type Flow struct {
	InPort    uint16
	DLSrc     uint64
	DLDst     uint64
	VLAN      uint16 // 0 = untagged
	EtherType uint16
	NWSrc     uint32
	NWDst     uint32
	NWProto   uint8
	TPSrc     uint16
	TPDst     uint16
}

// ParseFlow extracts a Flow from a raw Ethernet frame, per spec §4.3 step
// 1. Truncated or malformed packets yield a zero-value Flow for the
// fields that couldn't be parsed rather than an error — a short or
// corrupt packet is normal network noise, not an invariant violation.
func ParseFlow(inPort uint16, raw []byte) Flow {
	f := Flow{InPort: inPort}
	if len(raw) < 14 {
		return f
	}
	f.DLDst = macToUint64(raw[0:6])
	f.DLSrc = macToUint64(raw[6:12])

	off := 12
	ethertype := binary.BigEndian.Uint16(raw[off : off+2])
	off += 2
	if ethertype == EtherTypeVLAN && len(raw) >= off+4 {
		f.VLAN = binary.BigEndian.Uint16(raw[off:off+2]) & 0x0fff
		off += 2
		ethertype = binary.BigEndian.Uint16(raw[off : off+2])
		off += 2
	}
	f.EtherType = ethertype

	if ethertype != EtherTypeIPv4 || len(raw) < off+20 {
		return f
	}
	ip := raw[off:]
	ihl := int(ip[0]&0x0f) * 4
	f.NWProto = ip[9]
	f.NWSrc = binary.BigEndian.Uint32(ip[12:16])
	f.NWDst = binary.BigEndian.Uint32(ip[16:20])

	if (f.NWProto != ipProtoTCP && f.NWProto != ipProtoUDP) || len(ip) < ihl+4 {
		return f
	}
	tp := ip[ihl:]
	f.TPSrc = binary.BigEndian.Uint16(tp[0:2])
	f.TPDst = binary.BigEndian.Uint16(tp[2:4])
	return f
}

func macToUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// IsLLDP reports whether f should be skipped per spec §4.3 step 2.
func (f Flow) IsLLDP() bool { return f.EtherType == EtherTypeLLDP }

// IsBroadcastOrMulticast reports whether f.DLDst is the broadcast address
// or has the multicast bit set, per spec §4.3 step 3.
func (f Flow) IsBroadcastOrMulticast() bool {
	if f.DLDst == 0xffffffffffff {
		return true
	}
	return f.DLDst&(1<<40) != 0 // low-order bit of the first octet
}

// IsDHCPDiscoverLike reports whether f is an IPv4 packet with nw_src == 0,
// spec §4.3 step 3's trigger for purging stale nwaddr bindings on a MAC
// requesting a fresh lease.
func (f Flow) IsDHCPDiscoverLike() bool {
	return f.EtherType == EtherTypeIPv4 && f.NWSrc == 0
}
