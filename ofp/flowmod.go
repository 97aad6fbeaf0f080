package ofp

import (
	"encoding/binary"

	"github.com/ovsauth/authcore/ofp/internal/ofph"
)

// FlowModDelete describes the one flow-mod shape this authenticator ever
// emits: a DELETE command flushing stale rules for a poisoned connector,
// per spec §4.6. Wildcards is pre-cleared of exactly the fields the
// caller wants to match exactly (DLDst xor DLSrc, optionally narrowed to
// a specific nw_src/nw_dst).
type FlowModDelete struct {
	Xid       uint32
	Wildcards uint32
	InPort    uint16
	DLSrc     [6]byte
	DLDst     [6]byte
	NWSrc     uint32
	NWDst     uint32
}

// Encode renders d as a complete wire-ready OFPT_FLOW_MOD message: header,
// 40-byte match, and the fixed flow-mod fields, with no actions (an empty
// action list — appropriate for DELETE, which ignores actions).
func (d FlowModDelete) Encode() []byte {
	const bodyLen = ofph.SizeofMatch + 8 + 2 + 2 + 2 + 2 + 4 + 2 + 2
	buf := make([]byte, ofph.SizeofHeader+bodyLen)

	buf[0] = Version
	buf[1] = ofph.TypeFlowMod
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)))
	binary.BigEndian.PutUint32(buf[4:8], d.Xid)

	m := buf[ofph.SizeofHeader:]
	binary.BigEndian.PutUint32(m[0:4], d.Wildcards)
	binary.BigEndian.PutUint16(m[4:6], d.InPort)
	copy(m[6:12], d.DLSrc[:])
	copy(m[12:18], d.DLDst[:])
	binary.BigEndian.PutUint16(m[18:20], 0) // dl_vlan: wildcarded
	binary.BigEndian.PutUint16(m[22:24], 0) // dl_type: wildcarded
	binary.BigEndian.PutUint32(m[28:32], d.NWSrc)
	binary.BigEndian.PutUint32(m[32:36], d.NWDst)

	rest := m[ofph.SizeofMatch:]
	binary.BigEndian.PutUint64(rest[0:8], 0) // cookie: unused for poisoning
	binary.BigEndian.PutUint16(rest[8:10], ofph.FlowModDelete)
	binary.BigEndian.PutUint16(rest[10:12], ofph.PermanentTimeout) // idle_timeout
	binary.BigEndian.PutUint16(rest[12:14], ofph.PermanentTimeout) // hard_timeout
	binary.BigEndian.PutUint16(rest[14:16], ofph.PriorityDefault)
	binary.BigEndian.PutUint32(rest[16:20], ofph.NoBuffer)
	binary.BigEndian.PutUint16(rest[20:22], ofph.PortNone) // out_port
	binary.BigEndian.PutUint16(rest[22:24], 0)              // flags

	return buf
}
