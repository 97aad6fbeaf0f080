// Package ofph holds the wire-layout constants and sizes for the narrow
// slice of OpenFlow v1 this authenticator understands, mirroring the way
// ovsnl/internal/ovsh holds the generated Linux netlink/OVS header
// constants one layer below the client API.
package ofph

// Header sizes, in bytes, of the fixed-width wire structures this package
// decodes. Each is the exact byte count of its wire struct, counting the
// explicit pad fields OpenFlow v1 defines in it.
const (
	SizeofHeader        = 8
	SizeofPacketIn       = 4 + 2 + 2 + 1 + 1 // buffer_id, total_len, in_port, reason, pad
	SizeofPortStatus     = 1 + 7 + SizeofPhyPort // reason, pad[7], desc
	SizeofPhyPort        = 48
	SizeofFeaturesReplyFixed = 8 + 4 + 1 + 3 + 4 + 4 // dpid, n_buffers, n_tables, pad[3], capabilities, actions
	SizeofMatch          = 40
	SizeofFlowRemoved    = SizeofMatch + 8 + 2 + 1 + 1 + 4 + 4 + 2 + 2 + 8 + 8
	SizeofStatsReply     = 2 + 2 // type, flags
	SizeofDescStats      = 256 + 256 + 256 + 32 + 256 // mfr, hw, sw, serial_num, dp_desc
	SizeofFlowStatsEntry = 2 + 1 + 1 + SizeofMatch + 4 + 4 + 2 + 2 + 2 + 6 + 8 + 8 + 8 // fixed prefix; actions follow
	SizeofAggregateStats = 16 + 4 + 4
	SizeofTableStats     = 64
	SizeofPortStatsEntry = 104
	SizeofErrorMsg       = 2 + 2
)

// Message types, per the OFPT_* enum this authenticator cares about.
const (
	TypeHello          = 0
	TypeError          = 1
	TypeEchoRequest    = 2
	TypeEchoReply      = 3
	TypeFeaturesReply  = 6
	TypePacketIn       = 10
	TypeFlowRemoved    = 11
	TypePortStatus     = 12
	TypePacketOut      = 13
	TypeFlowMod        = 14
	TypeStatsRequest   = 16
	TypeStatsReply     = 17
)

// PACKET_IN reasons, per OFPR_*.
const (
	ReasonNoMatch = 0
	ReasonAction  = 1
)

// PORT_STATUS reasons, per OFPPR_*.
const (
	PortReasonAdd    = 0
	PortReasonDelete = 1
	PortReasonModify = 2
)

// FLOW_MOD commands, per OFPFC_*.
const (
	FlowModAdd           = 0
	FlowModModify        = 1
	FlowModModifyStrict  = 2
	FlowModDelete        = 3
	FlowModDeleteStrict  = 4
)

// Flow wildcards (OFPFW_*): a bit clear means the field must match exactly.
// nw_src/nw_dst use a 6-bit CIDR prefix-length mask rather than a single
// bit: 0 means match the full 32 bits, 32+ means fully wildcarded.
const (
	WildcardDLDst    = 1 << 2
	WildcardDLSrc    = 1 << 3
	WildcardNWSrcShift = 8
	WildcardNWDstShift = 14
	WildcardNWMask     = 0x3f
	WildcardAll        = (1 << 22) - 1
)

// Sentinel field values used when building a flow-mod for poisoning.
const (
	NoBuffer         = 0xffffffff
	PriorityDefault  = 0x8000
	PortNone         = 0xffff
	PermanentTimeout = 0
)

// STATS_REPLY body subtypes, per OFPST_*.
const (
	StatsDesc      = 0
	StatsFlow      = 1
	StatsAggregate = 2
	StatsTable     = 3
	StatsPort      = 4
)
