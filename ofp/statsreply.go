package ofp

import (
	"encoding/binary"
	"errors"

	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/ofp/internal/ofph"
)

// FlowStatsEntry is one entry of an OFPST_FLOW reply's body.
type FlowStatsEntry struct {
	TableID     uint8
	Match       Match
	DurationSec uint32
	Priority    uint16
	IdleTimeout uint16
	HardTimeout uint16
	Cookie      uint64
	PacketCount uint64
	ByteCount   uint64
}

// TableStats is one entry of an OFPST_TABLE reply's body.
type TableStats struct {
	TableID     uint8
	Name        string
	Wildcards   uint32
	MaxEntries  uint32
	ActiveCount uint32
	LookupCount uint64
	MatchCount  uint64
}

// PortStatsEntry is one entry of an OFPST_PORT reply's body.
type PortStatsEntry struct {
	PortNo     uint16
	RxPackets  uint64
	TxPackets  uint64
	RxBytes    uint64
	TxBytes    uint64
	RxDropped  uint64
	TxDropped  uint64
}

// AggregateStats is the fixed body of an OFPST_AGGREGATE reply.
type AggregateStats struct {
	PacketCount uint64
	ByteCount   uint64
	FlowCount   uint32
}

// StatsReply is a decoded OFPT_STATS_REPLY. Exactly one of the Desc/Flow/
// Aggregate/Table/Port fields is populated, per StatsType.
type StatsReply struct {
	Xid       uint32
	StatsType uint16
	Flags     uint16

	Desc      string
	Flow      []FlowStatsEntry
	Aggregate *AggregateStats
	Table     []TableStats
	Port      []PortStatsEntry
}

func parseStatsReply(log authlog.Logger, hdr Header, body []byte) (*StatsReply, error) {
	if len(body) < ofph.SizeofStatsReply {
		log.Debug("ofp: dropping short STATS_REPLY", "len", len(body))
		return nil, ErrDropped
	}
	sr := &StatsReply{
		Xid:       hdr.Xid,
		StatsType: binary.BigEndian.Uint16(body[0:2]),
		Flags:     binary.BigEndian.Uint16(body[2:4]),
	}
	payload := body[ofph.SizeofStatsReply:]

	switch sr.StatsType {
	case ofph.StatsDesc:
		if len(payload) != ofph.SizeofDescStats {
			log.Debug("ofp: dropping malformed DESC stats", "len", len(payload))
			return nil, ErrDropped
		}
		sr.Desc = cString(payload[800:1056]) // dp_desc field (after mfr/hw/sw desc and serial_num)

	case ofph.StatsFlow:
		entries, err := parseFlowStatsEntries(payload)
		if err != nil {
			log.Debug("ofp: dropping malformed FLOW stats", "err", err)
			return nil, ErrDropped
		}
		sr.Flow = entries

	case ofph.StatsAggregate:
		if len(payload) != ofph.SizeofAggregateStats {
			log.Debug("ofp: dropping malformed AGGREGATE stats", "len", len(payload))
			return nil, ErrDropped
		}
		sr.Aggregate = &AggregateStats{
			PacketCount: binary.BigEndian.Uint64(payload[0:8]),
			ByteCount:   binary.BigEndian.Uint64(payload[8:16]),
			FlowCount:   binary.BigEndian.Uint32(payload[16:20]),
		}

	case ofph.StatsTable:
		if len(payload)%ofph.SizeofTableStats != 0 {
			log.Debug("ofp: dropping non-modular TABLE stats", "len", len(payload))
			return nil, ErrDropped
		}
		n := len(payload) / ofph.SizeofTableStats
		sr.Table = make([]TableStats, n)
		for i := 0; i < n; i++ {
			sr.Table[i] = parseTableStats(payload[i*ofph.SizeofTableStats : (i+1)*ofph.SizeofTableStats])
		}

	case ofph.StatsPort:
		if len(payload)%ofph.SizeofPortStatsEntry != 0 {
			log.Debug("ofp: dropping non-modular PORT stats", "len", len(payload))
			return nil, ErrDropped
		}
		n := len(payload) / ofph.SizeofPortStatsEntry
		sr.Port = make([]PortStatsEntry, n)
		for i := 0; i < n; i++ {
			sr.Port[i] = parsePortStatsEntry(payload[i*ofph.SizeofPortStatsEntry : (i+1)*ofph.SizeofPortStatsEntry])
		}

	default:
		log.Debug("ofp: dropping STATS_REPLY with unhandled subtype", "type", sr.StatsType)
		return nil, ErrDropped
	}

	return sr, nil
}

func cString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func parseFlowStatsEntries(payload []byte) ([]FlowStatsEntry, error) {
	var out []FlowStatsEntry
	for len(payload) > 0 {
		if len(payload) < 2 {
			return nil, errShortFlowStats
		}
		length := int(binary.BigEndian.Uint16(payload[0:2]))
		if length < ofph.SizeofFlowStatsEntry || length > len(payload) {
			return nil, errShortFlowStats
		}
		e := payload[:length]
		m := parseMatch(e[4:4+ofph.SizeofMatch])
		rest := e[4+ofph.SizeofMatch:]
		out = append(out, FlowStatsEntry{
			TableID:     e[2],
			Match:       m,
			DurationSec: binary.BigEndian.Uint32(rest[0:4]),
			Priority:    binary.BigEndian.Uint16(rest[8:10]),
			IdleTimeout: binary.BigEndian.Uint16(rest[10:12]),
			HardTimeout: binary.BigEndian.Uint16(rest[12:14]),
			Cookie:      binary.BigEndian.Uint64(rest[20:28]),
			PacketCount: binary.BigEndian.Uint64(rest[28:36]),
			ByteCount:   binary.BigEndian.Uint64(rest[36:44]),
		})
		payload = payload[length:]
	}
	return out, nil
}

var errShortFlowStats = errors.New("ofp: truncated flow stats entry")

func parseTableStats(b []byte) TableStats {
	return TableStats{
		TableID:     b[0],
		Name:        cString(b[4:36]),
		Wildcards:   binary.BigEndian.Uint32(b[36:40]),
		MaxEntries:  binary.BigEndian.Uint32(b[40:44]),
		ActiveCount: binary.BigEndian.Uint32(b[44:48]),
		LookupCount: binary.BigEndian.Uint64(b[48:56]),
		MatchCount:  binary.BigEndian.Uint64(b[56:64]),
	}
}

func parsePortStatsEntry(b []byte) PortStatsEntry {
	return PortStatsEntry{
		PortNo:    binary.BigEndian.Uint16(b[0:2]),
		RxPackets: binary.BigEndian.Uint64(b[8:16]),
		TxPackets: binary.BigEndian.Uint64(b[16:24]),
		RxBytes:   binary.BigEndian.Uint64(b[24:32]),
		TxBytes:   binary.BigEndian.Uint64(b[32:40]),
		RxDropped: binary.BigEndian.Uint64(b[40:48]),
		TxDropped: binary.BigEndian.Uint64(b[48:56]),
	}
}
