// Package ofp implements the narrow OpenFlow v1 wire parser spec §6 calls
// for: an 8-byte header followed by a type-specific payload, with
// log-and-drop (never panic) on a bad version or a length that doesn't
// match the expected exact or modular size. Grounded on ovsnl's
// header/attribute decode style (ovsnl/client.go's parseHeader,
// ovsnl/flow.go's parseFlows), adapted from unsafe host-order pointer casts
// to encoding/binary.BigEndian reads because OpenFlow's wire format is
// strictly network byte order and must decode identically regardless of
// host endianness.
package ofp

import (
	"encoding/binary"
	"fmt"

	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/ofp/internal/ofph"
)

// Version is the only OpenFlow wire version this parser accepts.
const Version = 1

// Header is the common 8-byte OpenFlow message header.
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
	Xid     uint32
}

func parseHeader(b []byte) (Header, error) {
	if len(b) < ofph.SizeofHeader {
		return Header{}, fmt.Errorf("ofp: short header: %d bytes", len(b))
	}
	return Header{
		Version: b[0],
		Type:    b[1],
		Length:  binary.BigEndian.Uint16(b[2:4]),
		Xid:     binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// ErrDropped is returned, unwrapped, by Decode when a message is
// well-formed but this parser has nothing to emit for it, e.g. an
// ECHO_REPLY. Callers should treat it as "nothing to do", not an error
// to surface.
var ErrDropped = fmt.Errorf("ofp: message dropped")

// Decode parses one complete OpenFlow message (b must be exactly
// Header.Length bytes, the caller having already split it off a stream)
// and returns the type-specific payload as one of: *PacketIn,
// *PortStatus, *FeaturesReply, *FlowRemoved, *StatsReply, *EchoRequest,
// *ErrorMsg. A bad version or a length mismatch against the expected
// exact/modular size is logged at log's level and returns ErrDropped,
// never a panic.
func Decode(log authlog.Logger, b []byte) (any, error) {
	hdr, err := parseHeader(b)
	if err != nil {
		log.Error("ofp: decode failed", "err", err)
		return nil, ErrDropped
	}
	if hdr.Version != Version {
		log.Debug("ofp: dropping message with unsupported version", "version", hdr.Version, "type", hdr.Type)
		return nil, ErrDropped
	}
	if int(hdr.Length) != len(b) {
		log.Debug("ofp: dropping message with length mismatch", "header_length", hdr.Length, "actual", len(b))
		return nil, ErrDropped
	}

	body := b[ofph.SizeofHeader:]
	switch hdr.Type {
	case ofph.TypePacketIn:
		return parsePacketIn(log, hdr, body)
	case ofph.TypePortStatus:
		return parsePortStatus(log, hdr, body)
	case ofph.TypeFeaturesReply:
		return parseFeaturesReply(log, hdr, body)
	case ofph.TypeFlowRemoved:
		return parseFlowRemoved(log, hdr, body)
	case ofph.TypeStatsReply:
		return parseStatsReply(log, hdr, body)
	case ofph.TypeEchoRequest:
		return &EchoRequest{Xid: hdr.Xid, Data: append([]byte(nil), body...)}, nil
	case ofph.TypeEchoReply:
		log.Debug("ofp: dropping echo reply", "xid", hdr.Xid)
		return nil, ErrDropped
	case ofph.TypeError:
		return parseErrorMsg(log, hdr, body)
	default:
		log.Debug("ofp: dropping unhandled message type", "type", hdr.Type)
		return nil, ErrDropped
	}
}

// EchoRequest carries an ECHO_REQUEST's opaque payload. Per spec §6 the
// echo-reply itself must be synthesized by an external component; this
// parser only surfaces the request.
type EchoRequest struct {
	Xid  uint32
	Data []byte
}

// ErrorMsg is a decoded OFPT_ERROR, logged at error level by the caller.
type ErrorMsg struct {
	Type uint16
	Code uint16
	Data []byte
}

func parseErrorMsg(log authlog.Logger, hdr Header, body []byte) (*ErrorMsg, error) {
	if len(body) < ofph.SizeofErrorMsg {
		log.Debug("ofp: dropping short ERROR", "len", len(body))
		return nil, ErrDropped
	}
	em := &ErrorMsg{
		Type: binary.BigEndian.Uint16(body[0:2]),
		Code: binary.BigEndian.Uint16(body[2:4]),
		Data: append([]byte(nil), body[4:]...),
	}
	log.Error("ofp: received ERROR", "type", em.Type, "code", em.Code, "xid", hdr.Xid)
	return em, nil
}
