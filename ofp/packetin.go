package ofp

import (
	"encoding/binary"

	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/ofp/internal/ofph"
)

// PacketIn is a decoded OFPT_PACKET_IN, per spec §6's table. Data is
// pulled (retained) before the event is emitted upstream, since the
// underlying buffer is only valid for the duration of the read.
type PacketIn struct {
	Xid      uint32
	BufferID uint32
	TotalLen uint16
	InPort   uint16
	Reason   uint8
	Data     []byte
}

func parsePacketIn(log authlog.Logger, hdr Header, body []byte) (*PacketIn, error) {
	if len(body) < ofph.SizeofPacketIn {
		log.Debug("ofp: dropping short PACKET_IN", "len", len(body))
		return nil, ErrDropped
	}
	pi := &PacketIn{
		Xid:      hdr.Xid,
		BufferID: binary.BigEndian.Uint32(body[0:4]),
		TotalLen: binary.BigEndian.Uint16(body[4:6]),
		InPort:   binary.BigEndian.Uint16(body[6:8]),
		Reason:   body[8],
		Data:     append([]byte(nil), body[ofph.SizeofPacketIn:]...),
	}
	return pi, nil
}
