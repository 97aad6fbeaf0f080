// Package poison builds and sends the flow-mod DELETE pair spec §4.6
// requires whenever a connector stops being primary or leaves: one
// message wildcarding everything except dl_dst, one wildcarding
// everything except dl_src, optionally narrowed to the connector's
// nwaddr. Grounded on the teacher's ovs.Client.OpenFlow command-sending
// shape (one method per outbound action, errors classified by type
// rather than string-matched).
package poison

import (
	"context"
	"errors"

	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/hoststate"
	"github.com/ovsauth/authcore/ofp"
	"github.com/ovsauth/authcore/ofp/internal/ofph"
)

// Transport sends a raw OpenFlow message to the switch identified by
// dpid, per SPEC_FULL.md §6A. A real controller supplies this; wire
// transport itself is out of scope (spec.md §1).
type Transport interface {
	SendOpenFlow(ctx context.Context, dpid uint64, msg []byte) error
}

// ErrTemporarilyUnavailable classifies a send failure as "EAGAIN"-like:
// logged at debug, not error, per spec §4.6.
var ErrTemporarilyUnavailable = errors.New("poison: switch connection temporarily unavailable")

// Poisoner emits the two-message flow-mod DELETE pair for a connector
// that stopped being primary.
type Poisoner struct {
	transport Transport
	log       authlog.Logger
}

// New constructs a Poisoner. log defaults to a discarding logger if nil.
func New(transport Transport, log authlog.Logger) *Poisoner {
	if log == nil {
		log = authlog.Discard()
	}
	return &Poisoner{transport: transport, log: log}
}

// Poison sends the dl-src and dl-dst flush messages for conn, which was
// the previous primary at (dpid, nwaddr). Internal dladdrs are never
// poisoned by the caller (hoststate.IsInternalDladdr gates the call
// before reaching here, per spec §4.2), so Poison itself always sends.
func (p *Poisoner) Poison(ctx context.Context, dpid uint64, dladdr uint64, nwaddr uint32, conn *hoststate.Connector) {
	var dlSrc, dlDst [6]byte
	putMAC(&dlSrc, dladdr)
	dlDst = dlSrc

	wildcards := uint32(ofph.WildcardAll)
	if nwaddr != 0 {
		// Unmask nw_src/nw_dst (require exact match) instead of the fully
		// wildcarded CIDR prefix length WildcardAll sets by default.
		wildcards &^= ofph.WildcardNWMask << ofph.WildcardNWSrcShift
		wildcards &^= ofph.WildcardNWMask << ofph.WildcardNWDstShift
	}

	msgs := []ofp.FlowModDelete{
		{
			Wildcards: wildcards &^ ofph.WildcardDLDst,
			InPort:    hoststate.Port(conn.Location),
			DLDst:     dlDst,
			NWSrc:     nwaddr,
			NWDst:     nwaddr,
		},
		{
			Wildcards: wildcards &^ ofph.WildcardDLSrc,
			InPort:    hoststate.Port(conn.Location),
			DLSrc:     dlSrc,
			NWSrc:     nwaddr,
			NWDst:     nwaddr,
		},
	}

	for _, m := range msgs {
		if err := p.transport.SendOpenFlow(ctx, dpid, m.Encode()); err != nil {
			if errors.Is(err, ErrTemporarilyUnavailable) {
				p.log.Debug("poison: send deferred", "dpid", dpid, "dladdr", dladdr, "err", err)
				continue
			}
			p.log.Error("poison: send failed", "dpid", dpid, "dladdr", dladdr, "err", err)
		}
	}
}

// putMAC writes the low 48 bits of dladdr into mac in network order.
func putMAC(mac *[6]byte, dladdr uint64) {
	for i := 5; i >= 0; i-- {
		mac[i] = byte(dladdr)
		dladdr >>= 8
	}
}
