// Package hoststate implements the authenticator's three-level host/location
// state store (HostMap -> NWMap -> Connector list), its per-dladdr lock
// protocol against asynchronous directory lookups, and the sorted-merge and
// primary-selection helpers the pipeline and directory-reaction handlers
// build on. Grounded on authenticator.hh/.cc's Host_table / Loc_table design.
package hoststate

import "github.com/ovsauth/authcore/intern"

// Location packs a datapath id and port into the spec's single uint64 key:
// high 16 bits port, low 48 bits datapath id.
func Location(dpid uint64, port uint16) uint64 {
	return uint64(port)<<48 | (dpid & 0x0000ffffffffffff)
}

// Port extracts the port from a packed Location.
func Port(loc uint64) uint16 { return uint16(loc >> 48) }

// Dpid extracts the datapath id from a packed Location.
func Dpid(loc uint64) uint64 { return loc & 0x0000ffffffffffff }

// internalOUIMask and internalOUIValue implement the "OUI 00:23:20, mask
// 0x3fffff000000" internal-dladdr test from spec §4.2.
const (
	internalOUIMask  uint64 = 0x3fffff000000
	internalOUIValue uint64 = 0x002320000000
)

// IsInternalDladdr reports whether dl falls in the internal OUI range used
// to suppress poisoning for internal-only hardware addresses.
func IsInternalDladdr(dl uint64) bool {
	return dl&internalOUIMask == internalOUIValue
}

// InactivityDefault means "use default-host-timeout" (wire value 0).
const InactivityDefault uint32 = 0

// InactivityDisabled means "never expire due to inactivity". It is distinct
// from InactivityDefault per SPEC_FULL.md §9A(c); only reachable via the
// programmatic API, never via the wire AUTH tuple.
const InactivityDisabled uint32 = ^uint32(0)

// NoHardTimeout means the connector never hard-expires.
const NoHardTimeout int64 = 0

// Connector is the atomic record of one principal's live attachment,
// per spec §3.
type Connector struct {
	Location     uint64
	IsInternal   bool
	AP           intern.ID
	Host         intern.ID
	HostGroups   []intern.ID
	Users        []UserBinding
	NBindings    uint32
	LastActive   int64
	HardTimeout  int64
	InactivityLen uint32
}

// UserBinding is one authenticated user on a Connector plus their groups.
type UserBinding struct {
	User   intern.ID
	Groups []intern.ID
}

// EffectiveInactivity resolves the connector's inactivity window against
// the pipeline's configured default, per spec §8 boundary behavior.
func (c *Connector) EffectiveInactivity(defaultTimeout uint32) uint32 {
	switch c.InactivityLen {
	case InactivityDefault:
		return defaultTimeout
	case InactivityDisabled:
		return InactivityDisabled
	default:
		return c.InactivityLen
	}
}

// IdleAt reports whether the connector is idle-expired at "now" given the
// resolved default inactivity window. A disabled inactivity window never
// expires by idleness.
func (c *Connector) IdleAt(now int64, defaultTimeout uint32) bool {
	inact := c.EffectiveInactivity(defaultTimeout)
	if inact == InactivityDisabled {
		return false
	}
	return c.LastActive+int64(inact) <= now
}

// HardExpiredAt reports whether the connector's hard timeout has elapsed.
func (c *Connector) HardExpiredAt(now int64) bool {
	return c.HardTimeout != NoHardTimeout && c.HardTimeout <= now
}
