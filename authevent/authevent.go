// Package authevent applies spec §4.4's AUTHENTICATE/DEAUTHENTICATE tuple
// to the host/location state store, honoring the UNKNOWN/UNAUTHENTICATED/
// AUTHENTICATED pseudo-name semantics table and the owns_dl two-NWEntry
// sharing rule. Grounded on hoststate's Connector/Store API and authored
// in the teacher's style of small, table-driven semantic dispatch (see
// ovs/ovs-ofctl flow-field handling for the "one struct, one switch on
// intent" shape).
package authevent

import (
	"github.com/ovsauth/authcore/events"
	"github.com/ovsauth/authcore/hoststate"
	"github.com/ovsauth/authcore/intern"
)

// Disposition reports how an auth event was handled, per SPEC_FULL.md §7:
// handlers return a typed outcome instead of propagating exceptions.
type Disposition int

const (
	OK Disposition = iota
	Dropped
	SelfRepaired
)

// Tuple is the wire AUTH/DEAUTH tuple from spec §4.4.
type Tuple struct {
	Action      events.AuthAction
	Dpid        uint64
	Port        uint16
	Dladdr      uint64
	Nwaddr      uint32
	OwnsDL      bool
	Hostname    string
	Username    string
	Inactivity  uint32
	HardTimeout int64
}

// Result carries the host/user join/leave events an Apply call produced,
// plus the previous primary connector at this (dladdr,nwaddr) if the
// primary changed (poison.Poisoner uses this to flush stale flow rules).
type Result struct {
	Disposition     Disposition
	HostEvents      []events.HostEvent
	UserEvents      []events.UserEvent
	PreviousPrimary *hoststate.Connector
	Poisoned        bool
}

// Apply applies t to store, interning names through in as needed. now is
// the wall-clock second used to stamp last_active/hard_timeout.
func Apply(in *intern.Interner, store *hoststate.Store, t Tuple, now int64) (Result, error) {
	if t.Action == events.Authenticate {
		return applyAuth(in, store, t, now)
	}
	return applyDeauth(in, store, t, now)
}

func applyAuth(in *intern.Interner, store *hoststate.Store, t Tuple, now int64) (Result, error) {
	dl, freshDL := store.GetOrCreateDL(t.Dladdr)
	if !freshDL && dl.Status.Locked() {
		// An in-flight directory lookup owns this dladdr; the caller is
		// expected to requeue the tuple for when it unlocks.
		return Result{Disposition: Dropped}, nil
	}
	nw, freshNW := store.GetOrCreateNW(dl, t.Nwaddr)
	// AUTH/DEAUTH tuples carry an already-resolved identity (explicit
	// programmatic or wire action, not packet-driven discovery), so unlike
	// the pipeline's get_addr_conns there is no router/gateway or
	// addr-group lookup gating a fresh entry here.
	if freshDL {
		dl.Status.Unlock()
	}
	if freshNW {
		nw.Status.Unlock()
	}

	loc := hoststate.Location(t.Dpid, t.Port)
	var res Result

	existing := findAtLocation(nw, loc)

	// A dl-owning host's non-zero nwaddrs share one connector, anchored at
	// nwaddr=0 (spec §4.4, §8 scenario 2). If this nwaddr has no connector
	// of its own yet but the anchor already does, reuse the anchor's
	// pointer instead of minting a fresh connector for the new IP.
	var zero *hoststate.NWEntry
	sharedFromZero := false
	if t.OwnsDL && t.Nwaddr != 0 {
		var freshZero bool
		zero, freshZero = store.GetOrCreateNW(dl, 0)
		if freshZero {
			zero.Status.Unlock()
		}
		if existing == nil {
			if anchor := findAtLocation(zero, loc); anchor != nil {
				existing = anchor
				sharedFromZero = true
			}
		}
	}

	switch t.Hostname {
	case intern.NameUnknown:
		if existing == nil {
			// "keep any existing binding; default to UNAUTHENTICATED"
			existing = newConnector(loc, intern.Unauthenticated)
			prev := store.AddConnector(nw, existing)
			res.PreviousPrimary = prev
		}
	case intern.NameUnauthenticated:
		if sharedFromZero {
			leaveHost(in, existing, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
			existing.Host = intern.Unauthenticated
			existing.HostGroups = nil
		} else {
			if existing != nil {
				leaveHost(in, existing, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
				store.RemoveConnector(nw, existing)
			}
			existing = newConnector(loc, intern.Unauthenticated)
			prev := store.AddConnector(nw, existing)
			res.PreviousPrimary = prev
		}
	default:
		hostID, err := in.GetID(t.Hostname, intern.TagHost, true)
		if err != nil {
			return Result{Disposition: Dropped}, err
		}
		switch {
		case sharedFromZero:
			// A new nwaddr sharing the anchor connector is always a join
			// for this (dpid,port,nwaddr), even when the host id matches
			// the anchor's existing owner.
			if existing.Host != hostID {
				leaveHost(in, existing, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
				existing.Host = hostID
				existing.HostGroups = nil
			}
			res.HostEvents = append(res.HostEvents, events.HostEvent{
				Kind: events.Join, Hostname: in.Name(hostID),
				Dpid: t.Dpid, Port: t.Port, Dladdr: t.Dladdr, Nwaddr: t.Nwaddr,
			})
		case existing != nil && existing.Host == hostID:
			// Re-authenticating the same principal: refresh timers only.
		default:
			if existing != nil {
				leaveHost(in, existing, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
				store.RemoveConnector(nw, existing)
			}
			existing = newConnector(loc, hostID)
			prev := store.AddConnector(nw, existing)
			res.PreviousPrimary = prev
			res.HostEvents = append(res.HostEvents, events.HostEvent{
				Kind: events.Join, Hostname: in.Name(hostID),
				Dpid: t.Dpid, Port: t.Port, Dladdr: t.Dladdr, Nwaddr: t.Nwaddr,
			})
		}
	}

	switch t.Username {
	case intern.NameUnknown:
		// leave any existing user bindings untouched
	case intern.NameUnauthenticated:
		kept := existing.Users[:0]
		for _, ub := range existing.Users {
			if ub.User == intern.Unauthenticated {
				kept = append(kept, ub)
				continue
			}
			leaveUser(in, ub, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
		}
		existing.Users = kept
	default:
		userID, err := in.GetID(t.Username, intern.TagUser, true)
		if err != nil {
			return Result{Disposition: Dropped}, err
		}
		bound := false
		for _, ub := range existing.Users {
			if ub.User == userID {
				bound = true
				break
			}
		}
		if !bound {
			existing.Users = append(existing.Users, hoststate.UserBinding{User: userID})
			res.UserEvents = append(res.UserEvents, events.UserEvent{
				Kind: events.Join, Username: in.Name(userID),
				Dpid: t.Dpid, Port: t.Port, Dladdr: t.Dladdr, Nwaddr: t.Nwaddr,
			})
		}
	}

	if sharedFromZero {
		// First time the anchor's shared pointer is registered under this
		// nwaddr: bind it here too and count the new distinct IP binding.
		// n_bindings excludes the nwaddr=0 anchor itself (invariant 3).
		store.AddConnector(nw, existing)
		existing.NBindings++
	} else if t.Nwaddr != 0 && existing.NBindings == 0 {
		existing.NBindings = 1
	}

	existing.LastActive = now
	existing.HardTimeout = t.HardTimeout
	existing.InactivityLen = t.Inactivity

	prevPrimary := store.PromoteToPrimary(nw, existing)
	if prevPrimary != nil && prevPrimary != existing {
		res.Poisoned = !hoststate.IsInternalDladdr(t.Dladdr)
		if res.PreviousPrimary == nil {
			res.PreviousPrimary = prevPrimary
		}
	}

	if t.OwnsDL && t.Nwaddr != 0 && !sharedFromZero {
		// Anchor this connector at nwaddr=0 too, so a later AUTH for
		// another IP on this dladdr finds it via the zero entry and
		// shares the same pointer instead of minting a new connector.
		if findAtLocation(zero, loc) == nil {
			store.AddConnector(zero, existing)
		}
	}

	// addr_groups population for a freshly created NWEntry is the caller's
	// (pipeline's) responsibility, via directory.ReplaceGroupSet.

	res.Disposition = OK
	return res, nil
}

func applyDeauth(in *intern.Interner, store *hoststate.Store, t Tuple, now int64) (Result, error) {
	dl, ok := store.LookupDL(t.Dladdr)
	if !ok {
		return Result{Disposition: OK}, nil
	}
	nw, ok := dl.NWs[t.Nwaddr]
	if !ok {
		return Result{Disposition: OK}, nil
	}
	loc := hoststate.Location(t.Dpid, t.Port)
	existing := findAtLocation(nw, loc)
	var res Result

	if t.Hostname == intern.NameUnknown && t.Username == intern.NameUnknown {
		if existing != nil {
			leaveHost(in, existing, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
			for _, ub := range existing.Users {
				leaveUser(in, ub, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
			}
			store.RemoveConnector(nw, existing)
		}
		res.Disposition = OK
		return res, nil
	}

	if existing == nil {
		res.Disposition = OK
		return res, nil
	}

	switch t.Hostname {
	case intern.NameUnknown:
		// leave this binding's host untouched
	case intern.NameUnauthenticated:
		leaveHost(in, existing, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
		existing.Host = intern.Unauthenticated
		existing.HostGroups = nil
	default:
		if name := in.Name(existing.Host); name == t.Hostname {
			leaveHost(in, existing, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
			existing.Host = intern.Unauthenticated
			existing.HostGroups = nil
		}
	}

	switch t.Username {
	case intern.NameUnknown:
		// leave users untouched
	case intern.NameUnauthenticated:
		kept := existing.Users[:0]
		for _, ub := range existing.Users {
			if ub.User == intern.Unauthenticated {
				kept = append(kept, ub)
				continue
			}
			leaveUser(in, ub, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
		}
		existing.Users = kept
	default:
		kept := existing.Users[:0]
		for _, ub := range existing.Users {
			if in.Name(ub.User) == t.Username {
				leaveUser(in, ub, events.ReasonDeauth, t.Dpid, t.Port, t.Dladdr, t.Nwaddr, &res)
				continue
			}
			kept = append(kept, ub)
		}
		existing.Users = kept
	}

	res.Disposition = OK
	return res, nil
}

func findAtLocation(nw *hoststate.NWEntry, loc uint64) *hoststate.Connector {
	for _, c := range nw.Conns {
		if c.Location == loc {
			return c
		}
	}
	return nil
}

func newConnector(loc uint64, hostID intern.ID) *hoststate.Connector {
	return &hoststate.Connector{
		Location: loc,
		Host:     hostID,
	}
}

func leaveHost(in *intern.Interner, c *hoststate.Connector, reason string, dpid uint64, port uint16, dladdr uint64, nwaddr uint32, res *Result) {
	if c.Host == intern.Unauthenticated {
		return
	}
	name := in.Name(c.Host)
	for _, g := range c.HostGroups {
		in.DecrementID(g)
	}
	in.DecrementID(c.Host)
	res.HostEvents = append(res.HostEvents, events.HostEvent{
		Kind: events.Leave, Hostname: name,
		Dpid: dpid, Port: port, Dladdr: dladdr, Nwaddr: nwaddr, Reason: reason,
	})
}

func leaveUser(in *intern.Interner, ub hoststate.UserBinding, reason string, dpid uint64, port uint16, dladdr uint64, nwaddr uint32, res *Result) {
	name := in.Name(ub.User)
	for _, g := range ub.Groups {
		in.DecrementID(g)
	}
	in.DecrementID(ub.User)
	res.UserEvents = append(res.UserEvents, events.UserEvent{
		Kind: events.Leave, Username: name,
		Dpid: dpid, Port: port, Dladdr: dladdr, Nwaddr: nwaddr, Reason: reason,
	})
}
