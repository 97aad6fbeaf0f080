package directory

import (
	"github.com/ovsauth/authcore/events"
	"github.com/ovsauth/authcore/hoststate"
	"github.com/ovsauth/authcore/intern"
)

// PrincipalKind distinguishes which cascade a Principal_name_event drives.
type PrincipalKind int

const (
	KindHost PrincipalKind = iota
	KindUser
)

// ReactPrincipalRename implements spec §4.5's Principal_name_event cascade.
// A non-empty newName is a plain rename: the interner repoints the name,
// every connector referencing the id is unaffected. An empty newName is a
// delete: for a host, every connector whose host id matches is left alone
// (the caller is expected to cascade removal separately, per spec.md §4.1's
// rename contract); for a user, every matching user binding is torn down
// across the whole store and a Leave event is returned for each.
func ReactPrincipalRename(in *intern.Interner, store *hoststate.Store, kind PrincipalKind, oldName, newName string, tag intern.SuffixTag) (id intern.ID, collided bool, leaves []events.UserEvent) {
	id, collided, ok := in.Rename(oldName, newName, tag)
	if !ok {
		return 0, false, nil
	}
	if newName != "" || kind != KindUser {
		return id, collided, nil
	}

	store.Walk(func(dl *hoststate.DLEntry) {
		for _, nw := range dl.NWs {
			for _, conn := range nw.Conns {
				leaves = append(leaves, deauthUserFromConnector(in, conn, id, nw.Nwaddr, dl.Dladdr)...)
			}
		}
	})
	return id, collided, leaves
}

func deauthUserFromConnector(in *intern.Interner, conn *hoststate.Connector, userID intern.ID, nwaddr uint32, dladdr uint64) []events.UserEvent {
	var out []events.UserEvent
	kept := conn.Users[:0]
	for _, ub := range conn.Users {
		if ub.User != userID {
			kept = append(kept, ub)
			continue
		}
		Release(in, ub.Groups)
		in.DecrementID(ub.User)
		out = append(out, events.UserEvent{
			Kind:     events.Leave,
			Username: in.Name(userID),
			Dpid:     hoststate.Dpid(conn.Location),
			Port:     hoststate.Port(conn.Location),
			Dladdr:   dladdr,
			Nwaddr:   nwaddr,
			Reason:   events.ReasonPrincipalDeleted,
		})
	}
	conn.Users = kept
	return out
}

// ReactLocationDelete implements spec §4.5's Location_delete_event: every
// connector at (dpid,port) is dropped, and the location's name/groups are
// refreshed from already-resolved directory answers (newName/newGroups).
// Returns the Host/User leave events the removal produces.
func ReactLocationDelete(in *intern.Interner, store *hoststate.Store, locInfo *hoststate.GroupInfo, dpid uint64, port uint16, newName string, newGroups []string) (hostLeaves []events.HostEvent, userLeaves []events.UserEvent, err error) {
	loc := hoststate.Location(dpid, port)

	store.Walk(func(dl *hoststate.DLEntry) {
		for _, nw := range dl.NWs {
			remaining := nw.Conns[:0]
			for _, conn := range nw.Conns {
				if conn.Location != loc {
					remaining = append(remaining, conn)
					continue
				}
				for _, ub := range conn.Users {
					Release(in, ub.Groups)
					in.DecrementID(ub.User)
					userLeaves = append(userLeaves, events.UserEvent{
						Kind: events.Leave, Username: in.Name(ub.User),
						Dpid: dpid, Port: port, Dladdr: dl.Dladdr, Nwaddr: nw.Nwaddr,
						Reason: events.ReasonLocationDeleted,
					})
				}
				Release(in, conn.HostGroups)
				in.DecrementID(conn.Host)
				hostLeaves = append(hostLeaves, events.HostEvent{
					Kind: events.Leave, Hostname: in.Name(conn.Host),
					Dpid: dpid, Port: port, Dladdr: dl.Dladdr, Nwaddr: nw.Nwaddr,
					Reason: events.ReasonLocationDeleted,
				})
			}
			nw.Conns = remaining
		}
	})

	if newName == "" {
		return hostLeaves, userLeaves, nil
	}

	id, ierr := in.GetID(newName, intern.TagLocation, true)
	if ierr != nil {
		return hostLeaves, userLeaves, ierr
	}
	if locInfo.ID != 0 {
		in.DecrementID(locInfo.ID)
	}
	locInfo.ID = id

	groups, ierr := ReplaceGroupSet(in, locInfo.Groups, newGroups, intern.TagLocationGroup)
	if ierr != nil {
		return hostLeaves, userLeaves, ierr
	}
	locInfo.Groups = groups

	return hostLeaves, userLeaves, nil
}

// GroupScope identifies which population a group-change cascade refreshes.
type GroupScope int

const (
	ScopeDladdr GroupScope = iota
	ScopeNwaddrCIDR
	ScopeSwitch
	ScopeLocation
	ScopeHost
	ScopeUser
)

// ReactGroupChange implements spec §4.5's group rename/change cascade for
// address-keyed groups: for ScopeDladdr, only NWEntries under matchDladdr
// refresh; for ScopeNwaddrCIDR, every NWEntry whose nwaddr satisfies
// matchesCIDR refreshes. The NWEntry is logically "locked" for the
// duration (callers driving the real lock protocol wrap this call between
// Status.Lock()/Unlock()); this function only performs the id bookkeeping.
func ReactGroupChange(in *intern.Interner, store *hoststate.Store, scope GroupScope, matchDladdr uint64, matchesCIDR func(nwaddr uint32) bool, resolve func(nw *hoststate.NWEntry) ([]string, error)) error {
	tag := intern.TagDladdrGroup
	if scope == ScopeNwaddrCIDR {
		tag = intern.TagNwaddrGroup
	}

	var outerErr error
	store.Walk(func(dl *hoststate.DLEntry) {
		if scope == ScopeDladdr && dl.Dladdr != matchDladdr {
			return
		}
		for _, nw := range dl.NWs {
			if scope == ScopeNwaddrCIDR && !matchesCIDR(nw.Nwaddr) {
				continue
			}
			names, err := resolve(nw)
			if err != nil {
				outerErr = err
				continue
			}
			fresh, err := ReplaceGroupSet(in, nw.AddrGroups, names, tag)
			if err != nil {
				outerErr = err
				continue
			}
			nw.AddrGroups = fresh
		}
	})
	return outerErr
}

// ReactNetinfoChange implements spec §4.5's Netinfo_change cascade: flips
// the router/gateway flags on dl, and if the router bit changed or gateway
// newly became true, evicts every IP-bearing (nwaddr != 0) connector under
// dl so the router-case logic in the pipeline rebuilds them. Returns the
// Host leave events the eviction produces; the connectors themselves are
// removed from their NWEntries (but NWEntry/DLEntry pruning is left to the
// timer sweep per the usual lifecycle rules).
func ReactNetinfoChange(in *intern.Interner, store *hoststate.Store, dl *hoststate.DLEntry, newRouter, newGateway bool) []events.HostEvent {
	routerChanged := dl.Router != newRouter
	gatewayBecameTrue := !dl.Gateway && newGateway
	dl.Router, dl.Gateway = newRouter, newGateway

	if !routerChanged && !gatewayBecameTrue {
		return nil
	}

	var leaves []events.HostEvent
	for nwaddr, nw := range dl.NWs {
		if nwaddr == 0 {
			continue
		}
		remaining := nw.Conns[:0]
		for _, conn := range nw.Conns {
			Release(in, conn.HostGroups)
			for _, ub := range conn.Users {
				Release(in, ub.Groups)
				in.DecrementID(ub.User)
			}
			in.DecrementID(conn.Host)
			leaves = append(leaves, events.HostEvent{
				Kind: events.Leave, Hostname: in.Name(conn.Host),
				Dpid: hoststate.Dpid(conn.Location), Port: hoststate.Port(conn.Location),
				Dladdr: dl.Dladdr, Nwaddr: nwaddr, Reason: events.ReasonNetinfoChange,
			})
		}
		nw.Conns = remaining
	}
	return leaves
}
