package authcore

import (
	"github.com/ovsauth/authcore/directory"
	"github.com/ovsauth/authcore/hoststate"
	"github.com/ovsauth/authcore/intern"
)

// HandlePrincipalRename applies spec.md §4.5's Principal_name_event cascade:
// oldName is repointed (or, when newName is empty, torn down across the
// store for a user principal). Must run on the dispatch goroutine, same as
// Authenticate/Deauthenticate.
func (c *Core) HandlePrincipalRename(kind directory.PrincipalKind, oldName, newName string, tag intern.SuffixTag) {
	_, _, leaves := directory.ReactPrincipalRename(c.in, c.store, kind, oldName, newName, tag)
	for _, ue := range leaves {
		c.bus.Post(ue)
	}
}

// HandleLocationDelete applies spec.md §4.5's Location_delete_event cascade:
// every connector at (dpid,port) is dropped and the location's name/groups
// are refreshed from already-resolved directory answers.
func (c *Core) HandleLocationDelete(dpid uint64, port uint16, newName string, newGroups []string) error {
	locInfo, _ := c.locationGroups.GetOrCreate(hoststate.Location(dpid, port))
	hostLeaves, userLeaves, err := directory.ReactLocationDelete(c.in, c.store, locInfo, dpid, port, newName, newGroups)
	for _, he := range hostLeaves {
		c.bus.Post(he)
	}
	for _, ue := range userLeaves {
		c.bus.Post(ue)
	}
	return err
}

// HandleGroupChange applies spec.md §4.5's address-keyed group refresh
// cascade (dladdr-group or nwaddr-CIDR scoped).
func (c *Core) HandleGroupChange(scope directory.GroupScope, matchDladdr uint64, matchesCIDR func(nwaddr uint32) bool, resolve func(nw *hoststate.NWEntry) ([]string, error)) error {
	return directory.ReactGroupChange(c.in, c.store, scope, matchDladdr, matchesCIDR, resolve)
}

// HandleNetinfoChange applies spec.md §4.5's Netinfo_change cascade: flips
// dl's router/gateway flags and, if that changes the router case's outcome,
// evicts every IP-bearing connector under dl so the pipeline rebuilds them.
func (c *Core) HandleNetinfoChange(dladdr uint64, newRouter, newGateway bool) {
	dl, ok := c.store.LookupDL(dladdr)
	if !ok {
		return
	}
	for _, he := range directory.ReactNetinfoChange(c.in, c.store, dl, newRouter, newGateway) {
		c.bus.Post(he)
	}
}
