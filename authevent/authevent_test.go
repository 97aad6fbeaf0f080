package authevent

import (
	"testing"
	"time"

	"github.com/ovsauth/authcore/events"
	"github.com/ovsauth/authcore/hoststate"
	"github.com/ovsauth/authcore/intern"
)

func TestApplyAuthSpecificHostnameCreatesConnector(t *testing.T) {
	in := intern.New(120 * time.Second)
	store := hoststate.NewStore()

	res, err := Apply(in, store, Tuple{
		Action: events.Authenticate,
		Dpid:   1, Port: 2, Dladdr: 0xaabbcc, Nwaddr: 10,
		Hostname: "alice", Username: intern.NameUnknown,
	}, 1000)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Disposition != OK {
		t.Fatalf("expected OK, got %v", res.Disposition)
	}
	if len(res.HostEvents) != 1 || res.HostEvents[0].Kind != events.Join {
		t.Fatalf("expected 1 host join event, got %v", res.HostEvents)
	}

	dl, ok := store.LookupDL(0xaabbcc)
	if !ok {
		t.Fatalf("expected DLEntry created")
	}
	nw := dl.NWs[10]
	if nw == nil || len(nw.Conns) != 1 {
		t.Fatalf("expected 1 connector, got %v", nw)
	}
	if name := in.Name(nw.Conns[0].Host); name != "alice" {
		t.Fatalf("expected host alice, got %q", name)
	}
}

func TestApplyAuthReplacesDifferentPrincipalAndPoisons(t *testing.T) {
	in := intern.New(120 * time.Second)
	store := hoststate.NewStore()

	_, err := Apply(in, store, Tuple{
		Action: events.Authenticate, Dpid: 1, Port: 2, Dladdr: 0x1, Nwaddr: 10,
		Hostname: "alice", Username: intern.NameUnknown,
	}, 1000)
	if err != nil {
		t.Fatalf("Apply 1: %v", err)
	}

	res, err := Apply(in, store, Tuple{
		Action: events.Authenticate, Dpid: 1, Port: 3, Dladdr: 0x1, Nwaddr: 10,
		Hostname: "bob", Username: intern.NameUnknown,
	}, 1001)
	if err != nil {
		t.Fatalf("Apply 2: %v", err)
	}
	if !res.Poisoned {
		t.Fatalf("expected poisoning when primary switches to a new connector")
	}
	if len(res.HostEvents) != 1 || res.HostEvents[0].Hostname != "bob" {
		t.Fatalf("expected a single join(bob) event; alice's connector survives as a non-primary sibling, got %v", res.HostEvents)
	}
	dl, _ := store.LookupDL(0x1)
	if len(dl.NWs[10].Conns) != 2 {
		t.Fatalf("expected both connectors to remain in the sibling list, got %d", len(dl.NWs[10].Conns))
	}
	if res.PreviousPrimary == nil || in.Name(res.PreviousPrimary.Host) != "alice" {
		t.Fatalf("expected alice reported as the poisoned previous primary")
	}
}

func TestApplyAuthUnauthenticatedReplacesBinding(t *testing.T) {
	in := intern.New(120 * time.Second)
	store := hoststate.NewStore()

	_, _ = Apply(in, store, Tuple{
		Action: events.Authenticate, Dpid: 1, Port: 2, Dladdr: 0x1, Nwaddr: 10,
		Hostname: "alice", Username: intern.NameUnknown,
	}, 1000)

	res, err := Apply(in, store, Tuple{
		Action: events.Authenticate, Dpid: 1, Port: 2, Dladdr: 0x1, Nwaddr: 10,
		Hostname: intern.NameUnauthenticated, Username: intern.NameUnknown,
	}, 1001)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.HostEvents) != 1 || res.HostEvents[0].Kind != events.Leave {
		t.Fatalf("expected 1 leave event, got %v", res.HostEvents)
	}

	dl, _ := store.LookupDL(0x1)
	nw := dl.NWs[10]
	if nw.Conns[0].Host != intern.Unauthenticated {
		t.Fatalf("expected connector to now be unauthenticated")
	}
}

func TestApplyDeauthBothUnknownRemovesWholeLocation(t *testing.T) {
	in := intern.New(120 * time.Second)
	store := hoststate.NewStore()

	_, _ = Apply(in, store, Tuple{
		Action: events.Authenticate, Dpid: 1, Port: 2, Dladdr: 0x1, Nwaddr: 10,
		Hostname: "alice", Username: intern.NameUnknown,
	}, 1000)

	res, err := Apply(in, store, Tuple{
		Action: events.Deauthenticate, Dpid: 1, Port: 2, Dladdr: 0x1, Nwaddr: 10,
		Hostname: intern.NameUnknown, Username: intern.NameUnknown,
	}, 1001)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.HostEvents) != 1 || res.HostEvents[0].Kind != events.Leave {
		t.Fatalf("expected 1 leave event, got %v", res.HostEvents)
	}
	dl, _ := store.LookupDL(0x1)
	if len(dl.NWs[10].Conns) != 0 {
		t.Fatalf("expected connector removed entirely")
	}
}

func TestApplyDeauthSpecificUserRemovesOnlyThatUser(t *testing.T) {
	in := intern.New(120 * time.Second)
	store := hoststate.NewStore()
	dl, _ := store.GetOrCreateDL(0x1)
	dl.Status.Unlock()
	nw, _ := store.GetOrCreateNW(dl, 10)

	bobID, _ := in.GetID("bob", intern.TagUser, true)
	carolID, _ := in.GetID("carol", intern.TagUser, true)
	conn := &hoststate.Connector{
		Location: hoststate.Location(1, 2),
		Host:     intern.Unauthenticated,
		Users: []hoststate.UserBinding{
			{User: bobID}, {User: carolID},
		},
	}
	store.AddConnector(nw, conn)

	res, err := Apply(in, store, Tuple{
		Action: events.Deauthenticate, Dpid: 1, Port: 2, Dladdr: 0x1, Nwaddr: 10,
		Hostname: intern.NameUnknown, Username: "bob",
	}, 1001)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.UserEvents) != 1 || res.UserEvents[0].Username != "bob" {
		t.Fatalf("expected leave(bob) only, got %v", res.UserEvents)
	}
	if len(conn.Users) != 1 || in.Name(conn.Users[0].User) != "carol" {
		t.Fatalf("expected carol to remain bound, got %v", conn.Users)
	}
}

func TestApplyAuthOwnsDLCreatesSharedZeroEntry(t *testing.T) {
	in := intern.New(120 * time.Second)
	store := hoststate.NewStore()

	_, err := Apply(in, store, Tuple{
		Action: events.Authenticate, Dpid: 1, Port: 2, Dladdr: 0x1, Nwaddr: 10,
		Hostname: "router1", Username: intern.NameUnknown, OwnsDL: true,
	}, 1000)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	dl, _ := store.LookupDL(0x1)
	if dl.Zero == nil || len(dl.Zero.Conns) != 1 {
		t.Fatalf("expected nwaddr=0 anchor entry with 1 connector")
	}
	if dl.Zero.Conns[0] != dl.NWs[10].Conns[0] {
		t.Fatalf("expected the nwaddr=0 and nwaddr=10 entries to share one connector pointer")
	}
	if dl.Zero.Conns[0].NBindings != 1 {
		t.Fatalf("expected n_bindings=1 (the nwaddr=0 anchor itself doesn't count), got %d", dl.Zero.Conns[0].NBindings)
	}
}

func TestApplyAuthOwnsDLSharesConnectorAcrossSecondIP(t *testing.T) {
	in := intern.New(120 * time.Second)
	store := hoststate.NewStore()

	_, err := Apply(in, store, Tuple{
		Action: events.Authenticate, Dpid: 1, Port: 2, Dladdr: 0x1, Nwaddr: 0x0a000001,
		Hostname: "alice", Username: intern.NameUnknown, OwnsDL: true,
	}, 1000)
	if err != nil {
		t.Fatalf("Apply 1: %v", err)
	}

	res, err := Apply(in, store, Tuple{
		Action: events.Authenticate, Dpid: 1, Port: 2, Dladdr: 0x1, Nwaddr: 0x0a000002,
		Hostname: "alice", Username: intern.NameUnknown, OwnsDL: true,
	}, 1001)
	if err != nil {
		t.Fatalf("Apply 2: %v", err)
	}
	if len(res.HostEvents) != 1 || res.HostEvents[0].Kind != events.Join {
		t.Fatalf("expected a single join event for the new IP, got %v", res.HostEvents)
	}

	dl, _ := store.LookupDL(0x1)
	shared := dl.Zero.Conns[0]
	if dl.NWs[0x0a000001].Conns[0] != shared || dl.NWs[0x0a000002].Conns[0] != shared {
		t.Fatalf("expected nwaddr=0, .1 and .2 to all share the same connector pointer")
	}
	if shared.NBindings != 2 {
		t.Fatalf("expected n_bindings=2 after the second IP joins, got %d", shared.NBindings)
	}
}
