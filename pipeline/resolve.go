package pipeline

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/ovsauth/authcore/authevent"
	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/directory"
	"github.com/ovsauth/authcore/events"
	"github.com/ovsauth/authcore/hoststate"
	"github.com/ovsauth/authcore/intern"
	"github.com/ovsauth/authcore/topology"

	"golang.org/x/sync/errgroup"
)

// EventBus is the subset of events.Bus the pipeline needs, per
// SPEC_FULL.md §6A.
type EventBus interface {
	Post(ev any)
	PostAfter(d time.Duration, ev any)
}

// Config holds the pipeline's spec §6 configuration knobs.
type Config struct {
	// AutoAuthHosts reports whether dladdr should be silently
	// auto-authenticated (as AUTHENTICATED) rather than treated as a
	// temporary unauthenticated connector, when no binding exists yet.
	AutoAuthHosts func(dladdr uint64) bool
	// LookupUnauthDst enables a directory name lookup for an unresolved
	// destination instead of immediately falling back to UNAUTHENTICATED.
	LookupUnauthDst bool
	// InternalSubnets are nwaddr ranges the router case treats as
	// "not worth folding onto the nwaddr-0 entry" (spec §4.2's "not
	// internal" test).
	InternalSubnets []*net.IPNet
}

// Pipeline resolves packet-in Flows against the host/location store and
// emits Flow_in/Broadcast_in events, per spec §4.3.
type Pipeline struct {
	store *hoststate.Store
	in    *intern.Interner
	dir   directory.Service
	topo  topology.Resolver
	bus   EventBus
	log   authlog.Logger
	cfg   Config
}

// New constructs a Pipeline. log defaults to a discarding logger if nil.
func New(store *hoststate.Store, in *intern.Interner, dir directory.Service, topo topology.Resolver, bus EventBus, log authlog.Logger, cfg Config) *Pipeline {
	if log == nil {
		log = authlog.Discard()
	}
	return &Pipeline{store: store, in: in, dir: dir, topo: topo, bus: bus, log: log, cfg: cfg}
}

// HandlePacketIn drives spec §4.3's decision tree for one packet-in.
func (p *Pipeline) HandlePacketIn(ctx context.Context, dpid uint64, inPort uint16, raw []byte, now int64) {
	flow := ParseFlow(inPort, raw)
	if flow.IsLLDP() {
		return
	}

	if flow.IsBroadcastOrMulticast() {
		if flow.IsDHCPDiscoverLike() {
			p.purgeNonZeroNWConnectors(flow.DLSrc, now)
		}
		p.resolveBroadcast(flow, now, raw)
		return
	}

	p.resolveUnicast(ctx, dpid, inPort, flow, now, raw)
}

func (p *Pipeline) resolveBroadcast(flow Flow, now int64, raw []byte) {
	p.bus.Post(events.BroadcastInEvent{
		Destination: intern.Unauthenticated,
		ReceivedAt:  now,
		Raw:         raw,
	})
}

// purgeNonZeroNWConnectors implements spec §4.3's DHCP-discover MAC-leave
// purge: every connector under dladdr whose nwaddr != 0 leaves, mirroring
// sweep.Sweeper.evict's decrement-then-post-Leave bookkeeping.
func (p *Pipeline) purgeNonZeroNWConnectors(dladdr uint64, now int64) {
	dl, ok := p.store.LookupDL(dladdr)
	if !ok || dl.Status.Locked() {
		return
	}
	for nwaddr, nw := range dl.NWs {
		if nwaddr == 0 {
			continue
		}
		for _, c := range nw.Conns {
			p.leave(dl, c, nwaddr, events.ReasonNetinfoChange)
		}
		nw.Conns = nil
		p.store.PruneEmptyNW(dl, nw, now, true)
	}
	p.store.PruneEmptyDL(dl, now)
}

func (p *Pipeline) leave(dl *hoststate.DLEntry, c *hoststate.Connector, nwaddr uint32, reason string) {
	dpid, port := hoststate.Dpid(c.Location), hoststate.Port(c.Location)
	if c.Host != intern.Unauthenticated {
		name := p.in.Name(c.Host)
		for _, g := range c.HostGroups {
			p.in.DecrementID(g)
		}
		p.in.DecrementID(c.Host)
		p.bus.Post(events.HostEvent{Kind: events.Leave, Hostname: name, Dpid: dpid, Port: port, Dladdr: dl.Dladdr, Nwaddr: nwaddr, Reason: reason})
	}
	for _, ub := range c.Users {
		name := p.in.Name(ub.User)
		for _, g := range ub.Groups {
			p.in.DecrementID(g)
		}
		p.in.DecrementID(ub.User)
		p.bus.Post(events.UserEvent{Kind: events.Leave, Username: name, Dpid: dpid, Port: port, Dladdr: dl.Dladdr, Nwaddr: nwaddr, Reason: reason})
	}
}

func (p *Pipeline) resolveUnicast(ctx context.Context, dpid uint64, inPort uint16, flow Flow, now int64, raw []byte) {
	loc := hoststate.Location(dpid, inPort)
	p.getAddrConns(ctx, flow.DLSrc, flow.NWSrc, func(srcDL *hoststate.DLEntry, srcNW *hoststate.NWEntry, srcReqNW uint32) {
		src := p.setFlowSrcConn(ctx, srcDL, srcNW, srcReqNW, loc, now)

		p.getAddrConns(ctx, flow.DLDst, flow.NWDst, func(dstDL *hoststate.DLEntry, dstNW *hoststate.NWEntry, dstReqNW uint32) {
			dst := p.setFlowDstConn(ctx, dstDL, dstNW, dstReqNW, now)

			p.bus.Post(events.FlowInEvent{
				Source:      src.Host,
				RouteSource: src.RouteSource,
				Destinations: []events.Destination{{
					Host:       dst.Host,
					AP:         dst.AP,
					AddrGroups: dst.AddrGroups,
					DLAuthed:   dst.DLAuthed,
					NWAuthed:   dst.NWAuthed,
				}},
				SrcAddrGroups: src.AddrGroups,
				SrcDLAuthed:   src.DLAuthed,
				SrcNWAuthed:   src.NWAuthed,
				ReceivedAt:    now,
				Raw:           raw,
			})
		})
	})
}

// resolved carries one side's (source or destination) principal
// resolution, populating either a Flow_in_event's flat src_* fields or one
// of its Destination entries.
type resolved struct {
	Host        intern.ID
	AP          intern.ID
	AddrGroups  []intern.ID
	DLAuthed    bool
	NWAuthed    bool
	RouteSource bool
}

// getAddrConns implements spec §4.2/§4.3's get_addr_conns: find-or-create
// the DLEntry and NWEntry for (dladdr, nwaddr), issuing directory lookups
// on first creation and folding onto the nwaddr-0 entry when dl is a
// router and nwaddr isn't one of the configured internal subnets. If
// either entry is already locked by an in-flight fetch, the call defers
// itself as a continuation and returns without running continuation,
// exactly like authenticator.hh's suspend/resume discipline.
func (p *Pipeline) getAddrConns(ctx context.Context, dladdr uint64, nwaddr uint32, continuation func(dl *hoststate.DLEntry, nw *hoststate.NWEntry, reqNW uint32)) {
	dl, freshDL := p.store.GetOrCreateDL(dladdr)
	if !freshDL && dl.Status.Locked() {
		dl.Status.Enqueue(func() { p.getAddrConns(ctx, dladdr, nwaddr, continuation) })
		return
	}
	if freshDL {
		router, _ := p.dir.IsRouter(ctx, dladdr)
		gateway, _ := p.dir.IsGateway(ctx, dladdr)
		dl.Router = router
		dl.Gateway = gateway
		dl.Status.Unlock()
	}

	effectiveNW := nwaddr
	if dl.Router && !p.isInternalNwaddr(nwaddr) {
		effectiveNW = 0
	}

	nw, freshNW := p.store.GetOrCreateNW(dl, effectiveNW)
	if !freshNW && nw.Status.Locked() {
		nw.Status.Enqueue(func() { p.getAddrConns(ctx, dladdr, nwaddr, continuation) })
		return
	}
	if freshNW {
		// A fresh NWEntry needs two independent directory lookups
		// (dladdr-group and nwaddr-group membership); fan them out and
		// join before resuming, per SPEC_FULL.md §8A.
		var dlGroups, nwGroups []string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			dlGroups, err = p.dir.DladdrGroups(gctx, dladdr)
			return err
		})
		g.Go(func() error {
			var err error
			nwGroups, err = p.dir.NwaddrGroups(gctx, effectiveNW)
			return err
		})
		if err := g.Wait(); err != nil {
			p.log.Debug("pipeline: addr-group lookup failed", "dladdr", dladdr, "nwaddr", effectiveNW, "err", err)
		}
		dlIDs, _ := directory.InternSorted(p.in, dlGroups, intern.TagDladdrGroup)
		nwIDs, _ := directory.InternSorted(p.in, nwGroups, intern.TagNwaddrGroup)
		nw.AddrGroups = hoststate.MergeGroupLists(dlIDs, nwIDs)
		nw.Status.Unlock()
	}

	continuation(dl, nw, nwaddr)
}

func (p *Pipeline) isInternalNwaddr(nwaddr uint32) bool {
	if len(p.cfg.InternalSubnets) == 0 {
		return false
	}
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, nwaddr)
	for _, subnet := range p.cfg.InternalSubnets {
		if subnet.Contains(ip) {
			return true
		}
	}
	return false
}

// setFlowSrcConn implements spec §4.3's set_flow_src_conn.
func (p *Pipeline) setFlowSrcConn(ctx context.Context, dl *hoststate.DLEntry, nw *hoststate.NWEntry, reqNW uint32, loc uint64, now int64) resolved {
	if c := findAtLocation(nw, loc); c != nil {
		p.store.PromoteToPrimary(nw, c)
		c.LastActive = now
		return resolved{Host: c.Host, AP: c.AP, AddrGroups: nw.AddrGroups, DLAuthed: true, NWAuthed: reqNW != 0}
	}

	if internal, _ := p.topo.IsInternal(ctx, hoststate.Dpid(loc), hoststate.Port(loc)); internal {
		if len(nw.Conns) > 0 {
			c := nw.Conns[0]
			return resolved{Host: c.Host, AP: c.AP, AddrGroups: nw.AddrGroups, DLAuthed: true, NWAuthed: reqNW != 0}
		}
	}

	if dl.Router && nw.Nwaddr == 0 && reqNW != 0 {
		if target, ok := p.store.PrimaryFor(reqNW); ok && len(target.Conns) > 0 {
			c := target.Conns[0]
			return resolved{Host: c.Host, AP: c.AP, AddrGroups: target.AddrGroups, DLAuthed: true, NWAuthed: true, RouteSource: true}
		}
	}

	if p.shouldAutoAuth(dl.Dladdr) {
		tuple := authevent.Tuple{
			Action: events.Authenticate,
			Dpid:   hoststate.Dpid(loc), Port: hoststate.Port(loc),
			Dladdr: dl.Dladdr, Nwaddr: reqNW,
			Hostname: intern.NameAuthenticated, Username: intern.NameUnknown,
		}
		if res, err := authevent.Apply(p.in, p.store, tuple, now); err == nil && res.Disposition == authevent.OK {
			if c := findAtLocation(nw, loc); c != nil {
				return resolved{Host: c.Host, AP: c.AP, AddrGroups: nw.AddrGroups, DLAuthed: true, NWAuthed: reqNW != 0}
			}
		}
	}

	// Temporary unauthenticated connector: exists only to populate this
	// flow's resolution, never inserted into the store.
	return resolved{Host: intern.Unauthenticated, AddrGroups: nw.AddrGroups}
}

// setFlowDstConn implements spec §4.3's set_flow_dst_conn.
func (p *Pipeline) setFlowDstConn(ctx context.Context, dl *hoststate.DLEntry, nw *hoststate.NWEntry, reqNW uint32, now int64) resolved {
	if dl.Router && nw.Nwaddr == 0 && reqNW != 0 {
		if target, ok := p.store.PrimaryFor(reqNW); ok && len(target.Conns) > 0 {
			c := target.Conns[0]
			return resolved{Host: c.Host, AP: c.AP, AddrGroups: target.AddrGroups, DLAuthed: true, NWAuthed: true}
		}
	}

	if len(nw.Conns) > 0 {
		c := nw.Conns[0]
		return resolved{Host: c.Host, AP: c.AP, AddrGroups: nw.AddrGroups, DLAuthed: true, NWAuthed: reqNW != 0}
	}

	if !p.cfg.LookupUnauthDst {
		return resolved{Host: intern.Unauthenticated, AddrGroups: nw.AddrGroups}
	}

	name, err := p.dir.DiscoveredHostName(ctx, dl.Dladdr)
	if err != nil || name == "" {
		return resolved{Host: intern.Unauthenticated, AddrGroups: nw.AddrGroups}
	}
	hostID, err := p.in.GetID(name, intern.TagHost, false)
	if err != nil {
		return resolved{Host: intern.Unauthenticated, AddrGroups: nw.AddrGroups}
	}
	return resolved{Host: hostID, AddrGroups: nw.AddrGroups}
}

func (p *Pipeline) shouldAutoAuth(dladdr uint64) bool {
	if hoststate.IsInternalDladdr(dladdr) {
		return true
	}
	return p.cfg.AutoAuthHosts != nil && p.cfg.AutoAuthHosts(dladdr)
}

func findAtLocation(nw *hoststate.NWEntry, loc uint64) *hoststate.Connector {
	for _, c := range nw.Conns {
		if c.Location == loc {
			return c
		}
	}
	return nil
}
