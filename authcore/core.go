// Package authcore wires the authenticator's components — host/location
// store, interner, pipeline, sweep, poisoning, directory/bindings clients —
// into one Core, and realizes spec.md §5's single dispatch loop as one Go
// goroutine draining a channel of events.WorkItem. Grounded on the
// teacher's functional-option construction style (see directory.Client's
// Option/WithDebugLog) generalized across every collaborator.
package authcore

import (
	"context"
	"net"
	"time"

	"github.com/ovsauth/authcore/authevent"
	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/bindings"
	"github.com/ovsauth/authcore/directory"
	"github.com/ovsauth/authcore/events"
	"github.com/ovsauth/authcore/hoststate"
	"github.com/ovsauth/authcore/intern"
	"github.com/ovsauth/authcore/ofp"
	"github.com/ovsauth/authcore/pipeline"
	"github.com/ovsauth/authcore/poison"
	"github.com/ovsauth/authcore/sweep"
	"github.com/ovsauth/authcore/topology"
)

// Disposition reports how an authenticator operation was handled, per
// SPEC_FULL.md §7: a typed outcome instead of a propagated Go error for
// internal invariant violations. It is authevent's Disposition verbatim —
// authcore is the only place callers are expected to see it.
type Disposition = authevent.Disposition

const (
	OK           = authevent.OK
	Dropped      = authevent.Dropped
	SelfRepaired = authevent.SelfRepaired
)

// UserEventLog is the external join/leave audit log, per SPEC_FULL.md §6A.
type UserEventLog interface {
	LogHostJoin(ctx context.Context, ev events.HostEvent) error
	LogHostLeave(ctx context.Context, ev events.HostEvent) error
	LogUserJoin(ctx context.Context, ev events.UserEvent) error
	LogUserLeave(ctx context.Context, ev events.UserEvent) error
}

// Core bootstraps and owns every authenticator component and its single
// dispatch goroutine.
type Core struct {
	cfg Config
	log authlog.Logger
	now func() time.Time

	store *hoststate.Store
	in    *intern.Interner
	bus   *events.Bus

	dir      directory.Service
	bindings bindings.Storage
	topo     topology.Resolver
	poisoner *poison.Poisoner
	pl       *pipeline.Pipeline
	sweeper  *sweep.Sweeper
	userLog  UserEventLog

	switchGroups   *hoststate.GroupInfoMap
	locationGroups *hoststate.GroupInfoMap
	pseudoGroups   map[string]intern.ID

	work chan events.WorkItem
}

// Option configures a Core at construction time.
type Option func(*Core)

// WithLogger overrides the logger every component uses. Default discards.
func WithLogger(l authlog.Logger) Option { return func(c *Core) { c.log = l } }

// WithDirectory supplies the directory-service collaborator. Default is a
// no-op directory that answers every lookup negatively/empty.
func WithDirectory(d directory.Service) Option { return func(c *Core) { c.dir = d } }

// WithBindings supplies the bindings-storage collaborator. Default is a
// no-op sink.
func WithBindings(b bindings.Storage) Option { return func(c *Core) { c.bindings = b } }

// WithTopology overrides the default topology.StaticResolver, e.g. with a
// topology.NetlinkResolver when colocated with the vswitch (SPEC_FULL.md
// §4.10).
func WithTopology(r topology.Resolver) Option { return func(c *Core) { c.topo = r } }

// WithTransport supplies the OpenFlow send path poisoning uses.
func WithTransport(t poison.Transport) Option {
	return func(c *Core) { c.poisoner = poison.New(t, c.log) }
}

// WithUserEventLog supplies the external join/leave audit log.
func WithUserEventLog(l UserEventLog) Option { return func(c *Core) { c.userLog = l } }

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option { return func(c *Core) { c.now = now } }

type noopDirectory struct{}

func (noopDirectory) IsRouter(context.Context, uint64) (bool, error)  { return false, nil }
func (noopDirectory) IsGateway(context.Context, uint64) (bool, error) { return false, nil }
func (noopDirectory) SwitchGroups(context.Context, uint64) ([]string, error) { return nil, nil }
func (noopDirectory) LocationGroups(context.Context, uint64, uint16) ([]string, error) {
	return nil, nil
}
func (noopDirectory) HostGroups(context.Context, string) ([]string, error)   { return nil, nil }
func (noopDirectory) UserGroups(context.Context, string) ([]string, error)   { return nil, nil }
func (noopDirectory) DladdrGroups(context.Context, uint64) ([]string, error) { return nil, nil }
func (noopDirectory) NwaddrGroups(context.Context, uint32) ([]string, error) { return nil, nil }
func (noopDirectory) DiscoveredSwitchName(context.Context, uint64) (string, error) {
	return "", nil
}
func (noopDirectory) DiscoveredLocationName(context.Context, uint64, uint16) (string, error) {
	return "", nil
}
func (noopDirectory) DiscoveredHostName(context.Context, uint64) (string, error) { return "", nil }
func (noopDirectory) ModifyHostGroup(context.Context, string, string, bool) error { return nil }

type noopBindings struct{}

func (noopBindings) StoreBindingState(context.Context, uint64, uint16, uint64, uint32, string) error {
	return nil
}
func (noopBindings) RemoveBindingState(context.Context, uint64, uint16, uint64, uint32) error {
	return nil
}
func (noopBindings) RemoveMachine(context.Context, uint64, uint16, uint64) error { return nil }
func (noopBindings) AddNameForLocation(context.Context, uint64, uint16, string) error {
	return nil
}
func (noopBindings) RemoveNameForLocation(context.Context, uint64, uint16, string) error {
	return nil
}

// pseudoPrincipalNames are the four process-wide UNAUTHENTICATED-* group
// pseudo-principals authenticator.cc/authenticator-names.cc bootstrap once
// and never tear down, per SPEC_FULL.md §6C.
var pseudoPrincipalNames = []struct {
	name string
	tag  intern.SuffixTag
}{
	{"discovered;unauthenticated-switch", intern.TagSwitchGroup},
	{"discovered;unauthenticated-location", intern.TagLocationGroup},
	{"discovered;unauthenticated-host", intern.TagHostGroup},
	{"discovered;unauthenticated-user", intern.TagUserGroup},
}

// New constructs a Core from cfg, applying opts over the defaults
// (noop directory/bindings, discarding logger, topology.StaticResolver,
// real wall clock).
func New(cfg Config, opts ...Option) *Core {
	c := &Core{
		cfg:            cfg,
		log:            authlog.Discard(),
		now:            time.Now,
		store:          hoststate.NewStore(),
		bus:            events.NewBus(nil),
		dir:            noopDirectory{},
		bindings:       noopBindings{},
		topo:           topology.NewStaticResolver(),
		switchGroups:   hoststate.NewGroupInfoMap(),
		locationGroups: hoststate.NewGroupInfoMap(),
		work:           make(chan events.WorkItem, 256),
	}
	for _, o := range opts {
		o(c)
	}
	c.in = intern.New(cfg.nameTimeout(), intern.WithNow(c.now), intern.WithLogger(c.log))
	if c.poisoner == nil {
		c.poisoner = poison.New(noopTransport{}, c.log)
	}
	c.bus = events.NewBus(c.now)

	c.pseudoGroups = make(map[string]intern.ID, len(pseudoPrincipalNames))
	for _, p := range pseudoPrincipalNames {
		id, _ := c.in.GetID(p.name, p.tag, true)
		c.pseudoGroups[p.name] = id
	}

	internalSubnets := parseSubnets(cfg.InternalSubnets)
	c.pl = pipeline.New(c.store, c.in, c.dir, c.topo, c.bus, c.log, pipeline.Config{
		AutoAuthHosts:   autoAuthFunc(cfg.AutoAuthHosts),
		LookupUnauthDst: cfg.LookupUnauthDst,
		InternalSubnets: internalSubnets,
	})
	c.sweeper = sweep.New(c.store, c.in, c.bus, c.log, sweep.Config{
		DefaultInactivity: cfg.DefaultHostTimeoutSeconds,
		AddrTimeout:       cfg.addrTimeout(),
	})

	if c.userLog != nil {
		c.bus.Subscribe(c.forwardToUserLog)
	}

	return c
}

func autoAuthFunc(enabled bool) func(uint64) bool {
	if !enabled {
		return nil
	}
	return func(uint64) bool { return true }
}

func parseSubnets(cidrs []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, s := range cidrs {
		if _, n, err := net.ParseCIDR(s); err == nil {
			out = append(out, n)
		}
	}
	return out
}

type noopTransport struct{}

func (noopTransport) SendOpenFlow(context.Context, uint64, []byte) error { return nil }

func (c *Core) forwardToUserLog(ev any) {
	ctx := context.Background()
	switch e := ev.(type) {
	case events.HostEvent:
		var err error
		if e.Kind == events.Join {
			err = c.userLog.LogHostJoin(ctx, e)
		} else {
			err = c.userLog.LogHostLeave(ctx, e)
		}
		if err != nil {
			c.log.Warn("authcore: user event log failed", "kind", "host", "err", err)
		}
	case events.UserEvent:
		var err error
		if e.Kind == events.Join {
			err = c.userLog.LogUserJoin(ctx, e)
		} else {
			err = c.userLog.LogUserLeave(ctx, e)
		}
		if err != nil {
			c.log.Warn("authcore: user event log failed", "kind", "user", "err", err)
		}
	}
}

func (c *Core) nowUnix() int64 { return c.now().Unix() }

// Run drains the dispatch channel until ctx is canceled, performing a
// sweep pass every ExpireTimerSeconds. This is the one goroutine every
// store mutation happens on, per SPEC_FULL.md §5A.
func (c *Core) Run(ctx context.Context) {
	interval := c.cfg.expireTimer()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case wi := <-c.work:
			wi()
			c.bus.PumpDue()
		case <-ticker.C:
			c.sweeper.Sweep(c.nowUnix())
			c.bus.PumpDue()
		}
	}
}

// Submit enqueues wi to run on the dispatch goroutine. Safe to call from
// any goroutine (e.g. a directory RPC's completion callback).
func (c *Core) Submit(wi events.WorkItem) {
	c.work <- wi
}

// HandleOpenFlowMessage decodes raw and dispatches it onto the dispatch
// goroutine, per spec.md §4.8's parser dispatch table.
func (c *Core) HandleOpenFlowMessage(dpid uint64, raw []byte) {
	msg, err := ofp.Decode(c.log, raw)
	if err != nil {
		return // already logged by ofp.Decode; malformed/uninteresting message
	}
	switch m := msg.(type) {
	case *ofp.PacketIn:
		c.Submit(func() {
			c.pl.HandlePacketIn(context.Background(), dpid, m.InPort, m.Data, c.nowUnix())
		})
	case *ofp.ErrorMsg:
		c.log.Error("authcore: switch reported error", "dpid", dpid, "type", m.Type, "code", m.Code)
	default:
		// PORT_STATUS/FEATURES_REPLY/FLOW_REMOVED/STATS_REPLY/ECHO_REQUEST
		// are surfaced by ofp.Decode but don't yet drive a cascade beyond
		// logging; directory-originated reactions (spec §4.5) are the
		// authoritative source for location/group changes.
		c.log.Debug("authcore: received OpenFlow message", "dpid", dpid, "type", typeName(m))
	}
}

func typeName(m any) string {
	switch m.(type) {
	case *ofp.PortStatus:
		return "PORT_STATUS"
	case *ofp.FeaturesReply:
		return "FEATURES_REPLY"
	case *ofp.FlowRemoved:
		return "FLOW_REMOVED"
	case *ofp.StatsReply:
		return "STATS_REPLY"
	case *ofp.EchoRequest:
		return "ECHO_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// Authenticate is the programmatic equivalent of spec.md §6B's scripting
// hook: apply an AUTHENTICATE tuple with already-resolved names, bypassing
// the wire pipeline entirely. It must be called from the dispatch
// goroutine (e.g. from inside a Submit'd WorkItem), matching every other
// store mutation's single-goroutine discipline.
func (c *Core) Authenticate(t authevent.Tuple) (Disposition, error) {
	t.Action = events.Authenticate
	return c.applyAuthEvent(t)
}

// Deauthenticate is the programmatic equivalent for DEAUTHENTICATE.
func (c *Core) Deauthenticate(t authevent.Tuple) (Disposition, error) {
	t.Action = events.Deauthenticate
	return c.applyAuthEvent(t)
}

func (c *Core) applyAuthEvent(t authevent.Tuple) (Disposition, error) {
	res, err := authevent.Apply(c.in, c.store, t, c.nowUnix())
	if err != nil {
		c.log.Error("authcore: auth event failed", "err", err)
		return Dropped, err
	}
	for _, he := range res.HostEvents {
		c.bus.Post(he)
	}
	for _, ue := range res.UserEvents {
		c.bus.Post(ue)
	}
	if res.Poisoned && res.PreviousPrimary != nil {
		c.poisoner.Poison(context.Background(), t.Dpid, t.Dladdr, t.Nwaddr, res.PreviousPrimary)
	}
	return res.Disposition, nil
}

// Store exposes the host/location store for read-only inspection (tests,
// admin tooling). Mutating it outside the dispatch goroutine breaks
// spec.md §5's serialization guarantee.
func (c *Core) Store() *hoststate.Store { return c.store }

// Interner exposes the name/ID interner for read-only inspection.
func (c *Core) Interner() *intern.Interner { return c.in }

// Bus exposes the event bus so callers can Subscribe their own sinks.
func (c *Core) Bus() *events.Bus { return c.bus }
