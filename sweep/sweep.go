// Package sweep implements spec §4.7's periodic timer pass: evicting
// hard-timed-out and inactive connectors, pruning emptied NWEntries and
// DLEntries, and reclaiming expired interner entries. Grounded on
// authevent's leave-host/leave-user bookkeeping (decrement groups then the
// principal itself, post a Leave event). The authenticator core calls Sweep
// from its dispatch loop on a time.Ticker.
package sweep

import (
	"time"

	"github.com/ovsauth/authcore/authlog"
	"github.com/ovsauth/authcore/events"
	"github.com/ovsauth/authcore/hoststate"
	"github.com/ovsauth/authcore/intern"
)

// Config holds the timer-sweep parameters spec §6 names.
type Config struct {
	// DefaultInactivity is default-host-timeout: the inactivity window
	// applied to a connector whose own InactivityLen is
	// hoststate.InactivityDefault.
	DefaultInactivity uint32
	// AddrTimeout is addr-timeout: the grace period an emptied NWEntry
	// survives, unpruned, before the next sweep removes it.
	AddrTimeout time.Duration
}

// Sweeper performs the periodic connector-expiry and structure-pruning
// pass over a Store.
type Sweeper struct {
	store *hoststate.Store
	in    *intern.Interner
	bus   *events.Bus
	log   authlog.Logger
	cfg   Config
}

// New constructs a Sweeper. log defaults to a discarding logger if nil.
func New(store *hoststate.Store, in *intern.Interner, bus *events.Bus, log authlog.Logger, cfg Config) *Sweeper {
	if log == nil {
		log = authlog.Discard()
	}
	return &Sweeper{store: store, in: in, bus: bus, log: log, cfg: cfg}
}

// Sweep performs one pass at wall-clock second now, per spec §4.7. The
// authenticator core calls this once per expire-timer tick.
func (s *Sweeper) Sweep(now int64) {
	s.store.Walk(func(dl *hoststate.DLEntry) {
		// A locked DLEntry has an in-flight directory round trip holding a
		// reference into it; leave it for the next tick rather than risk
		// pruning out from under a queued continuation.
		if dl.Status.Locked() {
			return
		}
		s.sweepDL(dl, now)
	})
	s.in.ReapExpired()
}

type expiry struct {
	reason string
	nwaddr uint32
}

func (s *Sweeper) sweepDL(dl *hoststate.DLEntry, now int64) {
	// A location with at least one connector that is neither hard- nor
	// idle-expired protects every connector sharing that location from
	// inactivity eviction: inactivity does not race the primary.
	activeLocation := make(map[uint64]bool)
	for _, nw := range dl.NWs {
		for _, c := range nw.Conns {
			if !c.HardExpiredAt(now) && !c.IdleAt(now, s.cfg.DefaultInactivity) {
				activeLocation[c.Location] = true
			}
		}
	}

	// owns_dl shares one Connector pointer between two NWEntries (the real
	// nwaddr and the nwaddr=0 entry), so collect expirations by pointer
	// identity first and evict each connector exactly once.
	expired := make(map[*hoststate.Connector]expiry)
	for _, nw := range dl.NWs {
		for _, c := range nw.Conns {
			reason, yes := s.expiryReason(c, now, activeLocation)
			if !yes {
				continue
			}
			if ex, ok := expired[c]; ok {
				if ex.nwaddr == 0 && nw.Nwaddr != 0 {
					ex.nwaddr = nw.Nwaddr
					expired[c] = ex
				}
				continue
			}
			expired[c] = expiry{reason: reason, nwaddr: nw.Nwaddr}
		}
	}

	for c, ex := range expired {
		s.evict(dl, c, ex.reason, ex.nwaddr)
	}

	for _, nw := range dl.NWs {
		kept := nw.Conns[:0]
		for _, c := range nw.Conns {
			if _, gone := expired[c]; gone {
				continue
			}
			kept = append(kept, c)
		}
		nw.Conns = kept

		if len(nw.Conns) == 0 {
			if nw.Timeout == 0 {
				nw.Timeout = now + int64(s.cfg.AddrTimeout/time.Second)
			}
		} else {
			nw.Timeout = 0
		}

		s.store.PruneEmptyNW(dl, nw, now, false)
	}

	s.store.PruneEmptyDL(dl, now)
}

// expiryReason reports why c should leave, if at all. A hard timeout always
// evicts; inactivity evicts only when no sibling connector at the same
// location is still active.
func (s *Sweeper) expiryReason(c *hoststate.Connector, now int64, activeLocation map[uint64]bool) (reason string, expired bool) {
	if c.HardExpiredAt(now) {
		return events.ReasonHardTimeout, true
	}
	if c.IdleAt(now, s.cfg.DefaultInactivity) && !activeLocation[c.Location] {
		return events.ReasonInactivity, true
	}
	return "", false
}

// evict decrements c's host and user principals (and their groups) and
// posts the corresponding Leave events, mirroring authevent's leaveHost/
// leaveUser bookkeeping.
func (s *Sweeper) evict(dl *hoststate.DLEntry, c *hoststate.Connector, reason string, nwaddr uint32) {
	dpid, port := hoststate.Dpid(c.Location), hoststate.Port(c.Location)

	if c.Host != intern.Unauthenticated {
		name := s.in.Name(c.Host)
		for _, g := range c.HostGroups {
			s.in.DecrementID(g)
		}
		s.in.DecrementID(c.Host)
		s.bus.Post(events.HostEvent{
			Kind: events.Leave, Hostname: name,
			Dpid: dpid, Port: port, Dladdr: dl.Dladdr, Nwaddr: nwaddr, Reason: reason,
		})
	}

	for _, ub := range c.Users {
		name := s.in.Name(ub.User)
		for _, g := range ub.Groups {
			s.in.DecrementID(g)
		}
		s.in.DecrementID(ub.User)
		s.bus.Post(events.UserEvent{
			Kind: events.Leave, Username: name,
			Dpid: dpid, Port: port, Dladdr: dl.Dladdr, Nwaddr: nwaddr, Reason: reason,
		})
	}

	s.log.Debug("connector expired", "dpid", dpid, "port", port, "dladdr", dl.Dladdr, "nwaddr", nwaddr, "reason", reason)
}
