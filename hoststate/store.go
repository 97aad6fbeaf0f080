package hoststate

import (
	"sort"

	"github.com/ovsauth/authcore/intern"
)

// DLEntry is the per-link-layer-address record: its router/gateway flags,
// its network-address map, and the lock guarding all of it (spec §3).
type DLEntry struct {
	Dladdr  uint64
	Status  *UpdateStatus
	Router  bool
	Gateway bool
	NWs     map[uint32]*NWEntry
	Zero    *NWEntry // alias for NWs[0], when present (invariant 6)
}

// NWEntry is the per-(dladdr,nwaddr) connector list plus its addr groups,
// per spec §3. Status is a non-owning view of the owning DLEntry's status
// (invariant 4); NWEntry itself is never locked independently.
type NWEntry struct {
	Nwaddr     uint32
	Dladdr     uint64
	Conns      []*Connector
	Status     *UpdateStatus
	AddrGroups []intern.ID
	Timeout    int64 // wall-clock deadline once empty; 0 = not yet armed
}

// Store is the three-level host/location state store.
type Store struct {
	hosts   map[uint64]*DLEntry
	nwhosts map[uint32][]*NWEntry
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		hosts:   make(map[uint64]*DLEntry),
		nwhosts: make(map[uint32][]*NWEntry),
	}
}

// LookupDL returns the DLEntry for dl, if any.
func (s *Store) LookupDL(dl uint64) (*DLEntry, bool) {
	e, ok := s.hosts[dl]
	return e, ok
}

// GetOrCreateDL returns the DLEntry for dl, creating (and locking) a fresh
// one when absent. The caller is responsible for unlocking a freshly
// created entry once its router/gateway directory lookups return, per
// spec §4.3's get_addr_conns.
func (s *Store) GetOrCreateDL(dl uint64) (entry *DLEntry, created bool) {
	if e, ok := s.hosts[dl]; ok {
		return e, false
	}
	e := &DLEntry{
		Dladdr: dl,
		Status: NewUpdateStatus(),
		NWs:    make(map[uint32]*NWEntry),
	}
	e.Status.Lock()
	s.hosts[dl] = e
	return e, true
}

// GetOrCreateNW returns the NWEntry for (dl.Dladdr, nw), creating (and
// locking) a fresh one when absent. Status is shared with dl per
// invariant 4.
func (s *Store) GetOrCreateNW(dl *DLEntry, nw uint32) (entry *NWEntry, created bool) {
	if e, ok := dl.NWs[nw]; ok {
		return e, false
	}
	e := &NWEntry{
		Nwaddr: nw,
		Dladdr: dl.Dladdr,
		Status: dl.Status,
	}
	dl.Status.Lock()
	dl.NWs[nw] = e
	if nw == 0 {
		dl.Zero = e
	}
	s.indexNWHost(e)
	return e, true
}

func (s *Store) indexNWHost(e *NWEntry) {
	s.nwhosts[e.Nwaddr] = append(s.nwhosts[e.Nwaddr], e)
}

func (s *Store) unindexNWHost(e *NWEntry) {
	list := s.nwhosts[e.Nwaddr]
	for i, cand := range list {
		if cand == e {
			s.nwhosts[e.Nwaddr] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.nwhosts[e.Nwaddr]) == 0 {
		delete(s.nwhosts, e.Nwaddr)
	}
}

// PrimaryFor returns the most-recently-authenticated NWEntry for nw across
// all dladdrs, i.e. nwhosts[nw]'s head, per invariant 5.
func (s *Store) PrimaryFor(nw uint32) (*NWEntry, bool) {
	list := s.nwhosts[nw]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// PromoteNWHost moves e to the head of nwhosts[e.Nwaddr], marking it the
// primary NWEntry for that address across dladdrs.
func (s *Store) PromoteNWHost(e *NWEntry) {
	list := s.nwhosts[e.Nwaddr]
	for i, cand := range list {
		if cand == e {
			if i == 0 {
				return
			}
			copy(list[1:i+1], list[0:i])
			list[0] = e
			return
		}
	}
}

// AddConnector appends conn to e's connector list, ordered per spec §4.2:
// non-internal-port connectors precede internal-port ones. It returns the
// previous primary (e.Conns[0] before insertion) so the caller can decide
// whether poisoning is owed.
func (s *Store) AddConnector(e *NWEntry, conn *Connector) (previousPrimary *Connector) {
	if len(e.Conns) > 0 {
		previousPrimary = e.Conns[0]
	}
	e.Conns = append(e.Conns, conn)
	sort.SliceStable(e.Conns, func(i, j int) bool {
		return !e.Conns[i].IsInternal && e.Conns[j].IsInternal
	})
	return previousPrimary
}

// PromoteToPrimary splices conn to the front of e's connector list, as a
// packet-in match does per spec §4.2. It returns the previous primary (nil
// if conn already was primary or the list was empty), so the caller can
// decide whether to poison it.
func (s *Store) PromoteToPrimary(e *NWEntry, conn *Connector) (previousPrimary *Connector) {
	if len(e.Conns) == 0 {
		return nil
	}
	if e.Conns[0] == conn {
		return nil
	}
	idx := -1
	for i, c := range e.Conns {
		if c == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	previousPrimary = e.Conns[0]
	copy(e.Conns[1:idx+1], e.Conns[0:idx])
	e.Conns[0] = conn
	return previousPrimary
}

// RemoveConnector deletes conn from e's connector list.
func (s *Store) RemoveConnector(e *NWEntry, conn *Connector) (removed bool) {
	for i, c := range e.Conns {
		if c == conn {
			e.Conns = append(e.Conns[:i], e.Conns[i+1:]...)
			return true
		}
	}
	return false
}

// PruneEmptyNW drops e from its DLEntry and the nwhosts index once its
// connector list is empty and its timeout has elapsed (or force is true,
// used by explicit deauth of the whole location). It refuses to prune
// while the entry is locked or has queued waiters, per spec §4.7.
func (s *Store) PruneEmptyNW(dl *DLEntry, e *NWEntry, now int64, force bool) (pruned bool) {
	if len(e.Conns) != 0 {
		return false
	}
	if e.Status.Locked() || e.Status.HasWaiters() {
		return false
	}
	if !force {
		if e.Timeout == 0 || e.Timeout > now {
			return false
		}
	}
	s.unindexNWHost(e)
	delete(dl.NWs, e.Nwaddr)
	if dl.Zero == e {
		dl.Zero = nil
	}
	return true
}

// PruneEmptyDL drops dl once its NWMap is empty, refusing while locked or
// waited-on, per spec §4.7/lifecycle rules.
func (s *Store) PruneEmptyDL(dl *DLEntry, now int64) (pruned bool) {
	if len(dl.NWs) != 0 {
		return false
	}
	if dl.Status.Locked() || dl.Status.HasWaiters() {
		return false
	}
	delete(s.hosts, dl.Dladdr)
	return true
}

// Walk calls fn for every DLEntry in the store; used by the timer sweep.
func (s *Store) Walk(fn func(dl *DLEntry)) {
	for _, dl := range s.hosts {
		fn(dl)
	}
}

// Len reports the number of live DLEntries, for tests.
func (s *Store) Len() int { return len(s.hosts) }
