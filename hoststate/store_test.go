package hoststate

import "testing"

func TestGetOrCreateDLLocksFreshEntry(t *testing.T) {
	s := NewStore()
	dl, created := s.GetOrCreateDL(0x001122334455)
	if !created {
		t.Fatalf("expected fresh DLEntry")
	}
	if !dl.Status.Locked() {
		t.Fatalf("fresh DLEntry should start locked pending directory lookups")
	}

	dl2, created2 := s.GetOrCreateDL(0x001122334455)
	if created2 {
		t.Fatalf("expected existing DLEntry to be reused")
	}
	if dl2 != dl {
		t.Fatalf("expected same pointer back")
	}
}

func TestGetOrCreateNWSharesDLLock(t *testing.T) {
	s := NewStore()
	dl, _ := s.GetOrCreateDL(1)
	dl.Status.Unlock()

	nw, created := s.GetOrCreateNW(dl, 10)
	if !created {
		t.Fatalf("expected fresh NWEntry")
	}
	if nw.Status != dl.Status {
		t.Fatalf("NWEntry.Status must alias DLEntry.Status (invariant 4)")
	}
	if !dl.Status.Locked() {
		t.Fatalf("creating an NWEntry should lock the shared status")
	}
}

func TestZeroNWEntryAliasesDLZero(t *testing.T) {
	s := NewStore()
	dl, _ := s.GetOrCreateDL(1)
	dl.Status.Unlock()

	zero, _ := s.GetOrCreateNW(dl, 0)
	if dl.Zero != zero {
		t.Fatalf("DLEntry.Zero should alias the nwaddr=0 NWEntry")
	}
}

func TestPrimarySelectionNonInternalFirst(t *testing.T) {
	s := NewStore()
	dl, _ := s.GetOrCreateDL(1)
	dl.Status.Unlock()
	nw, _ := s.GetOrCreateNW(dl, 10)

	internal := &Connector{Location: Location(1, 1), IsInternal: true}
	external := &Connector{Location: Location(1, 2), IsInternal: false}

	s.AddConnector(nw, internal)
	s.AddConnector(nw, external)

	if nw.Conns[0] != external {
		t.Fatalf("expected non-internal connector first, got %+v", nw.Conns[0])
	}
}

func TestPromoteToPrimarySplicesFrontAndReportsPrevious(t *testing.T) {
	s := NewStore()
	dl, _ := s.GetOrCreateDL(1)
	dl.Status.Unlock()
	nw, _ := s.GetOrCreateNW(dl, 10)

	l1 := &Connector{Location: Location(1, 1)}
	l2 := &Connector{Location: Location(1, 2)}
	s.AddConnector(nw, l1)
	s.AddConnector(nw, l2)

	prev := s.PromoteToPrimary(nw, l2)
	if prev != l1 {
		t.Fatalf("expected previous primary l1, got %+v", prev)
	}
	if nw.Conns[0] != l2 {
		t.Fatalf("expected l2 promoted to front")
	}

	// Promoting the already-primary connector reports no change.
	if prev := s.PromoteToPrimary(nw, l2); prev != nil {
		t.Fatalf("expected no previous primary when already primary, got %+v", prev)
	}
}

func TestNwhostsHeadIsMostRecentlyAuthenticated(t *testing.T) {
	s := NewStore()
	dlA, _ := s.GetOrCreateDL(1)
	dlA.Status.Unlock()
	dlB, _ := s.GetOrCreateDL(2)
	dlB.Status.Unlock()

	nwA, _ := s.GetOrCreateNW(dlA, 10)
	nwB, _ := s.GetOrCreateNW(dlB, 10)

	primary, ok := s.PrimaryFor(10)
	if !ok || primary != nwA {
		t.Fatalf("expected nwA as initial primary (first authenticated)")
	}

	s.PromoteNWHost(nwB)
	primary, ok = s.PrimaryFor(10)
	if !ok || primary != nwB {
		t.Fatalf("expected nwB promoted to primary")
	}
}

func TestPruneEmptyNWForceRemovesUnlockedEmptyEntry(t *testing.T) {
	s := NewStore()
	dl, _ := s.GetOrCreateDL(1)
	dl.Status.Unlock()
	nw, _ := s.GetOrCreateNW(dl, 10)
	nw.Status.Unlock()

	if s.PruneEmptyNW(dl, nw, 1000, true) == false {
		t.Fatalf("expected force prune of empty unlocked entry to succeed")
	}
	if _, ok := dl.NWs[10]; ok {
		t.Fatalf("expected NWEntry removed from DLEntry")
	}
	if _, ok := s.PrimaryFor(10); ok {
		t.Fatalf("expected nwhosts index cleaned up")
	}
}

func TestPruneEmptyNWRefusesWhileLocked(t *testing.T) {
	s := NewStore()
	dl, _ := s.GetOrCreateDL(1) // still locked
	nw, _ := s.GetOrCreateNW(dl, 10)

	if s.PruneEmptyNW(dl, nw, 1000, true) {
		t.Fatalf("expected prune to refuse while locked")
	}
}

func TestPruneEmptyDL(t *testing.T) {
	s := NewStore()
	dl, _ := s.GetOrCreateDL(1)
	dl.Status.Unlock()

	if !s.PruneEmptyDL(dl, 1000) {
		t.Fatalf("expected empty DLEntry to prune")
	}
	if s.Len() != 0 {
		t.Fatalf("expected store empty after pruning, len=%d", s.Len())
	}
}
