package intern

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestGetIDStableOnRepeat(t *testing.T) {
	in := New(120 * time.Second)

	id1, err := in.GetID("alice", TagHost, false)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	id2, err := in.GetID("alice", TagHost, false)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("GetID not stable: %d != %d", id1, id2)
	}
}

func TestGetIDDisambiguatesByTag(t *testing.T) {
	in := New(120 * time.Second)

	host, err := in.GetID("shared", TagHost, true)
	if err != nil {
		t.Fatalf("GetID host: %v", err)
	}
	user, err := in.GetID("shared", TagUser, true)
	if err != nil {
		t.Fatalf("GetID user: %v", err)
	}
	if host == user {
		t.Fatalf("host and user ids collided: %d", host)
	}
}

func TestReservedNamesUnmangled(t *testing.T) {
	in := New(120 * time.Second)

	id, err := in.GetID(NameUnauthenticated, TagHost, true)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	if id != Unauthenticated {
		t.Fatalf("reserved name got mangled: id=%d", id)
	}
}

func TestRenameRoundTrip(t *testing.T) {
	in := New(120 * time.Second)

	orig, err := in.GetID("alice", TagHost, true)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}

	id, collided, ok := in.Rename("alice", "alicia", TagHost)
	if !ok || collided || id != orig {
		t.Fatalf("rename(alice->alicia) = %d,%v,%v", id, collided, ok)
	}
	if got := in.Name(orig); got != "alicia" {
		t.Fatalf("Name after rename = %q", got)
	}

	id, collided, ok = in.Rename("alicia", "alice", TagHost)
	if !ok || collided || id != orig {
		t.Fatalf("rename(alicia->alice) = %d,%v,%v", id, collided, ok)
	}
	if got := in.Name(orig); got != "alice" {
		t.Fatalf("Name after round-trip rename = %q", got)
	}
}

func TestRenameMissingIsNoop(t *testing.T) {
	in := New(120 * time.Second)
	if _, _, ok := in.Rename("ghost", "anything", TagHost); ok {
		t.Fatalf("rename of missing name reported ok")
	}
}

func TestRenameCollisionAbsorbsLoser(t *testing.T) {
	in := New(120 * time.Second)

	winner, err := in.GetID("bob", TagHost, true)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	loser, err := in.GetID("bobby", TagHost, true)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	if winner == loser {
		t.Fatalf("expected distinct ids")
	}

	id, collided, ok := in.Rename("bobby", "bob", TagHost)
	if !ok || !collided {
		t.Fatalf("expected collision reported")
	}
	if id != winner {
		t.Fatalf("collision should resolve to winner's id, got %d want %d", id, winner)
	}
}

func TestDecrementBelowStartIDIsNoop(t *testing.T) {
	in := New(120 * time.Second)
	in.DecrementID(Unauthenticated)
	in.DecrementID(Authenticated)
	in.DecrementID(Unknown)
	// Must not panic and must not touch reserved refcounts (they have none).
}

func TestIDCounterWraps(t *testing.T) {
	in := New(120 * time.Second)
	in.nextID = ^ID(0) // park the counter one slot before it wraps

	last, err := in.GetID("last", TagHost, true)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	if last != ^ID(0) {
		t.Fatalf("expected last id to be max uint32, got %d", last)
	}

	// The next allocation should wrap around to startID, which is free.
	next, err := in.GetID("next", TagHost, true)
	if err != nil {
		t.Fatalf("GetID after wrap: %v", err)
	}
	if next != startID {
		t.Fatalf("expected wrap to startID, got %d", next)
	}
}

func TestReapExpiredRemovesOnlyZeroRefcountPastTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	in := New(1*time.Second, WithNow(func() time.Time { return now }))

	id, err := in.GetID("temp", TagHost, true)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	in.DecrementID(id)

	// Not yet expired.
	if n := in.ReapExpired(); n != 0 {
		t.Fatalf("reaped %d entries before TTL elapsed", n)
	}

	time.Sleep(1100 * time.Millisecond)
	if n := in.ReapExpired(); n != 1 {
		t.Fatalf("expected to reap 1 expired entry, reaped %d", n)
	}
	if got := in.Name(id); got != "" {
		t.Fatalf("expired id still resolves to %q", got)
	}
}

func TestTouchResurrectsDuringWindow(t *testing.T) {
	in := New(50 * time.Millisecond)

	id, err := in.GetID("churn", TagHost, true)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	in.DecrementID(id)

	// A non-incrementing lookup within the TTL window should extend it.
	time.Sleep(30 * time.Millisecond)
	if _, err := in.GetID("churn", TagHost, false); err != nil {
		t.Fatalf("GetID: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if got := in.Name(id); got != "churn" {
		t.Fatalf("resurrected entry vanished early: %q", got)
	}
}

func TestTagRoundTrip(t *testing.T) {
	in := New(120 * time.Second)
	id, err := in.GetID("sw0", TagSwitch, true)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	tag, ok := in.Tag(id)
	if !ok {
		t.Fatalf("Tag not found")
	}
	if diff := cmp.Diff(TagSwitch, tag); diff != "" {
		t.Fatalf("tag mismatch (-want +got):\n%s", diff)
	}
}
