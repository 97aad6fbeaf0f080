package directory

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ovsauth/authcore/intern"
)

func TestInternSortedDedupsAndSorts(t *testing.T) {
	in := intern.New(120 * time.Second)

	ids, err := InternSorted(in, []string{"b", "a", "b", "c"}, intern.TagHostGroup)
	if err != nil {
		t.Fatalf("InternSorted: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 unique ids, got %d: %v", len(ids), ids)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("not strictly ascending: %v", ids)
		}
	}
	// "b" was requested twice: refcount should be 2.
	bID, _ := in.GetID("b", intern.TagHostGroup, false)
	if rc := in.Refcount(bID); rc != 2 {
		t.Fatalf("expected refcount 2 for duplicate request, got %d", rc)
	}
}

func TestReplaceGroupSetReleasesDroppedMembers(t *testing.T) {
	in := intern.New(120 * time.Second)

	old, err := InternSorted(in, []string{"g1", "g2"}, intern.TagHostGroup)
	if err != nil {
		t.Fatalf("InternSorted: %v", err)
	}
	g1 := old[0]

	fresh, err := ReplaceGroupSet(in, old, []string{"g2", "g3"}, intern.TagHostGroup)
	if err != nil {
		t.Fatalf("ReplaceGroupSet: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("expected 2 ids in fresh set, got %v", fresh)
	}
	if in.Refcount(g1) != 0 {
		t.Fatalf("expected dropped group g1 refcount 0, got %d", in.Refcount(g1))
	}
}

func TestInternSortedEmpty(t *testing.T) {
	in := intern.New(120 * time.Second)
	ids, err := InternSorted(in, nil, intern.TagHostGroup)
	if err != nil {
		t.Fatalf("InternSorted: %v", err)
	}
	if diff := cmp.Diff([]intern.ID{}, ids); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
