package hoststate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ovsauth/authcore/intern"
)

func ids(vs ...int) []intern.ID {
	out := make([]intern.ID, len(vs))
	for i, v := range vs {
		out[i] = intern.ID(v)
	}
	return out
}

func TestMergeGroupListsDedupsThreeWay(t *testing.T) {
	got := MergeGroupLists(ids(1, 3, 5), ids(2, 3, 6), ids(0, 5))
	want := ids(0, 1, 2, 3, 5, 6)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
	if !IsSortedUnique(got) {
		t.Fatalf("merged result not strictly ascending: %v", got)
	}
}

func TestMergeGroupListsEmpty(t *testing.T) {
	got := MergeGroupLists()
	if len(got) != 0 {
		t.Fatalf("expected empty merge, got %v", got)
	}
}

func TestMergeGroupListsSingleList(t *testing.T) {
	got := MergeGroupLists(ids(4, 4, 4))
	// Input is assumed pre-sorted+deduped by caller; a list with repeats
	// still collapses adjacent duplicates.
	want := ids(4)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}
