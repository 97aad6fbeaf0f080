package hoststate

import "github.com/ovsauth/authcore/intern"

// MergeGroupLists performs a deduplicating N-way merge of already-sorted id
// slices, per spec §4.2's merge_group_lists. Used to compose hostgroups
// (switch ∪ location ∪ host) and addr_groups (dladdr-group ∪ nwaddr-group).
func MergeGroupLists(lists ...[]intern.ID) []intern.ID {
	// Total candidate count, for a single allocation.
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]intern.ID, 0, n)

	idx := make([]int, len(lists))
	for {
		var (
			have    bool
			minID   intern.ID
			minList int
		)
		for i, l := range lists {
			if idx[i] >= len(l) {
				continue
			}
			v := l[idx[i]]
			if !have || v < minID {
				have, minID, minList = true, v, i
			}
		}
		if !have {
			break
		}
		if len(out) == 0 || out[len(out)-1] != minID {
			out = append(out, minID)
		}
		idx[minList]++
	}
	return out
}

// IsSortedUnique reports whether ids is strictly ascending, per invariant 1.
func IsSortedUnique(ids []intern.ID) bool {
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			return false
		}
	}
	return true
}
