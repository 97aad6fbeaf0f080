package directory

import (
	"sort"

	"github.com/ovsauth/authcore/intern"
)

// InternSorted interns each name under tag, incrementing its refcount, and
// returns the result deduplicated and sorted ascending, ready to use as a
// Connector.HostGroups or UserBinding.Groups value (invariant 1).
func InternSorted(in *intern.Interner, names []string, tag intern.SuffixTag) ([]intern.ID, error) {
	ids := make([]intern.ID, 0, len(names))
	for _, n := range names {
		id, err := in.GetID(n, tag, true)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || out[len(out)-1] != id {
			out = append(out, id)
		}
	}
	return out, nil
}

// Release decrements the refcount of every id in ids, undoing a prior
// InternSorted call (invariant 2's bookkeeping when a group set changes).
func Release(in *intern.Interner, ids []intern.ID) {
	for _, id := range ids {
		in.DecrementID(id)
	}
}

// ReplaceGroupSet interns newNames under tag, releases every id in old, and
// returns the new sorted id set. An id present in both old and new keeps
// its refcount unchanged (one increment from InternSorted, one decrement
// from the release of old), so callers must not Release(old) again and
// simply discard old.
func ReplaceGroupSet(in *intern.Interner, old []intern.ID, newNames []string, tag intern.SuffixTag) ([]intern.ID, error) {
	fresh, err := InternSorted(in, newNames, tag)
	if err != nil {
		return nil, err
	}
	Release(in, old)
	return fresh, nil
}
