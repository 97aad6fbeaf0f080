// Package topology answers spec §4.2's "is this port internal to the
// topology" question, used by primary selection (non-internal connectors
// precede internal ones) and by the pipeline's unicast resolution
// fallback. Grounded on the teacher's ovsnl package (genetlink.Dial,
// VportService's vport-type enumeration).
package topology

import (
	"context"
	"sync"
)

// Resolver answers whether (dpid, port) faces another managed switch
// (internal) rather than an end host.
type Resolver interface {
	IsInternal(ctx context.Context, dpid uint64, port uint16) (bool, error)
}

// StaticResolver is backed by an explicit map, for controllers that learn
// port roles from the topology/routing module (spec §1's "out of scope"
// collaborator) rather than by querying a colocated vswitch directly.
// This is authcore's default wiring, per SPEC_FULL.md §4.10.
type StaticResolver struct {
	mu       sync.RWMutex
	internal map[uint64]map[uint16]bool
}

// NewStaticResolver builds an empty StaticResolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{internal: make(map[uint64]map[uint16]bool)}
}

// Set records whether (dpid, port) is internal.
func (r *StaticResolver) Set(dpid uint64, port uint16, internal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.internal[dpid]
	if !ok {
		m = make(map[uint16]bool)
		r.internal[dpid] = m
	}
	m[port] = internal
}

// IsInternal reports the recorded value for (dpid, port), defaulting to
// false (treat unknown ports as host-facing) when never set.
func (r *StaticResolver) IsInternal(ctx context.Context, dpid uint64, port uint16) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.internal[dpid][port], nil
}
