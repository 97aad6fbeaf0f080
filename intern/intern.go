// Package intern implements the authenticator's bidirectional principal and
// group name interner: a string<->uint32 mapping with reference-counted,
// TTL-delayed reclamation and per-category name mangling, grounded on
// authenticator-names.cc.
package intern

import (
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ovsauth/authcore/authlog"
)

// ID is an interned principal or group identifier.
type ID uint32

// Reserved ids, per spec §3.
const (
	Unauthenticated ID = 0
	Authenticated   ID = 1
	Unknown         ID = 2
	startID         ID = 3
)

// Reserved principal names, per spec §6.
const (
	NameUnauthenticated = "discovered;unauthenticated"
	NameAuthenticated   = "discovered;authenticated"
	NameUnknown         = "discovered;unknown"
)

// ReservedGroupSwitchManagementPorts is the one reserved group name.
const ReservedGroupSwitchManagementPorts = "discovered;switch_management_ports"

// SuffixTag disambiguates identically-spelled names across categories by
// being concatenated onto the name before interning.
type SuffixTag string

// Suffix tags, per spec §6. None is used for the three reserved names.
const (
	TagSwitch        SuffixTag = "_s"
	TagLocation      SuffixTag = "_l"
	TagHost          SuffixTag = "_h"
	TagUser          SuffixTag = "_u"
	TagSwitchGroup   SuffixTag = "_sg"
	TagLocationGroup SuffixTag = "_lg"
	TagHostGroup     SuffixTag = "_hg"
	TagUserGroup     SuffixTag = "_ug"
	TagDladdrGroup   SuffixTag = "_dg"
	TagNwaddrGroup   SuffixTag = "_ng"
	TagNone          SuffixTag = ""
)

// ErrIDSpaceExhausted is returned by GetID when it must allocate and every id in
// [startID, math.MaxUint32] is currently live. Per the resolution of open
// question (a) in SPEC_FULL.md §9A, allocation fails loudly instead of
// silently returning Authenticated as a sentinel.
var ErrIDSpaceExhausted = errors.New("intern: id space exhausted")

// entry is one interned id's bookkeeping.
type entry struct {
	id       ID
	name     string
	tag      SuffixTag
	refcount int
}

// Interner is the bidirectional name<->id table described in spec §3/§4.1.
// It is not safe for concurrent use; callers are expected to drive it from
// the authenticator's single dispatch goroutine (SPEC_FULL.md §5A).
type Interner struct {
	nameTimeout time.Duration
	now         func() time.Time
	log         authlog.Logger

	byMangled map[string]*entry
	byID      map[ID]*entry
	nextID    ID

	// reclaim tracks zero-refcount ids that are alive until nameTimeout
	// elapses (spec §3 invariant 7, §9 "Interning with TTL"). Removing an
	// id from reclaim (on resurrection) is a no-op if it already expired
	// out of the cache; sweep.Sweeper performs the actual deletion pass.
	reclaim *lru.LRU[ID, struct{}]
}

// Option configures an Interner at construction time.
type Option func(*Interner)

// WithNow overrides the clock, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(in *Interner) { in.now = now }
}

// WithLogger overrides the logger. The default discards all output.
func WithLogger(l authlog.Logger) Option {
	return func(in *Interner) { in.log = l }
}

// New builds an Interner. nameTimeout is the spec's name-timeout
// configuration value (default 120s).
func New(nameTimeout time.Duration, opts ...Option) *Interner {
	in := &Interner{
		nameTimeout: nameTimeout,
		now:         time.Now,
		log:         authlog.Discard(),
		byMangled:   make(map[string]*entry),
		byID:        make(map[ID]*entry),
		nextID:      startID,
	}
	for _, o := range opts {
		o(in)
	}
	in.reclaim = lru.NewLRU[ID, struct{}](0, nil, nameTimeout)
	in.seedReserved()
	return in
}

func (in *Interner) seedReserved() {
	in.byID[Unauthenticated] = &entry{id: Unauthenticated, name: NameUnauthenticated, tag: TagNone}
	in.byID[Authenticated] = &entry{id: Authenticated, name: NameAuthenticated, tag: TagNone}
	in.byID[Unknown] = &entry{id: Unknown, name: NameUnknown, tag: TagNone}
	in.byMangled[NameUnauthenticated] = in.byID[Unauthenticated]
	in.byMangled[NameAuthenticated] = in.byID[Authenticated]
	in.byMangled[NameUnknown] = in.byID[Unknown]
}

func mangle(name string, tag SuffixTag) string {
	return name + string(tag)
}

func reservedID(name string) (ID, bool) {
	switch name {
	case NameUnauthenticated:
		return Unauthenticated, true
	case NameAuthenticated:
		return Authenticated, true
	case NameUnknown:
		return Unknown, true
	}
	return 0, false
}

// GetID resolves name (mangled with tag) to an id, allocating a fresh one if
// it is not already interned. If incr is true the entry's refcount is
// incremented; otherwise the entry's expiry is refreshed to now+nameTimeout,
// matching get_id's "non-owning lookup" behavior in authenticator-names.cc.
func (in *Interner) GetID(name string, tag SuffixTag, incr bool) (ID, error) {
	if rid, ok := reservedID(name); ok {
		return rid, nil
	}

	key := mangle(name, tag)
	if e, ok := in.byMangled[key]; ok {
		if incr {
			e.refcount++
			in.reclaim.Remove(e.id)
		} else {
			in.touch(e)
		}
		return e.id, nil
	}

	id, err := in.allocate()
	if err != nil {
		return 0, err
	}

	e := &entry{id: id, name: name, tag: tag}
	if incr {
		e.refcount = 1
	}
	in.byMangled[key] = e
	in.byID[id] = e
	if !incr {
		in.touch(e)
	}
	return id, nil
}

// touch resurrects/extends a zero-refcount entry's window, per invariant 7.
func (in *Interner) touch(e *entry) {
	if e.refcount == 0 {
		in.reclaim.Add(e.id, struct{}{})
	}
}

// allocate assigns the next free id, wrapping a 32-bit counter.
func (in *Interner) allocate() (ID, error) {
	start := in.nextID
	for {
		candidate := in.nextID
		if _, live := in.byID[candidate]; !live {
			in.nextID = in.advance(candidate)
			return candidate, nil
		}
		in.nextID = in.advance(candidate)
		if in.nextID == start {
			return 0, ErrIDSpaceExhausted
		}
	}
}

func (in *Interner) advance(id ID) ID {
	if id == ^ID(0) {
		return startID
	}
	return id + 1
}

// DecrementID lowers an id's refcount by one. Ids below startID are no-ops.
// Decrementing an already-zero refcount is a protocol error: it is logged
// and the entry's expiry is re-armed rather than going negative.
func (in *Interner) DecrementID(id ID) {
	if id < startID {
		return
	}
	e, ok := in.byID[id]
	if !ok {
		return
	}
	if e.refcount == 0 {
		in.log.Error("intern: decrement of zero refcount", "id", id, "name", e.name)
		in.touch(e)
		return
	}
	e.refcount--
	if e.refcount == 0 {
		in.touch(e)
	}
}

// Name returns the current display name for id, or "" if unknown.
func (in *Interner) Name(id ID) string {
	e, ok := in.byID[id]
	if !ok {
		return ""
	}
	return e.name
}

// Rename repoints the mangled key for (old name, tag) to new, per spec
// §4.1. An empty new name is a delete request: Rename changes nothing (the
// caller must cascade removal itself) and returns (old's id, false, true).
// If old is not interned under tag, Rename returns (0, false, false).
//
// If the new mangled form already exists, that entry's id "absorbs" old's
// registration (old's mangled key is dropped, its references resolve to the
// winner's id going forward); collided reports this so callers can log it
// per SPEC_FULL.md §9A(b).
func (in *Interner) Rename(old, new string, tag SuffixTag) (id ID, collided bool, ok bool) {
	oldKey := mangle(old, tag)
	e, exists := in.byMangled[oldKey]
	if !exists {
		return 0, false, false
	}
	if new == "" {
		return e.id, false, true
	}

	newKey := mangle(new, tag)
	if winner, already := in.byMangled[newKey]; already && winner.id != e.id {
		delete(in.byMangled, oldKey)
		in.log.Error("intern: rename collision, losing registration dropped",
			"old", old, "new", new, "losing_id", e.id, "winner_id", winner.id)
		return winner.id, true, true
	}

	delete(in.byMangled, oldKey)
	e.name = new
	in.byMangled[newKey] = e
	return e.id, false, true
}

// Tag returns the suffix tag an id was interned under.
func (in *Interner) Tag(id ID) (SuffixTag, bool) {
	e, ok := in.byID[id]
	if !ok {
		return "", false
	}
	return e.tag, true
}

// Refcount reports an id's current reference count, for tests and
// invariant checks.
func (in *Interner) Refcount(id ID) int {
	e, ok := in.byID[id]
	if !ok {
		return 0
	}
	return e.refcount
}

// ReapExpired removes every zero-refcount id whose TTL window has elapsed,
// called by sweep.Sweeper once per expire-timer tick (spec §4.7).
func (in *Interner) ReapExpired() int {
	n := 0
	for id, e := range in.byID {
		if id < startID {
			continue
		}
		if e.refcount != 0 {
			continue
		}
		if _, stillPending := in.reclaim.Get(id); stillPending {
			continue
		}
		key := mangle(e.name, e.tag)
		if cur, ok := in.byMangled[key]; ok && cur.id == id {
			delete(in.byMangled, key)
		}
		delete(in.byID, id)
		n++
	}
	return n
}

// String renders an id for debugging/logging.
func (in *Interner) String(id ID) string {
	return fmt.Sprintf("%s(%d)", in.Name(id), id)
}
