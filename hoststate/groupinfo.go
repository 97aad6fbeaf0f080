package hoststate

import "github.com/ovsauth/authcore/intern"

// GroupInfo is the per-switch or per-location record of a principal's id
// and its group memberships, per spec §3's GroupInfoMap. It is guarded by
// its own UpdateStatus because refreshing Groups requires a directory
// round trip, independent of any host/location's connector state.
type GroupInfo struct {
	Status *UpdateStatus
	ID      intern.ID
	Groups  []intern.ID
}

// NewGroupInfo returns an unlocked, zero-valued GroupInfo.
func NewGroupInfo() *GroupInfo {
	return &GroupInfo{Status: NewUpdateStatus()}
}

// GroupInfoMap keys switch or location GroupInfos by datapath id (switches)
// or packed Location (locations), per spec §3.
type GroupInfoMap struct {
	byKey map[uint64]*GroupInfo
}

// NewGroupInfoMap constructs an empty map.
func NewGroupInfoMap() *GroupInfoMap {
	return &GroupInfoMap{byKey: make(map[uint64]*GroupInfo)}
}

// GetOrCreate returns the GroupInfo for key, creating (and locking) a
// fresh one when absent.
func (m *GroupInfoMap) GetOrCreate(key uint64) (info *GroupInfo, created bool) {
	if g, ok := m.byKey[key]; ok {
		return g, false
	}
	g := NewGroupInfo()
	g.Status.Lock()
	m.byKey[key] = g
	return g, true
}

// Lookup returns the GroupInfo for key, if any.
func (m *GroupInfoMap) Lookup(key uint64) (*GroupInfo, bool) {
	g, ok := m.byKey[key]
	return g, ok
}

// Delete removes key's GroupInfo, used when a switch or location itself is
// torn down.
func (m *GroupInfoMap) Delete(key uint64) {
	delete(m.byKey, key)
}
