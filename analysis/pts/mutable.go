// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pts

// Mutable is a PTData where each key owns its own set. Unions are done in place.
type Mutable[K comparable] struct {
	ptsMap map[K]*PointsTo

	// revPtsMap maps an object to the set of keys pointing to it. nil when reverse mapping is disabled.
	revPtsMap map[NodeID]map[K]bool
}

// NewMutable returns an empty mutable store. If rev is true, the store maintains the reverse map of objects to keys.
func NewMutable[K comparable](rev bool) *Mutable[K] {
	m := &Mutable[K]{ptsMap: map[K]*PointsTo{}}
	if rev {
		m.revPtsMap = map[NodeID]map[K]bool{}
	}
	return m
}

// Kind returns MutableKind
func (m *Mutable[K]) Kind() Kind {
	return MutableKind
}

// GetPts returns the points-to set of k. The returned set must not be modified.
func (m *Mutable[K]) GetPts(k K) *PointsTo {
	if s, ok := m.ptsMap[k]; ok {
		return s
	}
	return &PointsTo{}
}

func (m *Mutable[K]) ptsOf(k K) *PointsTo {
	s, ok := m.ptsMap[k]
	if !ok {
		s = &PointsTo{}
		m.ptsMap[k] = s
	}
	return s
}

// AddPts adds obj to pts(k)
func (m *Mutable[K]) AddPts(k K, obj NodeID) bool {
	if !m.ptsOf(k).Insert(obj) {
		return false
	}
	m.addRev(k, obj)
	return true
}

// UnionPts adds pts(src) to pts(dst)
func (m *Mutable[K]) UnionPts(dst, src K) bool {
	s, ok := m.ptsMap[src]
	if !ok {
		return false
	}
	return m.UnionPtsSet(dst, s)
}

// UnionPtsSet adds the elements of s to pts(dst). The reverse map is only updated with the new elements.
func (m *Mutable[K]) UnionPtsSet(dst K, s *PointsTo) bool {
	if s.IsEmpty() {
		return false
	}
	d := m.ptsOf(dst)
	if m.revPtsMap == nil {
		return d.Union(s)
	}
	added := s.Difference(d)
	if added.IsEmpty() {
		return false
	}
	d.Union(added)
	added.ForEach(func(o NodeID) { m.addRev(dst, o) })
	return true
}

// ClearPts removes obj from pts(k)
func (m *Mutable[K]) ClearPts(k K, obj NodeID) {
	if s, ok := m.ptsMap[k]; ok && s.Remove(obj) {
		m.removeRev(k, obj)
	}
}

// ClearFullPts empties pts(k)
func (m *Mutable[K]) ClearFullPts(k K) {
	s, ok := m.ptsMap[k]
	if !ok {
		return
	}
	if m.revPtsMap != nil {
		s.ForEach(func(o NodeID) { m.removeRev(k, o) })
	}
	s.Clear()
}

// GetRevPts returns the keys pointing to obj
func (m *Mutable[K]) GetRevPts(obj NodeID) []K {
	if m.revPtsMap == nil {
		panic("reverse points-to map is not maintained by this store")
	}
	var keys []K
	for k := range m.revPtsMap[obj] {
		keys = append(keys, k)
	}
	return keys
}

// Keys returns all the keys with a non-empty points-to set
func (m *Mutable[K]) Keys() []K {
	var keys []K
	for k, s := range m.ptsMap {
		if !s.IsEmpty() {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *Mutable[K]) addRev(k K, obj NodeID) {
	if m.revPtsMap == nil {
		return
	}
	ks, ok := m.revPtsMap[obj]
	if !ok {
		ks = map[K]bool{}
		m.revPtsMap[obj] = ks
	}
	ks[k] = true
}

func (m *Mutable[K]) removeRev(k K, obj NodeID) {
	if m.revPtsMap == nil {
		return
	}
	delete(m.revPtsMap[obj], k)
}

// MutableDiff is the differential variant of Mutable
type MutableDiff[K comparable] struct {
	*Mutable[K]
	diffPtsMap  map[K]*PointsTo
	propaPtsMap map[K]*PointsTo
}

// NewMutableDiff returns an empty differential mutable store
func NewMutableDiff[K comparable](rev bool) *MutableDiff[K] {
	return &MutableDiff[K]{
		Mutable:     NewMutable[K](rev),
		diffPtsMap:  map[K]*PointsTo{},
		propaPtsMap: map[K]*PointsTo{},
	}
}

// Kind returns MutableDiffKind
func (m *MutableDiff[K]) Kind() Kind {
	return MutableDiffKind
}

// ComputeDiffPts computes diff(k) = all \ propa(k) and sets propa(k) = all
func (m *MutableDiff[K]) ComputeDiffPts(k K, all *PointsTo) bool {
	diff := all.Difference(m.propaPtsMap[k])
	m.diffPtsMap[k] = diff
	m.propaPtsMap[k] = all.Clone()
	return !diff.IsEmpty()
}

// GetDiffPts returns diff(k)
func (m *MutableDiff[K]) GetDiffPts(k K) *PointsTo {
	if s, ok := m.diffPtsMap[k]; ok {
		return s
	}
	return &PointsTo{}
}

// UpdatePropaPtsMap sets propa(dst) = propa(dst) ∩ propa(src)
func (m *MutableDiff[K]) UpdatePropaPtsMap(src, dst K) {
	d, ok := m.propaPtsMap[dst]
	if !ok {
		return
	}
	d.IntersectWith(m.propaPtsMap[src])
}

// ClearPropaPts empties propa(k)
func (m *MutableDiff[K]) ClearPropaPts(k K) {
	delete(m.propaPtsMap, k)
}
