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

import "fmt"

// Handle identifies a canonical set in a PersistentCache. Handle 0 is the empty set.
type Handle uint32

// EmptyHandle is the handle of the empty set in every cache
const EmptyHandle Handle = 0

type handlePair struct {
	a, b Handle
}

func unordered(a, b Handle) handlePair {
	if a > b {
		a, b = b, a
	}
	return handlePair{a, b}
}

// CacheStats records the memoization statistics of a PersistentCache
type CacheStats struct {
	UnionHits          int
	UnionMisses        int
	IntersectionHits   int
	IntersectionMisses int
	ComplementHits     int
	ComplementMisses   int
}

// PersistentCache is an arena of canonical points-to sets. Every distinct set is stored once and identified by a
// handle; set operations on handles are memoized.
type PersistentCache struct {
	sets  []*PointsTo
	index map[string]Handle

	unions        map[handlePair]Handle
	intersections map[handlePair]Handle
	complements   map[handlePair]Handle // ordered pair: a \ b

	// Check enables the identity consistency check on every new set
	Check bool

	Stats CacheStats
}

// NewPersistentCache returns a cache containing only the empty set
func NewPersistentCache() *PersistentCache {
	return &PersistentCache{
		sets:          []*PointsTo{{}},
		index:         map[string]Handle{"": EmptyHandle},
		unions:        map[handlePair]Handle{},
		intersections: map[handlePair]Handle{},
		complements:   map[handlePair]Handle{},
	}
}

// Get returns the canonical set of h. The set is shared and must not be modified.
func (c *PersistentCache) Get(h Handle) *PointsTo {
	if int(h) >= len(c.sets) {
		panic(fmt.Sprintf("invalid points-to handle %d (cache size %d)", h, len(c.sets)))
	}
	return c.sets[h]
}

// Len returns the number of distinct sets in the cache
func (c *PersistentCache) Len() int {
	return len(c.sets)
}

// Emplace returns the handle of the set with the same elements as s, adding a copy of s to the cache if needed.
func (c *PersistentCache) Emplace(s *PointsTo) Handle {
	key := s.key()
	if h, ok := c.index[key]; ok {
		if c.Check && !c.sets[h].Equals(s) {
			panic(fmt.Sprintf("points-to cache identity violation: handle %d is %s, expected %s", h, c.sets[h], s))
		}
		return h
	}
	h := Handle(len(c.sets))
	c.sets = append(c.sets, s.Clone())
	c.index[key] = h
	if c.Check {
		c.checkUnique(h)
	}
	return h
}

// checkUnique panics if the set of h is equal to the set of another handle
func (c *PersistentCache) checkUnique(h Handle) {
	for i, s := range c.sets {
		if Handle(i) != h && s.Equals(c.sets[h]) {
			panic(fmt.Sprintf("points-to cache identity violation: handles %d and %d are both %s", i, h, s))
		}
	}
}

// Singleton returns the handle of {obj}
func (c *PersistentCache) Singleton(obj NodeID) Handle {
	return c.Emplace(New(obj))
}

// Union returns the handle of c[a] ∪ c[b]
func (c *PersistentCache) Union(a, b Handle) Handle {
	if a == b || b == EmptyHandle {
		return a
	}
	if a == EmptyHandle {
		return b
	}
	key := unordered(a, b)
	if h, ok := c.unions[key]; ok {
		c.Stats.UnionHits++
		return h
	}
	c.Stats.UnionMisses++
	r := c.Get(a).Clone()
	r.Union(c.Get(b))
	h := c.Emplace(r)
	c.unions[key] = h
	return h
}

// Intersection returns the handle of c[a] ∩ c[b]
func (c *PersistentCache) Intersection(a, b Handle) Handle {
	if a == b {
		return a
	}
	if a == EmptyHandle || b == EmptyHandle {
		return EmptyHandle
	}
	key := unordered(a, b)
	if h, ok := c.intersections[key]; ok {
		c.Stats.IntersectionHits++
		return h
	}
	c.Stats.IntersectionMisses++
	h := c.Emplace(c.Get(a).Intersect(c.Get(b)))
	c.intersections[key] = h
	return h
}

// Complement returns the handle of c[a] \ c[b]
func (c *PersistentCache) Complement(a, b Handle) Handle {
	if a == b || a == EmptyHandle {
		return EmptyHandle
	}
	if b == EmptyHandle {
		return a
	}
	key := handlePair{a, b}
	if h, ok := c.complements[key]; ok {
		c.Stats.ComplementHits++
		return h
	}
	c.Stats.ComplementMisses++
	h := c.Emplace(c.Get(a).Difference(c.Get(b)))
	c.complements[key] = h
	return h
}

// Persistent is a PTData whose keys hold handles into a shared PersistentCache
type Persistent[K comparable] struct {
	cache     *PersistentCache
	ptsMap    map[K]Handle
	revPtsMap map[NodeID]map[K]bool
}

// NewPersistent returns an empty persistent store backed by cache. If cache is nil, a new cache is created.
func NewPersistent[K comparable](cache *PersistentCache, rev bool) *Persistent[K] {
	if cache == nil {
		cache = NewPersistentCache()
	}
	p := &Persistent[K]{cache: cache, ptsMap: map[K]Handle{}}
	if rev {
		p.revPtsMap = map[NodeID]map[K]bool{}
	}
	return p
}

// Kind returns PersistentKind
func (p *Persistent[K]) Kind() Kind {
	return PersistentKind
}

// Cache returns the cache shared by the store
func (p *Persistent[K]) Cache() *PersistentCache {
	return p.cache
}

// Handle returns the handle of pts(k)
func (p *Persistent[K]) Handle(k K) Handle {
	return p.ptsMap[k]
}

// GetPts returns the canonical set of k, which must not be modified
func (p *Persistent[K]) GetPts(k K) *PointsTo {
	return p.cache.Get(p.ptsMap[k])
}

// AddPts adds obj to pts(k)
func (p *Persistent[K]) AddPts(k K, obj NodeID) bool {
	return p.unionHandle(k, p.cache.Singleton(obj))
}

// UnionPts adds pts(src) to pts(dst). The union is memoized on the pair of handles.
func (p *Persistent[K]) UnionPts(dst, src K) bool {
	return p.unionHandle(dst, p.ptsMap[src])
}

// UnionPtsSet adds the elements of s to pts(dst)
func (p *Persistent[K]) UnionPtsSet(dst K, s *PointsTo) bool {
	if s.IsEmpty() {
		return false
	}
	return p.unionHandle(dst, p.cache.Emplace(s))
}

func (p *Persistent[K]) unionHandle(dst K, h Handle) bool {
	old := p.ptsMap[dst]
	n := p.cache.Union(old, h)
	if n == old {
		return false
	}
	p.ptsMap[dst] = n
	if p.revPtsMap != nil {
		p.cache.Get(p.cache.Complement(n, old)).ForEach(func(o NodeID) { p.addRev(dst, o) })
	}
	return true
}

// ClearPts removes obj from pts(k)
func (p *Persistent[K]) ClearPts(k K, obj NodeID) {
	old := p.ptsMap[k]
	n := p.cache.Complement(old, p.cache.Singleton(obj))
	if n != old {
		p.ptsMap[k] = n
		if p.revPtsMap != nil {
			delete(p.revPtsMap[obj], k)
		}
	}
}

// ClearFullPts empties pts(k)
func (p *Persistent[K]) ClearFullPts(k K) {
	old, ok := p.ptsMap[k]
	if !ok {
		return
	}
	if p.revPtsMap != nil {
		p.cache.Get(old).ForEach(func(o NodeID) { delete(p.revPtsMap[o], k) })
	}
	p.ptsMap[k] = EmptyHandle
}

// GetRevPts returns the keys pointing to obj
func (p *Persistent[K]) GetRevPts(obj NodeID) []K {
	if p.revPtsMap == nil {
		panic("reverse points-to map is not maintained by this store")
	}
	var keys []K
	for k := range p.revPtsMap[obj] {
		keys = append(keys, k)
	}
	return keys
}

// Keys returns all the keys with a non-empty points-to set
func (p *Persistent[K]) Keys() []K {
	var keys []K
	for k, h := range p.ptsMap {
		if h != EmptyHandle {
			keys = append(keys, k)
		}
	}
	return keys
}

func (p *Persistent[K]) addRev(k K, obj NodeID) {
	ks, ok := p.revPtsMap[obj]
	if !ok {
		ks = map[K]bool{}
		p.revPtsMap[obj] = ks
	}
	ks[k] = true
}

// PersistentDiff is the differential variant of Persistent. Diff and propagated sets are handles in the same cache.
type PersistentDiff[K comparable] struct {
	*Persistent[K]
	diffPtsMap  map[K]Handle
	propaPtsMap map[K]Handle
}

// NewPersistentDiff returns an empty differential persistent store
func NewPersistentDiff[K comparable](cache *PersistentCache, rev bool) *PersistentDiff[K] {
	return &PersistentDiff[K]{
		Persistent:  NewPersistent[K](cache, rev),
		diffPtsMap:  map[K]Handle{},
		propaPtsMap: map[K]Handle{},
	}
}

// Kind returns PersistentDiffKind
func (p *PersistentDiff[K]) Kind() Kind {
	return PersistentDiffKind
}

// ComputeDiffPts computes diff(k) = all \ propa(k) and sets propa(k) = all
func (p *PersistentDiff[K]) ComputeDiffPts(k K, all *PointsTo) bool {
	allH := p.cache.Emplace(all)
	diff := p.cache.Complement(allH, p.propaPtsMap[k])
	p.diffPtsMap[k] = diff
	p.propaPtsMap[k] = allH
	return diff != EmptyHandle
}

// GetDiffPts returns diff(k)
func (p *PersistentDiff[K]) GetDiffPts(k K) *PointsTo {
	return p.cache.Get(p.diffPtsMap[k])
}

// UpdatePropaPtsMap sets propa(dst) = propa(dst) ∩ propa(src)
func (p *PersistentDiff[K]) UpdatePropaPtsMap(src, dst K) {
	if d, ok := p.propaPtsMap[dst]; ok {
		p.propaPtsMap[dst] = p.cache.Intersection(d, p.propaPtsMap[src])
	}
}

// ClearPropaPts empties propa(k)
func (p *PersistentDiff[K]) ClearPropaPts(k K) {
	delete(p.propaPtsMap, k)
}
