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

// Versioned implements VersionedPTData with two stores, one for top-level keys and one for versioned keys.
// When built persistent, both stores share the same cache.
type Versioned[K comparable, VK comparable] struct {
	PTData[K]
	atPtsData PTData[VK]
}

// NewVersioned returns a versioned store. If persistent is true, both key spaces share cache (a new one if nil).
func NewVersioned[K comparable, VK comparable](persistent bool, cache *PersistentCache) *Versioned[K, VK] {
	if persistent {
		if cache == nil {
			cache = NewPersistentCache()
		}
		return &Versioned[K, VK]{
			PTData:    NewPersistent[K](cache, false),
			atPtsData: NewPersistent[VK](cache, false),
		}
	}
	return &Versioned[K, VK]{
		PTData:    NewMutable[K](false),
		atPtsData: NewMutable[VK](false),
	}
}

// Kind returns VersionedKind
func (v *Versioned[K, VK]) Kind() Kind {
	return VersionedKind
}

// Backend returns the kind of the underlying stores
func (v *Versioned[K, VK]) Backend() Kind {
	return v.PTData.Kind()
}

// GetVersionedPts returns pts(vk)
func (v *Versioned[K, VK]) GetVersionedPts(vk VK) *PointsTo {
	return v.atPtsData.GetPts(vk)
}

// AddVersionedPts adds obj to pts(vk)
func (v *Versioned[K, VK]) AddVersionedPts(vk VK, obj NodeID) bool {
	return v.atPtsData.AddPts(vk, obj)
}

// UnionVersionedPtsSet adds s to pts(vk)
func (v *Versioned[K, VK]) UnionVersionedPtsSet(vk VK, s *PointsTo) bool {
	return v.atPtsData.UnionPtsSet(vk, s)
}

// ClearVersionedFullPts empties pts(vk)
func (v *Versioned[K, VK]) ClearVersionedFullPts(vk VK) {
	v.atPtsData.ClearFullPts(vk)
}

// UnionTLFromVersioned adds pts(vk) to pts(k)
func (v *Versioned[K, VK]) UnionTLFromVersioned(k K, vk VK) bool {
	return v.PTData.UnionPtsSet(k, v.atPtsData.GetPts(vk))
}

// UnionVersionedFromTL adds pts(k) to pts(vk)
func (v *Versioned[K, VK]) UnionVersionedFromTL(vk VK, k K) bool {
	return v.atPtsData.UnionPtsSet(vk, v.PTData.GetPts(k))
}

// UnionVersioned adds pts(src) to pts(dst)
func (v *Versioned[K, VK]) UnionVersioned(dst, src VK) bool {
	return v.atPtsData.UnionPts(dst, src)
}

// VersionedKeys returns the versioned keys with a non-empty set
func (v *Versioned[K, VK]) VersionedKeys() []VK {
	return v.atPtsData.Keys()
}
