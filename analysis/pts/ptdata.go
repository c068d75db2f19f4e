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

// Kind identifies the backend of a points-to data store
type Kind int

const (
	// MutableKind stores one growable set per key
	MutableKind Kind = iota
	// PersistentKind stores one handle per key into a shared cache of canonical sets
	PersistentKind
	// MutableDiffKind is the differential variant of MutableKind
	MutableDiffKind
	// PersistentDiffKind is the differential variant of PersistentKind
	PersistentDiffKind
	// VersionedKind stores top-level and versioned keys in two stores
	VersionedKind
)

func (k Kind) String() string {
	switch k {
	case MutableKind:
		return "mutable"
	case PersistentKind:
		return "persistent"
	case MutableDiffKind:
		return "mutable-diff"
	case PersistentDiffKind:
		return "persistent-diff"
	case VersionedKind:
		return "versioned"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// PTData is the contract of the points-to data stores. Keys are plain node ids, context-qualified ids or
// location-qualified ids depending on the client.
//
// The sets returned by GetPts are views owned by the store: callers must not modify them, and must clone them if
// they need to keep them across a later mutation of the same key.
type PTData[K comparable] interface {
	// GetPts returns the points-to set of k, the empty set if k has never been seen
	GetPts(k K) *PointsTo

	// AddPts adds obj to the points-to set of k and returns true if it changed
	AddPts(k K, obj NodeID) bool

	// UnionPts adds the points-to set of src to the points-to set of dst and returns true if it changed
	UnionPts(dst, src K) bool

	// UnionPtsSet adds all the elements of s to the points-to set of dst and returns true if it changed
	UnionPtsSet(dst K, s *PointsTo) bool

	// ClearPts removes obj from the points-to set of k
	ClearPts(k K, obj NodeID)

	// ClearFullPts empties the points-to set of k
	ClearFullPts(k K)

	// GetRevPts returns the keys whose points-to set contains obj. It panics if the store was built without reverse
	// mapping.
	GetRevPts(obj NodeID) []K

	// Keys returns all the keys that have a non-empty points-to set
	Keys() []K

	// Kind returns the kind of the backend
	Kind() Kind
}

// DiffPTData is a PTData that also tracks, per key, which part of the points-to set has already been propagated.
type DiffPTData[K comparable] interface {
	PTData[K]

	// ComputeDiffPts sets diff(k) = all \ propa(k), then propa(k) = all. Returns true if the diff is not empty.
	ComputeDiffPts(k K, all *PointsTo) bool

	// GetDiffPts returns the last diff computed for k
	GetDiffPts(k K) *PointsTo

	// UpdatePropaPtsMap intersects propa(dst) with propa(src). Used when a new edge src -> dst is added, so that
	// objects not yet known to be propagated from src are propagated again at dst.
	UpdatePropaPtsMap(src, dst K)

	// ClearPropaPts empties propa(k)
	ClearPropaPts(k K)
}

// VersionedPTData maintains two key spaces: top-level keys K, and version-qualified keys VK.
type VersionedPTData[K comparable, VK comparable] interface {
	PTData[K]

	GetVersionedPts(vk VK) *PointsTo
	AddVersionedPts(vk VK, obj NodeID) bool
	UnionVersionedPtsSet(vk VK, s *PointsTo) bool
	ClearVersionedFullPts(vk VK)

	// UnionTLFromVersioned adds pts(vk) to pts(k)
	UnionTLFromVersioned(k K, vk VK) bool

	// UnionVersionedFromTL adds pts(k) to pts(vk)
	UnionVersionedFromTL(vk VK, k K) bool

	// UnionVersioned adds pts(src) to pts(dst)
	UnionVersioned(dst, src VK) bool

	VersionedKeys() []VK
}
