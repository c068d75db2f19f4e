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

import (
	"encoding/binary"
	"strings"

	"golang.org/x/tools/container/intsets"
)

// NodeID identifies a node of the program assignment graph. Points-to sets contain the ids of memory objects.
type NodeID int

// PointsTo is a set of node ids backed by a sparse bit vector.
// A PointsTo must not be copied by value once used; always pass pointers.
type PointsTo struct {
	s intsets.Sparse
}

// New returns a set containing the ids provided
func New(ids ...NodeID) *PointsTo {
	p := &PointsTo{}
	for _, id := range ids {
		p.s.Insert(int(id))
	}
	return p
}

// Insert adds id to the set and returns true if the set changed
func (p *PointsTo) Insert(id NodeID) bool {
	return p.s.Insert(int(id))
}

// Remove removes id from the set and returns true if the set changed
func (p *PointsTo) Remove(id NodeID) bool {
	return p.s.Remove(int(id))
}

// Has returns true if id is in the set
func (p *PointsTo) Has(id NodeID) bool {
	if p == nil {
		return false
	}
	return p.s.Has(int(id))
}

// Len returns the number of elements in the set
func (p *PointsTo) Len() int {
	if p == nil {
		return 0
	}
	return p.s.Len()
}

// IsEmpty returns true if the set has no element
func (p *PointsTo) IsEmpty() bool {
	return p == nil || p.s.IsEmpty()
}

// Clear removes all elements from the set
func (p *PointsTo) Clear() {
	p.s.Clear()
}

// Union adds all the elements of other to p, and returns true if p changed
func (p *PointsTo) Union(other *PointsTo) bool {
	if other == nil {
		return false
	}
	return p.s.UnionWith(&other.s)
}

// Intersect returns a new set containing the elements that are both in p and other
func (p *PointsTo) Intersect(other *PointsTo) *PointsTo {
	r := &PointsTo{}
	if p == nil || other == nil {
		return r
	}
	r.s.Intersection(&p.s, &other.s)
	return r
}

// IntersectWith keeps only the elements of p that are also in other. Returns true if p changed.
func (p *PointsTo) IntersectWith(other *PointsTo) bool {
	n := p.s.Len()
	if other == nil {
		p.s.Clear()
	} else {
		p.s.IntersectionWith(&other.s)
	}
	return n != p.s.Len()
}

// Difference returns a new set containing the elements of p that are not in other
func (p *PointsTo) Difference(other *PointsTo) *PointsTo {
	r := &PointsTo{}
	if p == nil {
		return r
	}
	if other == nil {
		r.s.Copy(&p.s)
		return r
	}
	r.s.Difference(&p.s, &other.s)
	return r
}

// Intersects returns true if p and other have at least one element in common
func (p *PointsTo) Intersects(other *PointsTo) bool {
	if p == nil || other == nil {
		return false
	}
	return p.s.Intersects(&other.s)
}

// SubsetOf returns true if every element of p is in other
func (p *PointsTo) SubsetOf(other *PointsTo) bool {
	if p.IsEmpty() {
		return true
	}
	if other == nil {
		return false
	}
	return p.s.SubsetOf(&other.s)
}

// Equals returns true if both sets have the same elements
func (p *PointsTo) Equals(other *PointsTo) bool {
	if p.IsEmpty() || other.IsEmpty() {
		return p.IsEmpty() && other.IsEmpty()
	}
	return p.s.Equals(&other.s)
}

// Clone returns a copy of p
func (p *PointsTo) Clone() *PointsTo {
	r := &PointsTo{}
	if p != nil {
		r.s.Copy(&p.s)
	}
	return r
}

// Singleton returns the unique element of the set and true if the set has exactly one element
func (p *PointsTo) Singleton() (NodeID, bool) {
	if p.Len() != 1 {
		return 0, false
	}
	return NodeID(p.s.Min()), true
}

// Elems returns the elements of the set in ascending order
func (p *PointsTo) Elems() []NodeID {
	if p == nil {
		return nil
	}
	var buf [64]int
	xs := p.s.AppendTo(buf[:0])
	res := make([]NodeID, len(xs))
	for i, x := range xs {
		res[i] = NodeID(x)
	}
	return res
}

// ForEach calls f on every element of the set in ascending order. The set must not be modified by f.
func (p *PointsTo) ForEach(f func(NodeID)) {
	if p == nil {
		return
	}
	for _, x := range p.Elems() {
		f(x)
	}
}

// key returns the canonical encoding of the set, used for hash-consing
func (p *PointsTo) key() string {
	if p.IsEmpty() {
		return ""
	}
	var sb strings.Builder
	buf := make([]byte, binary.MaxVarintLen64)
	prev := 0
	var tmp [64]int
	for _, x := range p.s.AppendTo(tmp[:0]) {
		// elements are ascending, encode deltas
		n := binary.PutUvarint(buf, uint64(x-prev))
		sb.Write(buf[:n])
		prev = x
	}
	return sb.String()
}

func (p *PointsTo) String() string {
	if p == nil {
		return "{}"
	}
	return p.s.String()
}
