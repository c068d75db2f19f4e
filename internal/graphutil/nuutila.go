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

package graphutil

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// SCCDetector finds the strongly connected components of a graph with Nuutila's algorithm: a single depth-first
// traversal where the representative of a node is updated lazily by comparing discovery times, and nodes that are
// not roots wait on an auxiliary stack until their root completes.
//
// Nodes are small non-negative integers. The graph is given by a node enumerator and a successor function, which
// lets callers run the detector on a graph that changes between two runs (e.g. a constraint graph being solved).
//
// All the results are invalidated by the next call to Find or FindCandidates.
type SCCDetector struct {
	nodes func() []int
	succs func(int) []int

	visitNum  map[int]int
	rep       map[int]int
	visited   *bitset.BitSet
	inSCC     *bitset.BitSet
	subNodes  map[int]*bitset.BitSet
	selfLoops *bitset.BitSet
	stack     []int
	topo      []int // representatives in completion order, sinks first
	counter   int

	// candidates restricts the traversal; nil means the whole graph
	candidates *bitset.BitSet
}

// NewSCCDetector returns a detector for the graph with the given nodes and successors
func NewSCCDetector(nodes func() []int, succs func(int) []int) *SCCDetector {
	d := &SCCDetector{nodes: nodes, succs: succs}
	d.clear()
	return d
}

func (d *SCCDetector) clear() {
	d.visitNum = map[int]int{}
	d.rep = map[int]int{}
	d.visited = bitset.New(0)
	d.inSCC = bitset.New(0)
	d.subNodes = map[int]*bitset.BitSet{}
	d.selfLoops = bitset.New(0)
	d.stack = nil
	d.topo = nil
	d.counter = 0
	d.candidates = nil
}

// Find computes the SCCs of the whole graph
func (d *SCCDetector) Find() {
	d.clear()
	for _, n := range d.nodes() {
		if !d.visited.Test(uint(n)) {
			d.visit(n)
		}
	}
}

// FindCandidates computes the SCCs of the subgraph induced by the candidate nodes. Nodes outside the candidates are
// treated as leaves and never traversed.
func (d *SCCDetector) FindCandidates(candidates *bitset.BitSet) {
	d.clear()
	d.candidates = candidates
	for n, ok := candidates.NextSet(0); ok; n, ok = candidates.NextSet(n + 1) {
		if !d.visited.Test(n) {
			d.visit(int(n))
		}
	}
}

func (d *SCCDetector) traversable(n int) bool {
	return d.candidates == nil || d.candidates.Test(uint(n))
}

func (d *SCCDetector) visit(v int) {
	d.counter++
	d.visitNum[v] = d.counter
	d.rep[v] = v
	d.visited.Set(uint(v))

	for _, w := range d.succs(v) {
		if w == v {
			d.selfLoops.Set(uint(v))
			continue
		}
		if !d.traversable(w) {
			continue
		}
		if !d.visited.Test(uint(w)) {
			d.visit(w)
		}
		if !d.inSCC.Test(uint(w)) {
			rv, rw := d.rep[v], d.rep[w]
			if d.visitNum[rw] < d.visitNum[rv] {
				d.rep[v] = rw
			}
		}
	}

	if d.rep[v] != v {
		d.stack = append(d.stack, v)
		return
	}

	d.inSCC.Set(uint(v))
	sub := bitset.New(0)
	sub.Set(uint(v))
	vNum := d.visitNum[v]
	for len(d.stack) > 0 {
		w := d.stack[len(d.stack)-1]
		if d.visitNum[w] <= vNum {
			break
		}
		d.stack = d.stack[:len(d.stack)-1]
		d.rep[w] = v
		d.inSCC.Set(uint(w))
		sub.Set(uint(w))
	}
	d.subNodes[v] = sub
	d.topo = append(d.topo, v)
}

// RepNode returns the representative of the SCC of n. It panics if n has not been visited by the last Find.
func (d *SCCDetector) RepNode(n int) int {
	r, ok := d.rep[n]
	if !ok {
		panic(fmt.Sprintf("scc: node %d was not visited by the last find", n))
	}
	return r
}

// SubNodes returns the members of the SCC whose representative is rep. It panics if rep is not a representative.
func (d *SCCDetector) SubNodes(rep int) *bitset.BitSet {
	s, ok := d.subNodes[rep]
	if !ok {
		panic(fmt.Sprintf("scc: node %d is not a representative", rep))
	}
	return s
}

// IsInCycle returns true if n is in a SCC with more than one node, or has a self loop
func (d *SCCDetector) IsInCycle(n int) bool {
	r := d.RepNode(n)
	if d.subNodes[r].Count() > 1 {
		return true
	}
	return d.selfLoops.Test(uint(n))
}

// TopoNodes returns the representatives in topological order: a representative comes before the representatives of
// the SCCs it reaches.
func (d *SCCDetector) TopoNodes() []int {
	res := make([]int, len(d.topo))
	for i, r := range d.topo {
		res[len(d.topo)-1-i] = r
	}
	return res
}

// NumSCCs returns the number of SCCs found by the last run
func (d *SCCDetector) NumSCCs() int {
	return len(d.topo)
}
