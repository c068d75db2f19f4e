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
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
)

// Digraph is an abstraction over the analysis graphs (call graph, value-flow graph) to work with existing graph
// libraries. It implements the methods to satisfy yourbasic's graph.Iterator and Gonum's graph.Directed.
// Node ids are small non-negative integers.
type Digraph struct {
	// The order of the graph: all node ids are smaller than the order
	order int

	// Labels maps node ids to a printable name. Optional.
	Labels map[int64]string

	// IDMap maps from node IDs to DNodes
	IDMap map[int64]DNode

	// Keys are all the node IDs, sorted
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool

	// redges is the reverse adjacency matrix
	redges map[int64]map[int64]bool
}

// NewDigraph returns a new graph with the given nodes, where successors returns the targets of the edges out of
// a node. Successors outside nodes are ignored.
func NewDigraph(nodes []int64, successors func(int64) []int64, labels map[int64]string) Digraph {
	n := len(nodes)
	idmap := make(map[int64]DNode, n)
	keys := make([]int64, n)
	order := 0
	for i, node := range nodes {
		keys[i] = node
		idmap[node] = DNode{id: node, label: labels[node]}
		if int(node)+1 > order {
			order = int(node) + 1
		}
	}
	slices.Sort(keys)
	edges := make(map[int64]map[int64]bool, n)
	redges := make(map[int64]map[int64]bool, n)
	for _, node := range keys {
		edges[node] = map[int64]bool{}
	}
	for _, node := range keys {
		for _, succ := range successors(node) {
			if _, ok := idmap[succ]; ok {
				edges[node][succ] = true
				addTo(redges, succ, node)
			}
		}
	}
	return Digraph{
		order:  order,
		Labels: labels,
		IDMap:  idmap,
		Keys:   keys,
		Edges:  edges,
		redges: redges,
	}
}

func addTo(m map[int64]map[int64]bool, x, y int64) {
	s, ok := m[x]
	if !ok {
		s = map[int64]bool{}
		m[x] = s
	}
	s[y] = true
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and labels are the same as in origin, meaning that node indices will stay consistent
// across subgraphs.
func Subgraph(original Digraph, include []int64) Digraph {
	idmap := make(map[int64]DNode, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	redges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))

	for j, i := range include {
		keys[j] = i
		idmap[i] = original.IDMap[i]
	}

	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if _, ok := idmap[e]; ok {
				edges[i][e] = true
				addTo(redges, e, i)
			}
		}
	}

	return Digraph{
		order:  original.Order(),
		Labels: original.Labels,
		IDMap:  idmap,
		Edges:  edges,
		Keys:   keys,
		redges: redges,
	}
}

// Order implements the order of the graph.Iterator interface for the Digraph
func (c Digraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the Digraph
func (c Digraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for _, w := range c.sortedSuccs(int64(v)) {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

func (c Digraph) sortedSuccs(v int64) []int64 {
	succs := make([]int64, 0, len(c.Edges[v]))
	for w := range c.Edges[v] {
		succs = append(succs, w)
	}
	slices.Sort(succs)
	return succs
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c Digraph) Node(id int64) graph.Node {
	n, ok := c.IDMap[id]
	if !ok {
		return nil
	}
	return n
}

// Nodes returns the set of nodes in the graph
func (c Digraph) Nodes() graph.Nodes {
	keys := make([]int64, len(c.Keys))
	copy(keys, c.Keys)
	return newNodeSet(c.IDMap, keys)
}

// From returns the set of nodes reachable from the id
func (c Digraph) From(id int64) graph.Nodes {
	return newNodeSet(c.IDMap, c.sortedSuccs(id))
}

// To returns the set of nodes that have an edge to the id
func (c Digraph) To(id int64) graph.Nodes {
	keys := make([]int64, 0, len(c.redges[id]))
	for k := range c.redges[id] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return newNodeSet(c.IDMap, keys)
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c Digraph) HasEdgeBetween(xid, yid int64) bool {
	return c.Edges[xid][yid] || c.Edges[yid][xid]
}

// HasEdgeFromTo returns whether there is a directed edge from uid to vid
func (c Digraph) HasEdgeFromTo(uid, vid int64) bool {
	return c.Edges[uid][vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c Digraph) Edge(uid, vid int64) graph.Edge {
	if c.Edges[uid][vid] {
		return DEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
	}
	return nil
}

// *************** Nodes implementation **********************

// DNode is a node of a Digraph that implements the graph.Node interface
type DNode struct {
	id    int64
	label string
}

// ID returns the id of the node
func (n DNode) ID() int64 {
	return n.id
}

func (n DNode) String() string {
	return n.label
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]DNode

	// ids is the set of node ids in the iterator
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: -1 <= cur < len(ids), and cur = -1 before the first call to Next
	cur int
}

func newNodeSet(nodes map[int64]DNode, ids []int64) *NodeSet {
	return &NodeSet{nodes: nodes, ids: ids, cur: -1}
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the number of nodes remaining in the iterator
func (ns *NodeSet) Len() int {
	return len(ns.ids) - 1 - ns.cur
}

// Reset resets the iterator to its initial state
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.ids) {
		return nil
	}
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// DEdge implements the graph.Edge interface
type DEdge struct {
	from DNode
	to   DNode
}

// From returns the origin of the edge
func (e DEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e DEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e DEdge) ReversedEdge() graph.Edge {
	return DEdge{from: e.to, to: e.from}
}
