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

// Package vfg implements the sparse value-flow graph of a program. Direct edges connect the definition of a
// top-level variable to its uses. Indirect edges connect memory definitions (stores, call results, function
// entries) to memory uses (loads, stores, calls, function exits), and are guarded by the set of objects whose
// value flows along them.
package vfg

import (
	"fmt"
	"io"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
	"github.com/awslabs/ar-go-pta/internal/graphutil"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/topo"
)

// NodeID identifies a node of the value-flow graph
type NodeID int

// EdgeID identifies an edge of the value-flow graph
type EdgeID int

// NodeKind is the kind of a value-flow node
type NodeKind int

const (
	AddrNode NodeKind = iota
	CopyNode
	GepNode
	LoadNode
	StoreNode
	PhiNode
	NullPtrNode
	ActualParmNode
	FormalParmNode
	ActualRetNode
	FormalRetNode
	FormalInNode
	FormalOutNode
	ActualInNode
	ActualOutNode
)

var nodeKindNames = [...]string{"addr", "copy", "gep", "load", "store", "phi", "nullptr", "actual-parm",
	"formal-parm", "actual-ret", "formal-ret", "formal-in", "formal-out", "actual-in", "actual-out"}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsMemoryRegion returns true for the nodes standing for memory at function and call boundaries
func (k NodeKind) IsMemoryRegion() bool {
	return k >= FormalInNode
}

// Node is a node of the value-flow graph
type Node struct {
	ID   NodeID
	Kind NodeKind
	Fn   *pag.Function

	// Stmt is the statement of statement nodes, nil otherwise
	Stmt pag.Stmt

	// Var is the top-level variable defined by the node, NullPtr for stores and memory region nodes
	Var pag.NodeID

	// Site is the call site of actual nodes
	Site *pag.CallSite

	// Index is the parameter index of parameter nodes
	Index int

	// Objs are the objects of memory region nodes
	Objs *pts.PointsTo

	// Block is the block where the node is located, nil for function exits and the null pointer
	Block *pag.Block
}

func (n *Node) String() string {
	switch {
	case n.Stmt != nil:
		return fmt.Sprintf("%d:%s[%s]", n.ID, n.Kind, n.Stmt)
	case n.Site != nil:
		return fmt.Sprintf("%d:%s[%s]", n.ID, n.Kind, n.Site)
	case n.Fn != nil:
		return fmt.Sprintf("%d:%s[%s]", n.ID, n.Kind, n.Fn.Name)
	}
	return fmt.Sprintf("%d:%s", n.ID, n.Kind)
}

// EdgeKind is the kind of a value-flow edge
type EdgeKind int

const (
	IntraDirect EdgeKind = iota
	IntraIndirect
	CallDirect
	RetDirect
	CallIndirect
	RetIndirect
)

var edgeKindNames = [...]string{"direct", "indirect", "call-direct", "ret-direct", "call-indirect", "ret-indirect"}

func (k EdgeKind) String() string {
	if int(k) < len(edgeKindNames) {
		return edgeKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Edge is a value-flow edge
type Edge struct {
	ID   EdgeID
	Kind EdgeKind
	Src  NodeID
	Dst  NodeID

	// Objs guards an indirect edge: only the values of these objects flow along it
	Objs *pts.PointsTo

	// Site is the call site of call and return edges
	Site *pag.CallSite

	// Guard is the branch literal under which the source of the edge executes
	Guard pag.Literal
}

// IsDirect returns true for edges carrying top-level values
func (e *Edge) IsDirect() bool {
	return e.Kind == IntraDirect || e.Kind == CallDirect || e.Kind == RetDirect
}

// IsIndirect returns true for edges carrying memory
func (e *Edge) IsIndirect() bool {
	return !e.IsDirect()
}

// IsCall returns true for edges from a call site into a callee
func (e *Edge) IsCall() bool {
	return e.Kind == CallDirect || e.Kind == CallIndirect
}

// IsRet returns true for edges from a callee back to a call site
func (e *Edge) IsRet() bool {
	return e.Kind == RetDirect || e.Kind == RetIndirect
}

func (e *Edge) String() string {
	if e.IsIndirect() {
		return fmt.Sprintf("%d -%s%s-> %d", e.Src, e.Kind, e.Objs, e.Dst)
	}
	return fmt.Sprintf("%d -%s-> %d", e.Src, e.Kind, e.Dst)
}

type edgeKey struct {
	kind     EdgeKind
	src, dst NodeID
}

type callKey struct {
	site   *pag.CallSite
	callee *pag.Function
}

// Graph is the value-flow graph of a program, built from a whole-program pointer analysis
type Graph struct {
	prog *pag.Program
	pre  *andersen.Solver

	nodes []*Node
	edges []*Edge
	in    map[NodeID][]EdgeID
	out   map[NodeID][]EdgeID
	index map[edgeKey]EdgeID

	nullPtr     NodeID
	defs        map[pag.NodeID]NodeID
	stmtNodes   map[pag.StmtID]NodeID
	formalParms map[*pag.Function][]NodeID
	formalRet   map[*pag.Function]NodeID
	formalIn    map[*pag.Function]NodeID
	formalOut   map[*pag.Function]NodeID
	actualParms map[*pag.CallSite][]NodeID
	actualRet   map[*pag.CallSite]NodeID
	actualIn    map[*pag.CallSite]NodeID
	actualOut   map[*pag.CallSite]NodeID

	mod map[*pag.Function]*pts.PointsTo
	ref map[*pag.Function]*pts.PointsTo

	connected map[callKey]bool
	onTheFly  bool
}

// Prog returns the program of the graph
func (g *Graph) Prog() *pag.Program {
	return g.prog
}

// PreAnalysis returns the whole-program analysis the graph was built from
func (g *Graph) PreAnalysis() *andersen.Solver {
	return g.pre
}

// NumNodes returns the number of nodes
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// Node returns the node with id n. It panics if there is none.
func (g *Graph) Node(n NodeID) *Node {
	if int(n) < 0 || int(n) >= len(g.nodes) {
		panic(fmt.Sprintf("vfg: invalid node %d", n))
	}
	return g.nodes[n]
}

// Nodes returns all the nodes, ordered by id
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Edge returns the edge with id e
func (g *Graph) Edge(e EdgeID) *Edge {
	return g.edges[e]
}

// NumEdges returns the number of edges
func (g *Graph) NumEdges() int {
	return len(g.edges)
}

// InEdges returns the edges into n, in the order they were added
func (g *Graph) InEdges(n NodeID) []*Edge {
	return g.edgesOf(g.in[n])
}

// OutEdges returns the edges out of n, in the order they were added
func (g *Graph) OutEdges(n NodeID) []*Edge {
	return g.edgesOf(g.out[n])
}

func (g *Graph) edgesOf(ids []EdgeID) []*Edge {
	res := make([]*Edge, len(ids))
	for i, id := range ids {
		res[i] = g.edges[id]
	}
	return res
}

// DirectEdge returns the direct edge from src to dst, nil if there is none
func (g *Graph) DirectEdge(src, dst NodeID) *Edge {
	for _, k := range []EdgeKind{IntraDirect, CallDirect, RetDirect} {
		if id, ok := g.index[edgeKey{k, src, dst}]; ok {
			return g.edges[id]
		}
	}
	return nil
}

// DefNode returns the node defining the top-level variable v. It panics if v has no definition.
func (g *Graph) DefNode(v pag.NodeID) NodeID {
	n, ok := g.defs[v]
	if !ok {
		panic(fmt.Sprintf("vfg: no definition for %s", g.prog.Node(v)))
	}
	return n
}

// StmtNode returns the node of a statement, and false if the statement has no node (calls and returns)
func (g *Graph) StmtNode(s pag.Stmt) (NodeID, bool) {
	n, ok := g.stmtNodes[s.ID()]
	return n, ok
}

// FormalIn returns the formal-in node of fn, and false if fn does not access memory
func (g *Graph) FormalIn(fn *pag.Function) (NodeID, bool) {
	n, ok := g.formalIn[fn]
	return n, ok
}

// FormalOut returns the formal-out node of fn, and false if fn does not modify memory
func (g *Graph) FormalOut(fn *pag.Function) (NodeID, bool) {
	n, ok := g.formalOut[fn]
	return n, ok
}

// ActualIn returns the actual-in node of cs, and false if its callees do not access memory
func (g *Graph) ActualIn(cs *pag.CallSite) (NodeID, bool) {
	n, ok := g.actualIn[cs]
	return n, ok
}

// ActualOut returns the actual-out node of cs, and false if its callees do not modify memory
func (g *Graph) ActualOut(cs *pag.CallSite) (NodeID, bool) {
	n, ok := g.actualOut[cs]
	return n, ok
}

// Mod returns the objects fn or its callees may modify
func (g *Graph) Mod(fn *pag.Function) *pts.PointsTo {
	return g.mod[fn]
}

// Ref returns the objects fn or its callees may read
func (g *Graph) Ref(fn *pag.Function) *pts.PointsTo {
	return g.ref[fn]
}

// IsCallSiteRet returns the call site of n if n receives the result or the memory of a call, nil otherwise
func (g *Graph) IsCallSiteRet(n NodeID) *pag.CallSite {
	node := g.Node(n)
	if node.Kind == ActualRetNode || node.Kind == ActualOutNode {
		return node.Site
	}
	return nil
}

// IsFunEntry returns the function of n if n is a node at the entry of a function, nil otherwise
func (g *Graph) IsFunEntry(n NodeID) *pag.Function {
	node := g.Node(n)
	if node.Kind == FormalParmNode || node.Kind == FormalInNode {
		return node.Fn
	}
	return nil
}

// OnTheFly returns true if the indirect call sites are left for the demand-driven analysis to connect
func (g *Graph) OnTheFly() bool {
	return g.onTheFly
}

// IsConnected returns true if the call edge cs -> callee has been connected in the graph
func (g *Graph) IsConnected(cs *pag.CallSite, callee *pag.Function) bool {
	return g.connected[callKey{cs, callee}]
}

// Digraph returns the graph as a graphutil.Digraph over node ids
func (g *Graph) Digraph() graphutil.Digraph {
	ids := make([]int64, len(g.nodes))
	labels := map[int64]string{}
	for i, n := range g.nodes {
		ids[i] = int64(n.ID)
		labels[int64(n.ID)] = n.String()
	}
	return graphutil.NewDigraph(ids, func(n int64) []int64 {
		var res []int64
		for _, e := range g.OutEdges(NodeID(n)) {
			res = append(res, int64(e.Dst))
		}
		return res
	}, labels)
}

// SCC returns the strongly connected components of the graph that contain a cycle. Each component is sorted.
func (g *Graph) SCC() [][]NodeID {
	var res [][]NodeID
	for _, scc := range topo.TarjanSCC(g.Digraph()) {
		if len(scc) == 1 {
			id := NodeID(scc[0].ID())
			if g.DirectEdge(id, id) == nil && !g.hasIndirectSelfEdge(id) {
				continue
			}
		}
		comp := make([]NodeID, len(scc))
		for i, n := range scc {
			comp[i] = NodeID(n.ID())
		}
		slices.Sort(comp)
		res = append(res, comp)
	}
	slices.SortFunc(res, func(a, b []NodeID) bool { return a[0] < b[0] })
	return res
}

// CallRetEdgesInCycles returns the call and return edges whose source and destination belong to the same
// strongly connected component of the graph
func (g *Graph) CallRetEdgesInCycles() map[EdgeID]bool {
	comp := map[NodeID]int{}
	for i, scc := range g.SCC() {
		for _, n := range scc {
			comp[n] = i
		}
	}
	res := map[EdgeID]bool{}
	for _, e := range g.edges {
		if !e.IsCall() && !e.IsRet() {
			continue
		}
		cs, okSrc := comp[e.Src]
		cd, okDst := comp[e.Dst]
		if okSrc && okDst && cs == cd {
			res[e.ID] = true
		}
	}
	return res
}

func (g *Graph) hasIndirectSelfEdge(n NodeID) bool {
	for _, e := range g.OutEdges(n) {
		if e.Dst == n {
			return true
		}
	}
	return false
}

// Dump writes the nodes and edges of the graph
func (g *Graph) Dump(w io.Writer) {
	for _, n := range g.nodes {
		fmt.Fprintf(w, "%s\n", n)
		for _, e := range g.OutEdges(n.ID) {
			fmt.Fprintf(w, "\t%s\n", e)
		}
	}
}
