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

package constraint

import (
	"fmt"

	"github.com/awslabs/ar-go-pta/analysis/pag"
	"golang.org/x/exp/slices"
)

// EdgeKind is the kind of a constraint edge, which determines the rule applied by the solver
type EdgeKind int

const (
	// Addr is an edge obj -> p for p = &obj
	Addr EdgeKind = iota
	// Copy is an edge q -> p for p = q
	Copy
	// Load is an edge q -> p for p = *q
	Load
	// Store is an edge q -> p for *p = q
	Store
	// NormalGep is an edge q -> p for p = &q->f with a constant offset f
	NormalGep
	// VariantGep is an edge q -> p for p = &q[i] where i is not a constant
	VariantGep
	numEdgeKinds
)

func (k EdgeKind) String() string {
	switch k {
	case Addr:
		return "addr"
	case Copy:
		return "copy"
	case Load:
		return "load"
	case Store:
		return "store"
	case NormalGep:
		return "gep"
	case VariantGep:
		return "vgep"
	}
	return "unknown"
}

// Edge is a constraint edge. Offset is only meaningful for NormalGep edges.
type Edge struct {
	Kind   EdgeKind
	Src    pag.NodeID
	Dst    pag.NodeID
	Offset int
}

func (e Edge) String() string {
	if e.Kind == NormalGep {
		return fmt.Sprintf("%d -%s(%d)-> %d", e.Src, e.Kind, e.Offset, e.Dst)
	}
	return fmt.Sprintf("%d -%s-> %d", e.Src, e.Kind, e.Dst)
}

type edgeSet map[Edge]struct{}

type cnode struct {
	in  [numEdgeKinds]edgeSet
	out [numEdgeKinds]edgeSet
}

func newCNode() *cnode {
	n := &cnode{}
	for k := range n.in {
		n.in[k] = edgeSet{}
		n.out[k] = edgeSet{}
	}
	return n
}

// Graph is the constraint graph of a program. Nodes are the nodes of the program; nodes merged by cycle
// elimination are represented by their representative.
type Graph struct {
	prog  *pag.Program
	nodes map[pag.NodeID]*cnode
	rep   map[pag.NodeID]pag.NodeID
	subs  map[pag.NodeID][]pag.NodeID
	pwc   map[pag.NodeID]bool
	count [numEdgeKinds]int
}

// New builds the constraint graph of the program. Calls through function pointers are not connected.
func New(prog *pag.Program) *Graph {
	g := &Graph{
		prog:  prog,
		nodes: map[pag.NodeID]*cnode{},
		rep:   map[pag.NodeID]pag.NodeID{},
		subs:  map[pag.NodeID][]pag.NodeID{},
		pwc:   map[pag.NodeID]bool{},
	}
	for _, n := range prog.Nodes {
		g.node(n.ID)
	}
	for _, s := range prog.Stmts {
		switch s := s.(type) {
		case *pag.Addr:
			g.AddEdge(Addr, s.Obj, s.Dst, 0)
		case *pag.Copy:
			g.AddEdge(Copy, s.Src, s.Dst, 0)
		case *pag.Load:
			g.AddEdge(Load, s.Ptr, s.Dst, 0)
		case *pag.Store:
			g.AddEdge(Store, s.Src, s.Ptr, 0)
		case *pag.Gep:
			if s.Variant {
				g.AddEdge(VariantGep, s.Src, s.Dst, 0)
			} else {
				g.AddEdge(NormalGep, s.Src, s.Dst, s.Offset)
			}
		case *pag.Phi:
			for _, src := range s.Srcs {
				g.AddEdge(Copy, src, s.Dst, 0)
			}
		case *pag.Call:
			if !s.Site.IsIndirect() {
				g.ConnectCall(s.Site, s.Site.Callee)
			}
		case *pag.Ret:
			g.AddEdge(Copy, s.Src, s.Func().RetNode, 0)
		}
	}
	return g
}

// Prog returns the program of the graph
func (g *Graph) Prog() *pag.Program {
	return g.prog
}

func (g *Graph) node(n pag.NodeID) *cnode {
	c, ok := g.nodes[n]
	if !ok {
		c = newCNode()
		g.nodes[n] = c
	}
	return c
}

// Rep returns the representative of n
func (g *Graph) Rep(n pag.NodeID) pag.NodeID {
	r, ok := g.rep[n]
	if !ok {
		return n
	}
	root := g.Rep(r)
	if root != r {
		g.rep[n] = root
	}
	return root
}

// IsRep returns true if n is its own representative
func (g *Graph) IsRep(n pag.NodeID) bool {
	_, merged := g.rep[n]
	return !merged
}

// SubNodes returns the nodes merged into rep, rep included
func (g *Graph) SubNodes(rep pag.NodeID) []pag.NodeID {
	return append([]pag.NodeID{rep}, g.subs[rep]...)
}

// IsPWC returns true if rep is on a cycle containing a gep with a non-zero or variant offset (a positive weight
// cycle). Objects pointed to by such nodes must be field-insensitive for the fixpoint to terminate.
func (g *Graph) IsPWC(rep pag.NodeID) bool {
	return g.pwc[rep]
}

// Nodes returns the representative nodes, in increasing order
func (g *Graph) Nodes() []pag.NodeID {
	res := make([]pag.NodeID, 0, len(g.nodes))
	for n := range g.nodes {
		if g.IsRep(n) {
			res = append(res, n)
		}
	}
	slices.Sort(res)
	return res
}

// AddEdge adds an edge between the representatives of src and dst. It returns false if the edge already exists.
func (g *Graph) AddEdge(kind EdgeKind, src, dst pag.NodeID, offset int) bool {
	if kind != NormalGep {
		offset = 0
	}
	e := Edge{Kind: kind, Src: g.Rep(src), Dst: g.Rep(dst), Offset: offset}
	return g.addEdge(e)
}

func (g *Graph) addEdge(e Edge) bool {
	s := g.node(e.Src)
	if _, ok := s.out[e.Kind][e]; ok {
		return false
	}
	s.out[e.Kind][e] = struct{}{}
	g.node(e.Dst).in[e.Kind][e] = struct{}{}
	g.count[e.Kind]++
	return true
}

func (g *Graph) removeEdge(e Edge) {
	if _, ok := g.nodes[e.Src].out[e.Kind][e]; !ok {
		return
	}
	delete(g.nodes[e.Src].out[e.Kind], e)
	delete(g.nodes[e.Dst].in[e.Kind], e)
	g.count[e.Kind]--
}

// HasEdge returns true if the edge between the representatives of src and dst exists
func (g *Graph) HasEdge(kind EdgeKind, src, dst pag.NodeID, offset int) bool {
	if kind != NormalGep {
		offset = 0
	}
	e := Edge{Kind: kind, Src: g.Rep(src), Dst: g.Rep(dst), Offset: offset}
	c, ok := g.nodes[e.Src]
	if !ok {
		return false
	}
	_, ok = c.out[kind][e]
	return ok
}

// AddCopyEdge adds a copy edge src -> dst. Self copies are ignored.
func (g *Graph) AddCopyEdge(src, dst pag.NodeID) bool {
	if g.Rep(src) == g.Rep(dst) {
		return false
	}
	return g.AddEdge(Copy, src, dst, 0)
}

func sortedEdges(s edgeSet) []Edge {
	res := make([]Edge, 0, len(s))
	for e := range s {
		res = append(res, e)
	}
	slices.SortFunc(res, func(a, b Edge) bool {
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		if a.Dst != b.Dst {
			return a.Dst < b.Dst
		}
		return a.Offset < b.Offset
	})
	return res
}

// OutEdges returns the edges of the given kind leaving the representative of n, in a deterministic order
func (g *Graph) OutEdges(n pag.NodeID, kind EdgeKind) []Edge {
	c, ok := g.nodes[g.Rep(n)]
	if !ok {
		return nil
	}
	return sortedEdges(c.out[kind])
}

// InEdges returns the edges of the given kind entering the representative of n, in a deterministic order
func (g *Graph) InEdges(n pag.NodeID, kind EdgeKind) []Edge {
	c, ok := g.nodes[g.Rep(n)]
	if !ok {
		return nil
	}
	return sortedEdges(c.in[kind])
}

// NumEdges returns the number of edges of the given kind
func (g *Graph) NumEdges(kind EdgeKind) int {
	return g.count[kind]
}

// DirectSuccs returns the successors of the representative of n through copy and gep edges. These are the edges
// considered by cycle detection.
func (g *Graph) DirectSuccs(n pag.NodeID) []pag.NodeID {
	c, ok := g.nodes[g.Rep(n)]
	if !ok {
		return nil
	}
	seen := map[pag.NodeID]bool{}
	var res []pag.NodeID
	for _, k := range []EdgeKind{Copy, NormalGep, VariantGep} {
		for e := range c.out[k] {
			if !seen[e.Dst] {
				seen[e.Dst] = true
				res = append(res, e.Dst)
			}
		}
	}
	slices.Sort(res)
	return res
}

// MergeNodeToRep merges node into rep: every edge of node is moved to rep, and node's representative becomes rep.
// Copy edges and zero offset gep edges that become self edges are dropped. Load and store self edges are kept.
// It returns true if the merge created a positive weight cycle on rep (a self gep edge with a non-zero or variant
// offset).
func (g *Graph) MergeNodeToRep(node, rep pag.NodeID) bool {
	node, rep = g.Rep(node), g.Rep(rep)
	if node == rep {
		return false
	}
	c := g.node(node)
	pwc := g.pwc[node]
	var moved []Edge
	for k := range c.out {
		for e := range c.out[k] {
			moved = append(moved, e)
		}
		for e := range c.in[k] {
			moved = append(moved, e)
		}
	}
	for _, e := range moved {
		g.removeEdge(e)
	}
	g.rep[node] = rep
	g.subs[rep] = append(g.subs[rep], node)
	g.subs[rep] = append(g.subs[rep], g.subs[node]...)
	delete(g.subs, node)
	delete(g.pwc, node)
	for _, e := range moved {
		ne := Edge{Kind: e.Kind, Src: g.Rep(e.Src), Dst: g.Rep(e.Dst), Offset: e.Offset}
		if ne.Src == ne.Dst {
			switch {
			case ne.Kind == Copy:
				continue
			case ne.Kind == NormalGep && ne.Offset == 0:
				continue
			case ne.Kind == NormalGep || ne.Kind == VariantGep:
				pwc = true
				continue
			}
		}
		g.addEdge(ne)
	}
	// existing self geps on rep
	r := g.node(rep)
	for _, k := range []EdgeKind{NormalGep, VariantGep} {
		for e := range r.out[k] {
			if e.Dst == rep && (k == VariantGep || e.Offset != 0) {
				pwc = true
			}
		}
	}
	if pwc {
		g.pwc[rep] = true
	}
	return pwc
}

// CollapseField marks the base object field-insensitive and merges all its field nodes into it. It returns the
// merged field nodes, or nil if the object was already field-insensitive.
func (g *Graph) CollapseField(base pag.NodeID) []pag.NodeID {
	base = g.prog.BaseObj(base)
	obj := g.prog.Obj(base)
	if obj.IsFieldInsensitive() {
		return nil
	}
	obj.SetFieldInsensitive()
	fields := g.prog.FieldObjs(base)
	slices.Sort(fields)
	var merged []pag.NodeID
	for _, f := range fields {
		if g.Rep(f) != g.Rep(base) {
			g.MergeNodeToRep(f, base)
			merged = append(merged, f)
		}
	}
	return merged
}

// ConnectCall adds the copy edges from the arguments of the call site to the parameters of callee, and from the
// return node of callee to the result of the call. It returns true if a new edge was added.
// Extra arguments or parameters are left unconnected.
func (g *Graph) ConnectCall(cs *pag.CallSite, callee *pag.Function) bool {
	changed := false
	for i, arg := range cs.Args {
		if i >= len(callee.Params) {
			break
		}
		if g.AddCopyEdge(arg, callee.Params[i]) {
			changed = true
		}
	}
	if cs.Ret != pag.NullPtr {
		if g.AddCopyEdge(callee.RetNode, cs.Ret) {
			changed = true
		}
	}
	return changed
}
