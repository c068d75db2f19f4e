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

// Package callgraph contains the call graph built by the pointer analyses, with the recursion information needed by
// strong updates and context-sensitivity.
package callgraph

import (
	"fmt"
	"io"

	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/internal/graphutil"
	"golang.org/x/exp/slices"
)

// Edge is a call edge from a call site to one of its callees
type Edge struct {
	Site   *pag.CallSite
	Callee *pag.Function
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s", e.Site, e.Callee.Name)
}

// Graph is a call graph: direct calls are added at construction, indirect calls as they are resolved
type Graph struct {
	prog    *pag.Program
	callees map[*pag.CallSite]map[*pag.Function]bool
	callers map[*pag.Function]map[*pag.CallSite]bool
	edges   []Edge

	scc   *graphutil.SCCDetector
	dirty bool
}

// New returns the call graph of the direct calls of the program
func New(prog *pag.Program) *Graph {
	g := &Graph{
		prog:    prog,
		callees: map[*pag.CallSite]map[*pag.Function]bool{},
		callers: map[*pag.Function]map[*pag.CallSite]bool{},
	}
	g.scc = graphutil.NewSCCDetector(g.funcIDs, g.succIDs)
	for _, cs := range prog.CallSites {
		if !cs.IsIndirect() {
			g.AddEdge(cs, cs.Callee)
		}
	}
	g.FindSCCs()
	return g
}

// AddEdge adds the edge cs -> callee and returns true if it is new
func (g *Graph) AddEdge(cs *pag.CallSite, callee *pag.Function) bool {
	m, ok := g.callees[cs]
	if !ok {
		m = map[*pag.Function]bool{}
		g.callees[cs] = m
	}
	if m[callee] {
		return false
	}
	m[callee] = true
	c, ok := g.callers[callee]
	if !ok {
		c = map[*pag.CallSite]bool{}
		g.callers[callee] = c
	}
	c[cs] = true
	g.edges = append(g.edges, Edge{cs, callee})
	g.dirty = true
	return true
}

// HasEdge returns true if cs may call callee
func (g *Graph) HasEdge(cs *pag.CallSite, callee *pag.Function) bool {
	return g.callees[cs][callee]
}

// Edges returns all the edges, in the order they were added
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Callees returns the functions cs may call, ordered by id
func (g *Graph) Callees(cs *pag.CallSite) []*pag.Function {
	var res []*pag.Function
	for f := range g.callees[cs] {
		res = append(res, f)
	}
	slices.SortFunc(res, func(a, b *pag.Function) bool { return a.ID < b.ID })
	return res
}

// Callers returns the call sites that may call fn, ordered by id
func (g *Graph) Callers(fn *pag.Function) []*pag.CallSite {
	var res []*pag.CallSite
	for cs := range g.callers[fn] {
		res = append(res, cs)
	}
	slices.SortFunc(res, func(a, b *pag.CallSite) bool { return a.ID < b.ID })
	return res
}

// IndirectCallSitesInvoking returns the indirect call sites that may call fn
func (g *Graph) IndirectCallSitesInvoking(fn *pag.Function) []*pag.CallSite {
	var res []*pag.CallSite
	for _, cs := range g.Callers(fn) {
		if cs.IsIndirect() {
			res = append(res, cs)
		}
	}
	return res
}

// NumIndirectEdges returns the number of edges of indirect call sites
func (g *Graph) NumIndirectEdges() int {
	n := 0
	for _, e := range g.edges {
		if e.Site.IsIndirect() {
			n++
		}
	}
	return n
}

func (g *Graph) funcIDs() []int {
	ids := make([]int, len(g.prog.Funcs))
	for i, f := range g.prog.Funcs {
		ids[i] = f.ID
	}
	return ids
}

func (g *Graph) succIDs(id int) []int {
	var res []int
	for _, cs := range g.prog.Funcs[id].CallSites {
		for _, callee := range g.Callees(cs) {
			res = append(res, callee.ID)
		}
	}
	return res
}

// FindSCCs recomputes the strongly connected components of the call graph
func (g *Graph) FindSCCs() {
	g.scc.Find()
	g.dirty = false
}

func (g *Graph) sccs() *graphutil.SCCDetector {
	if g.dirty {
		g.FindSCCs()
	}
	return g.scc
}

// IsInCycle returns true if fn may be called recursively
func (g *Graph) IsInCycle(fn *pag.Function) bool {
	return g.sccs().IsInCycle(fn.ID)
}

// SameSCC returns true if f and h are in the same strongly connected component
func (g *Graph) SameSCC(f, h *pag.Function) bool {
	s := g.sccs()
	return s.RepNode(f.ID) == s.RepNode(h.ID)
}

// IsEdgeInRecursion returns true if the call from cs to callee is on a cycle of the call graph
func (g *Graph) IsEdgeInRecursion(cs *pag.CallSite, callee *pag.Function) bool {
	return g.HasEdge(cs, callee) && g.SameSCC(cs.Caller, callee) && g.IsInCycle(callee)
}

// Digraph returns the call graph over function ids, labelled by function names
func (g *Graph) Digraph() graphutil.Digraph {
	nodes := make([]int64, len(g.prog.Funcs))
	labels := map[int64]string{}
	for i, f := range g.prog.Funcs {
		nodes[i] = int64(f.ID)
		labels[int64(f.ID)] = f.Name
	}
	return graphutil.NewDigraph(nodes, func(n int64) []int64 {
		var res []int64
		for _, s := range g.succIDs(int(n)) {
			res = append(res, int64(s))
		}
		return res
	}, labels)
}

// ElementaryCycles returns the elementary cycles of the call graph. Each cycle starts and ends with the same
// function.
func (g *Graph) ElementaryCycles() [][]*pag.Function {
	var res [][]*pag.Function
	for _, cycle := range graphutil.FindAllElementaryCycles(g.Digraph()) {
		fns := make([]*pag.Function, len(cycle))
		for i, id := range cycle {
			fns[i] = g.prog.Funcs[id]
		}
		res = append(res, fns)
	}
	return res
}

// Dump writes the edges of the call graph
func (g *Graph) Dump(w io.Writer) {
	for _, e := range g.edges {
		fmt.Fprintf(w, "%s\n", e)
	}
}
