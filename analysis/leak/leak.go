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

// Package leak checks that the heap objects allocated by a program are released on every path.
//
// The sources are the address statements of heap objects, and the sinks are the arguments of the calls to the
// free functions named in the config. From every source, the checker follows the value of the pointer forward
// in the value-flow graph, through copies, calls, returns and memory. A source reaching no sink is never freed.
// A source whose sinks are all under branch conditions that do not cover every path is freed on some paths
// only.
package leak

import (
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/vfg"
	"golang.org/x/exp/slices"
)

// Stats are the statistics of a leak check
type Stats struct {
	NumSources        int
	NumNeverFreed     int
	NumPartiallyFreed int
	NumVisitedNodes   int
}

// Checker finds the heap allocations that may not be released
type Checker struct {
	pre    *andersen.Solver
	prog   *pag.Program
	graph  *vfg.Graph
	logger *config.LogGroup
	frees  map[*pag.Function]bool
	stats  Stats
}

// NewChecker returns a checker over the value-flow graph of the solved whole-program analysis pre. The free
// functions are the functions of cfg.FreeFunctions that the program declares.
func NewChecker(pre *andersen.Solver, cfg *config.Config, logger *config.LogGroup) *Checker {
	prog := pre.Program()
	c := &Checker{
		pre:    pre,
		prog:   prog,
		graph:  vfg.New(pre, false, logger),
		logger: logger,
		frees:  map[*pag.Function]bool{},
	}
	for _, name := range cfg.FreeFunctions {
		if fn := prog.Func(name); fn != nil {
			c.frees[fn] = true
		} else {
			logger.Debugf("free function %s is not declared in the program", name)
		}
	}
	return c
}

// Stats returns the statistics of the checks run so far
func (c *Checker) Stats() Stats {
	return c.stats
}

// Graph returns the value-flow graph the checker runs on
func (c *Checker) Graph() *vfg.Graph {
	return c.graph
}

// Sources returns the value-flow nodes of the address statements of heap objects
func (c *Checker) Sources() []*vfg.Node {
	var res []*vfg.Node
	for _, n := range c.graph.Nodes() {
		if n.Kind != vfg.AddrNode {
			continue
		}
		if addr, ok := n.Stmt.(*pag.Addr); ok {
			if o := c.prog.Obj(addr.Obj); o != nil && o.Heap {
				res = append(res, n)
			}
		}
	}
	return res
}

// isSink returns true if n is an argument of a call that may release it
func (c *Checker) isSink(n *vfg.Node) bool {
	if n.Kind != vfg.ActualParmNode {
		return false
	}
	if n.Site.Callee != nil {
		return c.frees[n.Site.Callee]
	}
	for _, callee := range c.pre.CallGraph().Callees(n.Site) {
		if c.frees[callee] {
			return true
		}
	}
	return false
}

// carriesPointer returns true if the pointer held by src flows along e. A pointer reaching a load or a store as
// the address being accessed does not flow further.
func carriesPointer(src *vfg.Node, e *vfg.Edge, dst *vfg.Node) bool {
	if !e.IsDirect() {
		return true
	}
	switch s := dst.Stmt.(type) {
	case *pag.Store:
		return s.Src == src.Var
	case *pag.Load:
		return false
	}
	return true
}

// Sinks returns the sink nodes reached from source, ordered by node id
func (c *Checker) Sinks(source *vfg.Node) []*vfg.Node {
	var sinks []*vfg.Node
	visited := map[vfg.NodeID]bool{source.ID: true}
	worklist := []*vfg.Node{source}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		c.stats.NumVisitedNodes++
		for _, e := range c.graph.OutEdges(n.ID) {
			dst := c.graph.Node(e.Dst)
			if visited[dst.ID] || !carriesPointer(n, e, dst) {
				continue
			}
			visited[dst.ID] = true
			if c.isSink(dst) {
				sinks = append(sinks, dst)
				continue
			}
			worklist = append(worklist, dst)
		}
	}
	slices.SortFunc(sinks, func(a, b *vfg.Node) bool { return a.ID < b.ID })
	return sinks
}

func guardOf(n *vfg.Node) pag.Literal {
	if n.Block == nil {
		return pag.NoGuard
	}
	return n.Block.Guard
}

// freedOnAllPaths returns true if the branch conditions of the sinks cover every execution of the source: some
// sink executes whenever the source does, or two sinks execute under opposite conditions
func freedOnAllPaths(source *vfg.Node, sinks []*vfg.Node) bool {
	srcGuard := guardOf(source)
	seen := map[pag.Literal]bool{}
	for _, sink := range sinks {
		g := guardOf(sink)
		if g == pag.NoGuard || g == srcGuard || seen[g.Not()] {
			return true
		}
		seen[g] = true
	}
	return false
}

// Check returns the reports of the heap allocations that may not be released, in the order of their sources
func (c *Checker) Check() []Report {
	var reports []Report
	for _, source := range c.Sources() {
		c.stats.NumSources++
		addr := source.Stmt.(*pag.Addr)
		sinks := c.Sinks(source)
		r := Report{Fn: source.Fn, Source: addr, Obj: addr.Obj}
		for _, s := range sinks {
			r.Frees = append(r.Frees, s.Site)
		}
		switch {
		case len(sinks) == 0:
			r.Kind = NeverFreed
			c.stats.NumNeverFreed++
		case !freedOnAllPaths(source, sinks):
			r.Kind = PartiallyFreed
			c.stats.NumPartiallyFreed++
		default:
			continue
		}
		c.logger.Debugf("%s", r.String(c.prog))
		reports = append(reports, r)
	}
	return reports
}
