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

package dda

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
	"github.com/awslabs/ar-go-pta/analysis/vfg"
	"github.com/awslabs/ar-go-pta/internal/graphutil"
)

// CallEntry is an element of a call string: a call site and the callee it calls
type CallEntry struct {
	Site   pag.CallSiteID
	Callee int
}

func (e CallEntry) less(other CallEntry) bool {
	if e.Site != other.Site {
		return e.Site < other.Site
	}
	return e.Callee < other.Callee
}

// ContextCond is a bounded call string. Call strings are interned in a tree: equal call strings of the same
// solver are the same tree node. A context is not concrete once call sites were dropped from it, either because
// it exceeded the maximum length or because recursive call sites were popped.
type ContextCond struct {
	cxt         *graphutil.Tree[CallEntry]
	nonConcrete bool
}

// Len returns the length of the call string
func (c ContextCond) Len() int {
	if c.cxt == nil {
		return 0
	}
	return c.cxt.Depth()
}

// CallString returns the call sites of the context, the most recent last
func (c ContextCond) CallString() []CallEntry {
	if c.cxt == nil {
		return nil
	}
	return graphutil.Path(c.cxt)
}

// IsConcrete returns true if no call site was dropped from the context
func (c ContextCond) IsConcrete() bool {
	return !c.nonConcrete
}

// Less orders contexts by length, then call sites, concrete contexts first
func (c ContextCond) Less(other ContextCond) bool {
	a, b := c.CallString(), other.CallString()
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i].less(b[i])
		}
	}
	return !c.nonConcrete && other.nonConcrete
}

func (c ContextCond) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, e := range c.CallString() {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "cs%d:f%d", e.Site, e.Callee)
	}
	sb.WriteString("]")
	if c.nonConcrete {
		sb.WriteString("*")
	}
	return sb.String()
}

func (c ContextCond) top() CallEntry {
	return c.cxt.Label
}

// push returns the context with e pushed. When the context is full, its oldest call site is dropped.
func (c ContextCond) push(e CallEntry, maxLen int) ContextCond {
	if c.Len() < maxLen {
		c.cxt = graphutil.FindChild(c.cxt, e)
		return c
	}
	if c.Len() == 0 {
		return c
	}
	c.nonConcrete = true
	entries := append(c.CallString()[1:], e)
	t := c.cxt
	for t.Parent != nil {
		t = t.Parent
	}
	for _, x := range entries {
		t = graphutil.FindChild(t, x)
	}
	c.cxt = t
	return c
}

// match pops e from the context. It returns false if e is not on top of the context. The empty context stands
// for any context and matches every call site.
func (c ContextCond) match(e CallEntry) (ContextCond, bool) {
	if c.Len() == 0 {
		return c, true
	}
	if c.top() != e {
		return c, false
	}
	c.cxt = c.cxt.Parent
	return c, true
}

func (c ContextCond) contains(e CallEntry) bool {
	for t := c.cxt; t != nil && t.Parent != nil; t = t.Parent {
		if t.Label == e {
			return true
		}
	}
	return false
}

// popRecursive pops the recursive call sites on top of the context
func (c ContextCond) popRecursive(isRecursive func(CallEntry) bool) ContextCond {
	c.nonConcrete = true
	for c.Len() > 0 && isRecursive(c.top()) {
		c.cxt = c.cxt.Parent
	}
	return c
}

// IsCondCompatible returns true if the two contexts may denote the same runtime context: one call string is a
// suffix of the other. Contexts are always compatible for singleton objects.
func IsCondCompatible(a, b ContextCond, singleton bool) bool {
	if singleton {
		return true
	}
	x, y := a.CallString(), b.CallString()
	for i, j := len(x)-1, len(y)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if x[i] != y[j] {
			return false
		}
	}
	return true
}

// cxtHandler maintains call strings along call and return edges
type cxtHandler struct {
	*env
	root   *graphutil.Tree[CallEntry]
	maxLen int

	// insensitiveCycles enables cycleEdges: the call and return edges inside value-flow cycles, computed for a
	// graph of cycleEdgesAt edges
	insensitiveCycles bool
	cycleEdges        map[vfg.EdgeID]bool
	cycleEdgesAt      int
}

func newCxtHandler(e *env, cfg *config.Config) *cxtHandler {
	return &cxtHandler{
		env:               e,
		root:              graphutil.NewTree(CallEntry{Site: -1, Callee: -1}),
		maxLen:            cfg.MaxCxtLen,
		insensitiveCycles: cfg.CxtInsensitiveCycles,
		cycleEdgesAt:      -1,
	}
}

// inValueFlowCycle returns true if e is a call or return edge inside a cycle of the value-flow graph. The cycles
// are computed again when indirect calls have added edges since the last computation.
func (h *cxtHandler) inValueFlowCycle(e *vfg.Edge) bool {
	if !h.insensitiveCycles {
		return false
	}
	if h.cycleEdgesAt != h.graph.NumEdges() {
		h.cycleEdges = h.graph.CallRetEdgesInCycles()
		h.cycleEdgesAt = h.graph.NumEdges()
	}
	return h.cycleEdges[e.ID]
}

func (h *cxtHandler) emptyCxt() ContextCond {
	return ContextCond{cxt: h.root}
}

func (h *cxtHandler) isRecursive(e CallEntry) bool {
	return h.callGraph.IsEdgeInRecursion(h.prog.CallSites[e.Site], h.prog.Funcs[e.Callee])
}

// handle updates c when moving backward along e. Moving backward along a call edge returns to the caller: the
// call site must match the top of the context. Moving backward along a return edge enters the callee: the call
// site is pushed. Calls inside recursion are treated as assignments, and so are the calls inside value-flow
// cycles when those are context-insensitive.
func (h *cxtHandler) handle(c ContextCond, e *vfg.Edge) (ContextCond, bool) {
	if (e.IsCall() || e.IsRet()) && h.inValueFlowCycle(e) {
		h.stats.NumInsensitiveCallRets++
		return c, true
	}
	switch {
	case e.IsCall():
		callee := h.graph.Node(e.Dst).Fn
		if h.callGraph.IsEdgeInRecursion(e.Site, callee) {
			return c.popRecursive(h.isRecursive), true
		}
		return c.match(CallEntry{Site: e.Site.ID, Callee: callee.ID})
	case e.IsRet():
		callee := h.graph.Node(e.Src).Fn
		if h.callGraph.IsEdgeInRecursion(e.Site, callee) {
			return c.popRecursive(h.isRecursive), true
		}
		entry := CallEntry{Site: e.Site.ID, Callee: callee.ID}
		if c.contains(entry) {
			h.logger.Warnf("call site %s already in context %s, stopping query", e.Site, c)
			h.oob = true
			return c, false
		}
		return c.push(entry, h.maxLen), true
	}
	return c, true
}

// isHeapCond returns true if the heap object obj may stand for several runtime objects under context c
func (h *cxtHandler) isHeapCond(obj pag.NodeID, c ContextCond) bool {
	o := h.prog.Obj(obj)
	if o == nil || !o.Heap {
		return false
	}
	alloc := h.prog.AllocSite(obj)
	if alloc == nil || !c.IsConcrete() {
		return true
	}
	return h.callGraph.IsInCycle(alloc.Func()) || alloc.Func().InLoop(alloc.Block())
}

func (h *cxtHandler) isSingleton(obj pag.NodeID) bool {
	o := h.prog.Obj(obj)
	return o != nil && o.Global && !o.Heap
}

// flowFallback answers the queries of top-level pointers with a flow-sensitive solver, and the queries of objects
// with the whole-program analysis
type flowFallback struct {
	flow    *FlowSolver
	answers map[pag.NodeID]*pts.PointsTo
}

func (f *flowFallback) fallback(n pag.NodeID) *pts.PointsTo {
	if f.flow.prog.IsObject(n) {
		return f.flow.pre.Pts(n)
	}
	if res, ok := f.answers[n]; ok {
		return res
	}
	res := f.flow.ComputeDDAPts(n)
	f.answers[n] = res
	return res
}

// ContextSolver is the context-sensitive demand-driven solver
type ContextSolver = Solver[ContextCond]

// NewContext returns a context-sensitive solver. Queries running out of budget fall back to a flow-sensitive
// solver.
func NewContext(pre *andersen.Solver, cfg *config.Config, logger *config.LogGroup, stats *Stats) *ContextSolver {
	e := newEnv(pre, cfg, logger, stats)
	st := &contextStrategy{
		cxtHandler:   newCxtHandler(e, cfg),
		flowFallback: flowFallback{flow: NewFlow(pre, cfg, logger, &Stats{}), answers: map[pag.NodeID]*pts.PointsTo{}},
	}
	return newSolver[ContextCond](e, st, cfg.Budget(config.ModeContext), cfg.Persistent())
}

type contextStrategy struct {
	*cxtHandler
	flowFallback
}

func (s *contextStrategy) Name() string { return config.ModeContext }

func (s *contextStrategy) EmptyCond() ContextCond { return s.emptyCxt() }

func (s *contextStrategy) HandleAddr(dpm DPItem[ContextCond], obj pag.NodeID) CVar[ContextCond] {
	return CVar[ContextCond]{Cond: dpm.Cond, Obj: obj}
}

func (s *contextStrategy) HandleBKCondition(dpm *DPItem[ContextCond], e *vfg.Edge) bool {
	c, ok := s.handle(dpm.Cond, e)
	dpm.Cond = c
	return ok
}

func (s *contextStrategy) PropagateViaObj(store, load CVar[ContextCond]) bool {
	return store.Obj == load.Obj && IsCondCompatible(store.Cond, load.Cond, s.isSingleton(store.Obj))
}

func (s *contextStrategy) IsHeapCondMemObj(v CVar[ContextCond], _ *vfg.Node) bool {
	return s.isHeapCond(v.Obj, v.Cond)
}

func (s *contextStrategy) MustAlias(load, store DPItem[ContextCond]) bool {
	return s.mustAlias(load.Loc, store.Loc, store.Node)
}

func (s *contextStrategy) ConservativeFallback(dpm DPItem[ContextCond]) *pts.PointsTo {
	return s.fallback(dpm.Node)
}
