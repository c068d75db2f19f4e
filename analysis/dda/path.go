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
	"strconv"
	"strings"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
	"github.com/awslabs/ar-go-pta/analysis/vfg"
)

// PathCond is a context with the branch literals of the value-flow path followed so far and the edges of that
// path. Guards and edge sets are hash-consed: equal sets have equal handles.
type PathCond struct {
	Cxt ContextCond

	cache *pts.PersistentCache
	guard pts.Handle
	edges pts.Handle
}

// Guard returns the literals of the condition. The empty guard is true.
func (c PathCond) Guard() []pag.Literal {
	if c.cache == nil {
		return nil
	}
	var res []pag.Literal
	for _, l := range c.cache.Get(c.guard).Elems() {
		res = append(res, pag.Literal(l))
	}
	return res
}

// NumEdges returns the number of value-flow edges remembered by the condition
func (c PathCond) NumEdges() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Get(c.edges).Len()
}

// Less orders conditions by context, then by guard, then by the edges of the path
func (c PathCond) Less(other PathCond) bool {
	if c.Cxt != other.Cxt {
		return c.Cxt.Less(other.Cxt)
	}
	if c.guard != other.guard {
		return c.guard < other.guard
	}
	return c.edges < other.edges
}

func (c PathCond) String() string {
	var sb strings.Builder
	sb.WriteString(c.Cxt.String())
	sb.WriteString("{")
	for i, l := range c.Guard() {
		if i > 0 {
			sb.WriteString(" & ")
		}
		if l.Negated() {
			sb.WriteString("!")
		}
		sb.WriteString("c")
		sb.WriteString(strconv.Itoa(l.Cond()))
	}
	sb.WriteString("}")
	return sb.String()
}

// consistent returns true if the union of the guards of a and b contains no literal and its negation
func consistent(cache *pts.PersistentCache, a, b pts.Handle) bool {
	u := cache.Get(cache.Union(a, b))
	for _, l := range u.Elems() {
		if u.Has(pts.NodeID(pag.Literal(l).Not())) {
			return false
		}
	}
	return true
}

// PathSolver is the path-sensitive demand-driven solver
type PathSolver = Solver[PathCond]

// NewPath returns a path-sensitive solver. Queries running out of budget fall back to a flow-sensitive solver.
func NewPath(pre *andersen.Solver, cfg *config.Config, logger *config.LogGroup, stats *Stats) *PathSolver {
	e := newEnv(pre, cfg, logger, stats)
	st := &pathStrategy{
		cxtHandler:   newCxtHandler(e, cfg),
		flowFallback: flowFallback{flow: NewFlow(pre, cfg, logger, &Stats{}), answers: map[pag.NodeID]*pts.PointsTo{}},
		cache:        pts.NewPersistentCache(),
		maxPathLen:   cfg.MaxPathLen,
	}
	st.cache.Check = cfg.CheckPtsCache
	return newSolver[PathCond](e, st, cfg.Budget(config.ModePath), cfg.Persistent())
}

type pathStrategy struct {
	*cxtHandler
	flowFallback
	cache      *pts.PersistentCache
	maxPathLen int
}

func (s *pathStrategy) Name() string { return config.ModePath }

func (s *pathStrategy) EmptyCond() PathCond {
	return PathCond{Cxt: s.emptyCxt(), cache: s.cache}
}

// HandleAddr keeps the context and the guard of the path. The edges are dropped.
func (s *pathStrategy) HandleAddr(dpm DPItem[PathCond], obj pag.NodeID) CVar[PathCond] {
	c := dpm.Cond
	c.edges = pts.EmptyHandle
	return CVar[PathCond]{Cond: c, Obj: obj}
}

func (s *pathStrategy) HandleBKCondition(dpm *DPItem[PathCond], e *vfg.Edge) bool {
	c := dpm.Cond
	cxt, ok := s.handle(c.Cxt, e)
	if !ok {
		return false
	}
	c.Cxt = cxt
	c, ok = s.handlePath(c, e)
	dpm.Cond = c
	return ok
}

// handlePath adds e and its guards to the path. Going through an edge a second time resets the guard to true.
// It returns false if the path is infeasible.
func (s *pathStrategy) handlePath(c PathCond, e *vfg.Edge) (PathCond, bool) {
	id := pts.NodeID(e.ID)
	if s.cache.Get(c.edges).Has(id) {
		c.guard = pts.EmptyHandle
		return c, true
	}
	if s.cache.Get(c.edges).Len() < s.maxPathLen {
		c.edges = s.cache.Union(c.edges, s.cache.Singleton(id))
	}
	for _, l := range s.guardsOf(e) {
		if s.cache.Get(c.guard).Has(pts.NodeID(l.Not())) {
			return c, false
		}
		c.guard = s.cache.Union(c.guard, s.cache.Singleton(pts.NodeID(l)))
	}
	return c, true
}

// guardsOf returns the literals guarding the two ends of e
func (s *pathStrategy) guardsOf(e *vfg.Edge) []pag.Literal {
	var res []pag.Literal
	if e.Guard != pag.NoGuard {
		res = append(res, e.Guard)
	}
	if blk := s.graph.Node(e.Dst).Block; blk != nil && blk.Guard != pag.NoGuard && blk.Guard != e.Guard {
		res = append(res, blk.Guard)
	}
	return res
}

func (s *pathStrategy) PropagateViaObj(store, load CVar[PathCond]) bool {
	return store.Obj == load.Obj &&
		IsCondCompatible(store.Cond.Cxt, load.Cond.Cxt, s.isSingleton(store.Obj)) &&
		consistent(s.cache, store.Cond.guard, load.Cond.guard)
}

func (s *pathStrategy) IsHeapCondMemObj(v CVar[PathCond], _ *vfg.Node) bool {
	return s.isHeapCond(v.Obj, v.Cond.Cxt)
}

func (s *pathStrategy) MustAlias(load, store DPItem[PathCond]) bool {
	return s.mustAlias(load.Loc, store.Loc, store.Node)
}

func (s *pathStrategy) ConservativeFallback(dpm DPItem[PathCond]) *pts.PointsTo {
	return s.fallback(dpm.Node)
}
