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

// Package dda implements a demand-driven pointer analysis. A query for the points-to set of a pointer walks the
// value-flow graph backward from the definition of the pointer, one probe at a time, until it reaches the address
// statements the pointer may get its value from. The same solver is instantiated with three kinds of conditions:
// none (flow-sensitive), call strings (context-sensitive) and call strings with branch guards (path-sensitive).
//
// Each query has a step budget. A query that runs out of budget returns the points-to set of a more conservative
// analysis.
package dda

import (
	"fmt"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/callgraph"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
	"github.com/awslabs/ar-go-pta/analysis/vfg"
	"golang.org/x/exp/slices"
)

// Strategy is what distinguishes the flow-, context- and path-sensitive analyses
type Strategy[C Cond[C]] interface {
	// Name of the analysis
	Name() string

	// EmptyCond is the condition queries start with
	EmptyCond() C

	// HandleAddr returns the conditional variable of obj when the address statement of dpm is reached
	HandleAddr(dpm DPItem[C], obj pag.NodeID) CVar[C]

	// HandleBKCondition updates the condition of dpm, which is moving backward along e. It returns false if the
	// value flow along e is infeasible under the condition.
	HandleBKCondition(dpm *DPItem[C], e *vfg.Edge) bool

	// PropagateViaObj returns true if the value stored into store may be the value loaded from load
	PropagateViaObj(store, load CVar[C]) bool

	// IsHeapCondMemObj returns true if v may stand for several runtime objects at store
	IsHeapCondMemObj(v CVar[C], store *vfg.Node) bool

	// MustAlias returns true if the store of store must write the object read by the load of load
	MustAlias(load, store DPItem[C]) bool

	// ConservativeFallback returns the objects dpm may point to, computed by a less precise analysis
	ConservativeFallback(dpm DPItem[C]) *pts.PointsTo
}

// Stats are the statistics of a demand-driven solver
type Stats struct {
	NumQueries             int
	NumOutOfBudgetQueries  int
	NumSteps               int
	NumOutOfBudgetDpms     int
	NumStrongUpdates       int
	NumMustAlias           int
	NumInfeasibleFlows     int
	NumRecomputes          int
	NumIndirectEdges       int
	NumInsensitiveCallRets int
}

func (st *Stats) String() string {
	return fmt.Sprintf("queries: %d, out of budget: %d, steps: %d, out of budget probes: %d, strong updates: %d, "+
		"must alias: %d, infeasible: %d, recomputes: %d, indirect call edges: %d, insensitive calls in cycles: %d",
		st.NumQueries, st.NumOutOfBudgetQueries, st.NumSteps, st.NumOutOfBudgetDpms, st.NumStrongUpdates,
		st.NumMustAlias, st.NumInfeasibleFlows, st.NumRecomputes, st.NumIndirectEdges, st.NumInsensitiveCallRets)
}

// env is the state shared by a solver and its strategy
type env struct {
	prog  *pag.Program
	graph *vfg.Graph
	pre   *andersen.Solver

	// callGraph is the call graph of the demand-driven analysis. With on-the-fly call graph construction, it
	// starts with the direct calls only.
	callGraph *callgraph.Graph

	logger *config.LogGroup
	stats  *Stats

	// oob is true when the current query is out of budget
	oob bool
}

func newEnv(pre *andersen.Solver, cfg *config.Config, logger *config.LogGroup, stats *Stats) *env {
	prog := pre.Program()
	e := &env{
		prog:      prog,
		graph:     vfg.New(pre, cfg.OnTheFlyCallgraph, logger),
		pre:       pre,
		callGraph: callgraph.New(prog),
		logger:    logger,
		stats:     stats,
	}
	if !cfg.OnTheFlyCallgraph {
		for _, edge := range pre.CallGraph().Edges() {
			e.callGraph.AddEdge(edge.Site, edge.Callee)
		}
		e.callGraph.FindSCCs()
	}
	return e
}

// isLocalVarInRecursion returns true if obj is a stack object of a function on a cycle of the call graph
func (e *env) isLocalVarInRecursion(obj pag.NodeID) bool {
	o := e.prog.Obj(obj)
	return o != nil && o.Stack && o.Owner != nil && e.callGraph.IsInCycle(o.Owner)
}

// isStrongObj returns true if obj stands for a single runtime location, whatever the condition
func (e *env) isStrongObj(obj pag.NodeID) bool {
	o := e.prog.Obj(obj)
	if o == nil || e.prog.IsBlackHoleOrConstant(obj) {
		return false
	}
	return !o.Heap && !o.Array && !o.IsFieldInsensitive() && !e.isLocalVarInRecursion(obj)
}

// mustAlias returns true if the pointers of the load at load and of the store at store both point to the single
// object obj only
func (e *env) mustAlias(load, store vfg.NodeID, obj pag.NodeID) bool {
	l, ok := e.graph.Node(load).Stmt.(*pag.Load)
	if !ok {
		return false
	}
	s, ok := e.graph.Node(store).Stmt.(*pag.Store)
	if !ok {
		return false
	}
	lo, ok := e.pre.Pts(l.Ptr).Singleton()
	if !ok || lo != obj {
		return false
	}
	so, ok := e.pre.Pts(s.Ptr).Singleton()
	return ok && so == obj && e.isStrongObj(obj)
}

// Solver is the demand-driven solver, parameterized by its condition
type Solver[C Cond[C]] struct {
	*env
	strategy Strategy[C]
	budget   int
	steps    int

	cvars *cvarTable[C]

	// cache holds the points-to sets of the probes, top-level probes in the main key space and address-taken
	// probes in the versioned key space. The sets contain conditional variable ids.
	cache *pts.Versioned[DPItem[C], DPItem[C]]

	// results holds the answers of the queries
	results pts.PTData[pag.NodeID]

	visited map[DPItem[C]]bool
	oobDpms map[DPItem[C]]bool

	// per-query indexes
	locToDpms map[vfg.NodeID]map[DPItem[C]]bool
	loadDpm   map[DPItem[C]]DPItem[C]
	loadCVar  map[DPItem[C]]CVar[C]

	// recompute work stack
	stack   []DPItem[C]
	pending map[DPItem[C]]bool

	// funPtrSites maps the definition of a function pointer to the indirect call sites calling it
	funPtrSites map[vfg.NodeID][]*pag.CallSite
}

func newSolver[C Cond[C]](e *env, strategy Strategy[C], budget int, persistent bool) *Solver[C] {
	s := &Solver[C]{
		env:         e,
		strategy:    strategy,
		budget:      budget,
		cvars:       newCVarTable[C](),
		cache:       pts.NewVersioned[DPItem[C], DPItem[C]](persistent, nil),
		results:     pts.NewMutable[pag.NodeID](false),
		visited:     map[DPItem[C]]bool{},
		oobDpms:     map[DPItem[C]]bool{},
		locToDpms:   map[vfg.NodeID]map[DPItem[C]]bool{},
		loadDpm:     map[DPItem[C]]DPItem[C]{},
		loadCVar:    map[DPItem[C]]CVar[C]{},
		pending:     map[DPItem[C]]bool{},
		funPtrSites: map[vfg.NodeID][]*pag.CallSite{},
	}
	if e.graph.OnTheFly() {
		for _, cs := range e.prog.CallSites {
			if cs.IsIndirect() {
				def := e.graph.DefNode(cs.FunPtr)
				s.funPtrSites[def] = append(s.funPtrSites[def], cs)
			}
		}
	}
	return s
}

// SetBudget sets the maximum number of steps of a query
func (s *Solver[C]) SetBudget(budget int) {
	s.budget = budget
}

// Graph returns the value-flow graph the solver runs on
func (s *Solver[C]) Graph() *vfg.Graph {
	return s.graph
}

// CallGraph returns the call graph of the solver, including the indirect calls resolved on demand
func (s *Solver[C]) CallGraph() *callgraph.Graph {
	return s.callGraph
}

// Stats returns the statistics of the solver
func (s *Solver[C]) Stats() *Stats {
	return s.stats
}

// Name returns the name of the analysis
func (s *Solver[C]) Name() string {
	return s.strategy.Name()
}

// ComputeDDAPts answers the query for the points-to set of the top-level pointer id at its definition, and
// returns the result. A query running out of budget returns the conservative fallback of the pointer.
func (s *Solver[C]) ComputeDDAPts(id pag.NodeID) *pts.PointsTo {
	s.resetQuery()
	s.stats.NumQueries++
	dpm := DPItem[C]{Node: id, Loc: s.graph.DefNode(id), Cond: s.strategy.EmptyCond()}
	s.findPT(dpm)
	s.drainRecompute()

	var res *pts.PointsTo
	if s.oob {
		s.stats.NumOutOfBudgetQueries++
		s.logger.Debugf("%s: query for %s out of budget", s.strategy.Name(), s.prog.Node(id))
		res = s.strategy.ConservativeFallback(dpm)
		s.unionCached(dpm, s.cvars.withCond(res, s.strategy.EmptyCond()))
		s.markOutOfBudget(dpm)
	} else {
		res = s.cvars.objects(s.cached(dpm))
	}
	s.results.UnionPtsSet(id, res)
	s.resetQuery()
	return res.Clone()
}

// Pts returns the union of the answers of the queries for id. It is empty if id has not been queried.
func (s *Solver[C]) Pts(id pag.NodeID) *pts.PointsTo {
	return s.results.GetPts(id).Clone()
}

// Alias queries both pointers and returns true if they may point to the same object
func (s *Solver[C]) Alias(a, b pag.NodeID) bool {
	return s.ComputeDDAPts(a).Intersects(s.ComputeDDAPts(b))
}

// resetQuery clears the per-query state. The visited flags of the probes of the query are cleared, except for
// the probes that ran out of budget: they keep their conservative answer for the next queries.
func (s *Solver[C]) resetQuery() {
	for _, dpms := range s.locToDpms {
		for dpm := range dpms {
			if !s.oobDpms[dpm] {
				delete(s.visited, dpm)
			}
		}
	}
	s.locToDpms = map[vfg.NodeID]map[DPItem[C]]bool{}
	s.loadDpm = map[DPItem[C]]DPItem[C]{}
	s.loadCVar = map[DPItem[C]]CVar[C]{}
	s.stack = nil
	s.pending = map[DPItem[C]]bool{}
	s.oob = false
	s.steps = 0
}

func (s *Solver[C]) isTopLevel(loc vfg.NodeID) bool {
	k := s.graph.Node(loc).Kind
	return k != vfg.StoreNode && !k.IsMemoryRegion()
}

func (s *Solver[C]) cached(dpm DPItem[C]) *pts.PointsTo {
	if s.isTopLevel(dpm.Loc) {
		return s.cache.GetPts(dpm)
	}
	return s.cache.GetVersionedPts(dpm)
}

func (s *Solver[C]) unionCached(dpm DPItem[C], set *pts.PointsTo) bool {
	if s.isTopLevel(dpm.Loc) {
		return s.cache.UnionPtsSet(dpm, set)
	}
	return s.cache.UnionVersionedPtsSet(dpm, set)
}

func (s *Solver[C]) addDpmToLoc(dpm DPItem[C]) {
	m, ok := s.locToDpms[dpm.Loc]
	if !ok {
		m = map[DPItem[C]]bool{}
		s.locToDpms[dpm.Loc] = m
	}
	m[dpm] = true
}

func (s *Solver[C]) markOutOfBudget(dpm DPItem[C]) {
	if !s.oobDpms[dpm] {
		s.oobDpms[dpm] = true
		s.stats.NumOutOfBudgetDpms++
	}
}

// testOutOfBudget counts a step and returns true if dpm must not be explored
func (s *Solver[C]) testOutOfBudget(dpm DPItem[C]) bool {
	if s.oob {
		return true
	}
	s.steps++
	s.stats.NumSteps++
	if s.steps > s.budget {
		s.oob = true
	}
	return s.oob || s.oobDpms[dpm]
}

// findPT returns the points-to set of the probe, a set of conditional variable ids owned by the cache
func (s *Solver[C]) findPT(dpm DPItem[C]) *pts.PointsTo {
	if s.visited[dpm] {
		return s.cached(dpm)
	}
	s.addDpmToLoc(dpm)
	s.visited[dpm] = true
	if s.testOutOfBudget(dpm) {
		s.handleOutOfBudgetDpm(dpm)
	} else {
		res := &pts.PointsTo{}
		s.handleSingleStatement(dpm, res)
		s.updateCachedPointsTo(dpm, res)
	}
	return s.cached(dpm)
}

func (s *Solver[C]) handleOutOfBudgetDpm(dpm DPItem[C]) {
	fallback := s.strategy.ConservativeFallback(dpm)
	s.updateCachedPointsTo(dpm, s.cvars.withCond(fallback, s.strategy.EmptyCond()))
	s.markOutOfBudget(dpm)
}

func (s *Solver[C]) updateCachedPointsTo(dpm DPItem[C], set *pts.PointsTo) bool {
	if !s.unionCached(dpm, set) {
		return false
	}
	s.reCompute(dpm)
	return true
}

// reCompute records that the probes depending on dpm must be re-driven
func (s *Solver[C]) reCompute(dpm DPItem[C]) {
	if s.pending[dpm] {
		return
	}
	s.pending[dpm] = true
	s.stack = append(s.stack, dpm)
}

// drainRecompute re-drives the probes that depend on a changed probe, until no cached set changes
func (s *Solver[C]) drainRecompute() {
	for len(s.stack) > 0 {
		dpm := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		delete(s.pending, dpm)
		for _, cs := range s.funPtrSites[dpm.Loc] {
			if dpm.Node == cs.FunPtr {
				s.reComputeForEdges(dpm, s.updateCallGraphAndVFG(dpm, cs), true)
			}
		}
		s.reComputeForEdges(dpm, s.graph.OutEdges(dpm.Loc), false)
	}
}

// reComputeForEdges re-drives the probes recorded at the destinations of edges. Along an indirect edge to a node
// that is not a load, only the probes of the same object are re-driven, unless the edges are new call edges.
func (s *Solver[C]) reComputeForEdges(dpm DPItem[C], edges []*vfg.Edge, indirectCall bool) {
	for _, e := range edges {
		dpms := s.dpmsAt(e.Dst)
		for _, dst := range dpms {
			if !indirectCall && e.IsIndirect() && s.graph.Node(e.Dst).Kind != vfg.LoadNode && dst.Node != dpm.Node {
				continue
			}
			s.stats.NumRecomputes++
			delete(s.visited, dst)
			s.findPT(dst)
		}
	}
}

// dpmsAt returns the probes recorded at loc, in order
func (s *Solver[C]) dpmsAt(loc vfg.NodeID) []DPItem[C] {
	var res []DPItem[C]
	for dpm := range s.locToDpms[loc] {
		res = append(res, dpm)
	}
	slices.SortFunc(res, func(a, b DPItem[C]) bool { return a.Less(b) })
	return res
}

// updateCallGraphAndVFG connects cs to the functions its function pointer was found to point to, and returns the
// new edges of the value-flow graph
func (s *Solver[C]) updateCallGraphAndVFG(dpm DPItem[C], cs *pag.CallSite) []*vfg.Edge {
	var edges []*vfg.Edge
	changed := false
	for _, v := range s.cvars.varsOf(s.cached(dpm)) {
		fn := s.prog.FuncOfObj(v.Obj)
		if fn == nil || !s.callGraph.AddEdge(cs, fn) {
			continue
		}
		changed = true
		s.stats.NumIndirectEdges++
		s.logger.Debugf("%s: resolved %s to %s", s.strategy.Name(), cs, fn.Name)
		for _, id := range s.graph.ConnectCallerAndCallee(cs, fn) {
			edges = append(edges, s.graph.Edge(id))
		}
	}
	if changed {
		s.callGraph.FindSCCs()
	}
	return edges
}

// resolveFunPtr queries the function pointers of the indirect calls whose callees flow into the location of dpm
func (s *Solver[C]) resolveFunPtr(dpm DPItem[C]) {
	if !s.graph.OnTheFly() {
		return
	}
	if cs := s.graph.IsCallSiteRet(dpm.Loc); cs != nil {
		if cs.IsIndirect() {
			s.findPT(dpm.withLocVar(s.graph.DefNode(cs.FunPtr), cs.FunPtr))
		}
	} else if fn := s.graph.IsFunEntry(dpm.Loc); fn != nil {
		for _, cs := range s.pre.CallGraph().IndirectCallSitesInvoking(fn) {
			s.findPT(dpm.withLocVar(s.graph.DefNode(cs.FunPtr), cs.FunPtr))
		}
	}
}

func (s *Solver[C]) handleSingleStatement(dpm DPItem[C], res *pts.PointsTo) {
	s.resolveFunPtr(dpm)
	node := s.graph.Node(dpm.Loc)
	switch node.Kind {
	case vfg.AddrNode:
		addr := node.Stmt.(*pag.Addr)
		res.Insert(s.cvars.id(s.strategy.HandleAddr(dpm, addr.Obj)))
	case vfg.CopyNode, vfg.PhiNode, vfg.NullPtrNode,
		vfg.ActualParmNode, vfg.FormalParmNode, vfg.ActualRetNode, vfg.FormalRetNode:
		s.backtraceAlongDirectVF(res, dpm)
	case vfg.GepNode:
		src := &pts.PointsTo{}
		s.backtraceAlongDirectVF(src, dpm)
		s.processGepPts(res, src, node.Stmt.(*pag.Gep))
	case vfg.LoadNode:
		load := node.Stmt.(*pag.Load)
		for _, v := range s.cvars.varsOf(s.ptsOfOperand(dpm, load.Ptr)) {
			s.backtraceAlongIndirectVF(res, s.dpmWithOldCond(dpm, v, dpm.Loc))
		}
	case vfg.StoreNode:
		s.handleStore(dpm, node, res)
	case vfg.FormalInNode, vfg.FormalOutNode, vfg.ActualInNode, vfg.ActualOutNode:
		s.backtraceAlongIndirectVF(res, dpm)
	default:
		panic(fmt.Sprintf("dda: unexpected value-flow node %s", node))
	}
}

func (s *Solver[C]) handleStore(dpm DPItem[C], node *vfg.Node, res *pts.PointsTo) {
	store := node.Stmt.(*pag.Store)
	load := s.getLoadDpm(dpm)
	if s.strategy.MustAlias(load, dpm) {
		s.stats.NumMustAlias++
		s.backtraceToStoreSrc(res, dpm)
		return
	}
	// A store through a pointer with no target never executes, and the query ends there.
	storePts := s.cvars.varsOf(s.ptsOfOperand(dpm, store.Ptr))
	passedThrough := false
	for _, v := range storePts {
		if !s.strategy.PropagateViaObj(v, s.loadCVar[dpm]) {
			// the store writes another object, the loaded one flows through unchanged
			if !passedThrough {
				s.backtraceAlongIndirectVF(res, dpm)
				passedThrough = true
			}
			continue
		}
		old := s.dpmWithOldCond(dpm, v, dpm.Loc)
		s.backtraceToStoreSrc(res, old)
		if s.isStrongUpdate(storePts, node) {
			s.stats.NumStrongUpdates++
			continue
		}
		// weak update: the previous value may survive, under the condition of the written object
		s.backtraceAlongIndirectVF(res, old)
	}
}

// isStrongUpdate returns true if the store writes a single runtime location, killing its previous value
func (s *Solver[C]) isStrongUpdate(storePts []CVar[C], store *vfg.Node) bool {
	if len(storePts) != 1 {
		return false
	}
	v := storePts[0]
	o := s.prog.Obj(v.Obj)
	if o == nil || s.prog.IsBlackHoleOrConstant(v.Obj) {
		return false
	}
	return !s.strategy.IsHeapCondMemObj(v, store) && !o.Array && !o.IsFieldInsensitive() &&
		!s.isLocalVarInRecursion(v.Obj)
}

func (s *Solver[C]) getLoadDpm(dpm DPItem[C]) DPItem[C] {
	load, ok := s.loadDpm[dpm]
	if !ok {
		panic(fmt.Sprintf("dda: no load recorded for %s", dpm))
	}
	return load
}

// dpmWithOldCond returns the probe of the object of v at loc, recording the load it originates from
func (s *Solver[C]) dpmWithOldCond(old DPItem[C], v CVar[C], loc vfg.NodeID) DPItem[C] {
	dpm := DPItem[C]{Node: v.Obj, Loc: loc, Cond: v.Cond}
	switch s.graph.Node(loc).Kind {
	case vfg.LoadNode:
		s.loadDpm[dpm] = old
		s.loadCVar[dpm] = v
	case vfg.StoreNode:
		s.loadDpm[dpm] = s.getLoadDpm(old)
		s.loadCVar[dpm] = v
	}
	return dpm
}

// ptsOfOperand starts a new computation for the pointer operand ptr of the load or store at the location of dpm
func (s *Solver[C]) ptsOfOperand(dpm DPItem[C], ptr pag.NodeID) *pts.PointsTo {
	res := &pts.PointsTo{}
	def := s.graph.DefNode(ptr)
	if e := s.graph.DirectEdge(def, dpm.Loc); e != nil {
		s.backwardPropDpm(res, ptr, dpm, e)
	}
	return res
}

func (s *Solver[C]) backtraceToStoreSrc(res *pts.PointsTo, dpm DPItem[C]) {
	store := s.graph.Node(dpm.Loc).Stmt.(*pag.Store)
	def := s.graph.DefNode(store.Src)
	if e := s.graph.DirectEdge(def, dpm.Loc); e != nil {
		s.backwardPropDpm(res, store.Src, dpm, e)
	}
}

func (s *Solver[C]) backtraceAlongDirectVF(res *pts.PointsTo, dpm DPItem[C]) {
	for _, e := range s.graph.InEdges(dpm.Loc) {
		if e.IsDirect() {
			s.backwardPropDpm(res, s.graph.Node(e.Src).Var, dpm, e)
		}
	}
}

func (s *Solver[C]) backtraceAlongIndirectVF(res *pts.PointsTo, dpm DPItem[C]) {
	if s.prog.IsBlackHoleOrConstant(dpm.Node) {
		return
	}
	for _, e := range s.graph.InEdges(dpm.Loc) {
		if e.IsIndirect() && e.Objs.Has(dpm.Node) {
			s.backwardPropDpm(res, dpm.Node, dpm, e)
		}
	}
}

func (s *Solver[C]) backwardPropDpm(res *pts.PointsTo, ptr pag.NodeID, old DPItem[C], e *vfg.Edge) {
	dpm := old.withLocVar(e.Src, ptr)
	if !s.strategy.HandleBKCondition(&dpm, e) {
		s.stats.NumInfeasibleFlows++
		return
	}
	if e.IsIndirect() {
		s.loadDpm[dpm] = s.getLoadDpm(old)
		s.loadCVar[dpm] = s.loadCVar[old]
	}
	res.Union(s.findPT(dpm))
}

// processGepPts adds to res the fields selected by gep in the objects of src
func (s *Solver[C]) processGepPts(res, src *pts.PointsTo, gep *pag.Gep) {
	for _, v := range s.cvars.varsOf(src) {
		obj := v.Obj
		switch {
		case s.prog.IsBlackHoleOrConstant(obj):
		case gep.Variant || s.prog.Obj(obj).IsFieldInsensitive():
			obj = s.prog.BaseObj(obj)
		default:
			obj = s.prog.GepObj(obj, gep.Offset)
		}
		res.Insert(s.cvars.id(CVar[C]{Cond: v.Cond, Obj: obj}))
	}
}
