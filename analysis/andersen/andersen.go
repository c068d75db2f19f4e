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

// Package andersen implements an inclusion-based (Andersen-style) whole-program pointer analysis over the
// constraint graph of a program, with difference propagation, online cycle elimination and on-the-fly call graph
// construction.
package andersen

import (
	"github.com/awslabs/ar-go-pta/analysis/callgraph"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/constraint"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
	"github.com/awslabs/ar-go-pta/internal/graphutil"
	"github.com/bits-and-blooms/bitset"
	"golang.org/x/tools/container/intsets"
)

// Stats are the statistics of one run of the solver
type Stats struct {
	NumProcessedAddr   int
	NumProcessedCopy   int
	NumProcessedGep    int
	NumProcessedLoad   int
	NumProcessedStore  int
	NumProcessedNodes  int
	NumAddedCopyEdges  int
	NumSCCDetections   int
	NumMergedNodes     int
	NumCollapsedObjs   int
	NumIndirectEdges   int
	NumCallGraphRounds int
}

// Solver is the whole-program pointer analysis. After Solve, it answers points-to and alias queries.
type Solver struct {
	prog      *pag.Program
	cg        *constraint.Graph
	callGraph *callgraph.Graph
	ptd       pts.DiffPTData[pag.NodeID]
	cache     *pts.PersistentCache

	worklist intsets.Sparse
	scc      *graphutil.SCCDetector
	touched  *bitset.BitSet
	popped   int

	fieldLimit  int
	sccInterval int

	logger *config.LogGroup
	stats  *Stats

	// StepHook, if not nil, is called after each node is processed
	StepHook func()
}

// New returns a solver for the program, configured by cfg. The statistics are collected in stats, which must not
// be nil.
func New(prog *pag.Program, cfg *config.Config, logger *config.LogGroup, stats *Stats) *Solver {
	s := &Solver{
		prog:        prog,
		cg:          constraint.New(prog),
		callGraph:   callgraph.New(prog),
		touched:     bitset.New(uint(prog.NumNodes())),
		fieldLimit:  cfg.FieldLimit,
		sccInterval: cfg.SCCInterval,
		logger:      logger,
		stats:       stats,
	}
	if cfg.Persistent() {
		s.cache = pts.NewPersistentCache()
		s.cache.Check = cfg.CheckPtsCache
		s.ptd = pts.NewPersistentDiff[pag.NodeID](s.cache, false)
	} else {
		s.ptd = pts.NewMutableDiff[pag.NodeID](false)
	}
	s.scc = graphutil.NewSCCDetector(s.sccNodes, s.sccSuccs)
	return s
}

// Analyze runs the whole-program analysis of prog
func Analyze(prog *pag.Program, cfg *config.Config, logger *config.LogGroup) *Solver {
	s := New(prog, cfg, logger, &Stats{})
	s.Solve()
	return s
}

func (s *Solver) sccNodes() []int {
	nodes := s.cg.Nodes()
	res := make([]int, len(nodes))
	for i, n := range nodes {
		res[i] = int(n)
	}
	return res
}

func (s *Solver) sccSuccs(n int) []int {
	succs := s.cg.DirectSuccs(pag.NodeID(n))
	res := make([]int, len(succs))
	for i, x := range succs {
		res[i] = int(x)
	}
	return res
}

// Solve runs the solver until the worklist is empty and no new call edge is discovered
func (s *Solver) Solve() {
	s.initWorklist()
	s.detectCycles(nil)
	for {
		s.drain()
		s.stats.NumCallGraphRounds++
		if !s.updateCallGraph() {
			break
		}
	}
	s.logger.Infof("andersen: %d nodes processed, %d sccs merged nodes, %d collapsed objects, %d indirect call edges",
		s.stats.NumProcessedNodes, s.stats.NumMergedNodes, s.stats.NumCollapsedObjs, s.stats.NumIndirectEdges)
}

func (s *Solver) push(n pag.NodeID) {
	s.worklist.Insert(int(s.cg.Rep(n)))
}

// initWorklist processes every address edge
func (s *Solver) initWorklist() {
	for _, n := range s.cg.Nodes() {
		for _, e := range s.cg.OutEdges(n, constraint.Addr) {
			s.stats.NumProcessedAddr++
			s.ptd.AddPts(s.cg.Rep(e.Dst), e.Src)
			s.push(e.Dst)
		}
	}
}

func (s *Solver) drain() {
	var x int
	for s.worklist.TakeMin(&x) {
		n := s.cg.Rep(pag.NodeID(x))
		s.processNode(n)
		s.popped++
		if s.sccInterval > 0 && s.popped%s.sccInterval == 0 && s.touched.Any() {
			s.detectCycles(s.touched)
		}
		if s.StepHook != nil {
			s.StepHook()
		}
	}
}

func (s *Solver) processNode(n pag.NodeID) {
	s.stats.NumProcessedNodes++
	if s.cg.IsPWC(n) {
		for _, o := range s.ptd.GetPts(n).Elems() {
			s.collapseField(o)
		}
	}
	if !s.ptd.ComputeDiffPts(n, s.ptd.GetPts(n)) {
		return
	}
	// the diff is a snapshot: n's set may grow while it is processed
	diff := s.ptd.GetDiffPts(n).Clone()

	for _, o := range diff.Elems() {
		o = s.objOf(o)
		for _, e := range s.cg.OutEdges(n, constraint.Load) {
			s.stats.NumProcessedLoad++
			s.addCopyEdge(o, e.Dst)
		}
		for _, e := range s.cg.InEdges(n, constraint.Store) {
			s.stats.NumProcessedStore++
			s.addCopyEdge(e.Src, o)
		}
	}
	for _, e := range s.cg.OutEdges(n, constraint.Copy) {
		s.stats.NumProcessedCopy++
		if s.ptd.UnionPtsSet(s.cg.Rep(e.Dst), diff) {
			s.push(e.Dst)
		}
	}
	for _, k := range []constraint.EdgeKind{constraint.NormalGep, constraint.VariantGep} {
		for _, e := range s.cg.OutEdges(n, k) {
			s.stats.NumProcessedGep++
			s.processGep(diff, e)
		}
	}
}

// addCopyEdge adds a copy edge and propagates the whole points-to set of its source
func (s *Solver) addCopyEdge(src, dst pag.NodeID) {
	if !s.cg.AddCopyEdge(src, dst) {
		return
	}
	s.stats.NumAddedCopyEdges++
	src, dst = s.cg.Rep(src), s.cg.Rep(dst)
	s.touched.Set(uint(src))
	s.touched.Set(uint(dst))
	if s.ptd.UnionPts(dst, src) {
		s.push(dst)
	}
}

func (s *Solver) processGep(diff *pts.PointsTo, e constraint.Edge) {
	res := &pts.PointsTo{}
	for _, o := range diff.Elems() {
		o = s.objOf(o)
		if s.prog.IsBlackHoleOrConstant(o) {
			res.Insert(o)
			continue
		}
		base := s.prog.BaseObj(o)
		if e.Kind == constraint.VariantGep {
			s.collapseField(base)
			res.Insert(base)
			continue
		}
		if s.prog.Obj(o).IsFieldInsensitive() {
			res.Insert(base)
			continue
		}
		f := s.prog.GepObj(o, e.Offset)
		if s.prog.NumFieldObjs(base) > s.fieldLimit {
			s.collapseField(base)
		}
		res.Insert(s.objOf(f))
	}
	if s.ptd.UnionPtsSet(s.cg.Rep(e.Dst), res) {
		s.push(e.Dst)
	}
}

// objOf returns the object standing for o in points-to sets: the base object if o is a field of a collapsed
// object, o otherwise. Constraint graph representatives never appear in points-to sets.
func (s *Solver) objOf(o pag.NodeID) pag.NodeID {
	if obj := s.prog.Obj(o); obj != nil && obj.IsFieldInsensitive() {
		return obj.ID
	}
	return o
}

// collapseField makes the base object of o field-insensitive and merges its fields into it
func (s *Solver) collapseField(o pag.NodeID) {
	if s.prog.IsBlackHoleOrConstant(o) {
		return
	}
	base := s.prog.BaseObj(o)
	if s.prog.Obj(base).IsFieldInsensitive() {
		return
	}
	merged := s.cg.CollapseField(base)
	s.stats.NumCollapsedObjs++
	s.logger.Debugf("andersen: collapsing fields of %s", s.prog.Node(base))
	for _, f := range merged {
		s.mergePts(f, base)
	}
	rep := s.cg.Rep(base)
	s.ptd.ClearPropaPts(rep)
	s.push(rep)
}

// mergePts moves the points-to set of a merged node to its new representative
func (s *Solver) mergePts(node, rep pag.NodeID) {
	rep = s.cg.Rep(rep)
	s.ptd.UnionPts(rep, node)
	s.ptd.ClearFullPts(node)
	s.ptd.ClearPropaPts(node)
}

// detectCycles finds the cycles of copy and gep edges and merges them. If candidates is not nil, the detection is
// restricted to those nodes.
func (s *Solver) detectCycles(candidates *bitset.BitSet) {
	s.stats.NumSCCDetections++
	if candidates == nil {
		s.scc.Find()
	} else {
		reps := bitset.New(candidates.Len())
		for i, ok := candidates.NextSet(0); ok; i, ok = candidates.NextSet(i + 1) {
			reps.Set(uint(s.cg.Rep(pag.NodeID(i))))
		}
		s.scc.FindCandidates(reps)
	}
	for _, rep := range s.scc.TopoNodes() {
		subs := s.scc.SubNodes(rep)
		if subs.Count() <= 1 {
			continue
		}
		r := pag.NodeID(rep)
		for i, ok := subs.NextSet(0); ok; i, ok = subs.NextSet(i + 1) {
			if int(i) != rep {
				s.mergeNodeToRep(pag.NodeID(i), r)
			}
		}
		s.ptd.ClearPropaPts(r)
		s.push(r)
	}
	s.touched.ClearAll()
}

func (s *Solver) mergeNodeToRep(node, rep pag.NodeID) {
	if s.cg.Rep(node) == s.cg.Rep(rep) {
		return
	}
	s.stats.NumMergedNodes++
	if s.cg.MergeNodeToRep(node, rep) {
		s.logger.Debugf("andersen: positive weight cycle on %s", s.prog.Node(rep))
	}
	s.mergePts(node, rep)
}

// updateCallGraph connects the indirect call sites to the functions their function pointer points to. It returns
// true if a new call edge was found.
func (s *Solver) updateCallGraph() bool {
	changed := false
	for _, cs := range s.prog.CallSites {
		if !cs.IsIndirect() {
			continue
		}
		for _, o := range s.ptd.GetPts(s.cg.Rep(cs.FunPtr)).Elems() {
			fn := s.prog.FuncOfObj(s.objOf(o))
			if fn == nil || !s.callGraph.AddEdge(cs, fn) {
				continue
			}
			s.stats.NumIndirectEdges++
			s.logger.Debugf("andersen: resolved %s to %s", cs, fn.Name)
			s.connectCall(cs, fn)
			changed = true
		}
	}
	if changed {
		s.callGraph.FindSCCs()
		s.detectCycles(nil)
	}
	return changed
}

func (s *Solver) connectCall(cs *pag.CallSite, fn *pag.Function) {
	for i, arg := range cs.Args {
		if i < len(fn.Params) {
			s.addCopyEdge(arg, fn.Params[i])
		}
	}
	if cs.Ret != pag.NullPtr {
		s.addCopyEdge(fn.RetNode, cs.Ret)
	}
}
