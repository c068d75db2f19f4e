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

package vfg

import (
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
	"github.com/awslabs/ar-go-pta/internal/graphutil"
	"github.com/bits-and-blooms/bitset"
)

// New builds the value-flow graph of the program analyzed by pre. If onTheFly is true, the indirect call sites
// are not connected to their callees: the demand-driven analysis connects them with ConnectCallerAndCallee when it
// resolves their function pointers.
func New(pre *andersen.Solver, onTheFly bool, logger *config.LogGroup) *Graph {
	g := &Graph{
		prog:        pre.Program(),
		pre:         pre,
		in:          map[NodeID][]EdgeID{},
		out:         map[NodeID][]EdgeID{},
		index:       map[edgeKey]EdgeID{},
		defs:        map[pag.NodeID]NodeID{},
		stmtNodes:   map[pag.StmtID]NodeID{},
		formalParms: map[*pag.Function][]NodeID{},
		formalRet:   map[*pag.Function]NodeID{},
		formalIn:    map[*pag.Function]NodeID{},
		formalOut:   map[*pag.Function]NodeID{},
		actualParms: map[*pag.CallSite][]NodeID{},
		actualRet:   map[*pag.CallSite]NodeID{},
		actualIn:    map[*pag.CallSite]NodeID{},
		actualOut:   map[*pag.CallSite]NodeID{},
		mod:         map[*pag.Function]*pts.PointsTo{},
		ref:         map[*pag.Function]*pts.PointsTo{},
		connected:   map[callKey]bool{},
		onTheFly:    onTheFly,
	}
	g.computeModRef()
	g.addNodes()
	g.addDirectEdges()
	for _, fn := range g.prog.Funcs {
		g.addIndirectEdges(fn)
	}
	for _, cs := range g.prog.CallSites {
		if cs.IsIndirect() && onTheFly {
			continue
		}
		for _, callee := range pre.CallGraph().Callees(cs) {
			g.ConnectCallerAndCallee(cs, callee)
		}
	}
	logger.Debugf("vfg: %d nodes, %d edges", len(g.nodes), len(g.edges))
	return g
}

// computeModRef computes the objects each function may modify and read, bottom-up on the call graph
func (g *Graph) computeModRef() {
	cg := g.pre.CallGraph()
	callees := func(fn *pag.Function) []*pag.Function {
		var res []*pag.Function
		for _, cs := range fn.CallSites {
			res = append(res, cg.Callees(cs)...)
		}
		return res
	}
	for _, fn := range g.prog.Funcs {
		mod, ref := &pts.PointsTo{}, &pts.PointsTo{}
		for _, s := range fn.Stmts() {
			switch s := s.(type) {
			case *pag.Store:
				mod.Union(g.pre.Pts(s.Ptr))
			case *pag.Load:
				ref.Union(g.pre.Pts(s.Ptr))
			}
		}
		g.mod[fn], g.ref[fn] = mod, ref
	}
	for _, scc := range graphutil.StronglyConnectedComponents(g.prog.Funcs, callees) {
		for changed := true; changed; {
			changed = false
			for _, fn := range scc {
				for _, callee := range callees(fn) {
					changed = g.mod[fn].Union(g.mod[callee]) || changed
					changed = g.ref[fn].Union(g.ref[callee]) || changed
				}
			}
		}
	}
}

func (g *Graph) addNode(n *Node) NodeID {
	n.ID = NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	return n.ID
}

// addDefNode adds a node defining its variable
func (g *Graph) addDefNode(n *Node) NodeID {
	id := g.addNode(n)
	g.defs[n.Var] = id
	return id
}

func (g *Graph) addNodes() {
	g.nullPtr = g.addDefNode(&Node{Kind: NullPtrNode, Var: pag.NullPtr})
	for _, fn := range g.prog.Funcs {
		for i, p := range fn.Params {
			id := g.addDefNode(&Node{Kind: FormalParmNode, Fn: fn, Var: p, Index: i, Block: fn.Entry()})
			g.formalParms[fn] = append(g.formalParms[fn], id)
		}
		g.formalRet[fn] = g.addDefNode(&Node{Kind: FormalRetNode, Fn: fn, Var: fn.RetNode})
		objs := g.mod[fn].Clone()
		objs.Union(g.ref[fn])
		if !objs.IsEmpty() {
			g.formalIn[fn] = g.addNode(&Node{Kind: FormalInNode, Fn: fn, Objs: objs, Block: fn.Entry()})
		}
		if !g.mod[fn].IsEmpty() {
			g.formalOut[fn] = g.addNode(&Node{Kind: FormalOutNode, Fn: fn, Objs: g.mod[fn].Clone()})
		}
		for _, s := range fn.Stmts() {
			switch s := s.(type) {
			case *pag.Addr:
				g.addStmtNode(AddrNode, s, s.Dst)
			case *pag.Copy:
				g.addStmtNode(CopyNode, s, s.Dst)
			case *pag.Gep:
				g.addStmtNode(GepNode, s, s.Dst)
			case *pag.Load:
				g.addStmtNode(LoadNode, s, s.Dst)
			case *pag.Store:
				g.addStmtNode(StoreNode, s, pag.NullPtr)
			case *pag.Phi:
				g.addStmtNode(PhiNode, s, s.Dst)
			case *pag.Call:
				g.addCallNodes(s.Site)
			case *pag.Ret:
			}
		}
	}
}

func (g *Graph) addStmtNode(kind NodeKind, s pag.Stmt, v pag.NodeID) {
	n := &Node{Kind: kind, Fn: s.Func(), Stmt: s, Var: v, Block: s.Block()}
	if v == pag.NullPtr {
		g.stmtNodes[s.ID()] = g.addNode(n)
	} else {
		g.stmtNodes[s.ID()] = g.addDefNode(n)
	}
}

func (g *Graph) addCallNodes(cs *pag.CallSite) {
	blk := cs.Stmt.Block()
	for i, arg := range cs.Args {
		id := g.addNode(&Node{Kind: ActualParmNode, Fn: cs.Caller, Site: cs, Var: arg, Index: i, Block: blk})
		g.actualParms[cs] = append(g.actualParms[cs], id)
	}
	if cs.Ret != pag.NullPtr {
		g.actualRet[cs] = g.addDefNode(&Node{Kind: ActualRetNode, Fn: cs.Caller, Site: cs, Var: cs.Ret, Block: blk})
	}
	in, out := &pts.PointsTo{}, &pts.PointsTo{}
	for _, callee := range g.pre.CallGraph().Callees(cs) {
		in.Union(g.mod[callee])
		in.Union(g.ref[callee])
		out.Union(g.mod[callee])
	}
	if !in.IsEmpty() {
		g.actualIn[cs] = g.addNode(&Node{Kind: ActualInNode, Fn: cs.Caller, Site: cs, Objs: in, Block: blk})
	}
	if !out.IsEmpty() {
		g.actualOut[cs] = g.addNode(&Node{Kind: ActualOutNode, Fn: cs.Caller, Site: cs, Objs: out, Block: blk})
	}
}

// addEdge adds an edge and returns its id and true if it is new. Adding an indirect edge that exists adds its
// objects to the existing edge.
func (g *Graph) addEdge(kind EdgeKind, src, dst NodeID, objs *pts.PointsTo, site *pag.CallSite) (EdgeID, bool) {
	key := edgeKey{kind, src, dst}
	if id, ok := g.index[key]; ok {
		if objs != nil {
			g.edges[id].Objs.Union(objs)
		}
		return id, false
	}
	e := &Edge{ID: EdgeID(len(g.edges)), Kind: kind, Src: src, Dst: dst, Site: site, Guard: pag.NoGuard}
	if objs != nil {
		e.Objs = objs.Clone()
	}
	if blk := g.nodes[src].Block; blk != nil {
		e.Guard = blk.Guard
	}
	g.edges = append(g.edges, e)
	g.index[key] = e.ID
	g.out[src] = append(g.out[src], e.ID)
	g.in[dst] = append(g.in[dst], e.ID)
	return e.ID, true
}

func (g *Graph) addDirectEdges() {
	use := func(v pag.NodeID, n NodeID) {
		if def, ok := g.defs[v]; ok {
			g.addEdge(IntraDirect, def, n, nil, nil)
		}
	}
	for _, fn := range g.prog.Funcs {
		for _, s := range fn.Stmts() {
			n := g.stmtNodes[s.ID()]
			switch s := s.(type) {
			case *pag.Copy:
				use(s.Src, n)
			case *pag.Gep:
				use(s.Src, n)
			case *pag.Load:
				use(s.Ptr, n)
			case *pag.Store:
				use(s.Ptr, n)
				use(s.Src, n)
			case *pag.Phi:
				for _, src := range s.Srcs {
					use(src, n)
				}
			case *pag.Ret:
				use(s.Src, g.formalRet[fn])
			case *pag.Call:
				for i, arg := range s.Site.Args {
					use(arg, g.actualParms[s.Site][i])
				}
			}
		}
	}
}

// memEvent is a memory access of a function, in execution order
type memEvent struct {
	node NodeID
	objs *pts.PointsTo
	def  bool
}

// addIndirectEdges connects the memory definitions of fn to the uses they reach. Reaching definitions are
// computed per (definition, object) pair, and a definition kills the previous definitions of its objects.
func (g *Graph) addIndirectEdges(fn *pag.Function) {
	events := make([][]memEvent, len(fn.Blocks))
	if n, ok := g.formalIn[fn]; ok {
		events[0] = append(events[0], memEvent{node: n, objs: g.nodes[n].Objs, def: true})
	}
	for _, blk := range fn.Blocks {
		ev := events[blk.Index]
		for _, s := range blk.Stmts {
			switch s := s.(type) {
			case *pag.Load:
				ev = append(ev, memEvent{node: g.stmtNodes[s.ID()], objs: g.pre.Pts(s.Ptr)})
			case *pag.Store:
				n := g.stmtNodes[s.ID()]
				objs := g.pre.Pts(s.Ptr)
				ev = append(ev, memEvent{node: n, objs: objs}, memEvent{node: n, objs: objs, def: true})
			case *pag.Call:
				if n, ok := g.actualIn[s.Site]; ok {
					ev = append(ev, memEvent{node: n, objs: g.nodes[n].Objs})
				}
				if n, ok := g.actualOut[s.Site]; ok {
					ev = append(ev, memEvent{node: n, objs: g.nodes[n].Objs, def: true})
				}
			}
		}
		if len(blk.Succs) == 0 {
			if n, ok := g.formalOut[fn]; ok {
				ev = append(ev, memEvent{node: n, objs: g.nodes[n].Objs})
			}
		}
		events[blk.Index] = ev
	}

	// number the (definition, object) pairs
	type defPair struct {
		node NodeID
		obj  pag.NodeID
	}
	var pairs []defPair
	pairsOfObj := map[pag.NodeID][]uint{}
	gen := map[NodeID]*bitset.BitSet{}
	for _, ev := range events {
		for _, e := range ev {
			if !e.def || gen[e.node] != nil {
				continue
			}
			gen[e.node] = bitset.New(0)
			for _, o := range e.objs.Elems() {
				idx := uint(len(pairs))
				pairs = append(pairs, defPair{e.node, o})
				pairsOfObj[o] = append(pairsOfObj[o], idx)
				gen[e.node].Set(idx)
			}
		}
	}
	if len(pairs) == 0 {
		return
	}
	kill := func(objs *pts.PointsTo) *bitset.BitSet {
		k := bitset.New(uint(len(pairs)))
		for _, o := range objs.Elems() {
			for _, idx := range pairsOfObj[o] {
				k.Set(idx)
			}
		}
		return k
	}
	transfer := func(ev []memEvent, in *bitset.BitSet, visit func(memEvent, *bitset.BitSet)) *bitset.BitSet {
		cur := in.Clone()
		for _, e := range ev {
			if visit != nil {
				visit(e, cur)
			}
			if e.def {
				cur.InPlaceDifference(kill(e.objs))
				cur.InPlaceUnion(gen[e.node])
			}
		}
		return cur
	}

	ins := make([]*bitset.BitSet, len(fn.Blocks))
	outs := make([]*bitset.BitSet, len(fn.Blocks))
	for i := range fn.Blocks {
		ins[i] = bitset.New(uint(len(pairs)))
		outs[i] = bitset.New(uint(len(pairs)))
	}
	for changed := true; changed; {
		changed = false
		for _, blk := range fn.Blocks {
			in := bitset.New(uint(len(pairs)))
			for _, pred := range blk.Preds {
				in.InPlaceUnion(outs[pred.Index])
			}
			ins[blk.Index] = in
			out := transfer(events[blk.Index], in, nil)
			if !out.Equal(outs[blk.Index]) {
				outs[blk.Index] = out
				changed = true
			}
		}
	}

	for _, blk := range fn.Blocks {
		transfer(events[blk.Index], ins[blk.Index], func(e memEvent, reaching *bitset.BitSet) {
			if e.def {
				return
			}
			for _, o := range e.objs.Elems() {
				for _, idx := range pairsOfObj[o] {
					if reaching.Test(idx) {
						g.addEdge(IntraIndirect, pairs[idx].node, e.node, pts.New(o), nil)
					}
				}
			}
		})
	}
}

// ConnectCallerAndCallee adds the parameter, return and memory edges between the call site cs and callee. It
// returns the edges that were not already in the graph.
func (g *Graph) ConnectCallerAndCallee(cs *pag.CallSite, callee *pag.Function) []EdgeID {
	g.connected[callKey{cs, callee}] = true
	var res []EdgeID
	add := func(kind EdgeKind, src, dst NodeID, objs *pts.PointsTo) {
		if id, ok := g.addEdge(kind, src, dst, objs, cs); ok {
			res = append(res, id)
		}
	}
	formals := g.formalParms[callee]
	for i, actual := range g.actualParms[cs] {
		if i < len(formals) {
			add(CallDirect, actual, formals[i], nil)
		}
	}
	if ret, ok := g.actualRet[cs]; ok {
		add(RetDirect, g.formalRet[callee], ret, nil)
	}
	if ain, ok := g.actualIn[cs]; ok {
		if fin, ok := g.formalIn[callee]; ok {
			if objs := g.nodes[ain].Objs.Intersect(g.nodes[fin].Objs); !objs.IsEmpty() {
				add(CallIndirect, ain, fin, objs)
			}
		}
	}
	if aout, ok := g.actualOut[cs]; ok {
		if fout, ok := g.formalOut[callee]; ok {
			if objs := g.nodes[fout].Objs.Intersect(g.nodes[aout].Objs); !objs.IsEmpty() {
				add(RetIndirect, fout, aout, objs)
			}
		}
	}
	return res
}
