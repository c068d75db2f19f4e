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
	"io"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
)

func buildGraph(t *testing.T, onTheFly bool, f func(b *pag.Builder)) (*pag.Program, *Graph) {
	b := pag.NewBuilder()
	f(b)
	p, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build program: %v", err)
	}
	c := config.NewDefault()
	c.LogLevel = int(config.ErrLevel)
	logger := config.NewLogGroup(c)
	logger.SetAllOutput(io.Discard)
	pre := andersen.Analyze(p, c, logger)
	return p, New(pre, onTheFly, logger)
}

func val(t *testing.T, p *pag.Program, name string) pag.NodeID {
	v, ok := p.Value(name)
	if !ok {
		t.Fatalf("no value %s", name)
	}
	return v
}

// stmtNode returns the node of the i-th statement of fn
func stmtNode(t *testing.T, g *Graph, fn string, i int) NodeID {
	s := g.Prog().Func(fn).Stmts()[i]
	n, ok := g.StmtNode(s)
	if !ok {
		t.Fatalf("statement %s has no node", s)
	}
	return n
}

func findEdge(g *Graph, kind EdgeKind, src, dst NodeID) *Edge {
	for _, e := range g.OutEdges(src) {
		if e.Kind == kind && e.Dst == dst {
			return e
		}
	}
	return nil
}

func indirectSources(g *Graph, n NodeID) map[NodeID]bool {
	res := map[NodeID]bool{}
	for _, e := range g.InEdges(n) {
		if e.IsIndirect() {
			res[e.Src] = true
		}
	}
	return res
}

func TestDirectEdges(t *testing.T) {
	p, g := buildGraph(t, false, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Func("main").Block("entry").
			Addr("p", "o").
			Copy("q", "p").
			Gep("f", "q", 1).
			Phi("r", "p", "q")
	})
	defP, defQ := g.DefNode(val(t, p, "p")), g.DefNode(val(t, p, "q"))
	defF, defR := g.DefNode(val(t, p, "f")), g.DefNode(val(t, p, "r"))
	for _, e := range [][2]NodeID{{defP, defQ}, {defQ, defF}, {defP, defR}, {defQ, defR}} {
		if findEdge(g, IntraDirect, e[0], e[1]) == nil {
			t.Errorf("missing direct edge %d -> %d", e[0], e[1])
		}
	}
	if g.Node(defP).Kind != AddrNode || g.Node(defF).Kind != GepNode || g.Node(defR).Kind != PhiNode {
		t.Errorf("unexpected node kinds: %s %s %s", g.Node(defP), g.Node(defF), g.Node(defR))
	}
	if len(g.InEdges(defP)) != 0 {
		t.Errorf("address node should have no incoming edge")
	}
}

func TestStrongDefinitionKillsPrevious(t *testing.T) {
	p, g := buildGraph(t, false, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Object("a", pag.ObjAttrs{})
		b.Object("c", pag.ObjAttrs{})
		b.Func("main").Block("entry").
			Addr("p", "o").
			Addr("x", "a").
			Addr("y", "c").
			Store("p", "x").
			Store("p", "y").
			Load("z", "p")
	})
	store1, store2 := stmtNode(t, g, "main", 3), stmtNode(t, g, "main", 4)
	load := g.DefNode(val(t, p, "z"))
	srcs := indirectSources(g, load)
	if !srcs[store2] || srcs[store1] || len(srcs) != 1 {
		t.Errorf("load should only be reached by the second store, got %v", srcs)
	}
	e := findEdge(g, IntraIndirect, store1, store2)
	if e == nil {
		t.Fatalf("the second store should use the memory defined by the first")
	}
	o, _ := p.Object("o")
	if !e.Objs.Has(o) || e.Objs.Len() != 1 {
		t.Errorf("expected edge labelled with {o}, got %s", e.Objs)
	}
}

func TestDefinitionsMergeAtJoin(t *testing.T) {
	p, g := buildGraph(t, false, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Object("a", pag.ObjAttrs{})
		b.Object("c", pag.ObjAttrs{})
		fb := b.Func("main")
		fb.Block("entry").Addr("p", "o").Addr("x", "a").Addr("y", "c").Store("p", "x")
		fb.Block("then").Store("p", "y")
		fb.Block("join").Load("z", "p")
		fb.Edge("entry", "then").Edge("entry", "join").Edge("then", "join")
	})
	store1, store2 := stmtNode(t, g, "main", 3), stmtNode(t, g, "main", 4)
	srcs := indirectSources(g, g.DefNode(val(t, p, "z")))
	if !srcs[store1] || !srcs[store2] {
		t.Errorf("load should be reached by both stores, got %v", srcs)
	}
}

func TestModRefAcrossCalls(t *testing.T) {
	p, g := buildGraph(t, false, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Object("a", pag.ObjAttrs{})
		b.Func("set", "ptr", "v").Block("entry").Store("ptr", "v")
		b.Func("main").Block("entry").
			Addr("p", "o").
			Addr("x", "a").
			Call("", "set", "p", "x").
			Load("z", "p")
	})
	o, _ := p.Object("o")
	set := p.Func("set")
	if !g.Mod(set).Has(o) || !g.Mod(p.Func("main")).Has(o) || !g.Ref(p.Func("main")).Has(o) {
		t.Fatalf("o should be in mod(set), mod(main) and ref(main)")
	}
	cs := p.Func("main").CallSites[0]
	aout, ok := g.ActualOut(cs)
	if !ok {
		t.Fatalf("call site should have an actual-out node")
	}
	fout, ok := g.FormalOut(set)
	if !ok {
		t.Fatalf("set should have a formal-out node")
	}
	if findEdge(g, RetIndirect, fout, aout) == nil {
		t.Errorf("missing return edge from formal-out to actual-out")
	}
	if findEdge(g, IntraIndirect, stmtNode(t, g, "set", 0), fout) == nil {
		t.Errorf("the store of set should reach its formal-out")
	}
	if !indirectSources(g, g.DefNode(val(t, p, "z")))[aout] {
		t.Errorf("the load after the call should be reached by the actual-out")
	}
	formals := g.InEdges(g.DefNode(val(t, p, "ptr")))
	if len(formals) != 1 || formals[0].Kind != CallDirect || formals[0].Site != cs {
		t.Errorf("expected one call edge into ptr, got %v", formals)
	}
	if g.IsFunEntry(g.DefNode(val(t, p, "ptr"))) != set {
		t.Errorf("ptr should be at the entry of set")
	}
	if len(g.ConnectCallerAndCallee(cs, set)) != 0 {
		t.Errorf("connecting an already connected call should not add edges")
	}
}

func TestActualParamDoesNotDefineArgument(t *testing.T) {
	p, g := buildGraph(t, false, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Func("id", "a").Block("entry").Ret("a")
		b.Func("main").Block("entry").Addr("x", "o").Call("r", "id", "x")
	})
	if g.Node(g.DefNode(val(t, p, "x"))).Kind != AddrNode {
		t.Errorf("x should be defined by its address statement")
	}
	ret := g.DefNode(val(t, p, "r"))
	if g.IsCallSiteRet(ret) != p.Func("main").CallSites[0] {
		t.Errorf("r should be the return of the call")
	}
	if findEdge(g, RetDirect, g.DefNode(p.Func("id").RetNode), ret) == nil {
		t.Errorf("missing return edge")
	}
}

func TestOnTheFlyLeavesIndirectCallsUnconnected(t *testing.T) {
	build := func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Func("f", "a").Block("entry").Ret("a")
		b.Func("main").Block("entry").Addr("fp", "f").Addr("x", "o").CallPtr("r", "fp", "x")
	}
	p, g := buildGraph(t, false, build)
	cs := p.Func("main").CallSites[0]
	if !g.IsConnected(cs, p.Func("f")) {
		t.Errorf("indirect call should be connected")
	}

	p, g = buildGraph(t, true, build)
	cs, f := p.Func("main").CallSites[0], p.Func("f")
	if g.IsConnected(cs, f) || !g.OnTheFly() {
		t.Fatalf("indirect call should not be connected")
	}
	if len(g.InEdges(g.DefNode(val(t, p, "a")))) != 0 {
		t.Errorf("parameter should have no incoming edge")
	}
	edges := g.ConnectCallerAndCallee(cs, f)
	if len(edges) != 2 {
		t.Errorf("expected a call and a return edge, got %d edges", len(edges))
	}
	if !g.IsConnected(cs, f) {
		t.Errorf("call should now be connected")
	}
}

func TestSCCOfLoop(t *testing.T) {
	p, g := buildGraph(t, false, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		fb := b.Func("main")
		fb.Block("entry").Addr("x", "o")
		fb.Block("loop").Phi("p", "x", "q").Copy("q", "p")
		fb.Edge("entry", "loop").Edge("loop", "loop")
	})
	sccs := g.SCC()
	if len(sccs) != 1 {
		t.Fatalf("expected one cycle, got %v", sccs)
	}
	defP, defQ := g.DefNode(val(t, p, "p")), g.DefNode(val(t, p, "q"))
	if len(sccs[0]) != 2 || !(sccs[0][0] == min(defP, defQ) && sccs[0][1] == max(defP, defQ)) {
		t.Errorf("expected cycle {%d, %d}, got %v", defP, defQ, sccs[0])
	}
}

func TestEdgeGuards(t *testing.T) {
	p, g := buildGraph(t, false, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		fb := b.Func("main")
		fb.Block("entry").Addr("p", "o")
		fb.GuardedBlock("then", "c", false).Copy("q", "p")
		fb.Block("join").Copy("r", "q")
		fb.Edge("entry", "then").Edge("entry", "join").Edge("then", "join")
	})
	defP, defQ := g.DefNode(val(t, p, "p")), g.DefNode(val(t, p, "q"))
	if e := findEdge(g, IntraDirect, defP, defQ); e == nil || e.Guard != pag.NoGuard {
		t.Errorf("edge out of the entry should not be guarded")
	}
	e := findEdge(g, IntraDirect, defQ, g.DefNode(val(t, p, "r")))
	if e == nil {
		t.Fatalf("missing edge q -> r")
	}
	if e.Guard == pag.NoGuard || p.CondName(e.Guard.Cond()) != "c" || e.Guard.Negated() {
		t.Errorf("expected edge guarded by c")
	}
}

func TestDump(t *testing.T) {
	_, g := buildGraph(t, false, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Func("main").Block("entry").Addr("p", "o").Copy("q", "p")
	})
	var sb strings.Builder
	g.Dump(&sb)
	if !strings.Contains(sb.String(), "-direct->") || !strings.Contains(sb.String(), "nullptr") {
		t.Errorf("unexpected dump:\n%s", sb.String())
	}
}

func min(a, b NodeID) NodeID {
	if a < b {
		return a
	}
	return b
}

func max(a, b NodeID) NodeID {
	if a > b {
		return a
	}
	return b
}

func TestCallRetEdgesInCycles(t *testing.T) {
	p, g := buildGraph(t, false, func(b *pag.Builder) {
		b.Object("o1", pag.ObjAttrs{})
		b.Object("o2", pag.ObjAttrs{})
		b.Func("id", "a").Block("entry").Ret("a")
		fb := b.Func("main")
		fb.Block("entry").Addr("x", "o1").Addr("y", "o2").Call("r2", "id", "y")
		fb.Block("loop").Phi("p", "x", "r").Call("r", "id", "p")
		fb.Edge("entry", "loop").Edge("loop", "loop")
	})
	inCycle := g.CallRetEdgesInCycles()
	if len(inCycle) != 2 {
		t.Fatalf("expected the call and the return edge of the loop, got %d edges", len(inCycle))
	}
	loopSite := p.Func("main").CallSites[1]
	for id := range inCycle {
		e := g.Edge(id)
		if e.Site != loopSite || !(e.IsCall() || e.IsRet()) {
			t.Errorf("unexpected edge %d -> %d in a cycle", e.Src, e.Dst)
		}
	}
	for _, e := range g.InEdges(g.DefNode(val(t, p, "r2"))) {
		if inCycle[e.ID] {
			t.Errorf("the return edge of the call outside the loop is not in a cycle")
		}
	}
}
