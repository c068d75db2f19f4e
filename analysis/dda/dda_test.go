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
	"io"
	"math/rand"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
)

func testConfig() *config.Config {
	c := config.NewDefault()
	c.LogLevel = int(config.ErrLevel)
	return c
}

func testLogger(c *config.Config) *config.LogGroup {
	l := config.NewLogGroup(c)
	l.SetAllOutput(io.Discard)
	return l
}

func buildProgram(t *testing.T, f func(b *pag.Builder)) *pag.Program {
	b := pag.NewBuilder()
	f(b)
	p, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build program: %v", err)
	}
	return p
}

func val(t *testing.T, p *pag.Program, name string) pag.NodeID {
	v, ok := p.Value(name)
	if !ok {
		t.Fatalf("no value %s", name)
	}
	return v
}

// objs returns the set of the named objects
func objs(t *testing.T, p *pag.Program, names ...string) *pts.PointsTo {
	res := &pts.PointsTo{}
	for _, name := range names {
		o, ok := p.Object(name)
		if !ok {
			t.Fatalf("no object %s", name)
		}
		res.Insert(o)
	}
	return res
}

func newFlow(p *pag.Program, c *config.Config) (*FlowSolver, *andersen.Solver) {
	l := testLogger(c)
	pre := andersen.Analyze(p, c, l)
	return NewFlow(pre, c, l, &Stats{}), pre
}

func strongUpdateProgram(attrs pag.ObjAttrs) func(b *pag.Builder) {
	return func(b *pag.Builder) {
		b.Object("o", attrs)
		b.Object("a", pag.ObjAttrs{})
		b.Object("c", pag.ObjAttrs{})
		b.Func("main").Block("entry").
			Addr("p", "o").
			Addr("x", "a").
			Addr("y", "c").
			Store("p", "x").
			Store("p", "y").
			Load("z", "p")
	}
}

func TestMustAliasShortCircuitsStore(t *testing.T) {
	p := buildProgram(t, strongUpdateProgram(pag.ObjAttrs{}))
	s, pre := newFlow(p, testConfig())
	z := val(t, p, "z")
	if !pre.Pts(z).Equals(objs(t, p, "a", "c")) {
		t.Fatalf("whole-program analysis should merge both stores, got %s", pre.Pts(z))
	}
	if res := s.ComputeDDAPts(z); !res.Equals(objs(t, p, "c")) {
		t.Errorf("expected z -> {c}, got %s", res)
	}
	if s.Stats().NumMustAlias == 0 {
		t.Errorf("the load and the store should must-alias")
	}
	if !s.Pts(z).Equals(objs(t, p, "c")) {
		t.Errorf("the answer should be recorded, got %s", s.Pts(z))
	}
}

func TestStrongUpdateWithoutMustAlias(t *testing.T) {
	p := buildProgram(t, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Object("o2", pag.ObjAttrs{})
		b.Object("a", pag.ObjAttrs{})
		b.Object("c", pag.ObjAttrs{})
		b.Func("main").Block("entry").
			Addr("p", "o").
			Addr("r", "o2").
			Phi("q", "p", "r").
			Addr("x", "a").
			Addr("y", "c").
			Store("p", "x").
			Store("p", "y").
			Load("z", "q")
	})
	s, _ := newFlow(p, testConfig())
	if res := s.ComputeDDAPts(val(t, p, "z")); !res.Equals(objs(t, p, "c")) {
		t.Errorf("expected z -> {c}, got %s", res)
	}
	if s.Stats().NumStrongUpdates == 0 || s.Stats().NumMustAlias != 0 {
		t.Errorf("expected a strong update and no must-alias, got %s", s.Stats())
	}
}

func TestNoStrongUpdate(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *pag.Builder)
		cfg   func(c *config.Config)
	}{
		{"heap", strongUpdateProgram(pag.ObjAttrs{Heap: true}), nil},
		{"array", strongUpdateProgram(pag.ObjAttrs{Array: true}), nil},
		{"field-insensitive", func(b *pag.Builder) {
			b.Object("o", pag.ObjAttrs{Fields: 3})
			b.Object("a", pag.ObjAttrs{})
			b.Object("c", pag.ObjAttrs{})
			b.Func("main").Block("entry").
				Addr("p", "o").
				Gep("f1", "p", 1).
				Gep("f2", "p", 2).
				Addr("x", "a").
				Addr("y", "c").
				Store("p", "x").
				Store("p", "y").
				Load("z", "p")
		}, func(c *config.Config) { c.FieldLimit = 1 }},
		{"local in recursion", func(b *pag.Builder) {
			b.Object("a", pag.ObjAttrs{})
			b.Object("c", pag.ObjAttrs{})
			b.Func("rec").Local("o", pag.ObjAttrs{}).Block("entry").
				Addr("p", "o").
				Addr("x", "a").
				Addr("y", "c").
				Store("p", "x").
				Store("p", "y").
				Load("z", "p").
				Call("", "rec")
			b.Func("main").Block("entry").Call("", "rec")
		}, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := buildProgram(t, test.build)
			c := testConfig()
			if test.cfg != nil {
				test.cfg(c)
			}
			s, _ := newFlow(p, c)
			if res := s.ComputeDDAPts(val(t, p, "z")); !res.Equals(objs(t, p, "a", "c")) {
				t.Errorf("expected z -> {a, c}, got %s", res)
			}
			if s.Stats().NumStrongUpdates != 0 || s.Stats().NumMustAlias != 0 {
				t.Errorf("the second store should not kill the first, got %s", s.Stats())
			}
		})
	}
}

func TestStoreThroughNilEndsQuery(t *testing.T) {
	p := buildProgram(t, func(b *pag.Builder) {
		b.Object("cell", pag.ObjAttrs{})
		b.Object("o", pag.ObjAttrs{})
		b.Object("o2", pag.ObjAttrs{})
		b.Object("a", pag.ObjAttrs{})
		b.Object("c", pag.ObjAttrs{})
		b.Func("main").Block("entry").
			Addr("s", "cell").
			Addr("p", "o").
			Addr("p2", "o2").
			Addr("x", "a").
			Addr("y", "c").
			Store("p", "y").
			Load("q", "s").
			Store("q", "x").
			Store("s", "p").
			Store("s", "p2").
			Load("z", "p")
	})
	s, pre := newFlow(p, testConfig())
	// q is not a singleton, so the store through q does not must-alias the load of z
	if !pre.Pts(val(t, p, "q")).Equals(objs(t, p, "o", "o2")) {
		t.Fatalf("whole-program analysis should let q point to o and o2, got %s", pre.Pts(val(t, p, "q")))
	}
	if res := s.ComputeDDAPts(val(t, p, "q")); !res.IsEmpty() {
		t.Fatalf("q is loaded before the cell is written, got %s", res)
	}
	// the store through q cannot execute, so nothing reaches the load of z
	if res := s.ComputeDDAPts(val(t, p, "z")); !res.IsEmpty() {
		t.Errorf("expected z -> {}, got %s", res)
	}
}

func TestFlowAcrossCalls(t *testing.T) {
	p := buildProgram(t, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Object("a", pag.ObjAttrs{})
		b.Object("c", pag.ObjAttrs{})
		b.Func("set", "ptr", "v").Block("entry").Store("ptr", "v")
		b.Func("main").Block("entry").
			Addr("p", "o").
			Addr("x", "a").
			Addr("y", "c").
			Store("p", "x").
			Call("", "set", "p", "y").
			Load("z", "p")
	})
	s, _ := newFlow(p, testConfig())
	if res := s.ComputeDDAPts(val(t, p, "z")); !res.Equals(objs(t, p, "c")) {
		t.Errorf("expected z -> {c}, got %s", res)
	}
}

func phiCycle(k int) func(b *pag.Builder) {
	return func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		fb := b.Func("main")
		fb.Block("entry").Addr("x", "o")
		loop := fb.Block("loop").Phi("p0", "x", fmt.Sprintf("p%d", k-1))
		for i := 1; i < k; i++ {
			loop.Copy(fmt.Sprintf("p%d", i), fmt.Sprintf("p%d", i-1))
		}
		fb.Edge("entry", "loop").Edge("loop", "loop")
	}
}

func TestOutOfBudgetFallsBack(t *testing.T) {
	const k = 20
	p := buildProgram(t, phiCycle(k))
	last := val(t, p, fmt.Sprintf("p%d", k-1))

	c := testConfig()
	c.FlowBudget = k / 2
	s, pre := newFlow(p, c)
	small := s.ComputeDDAPts(last)
	if !small.Equals(pre.Pts(last)) {
		t.Errorf("out of budget query should return the fallback %s, got %s", pre.Pts(last), small)
	}
	if s.Stats().NumOutOfBudgetQueries != 1 || s.Stats().NumOutOfBudgetDpms == 0 {
		t.Errorf("expected an out of budget query, got %s", s.Stats())
	}

	big, _ := newFlow(p, testConfig())
	res := big.ComputeDDAPts(last)
	if !res.SubsetOf(small) || !res.Equals(objs(t, p, "o")) {
		t.Errorf("expected {o} within %s, got %s", small, res)
	}
	if big.Stats().NumOutOfBudgetQueries != 0 {
		t.Errorf("query should complete within the default budget")
	}
	if again := big.ComputeDDAPts(last); !again.Equals(res) {
		t.Errorf("repeated query returned %s, expected %s", again, res)
	}

	s.SetBudget(10 * k)
	if res := s.ComputeDDAPts(last); !res.SubsetOf(small) {
		t.Errorf("larger budget gave %s, not within %s", res, small)
	}
}

func TestOutOfBudgetProbesStayVisited(t *testing.T) {
	const k = 20
	p := buildProgram(t, phiCycle(k))
	c := testConfig()
	c.FlowBudget = k / 2
	s, _ := newFlow(p, c)
	s.ComputeDDAPts(val(t, p, fmt.Sprintf("p%d", k-1)))
	if len(s.oobDpms) == 0 {
		t.Fatalf("expected out of budget probes")
	}
	for dpm := range s.visited {
		if !s.oobDpms[dpm] {
			t.Errorf("probe %s should not be visited after the query", dpm)
		}
	}
	for dpm := range s.oobDpms {
		if !s.visited[dpm] {
			t.Errorf("out of budget probe %s should stay visited", dpm)
		}
	}
}

func TestCompletedQueryClearsVisited(t *testing.T) {
	p := buildProgram(t, phiCycle(5))
	s, _ := newFlow(p, testConfig())
	s.ComputeDDAPts(val(t, p, "p4"))
	if len(s.visited) != 0 || len(s.oobDpms) != 0 {
		t.Errorf("expected no visited probe, got %d visited and %d out of budget", len(s.visited), len(s.oobDpms))
	}
}

func TestOnTheFlyIndirectCall(t *testing.T) {
	p := buildProgram(t, func(b *pag.Builder) {
		b.Object("o", pag.ObjAttrs{})
		b.Func("f", "a").Block("entry").Ret("a")
		b.Func("main").Block("entry").
			Addr("fp", "f").
			Addr("x", "o").
			CallPtr("r", "fp", "x")
	})
	c := testConfig()
	c.OnTheFlyCallgraph = true
	s, _ := newFlow(p, c)
	cs, f := p.Func("main").CallSites[0], p.Func("f")
	if s.CallGraph().HasEdge(cs, f) {
		t.Fatalf("indirect call should not be resolved before the query")
	}
	if res := s.ComputeDDAPts(val(t, p, "r")); !res.Equals(objs(t, p, "o")) {
		t.Errorf("expected r -> {o}, got %s", res)
	}
	if !s.CallGraph().HasEdge(cs, f) || !s.Graph().IsConnected(cs, f) {
		t.Errorf("indirect call should be resolved by the query")
	}
	if s.Stats().NumIndirectEdges != 1 {
		t.Errorf("expected one resolved call edge, got %d", s.Stats().NumIndirectEdges)
	}
}

func TestAliasQuery(t *testing.T) {
	p := buildProgram(t, strongUpdateProgram(pag.ObjAttrs{}))
	s, _ := newFlow(p, testConfig())
	if !s.Alias(val(t, p, "z"), val(t, p, "y")) {
		t.Errorf("z and y should alias")
	}
	if s.Alias(val(t, p, "z"), val(t, p, "x")) {
		t.Errorf("z and x should not alias after the strong update")
	}
	if s.Stats().NumQueries != 4 {
		t.Errorf("expected 4 queries, got %d", s.Stats().NumQueries)
	}
}

// randomProgram generates a function with a diamond of guarded blocks, without field accesses
func randomProgram(r *rand.Rand, numVals, numObjs, numStores int) *pag.Program {
	b := pag.NewBuilder()
	for i := 0; i < numObjs; i++ {
		b.Object(fmt.Sprintf("o%d", i), pag.ObjAttrs{Heap: i%3 == 0})
	}
	fb := b.Func("main")
	blocks := []*pag.BlockBuilder{
		fb.Block("entry"),
		fb.GuardedBlock("then", "c", false),
		fb.GuardedBlock("else", "c", true),
		fb.Block("join"),
	}
	fb.Edge("entry", "then").Edge("entry", "else").Edge("then", "join").Edge("else", "join")
	blk := func() *pag.BlockBuilder { return blocks[r.Intn(len(blocks))] }
	v := func() string { return fmt.Sprintf("v%d", r.Intn(numVals)) }
	for i := 0; i < numVals; i++ {
		dst := fmt.Sprintf("v%d", i)
		switch r.Intn(5) {
		case 1:
			blk().Copy(dst, v())
		case 2:
			blk().Load(dst, v())
		case 3:
			blk().Phi(dst, v(), v())
		default:
			blk().Addr(dst, fmt.Sprintf("o%d", r.Intn(numObjs)))
		}
	}
	for i := 0; i < numStores; i++ {
		blk().Store(v(), v())
	}
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

func TestRefinesWholeProgramAnalysis(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		p := randomProgram(r, 25, 5, 10)
		for _, budget := range []int{5, config.DefaultFlowBudget} {
			c := testConfig()
			c.FlowBudget, c.CxtBudget, c.PathBudget = budget, budget, budget
			l := testLogger(c)
			pre := andersen.Analyze(p, c, l)
			solvers := map[string]interface {
				ComputeDDAPts(pag.NodeID) *pts.PointsTo
			}{
				config.ModeFlow:    NewFlow(pre, c, l, &Stats{}),
				config.ModeContext: NewContext(pre, c, l, &Stats{}),
				config.ModePath:    NewPath(pre, c, l, &Stats{}),
			}
			for mode, s := range solvers {
				for j := 0; j < 25; j++ {
					v := val(t, p, fmt.Sprintf("v%d", j))
					if res := s.ComputeDDAPts(v); !res.SubsetOf(pre.Pts(v)) {
						t.Fatalf("program %d, %s, budget %d: pts(v%d) = %s not within %s",
							i, mode, budget, j, res, pre.Pts(v))
					}
				}
			}
		}
	}
}

func TestLargerBudgetIsMorePrecise(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 20; i++ {
		p := randomProgram(r, 25, 5, 10)
		small, _ := newFlow(p, testConfig())
		small.SetBudget(3)
		big, _ := newFlow(p, testConfig())
		for j := 0; j < 25; j++ {
			v := val(t, p, fmt.Sprintf("v%d", j))
			if a, b := big.ComputeDDAPts(v), small.ComputeDDAPts(v); !a.SubsetOf(b) {
				t.Fatalf("program %d: pts(v%d) = %s with a large budget, not within %s", i, j, a, b)
			}
		}
	}
}

func TestQueryStaysWithinBudget(t *testing.T) {
	const k = 20
	p := buildProgram(t, phiCycle(k))
	last := val(t, p, fmt.Sprintf("p%d", k-1))
	c := testConfig()
	l := testLogger(c)
	pre := andersen.Analyze(p, c, l)
	for _, budget := range []int{1, 3, 7, 10, 15} {
		solvers := map[string]interface {
			SetBudget(int)
			ComputeDDAPts(pag.NodeID) *pts.PointsTo
			Stats() *Stats
		}{
			config.ModeFlow:    NewFlow(pre, c, l, &Stats{}),
			config.ModeContext: NewContext(pre, c, l, &Stats{}),
			config.ModePath:    NewPath(pre, c, l, &Stats{}),
		}
		for mode, s := range solvers {
			s.SetBudget(budget)
			s.ComputeDDAPts(last)
			// the step that exceeds the budget is counted but not explored
			if steps := s.Stats().NumSteps; steps > budget+1 {
				t.Errorf("%s with budget %d: query took %d steps", mode, budget, steps)
			}
			if s.Stats().NumOutOfBudgetQueries != 1 {
				t.Errorf("%s with budget %d: expected an out of budget query, got %s", mode, budget, s.Stats())
			}
		}
	}
}
