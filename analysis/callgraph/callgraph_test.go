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

package callgraph

import (
	"strings"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/pag"
)

func TestRecursion(t *testing.T) {
	b := pag.NewBuilder()
	b.Func("main").Block("entry").Addr("fp", "odd").Call("", "even").CallPtr("", "fp")
	b.Func("even").Block("entry").Call("", "odd")
	b.Func("odd").Block("entry").Call("", "leaf")
	b.Func("leaf")
	p, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	g := New(p)
	even, odd := p.Func("even"), p.Func("odd")
	if g.IsInCycle(even) || g.IsInCycle(odd) {
		t.Errorf("there is no recursion before the cycle is closed")
	}

	indirect := p.CallSites[1]
	if !g.AddEdge(indirect, p.Func("odd")) || g.AddEdge(indirect, p.Func("odd")) {
		t.Errorf("AddEdge should only report new edges")
	}
	// the call site of odd may also reach even, closing a cycle
	g.AddEdge(odd.CallSites[0], even)
	if !g.IsInCycle(even) || !g.IsInCycle(odd) || g.IsInCycle(p.Func("main")) {
		t.Errorf("even and odd should be mutually recursive")
	}
	if !g.IsEdgeInRecursion(even.CallSites[0], odd) || g.IsEdgeInRecursion(indirect, odd) {
		t.Errorf("unexpected recursive edges")
	}
	if len(g.IndirectCallSitesInvoking(odd)) != 1 || g.NumIndirectEdges() != 1 {
		t.Errorf("expected one indirect call of odd")
	}
	cycles := g.ElementaryCycles()
	if len(cycles) != 1 || len(cycles[0]) != 3 || cycles[0][0] != even || cycles[0][1] != odd {
		t.Errorf("expected the cycle even -> odd -> even, got %v", cycles)
	}
	var sb strings.Builder
	g.Dump(&sb)
	if strings.Count(sb.String(), "\n") != len(g.Edges()) {
		t.Errorf("expected one line per edge")
	}
}
