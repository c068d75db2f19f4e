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

package pag

import (
	"embed"
	"errors"
	"testing"
)

//go:embed testdata
var testfsys embed.FS

func loadTestProgram(t *testing.T, name string) *Program {
	b, err := testfsys.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	p, err := ParseProgram(b)
	if err != nil {
		t.Fatalf("failed to parse %s: %v", name, err)
	}
	return p
}

func mustValue(t *testing.T, p *Program, name string) NodeID {
	v, ok := p.Value(name)
	if !ok {
		t.Fatalf("value %s not found", name)
	}
	return v
}

func TestParseProgram(t *testing.T) {
	p := loadTestProgram(t, "linked.yaml")
	main := p.Func("main")
	if main == nil || len(main.Blocks) != 3 {
		t.Fatalf("expected main with 3 blocks")
	}
	loop := main.Blocks[1]
	if !main.InLoop(loop) || main.InLoop(main.Entry()) {
		t.Errorf("only the loop block should be in a loop")
	}
	if exits := main.Exits(); len(exits) != 1 || exits[0].Name != "exit" {
		t.Errorf("expected exit to be the only exit block")
	}
	if g := main.Blocks[2].Guard; g == NoGuard || !g.Negated() || p.CondName(g.Cond()) != "done" {
		t.Errorf("exit block should be guarded by !done")
	}
	if len(p.CallSites) != 1 || !p.CallSites[0].IsIndirect() {
		t.Fatalf("expected a single indirect call site")
	}
	next := mustValue(t, p, "next")
	if _, ok := p.Def(next).(*Gep); !ok {
		t.Errorf("next should be defined by a gep, got %v", p.Def(next))
	}
	h := mustValue(t, p, "h")
	if len(p.Uses(h)) != 3 {
		t.Errorf("expected 3 uses of h, got %d", len(p.Uses(h)))
	}
	x := mustValue(t, p, "x")
	if fn, i, ok := p.ParamOf(x); !ok || fn.Name != "visit" || i != 0 {
		t.Errorf("x should be the first parameter of visit")
	}
	visit, _ := p.Object("visit")
	if p.FuncOfObj(visit) != p.Func("visit") {
		t.Errorf("visit object should denote the visit function")
	}
}

func TestGepObj(t *testing.T) {
	p := loadTestProgram(t, "linked.yaml")
	node, _ := p.Object("node")
	f1 := p.GepObj(node, 1)
	if f1 == node || p.Node(f1).Kind != GepObjNode || p.BaseObj(f1) != node {
		t.Fatalf("expected a field node for offset 1")
	}
	if p.GepObj(node, 1) != f1 {
		t.Errorf("field nodes should be created once")
	}
	if p.GepObj(node, 0) != node {
		t.Errorf("offset 0 should be the base object")
	}
	if p.GepObj(node, 5) != node {
		t.Errorf("an out of bounds offset should resolve to the base object")
	}
	if p.GepObj(f1, 0) != f1 {
		t.Errorf("offsets should accumulate")
	}
	p.Obj(node).SetFieldInsensitive()
	if p.GepObj(node, 1) != node {
		t.Errorf("a field-insensitive object should resolve to its base")
	}
	if p.NumFieldObjs(node) != 1 || len(p.FieldObjs(node)) != 1 {
		t.Errorf("expected exactly one field node")
	}
}

func TestGepOnObjectWithoutLayoutPanics(t *testing.T) {
	p := loadTestProgram(t, "linked.yaml")
	p.Obj(p.BlackHole).fieldInsensitive = false
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic")
		}
	}()
	p.GepObj(p.BlackHole, 1)
}

func TestMalformedPrograms(t *testing.T) {
	b, _ := testfsys.ReadFile("testdata/malformed.yaml")
	if _, err := ParseProgram(b); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected a malformed program error, got %v", err)
	}

	bld := NewBuilder()
	bld.Func("main").Block("entry").Copy("x", "y").Copy("x", "y")
	if _, err := bld.Build(); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected an error for a value defined twice, got %v", err)
	}

	bld = NewBuilder()
	bld.Func("f", "a")
	bld.Func("main").Block("entry").Call("", "f")
	if _, err := bld.Build(); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected an error for a call with a wrong number of arguments, got %v", err)
	}

	if _, err := ParseProgram([]byte("functions: [")); err == nil {
		t.Errorf("expected a yaml error")
	}
}

func TestStackObjects(t *testing.T) {
	p := loadTestProgram(t, "recursive.yaml")
	slot, _ := p.Object("slot")
	rec := p.Func("rec")
	if !p.IsStackObjOf(slot, rec) || p.IsStackObjOf(slot, p.Func("main")) {
		t.Errorf("slot should be a stack object of rec")
	}
	if a := p.AllocSite(slot); a == nil || a.Func() != rec {
		t.Errorf("slot should be allocated in rec")
	}
	if len(rec.Locals) != 1 {
		t.Errorf("rec should have one local")
	}
}

func TestLiterals(t *testing.T) {
	l := Lit(3, false)
	if l.Cond() != 3 || l.Negated() || l.Not() != Lit(3, true) || l.Not().Not() != l {
		t.Errorf("unexpected literal encoding for %d", l)
	}
}
