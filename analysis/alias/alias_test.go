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

package alias

import (
	"errors"
	"io"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/dda"
	"github.com/awslabs/ar-go-pta/analysis/pag"
)

func setup(t *testing.T, f func(b *pag.Builder)) (*pag.Program, *andersen.Solver, *config.Config,
	*config.LogGroup) {
	b := pag.NewBuilder()
	f(b)
	p, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build program: %v", err)
	}
	c := config.NewDefault()
	c.LogLevel = int(config.ErrLevel)
	l := config.NewLogGroup(c)
	l.SetAllOutput(io.Discard)
	return p, andersen.Analyze(p, c, l), c, l
}

func val(t *testing.T, p *pag.Program, name string) pag.NodeID {
	v, ok := p.Value(name)
	if !ok {
		t.Fatalf("no value %s", name)
	}
	return v
}

func identityProgram(b *pag.Builder) {
	b.Object("o1", pag.ObjAttrs{})
	b.Object("o2", pag.ObjAttrs{})
	b.Func("id", "a").Block("entry").Ret("a")
	b.Func("main").Block("entry").
		Addr("x", "o1").
		Addr("y", "o2").
		Call("r1", "id", "x").
		Call("r2", "id", "y")
}

func TestAliasClients(t *testing.T) {
	p, pre, c, l := setup(t, identityProgram)
	r1, r2, x := val(t, p, "r1"), val(t, p, "r2"), val(t, p, "x")
	expected := map[string]Result{
		ModeAndersen:       MayAlias,
		config.ModeFlow:    MayAlias,
		config.ModeContext: NoAlias,
		config.ModePath:    NoAlias,
	}
	for mode, want := range expected {
		client, err := NewClient(pre, c, l, mode, &dda.Stats{})
		if err != nil {
			t.Fatalf("failed to create %s client: %v", mode, err)
		}
		if client.Name() != mode {
			t.Errorf("expected client %s, got %s", mode, client.Name())
		}
		if got := client.Alias(r1, r2); got != want {
			t.Errorf("%s: alias(r1, r2) = %s, expected %s", mode, got, want)
		}
		if got := client.Alias(r1, x); got != MayAlias {
			t.Errorf("%s: r1 and x should alias", mode)
		}
		if !client.PointsTo(r1).SubsetOf(pre.Pts(r1)) {
			t.Errorf("%s: pts(r1) = %s is not within the whole-program result", mode, client.PointsTo(r1))
		}
	}
}

func TestUnknownMode(t *testing.T) {
	_, pre, c, l := setup(t, identityProgram)
	if _, err := NewClient(pre, c, l, "cfl", &dda.Stats{}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestRunQueries(t *testing.T) {
	p, pre, c, l := setup(t, identityProgram)
	client, err := NewClient(pre, c, l, config.ModeContext, &dda.Stats{})
	if err != nil {
		t.Fatal(err)
	}
	c.AliasQueries = []config.AliasQuerySpec{{A: "r1", B: "x"}, {A: "r1", B: "r2"}}
	answers, err := RunQueries(c, p, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != 2 || answers[0].Result != MayAlias || answers[1].Result != NoAlias {
		t.Errorf("unexpected answers %v", answers)
	}
	if answers[1].String() != "r1 no-alias r2" {
		t.Errorf("unexpected answer %s", answers[1])
	}

	c.AliasQueries = []config.AliasQuerySpec{{A: "r1", B: "nope"}}
	if _, err := RunQueries(c, p, client); !errors.Is(err, ErrUnknownValue) {
		t.Errorf("expected ErrUnknownValue, got %v", err)
	}
}

func TestFunptrClient(t *testing.T) {
	p, pre, c, l := setup(t, func(b *pag.Builder) {
		b.Object("cell", pag.ObjAttrs{Global: true})
		b.Func("f").Block("entry")
		b.Func("g").Block("entry")
		b.Func("main").Block("entry").
			Addr("p", "cell").
			Addr("f1", "f").
			Addr("f2", "g").
			Store("p", "f1").
			Store("p", "f2").
			Load("fp", "p").
			CallPtr("", "fp")
	})
	f, g := p.Func("f"), p.Func("g")

	targets := NewFunptrClient(pre, NewAndersen(pre)).Resolve()
	if len(targets) != 1 || len(targets[0].Callees) != 2 || targets[0].Refined() {
		t.Fatalf("whole-program analysis should resolve to f and g, got %v", targets)
	}

	client, err := NewDDA(pre, c, l, config.ModeFlow, &dda.Stats{})
	if err != nil {
		t.Fatal(err)
	}
	targets = NewFunptrClient(pre, client).Resolve()
	if len(targets) != 1 {
		t.Fatalf("expected one indirect call, got %d", len(targets))
	}
	tg := targets[0]
	if len(tg.Callees) != 1 || tg.Callees[0] != g || !tg.Refined() {
		t.Errorf("expected the call to be refined to g, got %s", tg)
	}
	if len(tg.PreCallees) != 2 || tg.PreCallees[0] != f || tg.PreCallees[1] != g {
		t.Errorf("unexpected whole-program callees %s", tg)
	}
}
