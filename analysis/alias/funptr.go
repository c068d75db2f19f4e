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
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/internal/funcutil"
	"golang.org/x/exp/slices"
)

// CallTargets are the callees of an indirect call site
type CallTargets struct {
	Site *pag.CallSite

	// Callees are the functions the client resolved the function pointer to
	Callees []*pag.Function

	// PreCallees are the callees in the call graph of the whole-program analysis
	PreCallees []*pag.Function
}

// Refined returns true if the client found fewer callees than the whole-program analysis
func (t CallTargets) Refined() bool {
	return len(t.Callees) < len(t.PreCallees)
}

func (t CallTargets) String() string {
	names := func(fns []*pag.Function) string {
		return strings.Join(funcutil.Map(fns, func(f *pag.Function) string { return f.Name }), ", ")
	}
	return fmt.Sprintf("%s -> {%s} (whole-program: {%s})", t.Site, names(t.Callees), names(t.PreCallees))
}

// FunptrClient resolves the function pointers of the indirect call sites of a program
type FunptrClient struct {
	client Client
	pre    *andersen.Solver
}

// NewFunptrClient returns a function pointer client querying client, and comparing with pre
func NewFunptrClient(pre *andersen.Solver, client Client) *FunptrClient {
	return &FunptrClient{client: client, pre: pre}
}

// Resolve queries the function pointer of every indirect call site, in call site order
func (f *FunptrClient) Resolve() []CallTargets {
	prog := f.pre.Program()
	var res []CallTargets
	for _, cs := range prog.CallSites {
		if !cs.IsIndirect() {
			continue
		}
		t := CallTargets{Site: cs, PreCallees: f.pre.CallGraph().Callees(cs)}
		f.client.PointsTo(cs.FunPtr).ForEach(func(o pag.NodeID) {
			if fn := prog.FuncOfObj(o); fn != nil {
				t.Callees = append(t.Callees, fn)
			}
		})
		slices.SortFunc(t.Callees, func(a, b *pag.Function) bool { return a.ID < b.ID })
		res = append(res, t)
	}
	return res
}
