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

// Package rendering writes Graphviz representations of the call graph and of the value-flow graph.
package rendering

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/awslabs/ar-go-pta/analysis/callgraph"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/vfg"
)

// callEdgeColor defines specific color for specific edges in the callgraph
// - an edge of a recursion is red
// - an indirect call edge is blue
// - all other call edges have a default color
func callEdgeColor(cg *callgraph.Graph, edge callgraph.Edge) string {
	switch {
	case cg.IsEdgeInRecursion(edge.Site, edge.Callee):
		return " [color=red]"
	case edge.Site.IsIndirect():
		return " [color=blue]"
	}
	return ""
}

// WriteGraphviz writes a graphviz representation the call-graph to w
func WriteGraphviz(cg *callgraph.Graph, w io.Writer) error {
	if _, err := fmt.Fprintf(w, "digraph callgraph {\n"); err != nil {
		return fmt.Errorf("error while writing graph: %w", err)
	}
	for _, edge := range cg.Edges() {
		_, err := fmt.Fprintf(w, "  %q -> %q%s;\n", edge.Site.Caller.Name, edge.Callee.Name, callEdgeColor(cg, edge))
		if err != nil {
			return fmt.Errorf("error while writing graph: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "}\n"); err != nil {
		return fmt.Errorf("error while writing graph: %w", err)
	}
	return nil
}

// vfgEdgeAttrs returns the attributes of a value-flow edge: memory edges are dashed and labelled with their objects,
// interprocedural edges are blue, and guarded edges show their guard
func vfgEdgeAttrs(prog *pag.Program, e *vfg.Edge) string {
	attrs := ""
	label := ""
	if e.IsIndirect() {
		attrs += " style=dashed"
		label = e.Objs.String()
	}
	if e.IsCall() || e.IsRet() {
		attrs += " color=blue"
	}
	if e.Guard != pag.NoGuard {
		neg := ""
		if e.Guard.Negated() {
			neg = "!"
		}
		label += fmt.Sprintf(" [%s%s]", neg, prog.CondName(e.Guard.Cond()))
	}
	if label != "" {
		attrs += fmt.Sprintf(" label=%q", label)
	}
	if attrs == "" {
		return ""
	}
	return " [" + attrs[1:] + "]"
}

// WriteVFGGraphviz writes a graphviz representation of the value-flow graph to w, with one cluster per function
func WriteVFGGraphviz(g *vfg.Graph, w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph vfg {\n  node [shape=box];\n")
	byFn := map[*pag.Function][]*vfg.Node{}
	var outside []*vfg.Node
	for _, n := range g.Nodes() {
		if n.Fn == nil {
			outside = append(outside, n)
		} else {
			byFn[n.Fn] = append(byFn[n.Fn], n)
		}
	}
	for _, fn := range g.Prog().Funcs {
		fmt.Fprintf(bw, "  subgraph \"cluster_%s\" {\n    label=%q;\n", fn.Name, fn.Name)
		for _, n := range byFn[fn] {
			fmt.Fprintf(bw, "    n%d [label=%q];\n", n.ID, n.String())
		}
		fmt.Fprintf(bw, "  }\n")
	}
	for _, n := range outside {
		fmt.Fprintf(bw, "  n%d [label=%q];\n", n.ID, n.String())
	}
	for _, n := range g.Nodes() {
		for _, e := range g.OutEdges(n.ID) {
			fmt.Fprintf(bw, "  n%d -> n%d%s;\n", e.Src, e.Dst, vfgEdgeAttrs(g.Prog(), e))
		}
	}
	fmt.Fprintf(bw, "}\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("error while writing graph: %w", err)
	}
	return nil
}

// GraphvizToFile writes the graph with write in the file filename
func GraphvizToFile(filename string, write func(w io.Writer) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	if err := write(w); err != nil {
		return fmt.Errorf("error while writing graph: %w", err)
	}
	return nil
}
