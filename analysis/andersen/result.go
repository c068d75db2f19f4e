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

package andersen

import (
	"fmt"
	"io"

	"github.com/awslabs/ar-go-pta/analysis/callgraph"
	"github.com/awslabs/ar-go-pta/analysis/constraint"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
)

// Pts returns the points-to set of n. Objects merged by field collapsing are reported as their base object.
// The result is a fresh set owned by the caller.
func (s *Solver) Pts(n pag.NodeID) *pts.PointsTo {
	res := &pts.PointsTo{}
	for _, o := range s.ptd.GetPts(s.cg.Rep(n)).Elems() {
		res.Insert(s.objOf(o))
	}
	return res
}

// Alias returns true if a and b may point to the same object
func (s *Solver) Alias(a, b pag.NodeID) bool {
	return s.Pts(a).Intersects(s.Pts(b))
}

// IsFieldInsensitive returns true if obj was collapsed into a single field-insensitive object
func (s *Solver) IsFieldInsensitive(obj pag.NodeID) bool {
	return s.prog.Obj(obj).IsFieldInsensitive()
}

// IsLocalVarInRecursion returns true if obj is a stack object of a function that may be called recursively. Such
// an object stands for many runtime locations.
func (s *Solver) IsLocalVarInRecursion(obj pag.NodeID) bool {
	o := s.prog.Obj(obj)
	if !o.Stack || o.Owner == nil {
		return false
	}
	return s.callGraph.IsInCycle(o.Owner)
}

// Program returns the analyzed program
func (s *Solver) Program() *pag.Program {
	return s.prog
}

// ConstraintGraph returns the constraint graph, with the edges added during solving
func (s *Solver) ConstraintGraph() *constraint.Graph {
	return s.cg
}

// CallGraph returns the call graph, including the resolved indirect calls
func (s *Solver) CallGraph() *callgraph.Graph {
	return s.callGraph
}

// Stats returns the statistics of the solver
func (s *Solver) Stats() *Stats {
	return s.stats
}

// DumpPts writes the non-empty points-to sets of the value nodes, one per line
func (s *Solver) DumpPts(w io.Writer) {
	for _, n := range s.prog.Nodes {
		if n.Kind != pag.ValNode {
			continue
		}
		p := s.Pts(n.ID)
		if p.IsEmpty() {
			continue
		}
		fmt.Fprintf(w, "%s -> {", n.Name)
		for i, o := range p.Elems() {
			if i > 0 {
				fmt.Fprintf(w, ", ")
			}
			fmt.Fprintf(w, "%s", s.prog.Node(o).Name)
		}
		fmt.Fprintf(w, "}\n")
	}
}

// String summarizes the statistics
func (st *Stats) String() string {
	return fmt.Sprintf("addr: %d, copy: %d, gep: %d, load: %d, store: %d, nodes: %d, added copy edges: %d, "+
		"scc detections: %d, merged nodes: %d, collapsed objects: %d, indirect call edges: %d, rounds: %d",
		st.NumProcessedAddr, st.NumProcessedCopy, st.NumProcessedGep, st.NumProcessedLoad, st.NumProcessedStore,
		st.NumProcessedNodes, st.NumAddedCopyEdges, st.NumSCCDetections, st.NumMergedNodes, st.NumCollapsedObjs,
		st.NumIndirectEdges, st.NumCallGraphRounds)
}
