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

package analysis

import (
	"fmt"

	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
)

// Result contains general statistics about a program
type Result struct {
	NumberOfFunctions     uint
	NumberOfBlocks        uint
	NumberOfGuardedBlocks uint
	NumberOfStatements    uint
	NumberOfCallSites     uint
	NumberOfIndirectCalls uint
	NumberOfObjects       uint
	NumberOfHeapObjects   uint
	NumberOfGlobalObjects uint

	// StatementsByKind maps the name of a statement kind (addr, copy, ...) to the number of such statements
	StatementsByKind map[string]uint
}

// ProgramStatistics returns a Result with statistics about the functions, statements and objects of prog.
// Function objects are not counted as objects.
func ProgramStatistics(prog *pag.Program) Result {
	result := Result{StatementsByKind: map[string]uint{}}

	for _, f := range prog.Funcs {
		result.NumberOfFunctions++
		for _, b := range f.Blocks {
			result.NumberOfBlocks++
			if b.Guard != pag.NoGuard {
				result.NumberOfGuardedBlocks++
			}
			for _, s := range b.Stmts {
				result.NumberOfStatements++
				result.StatementsByKind[stmtKind(s)]++
			}
		}
	}

	for _, cs := range prog.CallSites {
		result.NumberOfCallSites++
		if cs.IsIndirect() {
			result.NumberOfIndirectCalls++
		}
	}

	for _, n := range prog.Nodes {
		if n.Kind != pag.ObjNode {
			continue
		}
		o := prog.Obj(n.ID)
		if o == nil || o.IsFunction() {
			continue
		}
		result.NumberOfObjects++
		if o.Heap {
			result.NumberOfHeapObjects++
		}
		if o.Global {
			result.NumberOfGlobalObjects++
		}
	}
	return result
}

func stmtKind(s pag.Stmt) string {
	switch x := s.(type) {
	case *pag.Addr:
		return "addr"
	case *pag.Copy:
		return "copy"
	case *pag.Load:
		return "load"
	case *pag.Store:
		return "store"
	case *pag.Gep:
		if x.Variant {
			return "variant-gep"
		}
		return "gep"
	case *pag.Phi:
		return "phi"
	case *pag.Call:
		return "call"
	case *pag.Ret:
		return "ret"
	}
	return "unknown"
}

// LogStatistics prints the statistics of the result on the info logger
func LogStatistics(logger *config.LogGroup, r Result) {
	logger.Infof("%d functions, %d blocks (%d guarded)", r.NumberOfFunctions, r.NumberOfBlocks,
		r.NumberOfGuardedBlocks)
	logger.Infof("%d statements, %d call sites (%d indirect)", r.NumberOfStatements, r.NumberOfCallSites,
		r.NumberOfIndirectCalls)
	logger.Infof("%d objects (%d heap, %d global)", r.NumberOfObjects, r.NumberOfHeapObjects,
		r.NumberOfGlobalObjects)
	for _, kind := range []string{"addr", "copy", "load", "store", "gep", "variant-gep", "phi", "call", "ret"} {
		if n := r.StatementsByKind[kind]; n > 0 {
			logger.Debugf("  %-12s %d", kind, n)
		}
	}
}

func (r Result) String() string {
	return fmt.Sprintf("functions: %d, blocks: %d, statements: %d, call sites: %d (%d indirect), objects: %d",
		r.NumberOfFunctions, r.NumberOfBlocks, r.NumberOfStatements, r.NumberOfCallSites, r.NumberOfIndirectCalls,
		r.NumberOfObjects)
}
