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

package leak

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-pta/analysis/pag"
)

// Kind is the kind of a leak
type Kind int

const (
	// NeverFreed is an allocation released on no path
	NeverFreed Kind = iota
	// PartiallyFreed is an allocation released on some paths only
	PartiallyFreed
)

func (k Kind) String() string {
	if k == PartiallyFreed {
		return "partially freed"
	}
	return "never freed"
}

// Report is a heap allocation that may not be released
type Report struct {
	Kind Kind

	// Fn is the function allocating the object
	Fn *pag.Function

	// Source is the address statement of the allocation, and Obj its object
	Source *pag.Addr
	Obj    pag.NodeID

	// Frees are the calls that may release the object
	Frees []*pag.CallSite
}

// String returns a one-line description of the report, naming the values of prog
func (r Report) String(prog *pag.Program) string {
	s := fmt.Sprintf("%s: %s = &%s in %s", r.Kind, prog.Node(r.Source.Dst).Name, prog.Node(r.Obj).Name, r.Fn.Name)
	if len(r.Frees) > 0 {
		frees := make([]string, len(r.Frees))
		for i, cs := range r.Frees {
			frees[i] = cs.String()
		}
		s += " (freed at " + strings.Join(frees, ", ") + ")"
	}
	return s
}
