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

// Package cycles prints the recursive call cycles of a program.
package cycles

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/callgraph"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"github.com/awslabs/ar-go-pta/internal/formatutil"
	"github.com/awslabs/ar-go-pta/internal/funcutil"
)

// Usage for the cycles sub-command
const Usage = `Print the elementary cycles of the call graph computed by the whole-program analysis.
Usage:
  argot-pta cycles [options] <program.yaml>
`

// Run prints the call graph cycles of the program given by flags.
func Run(flags tools.CommonFlags) error {
	session, err := tools.NewSession(flags)
	if err != nil {
		return err
	}
	pre := andersen.Analyze(session.Program.Program, session.Config, session.Logger)
	n, err := Write(os.Stdout, pre.CallGraph())
	if err != nil {
		return err
	}
	if n == 0 {
		session.Logger.Infof(formatutil.Green("No recursion"))
	} else {
		session.Logger.Infof("%d cycles", n)
	}
	return nil
}

// Write writes each elementary cycle of cg on one line, as f -> g -> f, and returns the number of cycles.
func Write(w io.Writer, cg *callgraph.Graph) (int, error) {
	cycles := cg.ElementaryCycles()
	for _, cycle := range cycles {
		names := funcutil.Map(cycle, func(f *pag.Function) string { return f.Name })
		if _, err := fmt.Fprintln(w, strings.Join(names, " -> ")); err != nil {
			return 0, err
		}
	}
	return len(cycles), nil
}
