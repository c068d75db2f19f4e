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

// Package leaks reports the heap allocations of a program that may not be released.
package leaks

import (
	"fmt"
	"io"
	"os"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/leak"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"github.com/awslabs/ar-go-pta/internal/formatutil"
)

// Usage for the leaks sub-command
const Usage = `Report the heap objects that are never released, or released on some paths only.
The functions releasing their argument are the free-functions of the config.
Usage:
  argot-pta leaks [options] <program.yaml>
`

// Run checks the program given by flags for leaks. Leaks are reported on stdout.
func Run(flags tools.CommonFlags) error {
	session, err := tools.NewSession(flags)
	if err != nil {
		return err
	}
	pre := andersen.Analyze(session.Program.Program, session.Config, session.Logger)
	checker := leak.NewChecker(pre, session.Config, session.Logger)
	reports := checker.Check()
	if err := Write(os.Stdout, session.Program.Program, reports); err != nil {
		return err
	}
	stats := checker.Stats()
	if len(reports) == 0 {
		session.Logger.Infof(formatutil.Green(fmt.Sprintf("No leaks in %d allocations", stats.NumSources)))
	} else {
		session.Logger.Infof(formatutil.Red(fmt.Sprintf("%d never freed, %d partially freed in %d allocations",
			stats.NumNeverFreed, stats.NumPartiallyFreed, stats.NumSources)))
	}
	return nil
}

// Write writes each report on one line
func Write(w io.Writer, prog *pag.Program, reports []leak.Report) error {
	for _, r := range reports {
		if _, err := fmt.Fprintln(w, r.String(prog)); err != nil {
			return err
		}
	}
	return nil
}
