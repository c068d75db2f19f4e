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

// Package pta implements the frontend of the whole-program pointer analysis.
package pta

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/awslabs/ar-go-pta/analysis"
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/rendering"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"github.com/awslabs/ar-go-pta/internal/formatutil"
)

// Usage for the pta sub-command
const Usage = `Run the whole-program Andersen analysis and print the points-to sets.
Usage:
  argot-pta pta [options] <program.yaml>
Examples:
  % argot-pta pta -config config.yaml program.yaml
`

// Flags represents the parsed flags of the pta sub-command.
type Flags struct {
	tools.CommonFlags
	callgraph bool
	dotFile   string
}

// NewFlags returns the parsed flags for the pta sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("pta")
	cg := flags.FlagSet.Bool("callgraph", false, "also print the call graph")
	dot := flags.FlagSet.String("dot", "", "write the call graph in graphviz format to this file")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, callgraph: *cg, dotFile: *dot}, nil
}

// Run runs the whole-program analysis with flags and writes the points-to sets to standard output, and to the
// report file of the config when report-pts is set.
func Run(flags Flags) error {
	session, err := tools.NewSession(flags.CommonFlags)
	if err != nil {
		return err
	}
	logger := session.Logger
	logger.Infof(formatutil.Faint("argot-pta pta - " + analysis.Version))
	analysis.LogStatistics(logger, session.Program.Statistics)

	start := time.Now()
	solver := andersen.Analyze(session.Program.Program, session.Config, logger)
	logger.Infof("Andersen analysis took %3.4f s", time.Since(start).Seconds())
	logger.Debugf("%s", solver.Stats())

	if err := Write(os.Stdout, solver, flags.callgraph); err != nil {
		return err
	}
	if flags.dotFile != "" {
		err := rendering.GraphvizToFile(flags.dotFile, func(w io.Writer) error {
			return rendering.WriteGraphviz(solver.CallGraph(), w)
		})
		if err != nil {
			return err
		}
		logger.Infof("Call graph written in %s", flags.dotFile)
	}
	if session.Config.ReportPts {
		f, err := os.Create(session.Config.PtsReportFile())
		if err != nil {
			return fmt.Errorf("could not create report file: %v", err)
		}
		defer f.Close()
		solver.DumpPts(f)
		logger.Infof("Points-to sets written in %s", session.Config.PtsReportFile())
	}
	return nil
}

// Write writes the points-to sets computed by solver, and its call graph if withCallgraph is set
func Write(w io.Writer, solver *andersen.Solver, withCallgraph bool) error {
	solver.DumpPts(w)
	if withCallgraph {
		if _, err := fmt.Fprintf(w, "call graph:\n"); err != nil {
			return err
		}
		solver.CallGraph().Dump(w)
	}
	return nil
}
