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

// Package dda implements the frontend of the demand-driven pointer analyses.
package dda

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/awslabs/ar-go-pta/analysis"
	"github.com/awslabs/ar-go-pta/analysis/alias"
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/dda"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/rendering"
	"github.com/awslabs/ar-go-pta/analysis/vfg"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"github.com/awslabs/ar-go-pta/internal/formatutil"
)

// Usage for the dda sub-command
const Usage = `Answer points-to queries with a demand-driven analysis.
Usage:
  argot-pta dda [options] <program.yaml>
If no -query is given, the queries of the config for the mode are run. If the config has none, every pointer
with a non-empty whole-program points-to set is queried.
Examples:
  % argot-pta dda -mode context -query r1 -query r2 program.yaml
`

// Flags represents the parsed flags of the dda sub-command.
type Flags struct {
	tools.CommonFlags
	mode    string
	budget  int
	queries tools.QueryNames
	vfgDot  string
}

// NewFlags returns the parsed flags for the dda sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("dda")
	mode := flags.FlagSet.String("mode", config.ModeFlow, "analysis mode: flow, context or path")
	budget := flags.FlagSet.Int("budget", 0, "override the step budget of the mode in the config")
	var queries tools.QueryNames
	flags.FlagSet.Var(&queries, "query", "name of a pointer to query (can be repeated)")
	vfgDot := flags.FlagSet.String("vfg-dot", "", "write the value-flow graph in graphviz format to this file")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, mode: *mode, budget: *budget, queries: queries, vfgDot: *vfgDot}, nil
}

// Run runs the demand-driven queries given by flags and prints the answers on standard output.
func Run(flags Flags) error {
	session, err := tools.NewSession(flags.CommonFlags)
	if err != nil {
		return err
	}
	cfg := session.Config
	if flags.budget > 0 {
		switch flags.mode {
		case config.ModeContext:
			cfg.CxtBudget = flags.budget
		case config.ModePath:
			cfg.PathBudget = flags.budget
		default:
			cfg.FlowBudget = flags.budget
		}
	}
	session.Logger.Infof(formatutil.Faint("argot-pta dda - " + analysis.Version))

	pre := andersen.Analyze(session.Program.Program, cfg, session.Logger)
	if flags.vfgDot != "" {
		g := vfg.New(pre, cfg.OnTheFlyCallgraph, session.Logger)
		if err := rendering.GraphvizToFile(flags.vfgDot, func(w io.Writer) error {
			return rendering.WriteVFGGraphviz(g, w)
		}); err != nil {
			return err
		}
		session.Logger.Infof("Value-flow graph written in %s", flags.vfgDot)
	}
	names := []string(flags.queries)
	if len(names) == 0 {
		names = cfg.QueriesFor(flags.mode)
	}
	if len(names) == 0 {
		names = DefaultQueries(pre)
	}

	start := time.Now()
	stats, err := Query(os.Stdout, pre, cfg, session.Logger, flags.mode, names)
	if err != nil {
		return err
	}
	session.Logger.Infof("%d queries took %3.4f s", len(names), time.Since(start).Seconds())
	session.Logger.Infof("%s", stats)
	return nil
}

// DefaultQueries returns the names of the pointers whose whole-program points-to set is not empty
func DefaultQueries(pre *andersen.Solver) []string {
	var res []string
	prog := pre.Program()
	for _, n := range prog.Nodes {
		if n.Kind != pag.ValNode || pre.Pts(n.ID).IsEmpty() {
			continue
		}
		// only the named values can be queried
		if v, ok := prog.Value(n.Name); ok && v == n.ID {
			res = append(res, n.Name)
		}
	}
	return res
}

// Query answers the points-to queries for the pointers named names with the demand-driven analysis of the given
// mode, writing one line per query to w. The whole-program answer is printed next to the demand-driven one.
func Query(w io.Writer, pre *andersen.Solver, cfg *config.Config, logger *config.LogGroup, mode string,
	names []string) (*dda.Stats, error) {
	stats := &dda.Stats{}
	client, err := alias.NewDDA(pre, cfg, logger, mode, stats)
	if err != nil {
		return nil, err
	}
	prog := pre.Program()
	for _, name := range names {
		v, ok := prog.Value(name)
		if !ok {
			return stats, fmt.Errorf("%w: %q", alias.ErrUnknownValue, name)
		}
		res := client.PointsTo(v)
		preRes := pre.Pts(v)
		line := fmt.Sprintf("%s -> %s", name, tools.FormatPts(prog, res))
		if !res.Equals(preRes) {
			line += formatutil.Faint(fmt.Sprintf(" (whole-program: %s)", tools.FormatPts(prog, preRes)))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
