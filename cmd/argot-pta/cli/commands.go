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

package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/awslabs/ar-go-pta/analysis/alias"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"github.com/awslabs/ar-go-pta/internal/funcutil"
	"golang.org/x/term"
)

const (
	cmdAliasName  = "alias"
	cmdCyclesName = "cycles"
	cmdDdaName    = "dda"
	cmdExitName   = "exit"
	cmdFunptrName = "funptr"
	cmdHelpName   = "help"
	cmdLsName     = "ls"
	cmdPtsName    = "pts"
	cmdStateName  = "state"
	cmdStatsName  = "stats"
)

var (
	ddaModes = []string{config.ModeFlow, config.ModeContext, config.ModePath}
	allModes = append([]string{alias.ModeAndersen}, ddaModes...)
)

// cmdExit implements the exit command
func cmdExit(tt *term.Terminal, c *AnalyzerState, _ Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s : exit the program\n", tt.Escape.Blue, cmdExitName, tt.Escape.Reset)
		return false
	}
	return true
}

// cmdLs lists the named values of the program matching the provided regexes
func cmdLs(tt *term.Terminal, c *AnalyzerState, command Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s : list the pointers matching provided regexes\n",
			tt.Escape.Blue, cmdLsName, tt.Escape.Reset)
		writeFmt(tt, "\t  Options:\n")
		writeFmt(tt, "\t    -o     list the objects instead\n")
		return false
	}
	var filters []*regexp.Regexp
	for _, arg := range command.Args {
		r, err := regexp.Compile(arg)
		if err != nil {
			WriteErr(tt, "Error while compiling %q into regex: %s", arg, err)
			return false
		}
		filters = append(filters, r)
	}
	kind := pag.ValNode
	if command.Flags["o"] {
		kind = pag.ObjNode
	}
	var entries []displayElement
	for _, n := range c.Program.Program.Nodes {
		if n.Kind != kind || !matchesAll(filters, n.Name) {
			continue
		}
		e := displayElement{content: n.Name}
		if kind == pag.ValNode && c.Pre.Pts(n.ID).IsEmpty() {
			e.escape = tt.Escape.Magenta
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		WriteSuccess(tt, "No match.")
		return false
	}
	writeEntries(tt, entries, "")
	return false
}

func matchesAll(filters []*regexp.Regexp, name string) bool {
	for _, r := range filters {
		if !r.MatchString(name) {
			return false
		}
	}
	return true
}

// cmdPts prints the points-to sets of pointers
func cmdPts(tt *term.Terminal, c *AnalyzerState, command Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s : print the points-to sets of the given pointers\n",
			tt.Escape.Blue, cmdPtsName, tt.Escape.Reset)
		writeFmt(tt, "\t  Options:\n")
		writeFmt(tt, "\t    --mode m   the analysis computing the sets: andersen (default), flow, context or path\n")
		return false
	}
	mode, err := command.Mode(alias.ModeAndersen, allModes...)
	if err != nil {
		WriteErr(tt, "%s", err)
		return false
	}
	return printPts(tt, c, mode, command.Args)
}

// cmdDda runs demand-driven queries. Unlike pts, it defaults to the flow-sensitive analysis and reports the queries
// that ran out of budget.
func cmdDda(tt *term.Terminal, c *AnalyzerState, command Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s : query the points-to sets of the given pointers on demand\n",
			tt.Escape.Blue, cmdDdaName, tt.Escape.Reset)
		writeFmt(tt, "\t  Options:\n")
		writeFmt(tt, "\t    --mode m   flow (default), context or path\n")
		return false
	}
	mode, err := command.Mode(config.ModeFlow, ddaModes...)
	if err != nil {
		WriteErr(tt, "%s is not a demand-driven analysis", command.NamedArgs["mode"])
		return false
	}
	return printPts(tt, c, mode, command.Args)
}

func printPts(tt *term.Terminal, c *AnalyzerState, mode string, names []string) bool {
	if len(names) == 0 {
		WriteErr(tt, "Expected at least one pointer name.")
		return false
	}
	client, err := c.Client(mode)
	if err != nil {
		WriteErr(tt, "%s", err)
		return false
	}
	prog := c.Program.Program
	for _, name := range names {
		v, err := c.Lookup(name)
		if err != nil {
			WriteErr(tt, "%s", err)
			continue
		}
		oob := 0
		if st := c.stats[mode]; st != nil {
			oob = st.NumOutOfBudgetQueries
		}
		res := client.PointsTo(v)
		var suffix string
		if mode != alias.ModeAndersen && !res.Equals(c.Pre.Pts(v)) {
			suffix = fmt.Sprintf(" (whole-program: %s)", tools.FormatPts(prog, c.Pre.Pts(v)))
		}
		if st := c.stats[mode]; st != nil && st.NumOutOfBudgetQueries > oob {
			suffix += fmt.Sprintf(" %s[out of budget]%s", tt.Escape.Yellow, tt.Escape.Reset)
		}
		writePts(tt, prog, name, res, suffix)
	}
	return false
}

// cmdAlias answers an alias query
func cmdAlias(tt *term.Terminal, c *AnalyzerState, command Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s a b : check whether two pointers may alias\n",
			tt.Escape.Blue, cmdAliasName, tt.Escape.Reset)
		writeFmt(tt, "\t  Options:\n")
		writeFmt(tt, "\t    --mode m   andersen, flow (default), context or path\n")
		return false
	}
	if len(command.Args) != 2 {
		WriteErr(tt, "Expected two pointer names.")
		return false
	}
	mode, err := command.Mode(config.ModeFlow, allModes...)
	if err != nil {
		WriteErr(tt, "%s", err)
		return false
	}
	client, err := c.Client(mode)
	if err != nil {
		WriteErr(tt, "%s", err)
		return false
	}
	a, err := c.Lookup(command.Args[0])
	if err != nil {
		WriteErr(tt, "%s", err)
		return false
	}
	b, err := c.Lookup(command.Args[1])
	if err != nil {
		WriteErr(tt, "%s", err)
		return false
	}
	answer := alias.Answer{A: command.Args[0], B: command.Args[1], Result: client.Alias(a, b)}
	if answer.Result == alias.NoAlias {
		WriteSuccess(tt, "%s", answer)
	} else {
		WriteErr(tt, "%s", answer)
	}
	return false
}

// cmdFunptr resolves the indirect calls
func cmdFunptr(tt *term.Terminal, c *AnalyzerState, command Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s : resolve the function pointers of the indirect calls\n",
			tt.Escape.Blue, cmdFunptrName, tt.Escape.Reset)
		writeFmt(tt, "\t  Options:\n")
		writeFmt(tt, "\t    --mode m   flow (default), context or path\n")
		return false
	}
	mode, err := command.Mode(config.ModeFlow, ddaModes...)
	if err != nil {
		WriteErr(tt, "%s", err)
		return false
	}
	client, err := c.Client(mode)
	if err != nil {
		WriteErr(tt, "%s", err)
		return false
	}
	targets := alias.NewFunptrClient(c.Pre, client).Resolve()
	if len(targets) == 0 {
		WriteSuccess(tt, "No indirect calls.")
		return false
	}
	for _, t := range targets {
		if t.Refined() {
			WriteSuccess(tt, "%s", t)
		} else {
			writeFmt(tt, "%s\n", t)
		}
	}
	return false
}

// cmdCycles prints the recursive cycles of the whole-program call graph
func cmdCycles(tt *term.Terminal, c *AnalyzerState, _ Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s : print the cycles of the call graph\n",
			tt.Escape.Blue, cmdCyclesName, tt.Escape.Reset)
		return false
	}
	cycles := c.Pre.CallGraph().ElementaryCycles()
	if len(cycles) == 0 {
		WriteSuccess(tt, "No recursion.")
		return false
	}
	for _, cycle := range cycles {
		names := funcutil.Map(cycle, func(f *pag.Function) string { return f.Name })
		writeFmt(tt, "%s\n", strings.Join(names, " -> "))
	}
	return false
}

// cmdStats prints the statistics of the analyses run so far
func cmdStats(tt *term.Terminal, c *AnalyzerState, _ Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s : print the statistics of the analyses\n",
			tt.Escape.Blue, cmdStatsName, tt.Escape.Reset)
		return false
	}
	writeFmt(tt, "%sprogram%s : %s\n", tt.Escape.Cyan, tt.Escape.Reset, c.Program.Statistics)
	writeFmt(tt, "%sandersen%s: %s\n", tt.Escape.Cyan, tt.Escape.Reset, c.Pre.Stats())
	for _, mode := range c.Modes() {
		writeFmt(tt, "%s%-8s%s: %s\n", tt.Escape.Cyan, mode, tt.Escape.Reset, c.stats[mode])
	}
	return false
}
