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
	"os"
	"sort"

	"github.com/awslabs/ar-go-pta/analysis/alias"
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/dda"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"golang.org/x/term"
)

// serverState stores state information about the terminal. Not used to store information about the program
// being analyzed
type serverState struct {
	// the args (the path to the program to load)
	Args []string

	ConfigPath string

	TermWidth int
}

var state = serverState{}

// AnalyzerState is the program being analyzed and the analyses run on it. The demand-driven clients are created
// on first use and kept for the whole session, so their caches are shared by the queries of the session.
type AnalyzerState struct {
	*tools.Session

	Pre *andersen.Solver

	clients map[string]alias.Client
	stats   map[string]*dda.Stats
}

// NewAnalyzerState runs the whole-program analysis on the program of the session
func NewAnalyzerState(session *tools.Session) *AnalyzerState {
	return &AnalyzerState{
		Session: session,
		Pre:     andersen.Analyze(session.Program.Program, session.Config, session.Logger),
		clients: map[string]alias.Client{},
		stats:   map[string]*dda.Stats{},
	}
}

// Client returns the client of the given mode, creating it if necessary
func (c *AnalyzerState) Client(mode string) (alias.Client, error) {
	if client, ok := c.clients[mode]; ok {
		return client, nil
	}
	stats := &dda.Stats{}
	client, err := alias.NewClient(c.Pre, c.Config, c.Logger, mode, stats)
	if err != nil {
		return nil, err
	}
	c.clients[mode] = client
	if mode != alias.ModeAndersen {
		c.stats[mode] = stats
	}
	return client, nil
}

// Modes returns the demand-driven modes that have been used in the session, sorted
func (c *AnalyzerState) Modes() []string {
	var modes []string
	for m := range c.stats {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}

// Help command
func cmdHelp(tt *term.Terminal, c *AnalyzerState, _ Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s : print help message\n", tt.Escape.Blue, cmdHelpName, tt.Escape.Reset)
		return false
	}
	writeFmt(tt, "Commands:\n")
	writeFmt(tt, "\t- %s%s%s : print this message\n", tt.Escape.Blue, cmdHelpName, tt.Escape.Reset)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		commands[name](tt, nil, Command{})
	}
	return false
}

// cmdState implements the "state" command, which prints information about the current state of the tool
func cmdState(tt *term.Terminal, c *AnalyzerState, _ Command) bool {
	if c == nil {
		writeFmt(tt, "\t- %s%s%s : print information about the current state\n",
			tt.Escape.Blue, cmdStateName, tt.Escape.Reset)
		return false
	}
	wd, _ := os.Getwd()
	stats := c.Program.Statistics
	writeFmt(tt, "Program path      : %s\n", c.Program.Path)
	writeFmt(tt, "Config path       : %s\n", state.ConfigPath)
	writeFmt(tt, "Working dir       : %s\n", wd)
	writeFmt(tt, "# functions       : %d\n", stats.NumberOfFunctions)
	writeFmt(tt, "# call sites      : %d (%d indirect)\n", stats.NumberOfCallSites, stats.NumberOfIndirectCalls)
	writeFmt(tt, "# objects         : %d\n", stats.NumberOfObjects)
	writeFmt(tt, "points-to backend : %s\n", c.Config.PtsBackend)
	writeFmt(tt, "on-the-fly calls  : %t\n", c.Config.OnTheFlyCallgraph)
	return false
}
