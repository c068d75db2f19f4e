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
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"github.com/awslabs/ar-go-pta/internal/formatutil"
	"golang.org/x/term"
)

// Usage for CLI
const Usage = `Interactive CLI for exploring the points-to sets of a program.
Usage:
  argot-pta cli [options] <program.yaml>`

var commands = map[string]func(tt *term.Terminal, c *AnalyzerState, command Command) bool{
	cmdAliasName:  cmdAlias,
	cmdCyclesName: cmdCycles,
	cmdDdaName:    cmdDda,
	cmdExitName:   cmdExit,
	cmdFunptrName: cmdFunptr,
	cmdLsName:     cmdLs,
	cmdPtsName:    cmdPts,
	cmdStateName:  cmdState,
	cmdStatsName:  cmdStats,
}

// Run runs a simple CLI-based stdin-stdout server to allow us to explore the points-to sets of a program.
func Run(flags tools.CommonFlags) error {
	logger := log.New(os.Stdout, "", log.Flags())
	logger.Printf(formatutil.Faint("Reading program") + "\n")
	session, err := tools.NewSession(flags)
	if err != nil {
		return err
	}
	state.Args = flags.FlagSet.Args()
	state.ConfigPath = flags.ConfigPath

	logger.Printf(formatutil.Faint("Running the whole-program analysis") + "\n")
	c := NewAnalyzerState(session)
	return run(c)
}

// run implements the command line tool, calling interpret for each command until the exit command is input
func run(c *AnalyzerState) error {
	oldState /* const */, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("could not set the terminal in raw mode: %v", err)
	}
	state.TermWidth, _, _ = term.GetSize(int(os.Stdin.Fd()))
	defer term.Restore(int(os.Stdin.Fd()), oldState)
	tt := term.NewTerminal(os.Stdin, "> ")
	c.Logger.SetAllOutput(tt)
	c.Logger.SetAllFlags(0) // no prefix
	tt.AutoCompleteCallback = autoComplete(c)
	// Capture ctrl+c and exit by returning
	captureChan := make(chan os.Signal, 1)
	signal.Notify(captureChan, os.Interrupt)
	go exitOnReceive(captureChan, tt, oldState)
	// the infinite loop terminates when interpret returns true
	for {
		command, err := tt.ReadLine()
		if err != nil {
			return nil
		}
		if interpret(tt, c, strings.TrimSpace(command)) {
			return nil
		}
	}
}

// interpret returns true to stop
func interpret(tt *term.Terminal, c *AnalyzerState, command string) bool {
	if command == "" {
		return false
	}
	cmd, err := ParseCommand(command)
	if err != nil {
		WriteErr(tt, "%s", err)
		return false
	}
	if cmd.Name == "" {
		return false
	}

	if f, ok := commands[cmd.Name]; ok {
		return f(tt, c, cmd)
	}
	if cmd.Name == cmdHelpName {
		cmdHelp(tt, c, cmd)
	} else {
		WriteErr(tt, "Command name %q not recognized.", cmd.Name)
		cmdHelp(tt, c, cmd)
	}
	return false
}

// autoComplete completes the command name of the first word, and the names of the program's values after that
func autoComplete(c *AnalyzerState) func(line string, pos int, key rune) (string, int, bool) {
	var values []string
	for _, n := range c.Program.Program.Nodes {
		if v, ok := c.Program.Program.Value(n.Name); ok && v == n.ID {
			values = append(values, n.Name)
		}
	}
	sort.Strings(values)
	names := []string{cmdHelpName}
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(line string, pos int, key rune) (string, int, bool) {
		if key != '\t' || pos != len(line) {
			return "", 0, false
		}
		start := strings.LastIndex(line, " ") + 1
		candidates := values
		if start == 0 {
			candidates = names
		}
		if completed, ok := complete(line[start:], candidates); ok {
			newLine := line[:start] + completed
			return newLine, len(newLine), true
		}
		return "", 0, false
	}
}

// complete returns the longest common prefix of the candidates starting with prefix
func complete(prefix string, candidates []string) (string, bool) {
	res := ""
	found := false
	for _, cand := range candidates {
		if !strings.HasPrefix(cand, prefix) {
			continue
		}
		if !found {
			res = cand
			found = true
			continue
		}
		i := 0
		for i < len(res) && i < len(cand) && res[i] == cand[i] {
			i++
		}
		res = res[:i]
	}
	return res, found && len(res) > len(prefix)
}

func exitOnReceive(c chan os.Signal, tt *term.Terminal, oldState *term.State) {
	for range c {
		writeFmt(tt, formatutil.Red("Caught SIGINT, exiting!"))
		term.Restore(int(os.Stdin.Fd()), oldState)
		os.Exit(0)
	}
}
