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

// Package funptr implements the frontend of the function pointer resolution client.
package funptr

import (
	"fmt"
	"io"
	"os"

	"github.com/awslabs/ar-go-pta/analysis"
	"github.com/awslabs/ar-go-pta/analysis/alias"
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/dda"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"github.com/awslabs/ar-go-pta/internal/formatutil"
)

// Usage for the funptr sub-command
const Usage = `Resolve the function pointers of the indirect calls, and compare with the whole-program call graph.
Usage:
  argot-pta funptr [options] <program.yaml>
Examples:
  % argot-pta funptr -mode context program.yaml
`

// Flags represents the parsed flags of the funptr sub-command.
type Flags struct {
	tools.CommonFlags
	mode string
}

// NewFlags returns the parsed flags for the funptr sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("funptr")
	mode := flags.FlagSet.String("mode", config.ModeFlow, "analysis resolving the pointers: flow, context or path")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, mode: *mode}, nil
}

// Run resolves the indirect calls of the program given by flags.
func Run(flags Flags) error {
	session, err := tools.NewSession(flags.CommonFlags)
	if err != nil {
		return err
	}
	session.Logger.Infof(formatutil.Faint("argot-pta funptr - " + analysis.Version))
	pre := andersen.Analyze(session.Program.Program, session.Config, session.Logger)
	stats := &dda.Stats{}
	client, err := alias.NewClient(pre, session.Config, session.Logger, flags.mode, stats)
	if err != nil {
		return err
	}
	n, err := Write(os.Stdout, alias.NewFunptrClient(pre, client).Resolve())
	if err != nil {
		return err
	}
	session.Logger.Infof("%d indirect calls refined by the %s analysis", n, client.Name())
	return nil
}

// Write writes the targets of each indirect call site, highlighting the refined ones. It returns the number of
// refined call sites.
func Write(w io.Writer, targets []alias.CallTargets) (int, error) {
	refined := 0
	for _, t := range targets {
		line := t.String()
		if t.Refined() {
			refined++
			line = formatutil.Green(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return refined, err
		}
	}
	return refined, nil
}
