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

// Package alias implements the frontend of the alias client.
package alias

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

// Usage for the alias sub-command
const Usage = `Check whether two pointers may alias.
Usage:
  argot-pta alias [options] <program.yaml> [a b]
Without a pair of pointers, the alias queries of the config are answered.
Examples:
  % argot-pta alias -mode path program.yaml x y
`

// Flags represents the parsed flags of the alias sub-command.
type Flags struct {
	tools.CommonFlags
	mode string
}

// NewFlags returns the parsed flags for the alias sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("alias")
	mode := flags.FlagSet.String("mode", config.ModeFlow, "analysis answering the queries: andersen, flow, context or path")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, mode: *mode}, nil
}

// Run answers the alias queries given by flags.
func Run(flags Flags) error {
	args := flags.FlagSet.Args()
	var pair []string
	switch len(args) {
	case 1:
	case 3:
		pair = args[1:]
	default:
		return fmt.Errorf("expected a program file and optionally two pointers, got %v", args)
	}
	session, err := tools.OpenSession(flags.ConfigPath, flags.Verbose, args[:1])
	if err != nil {
		return err
	}
	cfg := session.Config
	if pair != nil {
		cfg.AliasQueries = []config.AliasQuerySpec{{A: pair[0], B: pair[1]}}
	}
	if len(cfg.AliasQueries) == 0 {
		return fmt.Errorf("no alias queries: provide two pointers or set alias-queries in the config")
	}
	session.Logger.Infof(formatutil.Faint("argot-pta alias - " + analysis.Version))
	pre := andersen.Analyze(session.Program.Program, cfg, session.Logger)
	return Answer(os.Stdout, pre, cfg, session.Logger, flags.mode)
}

// Answer answers the alias queries of cfg with the client of the given mode and writes one answer per line to w.
func Answer(w io.Writer, pre *andersen.Solver, cfg *config.Config, logger *config.LogGroup, mode string) error {
	stats := &dda.Stats{}
	client, err := alias.NewClient(pre, cfg, logger, mode, stats)
	if err != nil {
		return err
	}
	answers, err := alias.RunQueries(cfg, pre.Program(), client)
	if err != nil {
		return err
	}
	for _, a := range answers {
		res := formatutil.Green(a.Result.String())
		if a.Result == alias.MayAlias {
			res = formatutil.Red(a.Result.String())
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\n", a.A, res, a.B); err != nil {
			return err
		}
	}
	if mode != alias.ModeAndersen {
		logger.Debugf("%s", stats)
	}
	return nil
}
