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

package main

import (
	"fmt"
	"os"

	"github.com/awslabs/ar-go-pta/analysis"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/alias"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/cli"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/cycles"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/dda"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/funptr"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/leaks"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/pta"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
)

const usage = `argot-pta: pointer analyses of programs in assignment graph form
Usage:
  argot-pta [tool] [options] <program.yaml>
Tools:
  - pta: runs the whole-program Andersen analysis and prints the points-to sets
  - dda: answers points-to queries with a flow-, context- or path-sensitive demand-driven analysis
  - alias: checks whether two pointers may alias
  - funptr: resolves the function pointers of indirect calls
  - leaks: reports the heap objects that may not be freed
  - cycles: prints the recursive cycles of the call graph
  - cli: interactive terminal-like interface to query the analyses
Examples:
  Run the interactive CLI: argot-pta cli -config config.yaml program.yaml
  Query a pointer: argot-pta dda -mode context -query r1 program.yaml`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(analysis.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "pta":
		flags, err := pta.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := pta.Run(flags); err != nil {
			errExit(err)
		}
	case "dda":
		flags, err := dda.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := dda.Run(flags); err != nil {
			errExit(err)
		}
	case "alias":
		flags, err := alias.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := alias.Run(flags); err != nil {
			errExit(err)
		}
	case "funptr":
		flags, err := funptr.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := funptr.Run(flags); err != nil {
			errExit(err)
		}
	case "cycles":
		flags, err := tools.NewCommonFlags("cycles", args, cycles.Usage)
		if err != nil {
			errExit(err)
		}
		if err := cycles.Run(flags); err != nil {
			errExit(err)
		}
	case "leaks":
		flags, err := tools.NewCommonFlags("leaks", args, leaks.Usage)
		if err != nil {
			errExit(err)
		}
		if err := leaks.Run(flags); err != nil {
			errExit(err)
		}
	case "cli":
		flags, err := tools.NewCommonFlags("cli", args, cli.Usage)
		if err != nil {
			errExit(err)
		}
		if err := cli.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
