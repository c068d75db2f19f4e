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

/*
Package cli implements the argot-pta interactive CLI: a terminal application that runs the whole-program pointer
analysis once, and then lets you query the points-to sets of the program with any of the analyses.

Usage:

	argot-pta cli [flags] <program.yaml>

The flags are:

	-verbose=false
		verbose mode, overrides any verbose option specified in the config file
	-config config-file.yaml
		a configuration file for the analyses. When omitted, the default options are used.

# Commands

	help             print a list of the commands, with short help messages for each
	state            print the program and config paths, and some statistics about the program
	ls [regex...]    list the pointers (or the objects, with -o) whose name matches all the regexes
	pts x...         print the points-to sets of pointers, computed by the analysis given with --mode
	dda x...         same as pts, with a demand-driven analysis; queries running out of budget are flagged
	alias a b        check whether a and b may alias
	funptr           resolve the function pointers of the indirect calls
	cycles           print the cycles of the call graph
	stats            print the statistics of the whole-program analysis, and of each demand-driven analysis used
	exit             exit the CLI

The demand-driven analyses are created the first time their mode is used, and then kept: a query reuses what the
previous queries of the same mode computed.

Pressing tab completes command names, and pointer names in arguments.
*/
package cli
