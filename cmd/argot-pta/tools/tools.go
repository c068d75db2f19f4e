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

// Package tools contains utility types and functions for the pointer analysis tool frontends.
package tools

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/awslabs/ar-go-pta/analysis"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
)

// UnparsedCommonFlags represents an unparsed CLI sub-command flags.
type UnparsedCommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath *string
	Verbose    *bool
}

// NewUnparsedCommonFlags returns an unparsed flag set with a given name.
// This is useful for creating sub-commands that have the flags -config and -verbose but need other flags in addition.
func NewUnparsedCommonFlags(name string) UnparsedCommonFlags {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := cmd.String("config", "", "config file path for analysis")
	verbose := cmd.Bool("verbose", false, "verbose printing on standard output")
	return UnparsedCommonFlags{
		FlagSet:    cmd,
		ConfigPath: configPath,
		Verbose:    verbose,
	}
}

// CommonFlags represents a parsed CLI sub-command flags.
// E.g., for the command `argot-pta pta ...`, "pta" is the sub-command.
type CommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	Verbose    bool
}

// Parse parses args with the flag set of f and returns the common flags.
func (f UnparsedCommonFlags) Parse(args []string) (CommonFlags, error) {
	if err := f.FlagSet.Parse(args); err != nil {
		return CommonFlags{}, fmt.Errorf("failed to parse command %s with args %v: %v", f.FlagSet.Name(), args, err)
	}
	return CommonFlags{
		FlagSet:    f.FlagSet,
		ConfigPath: *f.ConfigPath,
		Verbose:    *f.Verbose,
	}, nil
}

// NewCommonFlags returns a parsed flag set with a given name.
// Returns an error if args are invalid.
// Prints cmdUsage along with flag docs as the --help message.
func NewCommonFlags(name string, args []string, cmdUsage string) (CommonFlags, error) {
	flags := NewUnparsedCommonFlags(name)
	SetUsage(flags.FlagSet, cmdUsage)
	return flags.Parse(args)
}

// SetUsage sets cmd's usage (for --help flag) to output the string cmdUsage
// followed by each flag's documentation.
func SetUsage(cmd *flag.FlagSet, cmdUsage string) {
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", cmdUsage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
}

// QueryNames represents the names of values to query. The flag can be repeated.
type QueryNames []string

func (q *QueryNames) String() string {
	if q == nil {
		return "[]"
	}
	return fmt.Sprintf("%v", []string(*q))
}

// Set adds value to q.
// This method satisfies the flag.Value interface.
func (q *QueryNames) Set(value string) error {
	*q = append(*q, value)
	return nil
}

// LoadConfig loads the config file from configPath. If configPath is empty, the default config is returned.
// The verbose flag overrides the log level of the config.
func LoadConfig(configPath string, verbose bool) (*config.Config, error) {
	cfg := config.NewDefault()
	if configPath != "" {
		config.SetGlobalConfig(configPath)
		c, err := config.LoadGlobal()
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %v", configPath, err)
		}
		cfg = c
	}

	// Override config parameters with command-line parameters
	if verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	return cfg, nil
}

// Session is what every sub-command starts from: the config, a logger and the loaded program.
type Session struct {
	Config  *config.Config
	Logger  *config.LogGroup
	Program analysis.LoadedProgram
}

// NewSession loads the config and the program given by the flags.
func NewSession(flags CommonFlags) (*Session, error) {
	return OpenSession(flags.ConfigPath, flags.Verbose, flags.FlagSet.Args())
}

// OpenSession loads the config in configPath and the program in args.
func OpenSession(configPath string, verbose bool, args []string) (*Session, error) {
	cfg, err := LoadConfig(configPath, verbose)
	if err != nil {
		return nil, err
	}
	logger := config.NewLogGroup(cfg)
	loaded, err := analysis.LoadProgram(logger, args)
	if err != nil {
		return nil, fmt.Errorf("could not load program: %v", err)
	}
	return &Session{Config: cfg, Logger: logger, Program: loaded}, nil
}

// Lookup returns the value named name in the program of the session
func (s *Session) Lookup(name string) (pag.NodeID, error) {
	v, ok := s.Program.Program.Value(name)
	if !ok {
		return pag.NullPtr, fmt.Errorf("no value named %q in the program", name)
	}
	return v, nil
}

// FormatPts returns the names of the objects of set, as {o1, o2}
func FormatPts(prog *pag.Program, set *pts.PointsTo) string {
	var names []string
	set.ForEach(func(o pag.NodeID) {
		names = append(names, prog.Node(o).Name)
	})
	return "{" + strings.Join(names, ", ") + "}"
}
