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

package tools

import (
	"strings"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pts"
)

func TestCommonFlags(t *testing.T) {
	flags := NewUnparsedCommonFlags("dda")
	var queries QueryNames
	flags.FlagSet.Var(&queries, "query", "")
	common, err := flags.Parse([]string{"-config", "c.yaml", "-verbose", "-query", "a", "-query", "b", "p.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	if common.ConfigPath != "c.yaml" || !common.Verbose {
		t.Errorf("unexpected flags %+v", common)
	}
	if len(queries) != 2 || queries.String() != "[a b]" {
		t.Errorf("unexpected queries %s", queries.String())
	}
	if args := common.FlagSet.Args(); len(args) != 1 || args[0] != "p.yaml" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("", true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FlowBudget != config.DefaultFlowBudget || cfg.LogLevel != int(config.DebugLevel) {
		t.Errorf("expected the default config in debug mode, got %+v", cfg.Options)
	}
	cfg, err = LoadConfig("../testdata/config.yaml", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.AliasQueries) != 2 || len(cfg.QueriesFor(config.ModeFlow)) != 1 {
		t.Errorf("unexpected queries in config")
	}
	if _, err := LoadConfig("../testdata/missing.yaml", false); err == nil {
		t.Errorf("expected an error for a missing config")
	}
}

func TestOpenSession(t *testing.T) {
	s, err := OpenSession("", false, []string{"../testdata/program.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	x, err := s.Lookup("x")
	if err != nil {
		t.Fatal(err)
	}
	o1, _ := s.Program.Program.Object("o1")
	o2, _ := s.Program.Program.Object("o2")
	if got := FormatPts(s.Program.Program, pts.New(o2, o1)); got != "{o1, o2}" {
		t.Errorf("unexpected format %s", got)
	}
	if _, err := s.Lookup("nope"); err == nil || HintForErrorMessage(err.Error()) == "" {
		t.Errorf("expected an unknown value error with a hint, got %v", err)
	}
	if s.Program.Program.Node(x).Name != "x" {
		t.Errorf("lookup returned the wrong node")
	}

	_, err = OpenSession("", false, []string{"../testdata/program.yaml", "-verbose"})
	if err == nil || !strings.Contains(HintForErrorMessage(err.Error()), "flags should be before") {
		t.Errorf("expected the flag ordering hint, got %v", err)
	}
}
