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

// Package analysistest loads test programs and the expectations annotated in their comments.
package analysistest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/internal/funcutil"
)

// ProgramFile is the name of the program file in a test directory
const ProgramFile = "program.yaml"

// LoadTest loads the program in the directory dir, looking for a program.yaml and a config.yaml.
// The default config is used when the directory has no config.yaml.
func LoadTest(t *testing.T, dir string) (*pag.Program, *config.Config) {
	prog, err := pag.LoadProgram(filepath.Join(dir, ProgramFile))
	if err != nil {
		t.Fatalf("error loading program in %s: %v", dir, err)
	}
	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); err != nil {
		return prog, config.NewDefault()
	}
	config.SetGlobalConfig(configFile)
	cfg, err := config.LoadGlobal()
	if err != nil {
		t.Fatalf("error loading config %s: %v", configFile, err)
	}
	return prog, cfg
}

// Match annotations of the form "@Pts(mode, value, obj1, obj2)" and "@Alias(mode, a, b, yes|no)"
var (
	PtsRegex   = regexp.MustCompile(`#.*@Pts\(((?:\s*[\w.]+\s*,?)+)\)`)
	AliasRegex = regexp.MustCompile(`#.*@Alias\(((?:\s*[\w.]+\s*,?)+)\)`)
)

// LPos is a line in a test file
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// PtsExpectation is the expected points-to set of a value for the analysis in Mode. An empty Objs is an
// expected empty set.
type PtsExpectation struct {
	Pos   LPos
	Mode  string
	Value string
	Objs  []string
}

// AliasExpectation is the expected answer of the alias query (A, B) for the analysis in Mode.
type AliasExpectation struct {
	Pos   LPos
	Mode  string
	A     string
	B     string
	Alias bool
}

func annotationArgs(re *regexp.Regexp, line string) []string {
	a := re.FindStringSubmatch(line)
	if len(a) <= 1 {
		return nil
	}
	return funcutil.Map(strings.Split(a[1], ","), strings.TrimSpace)
}

// GetExpectations scans the program file of dir for @Pts and @Alias annotations in comments.
func GetExpectations(dir string) ([]PtsExpectation, []AliasExpectation, error) {
	filename := filepath.Join(dir, ProgramFile)
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var ptsExp []PtsExpectation
	var aliasExp []AliasExpectation
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		pos := LPos{Filename: filename, Line: line}
		if args := annotationArgs(PtsRegex, scanner.Text()); len(args) > 0 {
			if len(args) < 2 {
				return nil, nil, fmt.Errorf("%s: @Pts needs a mode and a value", pos)
			}
			var objs []string
			for _, o := range args[2:] {
				if o != "" {
					objs = append(objs, o)
				}
			}
			ptsExp = append(ptsExp, PtsExpectation{Pos: pos, Mode: args[0], Value: args[1], Objs: objs})
		}
		if args := annotationArgs(AliasRegex, scanner.Text()); len(args) > 0 {
			if len(args) != 4 || (args[3] != "yes" && args[3] != "no") {
				return nil, nil, fmt.Errorf("%s: @Alias expects (mode, a, b, yes|no)", pos)
			}
			aliasExp = append(aliasExp,
				AliasExpectation{Pos: pos, Mode: args[0], A: args[1], B: args[2], Alias: args[3] == "yes"})
		}
	}
	return ptsExp, aliasExp, scanner.Err()
}
