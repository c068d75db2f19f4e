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

// Package analysis contains the entry points shared by the pointer analysis tools: loading a program and
// computing statistics about it.
package analysis

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
)

// Version of the tools
const Version = "v0.2.0"

// LoadedProgram represents a loaded program.
type LoadedProgram struct {
	// Program is the program assignment graph
	Program *pag.Program
	// Path is the file the program was read from
	Path string
	// Statistics about the program
	Statistics Result
}

// LoadProgram loads the program in the file given by args. Exactly one program file must be provided, with a
// .yaml or .yml extension.
func LoadProgram(logger *config.LogGroup, args []string) (LoadedProgram, error) {
	if len(args) == 0 {
		return LoadedProgram{}, fmt.Errorf("no program file")
	}
	for _, arg := range args {
		if ext := filepath.Ext(arg); ext != ".yaml" && ext != ".yml" {
			return LoadedProgram{}, fmt.Errorf("named files must be .yaml files: %s", arg)
		}
	}
	if len(args) > 1 {
		return LoadedProgram{}, fmt.Errorf("expected one program file, got %d: %s", len(args),
			strings.Join(args, " "))
	}
	filename := args[0]

	start := time.Now()
	prog, err := pag.LoadProgram(filename)
	if err != nil {
		return LoadedProgram{}, err
	}
	stats := ProgramStatistics(prog)
	logger.Debugf("Loaded %s in %3.4f s", filename, time.Since(start).Seconds())
	logger.Debugf("%s", stats)
	return LoadedProgram{Program: prog, Path: filename, Statistics: stats}, nil
}
