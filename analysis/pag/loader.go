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

package pag

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProgramSpec is the yaml representation of a program
type ProgramSpec struct {
	Objects   []ObjectSpec   `yaml:"objects"`
	Functions []FunctionSpec `yaml:"functions"`
}

// ObjectSpec is the yaml representation of a memory object
type ObjectSpec struct {
	Name     string `yaml:"name"`
	Heap     bool   `yaml:"heap"`
	Global   bool   `yaml:"global"`
	Array    bool   `yaml:"array"`
	Constant bool   `yaml:"constant"`
	Fields   int    `yaml:"fields"`
}

// FunctionSpec is the yaml representation of a function. A function can be given either as a list of blocks or,
// when it has a single block, as a list of statements.
type FunctionSpec struct {
	Name   string       `yaml:"name"`
	Params []string     `yaml:"params"`
	Locals []ObjectSpec `yaml:"locals"`
	Blocks []BlockSpec  `yaml:"blocks"`
	Stmts  []StmtSpec   `yaml:"stmts"`
}

// BlockSpec is the yaml representation of a basic block. The guard is a condition name, negated with a leading '!'.
type BlockSpec struct {
	Name  string     `yaml:"name"`
	Guard string     `yaml:"guard"`
	Succs []string   `yaml:"succs"`
	Stmts []StmtSpec `yaml:"stmts"`
}

// StmtSpec is the yaml representation of a statement. Op is one of addr, copy, load, store, gep, vgep, phi, call,
// ret. For a store, dst is the pointer and src the stored value.
type StmtSpec struct {
	Op     string   `yaml:"op"`
	Dst    string   `yaml:"dst"`
	Src    string   `yaml:"src"`
	Srcs   []string `yaml:"srcs"`
	Obj    string   `yaml:"obj"`
	Offset int      `yaml:"offset"`
	Callee string   `yaml:"callee"`
	Fptr   string   `yaml:"fptr"`
	Args   []string `yaml:"args"`
}

func (o ObjectSpec) attrs() ObjAttrs {
	return ObjAttrs{Heap: o.Heap, Global: o.Global, Array: o.Array, Constant: o.Constant, Fields: o.Fields}
}

// LoadProgram reads the program in the yaml file filename
func LoadProgram(filename string) (*Program, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read program file %s: %w", filename, err)
	}
	p, err := ParseProgram(b)
	if err != nil {
		return nil, fmt.Errorf("in %s: %w", filename, err)
	}
	return p, nil
}

// ParseProgram parses a program from its yaml representation
func ParseProgram(b []byte) (*Program, error) {
	ps := ProgramSpec{}
	if err := yaml.Unmarshal(b, &ps); err != nil {
		return nil, fmt.Errorf("could not unmarshal program: %w", err)
	}
	return ps.Build()
}

// Build builds the program described by ps
func (ps ProgramSpec) Build() (*Program, error) {
	b := NewBuilder()
	for _, o := range ps.Objects {
		b.Object(o.Name, o.attrs())
	}
	for _, f := range ps.Functions {
		fb := b.Func(f.Name, f.Params...)
		for _, o := range f.Locals {
			fb.Local(o.Name, o.attrs())
		}
		blocks := f.Blocks
		if len(f.Stmts) > 0 {
			if len(blocks) > 0 {
				return nil, fmt.Errorf("%w: function %s has both blocks and statements", ErrMalformed, f.Name)
			}
			blocks = []BlockSpec{{Name: "entry", Stmts: f.Stmts}}
		}
		// create all blocks first so that the first one is the entry
		for _, blk := range blocks {
			if strings.HasPrefix(blk.Guard, "!") {
				fb.GuardedBlock(blk.Name, blk.Guard[1:], true)
			} else if blk.Guard != "" {
				fb.GuardedBlock(blk.Name, blk.Guard, false)
			} else {
				fb.Block(blk.Name)
			}
		}
		for _, blk := range blocks {
			bb := fb.Block(blk.Name)
			for _, succ := range blk.Succs {
				fb.Edge(blk.Name, succ)
			}
			for i, s := range blk.Stmts {
				if err := addStmt(bb, s); err != nil {
					return nil, fmt.Errorf("in %s, block %s, statement %d: %w", f.Name, blk.Name, i, err)
				}
			}
		}
	}
	return b.Build()
}

func addStmt(bb *BlockBuilder, s StmtSpec) error {
	switch s.Op {
	case "addr":
		bb.Addr(s.Dst, s.Obj)
	case "copy":
		bb.Copy(s.Dst, s.Src)
	case "load":
		bb.Load(s.Dst, s.Src)
	case "store":
		bb.Store(s.Dst, s.Src)
	case "gep":
		bb.Gep(s.Dst, s.Src, s.Offset)
	case "vgep":
		bb.VariantGep(s.Dst, s.Src)
	case "phi":
		bb.Phi(s.Dst, s.Srcs...)
	case "call":
		switch {
		case s.Callee != "" && s.Fptr == "":
			bb.Call(s.Dst, s.Callee, s.Args...)
		case s.Fptr != "" && s.Callee == "":
			bb.CallPtr(s.Dst, s.Fptr, s.Args...)
		default:
			return fmt.Errorf("%w: call needs exactly one of callee and fptr", ErrMalformed)
		}
	case "ret":
		bb.Ret(s.Src)
	default:
		return fmt.Errorf("%w: unknown statement op %q", ErrMalformed, s.Op)
	}
	return nil
}
