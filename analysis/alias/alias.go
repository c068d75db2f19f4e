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

// Package alias implements the clients of the pointer analyses: alias queries and function pointer resolution,
// answered either by the whole-program analysis or by one of the demand-driven analyses.
package alias

import (
	"errors"
	"fmt"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/dda"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
)

// ErrUnknownValue is returned when a query names a value that is not in the program
var ErrUnknownValue = errors.New("unknown value")

// ErrUnknownMode is returned for an analysis mode that is not one of the config modes
var ErrUnknownMode = errors.New("unknown analysis mode")

// Result is the answer to an alias query
type Result int

const (
	// NoAlias means the two pointers never point to the same object
	NoAlias Result = iota
	// MayAlias means the two pointers may point to a common object
	MayAlias
)

func (r Result) String() string {
	if r == MayAlias {
		return "may-alias"
	}
	return "no-alias"
}

// Client answers points-to and alias queries
type Client interface {
	// Name of the analysis answering the queries
	Name() string

	// PointsTo returns the objects id may point to. The set belongs to the caller.
	PointsTo(id pag.NodeID) *pts.PointsTo

	// Alias returns MayAlias if a and b may point to the same object
	Alias(a, b pag.NodeID) Result
}

// ModeAndersen is the name of the client answering with the whole-program analysis
const ModeAndersen = "andersen"

type andersenClient struct {
	s *andersen.Solver
}

// NewAndersen returns a client answering with the points-to sets of a solved whole-program analysis
func NewAndersen(s *andersen.Solver) Client {
	return &andersenClient{s: s}
}

func (c *andersenClient) Name() string { return ModeAndersen }

func (c *andersenClient) PointsTo(id pag.NodeID) *pts.PointsTo {
	return c.s.Pts(id).Clone()
}

func (c *andersenClient) Alias(a, b pag.NodeID) Result {
	if c.s.Alias(a, b) {
		return MayAlias
	}
	return NoAlias
}

// ddaSolver is the query interface shared by the demand-driven solvers
type ddaSolver interface {
	Name() string
	ComputeDDAPts(id pag.NodeID) *pts.PointsTo
	Stats() *dda.Stats
}

type ddaClient struct {
	s ddaSolver
}

// NewDDA returns a client answering with the demand-driven analysis of the given mode, refining pre. The
// statistics of the queries are accumulated in stats.
func NewDDA(pre *andersen.Solver, cfg *config.Config, logger *config.LogGroup, mode string,
	stats *dda.Stats) (Client, error) {
	switch mode {
	case config.ModeFlow:
		return &ddaClient{s: dda.NewFlow(pre, cfg, logger, stats)}, nil
	case config.ModeContext:
		return &ddaClient{s: dda.NewContext(pre, cfg, logger, stats)}, nil
	case config.ModePath:
		return &ddaClient{s: dda.NewPath(pre, cfg, logger, stats)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// NewClient returns the client of the given mode: ModeAndersen or one of the demand-driven modes
func NewClient(pre *andersen.Solver, cfg *config.Config, logger *config.LogGroup, mode string,
	stats *dda.Stats) (Client, error) {
	if mode == ModeAndersen {
		return NewAndersen(pre), nil
	}
	return NewDDA(pre, cfg, logger, mode, stats)
}

func (c *ddaClient) Name() string { return c.s.Name() }

func (c *ddaClient) PointsTo(id pag.NodeID) *pts.PointsTo {
	return c.s.ComputeDDAPts(id)
}

func (c *ddaClient) Alias(a, b pag.NodeID) Result {
	if c.s.ComputeDDAPts(a).Intersects(c.s.ComputeDDAPts(b)) {
		return MayAlias
	}
	return NoAlias
}

// Answer is the answer to an alias query of the config
type Answer struct {
	A, B   string
	Result Result
}

func (a Answer) String() string {
	return fmt.Sprintf("%s %s %s", a.A, a.Result, a.B)
}

// RunQueries answers the alias queries of cfg with client. It returns an error wrapping ErrUnknownValue if a query
// names a value that is not in prog.
func RunQueries(cfg *config.Config, prog *pag.Program, client Client) ([]Answer, error) {
	var res []Answer
	for _, q := range cfg.AliasQueries {
		a, err := lookup(prog, q.A)
		if err != nil {
			return nil, err
		}
		b, err := lookup(prog, q.B)
		if err != nil {
			return nil, err
		}
		res = append(res, Answer{A: q.A, B: q.B, Result: client.Alias(a, b)})
	}
	return res, nil
}

func lookup(prog *pag.Program, name string) (pag.NodeID, error) {
	v, ok := prog.Value(name)
	if !ok {
		return pag.NullPtr, fmt.Errorf("%w: %q", ErrUnknownValue, name)
	}
	return v, nil
}
