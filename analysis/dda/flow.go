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

package dda

import (
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
	"github.com/awslabs/ar-go-pta/analysis/vfg"
)

// FlowSolver is the flow-sensitive demand-driven solver
type FlowSolver = Solver[NoCond]

// NewFlow returns a flow-sensitive solver refining the whole-program analysis pre. Queries running out of budget
// fall back to the points-to sets of pre.
func NewFlow(pre *andersen.Solver, cfg *config.Config, logger *config.LogGroup, stats *Stats) *FlowSolver {
	e := newEnv(pre, cfg, logger, stats)
	return newSolver[NoCond](e, &flowStrategy{e}, cfg.Budget(config.ModeFlow), cfg.Persistent())
}

type flowStrategy struct {
	*env
}

func (f *flowStrategy) Name() string { return config.ModeFlow }

func (f *flowStrategy) EmptyCond() NoCond { return NoCond{} }

func (f *flowStrategy) HandleAddr(_ DPItem[NoCond], obj pag.NodeID) CVar[NoCond] {
	return CVar[NoCond]{Obj: obj}
}

func (f *flowStrategy) HandleBKCondition(*DPItem[NoCond], *vfg.Edge) bool {
	return true
}

func (f *flowStrategy) PropagateViaObj(store, load CVar[NoCond]) bool {
	return store.Obj == load.Obj
}

func (f *flowStrategy) IsHeapCondMemObj(v CVar[NoCond], _ *vfg.Node) bool {
	o := f.prog.Obj(v.Obj)
	return o != nil && o.Heap
}

func (f *flowStrategy) MustAlias(load, store DPItem[NoCond]) bool {
	return f.mustAlias(load.Loc, store.Loc, store.Node)
}

func (f *flowStrategy) ConservativeFallback(dpm DPItem[NoCond]) *pts.PointsTo {
	return f.pre.Pts(dpm.Node)
}
