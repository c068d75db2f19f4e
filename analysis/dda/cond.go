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
	"fmt"

	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
	"github.com/awslabs/ar-go-pta/analysis/vfg"
)

// Cond is the sensitivity condition carried by probes and conditional variables. Conditions are values: two
// conditions are the same condition iff they are equal.
type Cond[C any] interface {
	comparable
	Less(other C) bool
	String() string
}

// NoCond is the condition of the flow-sensitive analysis
type NoCond struct{}

// Less always returns false: there is a single NoCond
func (NoCond) Less(NoCond) bool { return false }

func (NoCond) String() string { return "" }

// DPItem is a probe of the demand-driven analysis: the points-to set of Node at the value-flow node Loc, under
// condition Cond. Node is a top-level pointer, or an object when Loc is reached along indirect value flow.
type DPItem[C Cond[C]] struct {
	Node pag.NodeID
	Loc  vfg.NodeID
	Cond C
}

// Less is a strict total order on probes
func (d DPItem[C]) Less(other DPItem[C]) bool {
	if d.Node != other.Node {
		return d.Node < other.Node
	}
	if d.Loc != other.Loc {
		return d.Loc < other.Loc
	}
	return d.Cond.Less(other.Cond)
}

// withLocVar returns d moved to the pointer ptr at loc
func (d DPItem[C]) withLocVar(loc vfg.NodeID, ptr pag.NodeID) DPItem[C] {
	d.Loc = loc
	d.Node = ptr
	return d
}

func (d DPItem[C]) String() string {
	if s := d.Cond.String(); s != "" {
		return fmt.Sprintf("<%d@%d %s>", d.Node, d.Loc, s)
	}
	return fmt.Sprintf("<%d@%d>", d.Node, d.Loc)
}

// CVar is a conditional variable: an object under a condition
type CVar[C Cond[C]] struct {
	Cond C
	Obj  pag.NodeID
}

func (v CVar[C]) String() string {
	if s := v.Cond.String(); s != "" {
		return fmt.Sprintf("%d%s", v.Obj, s)
	}
	return fmt.Sprintf("%d", v.Obj)
}

// cvarTable interns conditional variables, so that sets of conditional variables are points-to sets of ids
type cvarTable[C Cond[C]] struct {
	ids  map[CVar[C]]pts.NodeID
	vars []CVar[C]
}

func newCVarTable[C Cond[C]]() *cvarTable[C] {
	return &cvarTable[C]{ids: map[CVar[C]]pts.NodeID{}}
}

func (t *cvarTable[C]) id(v CVar[C]) pts.NodeID {
	if id, ok := t.ids[v]; ok {
		return id
	}
	id := pts.NodeID(len(t.vars))
	t.ids[v] = id
	t.vars = append(t.vars, v)
	return id
}

func (t *cvarTable[C]) get(id pts.NodeID) CVar[C] {
	return t.vars[id]
}

// varsOf returns the conditional variables of a set, in interning order
func (t *cvarTable[C]) varsOf(s *pts.PointsTo) []CVar[C] {
	ids := s.Elems()
	res := make([]CVar[C], len(ids))
	for i, id := range ids {
		res[i] = t.vars[id]
	}
	return res
}

// objects drops the conditions of a set of conditional variables
func (t *cvarTable[C]) objects(s *pts.PointsTo) *pts.PointsTo {
	res := &pts.PointsTo{}
	s.ForEach(func(id pts.NodeID) {
		res.Insert(t.vars[id].Obj)
	})
	return res
}

// withCond returns the set of ids of the objects of s under condition c
func (t *cvarTable[C]) withCond(s *pts.PointsTo, c C) *pts.PointsTo {
	res := &pts.PointsTo{}
	s.ForEach(func(o pts.NodeID) {
		res.Insert(t.id(CVar[C]{Cond: c, Obj: o}))
	})
	return res
}
