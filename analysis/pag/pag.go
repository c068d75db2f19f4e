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

	"github.com/awslabs/ar-go-pta/analysis/pts"
)

// NodeID identifies a node of the program assignment graph
type NodeID = pts.NodeID

// NullPtr is the node of the null pointer. No statement defines it and it points to nothing.
const NullPtr NodeID = 0

// NodeKind is the kind of a node
type NodeKind int

const (
	// ValNode is a top-level variable
	ValNode NodeKind = iota
	// ObjNode is a base memory object. It also stands for the whole object when the object is field-insensitive.
	ObjNode
	// GepObjNode is a field of a base memory object
	GepObjNode
	// DummyObjNode is an object without layout, such as the black hole or a constant object
	DummyObjNode
)

func (k NodeKind) String() string {
	switch k {
	case ValNode:
		return "val"
	case ObjNode:
		return "obj"
	case GepObjNode:
		return "gepobj"
	case DummyObjNode:
		return "dummy"
	}
	return "unknown"
}

// Node is a node of the program assignment graph
type Node struct {
	ID   NodeID
	Kind NodeKind
	Name string

	// Obj is the memory object of object nodes, nil for value nodes
	Obj *MemObj

	// Offset is the field offset of a GepObjNode
	Offset int

	// Func is the function defining a value node. nil for globals and objects.
	Func *Function
}

// IsObject returns true if the node denotes memory
func (n *Node) IsObject() bool {
	return n.Kind != ValNode
}

func (n *Node) String() string {
	if n.Kind == GepObjNode {
		return fmt.Sprintf("%s.%d", n.Obj.Name, n.Offset)
	}
	return n.Name
}

// MemObj is an abstract memory object: an allocation site, a global, a stack slot or a function
type MemObj struct {
	// ID is the base object node
	ID   NodeID
	Name string

	Heap     bool
	Stack    bool
	Global   bool
	Array    bool
	Constant bool

	// Fn is the function denoted by a function object, nil otherwise
	Fn *Function

	// Owner is the function whose frame contains a stack object
	Owner *Function

	// NumFields is the declared number of fields. Zero means the object has no layout.
	NumFields int

	fieldInsensitive bool
}

// IsFunction returns true if the object is a function
func (o *MemObj) IsFunction() bool {
	return o.Fn != nil
}

// IsFieldInsensitive returns true if all the fields of the object have been collapsed into the base
func (o *MemObj) IsFieldInsensitive() bool {
	return o.fieldInsensitive
}

// SetFieldInsensitive marks the object as field-insensitive. It cannot be undone.
func (o *MemObj) SetFieldInsensitive() {
	o.fieldInsensitive = true
}

// HasLayout returns false for objects where no field can be addressed
func (o *MemObj) HasLayout() bool {
	return o.NumFields > 0 || o.fieldInsensitive
}

// CallSiteID identifies a call site
type CallSiteID int

// CallSite is a call instruction. Exactly one of Callee and FunPtr is set.
type CallSite struct {
	ID     CallSiteID
	Caller *Function
	Stmt   *Call

	// Callee is the callee of a direct call
	Callee *Function

	// FunPtr is the function pointer of an indirect call
	FunPtr NodeID

	Args []NodeID

	// Ret receives the returned value. NullPtr if the result is not used.
	Ret NodeID
}

// IsIndirect returns true if the call goes through a function pointer
func (cs *CallSite) IsIndirect() bool {
	return cs.Callee == nil
}

func (cs *CallSite) String() string {
	if cs.IsIndirect() {
		return fmt.Sprintf("cs%d@%s(*%d)", cs.ID, cs.Caller.Name, cs.FunPtr)
	}
	return fmt.Sprintf("cs%d@%s(%s)", cs.ID, cs.Caller.Name, cs.Callee.Name)
}

// Block is a basic block of a function's control-flow graph
type Block struct {
	Index int
	Name  string
	Fn    *Function
	Stmts []Stmt
	Succs []*Block
	Preds []*Block

	// Guard is the branch condition under which the block executes, NoGuard if none
	Guard Literal
}

// Function is a function of the program
type Function struct {
	ID   int
	Name string

	Params []NodeID

	// RetNode is the unique node holding the values returned by the function
	RetNode NodeID

	// Obj is the function object, whose address is taken by function pointers
	Obj NodeID

	// Blocks of the function, the first one being the entry block
	Blocks []*Block

	CallSites []*CallSite

	// Locals are the stack objects of the function
	Locals []NodeID

	inLoop map[int]bool
}

// Entry returns the entry block
func (f *Function) Entry() *Block {
	return f.Blocks[0]
}

// Exits returns the blocks without successors
func (f *Function) Exits() []*Block {
	var exits []*Block
	for _, b := range f.Blocks {
		if len(b.Succs) == 0 {
			exits = append(exits, b)
		}
	}
	return exits
}

// InLoop returns true if the block is on a cycle of the function's control-flow graph
func (f *Function) InLoop(b *Block) bool {
	return f.inLoop[b.Index]
}

// Stmts returns all statements of the function, in block order
func (f *Function) Stmts() []Stmt {
	var res []Stmt
	for _, b := range f.Blocks {
		res = append(res, b.Stmts...)
	}
	return res
}

func (f *Function) String() string {
	return f.Name
}

type gepKey struct {
	base   NodeID
	offset int
}

// Program is the program assignment graph: the normalized program representation analysed by the pointer
// analyses. Nodes are numbered densely from 0, which is the null pointer.
type Program struct {
	Nodes     []*Node
	Funcs     []*Function
	CallSites []*CallSite
	Stmts     []Stmt

	// BlackHole is the object standing for unknown memory
	BlackHole NodeID

	values    map[string]NodeID
	objects   map[string]NodeID
	funcs     map[string]*Function
	conds     []string
	gepObjs   map[gepKey]NodeID
	numFields map[NodeID]int
	defs      map[NodeID]Stmt
	uses      map[NodeID][]Stmt
	params    map[NodeID]paramPos
	allocs    map[NodeID]*Addr
}

type paramPos struct {
	fn    *Function
	index int
}

func newProgram() *Program {
	p := &Program{
		values:    map[string]NodeID{},
		objects:   map[string]NodeID{},
		funcs:     map[string]*Function{},
		gepObjs:   map[gepKey]NodeID{},
		numFields: map[NodeID]int{},
		defs:      map[NodeID]Stmt{},
		uses:      map[NodeID][]Stmt{},
		params:    map[NodeID]paramPos{},
		allocs:    map[NodeID]*Addr{},
	}
	p.Nodes = append(p.Nodes, &Node{ID: NullPtr, Kind: ValNode, Name: "null"})
	bh := p.addNode(&Node{Kind: DummyObjNode, Name: "blackhole"})
	p.Nodes[bh].Obj = &MemObj{ID: bh, Name: "blackhole", fieldInsensitive: true}
	p.BlackHole = bh
	return p
}

func (p *Program) addNode(n *Node) NodeID {
	n.ID = NodeID(len(p.Nodes))
	p.Nodes = append(p.Nodes, n)
	return n.ID
}

// NumNodes returns the number of nodes, including the gep object nodes created so far
func (p *Program) NumNodes() int {
	return len(p.Nodes)
}

// Node returns the node with id n. It panics if n is not a node of the program.
func (p *Program) Node(n NodeID) *Node {
	if int(n) < 0 || int(n) >= len(p.Nodes) {
		panic(fmt.Sprintf("pag: invalid node %d", n))
	}
	return p.Nodes[n]
}

// Obj returns the memory object of n, nil for value nodes
func (p *Program) Obj(n NodeID) *MemObj {
	return p.Node(n).Obj
}

// IsObject returns true if n denotes memory
func (p *Program) IsObject(n NodeID) bool {
	return p.Node(n).IsObject()
}

// BaseObj returns the base object node of an object node
func (p *Program) BaseObj(n NodeID) NodeID {
	return p.Node(n).Obj.ID
}

// IsBlackHoleOrConstant returns true for objects that have no fields to address
func (p *Program) IsBlackHoleOrConstant(n NodeID) bool {
	node := p.Node(n)
	return node.Kind == DummyObjNode || (node.Obj != nil && node.Obj.Constant)
}

// Value returns the value node with the given name
func (p *Program) Value(name string) (NodeID, bool) {
	n, ok := p.values[name]
	return n, ok
}

// Object returns the base object node with the given name
func (p *Program) Object(name string) (NodeID, bool) {
	n, ok := p.objects[name]
	return n, ok
}

// Func returns the function with the given name
func (p *Program) Func(name string) *Function {
	return p.funcs[name]
}

// FuncOfObj returns the function denoted by a function object, nil if obj is not a function object
func (p *Program) FuncOfObj(obj NodeID) *Function {
	n := p.Node(obj)
	if n.Obj == nil || n.Kind == GepObjNode {
		return nil
	}
	return n.Obj.Fn
}

// GepObj returns the node of the field at offset of the object base. Field nodes are created on demand.
// The base itself is returned when the offset is zero, when the object is field-insensitive or when the offset is
// outside of the declared fields. A gep on an object without layout is an invariant violation and panics.
func (p *Program) GepObj(base NodeID, offset int) NodeID {
	node := p.Node(base)
	if node.Obj == nil {
		panic(fmt.Sprintf("pag: gep on value node %s", node))
	}
	obj := node.Obj
	if node.Kind == GepObjNode {
		offset += node.Offset
	}
	if !obj.HasLayout() {
		panic(fmt.Sprintf("pag: gep on object %s without field layout", obj.Name))
	}
	if offset == 0 || obj.IsFieldInsensitive() || offset < 0 || offset >= obj.NumFields {
		return obj.ID
	}
	key := gepKey{obj.ID, offset}
	if id, ok := p.gepObjs[key]; ok {
		return id
	}
	id := p.addNode(&Node{Kind: GepObjNode, Name: fmt.Sprintf("%s.%d", obj.Name, offset), Obj: obj, Offset: offset})
	p.gepObjs[key] = id
	p.numFields[obj.ID]++
	return id
}

// FieldObjs returns the field nodes created so far for the base object
func (p *Program) FieldObjs(base NodeID) []NodeID {
	var res []NodeID
	for k, v := range p.gepObjs {
		if k.base == base {
			res = append(res, v)
		}
	}
	return res
}

// NumFieldObjs returns the number of field nodes created so far for the base object
func (p *Program) NumFieldObjs(base NodeID) int {
	return p.numFields[base]
}

// Def returns the statement defining the value v, nil for parameters and the null pointer
func (p *Program) Def(v NodeID) Stmt {
	return p.defs[v]
}

// Uses returns the statements using the value v
func (p *Program) Uses(v NodeID) []Stmt {
	return p.uses[v]
}

// ParamOf returns the function and index of a formal parameter
func (p *Program) ParamOf(v NodeID) (*Function, int, bool) {
	pp, ok := p.params[v]
	return pp.fn, pp.index, ok
}

// AllocSite returns the address-of statement taking the address of the base object obj, nil if there is none
func (p *Program) AllocSite(obj NodeID) *Addr {
	return p.allocs[p.BaseObj(obj)]
}

// CondName returns the name of a branch condition
func (p *Program) CondName(c int) string {
	if c < 0 || c >= len(p.conds) {
		return fmt.Sprintf("c%d", c)
	}
	return p.conds[c]
}

// NumConds returns the number of distinct branch conditions
func (p *Program) NumConds() int {
	return len(p.conds)
}

// IsStackObjOf returns true if obj is a stack object of fn
func (p *Program) IsStackObjOf(obj NodeID, fn *Function) bool {
	o := p.Obj(obj)
	return o != nil && o.Stack && o.Owner == fn
}
