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
	"errors"
	"fmt"

	"github.com/awslabs/ar-go-pta/internal/graphutil"
)

// ErrMalformed is returned when a program is not well-formed
var ErrMalformed = errors.New("malformed program")

// ObjAttrs are the attributes of a memory object
type ObjAttrs struct {
	Heap     bool
	Global   bool
	Array    bool
	Constant bool
	// Fields is the number of fields; 1 if left to zero
	Fields int
}

type opKind int

const (
	opAddr opKind = iota
	opCopy
	opLoad
	opStore
	opGep
	opVariantGep
	opPhi
	opCall
	opCallPtr
	opRet
)

type rawStmt struct {
	op     opKind
	dst    string
	src    string
	srcs   []string
	offset int
}

type rawObj struct {
	name  string
	attrs ObjAttrs
	owner *FuncBuilder
}

type rawBlock struct {
	name  string
	guard string
	neg   bool
	stmts []rawStmt
	succs []string
}

// Builder builds a Program from named values, objects and functions. Names are resolved when Build is called, so
// that they can be used before being declared.
type Builder struct {
	objs  []rawObj
	funcs []*FuncBuilder
	err   error
}

// FuncBuilder builds a function
type FuncBuilder struct {
	b      *Builder
	name   string
	params []string
	blocks []*rawBlock
	byName map[string]*rawBlock
}

// BlockBuilder adds statements to a block
type BlockBuilder struct {
	fb  *FuncBuilder
	blk *rawBlock
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
	}
}

// Object declares a global or heap object
func (b *Builder) Object(name string, attrs ObjAttrs) *Builder {
	b.objs = append(b.objs, rawObj{name: name, attrs: attrs})
	return b
}

// Func declares a function with the named parameters
func (b *Builder) Func(name string, params ...string) *FuncBuilder {
	fb := &FuncBuilder{b: b, name: name, params: params, byName: map[string]*rawBlock{}}
	b.funcs = append(b.funcs, fb)
	return fb
}

// Local declares a stack object of the function
func (fb *FuncBuilder) Local(name string, attrs ObjAttrs) *FuncBuilder {
	fb.b.objs = append(fb.b.objs, rawObj{name: name, attrs: attrs, owner: fb})
	return fb
}

// Block returns the block with the given name, creating it if needed. The first block created is the entry.
func (fb *FuncBuilder) Block(name string) *BlockBuilder {
	if blk, ok := fb.byName[name]; ok {
		return &BlockBuilder{fb: fb, blk: blk}
	}
	blk := &rawBlock{name: name}
	fb.blocks = append(fb.blocks, blk)
	fb.byName[name] = blk
	return &BlockBuilder{fb: fb, blk: blk}
}

// GuardedBlock returns the named block, executed when cond holds (or does not hold, if neg is true)
func (fb *FuncBuilder) GuardedBlock(name string, cond string, neg bool) *BlockBuilder {
	bb := fb.Block(name)
	bb.blk.guard = cond
	bb.blk.neg = neg
	return bb
}

// Edge adds a control-flow edge between two blocks
func (fb *FuncBuilder) Edge(from, to string) *FuncBuilder {
	fb.Block(to)
	src := fb.Block(from)
	src.blk.succs = append(src.blk.succs, to)
	return fb
}

func (bb *BlockBuilder) add(s rawStmt) *BlockBuilder {
	bb.blk.stmts = append(bb.blk.stmts, s)
	return bb
}

// Addr adds dst = &obj
func (bb *BlockBuilder) Addr(dst, obj string) *BlockBuilder {
	return bb.add(rawStmt{op: opAddr, dst: dst, src: obj})
}

// Copy adds dst = src
func (bb *BlockBuilder) Copy(dst, src string) *BlockBuilder {
	return bb.add(rawStmt{op: opCopy, dst: dst, src: src})
}

// Load adds dst = *ptr
func (bb *BlockBuilder) Load(dst, ptr string) *BlockBuilder {
	return bb.add(rawStmt{op: opLoad, dst: dst, src: ptr})
}

// Store adds *ptr = src
func (bb *BlockBuilder) Store(ptr, src string) *BlockBuilder {
	return bb.add(rawStmt{op: opStore, dst: ptr, src: src})
}

// Gep adds dst = &src->offset
func (bb *BlockBuilder) Gep(dst, src string, offset int) *BlockBuilder {
	return bb.add(rawStmt{op: opGep, dst: dst, src: src, offset: offset})
}

// VariantGep adds dst = &src[*]
func (bb *BlockBuilder) VariantGep(dst, src string) *BlockBuilder {
	return bb.add(rawStmt{op: opVariantGep, dst: dst, src: src})
}

// Phi adds dst = phi(srcs...)
func (bb *BlockBuilder) Phi(dst string, srcs ...string) *BlockBuilder {
	return bb.add(rawStmt{op: opPhi, dst: dst, srcs: srcs})
}

// Call adds dst = callee(args...). dst may be empty.
func (bb *BlockBuilder) Call(dst, callee string, args ...string) *BlockBuilder {
	return bb.add(rawStmt{op: opCall, dst: dst, src: callee, srcs: args})
}

// CallPtr adds dst = (*fptr)(args...). dst may be empty.
func (bb *BlockBuilder) CallPtr(dst, fptr string, args ...string) *BlockBuilder {
	return bb.add(rawStmt{op: opCallPtr, dst: dst, src: fptr, srcs: args})
}

// Ret adds return src
func (bb *BlockBuilder) Ret(src string) *BlockBuilder {
	return bb.add(rawStmt{op: opRet, src: src})
}

// Build resolves all the names and returns the program. The error wraps ErrMalformed when a name is undefined,
// defined twice, or used with the wrong kind.
func (b *Builder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := newProgram()
	fns := map[*FuncBuilder]*Function{}

	for _, fb := range b.funcs {
		if _, dup := p.funcs[fb.name]; dup {
			return nil, fmt.Errorf("%w: function %q declared twice", ErrMalformed, fb.name)
		}
		fn := &Function{ID: len(p.Funcs), Name: fb.name, inLoop: map[int]bool{}}
		p.Funcs = append(p.Funcs, fn)
		p.funcs[fb.name] = fn
		fns[fb] = fn
		fn.Obj = p.addNode(&Node{Kind: ObjNode, Name: fb.name})
		p.Nodes[fn.Obj].Obj = &MemObj{ID: fn.Obj, Name: fb.name, Fn: fn, Global: true, NumFields: 1}
		p.objects[fb.name] = fn.Obj
	}

	for _, o := range b.objs {
		if _, dup := p.objects[o.name]; dup {
			return nil, fmt.Errorf("%w: object %q declared twice", ErrMalformed, o.name)
		}
		id := p.addNode(&Node{Kind: ObjNode, Name: o.name})
		fields := o.attrs.Fields
		if fields <= 0 {
			fields = 1
		}
		obj := &MemObj{
			ID:        id,
			Name:      o.name,
			Heap:      o.attrs.Heap,
			Global:    o.attrs.Global,
			Array:     o.attrs.Array,
			Constant:  o.attrs.Constant,
			NumFields: fields,
		}
		if o.owner != nil {
			obj.Stack = true
			obj.Owner = fns[o.owner]
			obj.Owner.Locals = append(obj.Owner.Locals, id)
		}
		p.Nodes[id].Obj = obj
		p.objects[o.name] = id
	}

	// values: function returns and parameters, then every defined name
	define := func(name string, fn *Function) (NodeID, error) {
		if _, dup := p.values[name]; dup {
			return NullPtr, fmt.Errorf("%w: value %q defined twice", ErrMalformed, name)
		}
		id := p.addNode(&Node{Kind: ValNode, Name: name, Func: fn})
		p.values[name] = id
		return id, nil
	}
	for _, fb := range b.funcs {
		fn := fns[fb]
		ret, err := define(fb.name+".ret", fn)
		if err != nil {
			return nil, err
		}
		fn.RetNode = ret
		for i, param := range fb.params {
			id, err := define(param, fn)
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, id)
			p.params[id] = paramPos{fn: fn, index: i}
		}
	}
	for _, fb := range b.funcs {
		for _, blk := range fb.blocks {
			for _, s := range blk.stmts {
				if s.dst == "" || s.op == opStore || s.op == opRet {
					continue
				}
				if _, err := define(s.dst, fns[fb]); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, fb := range b.funcs {
		if err := b.buildFunc(p, fb, fns); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (b *Builder) buildFunc(p *Program, fb *FuncBuilder, fns map[*FuncBuilder]*Function) error {
	fn := fns[fb]
	if len(fb.blocks) == 0 {
		fb.Block("entry")
	}
	blocks := map[string]*Block{}
	for i, rb := range fb.blocks {
		blk := &Block{Index: i, Name: rb.name, Fn: fn, Guard: NoGuard}
		if rb.guard != "" {
			blk.Guard = Lit(p.cond(rb.guard), rb.neg)
		}
		fn.Blocks = append(fn.Blocks, blk)
		blocks[rb.name] = blk
	}
	for _, rb := range fb.blocks {
		for _, succ := range rb.succs {
			from, to := blocks[rb.name], blocks[succ]
			from.Succs = append(from.Succs, to)
			to.Preds = append(to.Preds, from)
		}
	}

	value := func(name string) (NodeID, error) {
		if v, ok := p.values[name]; ok {
			return v, nil
		}
		return NullPtr, fmt.Errorf("%w: in %s, value %q is not defined", ErrMalformed, fn.Name, name)
	}
	values := func(names []string) ([]NodeID, error) {
		res := make([]NodeID, len(names))
		for i, name := range names {
			v, err := value(name)
			if err != nil {
				return nil, err
			}
			res[i] = v
		}
		return res, nil
	}
	optValue := func(name string) (NodeID, error) {
		if name == "" {
			return NullPtr, nil
		}
		return value(name)
	}

	for i, rb := range fb.blocks {
		blk := fn.Blocks[i]
		for _, rs := range rb.stmts {
			base := stmtBase{id: StmtID(len(p.Stmts)), block: blk}
			var s Stmt
			var err error
			switch rs.op {
			case opAddr:
				obj, ok := p.objects[rs.src]
				if !ok {
					return fmt.Errorf("%w: in %s, object %q is not declared", ErrMalformed, fn.Name, rs.src)
				}
				a := &Addr{stmtBase: base, Obj: obj}
				a.Dst, err = value(rs.dst)
				if _, seen := p.allocs[obj]; !seen {
					p.allocs[obj] = a
				}
				s = a
			case opCopy:
				c := &Copy{stmtBase: base}
				c.Dst, err = value(rs.dst)
				if err == nil {
					c.Src, err = value(rs.src)
				}
				s = c
			case opLoad:
				l := &Load{stmtBase: base}
				l.Dst, err = value(rs.dst)
				if err == nil {
					l.Ptr, err = value(rs.src)
				}
				s = l
			case opStore:
				st := &Store{stmtBase: base}
				st.Ptr, err = value(rs.dst)
				if err == nil {
					st.Src, err = value(rs.src)
				}
				s = st
			case opGep, opVariantGep:
				g := &Gep{stmtBase: base, Offset: rs.offset, Variant: rs.op == opVariantGep}
				g.Dst, err = value(rs.dst)
				if err == nil {
					g.Src, err = value(rs.src)
				}
				s = g
			case opPhi:
				ph := &Phi{stmtBase: base}
				ph.Dst, err = value(rs.dst)
				if err == nil {
					ph.Srcs, err = values(rs.srcs)
				}
				s = ph
			case opCall, opCallPtr:
				cs := &CallSite{ID: CallSiteID(len(p.CallSites)), Caller: fn}
				if rs.op == opCall {
					cs.Callee = p.funcs[rs.src]
					if cs.Callee == nil {
						return fmt.Errorf("%w: in %s, function %q is not declared", ErrMalformed, fn.Name, rs.src)
					}
					if len(rs.srcs) != len(cs.Callee.Params) {
						return fmt.Errorf("%w: in %s, call to %s with %d arguments, expected %d",
							ErrMalformed, fn.Name, rs.src, len(rs.srcs), len(cs.Callee.Params))
					}
				} else {
					cs.FunPtr, err = value(rs.src)
				}
				if err == nil {
					cs.Args, err = values(rs.srcs)
				}
				if err == nil {
					cs.Ret, err = optValue(rs.dst)
				}
				c := &Call{stmtBase: base, Site: cs}
				cs.Stmt = c
				p.CallSites = append(p.CallSites, cs)
				fn.CallSites = append(fn.CallSites, cs)
				s = c
			case opRet:
				r := &Ret{stmtBase: base}
				r.Src, err = value(rs.src)
				s = r
			}
			if err != nil {
				return err
			}
			p.Stmts = append(p.Stmts, s)
			blk.Stmts = append(blk.Stmts, s)
			if d := Defined(s); d != NullPtr {
				p.defs[d] = s
			}
			for _, op := range Operands(s) {
				p.uses[op] = append(p.uses[op], s)
			}
		}
	}

	sccs := graphutil.StronglyConnectedComponents(fn.Blocks, func(b *Block) []*Block { return b.Succs })
	for _, scc := range sccs {
		for _, blk := range scc {
			if len(scc) > 1 {
				fn.inLoop[blk.Index] = true
			}
		}
	}
	for _, blk := range fn.Blocks {
		for _, succ := range blk.Succs {
			if succ == blk {
				fn.inLoop[blk.Index] = true
			}
		}
	}
	return nil
}

func (p *Program) cond(name string) int {
	for i, c := range p.conds {
		if c == name {
			return i
		}
	}
	p.conds = append(p.conds, name)
	return len(p.conds) - 1
}
