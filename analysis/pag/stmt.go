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
	"strings"
)

// Literal is a branch condition or its negation, encoded as 2*cond+polarity where polarity 1 is the negation
type Literal int

// NoGuard is the guard of statements that execute unconditionally
const NoGuard Literal = -1

// Lit returns the literal of condition c, negated if neg is true
func Lit(c int, neg bool) Literal {
	if neg {
		return Literal(2*c + 1)
	}
	return Literal(2 * c)
}

// Cond returns the condition of the literal
func (l Literal) Cond() int {
	return int(l) / 2
}

// Negated returns true if the literal is the negation of its condition
func (l Literal) Negated() bool {
	return l&1 == 1
}

// Not returns the negation of l
func (l Literal) Not() Literal {
	return l ^ 1
}

// StmtID identifies a statement
type StmtID int

// Stmt is a statement of the program. The set of statements is closed: a Stmt is one of *Addr, *Copy, *Load,
// *Store, *Gep, *Phi, *Call or *Ret.
type Stmt interface {
	ID() StmtID
	Func() *Function
	Block() *Block
	// Guard returns the branch literal guarding the statement, NoGuard if none
	Guard() Literal
	String() string
	isStmt()
}

type stmtBase struct {
	id    StmtID
	block *Block
}

func (s *stmtBase) ID() StmtID      { return s.id }
func (s *stmtBase) Block() *Block   { return s.block }
func (s *stmtBase) Func() *Function { return s.block.Fn }
func (s *stmtBase) Guard() Literal  { return s.block.Guard }
func (s *stmtBase) isStmt()         {}

// Addr is dst = &obj
type Addr struct {
	stmtBase
	Dst NodeID
	Obj NodeID
}

// Copy is dst = src
type Copy struct {
	stmtBase
	Dst NodeID
	Src NodeID
}

// Load is dst = *ptr
type Load struct {
	stmtBase
	Dst NodeID
	Ptr NodeID
}

// Store is *ptr = src
type Store struct {
	stmtBase
	Ptr NodeID
	Src NodeID
}

// Gep is dst = &src->field(offset). A variant gep has an offset that is not statically known (array indexing).
type Gep struct {
	stmtBase
	Dst     NodeID
	Src     NodeID
	Offset  int
	Variant bool
}

// Phi is dst = phi(srcs...)
type Phi struct {
	stmtBase
	Dst  NodeID
	Srcs []NodeID
}

// Call is a call statement
type Call struct {
	stmtBase
	Site *CallSite
}

// Ret returns src from the function
type Ret struct {
	stmtBase
	Src NodeID
}

func (s *Addr) String() string { return fmt.Sprintf("%d = &%d", s.Dst, s.Obj) }
func (s *Copy) String() string { return fmt.Sprintf("%d = %d", s.Dst, s.Src) }
func (s *Load) String() string { return fmt.Sprintf("%d = *%d", s.Dst, s.Ptr) }
func (s *Store) String() string {
	return fmt.Sprintf("*%d = %d", s.Ptr, s.Src)
}
func (s *Gep) String() string {
	if s.Variant {
		return fmt.Sprintf("%d = &%d->[*]", s.Dst, s.Src)
	}
	return fmt.Sprintf("%d = &%d->%d", s.Dst, s.Src, s.Offset)
}
func (s *Phi) String() string {
	srcs := make([]string, len(s.Srcs))
	for i, x := range s.Srcs {
		srcs[i] = fmt.Sprint(x)
	}
	return fmt.Sprintf("%d = phi(%s)", s.Dst, strings.Join(srcs, ", "))
}
func (s *Call) String() string {
	args := make([]string, len(s.Site.Args))
	for i, x := range s.Site.Args {
		args[i] = fmt.Sprint(x)
	}
	callee := ""
	if s.Site.IsIndirect() {
		callee = fmt.Sprintf("(*%d)", s.Site.FunPtr)
	} else {
		callee = s.Site.Callee.Name
	}
	return fmt.Sprintf("%d = %s(%s)", s.Site.Ret, callee, strings.Join(args, ", "))
}
func (s *Ret) String() string { return fmt.Sprintf("return %d", s.Src) }

// Defined returns the value defined by the statement, NullPtr if it defines none
func Defined(s Stmt) NodeID {
	switch s := s.(type) {
	case *Addr:
		return s.Dst
	case *Copy:
		return s.Dst
	case *Load:
		return s.Dst
	case *Gep:
		return s.Dst
	case *Phi:
		return s.Dst
	case *Call:
		return s.Site.Ret
	case *Store, *Ret:
		return NullPtr
	}
	panic(fmt.Sprintf("pag: unexpected statement %T", s))
}

// Operands returns the values used by the statement
func Operands(s Stmt) []NodeID {
	switch s := s.(type) {
	case *Addr:
		return nil
	case *Copy:
		return []NodeID{s.Src}
	case *Load:
		return []NodeID{s.Ptr}
	case *Store:
		return []NodeID{s.Ptr, s.Src}
	case *Gep:
		return []NodeID{s.Src}
	case *Phi:
		return s.Srcs
	case *Call:
		ops := append([]NodeID{}, s.Site.Args...)
		if s.Site.IsIndirect() {
			ops = append(ops, s.Site.FunPtr)
		}
		return ops
	case *Ret:
		return []NodeID{s.Src}
	}
	panic(fmt.Sprintf("pag: unexpected statement %T", s))
}
