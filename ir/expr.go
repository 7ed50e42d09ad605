// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package ir

import (
	"math/big"
	"strconv"
	"strings"
)

// An Expression is a node in the right-hand side of a lowered statement.
//
type Expression interface {
	String() string
	expr()
}

// Reference names a wire, node, port, register or memory in the enclosing
// module.
type Reference struct {
	Name string
}

// SubField selects a named field of an instance or memory port, e.g.
// m.read.addr or child.io_out.
type SubField struct {
	Of   Expression
	Name string
}

// UIntLiteral is an unsigned literal of explicit width.
type UIntLiteral struct {
	Value *big.Int
	Width int
}

// SIntLiteral is a signed literal of explicit width.
type SIntLiteral struct {
	Value *big.Int
	Width int
}

// Mux selects TrueValue when Cond is non-zero, FalseValue otherwise.
type Mux struct {
	Cond       Expression
	TrueValue  Expression
	FalseValue Expression
}

// ValidIf gates Value behind a validity condition. Lowering produces these
// from conditional connects with no default.
type ValidIf struct {
	Cond  Expression
	Value Expression
}

// DoPrim applies a primitive operation to its arguments. Consts carries the
// literal int parameters of ops like bits, shl or pad.
type DoPrim struct {
	Op     PrimOp
	Args   []Expression
	Consts []int64
}

func (Reference) expr()   {}
func (SubField) expr()    {}
func (UIntLiteral) expr() {}
func (SIntLiteral) expr() {}
func (Mux) expr()         {}
func (ValidIf) expr()     {}
func (DoPrim) expr()      {}

func (e Reference) String() string { return e.Name }

func (e SubField) String() string { return e.Of.String() + "." + e.Name }

func (e UIntLiteral) String() string {
	return "UInt<" + strconv.Itoa(e.Width) + ">(" + e.Value.String() + ")"
}

func (e SIntLiteral) String() string {
	return "SInt<" + strconv.Itoa(e.Width) + ">(" + e.Value.String() + ")"
}

func (e Mux) String() string {
	return "mux(" + e.Cond.String() + ", " + e.TrueValue.String() + ", " + e.FalseValue.String() + ")"
}

func (e ValidIf) String() string {
	return "validif(" + e.Cond.String() + ", " + e.Value.String() + ")"
}

func (e DoPrim) String() string {
	var b strings.Builder
	b.WriteString(e.Op.String())
	b.WriteRune('(')
	for i, a := range e.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	for _, c := range e.Consts {
		b.WriteString(", ")
		b.WriteString(strconv.FormatInt(c, 10))
	}
	b.WriteRune(')')
	return b.String()
}

// A PrimOp identifies a primitive operation in a DoPrim expression.
type PrimOp int

// Primitive operations of the low form. The set matches what the lowering
// passes emit.
const (
	Add PrimOp = iota
	Sub
	Mul
	Div
	Rem
	Lt
	Leq
	Gt
	Geq
	Eq
	Neq
	Pad
	AsUInt
	AsSInt
	AsClock
	Shl
	Shr
	Dshl
	Dshr
	Cvt
	Neg
	Not
	And
	Or
	Xor
	Andr
	Orr
	Xorr
	Cat
	Bits
	Head
	Tail
)

var primNames = [...]string{
	Add: "add", Sub: "sub", Mul: "mul", Div: "div", Rem: "rem",
	Lt: "lt", Leq: "leq", Gt: "gt", Geq: "geq", Eq: "eq", Neq: "neq",
	Pad: "pad", AsUInt: "asUInt", AsSInt: "asSInt", AsClock: "asClock",
	Shl: "shl", Shr: "shr", Dshl: "dshl", Dshr: "dshr",
	Cvt: "cvt", Neg: "neg", Not: "not",
	And: "and", Or: "or", Xor: "xor",
	Andr: "andr", Orr: "orr", Xorr: "xorr",
	Cat: "cat", Bits: "bits", Head: "head", Tail: "tail",
}

func (op PrimOp) String() string {
	if op < 0 || int(op) >= len(primNames) {
		return "prim(" + strconv.Itoa(int(op)) + ")"
	}
	return primNames[op]
}

// Ref is shorthand for a Reference expression.
func Ref(name string) Expression { return Reference{Name: name} }

// Field is shorthand for a SubField expression.
func Field(of Expression, name string) Expression { return SubField{Of: of, Name: name} }

// UIntLit builds an unsigned literal from an int64.
func UIntLit(v int64, width int) Expression {
	return UIntLiteral{Value: big.NewInt(v), Width: width}
}

// SIntLit builds a signed literal from an int64.
func SIntLit(v int64, width int) Expression {
	return SIntLiteral{Value: big.NewInt(v), Width: width}
}

// Prim builds a DoPrim expression.
func Prim(op PrimOp, args []Expression, consts ...int64) Expression {
	return DoPrim{Op: op, Args: args, Consts: consts}
}
