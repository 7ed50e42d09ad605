// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package exec holds the executable model of a lowered circuit: the
// flattened symbol table, the typed data store, the compiled assigners and
// the scheduler that drives them.
package exec

import (
	"math/big"
	"strconv"
)

// A SymbolKind classifies what a symbol stands for in the flattened
// circuit.
type SymbolKind int

// Symbol kinds.
const (
	WireKind SymbolKind = iota
	RegisterKind
	InputPortKind
	OutputPortKind
	MemKind
	BlackBoxOutputKind
	StopKind
	ClockKind
	PrevClockKind
)

var kindNames = [...]string{
	WireKind:           "wire",
	RegisterKind:       "register",
	InputPortKind:      "input",
	OutputPortKind:     "output",
	MemKind:            "memory",
	BlackBoxOutputKind: "blackbox-output",
	StopKind:           "stop",
	ClockKind:          "clock",
	PrevClockKind:      "clock-prev",
}

func (k SymbolKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// A DataSize selects the arena a symbol's slots live in.
type DataSize int

// Data size classes.
const (
	IntSize  DataSize = iota // widths up to 31 bits, stored as int32
	LongSize                 // widths up to 63 bits, stored as int64
	BigSize                  // anything wider, stored as *big.Int
)

// Width thresholds for the size classes.
const (
	IntThreshold  = 31
	LongThreshold = 63
)

// SizeForWidth returns the size class holding values of the given bit
// width.
func SizeForWidth(w int) DataSize {
	switch {
	case w <= IntThreshold:
		return IntSize
	case w <= LongThreshold:
		return LongSize
	default:
		return BigSize
	}
}

func (s DataSize) String() string {
	switch s {
	case IntSize:
		return "int"
	case LongSize:
		return "long"
	default:
		return "big"
	}
}

// PrevSuffix is appended to a symbol name to form its shadow sibling: the
// staged next-state of a register, or the prior value of a clock.
const PrevSuffix = "/prev"

// A Symbol is the metadata record for one named entity of the flattened
// circuit. Symbols are created by the symbol table builder and immutable
// afterwards; only the slot values they point at change.
type Symbol struct {
	// Name is the fully qualified dotted name from the top module.
	Name   string
	Kind   SymbolKind
	Width  int
	Signed bool
	// Size is the arena class, derived from Width.
	Size DataSize
	// Index is the first slot of this symbol in its arena.
	Index int
	// Slots is 1 for scalars and the depth for memories.
	Slots int

	// Prev points at the /prev shadow sibling of registers and clocks,
	// nil for everything else.
	Prev *Symbol
}

func (s *Symbol) String() string {
	return s.Name + ":" + s.Kind.String() + "<" + strconv.Itoa(s.Width) + ">"
}

// maskLong returns the low width bits of v as a non-negative value.
func maskLong(v int64, width int) int64 {
	if width >= 64 {
		return v
	}
	return v & (int64(1)<<uint(width) - 1)
}

// signExtendLong interprets the low width bits of v as a two's complement
// value.
func signExtendLong(v int64, width int) int64 {
	if width >= 64 {
		return v
	}
	v = maskLong(v, width)
	if v&(int64(1)<<uint(width-1)) != 0 {
		v -= int64(1) << uint(width)
	}
	return v
}

// normalizeLong masks v to the given width and, for signed values,
// reapplies the sign. This is the canonical form stored in the int and
// long arenas.
func normalizeLong(v int64, width int, signed bool) int64 {
	if signed {
		return signExtendLong(v, width)
	}
	return maskLong(v, width)
}

var bigOne = big.NewInt(1)

// maskBig returns the low width bits of v as a non-negative big value.
func maskBig(v *big.Int, width int) *big.Int {
	m := new(big.Int).Lsh(bigOne, uint(width))
	m.Sub(m, bigOne)
	return m.And(m, v)
}

// normalizeBig is normalizeLong for the big arena. The result is a fresh
// value; v is not modified.
func normalizeBig(v *big.Int, width int, signed bool) *big.Int {
	r := maskBig(v, width)
	if signed && r.Bit(width-1) == 1 {
		r.Sub(r, new(big.Int).Lsh(bigOne, uint(width)))
	}
	return r
}

// Normalize clamps v into the canonical range for the symbol's width and
// signedness.
func (s *Symbol) Normalize(v *big.Int) *big.Int {
	return normalizeBig(v, s.Width, s.Signed)
}

// NormalizeLong is Normalize for values held in the int or long arenas.
func (s *Symbol) NormalizeLong(v int64) int64 {
	return normalizeLong(v, s.Width, s.Signed)
}
