// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package ir

import "strconv"

// A Type is the ground type of a lowered signal: an unsigned or signed
// integer of known width, or a clock.
//
type Type interface {
	// Width returns the bit width of the type. Always >= 1 for lowered
	// circuits.
	Width() int
	// Signed reports whether values of the type carry a sign.
	Signed() bool
	String() string
}

// UIntType is an unsigned integer of the given width.
type UIntType struct {
	W int
}

// SIntType is a two's complement signed integer of the given width.
type SIntType struct {
	W int
}

// ClockType is a single bit signal driving registers and memory ports.
type ClockType struct{}

// Width implements Type.
func (t UIntType) Width() int { return t.W }

// Signed implements Type.
func (t UIntType) Signed() bool { return false }

func (t UIntType) String() string { return "UInt<" + strconv.Itoa(t.W) + ">" }

// Width implements Type.
func (t SIntType) Width() int { return t.W }

// Signed implements Type.
func (t SIntType) Signed() bool { return true }

func (t SIntType) String() string { return "SInt<" + strconv.Itoa(t.W) + ">" }

// Width implements Type.
func (t ClockType) Width() int { return 1 }

// Signed implements Type.
func (t ClockType) Signed() bool { return false }

func (t ClockType) String() string { return "Clock" }

// UInt returns an unsigned type of width w.
func UInt(w int) Type { return UIntType{W: w} }

// SInt returns a signed type of width w.
func SInt(w int) Type { return SIntType{W: w} }

// Clock returns the clock type.
func Clock() Type { return ClockType{} }
