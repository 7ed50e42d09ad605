// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package treadle

import "strconv"

// An UnknownNameError reports a peek or poke of a name that does not
// exist in the flattened circuit.
type UnknownNameError struct {
	Name string
}

func (e *UnknownNameError) Error() string {
	return "unknown symbol " + strconv.Quote(e.Name)
}

// A BadTargetError reports a symbol that is not a valid target for the
// requested access: a write to a symbol that cannot be driven from the
// outside without force, or a memory access to something that is not a
// memory.
type BadTargetError struct {
	Name   string
	Reason string
}

func (e *BadTargetError) Error() string {
	return "bad target " + strconv.Quote(e.Name) + ": " + e.Reason
}

// A StopError is the expected event raised when the circuit reached a
// stop statement. Result is the stop code; the engine refuses further
// cycles until ClearStop is called.
type StopError struct {
	Result int
}

func (e *StopError) Error() string {
	return "circuit stopped with result " + strconv.Itoa(e.Result)
}

// A CompileError aborts engine construction: duplicate or unresolved
// symbols, literal overflow, unresolved black boxes or a disallowed
// combinational cycle.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string { return "compile: " + e.Err.Error() }

// Unwrap exposes the underlying cause.
func (e *CompileError) Unwrap() error { return e.Err }
