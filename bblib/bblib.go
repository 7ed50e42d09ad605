// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package bblib provides ready-made black box implementations for common
// external modules, and a factory covering all of them.
package bblib

import (
	"math/big"

	"github.com/TheAIBot/treadle/exec"
	"github.com/TheAIBot/treadle/ir"
)

// Factory resolves the implementations in this package by defname. Pass
// it in Options.BlackBoxFactories.
func Factory(instanceName, defName string) (exec.BlackBox, bool) {
	switch defName {
	case "AndGate":
		return &AndGate{name: instanceName}, true
	case "Accumulator":
		return NewAccumulator(instanceName), true
	}
	return nil, false
}

// An AndGate is a combinational black box computing result = a & b.
//
//	Inputs: a, b
//	Outputs: result
type AndGate struct {
	name string
}

// Name implements exec.BlackBox.
func (g *AndGate) Name() string { return g.name }

// InputChanged implements exec.BlackBox. The gate is stateless.
func (g *AndGate) InputChanged(string, *big.Int) {}

// ClockChange implements exec.BlackBox. The gate is unclocked.
func (g *AndGate) ClockChange(exec.Transition, string) {}

// GetOutput implements exec.BlackBox.
func (g *AndGate) GetOutput(inputs []*big.Int, _ ir.Type, _ string) *big.Int {
	if len(inputs) < 2 {
		return new(big.Int)
	}
	return new(big.Int).And(inputs[0], inputs[1])
}

// OutputDependencies implements exec.BlackBox.
func (g *AndGate) OutputDependencies(string) []string {
	return []string{"a", "b"}
}

// An Accumulator is a clocked black box adding its input to an internal
// total on every positive clock edge.
//
//	Inputs: clock, in
//	Outputs: sum
type Accumulator struct {
	name  string
	input *big.Int
	total *big.Int
}

// NewAccumulator returns an accumulator with a zero total.
func NewAccumulator(name string) *Accumulator {
	return &Accumulator{name: name, input: new(big.Int), total: new(big.Int)}
}

// Name implements exec.BlackBox.
func (a *Accumulator) Name() string { return a.name }

// InputChanged latches the most recent value of the in pin.
func (a *Accumulator) InputChanged(name string, value *big.Int) {
	if name == "in" {
		a.input.Set(value)
	}
}

// ClockChange adds the latched input into the total on a positive edge.
func (a *Accumulator) ClockChange(t exec.Transition, _ string) {
	if t == exec.PositiveEdge {
		a.total.Add(a.total, a.input)
	}
}

// GetOutput implements exec.BlackBox.
func (a *Accumulator) GetOutput(_ []*big.Int, _ ir.Type, _ string) *big.Int {
	return new(big.Int).Set(a.total)
}

// OutputDependencies implements exec.BlackBox.
func (a *Accumulator) OutputDependencies(string) []string {
	return []string{"in"}
}
