/*
Package treadle is a cycle accurate interpreter for a lowered hardware
description: a netlist of modules, ports, registers, wires, memories and
primitive operations.

The engine flattens the module hierarchy into a single symbol table,
compiles every statement into a small closure over typed data store slots
and schedules those closures in topological order. A test driver pokes
input values, advances the clock cycle by cycle, peeks outputs and can
attach a value change recorder for waveform dumps.

	engine, err := treadle.NewEngine(circuit, treadle.Options{})
	if err != nil { ... }
	engine.SetValue("io_a", big.NewInt(50))
	engine.Cycle()
	v, _ := engine.GetValue("io_c")
*/
package treadle
