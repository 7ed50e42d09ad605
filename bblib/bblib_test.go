// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package bblib_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAIBot/treadle"
	"github.com/TheAIBot/treadle/bblib"
	"github.com/TheAIBot/treadle/exec"
	"github.com/TheAIBot/treadle/ir"
	"github.com/TheAIBot/treadle/simtest"
)

func TestFactoryResolution(t *testing.T) {
	bb, ok := bblib.Factory("x", "AndGate")
	require.True(t, ok)
	assert.Equal(t, "x", bb.Name())

	_, ok = bblib.Factory("x", "NoSuchBox")
	assert.False(t, ok)
}

func TestAndGateDirect(t *testing.T) {
	bb, _ := bblib.Factory("g", "AndGate")
	td := []struct {
		a, b, want int64
	}{
		{0, 0, 0}, {0, 1, 0}, {1, 0, 0}, {1, 1, 1},
	}
	for _, d := range td {
		got := bb.GetOutput([]*big.Int{big.NewInt(d.a), big.NewInt(d.b)}, ir.UInt(1), "result")
		assert.Equal(t, d.want, got.Int64(), "%d & %d", d.a, d.b)
	}
	assert.Equal(t, []string{"a", "b"}, bb.OutputDependencies("result"))
}

// accumulator black box wired into a clocked circuit.
func accumulatorCircuit() *ir.Circuit {
	return &ir.Circuit{
		Main: "Top",
		Modules: []ir.ModuleDecl{
			&ir.Module{
				Name: "Top",
				Ports: []ir.Port{
					{Name: "clock", Direction: ir.Input, Type: ir.Clock()},
					{Name: "io_in", Direction: ir.Input, Type: ir.UInt(16)},
					{Name: "io_sum", Direction: ir.Output, Type: ir.UInt(32)},
				},
				Body: []ir.Statement{
					ir.DefInstance{Name: "acc", Module: "BBAccumulator"},
					ir.Connect{Dest: ir.Field(ir.Ref("acc"), "clock"), Source: ir.Ref("clock")},
					ir.Connect{Dest: ir.Field(ir.Ref("acc"), "in"), Source: ir.Ref("io_in")},
					ir.Connect{Dest: ir.Ref("io_sum"), Source: ir.Field(ir.Ref("acc"), "sum")},
				},
			},
			&ir.ExtModule{
				Name:    "BBAccumulator",
				DefName: "Accumulator",
				Ports: []ir.Port{
					{Name: "clock", Direction: ir.Input, Type: ir.Clock()},
					{Name: "in", Direction: ir.Input, Type: ir.UInt(16)},
					{Name: "sum", Direction: ir.Output, Type: ir.UInt(32)},
				},
			},
		},
	}
}

func TestAccumulatorInCircuit(t *testing.T) {
	e, err := treadle.NewEngine(accumulatorCircuit(), treadle.Options{
		BlackBoxFactories: []exec.BlackBoxFactory{bblib.Factory},
	})
	require.NoError(t, err)

	simtest.Poke(t, e, "io_in", 5)
	simtest.Step(t, e, 3)
	simtest.Expect(t, e, "io_sum", 15)

	simtest.Poke(t, e, "io_in", 7)
	simtest.Step(t, e, 2)
	simtest.Expect(t, e, "io_sum", 29)
}
