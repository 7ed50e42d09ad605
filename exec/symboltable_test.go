// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAIBot/treadle/ir"
)

func emptyRegistry() *BlackBoxRegistry {
	return NewBlackBoxRegistry(nil)
}

// simple two level circuit: top instantiates a child that inverts a bit.
func nestedCircuit() *ir.Circuit {
	return &ir.Circuit{
		Main: "Top",
		Modules: []ir.ModuleDecl{
			&ir.Module{
				Name: "Top",
				Ports: []ir.Port{
					{Name: "in", Direction: ir.Input, Type: ir.UInt(1)},
					{Name: "out", Direction: ir.Output, Type: ir.UInt(1)},
				},
				Body: []ir.Statement{
					ir.DefInstance{Name: "inv", Module: "Inverter"},
					ir.Connect{Dest: ir.Field(ir.Ref("inv"), "in"), Source: ir.Ref("in")},
					ir.Connect{Dest: ir.Ref("out"), Source: ir.Field(ir.Ref("inv"), "out")},
				},
			},
			&ir.Module{
				Name: "Inverter",
				Ports: []ir.Port{
					{Name: "in", Direction: ir.Input, Type: ir.UInt(1)},
					{Name: "out", Direction: ir.Output, Type: ir.UInt(1)},
				},
				Body: []ir.Statement{
					ir.Connect{Dest: ir.Ref("out"), Source: ir.Prim(ir.Not, []ir.Expression{ir.Ref("in")})},
				},
			},
		},
	}
}

func TestFlattening(t *testing.T) {
	st, err := BuildSymbolTable(nestedCircuit(), emptyRegistry(), false)
	require.NoError(t, err)

	for _, name := range []string{"in", "out", "inv.in", "inv.out"} {
		assert.True(t, st.Contains(name), "expected symbol %s", name)
	}
	assert.False(t, st.Contains("inv"), "instances themselves have no symbol")
	assert.Nil(t, st.Get("nope"))

	in := st.Get("in")
	assert.Equal(t, InputPortKind, in.Kind)
	assert.Equal(t, OutputPortKind, st.Get("out").Kind)
	assert.Equal(t, WireKind, st.Get("inv.in").Kind)
}

func TestDependencyEdges(t *testing.T) {
	st, err := BuildSymbolTable(nestedCircuit(), emptyRegistry(), false)
	require.NoError(t, err)

	in, out := st.Get("in"), st.Get("out")
	reach := st.ReachableFrom(in)
	assert.True(t, reach[st.Get("inv.in")])
	assert.True(t, reach[st.Get("inv.out")])
	assert.True(t, reach[out])

	parents := st.Parents(st.Get("inv.out"))
	require.Len(t, parents, 1)
	assert.Equal(t, "inv.in", parents[0].Name)

	children := st.Children(in)
	require.Len(t, children, 1)
	assert.Equal(t, "inv.in", children[0].Name)
}

func TestDuplicateSymbolIsFatal(t *testing.T) {
	c := &ir.Circuit{
		Main: "M",
		Modules: []ir.ModuleDecl{&ir.Module{
			Name:  "M",
			Ports: []ir.Port{{Name: "a", Direction: ir.Input, Type: ir.UInt(1)}},
			Body: []ir.Statement{
				ir.DefNode{Name: "x", Value: ir.Ref("a")},
				ir.DefNode{Name: "x", Value: ir.Ref("a")},
			},
		}},
	}
	_, err := BuildSymbolTable(c, emptyRegistry(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate symbol")
}

func TestUnresolvedReferenceIsFatal(t *testing.T) {
	c := &ir.Circuit{
		Main: "M",
		Modules: []ir.ModuleDecl{&ir.Module{
			Name:  "M",
			Ports: []ir.Port{{Name: "a", Direction: ir.Input, Type: ir.UInt(1)}},
			Body: []ir.Statement{
				ir.DefNode{Name: "x", Value: ir.Ref("ghost")},
			},
		}},
	}
	_, err := BuildSymbolTable(c, emptyRegistry(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved reference")
}

func TestLiteralOverflowIsFatal(t *testing.T) {
	c := &ir.Circuit{
		Main: "M",
		Modules: []ir.ModuleDecl{&ir.Module{
			Name: "M",
			Body: []ir.Statement{
				ir.DefNode{Name: "x", Value: ir.UIntLit(256, 8)},
			},
		}},
	}
	_, err := BuildSymbolTable(c, emptyRegistry(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflows")
}

func cyclicCircuit() *ir.Circuit {
	return &ir.Circuit{
		Main: "M",
		Modules: []ir.ModuleDecl{&ir.Module{
			Name: "M",
			Ports: []ir.Port{
				{Name: "a", Direction: ir.Input, Type: ir.UInt(1)},
			},
			Body: []ir.Statement{
				ir.DefWire{Name: "x", Type: ir.UInt(1)},
				ir.DefWire{Name: "y", Type: ir.UInt(1)},
				ir.Connect{Dest: ir.Ref("x"), Source: ir.Prim(ir.And, []ir.Expression{ir.Ref("a"), ir.Ref("y")})},
				ir.Connect{Dest: ir.Ref("y"), Source: ir.Ref("x")},
			},
		}},
	}
}

func TestCombinationalCycle(t *testing.T) {
	_, err := BuildSymbolTable(cyclicCircuit(), emptyRegistry(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "combinational cycle")

	// with allow-cycles the cycle is reported and broken deterministically
	st, err := BuildSymbolTable(cyclicCircuit(), emptyRegistry(), true)
	require.NoError(t, err)
	x, y := st.Get("x"), st.Get("y")
	assert.True(t, st.SortKey(x) < st.SortKey(y), "tie broken by name")
}

func TestRegisterShadowAndOrphans(t *testing.T) {
	c := &ir.Circuit{
		Main: "M",
		Modules: []ir.ModuleDecl{&ir.Module{
			Name: "M",
			Ports: []ir.Port{
				{Name: "clock", Direction: ir.Input, Type: ir.Clock()},
			},
			Body: []ir.Statement{
				ir.DefRegister{Name: "r", Type: ir.UInt(8), Clock: ir.Ref("clock")},
				ir.DefNode{Name: "next", Value: ir.Prim(ir.Tail,
					[]ir.Expression{ir.Prim(ir.Add, []ir.Expression{ir.Ref("r"), ir.UIntLit(1, 8)})}, 1)},
				ir.Connect{Dest: ir.Ref("r"), Source: ir.Ref("next")},
				ir.DefNode{Name: "konst", Value: ir.UIntLit(7, 8)},
			},
		}},
	}
	st, err := BuildSymbolTable(c, emptyRegistry(), false)
	require.NoError(t, err)

	r := st.Get("r")
	require.NotNil(t, r.Prev, "registers carry a /prev shadow")
	assert.Equal(t, "r"+PrevSuffix, r.Prev.Name)
	assert.Equal(t, r.Width, r.Prev.Width)
	require.Len(t, st.Registers(), 1)

	// the clock gained a shadow too, and triggers the register
	clock := st.Get("clock")
	require.NotNil(t, clock.Prev)
	assert.Equal(t, []*Symbol{r}, st.ClockedSymbols(clock))

	orphanNames := map[string]bool{}
	for _, s := range st.Orphans() {
		orphanNames[s.Name] = true
	}
	assert.True(t, orphanNames["konst"], "literal driven nodes are orphans")
	assert.True(t, orphanNames["clock"], "inputs are orphans")
	assert.False(t, orphanNames["next"], "next depends on r")
	assert.False(t, orphanNames["r"], "registers hang off their clock shadow")

	// the register's downstream logic is reachable from the clock input
	reach := st.ReachableFrom(st.InputPorts()...)
	assert.True(t, reach[st.Get("next")])
	assert.True(t, reach[st.Get("r"+PrevSuffix)])
}

func TestAllocateData(t *testing.T) {
	c := &ir.Circuit{
		Main: "M",
		Modules: []ir.ModuleDecl{&ir.Module{
			Name: "M",
			Ports: []ir.Port{
				{Name: "a", Direction: ir.Input, Type: ir.UInt(8)},
				{Name: "b", Direction: ir.Input, Type: ir.UInt(40)},
				{Name: "c", Direction: ir.Input, Type: ir.UInt(100)},
			},
			Body: []ir.Statement{
				ir.DefMemory{Name: "m", DataType: ir.UInt(8), Depth: 16, Readers: []string{"r"}},
			},
		}},
	}
	st, err := BuildSymbolTable(c, emptyRegistry(), false)
	require.NoError(t, err)
	ints, longs, bigs := st.AllocateData()

	assert.GreaterOrEqual(t, ints, 16+1, "memory slots live in the int arena")
	assert.GreaterOrEqual(t, longs, 1)
	assert.GreaterOrEqual(t, bigs, 1)

	m := st.Get("m")
	assert.Equal(t, 16, m.Slots)
	assert.Equal(t, IntSize, m.Size)
	assert.LessOrEqual(t, m.Index+m.Slots, ints)

	// indices are unique within a size class
	seen := map[DataSize]map[int]string{}
	for _, s := range st.Symbols() {
		if seen[s.Size] == nil {
			seen[s.Size] = map[int]string{}
		}
		for i := 0; i < s.Slots; i++ {
			prev, dup := seen[s.Size][s.Index+i]
			require.False(t, dup, "%s and %s share slot %d", prev, s.Name, s.Index+i)
			seen[s.Size][s.Index+i] = s.Name
		}
	}
}

func TestTopologicalOrderIsDeterministic(t *testing.T) {
	build := func() []string {
		st, err := BuildSymbolTable(nestedCircuit(), emptyRegistry(), false)
		require.NoError(t, err)
		names := make([]string, 0, len(st.topoOrder))
		for _, s := range st.topoOrder {
			names = append(names, s.Name)
		}
		return names
	}
	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
}

func TestAddrWidth(t *testing.T) {
	assert.Equal(t, 1, addrWidth(1))
	assert.Equal(t, 1, addrWidth(2))
	assert.Equal(t, 2, addrWidth(3))
	assert.Equal(t, 4, addrWidth(16))
	assert.Equal(t, 5, addrWidth(17))
}
