package exec

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAIBot/treadle/ir"
)

// compile builds the full executable model for a circuit, returning the
// pieces the scheduler tests poke at.
func compile(t *testing.T, c *ir.Circuit) (*SymbolTable, *DataStore, *Scheduler) {
	t.Helper()
	registry := emptyRegistry()
	st, err := BuildSymbolTable(c, registry, false)
	require.NoError(t, err)
	ints, longs, bigs := st.AllocateData()
	store := NewDataStore(0, ints, longs, bigs)
	sched := NewScheduler(store, st)
	comp := NewCompiler(c, st, store, sched, registry, false, io.Discard)
	require.NoError(t, comp.Compile())
	return st, store, sched
}

func partitionCircuit() *ir.Circuit {
	return &ir.Circuit{
		Main: "M",
		Modules: []ir.ModuleDecl{&ir.Module{
			Name: "M",
			Ports: []ir.Port{
				{Name: "a", Direction: ir.Input, Type: ir.UInt(8)},
				{Name: "q", Direction: ir.Output, Type: ir.UInt(8)},
			},
			Body: []ir.Statement{
				// constant-fed chain, not input sensitive
				ir.DefNode{Name: "konst", Value: ir.UIntLit(3, 8)},
				ir.DefNode{Name: "kdouble", Value: ir.Prim(ir.Tail,
					[]ir.Expression{ir.Prim(ir.Add, []ir.Expression{ir.Ref("konst"), ir.Ref("konst")})}, 1)},
				// input driven chain
				ir.DefNode{Name: "inc", Value: ir.Prim(ir.Tail,
					[]ir.Expression{ir.Prim(ir.Add, []ir.Expression{ir.Ref("a"), ir.UIntLit(1, 8)})}, 1)},
				ir.Connect{Dest: ir.Ref("q"), Source: ir.Ref("inc")},
			},
		}},
	}
}

func TestSchedulerPartition(t *testing.T) {
	st, _, sched := compile(t, partitionCircuit())

	orphanSyms := map[string]bool{}
	for _, a := range sched.OrphanAssigns() {
		orphanSyms[a.Symbol().Name] = true
	}
	inputSyms := map[string]bool{}
	for _, a := range sched.InputSensitiveAssigns() {
		inputSyms[a.Symbol().Name] = true
	}

	assert.True(t, orphanSyms["konst"])
	assert.True(t, orphanSyms["kdouble"], "constant chains stay orphan")
	assert.False(t, orphanSyms["inc"])
	assert.True(t, inputSyms["inc"])
	assert.True(t, inputSyms["q"])
	assert.False(t, inputSyms["konst"])

	// input sensitive list respects the topological order
	keys := make([]int, 0, len(sched.InputSensitiveAssigns()))
	for _, a := range sched.InputSensitiveAssigns() {
		keys = append(keys, st.SortKey(a.Symbol()))
	}
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i])
	}
}

func TestOrphanIdempotence(t *testing.T) {
	st, store, sched := compile(t, partitionCircuit())

	sched.ExecuteOrphans()
	kd := st.Get("kdouble")
	first := store.GetLong(kd)
	assert.Equal(t, int64(6), first)

	// rerunning constant-fed assigners yields identical values
	sched.ExecuteOrphans()
	sched.ExecuteOrphans()
	assert.Equal(t, first, store.GetLong(kd))
}

func TestInputSensitivityReplay(t *testing.T) {
	st, store, sched := compile(t, partitionCircuit())
	sched.ExecuteOrphans()

	a, q := st.Get("a"), st.Get("q")
	store.SetLong(a, 41)
	sched.ExecuteInputSensitivities()
	assert.Equal(t, int64(42), store.GetLong(q))

	// replaying with unchanged inputs is idempotent
	sched.ExecuteInputSensitivities()
	assert.Equal(t, int64(42), store.GetLong(q))
}

func TestLeanModeToggle(t *testing.T) {
	_, _, sched := compile(t, partitionCircuit())
	assert.True(t, sched.LeanMode())
	sched.SetLeanMode(false)
	assert.False(t, sched.LeanMode())
	// fat mode still executes correctly
	sched.ExecuteInputSensitivities()
	sched.SetLeanMode(true)
}
