// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package treadle

import (
	"math/big"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/TheAIBot/treadle/exec"
	"github.com/TheAIBot/treadle/ir"
	"github.com/TheAIBot/treadle/vcd"
)

// timeIncrement is the wall time advance per half clock period.
const timeIncrement = 1

// An Engine is the executable model of one lowered circuit: symbol table,
// data store, compiled assigners and scheduler, behind a poke/peek/cycle
// facade. Engines are not safe for concurrent use; independent engines
// are fully isolated from each other.
type Engine struct {
	circuit *ir.Circuit
	opts    Options

	table    *exec.SymbolTable
	store    *exec.DataStore
	sched    *exec.Scheduler
	compiler *exec.Compiler
	registry *exec.BlackBoxRegistry
	toggler  clockToggler

	stopped *exec.Symbol

	recorder       ValueLogger
	skipUnderscore bool

	inputsChanged bool
	wallTime      uint64
	cycleCount    uint64
}

// NewEngine builds the executable model for the circuit: flatten into a
// symbol table, allocate the data store, compile assigners, sort the
// scheduler lists and run the static assignments once so constant-fed
// wires reach steady state before the first cycle.
func NewEngine(circuit *ir.Circuit, opts Options) (*Engine, error) {
	registry := exec.NewBlackBoxRegistry(opts.BlackBoxFactories)
	table, err := exec.BuildSymbolTable(circuit, registry, opts.AllowCycles)
	if err != nil {
		return nil, &CompileError{Err: err}
	}
	ints, longs, bigs := table.AllocateData()
	store := exec.NewDataStore(opts.RollbackBuffers, ints, longs, bigs)
	sched := exec.NewScheduler(store, table)

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	compiler := exec.NewCompiler(circuit, table, store, sched, registry, opts.ValidIfIsRandom, w)
	if err := compiler.Compile(); err != nil {
		return nil, &CompileError{Err: err}
	}
	sched.SetLeanMode(!opts.Verbose)

	e := &Engine{
		circuit:  circuit,
		opts:     opts,
		table:    table,
		store:    store,
		sched:    sched,
		compiler: compiler,
		registry: registry,
		stopped:  table.Get(exec.StoppedSymbolName),
	}

	e.toggler = clockToggler(nullToggler{})
	for _, name := range topClockNames {
		if clk := table.Get(name); clk != nil && e.isInput(clk) {
			e.toggler = newRealToggler(e, clk)
			break
		}
	}

	sched.ExecuteOrphans()
	sched.ExecuteInputSensitivities()

	log.Infof("engine for %s ready: %d symbols, %d int / %d long / %d big slots",
		circuit.Main, len(table.Symbols()), ints, longs, bigs)
	return e, nil
}

func (e *Engine) isInput(s *exec.Symbol) bool {
	return s.Kind == exec.InputPortKind || s.Kind == exec.ClockKind
}

// propagate replays the input sensitive assigners if any input changed
// since the last evaluation.
func (e *Engine) propagate() {
	if !e.inputsChanged {
		return
	}
	e.inputsChanged = false
	e.sched.ExecuteInputSensitivities()
}

func (e *Engine) lookup(name string) (*exec.Symbol, error) {
	s := e.table.Get(name)
	if s == nil {
		return nil, &UnknownNameError{Name: name}
	}
	return s, nil
}

// GetValue propagates pending input changes and reads the named symbol.
func (e *Engine) GetValue(name string) (*big.Int, error) {
	s, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	e.propagate()
	return e.store.GetValue(s), nil
}

// PeekMemory reads one element of a memory.
func (e *Engine) PeekMemory(name string, index int) (*big.Int, error) {
	s, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	if s.Kind != exec.MemKind {
		return nil, &BadTargetError{Name: name, Reason: "not a memory"}
	}
	e.propagate()
	return e.store.GetIndexed(s, index)
}

// RollbackValue reads the value a symbol had k buffers ago.
func (e *Engine) RollbackValue(name string, k int) (*big.Int, error) {
	s, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.store.EarlierValue(s, k)
}

// SetValue writes a top level input and marks inputs dirty. Anything else
// is rejected with a BadTargetError; use ForceValue for internal wires
// and PokeRegister for register state.
func (e *Engine) SetValue(name string, value *big.Int) error {
	if e.Stopped() {
		return e.stopError()
	}
	s, err := e.lookup(name)
	if err != nil {
		return err
	}
	if !e.isInput(s) {
		return &BadTargetError{Name: name, Reason: "not a top level input"}
	}
	e.store.SetValue(s, value)
	e.inputsChanged = true
	return nil
}

// ForceValue writes any symbol and immediately re-runs the forward
// transitive subgraph rooted at it, so downstream values are consistent
// with the forced one.
func (e *Engine) ForceValue(name string, value *big.Int) error {
	if e.Stopped() {
		return e.stopError()
	}
	s, err := e.lookup(name)
	if err != nil {
		return err
	}
	e.store.SetValue(s, value)
	if e.isInput(s) {
		e.inputsChanged = true
		return nil
	}
	e.sched.ExecuteAssigners(e.table.GetAssigners(e.table.ReachableFrom(s)))
	return nil
}

// PokeRegister overwrites a register's committed state and re-runs its
// dependents. The staged next-state is recomputed from the poked value.
func (e *Engine) PokeRegister(name string, value *big.Int) error {
	s, err := e.lookup(name)
	if err != nil {
		return err
	}
	if s.Kind != exec.RegisterKind {
		return &BadTargetError{Name: name, Reason: "not a register"}
	}
	return e.ForceValue(name, value)
}

// PokeMemory overwrites one element of a memory and re-runs the memory's
// read ports.
func (e *Engine) PokeMemory(name string, index int, value *big.Int) error {
	s, err := e.lookup(name)
	if err != nil {
		return err
	}
	if s.Kind != exec.MemKind {
		return &BadTargetError{Name: name, Reason: "not a memory"}
	}
	if err := e.store.SetIndexed(s, index, value); err != nil {
		return &BadTargetError{Name: name, Reason: err.Error()}
	}
	e.sched.ExecuteAssigners(e.table.GetAssigners(e.table.ReachableFrom(s)))
	return nil
}

// EvaluateCircuit runs one low level evaluation: advance the buffer ring,
// replay the input sensitive assigners if inputs changed, then check the
// stop latch. Buckets of derived clocks fire through their trigger
// checkers during the replay. The top level clock has no trigger checker:
// its bucket fires only when Cycle raises it, not when a poked clock
// transition is evaluated here.
func (e *Engine) EvaluateCircuit() error {
	e.store.AdvanceBuffers()
	e.propagate()
	return e.checkStop()
}

// Cycle runs one full clock period: advance time and buffers, raise the
// clock (firing its triggered bucket), evaluate, then lower the clock.
// The circuit is evaluated after the rising edge only; values written
// during the low phase are not re-propagated.
func (e *Engine) Cycle() error {
	if e.Stopped() {
		return e.stopError()
	}
	e.cycleCount++
	// flush pending pokes so the staged register state sees them before
	// the edge
	e.propagate()
	e.store.AdvanceBuffers()
	e.advanceTime()
	e.toggler.raise()
	e.inputsChanged = true
	e.propagate()
	err := e.checkStop()
	e.advanceTime()
	e.toggler.lower()
	return err
}

// DoCycles runs up to n cycles, returning early with the StopError when
// the circuit stops.
func (e *Engine) DoCycles(n int) error {
	for i := 0; i < n; i++ {
		if err := e.Cycle(); err != nil {
			return err
		}
		log.Debugf("cycle %d done", e.cycleCount)
	}
	return nil
}

// CycleCount returns the number of cycles run so far.
func (e *Engine) CycleCount() uint64 { return e.cycleCount }

func (e *Engine) advanceTime() {
	e.wallTime += timeIncrement
	if e.recorder != nil {
		e.recorder.SetTime(e.wallTime)
	}
}

// WallTime returns the logical simulation time.
func (e *Engine) WallTime() uint64 { return e.wallTime }

func (e *Engine) checkStop() error {
	if e.Stopped() {
		return e.stopError()
	}
	return nil
}

func (e *Engine) stopError() error {
	result, _ := e.LastStopResult()
	return &StopError{Result: result}
}

// Stopped reports whether the stop latch is set.
func (e *Engine) Stopped() bool {
	return e.store.GetLong(e.stopped) != 0
}

// LastStopResult returns the code of the stop that latched, if any.
func (e *Engine) LastStopResult() (int, bool) {
	v := e.store.GetLong(e.stopped)
	if v == 0 {
		return 0, false
	}
	return int(v - 1), true
}

// ClearStop clears the stop latch so that cycling can resume.
func (e *Engine) ClearStop() {
	e.store.SetLong(e.stopped, 0)
}

// SetVerbose switches per-assigner tracing on or off.
func (e *Engine) SetVerbose(verbose bool) {
	e.sched.SetLeanMode(!verbose)
}

// Stats returns the recoverable-incident counters (divisions by zero).
func (e *Engine) Stats() *exec.RunStats { return e.compiler.Stats() }

// MakeVCDLogger attaches a value change recorder writing to path. When
// showUnderscored is false, compiler-generated names (last segment
// starting with an underscore) are left out of the dump.
func (e *Engine) MakeVCDLogger(path string, showUnderscored bool) error {
	rec, err := vcd.NewRecorder(path)
	if err != nil {
		return err
	}
	e.skipUnderscore = !showUnderscored
	for _, s := range e.table.Symbols() {
		if e.recordable(s) {
			rec.AddWire(s.Name, s.Width)
		}
	}
	if err := rec.Start(); err != nil {
		return err
	}
	e.recorder = rec
	e.recorder.SetTime(e.wallTime)
	e.store.SetHook(func(s *exec.Symbol, offset int, value *big.Int) {
		if offset == 0 && e.recordable(s) {
			rec.LogChange(s.Name, s.Width, value)
		}
	})
	return nil
}

func (e *Engine) recordable(s *exec.Symbol) bool {
	if s.Slots > 1 || s.Kind == exec.StopKind || s.Kind == exec.PrevClockKind {
		return false
	}
	if strings.HasSuffix(s.Name, exec.PrevSuffix) {
		return false
	}
	if e.skipUnderscore {
		last := s.Name
		if i := strings.LastIndexByte(last, '.'); i >= 0 {
			last = last[i+1:]
		}
		if strings.HasPrefix(last, "_") {
			return false
		}
	}
	return true
}

// WriteVCD flushes the recorder to disk.
func (e *Engine) WriteVCD() error {
	if e.recorder == nil {
		return nil
	}
	return e.recorder.Write()
}

// DisableVCD detaches and closes the recorder.
func (e *Engine) DisableVCD() error {
	if e.recorder == nil {
		return nil
	}
	e.store.SetHook(nil)
	err := e.recorder.Close()
	e.recorder = nil
	return err
}

// RenderComputation renders the expression trees that produced the named
// symbols' current values, for debugging.
func (e *Engine) RenderComputation(names ...string) string {
	e.propagate()
	return exec.RenderComputation(e.table, e.store, names...)
}

// IsRegister reports whether name is a register.
func (e *Engine) IsRegister(name string) bool {
	s := e.table.Get(name)
	return s != nil && s.Kind == exec.RegisterKind
}

// IsInputPort reports whether name is a top level input.
func (e *Engine) IsInputPort(name string) bool {
	s := e.table.Get(name)
	return s != nil && e.isInput(s)
}

// IsOutputPort reports whether name is a top level output.
func (e *Engine) IsOutputPort(name string) bool {
	s := e.table.Get(name)
	return s != nil && s.Kind == exec.OutputPortKind
}

func symbolNames(symbols []*exec.Symbol) []string {
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.Name
	}
	return names
}

// RegisterNames lists the canonical register names.
func (e *Engine) RegisterNames() []string { return symbolNames(e.table.Registers()) }

// InputPortNames lists the top level inputs, clock included.
func (e *Engine) InputPortNames() []string { return symbolNames(e.table.InputPorts()) }

// OutputPortNames lists the top level outputs.
func (e *Engine) OutputPortNames() []string { return symbolNames(e.table.OutputPorts()) }

// ValidNames lists every name in the flattened circuit.
func (e *Engine) ValidNames() []string { return e.table.Names() }

// Symbols exposes the symbol records in name order.
func (e *Engine) Symbols() []*exec.Symbol { return e.table.Symbols() }

// SymbolTable exposes the underlying table for advanced introspection.
func (e *Engine) SymbolTable() *exec.SymbolTable { return e.table }
