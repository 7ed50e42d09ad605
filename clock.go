// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package treadle

import "github.com/TheAIBot/treadle/exec"

// A clockToggler drives the top level clock of a circuit. Circuits
// without a top clock (purely combinational ones) get the null variant.
type clockToggler interface {
	raise()
	lower()
	hasClock() bool
}

// topClockNames are searched in order for the top level clock.
var topClockNames = []string{"clock", "clk"}

type nullToggler struct{}

func (nullToggler) raise()         {}
func (nullToggler) lower()         {}
func (nullToggler) hasClock() bool { return false }

// realToggler writes the clock slot and fires the clock's triggered
// bucket on the rising edge. Lowering re-propagates only the clock-rooted
// subgraph so that derived (gated) clocks observe the falling edge; logic
// not reachable from the clock is not re-evaluated during the low phase.
type realToggler struct {
	e     *Engine
	clock *exec.Symbol
	// clockFanout is the clock-rooted assigner subgraph, precomputed.
	clockFanout []*exec.Assigner
}

func newRealToggler(e *Engine, clock *exec.Symbol) *realToggler {
	return &realToggler{
		e:           e,
		clock:       clock,
		clockFanout: e.table.GetAssigners(e.table.ReachableFrom(clock)),
	}
}

func (t *realToggler) hasClock() bool { return true }

func (t *realToggler) raise() {
	was := t.e.store.GetLong(t.clock)
	if t.clock.Prev != nil {
		t.e.store.SetLong(t.clock.Prev, was)
	}
	t.e.store.SetLong(t.clock, 1)
	if was == 0 {
		t.e.sched.NotifyClock(t.clock, exec.PositiveEdge)
		t.e.sched.ExecuteTriggeredAssigns(t.clock)
	}
	if t.clock.Prev != nil {
		t.e.store.SetLong(t.clock.Prev, 1)
	}
}

func (t *realToggler) lower() {
	was := t.e.store.GetLong(t.clock)
	t.e.store.SetLong(t.clock, 0)
	if was != 0 {
		t.e.sched.NotifyClock(t.clock, exec.NegativeEdge)
	}
	t.e.sched.ExecuteAssigners(t.clockFanout)
	if t.clock.Prev != nil {
		t.e.store.SetLong(t.clock.Prev, 0)
	}
}
