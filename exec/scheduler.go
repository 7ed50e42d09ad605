// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package exec

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// The Scheduler partitions the compiled assigners and drives their
// execution: orphan assigners run once at construction, input sensitive
// assigners replay whenever a primary input changed, and triggered buckets
// run when their clock transitions. Order within each list is the
// topological order established by the symbol table.
type Scheduler struct {
	store *DataStore
	table *SymbolTable

	orphanAssigns  []*Assigner
	inputSensitive []*Assigner
	triggered      map[*Symbol][]*Assigner
	notifiers      map[*Symbol][]func(Transition)

	lean bool
}

// NewScheduler builds an empty scheduler over the given store and table.
func NewScheduler(store *DataStore, table *SymbolTable) *Scheduler {
	return &Scheduler{
		store:     store,
		table:     table,
		triggered: make(map[*Symbol][]*Assigner),
		notifiers: make(map[*Symbol][]func(Transition)),
		lean:      true,
	}
}

// SetLeanMode selects lean (fast, silent) or fat (traced) execution.
func (s *Scheduler) SetLeanMode(lean bool) { s.lean = lean }

// LeanMode reports the current execution mode.
func (s *Scheduler) LeanMode() bool { return s.lean }

// AddTriggered appends an assigner to the bucket of the given clock.
func (s *Scheduler) AddTriggered(clock *Symbol, a *Assigner) {
	s.triggered[clock] = append(s.triggered[clock], a)
}

// AddClockNotifier registers a callback fired on any transition of the
// given clock. Used for black box clock pins.
func (s *Scheduler) AddClockNotifier(clock *Symbol, f func(Transition)) {
	s.notifiers[clock] = append(s.notifiers[clock], f)
}

// NotifyClock invokes the transition callbacks of a clock.
func (s *Scheduler) NotifyClock(clock *Symbol, t Transition) {
	for _, f := range s.notifiers[clock] {
		f(t)
	}
}

// ExecuteAssigners runs a list in order, writing through the data store.
func (s *Scheduler) ExecuteAssigners(list []*Assigner) {
	if s.lean {
		for _, a := range list {
			a.Run()
		}
		return
	}
	for _, a := range list {
		a.Run()
		log.Debug(renderExprValue(s.store, a.Symbol(), a.Expression()))
	}
}

// ExecuteOrphans runs the orphan list: assigners fed by constants only.
// Called once from the engine constructor; rerunning is idempotent.
func (s *Scheduler) ExecuteOrphans() {
	s.ExecuteAssigners(s.orphanAssigns)
}

// ExecuteInputSensitivities runs every assigner transitively reachable
// from a primary input.
func (s *Scheduler) ExecuteInputSensitivities() {
	s.ExecuteAssigners(s.inputSensitive)
}

// ExecuteTriggeredAssigns runs the bucket of the given clock.
func (s *Scheduler) ExecuteTriggeredAssigns(clock *Symbol) {
	s.ExecuteAssigners(s.triggered[clock])
}

// InputSensitiveAssigns exposes the sorted input sensitive list.
func (s *Scheduler) InputSensitiveAssigns() []*Assigner { return s.inputSensitive }

// OrphanAssigns exposes the sorted orphan list.
func (s *Scheduler) OrphanAssigns() []*Assigner { return s.orphanAssigns }

// TriggeredAssigns exposes the bucket of a clock.
func (s *Scheduler) TriggeredAssigns(clock *Symbol) []*Assigner { return s.triggered[clock] }

// SortInputSensitiveAssigns partitions the compiled assigners into the
// input sensitive list and the orphan list, both in topological order.
func (s *Scheduler) SortInputSensitiveAssigns() {
	s.inputSensitive = s.table.InputChildrenAssigners()
	inInput := make(map[*Assigner]bool, len(s.inputSensitive))
	for _, a := range s.inputSensitive {
		inInput[a] = true
	}
	s.orphanAssigns = s.orphanAssigns[:0]
	for _, sym := range s.table.topoOrder {
		if a := s.table.assignerOf[sym]; a != nil && !inInput[a] {
			s.orphanAssigns = append(s.orphanAssigns, a)
		}
	}
}

// SortTriggeredAssigns orders every bucket by the topological position of
// the written symbols.
func (s *Scheduler) SortTriggeredAssigns() {
	for _, bucket := range s.triggered {
		// sampling assigners (stop, print) observe pre-edge values and go
		// first, then commits; each group in topological order
		sort.SliceStable(bucket, func(i, j int) bool {
			if bucket[i].Sampling() != bucket[j].Sampling() {
				return bucket[i].Sampling()
			}
			return s.table.SortKey(bucket[i].Symbol()) < s.table.SortKey(bucket[j].Symbol())
		})
	}
}
