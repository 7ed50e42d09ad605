package exec

import "github.com/TheAIBot/treadle/ir"

// An Assigner is one compiled unit of work: evaluate a small expression
// over data store slots and write one symbol. Assigners are immutable
// after compilation; the scheduler decides when they run.
type Assigner struct {
	sym    *Symbol
	prefix string        // instance prefix the expression was compiled under
	expr   ir.Expression // nil for synthetic assigners (commits, checkers)
	run    func()
	// sample marks stop and print assigners: they observe pre-edge values
	// and must run before the commits in their bucket.
	sample bool
}

// NewAssigner wraps an evaluation closure for the given output symbol.
// prefix is the instance path expr's references resolve under.
func NewAssigner(sym *Symbol, prefix string, expr ir.Expression, run func()) *Assigner {
	return &Assigner{sym: sym, prefix: prefix, expr: expr, run: run}
}

// Symbol returns the output symbol this assigner writes.
func (a *Assigner) Symbol() *Symbol { return a.sym }

// Expression returns the source expression this assigner was compiled
// from, or nil for synthetic assigners.
func (a *Assigner) Expression() ir.Expression { return a.expr }

// Prefix returns the instance path the expression resolves under.
func (a *Assigner) Prefix() string { return a.prefix }

// Sampling reports whether this assigner observes pre-edge values.
func (a *Assigner) Sampling() bool { return a.sample }

// Run evaluates the expression and writes the output slot.
func (a *Assigner) Run() { a.run() }
