// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package exec

import (
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/TheAIBot/treadle/ir"
)

// StoppedSymbolName is the latch written by stop statements. Zero means
// running; a non-zero value is the stop code plus one.
const StoppedSymbolName = "/stopped"

// A symbolSet is an unordered set of symbols.
type symbolSet map[*Symbol]struct{}

func (s symbolSet) add(x *Symbol) { s[x] = struct{}{} }

// A SymbolTable owns every symbol of the flattened circuit together with
// the forward and reverse dependency maps among them. It is built once,
// before compilation, and structurally immutable afterwards.
type SymbolTable struct {
	symbols map[string]*Symbol
	sorted  []*Symbol // name order, fixed at build time

	childrenOf map[*Symbol]symbolSet
	parentsOf  map[*Symbol]symbolSet

	registers []*Symbol // canonical register symbols
	memories  []*Symbol
	clocks    []*Symbol // symbols used as a clock somewhere
	inputs    []*Symbol // top level input ports
	outputs   []*Symbol // top level output ports

	// clockedBy maps a clock-like symbol to the register, memory, stop and
	// print symbols it triggers.
	clockedBy map[*Symbol][]*Symbol

	// resetOf carries register reset information from the walk to the
	// compiler.
	resetOf map[*Symbol]resetInfo

	// assignerOf holds the combinational assigner writing each symbol.
	// Filled in by the compiler.
	assignerOf map[*Symbol]*Assigner

	topoOrder []*Symbol
	sortKey   map[*Symbol]int

	intSlots, longSlots, bigSlots int
}

// Contains reports whether a symbol of that name exists.
func (st *SymbolTable) Contains(name string) bool {
	_, ok := st.symbols[name]
	return ok
}

// Get returns the named symbol, or nil when absent.
func (st *SymbolTable) Get(name string) *Symbol {
	return st.symbols[name]
}

// Names returns all symbol names in sorted order.
func (st *SymbolTable) Names() []string {
	names := make([]string, 0, len(st.sorted))
	for _, s := range st.sorted {
		names = append(names, s.Name)
	}
	return names
}

// Symbols returns all symbols in name order.
func (st *SymbolTable) Symbols() []*Symbol { return st.sorted }

// Registers returns the canonical register symbols.
func (st *SymbolTable) Registers() []*Symbol { return st.registers }

// Memories returns the memory symbols.
func (st *SymbolTable) Memories() []*Symbol { return st.memories }

// Clocks returns every symbol used as a clock.
func (st *SymbolTable) Clocks() []*Symbol { return st.clocks }

// InputPorts returns the top level input port symbols, clock included.
func (st *SymbolTable) InputPorts() []*Symbol { return st.inputs }

// OutputPorts returns the top level output port symbols.
func (st *SymbolTable) OutputPorts() []*Symbol { return st.outputs }

// ClockedSymbols returns the register, memory, stop and print symbols
// triggered by the given clock.
func (st *SymbolTable) ClockedSymbols(clock *Symbol) []*Symbol {
	return st.clockedBy[clock]
}

// resetInfo records the reset condition and init expression of a register
// together with the instance prefix they were declared under.
type resetInfo struct {
	prefix string
	cond   ir.Expression
	init   ir.Expression
}

// RegisterReset returns the reset condition and init expressions of a
// register; both nil when it has no reset.
func (st *SymbolTable) RegisterReset(r *Symbol) (cond, init ir.Expression) {
	info := st.resetOf[r]
	return info.cond, info.init
}

// Parents returns the symbols read by the assigner of x, in name order.
func (st *SymbolTable) Parents(x *Symbol) []*Symbol {
	return st.setToSlice(st.parentsOf[x])
}

// Children returns the symbols whose assigners read x, in name order.
func (st *SymbolTable) Children(x *Symbol) []*Symbol {
	return st.setToSlice(st.childrenOf[x])
}

func (st *SymbolTable) setToSlice(set symbolSet) []*Symbol {
	out := make([]*Symbol, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Orphans returns the symbols with no parents in the dependency graph:
// driven by literals, primary inputs or clock-triggered writes only.
func (st *SymbolTable) Orphans() []*Symbol {
	var out []*Symbol
	for _, s := range st.sorted {
		if len(st.parentsOf[s]) == 0 {
			out = append(out, s)
		}
	}
	return out
}

// ReachableFrom computes the forward transitive closure of the given
// roots. The roots themselves are not included unless reachable from
// another root.
func (st *SymbolTable) ReachableFrom(roots ...*Symbol) map[*Symbol]bool {
	seen := make(map[*Symbol]bool)
	var queue []*Symbol
	visit := func(s *Symbol) {
		for c := range st.childrenOf[s] {
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}
	for _, r := range roots {
		visit(r)
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		visit(s)
	}
	return seen
}

// GetAssigners maps a symbol set to the assigners writing those symbols,
// preserving the topological order.
func (st *SymbolTable) GetAssigners(symbols map[*Symbol]bool) []*Assigner {
	var out []*Assigner
	for _, s := range st.topoOrder {
		if symbols[s] {
			if a := st.assignerOf[s]; a != nil {
				out = append(out, a)
			}
		}
	}
	return out
}

// InputChildrenAssigners returns the assigners transitively reachable from
// any primary input, clocks included, in topological order.
func (st *SymbolTable) InputChildrenAssigners() []*Assigner {
	return st.GetAssigners(st.ReachableFrom(st.inputs...))
}

// SortKey returns the topological position of a symbol.
func (st *SymbolTable) SortKey(s *Symbol) int { return st.sortKey[s] }

// AllocateData assigns data indices to every symbol, iterating in name
// order and bumping one cursor per size class, and returns the resulting
// arena sizes as (intSlots, longSlots, bigSlots).
func (st *SymbolTable) AllocateData() (int, int, int) {
	var cursors [3]int
	for _, s := range st.sorted {
		s.Index = cursors[s.Size]
		cursors[s.Size] += s.Slots
	}
	st.intSlots = cursors[IntSize]
	st.longSlots = cursors[LongSize]
	st.bigSlots = cursors[BigSize]
	return st.intSlots, st.longSlots, st.bigSlots
}

// registerAssigner records the assigner writing a symbol. Two assigners
// for one symbol is a compile error, caught here.
func (st *SymbolTable) registerAssigner(s *Symbol, a *Assigner) error {
	if st.assignerOf[s] != nil {
		return errors.Errorf("%s is driven twice", s.Name)
	}
	st.assignerOf[s] = a
	return nil
}

// AssignerFor returns the combinational assigner writing s, or nil.
func (st *SymbolTable) AssignerFor(s *Symbol) *Assigner { return st.assignerOf[s] }

// FlattenName resolves a reference or port field expression to its dotted
// name in the flat namespace.
func FlattenName(prefix string, e ir.Expression) (string, error) {
	switch x := e.(type) {
	case ir.Reference:
		return prefix + x.Name, nil
	case ir.SubField:
		of, err := FlattenName(prefix, x.Of)
		if err != nil {
			return "", err
		}
		return of + "." + x.Name, nil
	default:
		return "", errors.Errorf("expression %s does not name a symbol", e.String())
	}
}

// ExprType infers the width and signedness of an expression per the width
// rules of the low form, resolving references against the table.
func (st *SymbolTable) ExprType(prefix string, e ir.Expression) (width int, signed bool, err error) {
	switch x := e.(type) {
	case ir.Reference, ir.SubField:
		name, err := FlattenName(prefix, e)
		if err != nil {
			return 0, false, err
		}
		s := st.Get(name)
		if s == nil {
			return 0, false, errors.Errorf("unresolved reference %q", name)
		}
		return s.Width, s.Signed, nil
	case ir.UIntLiteral:
		if x.Value.BitLen() > x.Width {
			return 0, false, errors.Errorf("literal %s overflows width %d", x.Value, x.Width)
		}
		return x.Width, false, nil
	case ir.SIntLiteral:
		if minSignedWidth(x.Value) > x.Width {
			return 0, false, errors.Errorf("literal %s overflows width %d", x.Value, x.Width)
		}
		return x.Width, true, nil
	case ir.Mux:
		tw, ts, err := st.ExprType(prefix, x.TrueValue)
		if err != nil {
			return 0, false, err
		}
		fw, _, err := st.ExprType(prefix, x.FalseValue)
		if err != nil {
			return 0, false, err
		}
		return maxInt(tw, fw), ts, nil
	case ir.ValidIf:
		return st.ExprType(prefix, x.Value)
	case ir.DoPrim:
		return st.primType(prefix, x)
	default:
		return 0, false, errors.Errorf("cannot type expression %s", e.String())
	}
}

func (st *SymbolTable) primType(prefix string, e ir.DoPrim) (int, bool, error) {
	ws := make([]int, len(e.Args))
	ss := make([]bool, len(e.Args))
	for i, a := range e.Args {
		w, s, err := st.ExprType(prefix, a)
		if err != nil {
			return 0, false, err
		}
		ws[i], ss[i] = w, s
	}
	c := func(i int) int {
		if i < len(e.Consts) {
			return int(e.Consts[i])
		}
		return 0
	}
	switch e.Op {
	case ir.Add, ir.Sub:
		return maxInt(ws[0], ws[1]) + 1, ss[0], nil
	case ir.Mul:
		return ws[0] + ws[1], ss[0], nil
	case ir.Div:
		if ss[0] {
			return ws[0] + 1, true, nil
		}
		return ws[0], false, nil
	case ir.Rem:
		return minInt(ws[0], ws[1]), ss[0], nil
	case ir.Lt, ir.Leq, ir.Gt, ir.Geq, ir.Eq, ir.Neq:
		return 1, false, nil
	case ir.Pad:
		return maxInt(ws[0], c(0)), ss[0], nil
	case ir.AsUInt:
		return ws[0], false, nil
	case ir.AsSInt:
		return ws[0], true, nil
	case ir.AsClock:
		return 1, false, nil
	case ir.Shl:
		return ws[0] + c(0), ss[0], nil
	case ir.Shr:
		return maxInt(ws[0]-c(0), 1), ss[0], nil
	case ir.Dshl:
		shift := 1
		if ws[1] < 31 {
			shift = 1<<uint(ws[1]) - 1
		}
		return ws[0] + shift, ss[0], nil
	case ir.Dshr:
		return ws[0], ss[0], nil
	case ir.Cvt:
		if ss[0] {
			return ws[0], true, nil
		}
		return ws[0] + 1, true, nil
	case ir.Neg:
		return ws[0] + 1, true, nil
	case ir.Not:
		return ws[0], false, nil
	case ir.And, ir.Or, ir.Xor:
		return maxInt(ws[0], ws[1]), false, nil
	case ir.Andr, ir.Orr, ir.Xorr:
		return 1, false, nil
	case ir.Cat:
		return ws[0] + ws[1], false, nil
	case ir.Bits:
		return c(0) - c(1) + 1, false, nil
	case ir.Head:
		return c(0), false, nil
	case ir.Tail:
		return ws[0] - c(0), false, nil
	default:
		return 0, false, errors.Errorf("unknown primitive op %s", e.Op)
	}
}

// collectRefs gathers the symbols an expression reads.
func (st *SymbolTable) collectRefs(prefix string, e ir.Expression, out *[]*Symbol) error {
	switch x := e.(type) {
	case ir.Reference, ir.SubField:
		name, err := FlattenName(prefix, e)
		if err != nil {
			return err
		}
		s := st.Get(name)
		if s == nil {
			return errors.Errorf("unresolved reference %q", name)
		}
		*out = append(*out, s)
		return nil
	case ir.UIntLiteral, ir.SIntLiteral:
		return nil
	case ir.Mux:
		for _, sub := range []ir.Expression{x.Cond, x.TrueValue, x.FalseValue} {
			if err := st.collectRefs(prefix, sub, out); err != nil {
				return err
			}
		}
		return nil
	case ir.ValidIf:
		if err := st.collectRefs(prefix, x.Cond, out); err != nil {
			return err
		}
		return st.collectRefs(prefix, x.Value, out)
	case ir.DoPrim:
		for _, a := range x.Args {
			if err := st.collectRefs(prefix, a, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("cannot walk expression %s", e.String())
	}
}

// tableBuilder carries the state of one BuildSymbolTable run.
type tableBuilder struct {
	circuit  *ir.Circuit
	registry *BlackBoxRegistry
	st       *SymbolTable
	genCount int
}

// BuildSymbolTable flattens the circuit into a symbol table: one symbol
// per port, node, wire, register, memory (one multi-slot symbol holding
// all its elements), memory port pin and black box pin, named
// by its dotted instance path, plus the dependency edges among them.
// Duplicate names, unresolved references, unresolved black boxes and
// disallowed combinational cycles are fatal here.
func BuildSymbolTable(c *ir.Circuit, registry *BlackBoxRegistry, allowCycles bool) (*SymbolTable, error) {
	st := &SymbolTable{
		symbols:    make(map[string]*Symbol),
		childrenOf: make(map[*Symbol]symbolSet),
		parentsOf:  make(map[*Symbol]symbolSet),
		clockedBy:  make(map[*Symbol][]*Symbol),
		resetOf:    make(map[*Symbol]resetInfo),
		assignerOf: make(map[*Symbol]*Assigner),
		sortKey:    make(map[*Symbol]int),
	}
	b := &tableBuilder{circuit: c, registry: registry, st: st}

	main := c.FindModule(c.Main)
	if main == nil {
		return nil, errors.Errorf("main module %q not found", c.Main)
	}
	top, ok := main.(*ir.Module)
	if !ok {
		return nil, errors.Errorf("main module %q is external", c.Main)
	}

	if _, err := b.addSymbol(StoppedSymbolName, StopKind, 32, false, 1); err != nil {
		return nil, err
	}
	if err := b.createModuleSymbols("", top, true); err != nil {
		return nil, err
	}
	if err := b.addModuleEdges("", top); err != nil {
		return nil, err
	}

	st.sorted = make([]*Symbol, 0, len(st.symbols))
	for _, s := range st.symbols {
		st.sorted = append(st.sorted, s)
	}
	sort.Slice(st.sorted, func(i, j int) bool { return st.sorted[i].Name < st.sorted[j].Name })

	if err := st.sortGraph(allowCycles); err != nil {
		return nil, err
	}
	return st, nil
}

// addSymbol creates one symbol, failing on duplicates.
func (b *tableBuilder) addSymbol(name string, kind SymbolKind, width int, signed bool, slots int) (*Symbol, error) {
	if _, ok := b.st.symbols[name]; ok {
		return nil, errors.Errorf("duplicate symbol %q", name)
	}
	s := &Symbol{
		Name:   name,
		Kind:   kind,
		Width:  width,
		Signed: signed,
		Size:   SizeForWidth(width),
		Slots:  slots,
	}
	b.st.symbols[name] = s
	b.st.parentsOf[s] = make(symbolSet)
	b.st.childrenOf[s] = make(symbolSet)
	return s, nil
}

func (b *tableBuilder) genName(base, explicit string) string {
	if explicit != "" {
		return explicit
	}
	b.genCount++
	return base + "_" + strconv.Itoa(b.genCount-1)
}

// createModuleSymbols walks one module instance, creating symbols for its
// ports and for everything its body declares. Instance hierarchy is
// flattened by prefixing names with the dotted instance path.
func (b *tableBuilder) createModuleSymbols(prefix string, m *ir.Module, top bool) error {
	for _, p := range m.Ports {
		name := prefix + p.Name
		kind := WireKind
		if top {
			switch {
			case p.Direction == ir.Input && isClockType(p.Type):
				kind = ClockKind
			case p.Direction == ir.Input:
				kind = InputPortKind
			default:
				kind = OutputPortKind
			}
		}
		s, err := b.addSymbol(name, kind, p.Type.Width(), p.Type.Signed(), 1)
		if err != nil {
			return err
		}
		if top {
			if p.Direction == ir.Input {
				b.st.inputs = append(b.st.inputs, s)
			} else {
				b.st.outputs = append(b.st.outputs, s)
			}
		}
	}
	for _, stmt := range m.Body {
		if err := b.createStatementSymbols(prefix, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *tableBuilder) createStatementSymbols(prefix string, stmt ir.Statement) error {
	switch x := stmt.(type) {
	case ir.DefNode:
		w, signed, err := b.st.ExprType(prefix, x.Value)
		if err != nil {
			return errors.Wrap(err, "node "+prefix+x.Name)
		}
		_, err = b.addSymbol(prefix+x.Name, WireKind, w, signed, 1)
		return err
	case ir.DefWire:
		_, err := b.addSymbol(prefix+x.Name, WireKind, x.Type.Width(), x.Type.Signed(), 1)
		return err
	case ir.DefRegister:
		r, err := b.addSymbol(prefix+x.Name, RegisterKind, x.Type.Width(), x.Type.Signed(), 1)
		if err != nil {
			return err
		}
		prev, err := b.addSymbol(r.Name+PrevSuffix, WireKind, x.Type.Width(), x.Type.Signed(), 1)
		if err != nil {
			return err
		}
		r.Prev = prev
		b.st.registers = append(b.st.registers, r)
		if x.Reset != nil {
			b.st.resetOf[r] = resetInfo{prefix: prefix, cond: x.Reset, init: x.Init}
		}
		return nil
	case ir.DefMemory:
		if x.Depth < 1 {
			return errors.Errorf("memory %s has depth %d", prefix+x.Name, x.Depth)
		}
		mem, err := b.addSymbol(prefix+x.Name, MemKind, x.DataType.Width(), x.DataType.Signed(), x.Depth)
		if err != nil {
			return err
		}
		b.st.memories = append(b.st.memories, mem)
		aw := addrWidth(x.Depth)
		for _, rd := range x.Readers {
			base := mem.Name + "." + rd
			if err := b.addPins(base, aw, x.DataType); err != nil {
				return err
			}
		}
		for _, wr := range x.Writers {
			base := mem.Name + "." + wr
			if err := b.addPins(base, aw, x.DataType); err != nil {
				return err
			}
			if _, err := b.addSymbol(base+".mask", WireKind, 1, false, 1); err != nil {
				return err
			}
		}
		return nil
	case ir.DefInstance:
		decl := b.circuit.FindModule(x.Module)
		if decl == nil {
			return errors.Errorf("instance %s of unknown module %q", prefix+x.Name, x.Module)
		}
		switch sub := decl.(type) {
		case *ir.Module:
			return b.createModuleSymbols(prefix+x.Name+".", sub, false)
		case *ir.ExtModule:
			return b.createBlackBoxSymbols(prefix+x.Name, sub)
		}
		return nil
	case ir.Connect:
		return nil
	case ir.Stop:
		_, err := b.addSymbol(prefix+b.genName("stop", x.Name), StopKind, 1, false, 1)
		return err
	case ir.Print:
		_, err := b.addSymbol(prefix+b.genName("print", x.Name), WireKind, 1, false, 1)
		return err
	default:
		return errors.Errorf("unknown statement %T", stmt)
	}
}

// addPins creates the addr/en/clk/data pins of one memory port.
func (b *tableBuilder) addPins(base string, addrW int, data ir.Type) error {
	if _, err := b.addSymbol(base+".addr", WireKind, addrW, false, 1); err != nil {
		return err
	}
	if _, err := b.addSymbol(base+".en", WireKind, 1, false, 1); err != nil {
		return err
	}
	if _, err := b.addSymbol(base+".clk", WireKind, 1, false, 1); err != nil {
		return err
	}
	_, err := b.addSymbol(base+".data", WireKind, data.Width(), data.Signed(), 1)
	return err
}

// createBlackBoxSymbols resolves the instance against the registry and
// creates its pin symbols.
func (b *tableBuilder) createBlackBoxSymbols(instName string, m *ir.ExtModule) error {
	if _, err := b.registry.Resolve(instName, m.DefName); err != nil {
		return err
	}
	for _, p := range m.Ports {
		kind := WireKind
		if p.Direction == ir.Output {
			kind = BlackBoxOutputKind
		}
		if _, err := b.addSymbol(instName+"."+p.Name, kind, p.Type.Width(), p.Type.Signed(), 1); err != nil {
			return err
		}
	}
	return nil
}

// addEdge records parent -> child in both dependency maps.
func (st *SymbolTable) addEdge(parent, child *Symbol) {
	st.childrenOf[parent].add(child)
	st.parentsOf[child].add(parent)
}

func (b *tableBuilder) addExprEdges(prefix string, e ir.Expression, child *Symbol) error {
	var refs []*Symbol
	if err := b.st.collectRefs(prefix, e, &refs); err != nil {
		return err
	}
	for _, p := range refs {
		b.st.addEdge(p, child)
	}
	return nil
}

// markClock flags a symbol as clock-like: it gets a /prev shadow recording
// its prior value, and triggered symbols hang off that shadow so they sort
// after the transition check.
func (b *tableBuilder) markClock(clk *Symbol) (*Symbol, error) {
	if clk.Prev != nil {
		return clk.Prev, nil
	}
	prev, err := b.addSymbol(clk.Name+PrevSuffix, PrevClockKind, clk.Width, false, 1)
	if err != nil {
		return nil, err
	}
	clk.Prev = prev
	b.st.clocks = append(b.st.clocks, clk)
	b.st.addEdge(clk, prev)
	return prev, nil
}

// addTriggered links a clock to a symbol written on that clock's edge.
func (b *tableBuilder) addTriggered(prefix string, clockExpr ir.Expression, sym *Symbol) error {
	name, err := FlattenName(prefix, clockExpr)
	if err != nil {
		return err
	}
	clk := b.st.Get(name)
	if clk == nil {
		return errors.Errorf("unresolved clock %q", name)
	}
	prev, err := b.markClock(clk)
	if err != nil {
		return err
	}
	b.st.addEdge(prev, sym)
	b.st.clockedBy[clk] = append(b.st.clockedBy[clk], sym)
	return nil
}

// addModuleEdges makes the second walk, recording dependency edges now
// that every symbol exists.
func (b *tableBuilder) addModuleEdges(prefix string, m *ir.Module) error {
	b.genCount = 0
	return b.addBodyEdges(prefix, m)
}

func (b *tableBuilder) addBodyEdges(prefix string, m *ir.Module) error {
	for _, stmt := range m.Body {
		switch x := stmt.(type) {
		case ir.DefNode:
			sym := b.st.Get(prefix + x.Name)
			if err := b.addExprEdges(prefix, x.Value, sym); err != nil {
				return err
			}
		case ir.DefRegister:
			r := b.st.Get(prefix + x.Name)
			if err := b.addTriggered(prefix, x.Clock, r); err != nil {
				return err
			}
			if x.Reset != nil {
				if err := b.addExprEdges(prefix, x.Reset, r.Prev); err != nil {
					return err
				}
				if err := b.addExprEdges(prefix, x.Init, r.Prev); err != nil {
					return err
				}
			}
		case ir.DefMemory:
			mem := b.st.Get(prefix + x.Name)
			for _, rd := range x.Readers {
				data := b.st.Get(mem.Name + "." + rd + ".data")
				b.st.addEdge(mem, data)
				b.st.addEdge(b.st.Get(mem.Name+"."+rd+".addr"), data)
				b.st.addEdge(b.st.Get(mem.Name+"."+rd+".en"), data)
			}
			for _, wr := range x.Writers {
				clkPin := b.st.Get(mem.Name + "." + wr + ".clk")
				prev, err := b.markClock(clkPin)
				if err != nil {
					return err
				}
				b.st.addEdge(prev, mem)
				b.st.clockedBy[clkPin] = append(b.st.clockedBy[clkPin], mem)
			}
		case ir.DefInstance:
			switch sub := b.circuit.FindModule(x.Module).(type) {
			case *ir.Module:
				if err := b.addBodyEdges(prefix+x.Name+".", sub); err != nil {
					return err
				}
			case *ir.ExtModule:
				if err := b.addBlackBoxEdges(prefix+x.Name, sub); err != nil {
					return err
				}
			}
		case ir.Connect:
			destName, err := FlattenName(prefix, x.Dest)
			if err != nil {
				return err
			}
			dest := b.st.Get(destName)
			if dest == nil {
				return errors.Errorf("connect to unresolved %q", destName)
			}
			if dest.Kind == RegisterKind {
				dest = dest.Prev
			}
			if err := b.addExprEdges(prefix, x.Source, dest); err != nil {
				return err
			}
		case ir.Stop:
			sym := b.st.Get(prefix + b.genName("stop", x.Name))
			if err := b.addExprEdges(prefix, x.Cond, sym); err != nil {
				return err
			}
			if err := b.addTriggered(prefix, x.Clock, sym); err != nil {
				return err
			}
		case ir.Print:
			sym := b.st.Get(prefix + b.genName("print", x.Name))
			if err := b.addExprEdges(prefix, x.Cond, sym); err != nil {
				return err
			}
			for _, a := range x.Args {
				if err := b.addExprEdges(prefix, a, sym); err != nil {
					return err
				}
			}
			if err := b.addTriggered(prefix, x.Clock, sym); err != nil {
				return err
			}
		}
	}
	return nil
}

// addBlackBoxEdges derives pin edges from the implementation's declared
// output -> inputs relation, and flags clock typed pins.
func (b *tableBuilder) addBlackBoxEdges(instName string, m *ir.ExtModule) error {
	bb, err := b.registry.Resolve(instName, m.DefName)
	if err != nil {
		return err
	}
	for _, p := range m.Ports {
		if p.Direction != ir.Output {
			continue
		}
		out := b.st.Get(instName + "." + p.Name)
		for _, dep := range bb.OutputDependencies(p.Name) {
			in := b.st.Get(instName + "." + dep)
			if in == nil {
				return errors.Errorf("black box %s declares unknown input %q for output %s", bb.Name(), dep, p.Name)
			}
			b.st.addEdge(in, out)
		}
	}
	for _, p := range m.Ports {
		if p.Direction == ir.Input && isClockType(p.Type) {
			pin := b.st.Get(instName + "." + p.Name)
			prev, err := b.markClock(pin)
			if err != nil {
				return err
			}
			// outputs of a clocked box re-evaluate after the edge fires
			for _, o := range m.Ports {
				if o.Direction == ir.Output {
					b.st.addEdge(prev, b.st.Get(instName+"."+o.Name))
				}
			}
		}
	}
	return nil
}

// sortGraph runs Kahn's algorithm over the dependency edges, ties broken
// by symbol name so that execution order is deterministic across runs. The
// register staging-to-output edge is never recorded in these maps, so any
// leftover is a genuine combinational cycle.
func (st *SymbolTable) sortGraph(allowCycles bool) error {
	indegree := make(map[*Symbol]int, len(st.sorted))
	var ready []string
	for _, s := range st.sorted {
		indegree[s] = len(st.parentsOf[s])
		if indegree[s] == 0 {
			ready = append(ready, s.Name)
		}
	}
	sort.Strings(ready)

	st.topoOrder = st.topoOrder[:0]
	for len(ready) > 0 {
		s := st.symbols[ready[0]]
		ready = ready[1:]
		st.sortKey[s] = len(st.topoOrder)
		st.topoOrder = append(st.topoOrder, s)
		for c := range st.childrenOf[s] {
			indegree[c]--
			if indegree[c] == 0 {
				i := sort.SearchStrings(ready, c.Name)
				ready = append(ready, "")
				copy(ready[i+1:], ready[i:])
				ready[i] = c.Name
			}
		}
	}

	if len(st.topoOrder) == len(st.sorted) {
		return nil
	}
	var cyclic []string
	for _, s := range st.sorted {
		if _, ok := st.sortKey[s]; !ok {
			cyclic = append(cyclic, s.Name)
		}
	}
	if !allowCycles {
		return errors.Errorf("combinational cycle through: %s", strings.Join(cyclic, ", "))
	}
	log.Warnf("combinational cycle through %s, breaking in name order", strings.Join(cyclic, ", "))
	for _, name := range cyclic {
		s := st.symbols[name]
		st.sortKey[s] = len(st.topoOrder)
		st.topoOrder = append(st.topoOrder, s)
	}
	return nil
}

func isClockType(t ir.Type) bool {
	_, ok := t.(ir.ClockType)
	return ok
}

// addrWidth returns the address width for a memory of the given depth.
func addrWidth(depth int) int {
	w := 1
	for 1<<uint(w) < depth {
		w++
	}
	return w
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// minSignedWidth returns the smallest signed width holding v.
func minSignedWidth(v *big.Int) int {
	if v.Sign() >= 0 {
		return v.BitLen() + 1
	}
	n := v.BitLen()
	// -2^(n-1) fits in n bits, every other negative needs one more
	abs := new(big.Int).Neg(v)
	if abs.BitLen() == n && abs.TrailingZeroBits() == uint(n-1) {
		return n
	}
	return n + 1
}
