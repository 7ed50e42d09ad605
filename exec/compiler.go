// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package exec

import (
	"fmt"
	"io"
	"math/big"

	"github.com/pkg/errors"

	"github.com/TheAIBot/treadle/ir"
)

// bbPin ties a black box input pin symbol to the instance and local pin
// name to notify on writes.
type bbPin struct {
	bb   BlackBox
	name string
}

// The Compiler lowers each statement of the circuit into assigners,
// registering them with the symbol table and the scheduler. It runs once,
// right after the symbol table is built and data is allocated.
type Compiler struct {
	circuit  *ir.Circuit
	st       *SymbolTable
	store    *DataStore
	sched    *Scheduler
	registry *BlackBoxRegistry

	validIfRandom bool
	writer        io.Writer
	stats         *RunStats
	rng           uint64

	bbPins   map[*Symbol]bbPin
	genCount int
}

// NewCompiler builds a compiler over an already-allocated symbol table and
// store. Print statements write to w.
func NewCompiler(circuit *ir.Circuit, st *SymbolTable, store *DataStore, sched *Scheduler,
	registry *BlackBoxRegistry, validIfRandom bool, w io.Writer) *Compiler {
	return &Compiler{
		circuit:       circuit,
		st:            st,
		store:         store,
		sched:         sched,
		registry:      registry,
		validIfRandom: validIfRandom,
		writer:        w,
		stats:         &RunStats{},
		rng:           0x2545f4914f6cdd1d,
		bbPins:        make(map[*Symbol]bbPin),
	}
}

// Stats returns the recoverable-incident counters of the compiled
// circuit.
func (c *Compiler) Stats() *RunStats { return c.stats }

// Compile walks the circuit from the main module, emits every assigner
// and sorts the scheduler lists.
func (c *Compiler) Compile() error {
	top, ok := c.circuit.FindModule(c.circuit.Main).(*ir.Module)
	if !ok {
		return errors.Errorf("main module %q is not compilable", c.circuit.Main)
	}
	c.genCount = 0
	if err := c.compileModule("", top); err != nil {
		return err
	}
	if err := c.finishRegisters(); err != nil {
		return err
	}
	if err := c.makeTriggerCheckers(); err != nil {
		return err
	}
	c.sched.SortInputSensitiveAssigns()
	c.sched.SortTriggeredAssigns()
	return nil
}

func (c *Compiler) genName(base, explicit string) string {
	if explicit != "" {
		return explicit
	}
	c.genCount++
	return base + "_" + fmt.Sprint(c.genCount-1)
}

func (c *Compiler) compileModule(prefix string, m *ir.Module) error {
	for _, stmt := range m.Body {
		var err error
		switch x := stmt.(type) {
		case ir.DefNode:
			err = c.compileAssign(prefix, c.st.Get(prefix+x.Name), x.Value)
		case ir.DefWire:
			// driven by connects
		case ir.DefRegister:
			err = c.compileRegisterCommit(prefix, x)
		case ir.DefMemory:
			err = c.compileMemory(prefix, x)
		case ir.DefInstance:
			switch sub := c.circuit.FindModule(x.Module).(type) {
			case *ir.Module:
				err = c.compileModule(prefix+x.Name+".", sub)
			case *ir.ExtModule:
				err = c.compileBlackBox(prefix+x.Name, sub)
			}
		case ir.Connect:
			err = c.compileConnect(prefix, x)
		case ir.Stop:
			err = c.compileStop(prefix, x)
		case ir.Print:
			err = c.compilePrint(prefix, x)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// compileAssign emits the assigner computing expr into sym.
func (c *Compiler) compileAssign(prefix string, sym *Symbol, expr ir.Expression) error {
	cv, err := c.compileExpr(prefix, expr)
	if err != nil {
		return errors.Wrap(err, sym.Name)
	}
	var run func()
	if sym.Size == BigSize {
		f := cv.asBig()
		run = func() { c.store.SetBig(sym, f()) }
	} else {
		f := cv.asLong()
		run = func() { c.store.SetLong(sym, f()) }
	}
	if pin, ok := c.bbPins[sym]; ok {
		inner := run
		run = func() {
			inner()
			pin.bb.InputChanged(pin.name, c.store.GetValue(sym))
		}
	}
	return c.st.registerAssigner(sym, NewAssigner(sym, prefix, expr, run))
}

// compileConnect routes a connect to its real target: the staging slot for
// registers, the pin symbol otherwise.
func (c *Compiler) compileConnect(prefix string, x ir.Connect) error {
	destName, err := FlattenName(prefix, x.Dest)
	if err != nil {
		return err
	}
	dest := c.st.Get(destName)
	if dest == nil {
		return errors.Errorf("connect to unresolved %q", destName)
	}
	src := x.Source
	if dest.Kind == RegisterKind {
		reg := dest
		dest = reg.Prev
		if info, ok := c.st.resetOf[reg]; ok {
			src = ir.Mux{Cond: info.cond, TrueValue: info.init, FalseValue: src}
		}
	}
	return c.compileAssign(prefix, dest, src)
}

// compileRegisterCommit emits the triggered copy of the staged next-state
// into the canonical register slot.
func (c *Compiler) compileRegisterCommit(prefix string, x ir.DefRegister) error {
	r := c.st.Get(prefix + x.Name)
	clkName, err := FlattenName(prefix, x.Clock)
	if err != nil {
		return err
	}
	clk := c.st.Get(clkName)
	if clk == nil {
		return errors.Errorf("register %s has unresolved clock %q", r.Name, clkName)
	}
	prev := r.Prev
	var run func()
	if r.Size == BigSize {
		run = func() { c.store.SetBig(r, c.store.GetBig(prev)) }
	} else {
		run = func() { c.store.SetLong(r, c.store.GetLong(prev)) }
	}
	c.sched.AddTriggered(clk, NewAssigner(r, "", nil, run))
	return nil
}

// finishRegisters gives every register whose next-state was never
// connected a hold assigner, reset still applied when declared.
func (c *Compiler) finishRegisters() error {
	for _, r := range c.st.Registers() {
		if c.st.AssignerFor(r.Prev) != nil {
			continue
		}
		var src ir.Expression = ir.Reference{Name: r.Name}
		prefix := ""
		if info, ok := c.st.resetOf[r]; ok {
			// the reference to r must resolve under the same prefix
			local := r.Name[len(info.prefix):]
			src = ir.Mux{Cond: info.cond, TrueValue: info.init, FalseValue: ir.Reference{Name: local}}
			prefix = info.prefix
		}
		if err := c.compileAssign(prefix, r.Prev, src); err != nil {
			return err
		}
	}
	return nil
}

// compileMemory emits the combinational read port assigners and the
// triggered write port assigners.
func (c *Compiler) compileMemory(prefix string, x ir.DefMemory) error {
	mem := c.st.Get(prefix + x.Name)
	depth := int64(x.Depth)
	for _, rd := range x.Readers {
		base := mem.Name + "." + rd
		addr := c.st.Get(base + ".addr")
		data := c.st.Get(base + ".data")
		var run func()
		if mem.Size == BigSize {
			run = func() {
				a := c.store.GetLong(addr)
				if a < 0 || a >= depth {
					c.store.SetBig(data, new(big.Int))
					return
				}
				c.store.SetBig(data, c.store.ReadBigAt(mem.Index+int(a)))
			}
		} else {
			run = func() {
				a := c.store.GetLong(addr)
				if a < 0 || a >= depth {
					c.store.SetLong(data, 0)
					return
				}
				c.store.SetLong(data, c.store.ReadLongAt(mem.Size, mem.Index+int(a)))
			}
		}
		if err := c.st.registerAssigner(data, NewAssigner(data, "", nil, run)); err != nil {
			return err
		}
	}
	for _, wr := range x.Writers {
		base := mem.Name + "." + wr
		clkPin := c.st.Get(base + ".clk")
		en := c.st.Get(base + ".en")
		mask := c.st.Get(base + ".mask")
		addr := c.st.Get(base + ".addr")
		data := c.st.Get(base + ".data")
		run := func() {
			if c.store.GetLong(en) == 0 || c.store.GetLong(mask) == 0 {
				return
			}
			a := c.store.GetLong(addr)
			if a < 0 || a >= depth {
				return
			}
			_ = c.store.SetIndexed(mem, int(a), c.store.GetValue(data))
		}
		c.sched.AddTriggered(clkPin, NewAssigner(mem, "", nil, run))
	}
	return nil
}

// compileBlackBox emits one output assigner per output pin, dispatching
// into the implementation, and wires input and clock notifications.
func (c *Compiler) compileBlackBox(instName string, m *ir.ExtModule) error {
	bb, err := c.registry.Resolve(instName, m.DefName)
	if err != nil {
		return err
	}
	for _, p := range m.Ports {
		pin := c.st.Get(instName + "." + p.Name)
		if p.Direction == ir.Input {
			if isClockType(p.Type) {
				name := p.Name
				c.sched.AddClockNotifier(pin, func(t Transition) { bb.ClockChange(t, name) })
			} else {
				c.bbPins[pin] = bbPin{bb: bb, name: p.Name}
			}
			continue
		}
		deps := bb.OutputDependencies(p.Name)
		depSyms := make([]*Symbol, len(deps))
		for i, d := range deps {
			depSyms[i] = c.st.Get(instName + "." + d)
			if depSyms[i] == nil {
				return errors.Errorf("black box %s: unknown dependency %q", bb.Name(), d)
			}
		}
		out := pin
		tpe := p.Type
		name := p.Name
		run := func() {
			vals := make([]*big.Int, len(depSyms))
			for i, d := range depSyms {
				vals[i] = c.store.GetValue(d)
			}
			c.store.SetValue(out, bb.GetOutput(vals, tpe, name))
		}
		if err := c.st.registerAssigner(out, NewAssigner(out, "", nil, run)); err != nil {
			return err
		}
	}
	return nil
}

// compileStop emits the triggered latch write. The first stop to fire
// wins; the latch holds code+1 so that zero means running.
func (c *Compiler) compileStop(prefix string, x ir.Stop) error {
	sym := c.st.Get(prefix + c.genName("stop", x.Name))
	stopped := c.st.Get(StoppedSymbolName)
	cond, err := c.compileExpr(prefix, x.Cond)
	if err != nil {
		return errors.Wrap(err, sym.Name)
	}
	condF := cond.asLong()
	code := int64(x.Code)
	clkName, err := FlattenName(prefix, x.Clock)
	if err != nil {
		return err
	}
	clk := c.st.Get(clkName)
	if clk == nil {
		return errors.Errorf("stop %s has unresolved clock %q", sym.Name, clkName)
	}
	run := func() {
		if condF() == 0 || c.store.GetLong(stopped) != 0 {
			return
		}
		c.store.SetLong(sym, 1)
		c.store.SetLong(stopped, code+1)
	}
	a := NewAssigner(sym, "", nil, run)
	a.sample = true
	c.sched.AddTriggered(clk, a)
	return nil
}

// compilePrint emits the triggered formatted write. The format verbs %d,
// %x, %b and %c consume the argument expressions in order.
func (c *Compiler) compilePrint(prefix string, x ir.Print) error {
	sym := c.st.Get(prefix + c.genName("print", x.Name))
	cond, err := c.compileExpr(prefix, x.Cond)
	if err != nil {
		return errors.Wrap(err, sym.Name)
	}
	condF := cond.asLong()
	args := make([]func() interface{}, len(x.Args))
	for i, a := range x.Args {
		cv, err := c.compileExpr(prefix, a)
		if err != nil {
			return errors.Wrap(err, sym.Name)
		}
		if cv.isBig() {
			f := cv.asBig()
			args[i] = func() interface{} { return f() }
		} else {
			f := cv.asLong()
			args[i] = func() interface{} { return f() }
		}
	}
	format := x.Format
	clkName, err := FlattenName(prefix, x.Clock)
	if err != nil {
		return err
	}
	clk := c.st.Get(clkName)
	if clk == nil {
		return errors.Errorf("print %s has unresolved clock %q", sym.Name, clkName)
	}
	run := func() {
		if condF() == 0 || c.writer == nil {
			return
		}
		vals := make([]interface{}, len(args))
		for i, f := range args {
			vals[i] = f()
		}
		fmt.Fprintf(c.writer, format, vals...)
	}
	a := NewAssigner(sym, "", nil, run)
	a.sample = true
	c.sched.AddTriggered(clk, a)
	return nil
}

// makeTriggerCheckers gives every driven clock an assigner, placed right
// after the clock's own assigner in topological order, that detects the
// transition, fires the clock's bucket on a positive edge and records the
// value into the /prev shadow. Undriven clocks (top level ports) are
// toggled by the engine instead.
func (c *Compiler) makeTriggerCheckers() error {
	for _, clk := range c.st.Clocks() {
		if c.st.AssignerFor(clk) == nil {
			continue
		}
		clock := clk
		prev := clk.Prev
		run := func() {
			cur := c.store.GetLong(clock)
			last := c.store.GetLong(prev)
			if cur != last {
				if cur != 0 {
					c.sched.NotifyClock(clock, PositiveEdge)
					c.sched.ExecuteTriggeredAssigns(clock)
				} else {
					c.sched.NotifyClock(clock, NegativeEdge)
				}
			}
			c.store.SetLong(prev, cur)
		}
		if err := c.st.registerAssigner(prev, NewAssigner(prev, "", nil, run)); err != nil {
			return err
		}
	}
	return nil
}

// nextRandom steps the deterministic xorshift stream used for randomized
// invalid signals.
func (c *Compiler) nextRandom() int64 {
	c.rng ^= c.rng << 13
	c.rng ^= c.rng >> 7
	c.rng ^= c.rng << 17
	return int64(c.rng >> 1)
}

// compileExpr translates an expression into its evaluation closure. The
// domain is big.Int as soon as the result or any operand leaves the int64
// range, int64 otherwise.
func (c *Compiler) compileExpr(prefix string, e ir.Expression) (compiled, error) {
	w, signed, err := c.st.ExprType(prefix, e)
	if err != nil {
		return compiled{}, err
	}
	switch x := e.(type) {
	case ir.Reference, ir.SubField:
		name, _ := FlattenName(prefix, e)
		sym := c.st.Get(name)
		if sym.Size == BigSize {
			return compiled{width: w, signed: signed, big: func() *big.Int { return c.store.GetBig(sym) }}, nil
		}
		return compiled{width: w, signed: signed, long: func() int64 { return c.store.GetLong(sym) }}, nil
	case ir.UIntLiteral:
		if w > LongThreshold {
			v := new(big.Int).Set(x.Value)
			return compiled{width: w, big: func() *big.Int { return v }}, nil
		}
		v := x.Value.Int64()
		return compiled{width: w, long: func() int64 { return v }}, nil
	case ir.SIntLiteral:
		if w > LongThreshold {
			v := new(big.Int).Set(x.Value)
			return compiled{width: w, signed: true, big: func() *big.Int { return v }}, nil
		}
		v := x.Value.Int64()
		return compiled{width: w, signed: true, long: func() int64 { return v }}, nil
	case ir.Mux:
		cond, err := c.compileExpr(prefix, x.Cond)
		if err != nil {
			return compiled{}, err
		}
		tv, err := c.compileExpr(prefix, x.TrueValue)
		if err != nil {
			return compiled{}, err
		}
		fv, err := c.compileExpr(prefix, x.FalseValue)
		if err != nil {
			return compiled{}, err
		}
		condF := cond.asLong()
		if w > LongThreshold || tv.isBig() || fv.isBig() {
			t, f := tv.asBig(), fv.asBig()
			return compiled{width: w, signed: signed, big: func() *big.Int {
				if condF() != 0 {
					return t()
				}
				return f()
			}}, nil
		}
		t, f := tv.asLong(), fv.asLong()
		return compiled{width: w, signed: signed, long: func() int64 {
			if condF() != 0 {
				return t()
			}
			return f()
		}}, nil
	case ir.ValidIf:
		cond, err := c.compileExpr(prefix, x.Cond)
		if err != nil {
			return compiled{}, err
		}
		val, err := c.compileExpr(prefix, x.Value)
		if err != nil {
			return compiled{}, err
		}
		if !c.validIfRandom {
			return val, nil
		}
		condF := cond.asLong()
		if val.isBig() {
			f := val.asBig()
			return compiled{width: w, signed: signed, big: func() *big.Int {
				if condF() != 0 {
					return f()
				}
				return normalizeBig(big.NewInt(c.nextRandom()), w, signed)
			}}, nil
		}
		f := val.asLong()
		return compiled{width: w, signed: signed, long: func() int64 {
			if condF() != 0 {
				return f()
			}
			return normalizeLong(c.nextRandom(), w, signed)
		}}, nil
	case ir.DoPrim:
		args := make([]compiled, len(x.Args))
		widths := make([]int, len(x.Args))
		isBig := w > LongThreshold
		for i, a := range x.Args {
			cv, err := c.compileExpr(prefix, a)
			if err != nil {
				return compiled{}, err
			}
			args[i] = cv
			widths[i] = cv.width
			isBig = isBig || cv.isBig()
		}
		if isBig {
			f, err := bigPrim(x.Op, args, widths, x.Consts, c.stats)
			if err != nil {
				return compiled{}, err
			}
			return compiled{width: w, signed: signed, big: f}, nil
		}
		f, err := longPrim(x.Op, args, widths, x.Consts, c.stats)
		if err != nil {
			return compiled{}, err
		}
		return compiled{width: w, signed: signed, long: f}, nil
	default:
		return compiled{}, errors.Errorf("cannot compile expression %s", e.String())
	}
}
