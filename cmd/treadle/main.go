// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command treadle runs built-in demo circuits through the interpreter:
// a resettable counter and a signed adder with a registered output. Useful to try the
// engine and to produce example waveform dumps.
package main

import (
	"fmt"
	"math/big"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/TheAIBot/treadle"
	"github.com/TheAIBot/treadle/ir"
)

var (
	flagCycles  int
	flagVCD     string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "treadle",
		Short: "cycle accurate interpreter for lowered netlists",
	}
	root.PersistentFlags().IntVarP(&flagCycles, "cycles", "n", 10, "number of clock cycles to run")
	root.PersistentFlags().StringVar(&flagVCD, "vcd", "", "write a value change dump to this file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "trace every assignment")

	root.AddCommand(&cobra.Command{
		Use:   "counter",
		Short: "run a 32 bit resettable counter",
		RunE:  runCounter,
	})
	root.AddCommand(&cobra.Command{
		Use:   "adder",
		Short: "run a signed adder with a registered output",
		RunE:  runAdder,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newEngine(circuit *ir.Circuit) (*treadle.Engine, error) {
	if flagVerbose {
		log.SetLevel(log.DebugLevel)
	}
	e, err := treadle.NewEngine(circuit, treadle.Options{Verbose: flagVerbose})
	if err != nil {
		return nil, err
	}
	if flagVCD != "" {
		if err := e.MakeVCDLogger(flagVCD, false); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func finish(e *treadle.Engine) error {
	if flagVCD != "" {
		if err := e.DisableVCD(); err != nil {
			return err
		}
		log.Infof("wrote %s", flagVCD)
	}
	return nil
}

// counterCircuit is a register counting up every cycle, cleared by the
// reset input.
func counterCircuit() *ir.Circuit {
	return &ir.Circuit{
		Main: "Counter",
		Modules: []ir.ModuleDecl{
			&ir.Module{
				Name: "Counter",
				Ports: []ir.Port{
					{Name: "clock", Direction: ir.Input, Type: ir.Clock()},
					{Name: "reset", Direction: ir.Input, Type: ir.UInt(1)},
					{Name: "io_count", Direction: ir.Output, Type: ir.UInt(32)},
				},
				Body: []ir.Statement{
					ir.DefRegister{Name: "counter", Type: ir.UInt(32), Clock: ir.Ref("clock"),
						Reset: ir.Ref("reset"), Init: ir.UIntLit(0, 32)},
					ir.DefNode{Name: "next", Value: ir.Prim(ir.Tail,
						[]ir.Expression{ir.Prim(ir.Add, []ir.Expression{ir.Ref("counter"), ir.UIntLit(1, 32)})}, 1)},
					ir.Connect{Dest: ir.Ref("counter"), Source: ir.Ref("next")},
					ir.Connect{Dest: ir.Ref("io_count"), Source: ir.Ref("counter")},
				},
			},
		},
	}
}

// adderCircuit loads the signed 8 bit sum into a 10 bit register each
// cycle; the register drives the output and does not accumulate.
func adderCircuit() *ir.Circuit {
	return &ir.Circuit{
		Main: "Adder",
		Modules: []ir.ModuleDecl{
			&ir.Module{
				Name: "Adder",
				Ports: []ir.Port{
					{Name: "clock", Direction: ir.Input, Type: ir.Clock()},
					{Name: "io_a", Direction: ir.Input, Type: ir.SInt(8)},
					{Name: "io_b", Direction: ir.Input, Type: ir.SInt(8)},
					{Name: "io_c", Direction: ir.Output, Type: ir.SInt(10)},
				},
				Body: []ir.Statement{
					ir.DefRegister{Name: "acc", Type: ir.SInt(10), Clock: ir.Ref("clock")},
					ir.DefNode{Name: "sum", Value: ir.Prim(ir.Add,
						[]ir.Expression{ir.Ref("io_a"), ir.Ref("io_b")})},
					ir.Connect{Dest: ir.Ref("acc"), Source: ir.Prim(ir.Pad,
						[]ir.Expression{ir.Ref("sum")}, 10)},
					ir.Connect{Dest: ir.Ref("io_c"), Source: ir.Ref("acc")},
				},
			},
		},
	}
}

func runCounter(cmd *cobra.Command, args []string) error {
	e, err := newEngine(counterCircuit())
	if err != nil {
		return err
	}
	if err := e.SetValue("reset", big.NewInt(0)); err != nil {
		return err
	}
	for i := 0; i < flagCycles; i++ {
		if err := e.Cycle(); err != nil {
			return err
		}
		v, err := e.GetValue("io_count")
		if err != nil {
			return err
		}
		fmt.Printf("cycle %2d  io_count = %s\n", i+1, v)
	}
	return finish(e)
}

func runAdder(cmd *cobra.Command, args []string) error {
	e, err := newEngine(adderCircuit())
	if err != nil {
		return err
	}
	pairs := [][2]int64{{50, 40}, {-50, -80}, {100, 27}, {-128, -128}}
	for i := 0; i < flagCycles; i++ {
		p := pairs[i%len(pairs)]
		if err := e.SetValue("io_a", big.NewInt(p[0])); err != nil {
			return err
		}
		if err := e.SetValue("io_b", big.NewInt(p[1])); err != nil {
			return err
		}
		if err := e.Cycle(); err != nil {
			return err
		}
		v, err := e.GetValue("io_c")
		if err != nil {
			return err
		}
		fmt.Printf("cycle %2d  %4d + %4d -> io_c = %s\n", i+1, p[0], p[1], v)
	}
	return finish(e)
}
