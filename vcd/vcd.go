// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package vcd writes value change dump files. It implements the engine's
// ValueLogger interface; the engine feeds it slot writes and time marks
// and the recorder takes care of the file format.
package vcd

import (
	"bufio"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// idAlphabet is the printable range VCD identifier codes are built from.
const idAlphabet = 94

// A Recorder accumulates declarations, then streams value changes.
type Recorder struct {
	f *os.File
	w *bufio.Writer

	ids     map[string]string
	widths  map[string]int
	order   []string
	started bool

	time        uint64
	timeWritten bool
	last        map[string]string
}

// NewRecorder creates the dump file. Declare wires with AddWire, then
// call Start before the first change is logged.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create vcd file")
	}
	return &Recorder{
		f:      f,
		w:      bufio.NewWriter(f),
		ids:    make(map[string]string),
		widths: make(map[string]int),
		last:   make(map[string]string),
	}, nil
}

// AddWire declares a wire before the header is written. Adding after
// Start has no effect.
func (r *Recorder) AddWire(name string, width int) {
	if r.started {
		return
	}
	if _, ok := r.ids[name]; ok {
		return
	}
	r.ids[name] = idCode(len(r.ids))
	r.widths[name] = width
	r.order = append(r.order, name)
}

// idCode builds the short identifier for the n-th wire.
func idCode(n int) string {
	var b []byte
	for {
		b = append(b, byte('!'+n%idAlphabet))
		n /= idAlphabet
		if n == 0 {
			break
		}
		n--
	}
	return string(b)
}

// Start writes the header. No initial value dump is written; values appear
// with the first LogChange for each wire.
func (r *Recorder) Start() error {
	if r.started {
		return nil
	}
	r.started = true
	sort.Strings(r.order)
	fmt.Fprintf(r.w, "$version treadle $end\n$timescale 1ns $end\n")
	fmt.Fprintf(r.w, "$scope module top $end\n")
	for _, name := range r.order {
		// dots are hierarchy separators in consumers, flatten them
		fmt.Fprintf(r.w, "$var wire %d %s %s $end\n", r.widths[name], r.ids[name], strings.ReplaceAll(name, ".", "__"))
	}
	fmt.Fprintf(r.w, "$upscope $end\n$enddefinitions $end\n")
	return r.w.Flush()
}

// SetTime advances simulation time; the mark is written lazily with the
// first change that follows.
func (r *Recorder) SetTime(t uint64) {
	if t == r.time {
		return
	}
	r.time = t
	r.timeWritten = false
}

// LogChange records a new value for a declared wire. Unchanged values and
// undeclared wires are skipped.
func (r *Recorder) LogChange(name string, width int, value *big.Int) {
	id, ok := r.ids[name]
	if !ok {
		return
	}
	rendered := renderValue(value, width)
	if r.last[name] == rendered {
		return
	}
	r.last[name] = rendered
	if !r.timeWritten {
		r.timeWritten = true
		fmt.Fprintf(r.w, "#%d\n", r.time)
	}
	if width == 1 {
		fmt.Fprintf(r.w, "%s%s\n", rendered, id)
	} else {
		fmt.Fprintf(r.w, "b%s %s\n", rendered, id)
	}
}

// renderValue produces the two's complement binary digits of value at the
// given width.
func renderValue(value *big.Int, width int) string {
	v := value
	if v.Sign() < 0 {
		m := new(big.Int).Lsh(big.NewInt(1), uint(width))
		m.Sub(m, big.NewInt(1))
		v = new(big.Int).And(v, m)
	}
	s := v.Text(2)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

// Write flushes buffered changes to disk.
func (r *Recorder) Write() error { return r.w.Flush() }

// Close flushes and closes the dump file.
func (r *Recorder) Close() error {
	if err := r.w.Flush(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}
