// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package treadle

import (
	"io"
	"math/big"

	"github.com/TheAIBot/treadle/exec"
)

// Options configures an engine at construction. The zero value is a
// usable default: lean execution, a single data buffer, strict cycle
// checking.
type Options struct {
	// Verbose enables per-assigner tracing at debug level.
	Verbose bool

	// RollbackBuffers is the number of historical snapshots kept by the
	// data store in addition to the current one.
	RollbackBuffers int

	// AllowCycles downgrades combinational cycles from a fatal error to a
	// warning, breaking each cycle at a deterministic point.
	AllowCycles bool

	// ValidIfIsRandom makes gated-validity expressions produce a
	// deterministic pseudo-random value while invalid, instead of passing
	// the value through.
	ValidIfIsRandom bool

	// BlackBoxFactories resolve external module implementations by
	// defname.
	BlackBoxFactories []exec.BlackBoxFactory

	// Writer receives the output of print statements. Defaults to
	// os.Stdout.
	Writer io.Writer
}

// A ValueLogger records value changes for waveform dumping. The engine
// notifies it on every slot write while enabled; the concrete file format
// is the recorder's business.
type ValueLogger interface {
	// SetTime advances the recorder's notion of simulation time.
	SetTime(t uint64)
	// LogChange records a new value for a named wire.
	LogChange(name string, width int, value *big.Int)
	// Write flushes buffered output to the underlying file.
	Write() error
	// Close flushes and releases the recorder.
	Close() error
}
