// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package exec

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/TheAIBot/treadle/ir"
)

// A Transition describes what a clock did during the current evaluation.
type Transition int

// Clock transitions.
const (
	NoTransition Transition = iota
	PositiveEdge
	NegativeEdge
)

func (t Transition) String() string {
	switch t {
	case PositiveEdge:
		return "posedge"
	case NegativeEdge:
		return "negedge"
	default:
		return "none"
	}
}

// A BlackBox implements the behavior of an external module. Instances are
// resolved by defname at compile time so that their declared dependencies
// become static edges of the dependency graph.
type BlackBox interface {
	Name() string

	// InputChanged is invoked whenever an input pin assigner writes a new
	// value.
	InputChanged(name string, value *big.Int)

	// ClockChange is invoked when a clock pin of the instance transitions.
	ClockChange(transition Transition, clockName string)

	// GetOutput computes the named output from the current input values.
	// The inputs slice follows the order of OutputDependencies(outputName).
	GetOutput(inputs []*big.Int, tpe ir.Type, outputName string) *big.Int

	// OutputDependencies lists the input pins the named output depends on.
	OutputDependencies(outputName string) []string
}

// A BlackBoxFactory produces instances for the defnames it knows. It
// returns ok=false for defnames it does not implement.
type BlackBoxFactory func(instanceName, defName string) (bb BlackBox, ok bool)

// A BlackBoxRegistry maps external module instances to their
// implementations. It is consulted during compilation only.
type BlackBoxRegistry struct {
	factories []BlackBoxFactory
	instances map[string]BlackBox
}

// NewBlackBoxRegistry builds a registry from the given factories.
func NewBlackBoxRegistry(factories []BlackBoxFactory) *BlackBoxRegistry {
	return &BlackBoxRegistry{
		factories: factories,
		instances: make(map[string]BlackBox),
	}
}

// Resolve returns the implementation for the named instance, creating it on
// first use. An unresolved defname is a compile error.
func (r *BlackBoxRegistry) Resolve(instanceName, defName string) (BlackBox, error) {
	if bb, ok := r.instances[instanceName]; ok {
		return bb, nil
	}
	for _, f := range r.factories {
		if bb, ok := f(instanceName, defName); ok {
			r.instances[instanceName] = bb
			return bb, nil
		}
	}
	return nil, errors.Errorf("no black box factory for %q (instance %s)", defName, instanceName)
}

// Instances returns all resolved instances keyed by flattened instance
// name.
func (r *BlackBoxRegistry) Instances() map[string]BlackBox { return r.instances }
