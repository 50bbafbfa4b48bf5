// Package registry holds the set of executable operations a graph node can
// reference. The compiler resolves node op names against a Registry and uses
// the declared parameter/result types for validation; the executor calls the
// registered eval functions.
package registry

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// MonitorOp is the zero-effect passthrough operation spliced into graphs to
// observe values. It forwards its single input unchanged; the executor
// additionally caches the forwarded value under the monitor's path.
const MonitorOp = "core.monitor"

// Preferences are editor-level settings that compiled programs evaluate
// against. Changing them requires a recompile of the last known graph.
type Preferences struct {
	ViewMode    string
	DefaultFill string
}

// Env is the evaluation environment captured for one compiled program:
// loaded assets (fonts and the like) plus the current preferences.
type Env struct {
	Assets      map[string]string
	Preferences Preferences
}

// EvalFunc computes a node's output from its already-evaluated inputs.
type EvalFunc func(env *Env, args []cty.Value) (cty.Value, error)

// Op describes one executable operation: its name, the types of its
// parameters and result, and the function that evaluates it. A parameter
// type of cty.DynamicPseudoType accepts any value.
type Op struct {
	Name   string
	Params []cty.Type
	Result cty.Type
	Eval   EvalFunc
}

// Registry maps op names to their definitions for a single application
// instance.
type Registry struct {
	ops map[string]*Op
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{ops: make(map[string]*Op)}
}

// Register adds an op definition. Registering the same name twice is a
// wiring mistake and returns an error.
func (r *Registry) Register(op *Op) error {
	if op.Name == "" {
		return fmt.Errorf("op has no name")
	}
	if _, exists := r.ops[op.Name]; exists {
		return fmt.Errorf("op %q already registered", op.Name)
	}
	r.ops[op.Name] = op
	return nil
}

// Lookup returns the op registered under name.
func (r *Registry) Lookup(name string) (*Op, bool) {
	op, ok := r.ops[name]
	return op, ok
}
