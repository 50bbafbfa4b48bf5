// Package exec is the dynamic executor core: it holds the current compiled
// program, runs it against an input value, and retains the last value seen
// by every monitor node for later introspection. It is not safe for
// concurrent mutation; the runtime loop is its only writer.
package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/registry"
)

// ErrNotReady means no compiled program is installed yet.
var ErrNotReady = errors.New("runtime not ready")

// ErrPathNotFound means the path does not address a monitor that has
// observed a value in the current program. Values may legitimately be
// absent when a node was not reached during execution.
var ErrPathNotFound = errors.New("no introspectable value at path")

// Executor owns one compiled program at a time. Update replaces the program
// wholesale; readers never observe a partially updated one.
type Executor struct {
	mu       sync.RWMutex
	reg      *registry.Registry
	program  *compiler.Program
	monitors map[string]cty.Value
}

// New creates an executor resolving ops against reg.
func New(reg *registry.Registry) *Executor {
	return &Executor{reg: reg, monitors: make(map[string]cty.Value)}
}

// Update installs a new compiled program, discarding the previous one and
// all cached monitor values. It returns the program's resolved type
// information.
func (e *Executor) Update(p *compiler.Program) (compiler.TypeInfo, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot install a nil program")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.program = p
	e.monitors = make(map[string]cty.Value)
	return p.Types, nil
}

// InputType returns the installed program's declared input type. ok is
// false when no program is installed.
func (e *Executor) InputType() (cty.Type, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.program == nil {
		return cty.NilType, false
	}
	return e.program.InputType, true
}

// MonitorPaths returns the monitor paths of the installed program.
func (e *Executor) MonitorPaths() []nodeid.Path {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.program == nil {
		return nil
	}
	return e.program.MonitorPaths()
}

// Execute runs the installed program once against input, refreshing every
// monitor's cached value along the way, and returns the export value.
func (e *Executor) Execute(ctx context.Context, env *registry.Env, input cty.Value) (cty.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.program == nil {
		return cty.NilVal, ErrNotReady
	}

	outputs := make([]cty.Value, len(e.program.Nodes))
	resolve := func(ref compiler.InputRef) cty.Value {
		switch ref.Kind {
		case compiler.RefValue:
			return ref.Value
		case compiler.RefNetwork:
			return input
		default:
			return outputs[ref.Index]
		}
	}

	for i := range e.program.Nodes {
		if err := ctx.Err(); err != nil {
			return cty.NilVal, err
		}
		node := &e.program.Nodes[i]
		op, ok := e.reg.Lookup(node.Op)
		if !ok {
			// The compiler resolved every op; a miss here is a stale registry.
			return cty.NilVal, fmt.Errorf("op %q vanished from the registry", node.Op)
		}
		args := make([]cty.Value, len(node.Inputs))
		for j, ref := range node.Inputs {
			args[j] = resolve(ref)
		}
		out, err := op.Eval(env, args)
		if err != nil {
			return cty.NilVal, fmt.Errorf("node %s (%s): %w", node.Path, node.Op, err)
		}
		if node.Monitor {
			e.monitors[node.Path.Key()] = out
		}
		outputs[i] = out
	}

	return resolve(e.program.Export), nil
}

// Introspect returns the last value observed at the monitor addressed by
// path.
func (e *Executor) Introspect(path nodeid.Path) (cty.Value, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.program == nil {
		return cty.NilVal, ErrNotReady
	}
	v, ok := e.monitors[path.Key()]
	if !ok {
		return cty.NilVal, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return v, nil
}
