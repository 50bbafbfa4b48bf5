// Package compiler lowers a document graph into a flat executable program.
// Nested subgraphs are flattened with path-qualified node addresses, node
// references are resolved to flat indices in dependency order, and op
// signatures from the registry drive input type checking. Compilation never
// mutates the input graph.
package compiler

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/registry"
)

// GraphError is a structural or type error located at a node path.
type GraphError struct {
	Path    nodeid.Path
	Message string
}

// Error implements the error interface.
func (e GraphError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// NodeTypes is the resolved type signature of one compiled node.
type NodeTypes struct {
	Inputs []cty.Type
	Output cty.Type
}

// TypeInfo maps a node path key to its resolved types. It is the payload of
// a successful compilation response.
type TypeInfo map[string]NodeTypes

// RefKind discriminates the three sources a compiled input can read from.
type RefKind int

const (
	// RefNode reads the output of an earlier node in the flat program.
	RefNode RefKind = iota
	// RefValue is an inline constant.
	RefValue
	// RefNetwork reads the execution input.
	RefNetwork
)

// InputRef is a fully resolved input of a proto node.
type InputRef struct {
	Kind  RefKind
	Index int       // flat node index, RefNode only
	Value cty.Value // RefValue only
}

// ProtoNode is one executable node of the flat program.
type ProtoNode struct {
	Path    nodeid.Path
	Op      string
	Inputs  []InputRef
	Monitor bool
}

// Program is the compiled, executable lowering of a graph. It is immutable
// after compilation; the executor replaces it wholesale on recompile.
type Program struct {
	Nodes     []ProtoNode
	Export    InputRef
	InputType cty.Type // cty.NilType when the program takes no input
	Types     TypeInfo
}

// MonitorPaths returns the paths of all monitor nodes in the program, in
// program order.
func (p *Program) MonitorPaths() []nodeid.Path {
	var out []nodeid.Path
	for _, n := range p.Nodes {
		if n.Monitor {
			out = append(out, n.Path)
		}
	}
	return out
}

type compilation struct {
	reg       *registry.Registry
	program   *Program
	errors    []GraphError
	inputType cty.Type
}

func (c *compilation) errorf(path nodeid.Path, format string, args ...any) {
	c.errors = append(c.errors, GraphError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Compile lowers g into a Program using the ops registered in reg. On
// failure it returns the collected structural and type errors; the graph
// remains untouched either way.
func Compile(g *graph.Graph, reg *registry.Registry) (*Program, []GraphError) {
	c := &compilation{reg: reg, program: &Program{Types: make(TypeInfo)}}

	if n := len(g.Exports()); n != 1 {
		if n == 0 {
			c.errorf(nil, "graph has no export")
		} else {
			c.errorf(nil, "graph has multiple outputs (%d exports)", n)
		}
		return nil, c.errors
	}

	exportRef, ok := c.flattenScope(g, nil, nil)
	if !ok || len(c.errors) > 0 {
		return nil, c.errors
	}
	c.program.Export = exportRef
	c.program.InputType = c.inputType

	c.check()
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return c.program, nil
}

// flattenScope lowers one graph scope. path addresses the scope itself
// (empty at the root); outer holds the already-resolved refs feeding the
// scope's network inputs (nil at the root, where network inputs read the
// execution input). It returns the ref producing the scope's export.
func (c *compilation) flattenScope(g *graph.Graph, path nodeid.Path, outer []InputRef) (InputRef, bool) {
	order, ok := c.topoOrder(g, path)
	if !ok {
		return InputRef{}, false
	}

	outputs := make(map[nodeid.ID]InputRef, g.Len())

	resolve := func(owner nodeid.ID, in graph.Input) (InputRef, bool) {
		switch in.Kind {
		case graph.KindValue:
			return InputRef{Kind: RefValue, Value: in.Value}, true
		case graph.KindNetwork:
			if outer != nil {
				if in.OutputIndex < 0 || in.OutputIndex >= len(outer) {
					c.errorf(path.Child(owner), "network input %d exceeds the %d inputs of the enclosing node", in.OutputIndex, len(outer))
					return InputRef{}, false
				}
				return outer[in.OutputIndex], true
			}
			if in.Type != cty.NilType {
				if c.inputType != cty.NilType && !c.inputType.Equals(in.Type) {
					c.errorf(path.Child(owner), "conflicting graph input types %s and %s", c.inputType.FriendlyName(), in.Type.FriendlyName())
					return InputRef{}, false
				}
				c.inputType = in.Type
			}
			return InputRef{Kind: RefNetwork}, true
		default:
			ref, known := outputs[in.Node]
			if !known {
				c.errorf(path.Child(owner), "unresolved node reference %s", in.Node)
				return InputRef{}, false
			}
			return ref, true
		}
	}

	for _, id := range order {
		node, _ := g.Node(id)
		refs := make([]InputRef, 0, len(node.Inputs))
		for _, in := range node.Inputs {
			ref, ok := resolve(id, in)
			if !ok {
				return InputRef{}, false
			}
			refs = append(refs, ref)
		}

		if node.Subgraph != nil {
			if n := len(node.Subgraph.Exports()); n != 1 {
				c.errorf(path.Child(id), "subgraph must have exactly one export, found %d", n)
				return InputRef{}, false
			}
			ref, ok := c.flattenScope(node.Subgraph, path.Child(id), refs)
			if !ok {
				return InputRef{}, false
			}
			outputs[id] = ref
			continue
		}

		flat := len(c.program.Nodes)
		c.program.Nodes = append(c.program.Nodes, ProtoNode{
			Path:    path.Child(id),
			Op:      node.Op,
			Inputs:  refs,
			Monitor: node.Op == registry.MonitorOp,
		})
		outputs[id] = InputRef{Kind: RefNode, Index: flat}
	}

	// Resolve the scope's single export against the finished output map.
	export := g.Exports()[0]
	var zero nodeid.ID
	return resolve(zero, export)
}

// topoOrder returns the scope's node ids in dependency order, or reports a
// cycle. Depth-first with temporary marks, visiting in insertion order so
// independent nodes keep a stable relative order.
func (c *compilation) topoOrder(g *graph.Graph, path nodeid.Path) ([]nodeid.ID, bool) {
	permanent := make(map[nodeid.ID]bool)
	temporary := make(map[nodeid.ID]bool)
	order := make([]nodeid.ID, 0, g.Len())

	var visit func(id nodeid.ID) bool
	visit = func(id nodeid.ID) bool {
		if permanent[id] {
			return true
		}
		if temporary[id] {
			c.errorf(path.Child(id), "cycle detected involving node %s", id)
			return false
		}
		temporary[id] = true
		node, _ := g.Node(id)
		for _, in := range node.Inputs {
			if in.Kind != graph.KindNode {
				continue
			}
			if _, exists := g.Node(in.Node); !exists {
				// Resolution reports the error with better context later.
				continue
			}
			if !visit(in.Node) {
				return false
			}
		}
		delete(temporary, id)
		permanent[id] = true
		order = append(order, id)
		return true
	}

	for _, id := range g.Order() {
		if !visit(id) {
			return nil, false
		}
	}
	return order, true
}

// check validates every proto node's inputs against its op signature and
// records the resolved types.
func (c *compilation) check() {
	outTypes := make([]cty.Type, len(c.program.Nodes))

	typeOf := func(ref InputRef) cty.Type {
		switch ref.Kind {
		case RefValue:
			return ref.Value.Type()
		case RefNetwork:
			if c.program.InputType == cty.NilType {
				return cty.DynamicPseudoType
			}
			return c.program.InputType
		default:
			return outTypes[ref.Index]
		}
	}

	for i := range c.program.Nodes {
		node := &c.program.Nodes[i]
		op, ok := c.reg.Lookup(node.Op)
		if !ok {
			c.errorf(node.Path, "unknown op %q", node.Op)
			return
		}
		if len(node.Inputs) != len(op.Params) {
			c.errorf(node.Path, "op %q takes %d inputs, got %d", node.Op, len(op.Params), len(node.Inputs))
			return
		}

		types := NodeTypes{Inputs: make([]cty.Type, len(node.Inputs)), Output: op.Result}
		for j, ref := range node.Inputs {
			param := op.Params[j]
			got := typeOf(ref)
			types.Inputs[j] = got
			if param == cty.DynamicPseudoType || got == cty.DynamicPseudoType {
				continue
			}
			if ref.Kind == RefValue {
				converted, err := convert.Convert(ref.Value, param)
				if err != nil {
					c.errorf(node.Path, "input %d of op %q: %v", j, node.Op, err)
					return
				}
				node.Inputs[j].Value = converted
				types.Inputs[j] = param
				continue
			}
			if !got.Equals(param) {
				c.errorf(node.Path, "input %d of op %q has type %s, want %s", j, node.Op, got.FriendlyName(), param.FriendlyName())
				return
			}
		}

		if op.Result == cty.DynamicPseudoType && len(types.Inputs) > 0 {
			// Passthrough ops take their input's type.
			types.Output = types.Inputs[0]
		}
		outTypes[i] = types.Output
		c.program.Types[node.Path.Key()] = types
	}
}
