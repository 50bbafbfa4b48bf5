// Package hclgraph loads node-graph documents written in HCL. A document is
// a flat list of "node" and "subgraph" blocks plus a single export:
//
//	node "rect" {
//	  op     = "scene.rect"
//	  inputs = [0, 0, 100, 50, "#f00"]
//	}
//
//	node "canvas" {
//	  op     = "render.canvas"
//	  inputs = [node.rect, config]
//	}
//
//	export = node.canvas
//
// Inputs reference sibling nodes as node.<name>, the execution input as
// config (root scope only), the enclosing node's inputs as input[k] (inside
// a subgraph only), and anything else is evaluated as a literal.
package hclgraph

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/value"
)

type hclNode struct {
	Name   string         `hcl:"name,label"`
	Op     string         `hcl:"op"`
	Inputs hcl.Expression `hcl:"inputs,optional"`
}

type hclSubgraph struct {
	Name      string         `hcl:"name,label"`
	Inputs    hcl.Expression `hcl:"inputs,optional"`
	Nodes     []*hclNode     `hcl:"node,block"`
	Subgraphs []*hclSubgraph `hcl:"subgraph,block"`
	Export    hcl.Expression `hcl:"export"`
}

type hclDocument struct {
	Nodes     []*hclNode     `hcl:"node,block"`
	Subgraphs []*hclSubgraph `hcl:"subgraph,block"`
	Export    hcl.Expression `hcl:"export"`
}

// Load parses the HCL document at path into a graph.
func Load(path string) (*graph.Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse graph document %s: %w", path, diags)
	}
	return decodeFile(file, path)
}

// Parse parses an in-memory HCL document into a graph. filename is used in
// error messages only.
func Parse(src []byte, filename string) (*graph.Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse graph document %s: %w", filename, diags)
	}
	return decodeFile(file, filename)
}

func decodeFile(file *hcl.File, filename string) (*graph.Graph, error) {
	var doc hclDocument
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode graph document %s: %w", filename, diags)
	}
	return buildScope(doc.Nodes, doc.Subgraphs, doc.Export, true)
}

// scope resolves symbolic references while one graph level is being built.
type scope struct {
	names map[string]nodeid.ID
	root  bool
}

// buildScope lowers one block level into a graph. Names are assigned ids up
// front so inputs may reference nodes defined later in the document.
func buildScope(nodes []*hclNode, subgraphs []*hclSubgraph, export hcl.Expression, root bool) (*graph.Graph, error) {
	s := &scope{names: make(map[string]nodeid.ID), root: root}
	declare := func(name string) error {
		if _, taken := s.names[name]; taken {
			return fmt.Errorf("duplicate node name %q", name)
		}
		s.names[name] = nodeid.New()
		return nil
	}
	for _, n := range nodes {
		if err := declare(n.Name); err != nil {
			return nil, err
		}
	}
	for _, sub := range subgraphs {
		if err := declare(sub.Name); err != nil {
			return nil, err
		}
	}

	g := graph.New()
	for _, n := range nodes {
		inputs, err := s.decodeInputs(n.Inputs)
		if err != nil {
			return nil, err
		}
		g.Insert(s.names[n.Name], graph.OpNode(n.Op, inputs...))
	}
	for _, sub := range subgraphs {
		inner, err := buildScope(sub.Nodes, sub.Subgraphs, sub.Export, false)
		if err != nil {
			return nil, err
		}
		inputs, err := s.decodeInputs(sub.Inputs)
		if err != nil {
			return nil, err
		}
		g.Insert(s.names[sub.Name], graph.SubgraphNode(inner, inputs...))
	}

	exportInput, err := s.decodeInput(export)
	if err != nil {
		return nil, err
	}
	g.Export(exportInput)
	return g, nil
}

// decodeInputs lowers an inputs attribute. The attribute must be a list
// literal so each element keeps its own expression, references included.
func (s *scope) decodeInputs(expr hcl.Expression) ([]graph.Input, error) {
	if expr == nil {
		return nil, nil
	}
	// gohcl substitutes a static null expression for an absent optional
	// attribute.
	if v, diags := expr.Value(nil); !diags.HasErrors() && v.IsNull() {
		return nil, nil
	}
	tuple, ok := expr.(*hclsyntax.TupleConsExpr)
	if !ok {
		return nil, fmt.Errorf("%s: inputs must be a list literal", expr.Range())
	}
	inputs := make([]graph.Input, 0, len(tuple.Exprs))
	for _, element := range tuple.Exprs {
		in, err := s.decodeInput(element)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// decodeInput lowers one input expression: a node.<name> or config or
// input[k] reference, or a literal.
func (s *scope) decodeInput(expr hcl.Expression) (graph.Input, error) {
	if traversal, ok := expr.(*hclsyntax.ScopeTraversalExpr); ok {
		return s.decodeReference(traversal.Traversal, expr.Range())
	}

	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return graph.Input{}, fmt.Errorf("%s: cannot evaluate input literal: %w", expr.Range(), diags)
	}
	return graph.Literal(v), nil
}

func (s *scope) decodeReference(traversal hcl.Traversal, rng hcl.Range) (graph.Input, error) {
	switch root := traversal.RootName(); root {
	case "node":
		if len(traversal) != 2 {
			return graph.Input{}, fmt.Errorf("%s: node references have the form node.<name>", rng)
		}
		attr, ok := traversal[1].(hcl.TraverseAttr)
		if !ok {
			return graph.Input{}, fmt.Errorf("%s: node references have the form node.<name>", rng)
		}
		id, known := s.names[attr.Name]
		if !known {
			return graph.Input{}, fmt.Errorf("%s: reference to undefined node %q", rng, attr.Name)
		}
		return graph.NodeRef(id), nil

	case "config":
		if !s.root {
			return graph.Input{}, fmt.Errorf("%s: config is only available at the document root; use input[k] inside a subgraph", rng)
		}
		return graph.NetworkInput(value.RenderConfigType), nil

	case "input":
		if s.root {
			return graph.Input{}, fmt.Errorf("%s: input[k] is only available inside a subgraph", rng)
		}
		if len(traversal) != 2 {
			return graph.Input{}, fmt.Errorf("%s: enclosing inputs have the form input[k]", rng)
		}
		index, ok := traversal[1].(hcl.TraverseIndex)
		if !ok || !index.Key.Type().Equals(cty.Number) {
			return graph.Input{}, fmt.Errorf("%s: enclosing inputs have the form input[k]", rng)
		}
		k, accuracy := index.Key.AsBigFloat().Int64()
		if accuracy != 0 || k < 0 {
			return graph.Input{}, fmt.Errorf("%s: input index must be a non-negative integer", rng)
		}
		return graph.NetworkInputAt(cty.NilType, int(k)), nil

	default:
		return graph.Input{}, fmt.Errorf("%s: unknown reference %q; expected node.<name>, config, or input[k]", rng, root)
	}
}
