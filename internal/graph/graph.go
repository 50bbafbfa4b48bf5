// Package graph defines the document-side dataflow graph: typed nodes
// addressed by opaque ids, with inputs that reference other nodes, inline
// literal values, or the enclosing scope's input. A graph is owned by the
// editing side while idle and cloned whenever it is handed to the runtime.
package graph

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/registry"
)

// InputKind discriminates the three kinds of node input.
type InputKind int

const (
	// KindNode references another node's output within the same graph.
	KindNode InputKind = iota
	// KindValue is an inline literal.
	KindValue
	// KindNetwork references the enclosing scope's input: the subgraph
	// node's corresponding input, or at the root, the execution input.
	KindNetwork
)

// Input is one incoming edge (or literal) of a node. OutputIndex selects
// the referenced node's output for node inputs, and the enclosing node's
// input slot for network inputs.
type Input struct {
	Kind        InputKind
	Node        nodeid.ID
	OutputIndex int
	Value       cty.Value
	Type        cty.Type // declared type, network inputs only
}

// NodeRef returns an input referencing the primary output of another node.
func NodeRef(id nodeid.ID) Input {
	return Input{Kind: KindNode, Node: id}
}

// Literal returns an inline value input.
func Literal(v cty.Value) Input {
	return Input{Kind: KindValue, Value: v}
}

// NetworkInput returns an input fed by the enclosing scope's first input
// slot, declared with the given type.
func NetworkInput(t cty.Type) Input {
	return Input{Kind: KindNetwork, Type: t}
}

// NetworkInputAt is NetworkInput reading the enclosing scope's index-th
// input slot.
func NetworkInputAt(t cty.Type, index int) Input {
	return Input{Kind: KindNetwork, Type: t, OutputIndex: index}
}

// Node is a single graph node: either a leaf executable resolved by op name,
// or a nested subgraph whose exports stand in for the node's output.
type Node struct {
	Op       string
	Subgraph *Graph
	Inputs   []Input
}

// OpNode builds a leaf node.
func OpNode(op string, inputs ...Input) *Node {
	return &Node{Op: op, Inputs: inputs}
}

// SubgraphNode builds a nested-graph node. The node's inputs feed the
// subgraph's network inputs in order.
func SubgraphNode(sub *Graph, inputs ...Input) *Node {
	return &Node{Subgraph: sub, Inputs: inputs}
}

// MonitorNode builds a passthrough monitor observing the given input.
func MonitorNode(input Input) *Node {
	return &Node{Op: registry.MonitorOp, Inputs: []Input{input}}
}

// Graph is a mutable dataflow graph. Node iteration follows insertion order
// so that walks, hashing and instrumentation indexes are deterministic.
type Graph struct {
	order   []nodeid.ID
	nodes   map[nodeid.ID]*Node
	exports []Input
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[nodeid.ID]*Node)}
}

// Add inserts a node under a freshly generated id and returns that id.
func (g *Graph) Add(n *Node) nodeid.ID {
	id := nodeid.New()
	g.Insert(id, n)
	return id
}

// Insert adds a node under a caller-supplied id. Inserting an id that
// already exists replaces the node but keeps its original position.
func (g *Graph) Insert(id nodeid.ID, n *Node) {
	if _, exists := g.nodes[id]; !exists {
		g.order = append(g.order, id)
	}
	g.nodes[id] = n
}

// Node returns the node stored under id. The returned pointer is live;
// callers holding a clone may mutate it.
func (g *Graph) Node(id nodeid.ID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Order returns the node ids in insertion order. The slice is a copy.
func (g *Graph) Order() []nodeid.ID {
	out := make([]nodeid.ID, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Export appends a graph export. A compilable graph has exactly one.
func (g *Graph) Export(in Input) {
	g.exports = append(g.exports, in)
}

// Exports returns the export list. The slice is live within the package's
// own mutations (monitor splicing); external callers must treat it as
// read-only.
func (g *Graph) Exports() []Input {
	return g.exports
}

// Clone deep-copies the graph, its nodes and nested subgraphs. Values held
// by literal inputs are immutable and shared.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		order:   make([]nodeid.ID, len(g.order)),
		nodes:   make(map[nodeid.ID]*Node, len(g.nodes)),
		exports: make([]Input, len(g.exports)),
	}
	copy(out.order, g.order)
	copy(out.exports, g.exports)
	for id, n := range g.nodes {
		clone := &Node{Op: n.Op, Inputs: make([]Input, len(n.Inputs))}
		copy(clone.Inputs, n.Inputs)
		if n.Subgraph != nil {
			clone.Subgraph = n.Subgraph.Clone()
		}
		out.nodes[id] = clone
	}
	return out
}

// SpliceMonitor rewires every edge in the graph (including exports) that
// points at the target node's primary output so that it flows through a new
// monitor node instead, and wires the monitor's input to the target. Edges
// must be retargeted before the monitor node is inserted so the monitor's
// own input is not rewired. Returns the monitor's id, or false when the
// target is not a node of this graph; splicing only sees the top-level
// scope, never nested subgraphs.
func (g *Graph) SpliceMonitor(target nodeid.ID) (nodeid.ID, bool) {
	if _, exists := g.nodes[target]; !exists {
		return nodeid.ID{}, false
	}
	monitor := nodeid.New()
	for _, id := range g.order {
		node := g.nodes[id]
		for i := range node.Inputs {
			in := &node.Inputs[i]
			if in.Kind == KindNode && in.OutputIndex == 0 && in.Node == target {
				in.Node = monitor
			}
		}
	}
	for i := range g.exports {
		in := &g.exports[i]
		if in.Kind == KindNode && in.OutputIndex == 0 && in.Node == target {
			in.Node = monitor
		}
	}
	g.Insert(monitor, MonitorNode(NodeRef(target)))
	return monitor, true
}

// ContentHash returns a hash of the graph's full content. Two graphs with
// the same nodes, wiring, literals and exports hash equal; any structural
// edit changes the hash.
func (g *Graph) ContentHash() uint64 {
	h := fnv.New64a()
	g.hashInto(h)
	return h.Sum64()
}

type hashWriter interface {
	Write(p []byte) (int, error)
}

func (g *Graph) hashInto(h hashWriter) {
	var buf [8]byte
	for _, id := range g.order {
		raw := [16]byte(id)
		h.Write(raw[:])
		node := g.nodes[id]
		h.Write([]byte(node.Op))
		if node.Subgraph != nil {
			node.Subgraph.hashInto(h)
		}
		for _, in := range node.Inputs {
			hashInput(h, buf[:], in)
		}
	}
	h.Write([]byte{0xfe})
	for _, in := range g.exports {
		hashInput(h, buf[:], in)
	}
}

func hashInput(h hashWriter, buf []byte, in Input) {
	binary.LittleEndian.PutUint64(buf, uint64(in.Kind)<<32|uint64(uint32(in.OutputIndex)))
	h.Write(buf)
	switch in.Kind {
	case KindNode:
		raw := [16]byte(in.Node)
		h.Write(raw[:])
	case KindValue:
		h.Write([]byte(valueRepr(in.Value)))
	case KindNetwork:
		if in.Type != cty.NilType {
			h.Write([]byte(in.Type.FriendlyName()))
		}
	}
}

// valueRepr produces a stable textual form of a literal for hashing. Capsule
// values are opaque, so only their type participates.
func valueRepr(v cty.Value) string {
	if v == cty.NilVal {
		return "<nil>"
	}
	if v.Type().IsCapsuleType() {
		return "capsule:" + v.Type().FriendlyName()
	}
	return v.GoString()
}
