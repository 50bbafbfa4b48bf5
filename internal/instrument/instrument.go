// Package instrument exhaustively instruments a graph for testing and
// debugging: a monitor node is spliced onto every input of every node,
// recursively through nested subgraphs, and the resulting monitor set is
// indexed for lookup by op-name occurrence and by exact node path. Values
// are fetched lazily from the executor at query time.
package instrument

import (
	"iter"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
)

// Introspector reads the last observed value at a monitor path.
type Introspector interface {
	Introspect(path nodeid.Path) (cty.Value, error)
}

// Instrumented is the index over all monitors attached to one graph
// snapshot. Read-only after construction.
type Instrumented struct {
	// byName records, per op name, every occurrence of that op in graph
	// order; each occurrence holds the monitor path of each of its inputs.
	byName map[string][][]nodeid.Path
	// byPath records the same input monitor lists under the node's exact
	// path key.
	byPath map[string][]nodeid.Path
}

// New instruments g in place and returns the monitor index. Callers that
// need the original graph untouched instrument a clone.
func New(g *graph.Graph) *Instrumented {
	inst := &Instrumented{
		byName: make(map[string][][]nodeid.Path),
		byPath: make(map[string][]nodeid.Path),
	}
	inst.add(g, nil)
	return inst
}

// add walks one graph scope. Subgraphs are instrumented before their
// enclosing node so inner monitors exist first. Edge rewiring is buffered
// and applied only after the scope's nodes have been walked, so a fresh
// monitor never ends up observing another fresh monitor's output.
func (inst *Instrumented) add(g *graph.Graph, path nodeid.Path) {
	type pendingMonitor struct {
		id   nodeid.ID
		node *graph.Node
	}
	var pending []pendingMonitor

	for _, id := range g.Order() {
		node, _ := g.Node(id)
		if node.Subgraph != nil {
			inst.add(node.Subgraph, path.Child(id))
		}

		monitors := make([]nodeid.Path, 0, len(node.Inputs))
		for k := range node.Inputs {
			monitorID := nodeid.New()
			pending = append(pending, pendingMonitor{
				id:   monitorID,
				node: graph.MonitorNode(node.Inputs[k]),
			})
			node.Inputs[k] = graph.NodeRef(monitorID)
			monitors = append(monitors, path.Child(monitorID))
		}

		if node.Subgraph == nil {
			inst.byName[node.Op] = append(inst.byName[node.Op], monitors)
			inst.byPath[path.Child(id).Key()] = monitors
		}
	}

	for _, p := range pending {
		g.Insert(p.id, p.node)
	}
}

// GrabAllInputs yields the observed value at input index of every
// occurrence of op, in graph-occurrence order. Occurrences whose monitor
// holds no value (e.g. the node was never evaluated) are silently filtered
// out.
func (inst *Instrumented) GrabAllInputs(x Introspector, op string, index int) iter.Seq[cty.Value] {
	return func(yield func(cty.Value) bool) {
		for _, occurrence := range inst.byName[op] {
			if index < 0 || index >= len(occurrence) {
				continue
			}
			observed, err := x.Introspect(occurrence[index])
			if err != nil {
				continue
			}
			if !yield(observed) {
				return
			}
		}
	}
}

// GrabNodeInput returns the observed value at input index of the node
// addressed by path.
func (inst *Instrumented) GrabNodeInput(x Introspector, path nodeid.Path, index int) (cty.Value, bool) {
	monitors, ok := inst.byPath[path.Key()]
	if !ok || index < 0 || index >= len(monitors) {
		return cty.NilVal, false
	}
	observed, err := x.Introspect(monitors[index])
	if err != nil {
		return cty.NilVal, false
	}
	return observed, true
}

// GrabInputFromLayer resolves the first node implementing op that is
// reachable upstream from the given root-level layer node (following the
// chain of primary inputs, looking one level into nested subgraphs), and
// returns its observed input at index.
func (inst *Instrumented) GrabInputFromLayer(x Introspector, g *graph.Graph, layer nodeid.ID, op string, index int) (cty.Value, bool) {
	current := layer
	for {
		node, ok := g.Node(current)
		if !ok {
			return cty.NilVal, false
		}
		if node.Op == op {
			return inst.GrabNodeInput(x, nodeid.Path{current}, index)
		}
		if node.Subgraph != nil {
			for _, innerID := range node.Subgraph.Order() {
				inner, _ := node.Subgraph.Node(innerID)
				if inner.Op == op {
					return inst.GrabNodeInput(x, nodeid.Path{current, innerID}, index)
				}
			}
		}
		if len(node.Inputs) == 0 || node.Inputs[0].Kind != graph.KindNode {
			return cty.NilVal, false
		}
		current = node.Inputs[0].Node
	}
}
