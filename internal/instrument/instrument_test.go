package instrument

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/exec"
	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/ops"
	"github.com/vk/nodeflow/internal/registry"
)

// addGraph builds const(5) -> add(., 3) -> export.
func addGraph(t *testing.T) (*graph.Graph, nodeid.ID, nodeid.ID) {
	t.Helper()
	g := graph.New()
	five := g.Add(graph.OpNode("value.const", graph.Literal(cty.NumberIntVal(5))))
	sum := g.Add(graph.OpNode("math.add", graph.NodeRef(five), graph.Literal(cty.NumberIntVal(3))))
	g.Export(graph.NodeRef(sum))
	return g, five, sum
}

func executorFor(t *testing.T, g *graph.Graph) *exec.Executor {
	t.Helper()
	reg := ops.Builtin()
	program, errs := compiler.Compile(g, reg)
	require.Empty(t, errs)
	x := exec.New(reg)
	_, err := x.Update(program)
	require.NoError(t, err)
	_, err = x.Execute(context.Background(), &registry.Env{}, cty.NilVal)
	require.NoError(t, err)
	return x
}

func TestNewRecordsEveryInput(t *testing.T) {
	g, _, sum := addGraph(t)
	before := g.Len()

	inst := New(g)

	// const has one input, add has two: three monitors spliced in.
	assert.Equal(t, before+3, g.Len())
	require.Len(t, inst.byName["math.add"], 1)
	assert.Len(t, inst.byName["math.add"][0], 2)
	assert.Len(t, inst.byPath[nodeid.Path{sum}.Key()], 2)
}

func TestInstrumentationPreservesResult(t *testing.T) {
	g, _, _ := addGraph(t)
	New(g)

	x := executorFor(t, g)
	result, err := x.Execute(context.Background(), &registry.Env{}, cty.NilVal)
	require.NoError(t, err)
	assert.True(t, cty.NumberIntVal(8).RawEquals(result))
}

func TestGrabNodeInput(t *testing.T) {
	g, _, sum := addGraph(t)
	inst := New(g)
	x := executorFor(t, g)

	left, ok := inst.GrabNodeInput(x, nodeid.Path{sum}, 0)
	require.True(t, ok)
	assert.True(t, cty.NumberIntVal(5).RawEquals(left))

	right, ok := inst.GrabNodeInput(x, nodeid.Path{sum}, 1)
	require.True(t, ok)
	assert.True(t, cty.NumberIntVal(3).RawEquals(right))

	_, ok = inst.GrabNodeInput(x, nodeid.Path{sum}, 2)
	assert.False(t, ok)
	_, ok = inst.GrabNodeInput(x, nodeid.Path{nodeid.New()}, 0)
	assert.False(t, ok)
}

func TestGrabAllInputsInOccurrenceOrder(t *testing.T) {
	g := graph.New()
	a := g.Add(graph.OpNode("value.const", graph.Literal(cty.NumberIntVal(1))))
	first := g.Add(graph.OpNode("math.add", graph.NodeRef(a), graph.Literal(cty.NumberIntVal(10))))
	second := g.Add(graph.OpNode("math.add", graph.NodeRef(first), graph.Literal(cty.NumberIntVal(20))))
	g.Export(graph.NodeRef(second))

	inst := New(g)
	x := executorFor(t, g)

	var seen []cty.Value
	for v := range inst.GrabAllInputs(x, "math.add", 1) {
		seen = append(seen, v)
	}
	require.Len(t, seen, 2)
	assert.True(t, cty.NumberIntVal(10).RawEquals(seen[0]))
	assert.True(t, cty.NumberIntVal(20).RawEquals(seen[1]))
}

func TestGrabAllInputsFiltersUnevaluated(t *testing.T) {
	g, _, _ := addGraph(t)
	inst := New(g)

	// Executor never ran, so no monitor holds a value.
	reg := ops.Builtin()
	program, errs := compiler.Compile(g, reg)
	require.Empty(t, errs)
	x := exec.New(reg)
	_, err := x.Update(program)
	require.NoError(t, err)

	count := 0
	for range inst.GrabAllInputs(x, "math.add", 0) {
		count++
	}
	assert.Zero(t, count)
}

func TestGrabInputFromLayer(t *testing.T) {
	g, _, sum := addGraph(t)
	inst := New(g)
	x := executorFor(t, g)

	// sum itself implements math.add.
	v, ok := inst.GrabInputFromLayer(x, g, sum, "math.add", 1)
	require.True(t, ok)
	assert.True(t, cty.NumberIntVal(3).RawEquals(v))

	// Walking upstream from sum through the spliced monitor reaches const.
	v, ok = inst.GrabInputFromLayer(x, g, sum, "value.const", 0)
	require.True(t, ok)
	assert.True(t, cty.NumberIntVal(5).RawEquals(v))

	_, ok = inst.GrabInputFromLayer(x, g, sum, "text.concat", 0)
	assert.False(t, ok)
}

func TestNestedSubgraphMonitors(t *testing.T) {
	inner := graph.New()
	innerSum := inner.Add(graph.OpNode("math.add",
		graph.NetworkInput(cty.Number),
		graph.Literal(cty.NumberIntVal(100))))
	inner.Export(graph.NodeRef(innerSum))

	g := graph.New()
	src := g.Add(graph.OpNode("value.const", graph.Literal(cty.NumberIntVal(7))))
	wrap := g.Add(graph.SubgraphNode(inner, graph.NodeRef(src)))
	g.Export(graph.NodeRef(wrap))

	inst := New(g)
	x := executorFor(t, g)

	v, ok := inst.GrabNodeInput(x, nodeid.Path{wrap, innerSum}, 1)
	require.True(t, ok)
	assert.True(t, cty.NumberIntVal(100).RawEquals(v))
}
