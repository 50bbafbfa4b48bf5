package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/ops"
	"github.com/vk/nodeflow/internal/registry"
)

func compile(t *testing.T, g *graph.Graph) *compiler.Program {
	t.Helper()
	program, errs := compiler.Compile(g, ops.Builtin())
	require.Empty(t, errs)
	return program
}

func constAddGraph() (*graph.Graph, nodeid.ID, nodeid.ID) {
	g := graph.New()
	c := g.Add(graph.OpNode("value.const", graph.Literal(cty.NumberIntVal(5))))
	sum := g.Add(graph.OpNode("math.add", graph.NodeRef(c), graph.Literal(cty.NumberIntVal(3))))
	g.Export(graph.NodeRef(sum))
	return g, c, sum
}

func TestExecuteConstAdd(t *testing.T) {
	g, _, _ := constAddGraph()
	e := New(ops.Builtin())
	_, err := e.Update(compile(t, g))
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), &registry.Env{}, cty.NilVal)
	require.NoError(t, err)
	assert.True(t, out.RawEquals(cty.NumberIntVal(8)), "got %#v", out)
}

func TestExecuteWithoutProgram(t *testing.T) {
	e := New(ops.Builtin())
	_, err := e.Execute(context.Background(), &registry.Env{}, cty.NilVal)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestMonitorObservationIsSemanticsPreserving(t *testing.T) {
	plain, target, _ := constAddGraph()
	instrumented := plain.Clone()
	monitor, ok := instrumented.SpliceMonitor(target)
	require.True(t, ok)

	e := New(ops.Builtin())

	_, err := e.Update(compile(t, plain))
	require.NoError(t, err)
	want, err := e.Execute(context.Background(), &registry.Env{}, cty.NilVal)
	require.NoError(t, err)

	_, err = e.Update(compile(t, instrumented))
	require.NoError(t, err)
	got, err := e.Execute(context.Background(), &registry.Env{}, cty.NilVal)
	require.NoError(t, err)

	assert.True(t, want.RawEquals(got), "monitor injection must not change program output")

	observed, err := e.Introspect(nodeid.Path{monitor})
	require.NoError(t, err)
	assert.True(t, observed.RawEquals(cty.NumberIntVal(5)), "got %#v", observed)
}

func TestIntrospectErrors(t *testing.T) {
	e := New(ops.Builtin())

	t.Run("not ready before first update", func(t *testing.T) {
		_, err := e.Introspect(nodeid.Path{nodeid.New()})
		assert.ErrorIs(t, err, ErrNotReady)
	})

	g, _, _ := constAddGraph()
	_, err := e.Update(compile(t, g))
	require.NoError(t, err)

	t.Run("unknown path after update", func(t *testing.T) {
		_, err := e.Introspect(nodeid.Path{nodeid.New()})
		assert.ErrorIs(t, err, ErrPathNotFound)
	})
}

func TestUpdateClearsMonitorCache(t *testing.T) {
	g, target, _ := constAddGraph()
	monitored := g.Clone()
	monitor, ok := monitored.SpliceMonitor(target)
	require.True(t, ok)

	e := New(ops.Builtin())
	_, err := e.Update(compile(t, monitored))
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), &registry.Env{}, cty.NilVal)
	require.NoError(t, err)

	_, err = e.Introspect(nodeid.Path{monitor})
	require.NoError(t, err)

	// Installing a new program drops the previous program's observations.
	_, err = e.Update(compile(t, g))
	require.NoError(t, err)
	_, err = e.Introspect(nodeid.Path{monitor})
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestExecuteHonorsContext(t *testing.T) {
	g, _, _ := constAddGraph()
	e := New(ops.Builtin())
	_, err := e.Update(compile(t, g))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Execute(ctx, &registry.Env{}, cty.NilVal)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonitorPaths(t *testing.T) {
	g, target, _ := constAddGraph()
	g.SpliceMonitor(target)

	e := New(ops.Builtin())
	assert.Nil(t, e.MonitorPaths())

	_, err := e.Update(compile(t, g))
	require.NoError(t, err)
	assert.Len(t, e.MonitorPaths(), 1)
}
