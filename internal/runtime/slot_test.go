package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/exec"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/ops"
	"github.com/vk/nodeflow/internal/value"
)

func TestSlotReplaceReturnsPrevious(t *testing.T) {
	var s Slot
	first, _ := New(ops.Builtin())
	second, _ := New(ops.Builtin())

	assert.Nil(t, s.Replace(first))
	assert.Same(t, first, s.Replace(second))
}

func TestSlotTryRunOnce(t *testing.T) {
	ctx := context.Background()
	var s Slot

	// An empty slot is still pumpable.
	assert.True(t, s.TryRunOnce(ctx))

	rt, h := New(ops.Builtin())
	s.Replace(rt)

	g, _ := numberGraph(5, 3)
	doc := document.New(g)
	h.SubmitGraphEvaluation(doc, value.RenderConfig{}, nil, false)

	require.True(t, s.TryRunOnce(ctx))
	events, err := h.PollResponses(doc)
	require.NoError(t, err)
	assert.Contains(t, artwork(t, events).SVG, ">8<")
}

func TestSlotBusyIsSkipped(t *testing.T) {
	var s Slot
	s.mu.Lock()
	assert.False(t, s.TryRunOnce(context.Background()))
	s.mu.Unlock()
	assert.True(t, s.TryRunOnce(context.Background()))
}

func TestSlotIntrospect(t *testing.T) {
	ctx := context.Background()
	var s Slot

	_, err := s.Introspect(nodeid.Path{nodeid.New()})
	assert.ErrorIs(t, err, exec.ErrNotReady)

	rt, h := New(ops.Builtin())
	s.Replace(rt)

	g, sum := numberGraph(5, 3)
	doc := document.New(g)
	h.SubmitGraphEvaluation(doc, value.RenderConfig{}, &sum, false)
	require.True(t, s.TryRunOnce(ctx))
	_, err = h.PollResponses(doc)
	require.NoError(t, err)

	_, err = s.Introspect(nodeid.Path{nodeid.New()})
	assert.ErrorIs(t, err, exec.ErrPathNotFound)
}
