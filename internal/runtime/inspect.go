package runtime

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/exec"
	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
)

// inspectState records which node is inspected and which spliced monitor
// observes it for the current compiled program. At most one subscription is
// active at a time; it is recreated on every recompilation.
type inspectState struct {
	target  nodeid.ID
	monitor nodeid.ID
}

// newInspectState splices a monitor observing target into g. Splicing must
// precede every other graph mutation of the compile pass so that no stale
// edge set is rewired. A target outside the graph's top-level scope returns
// false; subscriptions cannot reach into nested subgraphs.
func newInspectState(g *graph.Graph, target nodeid.ID) (*inspectState, bool) {
	monitor, ok := g.SpliceMonitor(target)
	if !ok {
		return nil, false
	}
	return &inspectState{target: target, monitor: monitor}, true
}

// InspectResult is the observed value of the inspected node for one
// execution. OK is false when the value was not produced, e.g. the node was
// unreachable this execution; that is not an error.
type InspectResult struct {
	Node  nodeid.ID
	Value cty.Value
	OK    bool
}

// resolve reads the subscription's monitor after an execution.
func (s *inspectState) resolve(ctx context.Context, ex *exec.Executor) *InspectResult {
	observed, err := ex.Introspect(nodeid.Path{s.monitor})
	if err != nil {
		ctxlog.FromContext(ctx).Debug("failed to introspect inspect monitor", "node", s.target.String(), "error", err)
		return &InspectResult{Node: s.target}
	}
	return &InspectResult{Node: s.target, Value: observed, OK: true}
}
