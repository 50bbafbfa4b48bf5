// Package runtime owns graph execution. A single long-lived loop holds the
// only mutable handle to the executor core, recompiles when the graph or
// its evaluation environment changes, executes on demand, and reports
// results back over a channel. The editing side talks to it exclusively
// through a Handle; the two sides share no mutable memory.
package runtime

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/exec"
	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

const queueDepth = 64

// Runtime is the single worker that serializes all compiles and executions
// against the executor core.
type Runtime struct {
	executor *exec.Executor
	reg      *registry.Registry
	in       <-chan Message
	out      chan<- Update

	env           registry.Env
	lastGraph     *graph.Graph // pre-injection graph, for asset recompiles
	inspectTarget *nodeid.ID
	inspect       *inspectState
	graphErrors   []compiler.GraphError
	monitorPaths  []nodeid.Path

	thumbnails        map[nodeid.ID]string
	tables            map[nodeid.ID]*value.Table
	refreshThumbnails bool

	pending coalescer
}

// New creates a runtime and the handle connected to it. The runtime must be
// driven by exactly one goroutine, via Run or repeated RunOnce calls.
func New(reg *registry.Registry) (*Runtime, *Handle) {
	in := make(chan Message, queueDepth)
	out := make(chan Update, queueDepth)
	rt := &Runtime{
		executor:   exec.New(reg),
		reg:        reg,
		in:         in,
		out:        out,
		env:        registry.Env{Assets: make(map[string]string)},
		thumbnails: make(map[nodeid.ID]string),
		tables:     make(map[nodeid.ID]*value.Table),
	}
	h := &Handle{
		sender:   in,
		receiver: out,
		inFlight: make(map[ExecutionID]executionContext),
	}
	return rt, h
}

// Run drives the loop until ctx is done. It blocks waiting for the first
// message of each cycle, then drains everything queued behind it so
// superseded messages coalesce before processing starts.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-r.in:
			r.pending.offer(m)
			r.drain()
			r.processPending(ctx)
		}
	}
}

// RunOnce performs a single non-blocking drain-and-process cycle and
// reports whether any message was handled. Tests and cooperative schedulers
// pump the loop with it.
func (r *Runtime) RunOnce(ctx context.Context) bool {
	r.drain()
	processed := false
	for _, m := range r.pending.take() {
		r.process(ctx, m)
		processed = true
	}
	return processed
}

func (r *Runtime) drain() {
	for {
		select {
		case m := <-r.in:
			r.pending.offer(m)
		default:
			return
		}
	}
}

func (r *Runtime) processPending(ctx context.Context) {
	for _, m := range r.pending.take() {
		r.process(ctx, m)
	}
}

// process handles one surviving message. At most one message per category
// reaches here per cycle, in fixed priority order.
func (r *Runtime) process(ctx context.Context, m Message) {
	switch msg := m.(type) {
	case AssetsUpdate:
		r.env.Assets = msg.Assets
		r.recompileLastGraph(ctx)
	case PreferencesUpdate:
		r.env.Preferences = msg.Preferences
		r.recompileLastGraph(ctx)
	case GraphUpdate:
		r.handleGraphUpdate(ctx, msg)
	case ExecutionRequest:
		r.handleExecution(ctx, msg)
	}
}

// recompileLastGraph rebuilds the current program against a changed
// evaluation environment. Errors are logged and swallowed: a compile error
// in this graph was already reported when it first arrived.
func (r *Runtime) recompileLastGraph(ctx context.Context) {
	if r.lastGraph == nil {
		return
	}
	if _, err := r.installGraph(r.lastGraph.Clone(), r.inspectTarget); err != nil {
		ctxlog.FromContext(ctx).Debug("recompile after environment change failed", "error", err)
	}
}

func (r *Runtime) handleGraphUpdate(ctx context.Context, msg GraphUpdate) {
	r.inspectTarget = msg.InspectNode
	// Keep the pre-injection graph so environment changes can recompile it.
	r.lastGraph = msg.Graph.Clone()
	r.graphErrors = nil

	types, err := r.installGraph(msg.Graph, msg.InspectNode)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("graph compilation failed", "error", err)
	}
	r.send(CompilationResponse{Types: types, Err: err, GraphErrors: r.graphErrors})
}

// installGraph splices the inspect monitor (before any other mutation of
// the pass, so no stale edge set is rewired), compiles, and installs the
// program.
func (r *Runtime) installGraph(g *graph.Graph, inspectNode *nodeid.ID) (compiler.TypeInfo, error) {
	r.inspect = nil
	if inspectNode != nil {
		state, ok := newInspectState(g, *inspectNode)
		if !ok {
			return nil, fmt.Errorf("inspect target %s not found in graph", inspectNode)
		}
		r.inspect = state
	}

	program, errs := compiler.Compile(g, r.reg)
	if len(errs) > 0 {
		r.graphErrors = errs
		return nil, fmt.Errorf("graph compilation failed: %w", errs[0])
	}

	types, err := r.executor.Update(program)
	if err != nil {
		return nil, err
	}
	r.monitorPaths = program.MonitorPaths()
	r.refreshThumbnails = true
	return types, nil
}

func (r *Runtime) handleExecution(ctx context.Context, msg ExecutionRequest) {
	result, err := r.execute(ctx, msg.Config)

	thumbnails := r.sweepMonitors(ctx, r.refreshThumbnails)
	r.refreshThumbnails = false

	var inspect *InspectResult
	if r.inspect != nil {
		inspect = r.inspect.resolve(ctx, r.executor)
	}

	tables := make(map[nodeid.ID]*value.Table, len(r.tables))
	for id, t := range r.tables {
		tables[id] = t
	}

	r.send(ExecutionResponse{
		ID:         msg.ID,
		Result:     result,
		Err:        err,
		Transform:  msg.Config.Viewport,
		Thumbnails: thumbnails,
		Tables:     tables,
		Inspect:    inspect,
	})
}

// execute type-checks the request against the program's declared input type
// and runs it. Failures are reported in the response, never fatal to the
// loop.
func (r *Runtime) execute(ctx context.Context, config value.RenderConfig) (cty.Value, error) {
	inputType, ok := r.executor.InputType()
	if !ok {
		if len(r.graphErrors) > 0 {
			return cty.NilVal, fmt.Errorf("no compiled program: %v", r.graphErrors[0])
		}
		return cty.NilVal, fmt.Errorf("no compiled program")
	}

	var input cty.Value
	switch {
	case inputType == cty.NilType:
		input = cty.NilVal
	case inputType.Equals(value.RenderConfigType):
		cfg := config
		input = value.NewRenderConfig(&cfg)
	default:
		return cty.NilVal, fmt.Errorf("invalid input type %s", inputType.FriendlyName())
	}

	return r.executor.Execute(ctx, &r.env, input)
}

// send forwards an update to the handle. The outbound channel being gone is
// an unrecoverable process fault, consistent with the channel protocol.
func (r *Runtime) send(u Update) {
	r.out <- u
}
