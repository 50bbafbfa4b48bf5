package runtime

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/render"
	"github.com/vk/nodeflow/internal/value"
)

// DocumentSuffix is the document file suffix stripped from export names.
const DocumentSuffix = ".nodeflow"

// ExportConfig describes a file export of the rendered artwork.
type ExportConfig struct {
	Name                  string
	Format                string // "svg" or "png"
	Scale                 float64
	TransparentBackground bool
}

// executionContext is what the handle remembers about an in-flight request:
// a normal preview has none, an export carries its config. The response is
// routed by this stored context, never by inspecting the payload.
type executionContext struct {
	export *ExportConfig
}

// Handle is the caller-facing side of the runtime: it deduplicates graph
// updates, issues execution requests keyed by fresh ids, and resolves
// asynchronous responses back to their requests. It is not safe for
// concurrent use; it belongs to the editing goroutine.
type Handle struct {
	sender   chan<- Message
	receiver <-chan Update

	inFlight    map[ExecutionID]executionContext
	graphHash   uint64
	inspectNode *nodeid.ID
}

// UpdateGraph sends the document's graph to the runtime if it changed since
// the last send, the inspected node changed, or force is set. Redundant
// updates are dropped so per-frame calls stay cheap.
func (h *Handle) UpdateGraph(doc *document.Document, inspectNode *nodeid.ID, force bool) {
	hash := doc.CurrentHash()
	if hash == h.graphHash && equalNodePtr(h.inspectNode, inspectNode) && !force {
		return
	}
	h.graphHash = hash
	h.inspectNode = inspectNode
	h.sender <- GraphUpdate{Graph: doc.Graph().Clone(), InspectNode: inspectNode}
}

// SubmitEvaluation queues a preview execution of whatever graph the runtime
// currently holds. It never blocks waiting for the response.
func (h *Handle) SubmitEvaluation(config value.RenderConfig) ExecutionID {
	id := h.queueExecution(config)
	h.inFlight[id] = executionContext{}
	return id
}

// SubmitGraphEvaluation updates the graph if needed, then queues an
// evaluation.
func (h *Handle) SubmitGraphEvaluation(doc *document.Document, config value.RenderConfig, inspectNode *nodeid.ID, force bool) ExecutionID {
	h.UpdateGraph(doc, inspectNode, force)
	return h.SubmitEvaluation(config)
}

// SubmitExport queues an execution whose response is routed to file
// emission instead of the viewport. The export region is the last rendered
// artwork's bounding box.
func (h *Handle) SubmitExport(doc *document.Document, config ExportConfig) (ExecutionID, error) {
	bounds, ok := doc.ArtworkBounds()
	if !ok {
		return ExecutionID{}, fmt.Errorf("no bounding box")
	}
	scale := config.Scale
	if scale <= 0 {
		scale = 1
	}

	// Exports always resend the graph, with no inspected node.
	h.graphHash = doc.CurrentHash()
	h.inspectNode = nil
	h.sender <- GraphUpdate{Graph: doc.Graph().Clone()}

	renderConfig := value.RenderConfig{
		Viewport: value.Footprint{
			Scale:      scale,
			TranslateX: -bounds.MinX * scale,
			TranslateY: -bounds.MinY * scale,
			Width:      int(bounds.Width() * scale),
			Height:     int(bounds.Height() * scale),
		},
		ForExport: true,
	}
	id := h.queueExecution(renderConfig)
	h.inFlight[id] = executionContext{export: &config}
	return id, nil
}

func (h *Handle) queueExecution(config value.RenderConfig) ExecutionID {
	id := NewExecutionID()
	h.sender <- ExecutionRequest{ID: id, Config: config}
	return id
}

// PollResponses drains every queued response and turns each into outward
// events. It stops at the first failed response; anything still queued is
// picked up by the next poll.
func (h *Handle) PollResponses(doc *document.Document) ([]Event, error) {
	var events []Event
	for {
		select {
		case update := <-h.receiver:
			produced, err := h.handleUpdate(doc, update)
			events = append(events, produced...)
			if err != nil {
				return events, err
			}
		default:
			return events, nil
		}
	}
}

func (h *Handle) handleUpdate(doc *document.Document, update Update) ([]Event, error) {
	switch resp := update.(type) {
	case ExecutionResponse:
		return h.handleExecutionResponse(doc, resp)
	case CompilationResponse:
		if resp.Err != nil {
			// The compiled state is gone; derived interactive caches are stale.
			doc.ClearDerivedCaches()
			return []Event{TypesUpdated{Errors: resp.GraphErrors}},
				fmt.Errorf("node graph compilation failed: %w", resp.Err)
		}
		return []Event{TypesUpdated{Types: resp.Types, Errors: resp.GraphErrors}}, nil
	case Notification:
		return []Event{Notice{Message: resp.Message}}, nil
	default:
		return nil, fmt.Errorf("unknown runtime update %T", update)
	}
}

func (h *Handle) handleExecutionResponse(doc *document.Document, resp ExecutionResponse) ([]Event, error) {
	// Every request produces exactly one response; an unknown id means
	// correlation is broken and must fail loudly.
	context, ok := h.inFlight[resp.ID]
	if !ok {
		return nil, fmt.Errorf("invalid generation id %s", resp.ID)
	}
	delete(h.inFlight, resp.ID)

	if resp.Err != nil {
		doc.ClearDerivedCaches()
		return nil, fmt.Errorf("node graph evaluation failed: %w", resp.Err)
	}

	doc.SetTables(resp.Tables)

	var events []Event
	for _, thumbnail := range resp.Thumbnails {
		doc.SetHitTestRect(thumbnail.Node, thumbnail.Bounds)
		events = append(events, thumbnail)
	}

	if context.export != nil {
		event, err := exportEvent(resp.Result, *context.export)
		if err != nil {
			return events, err
		}
		events = append(events, event)
	} else {
		event, err := h.processOutput(doc, resp)
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}

	if h.inspectNode != nil && resp.Inspect != nil {
		events = append(events, InspectUpdated{Result: *resp.Inspect})
	}
	return events, nil
}

// processOutput renders a preview response into artwork. Render outputs
// pass through as-is; bare scenes and scalars take a debug render path.
func (h *Handle) processOutput(doc *document.Document, resp ExecutionResponse) (Event, error) {
	if out, ok := value.AsRenderOutput(resp.Result); ok {
		doc.SetArtworkBounds(out.Bounds)
		return ArtworkUpdated{SVG: out.SVG}, nil
	}
	if scene, ok := value.AsScene(resp.Result); ok {
		if bounds, hasBounds := scene.Bounds(); hasBounds {
			doc.SetArtworkBounds(bounds)
		}
		return ArtworkUpdated{SVG: render.SVG(scene, resp.Transform, render.Params{})}, nil
	}
	if resp.Result != cty.NilVal && resp.Result.Type().IsPrimitiveType() {
		text, err := convert.Convert(resp.Result, cty.String)
		if err == nil && !text.IsNull() {
			scene := &value.Scene{Shapes: []value.Shape{{Kind: "text", H: 14, Text: text.AsString()}}}
			return ArtworkUpdated{SVG: render.SVG(scene, resp.Transform, render.Params{})}, nil
		}
	}
	return nil, fmt.Errorf("invalid node graph output type %s", describeType(resp.Result))
}

// exportEvent turns an export-context response into a file-emission event.
func exportEvent(result cty.Value, config ExportConfig) (Event, error) {
	out, ok := value.AsRenderOutput(result)
	if !ok {
		return nil, fmt.Errorf("incorrect render type for exporting (expected render output), got %s", describeType(result))
	}

	format := strings.ToLower(config.Format)
	if format == "" {
		format = "svg"
	}
	name := strings.TrimSuffix(config.Name, DocumentSuffix)
	if !strings.HasSuffix(name, "."+format) {
		name += "." + format
	}

	mime := "image/svg+xml"
	if format == "png" {
		mime = "image/png"
	}
	return FileExport{Name: name, MIME: mime, Data: out.SVG}, nil
}

// IntrospectNodeIn looks inside a node's nested subgraph, locates an inner
// node with find, and returns its monitored value via the given
// introspector. It returns false when the node has no subgraph, find comes
// up empty, or no value was observed.
func IntrospectNodeIn(intro Introspector, g *graph.Graph, node nodeid.ID, find func(*graph.Graph) (nodeid.ID, bool)) (cty.Value, bool) {
	wrapper, ok := g.Node(node)
	if !ok || wrapper.Subgraph == nil {
		return cty.NilVal, false
	}
	inner, ok := find(wrapper.Subgraph)
	if !ok {
		return cty.NilVal, false
	}
	observed, err := intro.Introspect(nodeid.Path{node, inner})
	if err != nil {
		return cty.NilVal, false
	}
	return observed, true
}

// Introspector reads the last observed value at a monitor path.
type Introspector interface {
	Introspect(path nodeid.Path) (cty.Value, error)
}

func describeType(v cty.Value) string {
	if v == cty.NilVal {
		return "none"
	}
	return v.Type().FriendlyName()
}

func equalNodePtr(a, b *nodeid.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
