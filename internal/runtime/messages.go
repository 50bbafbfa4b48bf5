package runtime

import (
	"github.com/oklog/ulid/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// ExecutionID correlates an execution request with its eventual response.
// IDs are generated fresh per request and never reused within a process; a
// collision would misroute a stale response.
type ExecutionID ulid.ULID

// NewExecutionID returns a fresh execution id.
func NewExecutionID() ExecutionID {
	return ExecutionID(ulid.Make())
}

// String returns the canonical text form of the id.
func (id ExecutionID) String() string {
	return ulid.ULID(id).String()
}

// Message is a request sent from the editing side to the runtime loop.
// Delivery is at-most-once-effectively: when the producer outruns the loop,
// only the latest message per category survives a drain cycle.
type Message interface {
	isMessage()
}

// AssetsUpdate replaces the runtime's asset cache (fonts and similar).
// If a program is already compiled, the last known graph is recompiled
// against the new assets.
type AssetsUpdate struct {
	Assets map[string]string
}

// PreferencesUpdate replaces the runtime's editor preferences, recompiling
// the last known graph like AssetsUpdate does.
type PreferencesUpdate struct {
	Preferences registry.Preferences
}

// GraphUpdate hands a new graph version to the runtime. The graph must be a
// clone owned by the runtime from this point on. InspectNode optionally
// designates one node whose output should be observable after execution.
type GraphUpdate struct {
	Graph       *graph.Graph
	InspectNode *nodeid.ID
}

// ExecutionRequest asks the runtime to run the current compiled program.
type ExecutionRequest struct {
	ID     ExecutionID
	Config value.RenderConfig
}

func (AssetsUpdate) isMessage()      {}
func (PreferencesUpdate) isMessage() {}
func (GraphUpdate) isMessage()       {}
func (ExecutionRequest) isMessage()  {}

// Update is a response sent from the runtime loop back to the editing side.
type Update interface {
	isUpdate()
}

// ExecutionResponse carries the outcome of one execution request,
// correlated to its request purely by id.
type ExecutionResponse struct {
	ID         ExecutionID
	Result     cty.Value
	Err        error
	Transform  value.Footprint
	Thumbnails []ThumbnailUpdated
	Tables     map[nodeid.ID]*value.Table
	Inspect    *InspectResult
}

// CompilationResponse reports the outcome of compiling a graph update:
// resolved type information on success, the compile error plus any
// structural graph errors otherwise.
type CompilationResponse struct {
	Types       compiler.TypeInfo
	Err         error
	GraphErrors []compiler.GraphError
}

// Notification is a generic runtime-originated notice.
type Notification struct {
	Message string
}

func (ExecutionResponse) isUpdate()   {}
func (CompilationResponse) isUpdate() {}
func (Notification) isUpdate()        {}
