package runtime

import (
	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/value"
)

// Event is an outward effect produced while polling responses: artwork to
// draw, a thumbnail to refresh, a file to emit. Consumers dispatch on the
// concrete type.
type Event interface {
	isEvent()
}

// ArtworkUpdated carries the freshly rendered document artwork.
type ArtworkUpdated struct {
	SVG string
}

// ThumbnailUpdated carries a regenerated node thumbnail. Emitted only when
// the rendering differs from the previously cached one.
type ThumbnailUpdated struct {
	Node   nodeid.ID
	SVG    string
	Bounds value.Rect
}

// TypesUpdated reports the resolved node types (empty after a failed
// compile) plus any structural graph errors.
type TypesUpdated struct {
	Types  compiler.TypeInfo
	Errors []compiler.GraphError
}

// FileExport carries a finished export for file emission.
type FileExport struct {
	Name string
	MIME string
	Data string
}

// InspectUpdated carries the inspected node's observed value.
type InspectUpdated struct {
	Result InspectResult
}

// Notice is a generic runtime notification surfaced to the caller.
type Notice struct {
	Message string
}

func (ArtworkUpdated) isEvent()   {}
func (ThumbnailUpdated) isEvent() {}
func (TypesUpdated) isEvent()     {}
func (FileExport) isEvent()       {}
func (InspectUpdated) isEvent()   {}
func (Notice) isEvent()           {}
