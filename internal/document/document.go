// Package document models the editor-side document the runtime collaborates
// with: the current graph plus the derived caches (hit-testing rects, table
// snapshots, artwork bounds) that must be cleared when a compile fails so
// stale interactive state cannot be acted upon.
package document

import (
	"github.com/vk/nodeflow/internal/graph"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/value"
)

// Document owns a graph while it is idle. The runtime only ever sees clones.
type Document struct {
	graph         *graph.Graph
	hitTest       map[nodeid.ID]value.Rect
	tables        map[nodeid.ID]*value.Table
	artworkBounds *value.Rect
}

// New wraps a graph in a document.
func New(g *graph.Graph) *Document {
	return &Document{
		graph:   g,
		hitTest: make(map[nodeid.ID]value.Rect),
		tables:  make(map[nodeid.ID]*value.Table),
	}
}

// Graph returns the document's graph.
func (d *Document) Graph() *graph.Graph {
	return d.graph
}

// SetGraph replaces the document's graph, e.g. after a user edit.
func (d *Document) SetGraph(g *graph.Graph) {
	d.graph = g
}

// CurrentHash returns the content hash of the current graph version.
func (d *Document) CurrentHash() uint64 {
	return d.graph.ContentHash()
}

// SetTables replaces all table snapshots wholesale.
func (d *Document) SetTables(tables map[nodeid.ID]*value.Table) {
	if tables == nil {
		tables = make(map[nodeid.ID]*value.Table)
	}
	d.tables = tables
}

// Table returns the latest table snapshot for a node.
func (d *Document) Table(id nodeid.ID) (*value.Table, bool) {
	t, ok := d.tables[id]
	return t, ok
}

// SetArtworkBounds records the bounding box of the last rendered artwork.
func (d *Document) SetArtworkBounds(r value.Rect) {
	d.artworkBounds = &r
}

// ArtworkBounds returns the last rendered artwork's bounding box.
func (d *Document) ArtworkBounds() (value.Rect, bool) {
	if d.artworkBounds == nil {
		return value.Rect{}, false
	}
	return *d.artworkBounds, true
}

// UpdateHitTest replaces the hit-testing index wholesale.
func (d *Document) UpdateHitTest(rects map[nodeid.ID]value.Rect) {
	if rects == nil {
		rects = make(map[nodeid.ID]value.Rect)
	}
	d.hitTest = rects
}

// SetHitTestRect updates the hit-testing rect of a single node.
func (d *Document) SetHitTestRect(id nodeid.ID, r value.Rect) {
	d.hitTest[id] = r
}

// HitTest returns a node whose cached rect contains the point.
func (d *Document) HitTest(x, y float64) (nodeid.ID, bool) {
	for id, r := range d.hitTest {
		if x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY {
			return id, true
		}
	}
	return nodeid.ID{}, false
}

// ClearDerivedCaches drops every cache derived from a successful
// compilation. Called when a compile or execution fails.
func (d *Document) ClearDerivedCaches() {
	d.hitTest = make(map[nodeid.ID]value.Rect)
	d.tables = make(map[nodeid.ID]*value.Table)
	d.artworkBounds = nil
}
