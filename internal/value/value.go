// Package value defines the closed universe of values that flow through a
// compiled graph. Scalars travel as plain cty values; the domain types
// (scenes, tables, render configuration, render output) travel as cty
// capsule types, giving every consumer a checked "try as T" accessor instead
// of an unchecked cast.
package value

import (
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// Rect is an axis-aligned bounding box in document space.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the horizontal extent of the rect.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent of the rect.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Union returns the smallest rect covering both r and other.
func (r Rect) Union(other Rect) Rect {
	out := r
	if other.MinX < out.MinX {
		out.MinX = other.MinX
	}
	if other.MinY < out.MinY {
		out.MinY = other.MinY
	}
	if other.MaxX > out.MaxX {
		out.MaxX = other.MaxX
	}
	if other.MaxY > out.MaxY {
		out.MaxY = other.MaxY
	}
	return out
}

// Shape is a single drawable element of a scene.
type Shape struct {
	Kind string // "rect" or "text"
	X, Y float64
	W, H float64
	Fill string
	Text string
}

// Scene is a renderable collection of shapes, the runtime's equivalent of a
// graphic element. It is the value type that drives thumbnail generation.
type Scene struct {
	Shapes []Shape
}

// Bounds returns the bounding box of all shapes in the scene.
func (s *Scene) Bounds() (Rect, bool) {
	if s == nil || len(s.Shapes) == 0 {
		return Rect{}, false
	}
	out := Rect{MinX: s.Shapes[0].X, MinY: s.Shapes[0].Y, MaxX: s.Shapes[0].X + s.Shapes[0].W, MaxY: s.Shapes[0].Y + s.Shapes[0].H}
	for _, sh := range s.Shapes[1:] {
		out = out.Union(Rect{MinX: sh.X, MinY: sh.Y, MaxX: sh.X + sh.W, MaxY: sh.Y + sh.H})
	}
	return out, true
}

// Table is a structured, tabular data snapshot. Monitor sweeps stash the
// latest table per owning node so the inspection panel can show it.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Footprint describes the viewport mapping for one execution: a uniform
// scale plus translation, and the output resolution in pixels.
type Footprint struct {
	Scale      float64
	TranslateX float64
	TranslateY float64
	Width      int
	Height     int
}

// RenderConfig is the execution configuration handed to a compiled program
// whose input type is RenderConfigType.
type RenderConfig struct {
	Viewport  Footprint
	Time      float64
	ViewMode  string
	ForExport bool
}

// RenderOutput is the terminal value of a render graph: the finished SVG
// document plus the metadata the editor needs for hit testing.
type RenderOutput struct {
	SVG    string
	Bounds Rect
}

// Capsule types for the domain values. Two capsule values compare equal on
// type, never on contents; contents are reached through the As helpers.
var (
	SceneType        = cty.Capsule("scene", reflect.TypeOf(Scene{}))
	TableType        = cty.Capsule("table", reflect.TypeOf(Table{}))
	RenderConfigType = cty.Capsule("render_config", reflect.TypeOf(RenderConfig{}))
	RenderOutputType = cty.Capsule("render_output", reflect.TypeOf(RenderOutput{}))
)

// NewScene wraps a scene in a cty capsule value.
func NewScene(s *Scene) cty.Value { return cty.CapsuleVal(SceneType, s) }

// NewTable wraps a table in a cty capsule value.
func NewTable(t *Table) cty.Value { return cty.CapsuleVal(TableType, t) }

// NewRenderConfig wraps a render configuration in a cty capsule value.
func NewRenderConfig(c *RenderConfig) cty.Value { return cty.CapsuleVal(RenderConfigType, c) }

// NewRenderOutput wraps a render output in a cty capsule value.
func NewRenderOutput(o *RenderOutput) cty.Value { return cty.CapsuleVal(RenderOutputType, o) }

// AsScene returns the scene held by v, if v is a scene capsule.
func AsScene(v cty.Value) (*Scene, bool) {
	if v == cty.NilVal || v.IsNull() || !v.Type().Equals(SceneType) {
		return nil, false
	}
	return v.EncapsulatedValue().(*Scene), true
}

// AsTable returns the table held by v, if v is a table capsule.
func AsTable(v cty.Value) (*Table, bool) {
	if v == cty.NilVal || v.IsNull() || !v.Type().Equals(TableType) {
		return nil, false
	}
	return v.EncapsulatedValue().(*Table), true
}

// AsRenderConfig returns the render configuration held by v.
func AsRenderConfig(v cty.Value) (*RenderConfig, bool) {
	if v == cty.NilVal || v.IsNull() || !v.Type().Equals(RenderConfigType) {
		return nil, false
	}
	return v.EncapsulatedValue().(*RenderConfig), true
}

// AsRenderOutput returns the render output held by v.
func AsRenderOutput(v cty.Value) (*RenderOutput, bool) {
	if v == cty.NilVal || v.IsNull() || !v.Type().Equals(RenderOutputType) {
		return nil, false
	}
	return v.EncapsulatedValue().(*RenderOutput), true
}
