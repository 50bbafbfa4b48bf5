// Package ops registers the built-in operation set into a registry. It is
// the runtime's standard library: arithmetic and text ops for plumbing,
// scene ops for renderable values, table ops for structured data, and the
// canvas op that terminates a render graph.
package ops

import (
	"fmt"
	"strconv"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/render"
	"github.com/vk/nodeflow/internal/value"
)

// Builtin returns a registry populated with every built-in op.
func Builtin() *registry.Registry {
	r := registry.New()
	if err := Register(r); err != nil {
		// Duplicate registration of the built-in set is a programmer error.
		panic(err)
	}
	return r
}

// Register adds the built-in op set to r.
func Register(r *registry.Registry) error {
	for _, op := range builtins {
		if err := r.Register(op); err != nil {
			return err
		}
	}
	return nil
}

func num(v cty.Value) float64 {
	f, _ := v.AsBigFloat().Float64()
	return f
}

var builtins = []*registry.Op{
	{
		Name:   registry.MonitorOp,
		Params: []cty.Type{cty.DynamicPseudoType},
		Result: cty.DynamicPseudoType,
		Eval: func(_ *registry.Env, args []cty.Value) (cty.Value, error) {
			return args[0], nil
		},
	},
	{
		Name:   "value.const",
		Params: []cty.Type{cty.DynamicPseudoType},
		Result: cty.DynamicPseudoType,
		Eval: func(_ *registry.Env, args []cty.Value) (cty.Value, error) {
			return args[0], nil
		},
	},
	{
		Name:   "math.add",
		Params: []cty.Type{cty.Number, cty.Number},
		Result: cty.Number,
		Eval: func(_ *registry.Env, args []cty.Value) (cty.Value, error) {
			return args[0].Add(args[1]), nil
		},
	},
	{
		Name:   "math.multiply",
		Params: []cty.Type{cty.Number, cty.Number},
		Result: cty.Number,
		Eval: func(_ *registry.Env, args []cty.Value) (cty.Value, error) {
			return args[0].Multiply(args[1]), nil
		},
	},
	{
		Name:   "text.concat",
		Params: []cty.Type{cty.String, cty.String},
		Result: cty.String,
		Eval: func(_ *registry.Env, args []cty.Value) (cty.Value, error) {
			return cty.StringVal(args[0].AsString() + args[1].AsString()), nil
		},
	},
	{
		Name:   "scene.rect",
		Params: []cty.Type{cty.Number, cty.Number, cty.Number, cty.Number, cty.String},
		Result: value.SceneType,
		Eval: func(env *registry.Env, args []cty.Value) (cty.Value, error) {
			fill := env.Preferences.DefaultFill
			if !args[4].IsNull() {
				fill = args[4].AsString()
			}
			return value.NewScene(&value.Scene{Shapes: []value.Shape{{
				Kind: "rect",
				X:    num(args[0]),
				Y:    num(args[1]),
				W:    num(args[2]),
				H:    num(args[3]),
				Fill: fill,
			}}}), nil
		},
	},
	{
		Name:   "scene.text",
		Params: []cty.Type{cty.String, cty.Number, cty.String},
		Result: value.SceneType,
		Eval: func(env *registry.Env, args []cty.Value) (cty.Value, error) {
			text := args[0].AsString()
			size := num(args[1])
			family := ""
			if !args[2].IsNull() {
				family = args[2].AsString()
			}
			// Glyph aspect ratio comes from the asset cache when the font is
			// loaded, otherwise a rough fallback.
			aspect := 0.6
			if raw, ok := env.Assets["font:"+family]; ok {
				if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
					aspect = parsed
				}
			}
			return value.NewScene(&value.Scene{Shapes: []value.Shape{{
				Kind: "text",
				W:    float64(len([]rune(text))) * size * aspect,
				H:    size,
				Fill: env.Preferences.DefaultFill,
				Text: text,
			}}}), nil
		},
	},
	{
		Name:   "scene.layer",
		Params: []cty.Type{value.SceneType, value.SceneType},
		Result: value.SceneType,
		Eval: func(_ *registry.Env, args []cty.Value) (cty.Value, error) {
			below, _ := value.AsScene(args[0])
			above, _ := value.AsScene(args[1])
			if below == nil || above == nil {
				return cty.NilVal, fmt.Errorf("scene.layer requires two scene values")
			}
			merged := &value.Scene{Shapes: make([]value.Shape, 0, len(below.Shapes)+len(above.Shapes))}
			merged.Shapes = append(merged.Shapes, below.Shapes...)
			merged.Shapes = append(merged.Shapes, above.Shapes...)
			return value.NewScene(merged), nil
		},
	},
	{
		Name:   "table.rows",
		Params: []cty.Type{cty.List(cty.String), cty.List(cty.List(cty.String))},
		Result: value.TableType,
		Eval: func(_ *registry.Env, args []cty.Value) (cty.Value, error) {
			table := &value.Table{}
			for _, col := range args[0].AsValueSlice() {
				table.Columns = append(table.Columns, col.AsString())
			}
			for _, row := range args[1].AsValueSlice() {
				var cells []string
				for _, cell := range row.AsValueSlice() {
					cells = append(cells, cell.AsString())
				}
				if len(cells) != len(table.Columns) {
					return cty.NilVal, fmt.Errorf("table row has %d cells, want %d", len(cells), len(table.Columns))
				}
				table.Rows = append(table.Rows, cells)
			}
			return value.NewTable(table), nil
		},
	},
	{
		Name:   "render.canvas",
		Params: []cty.Type{value.SceneType, value.RenderConfigType},
		Result: value.RenderOutputType,
		Eval: func(env *registry.Env, args []cty.Value) (cty.Value, error) {
			scene, ok := value.AsScene(args[0])
			if !ok {
				return cty.NilVal, fmt.Errorf("render.canvas requires a scene value")
			}
			config, ok := value.AsRenderConfig(args[1])
			if !ok {
				return cty.NilVal, fmt.Errorf("render.canvas requires a render config value")
			}
			svg := render.SVG(scene, config.Viewport, render.Params{ViewMode: config.ViewMode})
			bounds, _ := scene.Bounds()
			return value.NewRenderOutput(&value.RenderOutput{SVG: svg, Bounds: bounds}), nil
		},
	},
}
