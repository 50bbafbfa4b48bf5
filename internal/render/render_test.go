package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/vk/nodeflow/internal/value"
)

func TestSVGIsDeterministic(t *testing.T) {
	scene := &value.Scene{Shapes: []value.Shape{
		{Kind: "rect", X: 1.5, Y: 2, W: 10, H: 20, Fill: "#abc"},
		{Kind: "text", X: 0, Y: 0, H: 12, Text: "a<b"},
	}}
	viewport := value.Footprint{Scale: 2, TranslateX: 5, TranslateY: -3, Width: 100, Height: 50}

	first := SVG(scene, viewport, Params{})
	second := SVG(scene, viewport, Params{})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("render not deterministic (-first +second):\n%s", diff)
	}

	assert.Contains(t, first, `width="100" height="50"`)
	assert.Contains(t, first, `matrix(2,0,0,2,5,-3)`)
	assert.Contains(t, first, `<rect x="1.5"`)
	assert.Contains(t, first, `a&lt;b`)
}

func TestSVGIdentityViewportHasNoGroup(t *testing.T) {
	scene := &value.Scene{Shapes: []value.Shape{{Kind: "rect", W: 1, H: 1}}}
	out := SVG(scene, value.Footprint{}, Params{})
	assert.NotContains(t, out, "<g ")
}

func TestThumbnailUsesSceneBounds(t *testing.T) {
	scene := &value.Scene{Shapes: []value.Shape{{Kind: "rect", X: -5, Y: 10, W: 10, H: 20, Fill: "#000"}}}
	out := Thumbnail(scene)
	assert.Contains(t, out, `viewBox="-5 10 10 20"`)
}

func TestThumbnailEmptyScene(t *testing.T) {
	out := Thumbnail(&value.Scene{})
	assert.Equal(t, `<svg xmlns="http://www.w3.org/2000/svg"/>`, out)
}
