package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestCapsuleRoundTrip(t *testing.T) {
	scene := &Scene{Shapes: []Shape{{Kind: "rect", X: 1, Y: 2, W: 3, H: 4, Fill: "#fff"}}}
	v := NewScene(scene)

	got, ok := AsScene(v)
	require.True(t, ok)
	assert.Same(t, scene, got)

	_, ok = AsTable(v)
	assert.False(t, ok)
	_, ok = AsRenderConfig(v)
	assert.False(t, ok)
}

func TestAsHelpersRejectNonCapsules(t *testing.T) {
	_, ok := AsScene(cty.NumberIntVal(5))
	assert.False(t, ok)
	_, ok = AsScene(cty.NilVal)
	assert.False(t, ok)
	_, ok = AsTable(cty.NullVal(TableType))
	assert.False(t, ok)
}

func TestSceneBounds(t *testing.T) {
	t.Run("empty scene has no bounds", func(t *testing.T) {
		_, ok := (&Scene{}).Bounds()
		assert.False(t, ok)
	})

	t.Run("bounds cover all shapes", func(t *testing.T) {
		s := &Scene{Shapes: []Shape{
			{Kind: "rect", X: 0, Y: 0, W: 10, H: 10},
			{Kind: "rect", X: -5, Y: 20, W: 10, H: 10},
		}}
		b, ok := s.Bounds()
		require.True(t, ok)
		assert.Equal(t, Rect{MinX: -5, MinY: 0, MaxX: 10, MaxY: 30}, b)
	})
}

func TestRectUnion(t *testing.T) {
	a := Rect{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	b := Rect{MinX: -1, MinY: 0.5, MaxX: 2, MaxY: 0.75}
	u := a.Union(b)
	assert.Equal(t, Rect{MinX: -1, MinY: 0, MaxX: 2, MaxY: 1}, u)
	assert.Equal(t, 3.0, u.Width())
	assert.Equal(t, 1.0, u.Height())
}
