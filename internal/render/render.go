// Package render turns scene values into SVG documents. It is a one-way
// boundary: the runtime hands it a value and a transform and consumes the
// resulting string, nothing flows back.
package render

import (
	"strconv"
	"strings"

	"github.com/vk/nodeflow/internal/value"
)

// Params control a single render pass.
type Params struct {
	ViewMode  string
	Thumbnail bool
}

// fmtFloat renders a float the same way every time, so rendered output is
// comparable across passes.
func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeShape(sb *strings.Builder, sh value.Shape) {
	switch sh.Kind {
	case "rect":
		sb.WriteString(`<rect x="` + fmtFloat(sh.X) + `" y="` + fmtFloat(sh.Y) +
			`" width="` + fmtFloat(sh.W) + `" height="` + fmtFloat(sh.H) + `"`)
		if sh.Fill != "" {
			sb.WriteString(` fill="` + sh.Fill + `"`)
		}
		sb.WriteString(`/>`)
	case "text":
		sb.WriteString(`<text x="` + fmtFloat(sh.X) + `" y="` + fmtFloat(sh.Y) +
			`" font-size="` + fmtFloat(sh.H) + `"`)
		if sh.Fill != "" {
			sb.WriteString(` fill="` + sh.Fill + `"`)
		}
		sb.WriteString(`>` + escapeText(sh.Text) + `</text>`)
	}
}

func escapeText(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}

// SVG renders a scene through the given viewport into a complete SVG
// document.
func SVG(s *value.Scene, viewport value.Footprint, p Params) string {
	var sb strings.Builder
	sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg"`)
	if viewport.Width > 0 && viewport.Height > 0 {
		sb.WriteString(` width="` + strconv.Itoa(viewport.Width) + `" height="` + strconv.Itoa(viewport.Height) + `"`)
	}
	sb.WriteString(`>`)

	scale := viewport.Scale
	if scale == 0 {
		scale = 1
	}
	transformed := scale != 1 || viewport.TranslateX != 0 || viewport.TranslateY != 0
	if transformed {
		sb.WriteString(`<g transform="matrix(` + fmtFloat(scale) + `,0,0,` + fmtFloat(scale) + `,` +
			fmtFloat(viewport.TranslateX) + `,` + fmtFloat(viewport.TranslateY) + `)">`)
	}
	for _, sh := range s.Shapes {
		writeShape(&sb, sh)
	}
	if transformed {
		sb.WriteString(`</g>`)
	}
	sb.WriteString(`</svg>`)
	return sb.String()
}

// Thumbnail renders a scene into a self-contained SVG whose viewBox is the
// scene's own bounding box, suitable for a node preview.
func Thumbnail(s *value.Scene) string {
	bounds, ok := s.Bounds()
	if !ok {
		return `<svg xmlns="http://www.w3.org/2000/svg"/>`
	}
	var sb strings.Builder
	sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="` +
		fmtFloat(bounds.MinX) + ` ` + fmtFloat(bounds.MinY) + ` ` +
		fmtFloat(bounds.Width()) + ` ` + fmtFloat(bounds.Height()) + `">`)
	for _, sh := range s.Shapes {
		writeShape(&sb, sh)
	}
	sb.WriteString(`</svg>`)
	return sb.String()
}
