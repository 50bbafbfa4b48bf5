package runtime

import (
	"context"

	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/nodeid"
	"github.com/vk/nodeflow/internal/render"
	"github.com/vk/nodeflow/internal/value"
)

// sweepMonitors walks every monitor in the compiled program and refreshes
// the caches derived from observed values: scene values regenerate a node
// thumbnail (emitting an update only when the rendering actually changed),
// table values replace the owning node's snapshot unconditionally, anything
// else is ignored. A monitor that cannot be introspected is skipped; the
// sweep never aborts.
func (r *Runtime) sweepMonitors(ctx context.Context, refreshThumbnails bool) []ThumbnailUpdated {
	logger := ctxlog.FromContext(ctx)

	r.pruneCaches()

	var updates []ThumbnailUpdated
	for _, path := range r.monitorPaths {
		if r.inspect != nil {
			// The inspect subscription's monitor is resolved separately.
			if last, ok := path.Last(); ok && last == r.inspect.monitor {
				continue
			}
		}

		owner, ok := path.Owner()
		if !ok {
			logger.Warn("monitor node has no owning node", "path", path.String())
			continue
		}

		observed, err := r.executor.Introspect(path)
		if err != nil {
			logger.Debug("failed to introspect monitor node", "path", path.String(), "error", err)
			continue
		}

		if scene, isScene := value.AsScene(observed); isScene {
			if !refreshThumbnails {
				continue
			}
			svg := render.Thumbnail(scene)
			if r.thumbnails[owner] == svg {
				continue
			}
			r.thumbnails[owner] = svg
			bounds, _ := scene.Bounds()
			updates = append(updates, ThumbnailUpdated{Node: owner, SVG: svg, Bounds: bounds})
			continue
		}
		if table, isTable := value.AsTable(observed); isTable {
			r.tables[owner] = table
		}
	}
	return updates
}

// pruneCaches drops cached state for nodes that no longer own a monitor in
// the current program.
func (r *Runtime) pruneCaches() {
	live := func(id nodeid.ID) bool {
		for _, p := range r.monitorPaths {
			if p.Contains(id) {
				return true
			}
		}
		return false
	}
	for id := range r.thumbnails {
		if !live(id) {
			delete(r.thumbnails, id)
		}
	}
	for id := range r.tables {
		if !live(id) {
			delete(r.tables, id)
		}
	}
}
