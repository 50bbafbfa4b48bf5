// Package app is the composition root: it wires the graph document, the
// operation registry, the runtime loop and its handle into a one-shot
// evaluation driven from the command line.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/hclgraph"
	"github.com/vk/nodeflow/internal/ops"
	"github.com/vk/nodeflow/internal/runtime"
	"github.com/vk/nodeflow/internal/value"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	slot   *runtime.Slot
	handle *runtime.Handle
	doc    *document.Document
}

// NewApp constructs the application with its own isolated logger and a
// freshly loaded graph document. A document that cannot be loaded is a fatal
// startup error.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	logger.Debug("Logger configured successfully.")

	g, err := hclgraph.Load(cfg.DocPath)
	if err != nil {
		panic(fmt.Errorf("failed to load graph document: %w", err))
	}
	logger.Debug("Graph document loaded.", "path", cfg.DocPath, "nodes", g.Len())

	rt, handle := runtime.New(ops.Builtin())
	slot := &runtime.Slot{}
	slot.Replace(rt)

	return &App{
		outW:   outW,
		logger: logger,
		slot:   slot,
		handle: handle,
		doc:    document.New(g),
	}
}

// Run evaluates the loaded document once. Without an output path the preview
// SVG is printed to the app's writer; with one, the artwork is exported and
// written to that file.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	renderConfig := value.RenderConfig{Viewport: value.Footprint{Scale: 1}}
	a.handle.SubmitGraphEvaluation(a.doc, renderConfig, nil, false)
	a.slot.TryRunOnce(ctx)

	events, err := a.handle.PollResponses(a.doc)
	if err != nil {
		return err
	}

	var preview string
	for _, ev := range events {
		if art, ok := ev.(runtime.ArtworkUpdated); ok {
			preview = art.SVG
		}
	}
	if preview == "" {
		return fmt.Errorf("evaluation produced no artwork")
	}

	if cfg.OutputPath == "" {
		fmt.Fprintln(a.outW, preview)
		a.logger.Debug("App.Run method finished.")
		return nil
	}

	return a.export(ctx, cfg)
}

// export re-runs the graph with an export footprint derived from the preview
// pass and writes the emitted file.
func (a *App) export(ctx context.Context, cfg *Config) error {
	format := strings.TrimPrefix(filepath.Ext(cfg.OutputPath), ".")
	_, err := a.handle.SubmitExport(a.doc, runtime.ExportConfig{
		Name:   filepath.Base(cfg.OutputPath),
		Format: format,
		Scale:  cfg.Scale,
	})
	if err != nil {
		return err
	}
	a.slot.TryRunOnce(ctx)

	events, err := a.handle.PollResponses(a.doc)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if file, ok := ev.(runtime.FileExport); ok {
			path := filepath.Join(filepath.Dir(cfg.OutputPath), file.Name)
			if err := os.WriteFile(path, []byte(file.Data), 0o644); err != nil {
				return fmt.Errorf("failed to write export %s: %w", path, err)
			}
			a.logger.Info("Export written.", "path", path, "mime", file.MIME)
			return nil
		}
	}
	return fmt.Errorf("export produced no file")
}
