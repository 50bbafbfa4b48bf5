package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func TestRun_PrintsPreview(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, `
node "rect" {
  op     = "scene.rect"
  inputs = [0, 0, 100, 50, "#f00"]
}

node "canvas" {
  op     = "render.canvas"
  inputs = [node.rect, config]
}

export = node.canvas
`)
	out := &bytes.Buffer{}

	err := run(out, []string{"--log-level", "error", path})

	require.NoError(t, err)
	require.Contains(t, out.String(), "<svg")
	require.Contains(t, out.String(), "#f00")
}

func TestRun_ExportWritesFile(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, `
node "rect" {
  op     = "scene.rect"
  inputs = [0, 0, 10, 20, "#0f0"]
}

node "canvas" {
  op     = "render.canvas"
  inputs = [node.rect, config]
}

export = node.canvas
`)
	outPath := filepath.Join(t.TempDir(), "art.svg")
	out := &bytes.Buffer{}

	err := run(out, []string{"--log-level", "error", "--out", outPath, "--scale", "2", path})

	require.NoError(t, err)
	data, readErr := os.ReadFile(outPath)
	require.NoError(t, readErr)
	require.Contains(t, string(data), "#0f0")
}

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// A document with a syntax error panics inside app.NewApp; run must
	// recover it into an error.
	path := writeDoc(t, `
node "a" {
  op =
`)
	out := &bytes.Buffer{}

	runErr := run(out, []string{path})

	require.Error(t, runErr)
	errStr := runErr.Error()
	require.True(t, strings.Contains(errStr, "application startup panicked"), "The error message should indicate that a panic was recovered.")
	require.True(t, strings.Contains(errStr, "failed to parse"), "The error message should contain the underlying reason for the panic.")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	args := []string{"-h"}
	out := &bytes.Buffer{}

	err := run(out, args)

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	err := run(out, args)

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_CompileErrorSurfaces(t *testing.T) {
	t.Parallel()

	// A structurally invalid document (unknown op) must fail the evaluation,
	// not the startup.
	path := writeDoc(t, `
node "a" {
  op     = "does.not.exist"
  inputs = []
}

export = node.a
`)
	out := &bytes.Buffer{}

	err := run(out, []string{"--log-level", "error", path})

	require.Error(t, err)
	require.Contains(t, err.Error(), "compilation failed")
}
