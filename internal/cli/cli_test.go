package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositionalPath(t *testing.T) {
	out := &bytes.Buffer{}
	config, shouldExit, err := Parse([]string{"doc.hcl"}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "doc.hcl", config.DocPath)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, 1.0, config.Scale)
}

func TestParseFlagOverridesPositional(t *testing.T) {
	out := &bytes.Buffer{}
	config, _, err := Parse([]string{"--doc", "a.hcl", "b.hcl"}, out)
	require.NoError(t, err)
	assert.Equal(t, "a.hcl", config.DocPath)

	config, _, err = Parse([]string{"-d", "c.hcl"}, out)
	require.NoError(t, err)
	assert.Equal(t, "c.hcl", config.DocPath)
}

func TestParseNoPathPrintsUsage(t *testing.T) {
	out := &bytes.Buffer{}
	_, shouldExit, err := Parse(nil, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad log format", []string{"--log-format", "xml", "doc.hcl"}, "invalid log-format"},
		{"bad log level", []string{"--log-level", "loud", "doc.hcl"}, "invalid log-level"},
		{"bad scale", []string{"--scale", "-1", "doc.hcl"}, "invalid scale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			_, _, err := Parse(tt.args, out)
			require.Error(t, err)
			exitErr, ok := err.(*ExitError)
			require.True(t, ok)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.wantErr)
		})
	}
}
