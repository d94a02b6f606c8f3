package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryDispatch(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()

	tests := []struct {
		path   string
		parser string
	}{
		{"app/main.py", "python"},
		{"web/index.js", "javascript"},
		{"web/app.tsx", "javascript"},
		{"src/Auth.php", "php"},
		{"cmd/server.go", "go"},
	}

	for _, tt := range tests {
		p, ok := reg.ForPath(tt.path)
		require.True(t, ok, tt.path)
		assert.Equal(t, tt.parser, p.Name, tt.path)
	}

	_, ok := reg.ForPath("README.md")
	assert.False(t, ok)
	assert.False(t, reg.Supported("Makefile"))
	assert.True(t, reg.Supported("a.PY"))
}

func TestRegistryUnsupportedExtensionDegrades(t *testing.T) {
	t.Parallel()

	out := DefaultRegistry().ParseFile("notes.txt", []byte("hello"))
	assert.True(t, out.Degraded)
	assert.Equal(t, "no parser for extension", out.DegradedDetail)
	assert.Empty(t, out.Nodes)
}

func TestRegistrySupportedExtensions(t *testing.T) {
	t.Parallel()

	exts := DefaultRegistry().SupportedExtensions()
	assert.Contains(t, exts, ".py")
	assert.Contains(t, exts, ".php")
	assert.Contains(t, exts, ".go")
	assert.Contains(t, exts, ".ts")
	assert.IsIncreasing(t, exts)
}
