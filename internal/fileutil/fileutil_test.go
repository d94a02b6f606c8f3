package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileLimited(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		maxSize int64
		wantErr bool
	}{
		{"within limit", "hello", 10, false},
		{"exactly at limit", "hello", 5, false},
		{"over limit", strings.Repeat("x", 100), 10, true},
		{"empty file", "", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "f.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			data, err := ReadFileLimited(path, tt.maxSize)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "exceeds maximum")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}

	_, err := ReadFileLimited(filepath.Join(t.TempDir(), "missing"), 10)
	assert.Error(t, err)
}

func TestAtomicWriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	// Overwrite leaves no temp files behind.
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAtomicWriteFilePreservesMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hook")
	require.NoError(t, AtomicWriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111)
}
