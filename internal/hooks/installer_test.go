package hooks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallWritesAllHooks(t *testing.T) {
	t.Parallel()

	gitDir := t.TempDir()
	require.NoError(t, Install(gitDir, false))

	for _, name := range hookNames {
		path := filepath.Join(gitDir, "hooks", name)
		contents, err := os.ReadFile(path)
		require.NoError(t, err, name)
		assert.Contains(t, string(contents), marker)
		assert.Contains(t, string(contents), "svcs hook "+name)
		assert.Contains(t, string(contents), "exit 0")

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&0o111, "%s must be executable", name)
	}

	state := Installed(gitDir)
	for _, name := range hookNames {
		assert.True(t, state[name], name)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	t.Parallel()

	gitDir := t.TempDir()
	require.NoError(t, Install(gitDir, false))
	require.NoError(t, Install(gitDir, false))
}

func TestInstallRefusesForeignHooks(t *testing.T) {
	t.Parallel()

	gitDir := t.TempDir()
	hooksDir := filepath.Join(gitDir, "hooks")
	require.NoError(t, os.MkdirAll(hooksDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(hooksDir, "post-commit"),
		[]byte("#!/bin/sh\necho custom hook\n"), 0o755))

	err := Install(gitDir, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not installed by svcs")

	// Force overwrites.
	require.NoError(t, Install(gitDir, true))
	assert.True(t, Installed(gitDir)["post-commit"])
}

func TestUninstallLeavesForeignHooks(t *testing.T) {
	t.Parallel()

	gitDir := t.TempDir()
	require.NoError(t, Install(gitDir, false))

	foreign := filepath.Join(gitDir, "hooks", "pre-commit")
	require.NoError(t, os.WriteFile(foreign, []byte("#!/bin/sh\necho mine\n"), 0o755))

	require.NoError(t, Uninstall(gitDir))

	for _, name := range hookNames {
		_, err := os.Stat(filepath.Join(gitDir, "hooks", name))
		assert.True(t, os.IsNotExist(err), name)
	}
	_, err := os.Stat(foreign)
	assert.NoError(t, err)
}
