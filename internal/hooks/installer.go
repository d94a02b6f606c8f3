package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/svcs-dev/svcs/internal/errors"
	"github.com/svcs-dev/svcs/internal/fileutil"
)

// marker identifies hook scripts owned by svcs; foreign scripts are
// never overwritten without force.
const marker = "# installed by svcs"

// hookNames are the git hooks svcs installs.
var hookNames = []string{"post-commit", "post-merge", "post-checkout", "pre-push"}

// hookScript renders the shim for one hook. The shim delegates to the
// svcs binary and always exits 0 so git operations never block on
// analysis failures.
func hookScript(name string) string {
	return fmt.Sprintf(`#!/bin/sh
%s
svcs hook %s "$@" || true
exit 0
`, marker, name)
}

// Install writes the four hook shims into the repository's hook
// directory. Installation is idempotent; existing foreign hooks are
// refused unless force is set.
func Install(gitDir string, force bool) error {
	const op = "hooks.Install"

	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return errors.GitWrap(err, op, "failed to create hooks directory")
	}

	for _, name := range hookNames {
		path := filepath.Join(hooksDir, name)

		existing, err := os.ReadFile(path)
		switch {
		case err == nil && strings.Contains(string(existing), marker):
			// Ours already; rewrite to pick up script changes.
		case err == nil && !force:
			return errors.Git(op, fmt.Sprintf(
				"hook %s exists and was not installed by svcs (use --force to overwrite)", name))
		case err != nil && !os.IsNotExist(err):
			return errors.GitWrap(err, op, "failed to inspect "+name)
		}

		if err := fileutil.AtomicWriteFile(path, []byte(hookScript(name)), 0o755); err != nil { // #nosec G306 -- hooks must be executable
			return errors.GitWrap(err, op, "failed to write "+name)
		}
	}
	return nil
}

// Installed reports which of the svcs hooks are present and owned by
// svcs.
func Installed(gitDir string) map[string]bool {
	state := make(map[string]bool, len(hookNames))
	for _, name := range hookNames {
		contents, err := os.ReadFile(filepath.Join(gitDir, "hooks", name))
		state[name] = err == nil && strings.Contains(string(contents), marker)
	}
	return state
}

// Uninstall removes svcs-owned hook scripts, leaving foreign hooks
// untouched.
func Uninstall(gitDir string) error {
	const op = "hooks.Uninstall"

	for _, name := range hookNames {
		path := filepath.Join(gitDir, "hooks", name)
		contents, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.GitWrap(err, op, "failed to inspect "+name)
		}
		if !strings.Contains(string(contents), marker) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return errors.GitWrap(err, op, "failed to remove "+name)
		}
	}
	return nil
}
