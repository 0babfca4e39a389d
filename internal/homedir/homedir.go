// Package homedir resolves the one directory the worker needs outside of
// what travels on a WorkRequest: the root that scratch worktrees are
// created under. It generalizes the teacher's internal/config.Dir()
// (~/.adaf, with no override) by adding an environment override, the
// same shape as the original Rust implementation's codex_home.
package homedir

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvOverride is the environment variable that, when set to a non-empty
// value, replaces the default ~/.agenttree home directory.
const EnvOverride = "AGENTTREE_HOME"

const defaultDirName = ".agenttree"

// Dir returns the agenttree home directory, honoring $AGENTTREE_HOME,
// creating it if needed.
func Dir() (string, error) {
	if override := os.Getenv(EnvOverride); override != "" {
		if err := os.MkdirAll(override, 0o755); err != nil {
			return "", fmt.Errorf("homedir: create %s: %w", override, err)
		}
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("homedir: user home dir: %w", err)
	}
	dir := filepath.Join(home, defaultDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("homedir: create %s: %w", dir, err)
	}
	return dir, nil
}

// WorktreesRoot returns <home>/agent-tree/worktrees, creating it if needed.
func WorktreesRoot() (string, error) {
	home, err := Dir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, "agent-tree", "worktrees")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("homedir: create %s: %w", dir, err)
	}
	return dir, nil
}
