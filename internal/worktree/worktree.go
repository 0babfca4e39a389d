// Package worktree manages the Git worktree that isolates one delegated
// task's working copy from the orchestrator's own checkout.
package worktree

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/relaymesh/agenttree/internal/diagnostics"
)

// Manager creates and tears down scratch worktrees rooted under one
// worktrees directory, independent of the repository they isolate.
type Manager struct {
	// worktreesRoot is <agenttree home>/agent-tree/worktrees.
	worktreesRoot string
}

// NewManager returns a Manager that roots every scratch checkout under
// worktreesRoot (see internal/homedir.WorktreesRoot).
func NewManager(worktreesRoot string) *Manager {
	return &Manager{worktreesRoot: worktreesRoot}
}

// Create creates a detached scratch worktree for repoRoot at baseRef
// (defaulting to "HEAD" when empty) and returns its absolute path:
// <worktreesRoot>/<repo_basename>/<uuid-v4>. repoRoot's basename falls
// back to "repo" when it has no file-name component (e.g. "/").
func (m *Manager) Create(ctx context.Context, repoRoot, baseRef string) (string, error) {
	if baseRef == "" {
		baseRef = "HEAD"
	}

	repoBasename := filepath.Base(repoRoot)
	if repoBasename == "." || repoBasename == string(filepath.Separator) || repoBasename == "" {
		repoBasename = "repo"
	}

	dir := filepath.Join(m.worktreesRoot, repoBasename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("worktree: create dir %s: %w", dir, err)
	}

	wtPath := filepath.Join(dir, uuid.NewString())

	diagnostics.LogKV("worktree", "create", "repo_root", repoRoot, "base_ref", baseRef, "path", wtPath)
	if _, err := m.git(ctx, repoRoot, "worktree", "add", "--detach", wtPath, baseRef); err != nil {
		return "", fmt.Errorf("worktree: git worktree add --detach %s %s: %w", wtPath, baseRef, err)
	}

	return wtPath, nil
}

// TopLevel resolves dir to the root of the Git working tree that
// contains it, the same "orchestrator working directory -> repo root"
// lookup the worker runtime does before creating a scratch worktree.
func TopLevel(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("worktree: git rev-parse --show-toplevel: %s: %w", string(out), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Remove deletes the worktree at path, forcing removal of any local
// modifications. It is not called by the worker itself — the worktree's
// lifetime is owned by the caller once WorkerResult.worktree_path is
// emitted — but is exposed for orchestrator-side cleanup tooling.
func (m *Manager) Remove(ctx context.Context, repoRoot, path string) error {
	if _, err := m.git(ctx, repoRoot, "worktree", "remove", "--force", path); err != nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("worktree: remove %s failed (%v) and manual cleanup failed: %w", path, err, rmErr)
		}
		m.git(ctx, repoRoot, "worktree", "prune")
	}
	return nil
}

// devNull is the path git diff --no-index expects as the "old" side of a
// synthetic diff for a file that doesn't exist in the index.
var devNull = func() string {
	if runtime.GOOS == "windows" {
		return "NUL"
	}
	return "/dev/null"
}()

// Diff computes the combined unified diff for worktreePath: the tracked
// modifications from `git diff --no-color`, followed by one synthetic
// `git diff --no-color --no-index -- <devNull> <rel>` per untracked file
// reported by `git ls-files --others --exclude-standard`, in that order.
func (m *Manager) Diff(ctx context.Context, worktreePath string) (string, error) {
	var out strings.Builder

	tracked, err := m.gitDiffFamily(ctx, worktreePath, "diff", "--no-color")
	if err != nil {
		return "", fmt.Errorf("worktree: git diff --no-color: %w", err)
	}
	out.WriteString(tracked)

	untrackedList, err := m.git(ctx, worktreePath, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return "", fmt.Errorf("worktree: git ls-files --others --exclude-standard: %w", err)
	}

	for _, line := range strings.Split(untrackedList, "\n") {
		rel := strings.TrimSpace(line)
		if rel == "" {
			continue
		}
		d, err := m.gitDiffFamily(ctx, worktreePath, "diff", "--no-color", "--no-index", "--", devNull, rel)
		if err != nil {
			return "", fmt.Errorf("worktree: git diff --no-index %s: %w", rel, err)
		}
		out.WriteString(d)
	}

	return out.String(), nil
}

// gitDiffFamily runs a diff-family git command where exit code 1 (diff
// found differences, or --no-index's "files differ") is success just
// like exit code 0; any other exit code is a real failure.
func (m *Manager) gitDiffFamily(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return stdout.String(), nil
	}
	return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), stderr.String(), err)
}

// git runs a git command in dir and returns its combined output,
// treating any nonzero exit as a fatal failure.
func (m *Manager) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		diagnostics.LogKV("worktree", "git exec failed", "cmd", "git "+strings.Join(args, " "), "dir", dir, "error", err)
		return string(out), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), string(out), err)
	}
	return string(out), nil
}
