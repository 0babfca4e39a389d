package delegate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyDiffAppliesCleanPatch(t *testing.T) {
	repo := t.TempDir()
	runGit(t, repo, "init")
	if err := os.WriteFile(filepath.Join(repo, "a.txt"), []byte("one\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGit(t, repo, "add", "a.txt")
	runGitWithConfig(t, repo, "commit", "-m", "initial")

	diff := "" +
		"diff --git a/a.txt b/a.txt\n" +
		"index 3b18e51..19465ac 100644\n" +
		"--- a/a.txt\n" +
		"+++ b/a.txt\n" +
		"@@ -1 +1 @@\n" +
		"-one\n" +
		"+two\n"

	chdir(t, repo)
	result, err := ApplyDiff(context.Background(), diff)
	if err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}
	if !result.Applied {
		t.Fatalf("expected patch to apply, got stderr: %s", result.Stderr)
	}

	content, err := os.ReadFile(filepath.Join(repo, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "two\n" {
		t.Fatalf("got content %q, want %q", content, "two\n")
	}
}

func TestApplyDiffReportsFailureWithoutGoError(t *testing.T) {
	repo := t.TempDir()
	runGit(t, repo, "init")

	chdir(t, repo)
	result, err := ApplyDiff(context.Background(), "not a valid diff at all\n")
	if err != nil {
		t.Fatalf("ApplyDiff returned a Go error for a rejected patch: %v", err)
	}
	if result.Applied {
		t.Fatal("expected Applied=false for a malformed diff")
	}
	if result.Stderr == "" {
		t.Fatal("expected captured stderr explaining the rejection")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, string(out))
	}
}

func runGitWithConfig(t *testing.T, dir string, args ...string) {
	t.Helper()
	fullArgs := append([]string{"-c", "user.name=Test", "-c", "user.email=test@example.com"}, args...)
	runGit(t, dir, fullArgs...)
}
