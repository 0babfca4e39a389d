package worker

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relaymesh/agenttree/internal/agentthread"
	"github.com/relaymesh/agenttree/internal/ipc"
	"github.com/relaymesh/agenttree/internal/worktree"
)

func TestRunHappyPath(t *testing.T) {
	repo := initGitRepo(t)
	ctx := context.Background()
	wtMgr := worktree.NewManager(t.TempDir())

	mgr := agentthread.NewScriptedManager()
	mgr.NextScript = func(i int) ([]agentthread.Event, agentthread.Status) {
		return nil, agentthread.Status{Kind: agentthread.StatusCompleted, Summary: "done"}
	}

	inR, inW := io.Pipe()
	var outBuf pipeBuffer
	r := ipc.NewReader(inR)
	w := ipc.NewWriter(&outBuf)

	go func() {
		wr := ipc.NewWriter(inW)
		baseRef := "HEAD"
		wr.Send(ipc.NewWorkRequest("do thing", nil, nil, &baseRef))
	}()

	code := Run(ctx, r, w, mgr, wtMgr, repo)
	inW.Close()

	if code != 0 {
		t.Fatalf("Run returned %d, output so far: %s", code, outBuf.String())
	}

	result := findWorkerResult(t, outBuf.String())
	if result.Summary != "done" {
		t.Fatalf("got summary %q, want %q", result.Summary, "done")
	}
	if result.Diff != "" {
		t.Fatalf("expected empty diff for an untouched worktree, got %q", result.Diff)
	}
	if len(result.Commands) != 0 {
		t.Fatalf("expected no recorded commands, got %+v", result.Commands)
	}
	if result.WorktreePath == "" {
		t.Fatal("expected a non-empty worktree_path")
	}
}

func TestRunExecApprovalDefaultsOnStdinClose(t *testing.T) {
	repo := initGitRepo(t)
	ctx := context.Background()
	wtMgr := worktree.NewManager(t.TempDir())

	mgr := agentthread.NewScriptedManager()
	mgr.NextScript = func(i int) ([]agentthread.Event, agentthread.Status) {
		return []agentthread.Event{
			{
				Kind: agentthread.EventExecApprovalRequest,
				ExecApprovalRequest: &agentthread.ExecApprovalRequestEvent{
					EventID: "e1",
					Command: []string{"rm", "-rf", "scratch"},
					Cwd:     "/worktree",
				},
			},
		}, agentthread.Status{Kind: agentthread.StatusCompleted, Summary: "done"}
	}

	inR, inW := io.Pipe()
	var outBuf pipeBuffer
	r := ipc.NewReader(inR)
	w := ipc.NewWriter(&outBuf)

	go func() {
		wr := ipc.NewWriter(inW)
		baseRef := "HEAD"
		wr.Send(ipc.NewWorkRequest("do thing", nil, nil, &baseRef))
	}()

	codeCh := make(chan int, 1)
	go func() { codeCh <- Run(ctx, r, w, mgr, wtMgr, repo) }()

	deadline := time.After(2 * time.Second)
	for !strings.Contains(outBuf.String(), "need_exec_approval") {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for need_exec_approval to be emitted")
		case <-time.After(time.Millisecond):
		}
	}

	// Parent closes stdin without ever answering; the worker must still
	// make forward progress via the default decision.
	inW.Close()

	var code int
	select {
	case code = <-codeCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned after stdin closed")
	}

	if code != 0 {
		t.Fatalf("Run returned %d, output so far: %s", code, outBuf.String())
	}
	result := findWorkerResult(t, outBuf.String())
	if result.Summary != "done" {
		t.Fatalf("got summary %q, want %q", result.Summary, "done")
	}
}

func findWorkerResult(t *testing.T, wire string) *ipc.WorkerResult {
	t.Helper()
	r := ipc.NewReader(strings.NewReader(wire))
	for {
		msg, err := r.Next()
		if err != nil {
			t.Fatalf("no worker_result found in:\n%s", wire)
		}
		if wr, ok := msg.(*ipc.WorkerResult); ok {
			return wr
		}
	}
}

func initGitRepo(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()

	runGit(t, repo, "init")
	runGit(t, repo, "checkout", "-b", "main")

	if err := os.WriteFile(filepath.Join(repo, "main.txt"), []byte("initial\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	runGit(t, repo, "add", "main.txt")
	runGitWithConfig(t, repo, []string{"user.name=Test", "user.email=test@example.com"}, "commit", "-m", "initial commit")
	return repo
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, string(out))
	}
}

func runGitWithConfig(t *testing.T, dir string, config []string, args ...string) {
	t.Helper()
	fullArgs := make([]string, 0, len(config)*2+len(args))
	for _, kv := range config {
		fullArgs = append(fullArgs, "-c", kv)
	}
	fullArgs = append(fullArgs, args...)
	runGit(t, dir, fullArgs...)
}
