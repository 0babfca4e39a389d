package delegate

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/relaymesh/agenttree/internal/diagnostics"
)

// ApplyDiffResult is the result of agent_tree_apply_diff.
type ApplyDiffResult struct {
	Applied bool
	Stdout  string
	Stderr  string
}

// ApplyDiff implements agent_tree_apply_diff: it shells out to
// `git apply --whitespace=nowarn -` in the orchestrator's cwd, feeding
// diff on stdin. A nonzero exit is reported via Applied=false with the
// captured stderr rather than a Go error, since a rejected patch is a
// normal, user-facing outcome rather than a tool failure.
func ApplyDiff(ctx context.Context, diff string) (*ApplyDiffResult, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "git", "apply", "--whitespace=nowarn", "-")
	cmd.Dir = cwd
	cmd.Stdin = strings.NewReader(diff)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	result := &ApplyDiffResult{
		Applied: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if err != nil {
		diagnostics.LogKV("delegate.apply_diff", "git apply failed", "error", err, "stderr", result.Stderr)
	}
	return result, nil
}
