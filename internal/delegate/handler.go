package delegate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/relaymesh/agenttree/internal/diagnostics"
	"github.com/relaymesh/agenttree/internal/ipc"
)

// workerSubcommand is the hidden cobra subcommand the spawned child runs.
const workerSubcommand = "agent-tree-worker"

// Handler is the orchestrator-side delegation handler: it spawns the
// worker subprocess for agent_tree_delegate. agent_tree_apply_diff is
// the package-level ApplyDiff, not a Handler method.
type Handler struct {
	session Session

	// selfExe is resolved once via os.Executable; overridable in tests.
	selfExe string
}

// NewHandler returns a Handler that routes interactive worker requests
// through session.
func NewHandler(session Session) (*Handler, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("delegate: resolve self executable: %w", err)
	}
	return &Handler{session: session, selfExe: exe}, nil
}

// Delegate implements agent_tree_delegate: it spawns a worker
// subprocess, hands it req, and drives the request/response loop until
// the worker emits worker_result or exits unexpectedly.
func (h *Handler) Delegate(ctx context.Context, req *ipc.WorkRequest) (*ipc.WorkerResult, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("delegate: resolve cwd: %w", err)
	}

	cmd := exec.CommandContext(ctx, h.selfExe, workerSubcommand)
	cmd.Dir = cwd

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("delegate: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("delegate: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("delegate: stderr pipe: %w", err)
	}

	diagnostics.LogKV("delegate.handler", "spawning worker", "exe", h.selfExe, "cwd", cwd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("delegate: start worker: %w", err)
	}
	go drainStderr(stderr)

	w := ipc.NewWriter(stdin)
	r := ipc.NewReader(stdout)

	if err := w.Send(req); err != nil {
		stdin.Close()
		cmd.Wait()
		return nil, fmt.Errorf("delegate: write work_request: %w", err)
	}

	result, dispatchErr := h.dispatch(ctx, r, w)
	stdin.Close()

	if dispatchErr != nil {
		cmd.Wait()
		return nil, dispatchErr
	}
	if result != nil {
		// The child is expected to exit on its own once its stdout
		// closes after worker_result; reap it without blocking the
		// tool call on a potentially slow exit.
		go cmd.Wait()
		return result, nil
	}

	waitErr := cmd.Wait()
	return nil, fmt.Errorf("agent_tree worker exited unexpectedly: %v", waitErr)
}

// dispatch reads messages from r until worker_result, error, or the
// stream ends, routing every interactive request through h.session and
// writing the corresponding answer back on w. Factored out from
// Delegate so it can be driven over an io.Pipe in tests without a real
// subprocess.
func (h *Handler) dispatch(ctx context.Context, r *ipc.Reader, w *ipc.Writer) (*ipc.WorkerResult, error) {
	for {
		msg, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("delegate: read from worker: %w", err)
		}

		switch m := msg.(type) {
		case *ipc.NeedUserInput:
			response, err := h.session.RequestUserInput(ctx, m.RequestKey.EventID, m.Args)
			if err != nil {
				diagnostics.LogKV("delegate.handler", "request_user_input failed", "error", err)
				response = ipc.DefaultUserInputResponse()
			}
			if response.Answers == nil {
				response.Answers = map[string]string{}
			}
			if err := w.Send(ipc.NewUserInputAnswer(m.RequestKey, response)); err != nil {
				return nil, fmt.Errorf("delegate: write user_input_answer: %w", err)
			}

		case *ipc.NeedExecApproval:
			decision, err := h.session.RequestCommandApproval(ctx, m.RequestKey.EventID, m.Event)
			if err != nil {
				diagnostics.LogKV("delegate.handler", "request_command_approval failed", "error", err)
				decision = ipc.ReviewDecisionDenied
			}
			if err := w.Send(ipc.NewExecApprovalAnswer(m.RequestKey, decision)); err != nil {
				return nil, fmt.Errorf("delegate: write exec_approval_answer: %w", err)
			}

		case *ipc.NeedPatchApproval:
			decision, err := h.session.RequestPatchApproval(ctx, m.RequestKey.EventID, m.Event)
			if err != nil {
				diagnostics.LogKV("delegate.handler", "request_patch_approval failed", "error", err)
				decision = ipc.ReviewDecisionDenied
			}
			if err := w.Send(ipc.NewPatchApprovalAnswer(m.RequestKey, decision)); err != nil {
				return nil, fmt.Errorf("delegate: write patch_approval_answer: %w", err)
			}

		case *ipc.WorkerResult:
			return m, nil

		case *ipc.Error:
			return nil, fmt.Errorf("%s", m.Message)

		case *ipc.Log:
			// Ignored.

		default:
			// Ignored.
		}
	}
}

// drainStderr reads the worker's stderr line by line so a full pipe
// buffer never blocks the child. Each line is passed to the diagnostics
// log (a no-op unless it was initialized) and otherwise discarded; once
// the scanner stops (e.g. on a line over 1 MiB), the rest of the stream
// is read and discarded without logging.
func drainStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1024*1024)
	for sc.Scan() {
		diagnostics.Log("delegate.worker_stderr", sc.Text())
	}
	io.Copy(io.Discard, r)
}
