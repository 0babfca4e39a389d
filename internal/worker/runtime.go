package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relaymesh/agenttree/internal/agentthread"
	"github.com/relaymesh/agenttree/internal/diagnostics"
	"github.com/relaymesh/agenttree/internal/ipc"
	"github.com/relaymesh/agenttree/internal/worktree"
)

// pollInterval is how often the runtime checks the agent thread's status
// once the prompt has been submitted.
const pollInterval = 200 * time.Millisecond

// Run executes the full worker runtime startup sequence against r/w: read
// the initial work_request, resolve the git top-level for cwd and carve
// out a scratch worktree, start an agent thread through mgr, drain its
// interactive requests while the prompt runs, and emit one worker_result
// once the thread reaches a terminal state. It returns the process exit
// status the caller should use: 0 once worker_result was sent, 1
// otherwise. Every failure except a failed worker_result send is first
// reported with an error message.
func Run(ctx context.Context, r *ipc.Reader, w *ipc.Writer, mgr agentthread.Manager, wtMgr *worktree.Manager, cwd string) int {
	msg, err := r.Next()
	if err != nil {
		sendFatal(w, fmt.Sprintf("failed to read work_request: %v", err))
		return 1
	}
	req, ok := msg.(*ipc.WorkRequest)
	if !ok {
		sendFatal(w, fmt.Sprintf("expected work_request as the first message, got %q", msg.Kind()))
		return 1
	}

	repoRoot, err := worktree.TopLevel(ctx, cwd)
	if err != nil {
		sendFatal(w, fmt.Sprintf("failed to resolve git top-level: %v", err))
		return 1
	}

	baseRef := ""
	if req.BaseRef != nil {
		baseRef = *req.BaseRef
	}
	wtPath, err := wtMgr.Create(ctx, repoRoot, baseRef)
	if err != nil {
		sendFatal(w, fmt.Sprintf("failed to create scratch worktree: %v", err))
		return 1
	}

	// mgr.StartThread is not given wtPath. The thread's working
	// directory, collaborative mode, freeform apply-patch and
	// worker-specific developer instructions are not set by this
	// runtime; they are whatever the Manager implementation provides.
	th, err := mgr.StartThread(ctx)
	if err != nil {
		sendFatal(w, fmt.Sprintf("failed to start agent thread: %v", err))
		return 1
	}

	if err := w.Send(ipc.NewLog(ipc.LogLevelInfo, fmt.Sprintf("started agent thread %s in worktree %s", th.ID(), wtPath))); err != nil {
		diagnostics.LogKV("worker.runtime", "failed to send startup log", "error", err)
	}

	regs := NewRegistries()
	cmdLog := NewCommandLog()

	// The input dispatcher answers whatever interactive requests the
	// drain supervisor raises for as long as the parent keeps stdin
	// open; it is not part of the wait group below because its natural
	// lifetime is the whole process, not just this prompt's run.
	go RunInputDispatcher(ctx, r, w, regs)

	g, gctx := errgroup.WithContext(ctx)
	drainCtx, cancelDrain := context.WithCancel(gctx)

	g.Go(func() error {
		RunDrainSupervisor(drainCtx, mgr, w, regs, cmdLog)
		return nil
	})

	var status agentthread.Status
	g.Go(func() error {
		defer cancelDrain()
		st, err := pollTerminal(gctx, th)
		if err != nil {
			return err
		}
		status = st
		return nil
	})

	if err := th.SubmitPrompt(ctx, buildPrompt(req)); err != nil {
		cancelDrain()
		g.Wait()
		sendFatal(w, fmt.Sprintf("failed to submit prompt: %v", err))
		return 1
	}

	if err := g.Wait(); err != nil {
		sendFatal(w, fmt.Sprintf("failed to poll agent thread status: %v", err))
		return 1
	}

	diff, err := wtMgr.Diff(ctx, wtPath)
	if err != nil {
		sendFatal(w, fmt.Sprintf("failed to compute final diff: %v", err))
		return 1
	}

	if err := w.Send(ipc.NewWorkerResult(status.ResultSummary(), diff, cmdLog.Snapshot(), wtPath)); err != nil {
		diagnostics.LogKV("worker.runtime", "failed to send worker_result", "error", err)
		return 1
	}
	return 0
}

// pollTerminal checks th's status immediately, then every pollInterval,
// until it reaches one of the four terminal states.
func pollTerminal(ctx context.Context, th agentthread.Thread) (agentthread.Status, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := th.Status(ctx)
		if err != nil {
			return agentthread.Status{}, err
		}
		if status.IsTerminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return agentthread.Status{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func sendFatal(w *ipc.Writer, message string) {
	diagnostics.LogKV("worker.runtime", "fatal", "message", message)
	if err := w.Send(ipc.NewError(message)); err != nil {
		diagnostics.LogKV("worker.runtime", "failed to send error message", "error", err)
	}
}
