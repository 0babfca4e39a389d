package worker

import (
	"context"
	"strings"

	"github.com/relaymesh/agenttree/internal/agentthread"
	"github.com/relaymesh/agenttree/internal/diagnostics"
	"github.com/relaymesh/agenttree/internal/ipc"
)

// RunDrainSupervisor spawns a per-thread drain for every thread mgr
// already knows about, then spawns one for each thread subsequently
// created (via mgr's broadcast), until ctx is cancelled. Per spec
// section 5, "the main task awaits the supervisor" — not the
// individually spawned drains — so this returns as soon as its own
// select loop exits; each drainThread goroutine keeps running
// independently and is responsible for observing ctx's cancellation at
// its own next suspension point (see handleRequestUserInput and its
// siblings below).
func RunDrainSupervisor(ctx context.Context, mgr agentthread.Manager, w *ipc.Writer, regs *Registries, log *CommandLog) {
	created, unsubscribe := mgr.SubscribeThreadCreated()
	defer unsubscribe()

	spawn := func(th agentthread.Thread) {
		go drainThread(ctx, th, w, regs, log)
	}

	for _, th := range mgr.Threads() {
		spawn(th)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case th, ok := <-created:
			if !ok {
				return
			}
			spawn(th)
		}
	}
}

// drainThread consumes one thread's event stream until it is cancelled
// or the stream ends, dispatching each interactive event to its handler
// and recording completed commands. A handler failure is logged and
// never stops the drain.
func drainThread(ctx context.Context, th agentthread.Thread, w *ipc.Writer, regs *Registries, log *CommandLog) {
	for {
		if ctx.Err() != nil {
			return
		}

		ev, err := th.NextEvent(ctx)
		if err != nil {
			return
		}

		switch ev.Kind {
		case agentthread.EventRequestUserInput:
			handleRequestUserInput(ctx, th, ev.RequestUserInput, w, regs)
		case agentthread.EventExecApprovalRequest:
			handleExecApproval(ctx, th, ev.ExecApprovalRequest, w, regs)
		case agentthread.EventApplyPatchApprovalRequest:
			handlePatchApproval(ctx, th, ev.ApplyPatchApprovalRequest, w, regs)
		case agentthread.EventExecCommandEnd:
			recordExecCommandEnd(ev.ExecCommandEnd, log)
		default:
			// Unrecognized or purely informational events are ignored.
		}
	}
}

// waitForAnswer blocks on ch for the parent's reply, but also treats
// ctx's cancellation as a suspension point: if the per-thread drain is
// cancelled (e.g. the underlying Agent Thread already reached a
// terminal status) before the parent answers, it calls abandon to drop
// the key from its registry and returns def immediately, so the drain
// goroutine does not block forever and the agent still gets an answer.
// The runtime's terminal-state wait and worker_result do not depend on
// this: the context is cancelled only after a terminal status is seen,
// and RunDrainSupervisor does not wait for its drains.
func waitForAnswer[V any](ctx context.Context, ch <-chan V, abandon func(), def V) V {
	select {
	case v := <-ch:
		return v
	case <-ctx.Done():
		abandon()
		return def
	}
}

func handleRequestUserInput(ctx context.Context, th agentthread.Thread, ev *agentthread.RequestUserInputEvent, w *ipc.Writer, regs *Registries) {
	key := ipc.RequestKey{ThreadID: th.ID(), EventID: ev.EventID}
	answerCh := regs.UserInput.Insert(key)

	if err := w.Send(ipc.NewNeedUserInput(key, ev.Args)); err != nil {
		diagnostics.LogKV("worker.drain", "failed to send need_user_input", "thread_id", th.ID(), "event_id", ev.EventID, "error", err)
	}

	response := waitForAnswer(ctx, answerCh, func() { regs.UserInput.Abandon(key) }, ipc.DefaultUserInputResponse())
	// The answer must reach the agent even if ctx is already cancelled,
	// so the thread can still make forward progress or terminate.
	submitCtx := context.WithoutCancel(ctx)
	if err := th.SubmitUserInputAnswer(submitCtx, ev.EventID, response); err != nil {
		diagnostics.LogKV("worker.drain", "failed to submit user input answer", "thread_id", th.ID(), "event_id", ev.EventID, "error", err)
	}
}

func handleExecApproval(ctx context.Context, th agentthread.Thread, ev *agentthread.ExecApprovalRequestEvent, w *ipc.Writer, regs *Registries) {
	key := ipc.RequestKey{ThreadID: th.ID(), EventID: ev.EventID}
	answerCh := regs.ExecApproval.Insert(key)

	event := ipc.ExecApprovalEvent{
		Command:                      ev.Command,
		Cwd:                          ev.Cwd,
		Reason:                       ev.Reason,
		ProposedExecpolicyAmendment: ev.ProposedExecpolicyAmendment,
	}
	if err := w.Send(ipc.NewNeedExecApproval(key, event)); err != nil {
		diagnostics.LogKV("worker.drain", "failed to send need_exec_approval", "thread_id", th.ID(), "event_id", ev.EventID, "error", err)
	}

	decision := waitForAnswer(ctx, answerCh, func() { regs.ExecApproval.Abandon(key) }, ipc.ReviewDecisionDenied)
	submitCtx := context.WithoutCancel(ctx)
	if err := th.SubmitExecApprovalAnswer(submitCtx, ev.EventID, decision); err != nil {
		diagnostics.LogKV("worker.drain", "failed to submit exec approval answer", "thread_id", th.ID(), "event_id", ev.EventID, "error", err)
	}
}

func handlePatchApproval(ctx context.Context, th agentthread.Thread, ev *agentthread.ApplyPatchApprovalRequestEvent, w *ipc.Writer, regs *Registries) {
	key := ipc.RequestKey{ThreadID: th.ID(), EventID: ev.EventID}
	answerCh := regs.PatchApproval.Insert(key)

	event := ipc.PatchApprovalEvent{
		Changes:   ev.Changes,
		Reason:    ev.Reason,
		GrantRoot: ev.GrantRoot,
	}
	if err := w.Send(ipc.NewNeedPatchApproval(key, event)); err != nil {
		diagnostics.LogKV("worker.drain", "failed to send need_patch_approval", "thread_id", th.ID(), "event_id", ev.EventID, "error", err)
	}

	decision := waitForAnswer(ctx, answerCh, func() { regs.PatchApproval.Abandon(key) }, ipc.ReviewDecisionDenied)
	submitCtx := context.WithoutCancel(ctx)
	if err := th.SubmitPatchApprovalAnswer(submitCtx, ev.EventID, decision); err != nil {
		diagnostics.LogKV("worker.drain", "failed to submit patch approval answer", "thread_id", th.ID(), "event_id", ev.EventID, "error", err)
	}
}

func recordExecCommandEnd(ev *agentthread.ExecCommandEndEvent, log *CommandLog) {
	log.Append(ipc.WorkerCommandResult{
		Command:  strings.Join(ev.Argv, " "),
		ExitCode: ev.ExitCode,
		Output:   truncateOutput(ev.FormattedOutput),
	})
}
