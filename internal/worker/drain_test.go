package worker

import (
	"context"
	"testing"
	"time"

	"github.com/relaymesh/agenttree/internal/agentthread"
	"github.com/relaymesh/agenttree/internal/ipc"
)

func TestDrainUserInputRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := agentthread.NewScriptedManager()
	mgr.NextScript = func(i int) ([]agentthread.Event, agentthread.Status) {
		return []agentthread.Event{
			{
				Kind: agentthread.EventRequestUserInput,
				RequestUserInput: &agentthread.RequestUserInputEvent{
					EventID: "e1",
					Args: ipc.UserInputArgs{
						Questions: []ipc.Question{{ID: "q1", Header: "Q1", Question: "Pick one"}},
					},
				},
			},
		}, agentthread.Status{Kind: agentthread.StatusCompleted, Summary: "done"}
	}

	th, err := mgr.StartThread(ctx)
	if err != nil {
		t.Fatalf("StartThread: %v", err)
	}
	th.SubmitPrompt(ctx, "do thing")

	var outBuf pipeBuffer
	w := ipc.NewWriter(&outBuf)
	regs := NewRegistries()
	log := NewCommandLog()

	done := make(chan struct{})
	go func() {
		RunDrainSupervisor(ctx, mgr, w, regs, log)
		close(done)
	}()

	key := ipc.RequestKey{ThreadID: th.ID(), EventID: "e1"}
	deadline := time.After(2 * time.Second)
	for {
		if regs.UserInput.Len() == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for need_user_input to be registered")
		case <-time.After(time.Millisecond):
		}
	}

	if !regs.UserInput.Deliver(key, ipc.UserInputResponse{Answers: map[string]string{"q1": "yes"}}) {
		t.Fatal("expected Deliver to find the pending request")
	}

	cancel()
	<-done

	r := ipc.NewReader(outBuf.Reader())
	msg, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	need, ok := msg.(*ipc.NeedUserInput)
	if !ok {
		t.Fatalf("expected *ipc.NeedUserInput, got %T", msg)
	}
	if need.RequestKey != key {
		t.Fatalf("got key %+v, want %+v", need.RequestKey, key)
	}
}

func TestDrainExecApprovalDefaultsOnAbandon(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := agentthread.NewScriptedManager()
	mgr.NextScript = func(i int) ([]agentthread.Event, agentthread.Status) {
		return []agentthread.Event{
			{
				Kind: agentthread.EventExecApprovalRequest,
				ExecApprovalRequest: &agentthread.ExecApprovalRequestEvent{
					EventID: "e1",
					Command: []string{"rm", "-rf", "/tmp/x"},
					Cwd:     "/tmp",
				},
			},
		}, agentthread.Status{Kind: agentthread.StatusCompleted}
	}

	th, err := mgr.StartThread(ctx)
	if err != nil {
		t.Fatalf("StartThread: %v", err)
	}
	th.SubmitPrompt(ctx, "do thing")

	var outBuf pipeBuffer
	w := ipc.NewWriter(&outBuf)
	regs := NewRegistries()
	log := NewCommandLog()

	supervisorDone := make(chan struct{})
	go func() {
		RunDrainSupervisor(ctx, mgr, w, regs, log)
		close(supervisorDone)
	}()

	deadline := time.After(2 * time.Second)
	for regs.ExecApproval.Len() != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for need_exec_approval to register")
		case <-time.After(time.Millisecond):
		}
	}

	// Parent "closes stdin" without answering: abandon with the default.
	n := regs.ExecApproval.AbandonAllWithDefault(ipc.ReviewDecisionDenied)
	if n != 1 {
		t.Fatalf("expected 1 abandoned request, got %d", n)
	}

	counted := th.(interface{ AnsweredCount() int })
	deadline = time.After(2 * time.Second)
	for {
		if counted.AnsweredCount() == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the thread to receive the default decision")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-supervisorDone
}

// TestHandleExecApprovalUnblocksOnContextCancelWithoutAnswer covers the
// scenario spec section 5 anticipates but ScriptedManager's own terminal
// timing hides: the underlying Agent Thread reaching a terminal status
// while an exec approval is still outstanding and the parent never
// answers it (stdin stays open; nothing ever arrives). The handler must
// still return, abandon the stale registry entry, and submit the
// default decision to the agent, rather than block forever.
func TestHandleExecApprovalUnblocksOnContextCancelWithoutAnswer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := agentthread.NewScriptedManager()
	th, err := mgr.StartThread(ctx)
	if err != nil {
		t.Fatalf("StartThread: %v", err)
	}

	var outBuf pipeBuffer
	w := ipc.NewWriter(&outBuf)
	regs := NewRegistries()

	ev := &agentthread.ExecApprovalRequestEvent{
		EventID: "e1",
		Command: []string{"rm", "-rf", "/tmp/x"},
		Cwd:     "/tmp",
	}

	done := make(chan struct{})
	go func() {
		handleExecApproval(ctx, th, ev, w, regs)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for regs.ExecApproval.Len() != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for need_exec_approval to register")
		case <-time.After(time.Millisecond):
		}
	}

	// The parent never answers; cancel the way RunDrainSupervisor's
	// drainCtx is cancelled once pollTerminal observes a terminal
	// status, even with this request still outstanding.
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleExecApproval did not return after ctx was cancelled with no answer pending")
	}

	if got := regs.ExecApproval.Len(); got != 0 {
		t.Fatalf("expected the abandoned key to be removed from the registry, got %d still pending", got)
	}

	counted := th.(interface{ AnsweredCount() int })
	if counted.AnsweredCount() != 1 {
		t.Fatalf("expected the agent thread to still receive a default decision, got %d answers", counted.AnsweredCount())
	}
}

func TestDrainRecordsExecCommandEndTruncated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bigOutput := make([]byte, 20*1024)
	for i := range bigOutput {
		bigOutput[i] = 'x'
	}
	exitCode := 0

	mgr := agentthread.NewScriptedManager()
	mgr.NextScript = func(i int) ([]agentthread.Event, agentthread.Status) {
		return []agentthread.Event{
			{
				Kind: agentthread.EventExecCommandEnd,
				ExecCommandEnd: &agentthread.ExecCommandEndEvent{
					Argv:            []string{"go", "test", "./..."},
					ExitCode:        &exitCode,
					FormattedOutput: string(bigOutput),
				},
			},
		}, agentthread.Status{Kind: agentthread.StatusCompleted}
	}

	th, err := mgr.StartThread(ctx)
	if err != nil {
		t.Fatalf("StartThread: %v", err)
	}
	th.SubmitPrompt(ctx, "do thing")

	var outBuf pipeBuffer
	w := ipc.NewWriter(&outBuf)
	regs := NewRegistries()
	log := NewCommandLog()

	done := make(chan struct{})
	go func() {
		RunDrainSupervisor(ctx, mgr, w, regs, log)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(log.Snapshot()) != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the command log entry")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done

	entries := log.Snapshot()
	if entries[0].Command != "go test ./..." {
		t.Fatalf("got command %q", entries[0].Command)
	}
	if entries[0].ExitCode == nil || *entries[0].ExitCode != 0 {
		t.Fatalf("got exit code %v", entries[0].ExitCode)
	}
	if len(entries[0].Output) != maxOutputBytes+len(truncationMarker) {
		t.Fatalf("got output len %d", len(entries[0].Output))
	}
}
