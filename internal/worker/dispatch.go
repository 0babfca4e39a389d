package worker

import (
	"context"
	"fmt"
	"io"

	"github.com/relaymesh/agenttree/internal/diagnostics"
	"github.com/relaymesh/agenttree/internal/ipc"
	"github.com/relaymesh/agenttree/internal/reqkey"
)

// Registries bundles the three pending-request registries the input
// dispatcher delivers answers into and the per-thread drains insert
// requests into.
type Registries struct {
	UserInput     *reqkey.Registry[ipc.RequestKey, ipc.UserInputResponse]
	ExecApproval  *reqkey.Registry[ipc.RequestKey, ipc.ReviewDecision]
	PatchApproval *reqkey.Registry[ipc.RequestKey, ipc.ReviewDecision]
}

// NewRegistries returns an empty set of pending-request registries.
func NewRegistries() *Registries {
	return &Registries{
		UserInput:     reqkey.New[ipc.RequestKey, ipc.UserInputResponse](),
		ExecApproval:  reqkey.New[ipc.RequestKey, ipc.ReviewDecision](),
		PatchApproval: reqkey.New[ipc.RequestKey, ipc.ReviewDecision](),
	}
}

// AbandonAllWithDefaults completes every currently outstanding request in
// all three registries with its type-appropriate default answer. Called
// exactly once, by RunInputDispatcher when its read loop ends, so no
// agent thread is left blocked on an answer that will never arrive.
func (r *Registries) AbandonAllWithDefaults() {
	r.UserInput.AbandonAllWithDefault(ipc.DefaultUserInputResponse())
	r.ExecApproval.AbandonAllWithDefault(ipc.ReviewDecisionDenied)
	r.PatchApproval.AbandonAllWithDefault(ipc.ReviewDecisionDenied)
}

// RunInputDispatcher reads messages from r until EOF or a fatal error,
// dispatching each *_answer to its matching registry. It always abandons
// every outstanding request with its default answer before returning,
// regardless of why the loop ended, so the agent thread(s) it serves are
// never left waiting forever.
func RunInputDispatcher(ctx context.Context, r *ipc.Reader, w *ipc.Writer, regs *Registries) {
	defer regs.AbandonAllWithDefaults()

	for {
		msg, err := r.Next()
		if err != nil {
			if err != io.EOF {
				diagnostics.LogKV("worker.dispatch", "malformed input", "error", err)
				w.Send(ipc.NewError(fmt.Sprintf("malformed input: %v", err)))
			}
			return
		}

		switch m := msg.(type) {
		case *ipc.UserInputAnswer:
			regs.UserInput.Deliver(m.RequestKey, m.Response)
		case *ipc.ExecApprovalAnswer:
			regs.ExecApproval.Deliver(m.RequestKey, m.Decision)
		case *ipc.PatchApprovalAnswer:
			regs.PatchApproval.Deliver(m.RequestKey, m.Decision)
		case *ipc.Log:
			// Ignored; logs are informational only.
		case *ipc.Error:
			diagnostics.LogKV("worker.dispatch", "inbound error, terminating dispatcher", "message", m.Message)
			w.Send(ipc.NewError(m.Message))
			return
		default:
			w.Send(ipc.NewLog(ipc.LogLevelWarn, fmt.Sprintf("ignored IPC message: %s", msg.Kind())))
		}
	}
}
