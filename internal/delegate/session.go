// Package delegate implements the orchestrator-side half of agent tree
// delegation: spawning the worker subprocess, ferrying its interactive
// requests to the orchestrator's own session, and exposing the two
// function-call tools the orchestrator's agent sees.
package delegate

import (
	"context"

	"github.com/relaymesh/agenttree/internal/ipc"
)

// Session is the orchestrator's own collaborator surface: the thing that
// actually knows how to ask the human a question or get a command
// approved. It is out of scope here in the same way the reasoning loop
// is out of scope for internal/agentthread — delegate only needs
// something that implements this interface to route a worker's
// interactive requests through.
type Session interface {
	// RequestUserInput asks the human to answer args.Questions for the
	// interactive request identified by callID. A nil response map is
	// treated as "no answer" and synthesized into an empty one.
	RequestUserInput(ctx context.Context, callID string, args ipc.UserInputArgs) (ipc.UserInputResponse, error)

	// RequestCommandApproval asks the human to approve or deny a
	// proposed shell command.
	RequestCommandApproval(ctx context.Context, callID string, event ipc.ExecApprovalEvent) (ipc.ReviewDecision, error)

	// RequestPatchApproval asks the human to approve or deny a proposed
	// patch outside the worker's normal writable root. Modeled as
	// returning a decision directly rather than a single-shot receiver,
	// since Go callers already block synchronously on Session calls;
	// an implementation backed by a real single-shot channel is free to
	// await it internally before returning.
	RequestPatchApproval(ctx context.Context, callID string, event ipc.PatchApprovalEvent) (ipc.ReviewDecision, error)
}
