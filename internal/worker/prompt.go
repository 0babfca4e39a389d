package worker

import (
	"strings"

	"github.com/relaymesh/agenttree/internal/ipc"
)

// buildPrompt deterministically assembles the L2 prompt from a
// WorkRequest. It depends only on (task, context, tests) and is
// byte-identical across runs for the same inputs: an empty or
// whitespace-only context contributes no "Context:" section, and an
// empty tests list contributes no "Preferred tests:" section.
func buildPrompt(req *ipc.WorkRequest) string {
	var b strings.Builder
	b.WriteString(req.Task)

	if req.Context != nil && strings.TrimSpace(*req.Context) != "" {
		b.WriteString("\n\n---\n\nContext:\n")
		b.WriteString(*req.Context)
	}

	if len(req.Tests) > 0 {
		b.WriteString("\n\n---\n\nPreferred tests:\n")
		for _, cmd := range req.Tests {
			b.WriteString("- ")
			b.WriteString(cmd)
			b.WriteString("\n")
		}
	}

	return b.String()
}
