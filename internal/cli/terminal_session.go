package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/relaymesh/agenttree/internal/ipc"
)

// terminalSession is a delegate.Session that proxies a worker's
// interactive requests to whoever is running `agenttree delegate`
// directly at a terminal. It stands in for the orchestrator's real user
// session, which is out of this repo's scope per spec.md §1.
type terminalSession struct {
	in  *bufio.Reader
	out *os.File
}

func newTerminalSession() *terminalSession {
	return &terminalSession{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (s *terminalSession) RequestUserInput(_ context.Context, _ string, args ipc.UserInputArgs) (ipc.UserInputResponse, error) {
	answers := map[string]string{}
	for _, q := range args.Questions {
		fmt.Fprintf(s.out, "\n%s\n%s\n", q.Header, q.Question)
		if len(q.Options) > 0 {
			fmt.Fprintf(s.out, "options: %s\n", strings.Join(q.Options, ", "))
		}
		fmt.Fprint(s.out, "> ")
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			continue
		}
		answers[q.ID] = strings.TrimRight(line, "\r\n")
	}
	return ipc.UserInputResponse{Answers: answers}, nil
}

func (s *terminalSession) RequestCommandApproval(_ context.Context, _ string, ev ipc.ExecApprovalEvent) (ipc.ReviewDecision, error) {
	fmt.Fprintf(s.out, "\nworker wants to run: %s (cwd=%s)\n", strings.Join(ev.Command, " "), ev.Cwd)
	if ev.Reason != "" {
		fmt.Fprintf(s.out, "reason: %s\n", ev.Reason)
	}
	return s.readDecision()
}

func (s *terminalSession) RequestPatchApproval(_ context.Context, _ string, ev ipc.PatchApprovalEvent) (ipc.ReviewDecision, error) {
	fmt.Fprintf(s.out, "\nworker wants to apply a patch touching %d file(s)", len(ev.Changes))
	if ev.GrantRoot != "" {
		fmt.Fprintf(s.out, " outside %s", ev.GrantRoot)
	}
	fmt.Fprintln(s.out)
	return s.readDecision()
}

func (s *terminalSession) readDecision() (ipc.ReviewDecision, error) {
	fmt.Fprint(s.out, "approve? [y/N/abort] > ")
	line, _ := s.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return ipc.ReviewDecisionApproved, nil
	case "a", "abort":
		return ipc.ReviewDecisionAbort, nil
	default:
		return ipc.ReviewDecisionDenied, nil
	}
}
