// Package agentthread defines the Agent Thread abstraction the worker
// runtime drives: one internal conversational agent loop that accepts
// submitted operations and emits an asynchronous stream of interactive
// events, reporting a terminal status when it finishes.
//
// The reasoning loop itself, its prompt construction beyond the initial
// submission, and its tool registry are explicitly out of scope here —
// this package only specifies the shape every concrete implementation
// must present to the worker runtime, plus an in-memory reference
// implementation used by tests and as the default stand-in when no real
// collaborator is wired in.
package agentthread

import (
	"context"
	"errors"
	"sync"

	"github.com/relaymesh/agenttree/internal/ipc"
)

// StatusKind discriminates the lifecycle states of a Thread.
type StatusKind string

const (
	StatusPendingInit StatusKind = "pending_init"
	StatusRunning     StatusKind = "running"
	StatusCompleted   StatusKind = "completed"
	StatusErrored     StatusKind = "errored"
	StatusShutdown    StatusKind = "shutdown"
	StatusNotFound    StatusKind = "not_found"
)

// Status is the current lifecycle state of a Thread. Summary is set only
// for StatusCompleted (and may be empty there); Message is set only for
// StatusErrored.
type Status struct {
	Kind    StatusKind
	Summary string
	Message string
}

// IsTerminal reports whether s is one of the four final states. Only
// these are valid results from a wait loop; PendingInit and Running must
// never be observed as final.
func (s Status) IsTerminal() bool {
	switch s.Kind {
	case StatusCompleted, StatusErrored, StatusShutdown, StatusNotFound:
		return true
	default:
		return false
	}
}

// ResultSummary maps a terminal Status to the summary string the worker
// runtime reports in WorkerResult.summary, per the terminal-state
// polling table: Completed(msg) -> msg, Completed("") -> "", Errored(msg)
// -> msg, Shutdown -> "shutdown", NotFound -> "not found". Calling this
// on a non-terminal status is a programming error.
func (s Status) ResultSummary() string {
	switch s.Kind {
	case StatusCompleted:
		return s.Summary
	case StatusErrored:
		return s.Message
	case StatusShutdown:
		return "shutdown"
	case StatusNotFound:
		return "not found"
	default:
		panic("agentthread: ResultSummary called on non-terminal status " + string(s.Kind))
	}
}

// EventKind discriminates the interactive and informational events a
// Thread can emit.
type EventKind string

const (
	EventRequestUserInput          EventKind = "request_user_input"
	EventExecApprovalRequest       EventKind = "exec_approval_request"
	EventApplyPatchApprovalRequest EventKind = "apply_patch_approval_request"
	EventExecCommandEnd            EventKind = "exec_command_end"
	EventOther                     EventKind = "other"
)

// RequestUserInputEvent asks for one or more answers from the user.
type RequestUserInputEvent struct {
	EventID string
	Args    ipc.UserInputArgs
}

// ExecApprovalRequestEvent asks whether a shell command may run.
type ExecApprovalRequestEvent struct {
	EventID                      string
	Command                      []string
	Cwd                          string
	Reason                       string
	ProposedExecpolicyAmendment string
}

// ApplyPatchApprovalRequestEvent asks whether a patch outside the normal
// writable root may be applied.
type ApplyPatchApprovalRequestEvent struct {
	EventID   string
	Changes   []ipc.FileChange
	Reason    string
	GrantRoot string
}

// ExecCommandEndEvent reports one completed shell command.
type ExecCommandEndEvent struct {
	Argv            []string
	ExitCode        *int
	FormattedOutput string
}

// Event is one item from a Thread's event stream. At most one of the
// pointer fields is set, matching Kind; none is set for EventOther.
type Event struct {
	Kind EventKind

	RequestUserInput          *RequestUserInputEvent
	ExecApprovalRequest       *ExecApprovalRequestEvent
	ApplyPatchApprovalRequest *ApplyPatchApprovalRequestEvent
	ExecCommandEnd            *ExecCommandEndEvent
}

// ErrStreamClosed is returned by Thread.NextEvent once the thread will
// never emit another event.
var ErrStreamClosed = errors.New("agentthread: event stream closed")

// Thread is one internal agent conversation as seen by the worker
// runtime.
type Thread interface {
	ID() ipc.ThreadID

	// SubmitPrompt starts the thread's reasoning loop on prompt. Called
	// exactly once, immediately after the thread is started.
	SubmitPrompt(ctx context.Context, prompt string) error

	// SubmitUserInputAnswer delivers the user's response to a prior
	// RequestUserInputEvent with the same EventID.
	SubmitUserInputAnswer(ctx context.Context, eventID string, response ipc.UserInputResponse) error

	// SubmitExecApprovalAnswer delivers a decision for a prior
	// ExecApprovalRequestEvent.
	SubmitExecApprovalAnswer(ctx context.Context, eventID string, decision ipc.ReviewDecision) error

	// SubmitPatchApprovalAnswer delivers a decision for a prior
	// ApplyPatchApprovalRequestEvent.
	SubmitPatchApprovalAnswer(ctx context.Context, eventID string, decision ipc.ReviewDecision) error

	// NextEvent blocks until the next Event is available, ctx is done,
	// or the stream ends (ErrStreamClosed).
	NextEvent(ctx context.Context) (Event, error)

	// Status reports the thread's current lifecycle state. Safe to call
	// repeatedly (e.g. on a 200ms poll).
	Status(ctx context.Context) (Status, error)
}

// Manager starts threads and lets the drain supervisor discover them,
// including ones started after the supervisor began watching.
type Manager interface {
	// StartThread creates a new thread in StatusPendingInit and
	// publishes it to subscribers of SubscribeThreadCreated.
	StartThread(ctx context.Context) (Thread, error)

	// Threads returns every thread currently known to the manager.
	Threads() []Thread

	// SubscribeThreadCreated returns a channel that receives threads
	// started after this call, and a function that unsubscribes and
	// closes that channel. With the broadcaster ScriptedManager uses, a
	// thread published while the channel's 16-slot buffer is full is not
	// sent on it; it is still listed by Threads().
	SubscribeThreadCreated() (<-chan Thread, func())
}

// broadcaster fans out newly created threads to subscribers without
// blocking StartThread on a slow or absent subscriber.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan Thread]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Thread]struct{})}
}

func (b *broadcaster) subscribe() (<-chan Thread, func()) {
	ch := make(chan Thread, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

func (b *broadcaster) publish(t Thread) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- t:
		default:
			// A slow subscriber must not stall thread creation; it
			// will still see the thread via Manager.Threads().
		}
	}
}
