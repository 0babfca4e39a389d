package agentthread

import (
	"context"
	"sync"

	"github.com/relaymesh/agenttree/internal/hexid"
	"github.com/relaymesh/agenttree/internal/ipc"
)

// ScriptedManager is an in-memory Manager whose threads play back a
// fixed sequence of events and then settle into a fixed terminal status.
// It exists because the real reasoning loop is an external collaborator
// out of this package's scope; it is the default stand-in used by the
// worker runtime's tests and by cmd/agenttree when no other Manager is
// wired in.
type ScriptedManager struct {
	mu      sync.Mutex
	threads []Thread
	b       *broadcaster

	// NextScript supplies the event sequence and final status for each
	// thread StartThread creates, called with the thread's zero-based
	// creation index. When NextScript is nil, every new thread gets an
	// empty script that completes immediately with an empty summary.
	NextScript func(callIndex int) ([]Event, Status)
}

// NewScriptedManager returns a ScriptedManager. Configure NextScript
// before calling StartThread to control what each thread plays back.
func NewScriptedManager() *ScriptedManager {
	return &ScriptedManager{b: newBroadcaster()}
}

func (m *ScriptedManager) StartThread(ctx context.Context) (Thread, error) {
	m.mu.Lock()
	idx := len(m.threads)
	m.mu.Unlock()

	var script []Event
	status := Status{Kind: StatusCompleted, Summary: ""}
	if m.NextScript != nil {
		script, status = m.NextScript(idx)
	}

	t := newScriptedThread(ipc.ThreadID(hexid.New()), script, status)

	m.mu.Lock()
	m.threads = append(m.threads, t)
	m.mu.Unlock()

	m.b.publish(t)
	return t, nil
}

func (m *ScriptedManager) Threads() []Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Thread, len(m.threads))
	copy(out, m.threads)
	return out
}

func (m *ScriptedManager) SubscribeThreadCreated() (<-chan Thread, func()) {
	return m.b.subscribe()
}

// scriptedThread is a Thread whose event stream is a fixed, preloaded
// sequence. SubmitPrompt starts event delivery; Submit*Answer calls are
// recorded but otherwise ignored, since the script doesn't branch on
// them (a scripted reply already encodes whatever the fake "agent" would
// have done with an answer).
type scriptedThread struct {
	id     ipc.ThreadID
	script []Event

	mu        sync.Mutex
	nextIndex int
	exhausted bool
	status    StatusKind
	final     Status
	answers   []recordedAnswer
}

type recordedAnswer struct {
	kind    string
	eventID string
}

func newScriptedThread(id ipc.ThreadID, script []Event, final Status) *scriptedThread {
	return &scriptedThread{
		id:     id,
		script: script,
		status: StatusPendingInit,
		final:  final,
	}
}

func (t *scriptedThread) ID() ipc.ThreadID { return t.id }

func (t *scriptedThread) SubmitPrompt(ctx context.Context, prompt string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusRunning
	return nil
}

func (t *scriptedThread) SubmitUserInputAnswer(ctx context.Context, eventID string, response ipc.UserInputResponse) error {
	t.record("user_input", eventID)
	return nil
}

func (t *scriptedThread) SubmitExecApprovalAnswer(ctx context.Context, eventID string, decision ipc.ReviewDecision) error {
	t.record("exec_approval", eventID)
	return nil
}

func (t *scriptedThread) SubmitPatchApprovalAnswer(ctx context.Context, eventID string, decision ipc.ReviewDecision) error {
	t.record("patch_approval", eventID)
	return nil
}

func (t *scriptedThread) record(kind, eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.answers = append(t.answers, recordedAnswer{kind: kind, eventID: eventID})
}

// AnsweredCount returns how many Submit*Answer calls this thread has
// recorded so far. Intended for test assertions outside this package,
// where the recordedAnswer type itself isn't visible.
func (t *scriptedThread) AnsweredCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.answers)
}

// Answers returns every answer submitted back to this thread so far, in
// submission order. Intended for test assertions within this package.
func (t *scriptedThread) Answers() []recordedAnswer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]recordedAnswer, len(t.answers))
	copy(out, t.answers)
	return out
}

func (t *scriptedThread) NextEvent(ctx context.Context) (Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.nextIndex >= len(t.script) {
		// The stream only reports itself exhausted here, on the call
		// *after* the last event was handed out, so Status stays
		// non-terminal until the drain has finished acting on every
		// event (including submitting its answer, if any) rather than
		// going terminal the instant the last event is dequeued.
		t.exhausted = true
		t.status = t.final.Kind
		return Event{}, ErrStreamClosed
	}
	ev := t.script[t.nextIndex]
	t.nextIndex++
	return ev, nil
}

func (t *scriptedThread) Status(ctx context.Context) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exhausted {
		return t.final, nil
	}
	return Status{Kind: t.status}, nil
}
