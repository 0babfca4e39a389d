// Package ipc defines the line-delimited JSON wire protocol exchanged
// between an orchestrator ("parent") process and an agent-tree worker
// ("child") process spawned to perform one delegated task.
//
// Every message is a single JSON object per line, tagged with a "type"
// discriminator inlined alongside its own fields (no nested "payload"
// envelope). See Writer and Reader for the framing rules.
package ipc

// Kind discriminates the variants of Message.
type Kind string

const (
	KindWorkRequest         Kind = "work_request"
	KindNeedUserInput       Kind = "need_user_input"
	KindUserInputAnswer     Kind = "user_input_answer"
	KindNeedExecApproval    Kind = "need_exec_approval"
	KindExecApprovalAnswer  Kind = "exec_approval_answer"
	KindNeedPatchApproval   Kind = "need_patch_approval"
	KindPatchApprovalAnswer Kind = "patch_approval_answer"
	KindWorkerResult        Kind = "worker_result"
	KindLog                 Kind = "log"
	KindError               Kind = "error"
)

// Message is implemented by every IPC variant. Kind reports the wire
// discriminator that was set (or will be set) on the "type" field.
type Message interface {
	Kind() Kind
}

// ThreadID identifies one internal agent conversation. Opaque and
// immutable once a thread starts.
type ThreadID string

// RequestKey correlates one interactive Need*/answer pair. The pair
// (ThreadID, EventID) is unique among all currently outstanding requests.
type RequestKey struct {
	ThreadID ThreadID `json:"thread_id"`
	EventID  string   `json:"event_id"`
}

// WorkRequest is the sole message the parent sends before reading the
// worker's output; it must be the first line on the wire.
type WorkRequest struct {
	Type    Kind     `json:"type"`
	Task    string   `json:"task"`
	Context *string  `json:"context,omitempty"`
	Tests   []string `json:"tests"`
	BaseRef *string  `json:"base_ref,omitempty"`
}

// Kind implements Message.
func (m *WorkRequest) Kind() Kind { return m.Type }

// NewWorkRequest builds a WorkRequest with the type tag set.
func NewWorkRequest(task string, context *string, tests []string, baseRef *string) *WorkRequest {
	if tests == nil {
		tests = []string{}
	}
	return &WorkRequest{Type: KindWorkRequest, Task: task, Context: context, Tests: tests, BaseRef: baseRef}
}

// Question is one interactive question posed by RequestUserInput.
type Question struct {
	ID       string   `json:"id"`
	Header   string   `json:"header"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// UserInputArgs carries the batch of questions for one need_user_input.
type UserInputArgs struct {
	Questions []Question `json:"questions"`
}

// NeedUserInput asks the parent to collect answers from the human user.
type NeedUserInput struct {
	Type       Kind          `json:"type"`
	RequestKey RequestKey    `json:"request_key"`
	Args       UserInputArgs `json:"args"`
}

func (m *NeedUserInput) Kind() Kind { return m.Type }

// NewNeedUserInput builds a NeedUserInput with the type tag set.
func NewNeedUserInput(key RequestKey, args UserInputArgs) *NeedUserInput {
	return &NeedUserInput{Type: KindNeedUserInput, RequestKey: key, Args: args}
}

// UserInputResponse carries question-id -> answer pairs. The default
// answer delivered when a request is abandoned is
// DefaultUserInputResponse (an empty, non-nil map), not the zero value.
type UserInputResponse struct {
	Answers map[string]string `json:"answers"`
}

// DefaultUserInputResponse is the sentinel delivered when the parent
// channel closes before answering a need_user_input.
func DefaultUserInputResponse() UserInputResponse {
	return UserInputResponse{Answers: map[string]string{}}
}

// UserInputAnswer carries the parent's reply to one NeedUserInput.
type UserInputAnswer struct {
	Type       Kind              `json:"type"`
	RequestKey RequestKey        `json:"request_key"`
	Response   UserInputResponse `json:"response"`
}

func (m *UserInputAnswer) Kind() Kind { return m.Type }

func NewUserInputAnswer(key RequestKey, resp UserInputResponse) *UserInputAnswer {
	return &UserInputAnswer{Type: KindUserInputAnswer, RequestKey: key, Response: resp}
}

// ReviewDecision is the human's verdict on a proposed exec or patch.
// ReviewDecisionDenied is the safe default an abandoned approval request
// is completed with; callers must pass it explicitly since Go's actual
// zero value for this type is the empty string, not a valid decision.
type ReviewDecision string

const (
	ReviewDecisionDenied             ReviewDecision = "denied"
	ReviewDecisionApproved           ReviewDecision = "approved"
	ReviewDecisionApprovedForSession ReviewDecision = "approved_for_session"
	ReviewDecisionAbort              ReviewDecision = "abort"
)

// ExecApprovalEvent describes a command the worker's agent wants to run.
type ExecApprovalEvent struct {
	Command                     []string `json:"command"`
	Cwd                         string   `json:"cwd"`
	Reason                      string   `json:"reason,omitempty"`
	ProposedExecpolicyAmendment string   `json:"proposed_execpolicy_amendment,omitempty"`
}

// NeedExecApproval asks the parent to approve or deny a command.
type NeedExecApproval struct {
	Type       Kind              `json:"type"`
	RequestKey RequestKey        `json:"request_key"`
	Event      ExecApprovalEvent `json:"event"`
}

func (m *NeedExecApproval) Kind() Kind { return m.Type }

func NewNeedExecApproval(key RequestKey, ev ExecApprovalEvent) *NeedExecApproval {
	return &NeedExecApproval{Type: KindNeedExecApproval, RequestKey: key, Event: ev}
}

// ExecApprovalAnswer carries the parent's decision on a NeedExecApproval.
type ExecApprovalAnswer struct {
	Type       Kind           `json:"type"`
	RequestKey RequestKey     `json:"request_key"`
	Decision   ReviewDecision `json:"decision"`
}

func (m *ExecApprovalAnswer) Kind() Kind { return m.Type }

func NewExecApprovalAnswer(key RequestKey, decision ReviewDecision) *ExecApprovalAnswer {
	return &ExecApprovalAnswer{Type: KindExecApprovalAnswer, RequestKey: key, Decision: decision}
}

// FileChange is one file touched by a proposed patch.
type FileChange struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "add", "delete", or "update"
	Diff string `json:"diff,omitempty"`
}

// PatchApprovalEvent describes a patch the worker's agent wants to apply
// outside its normal writable root.
type PatchApprovalEvent struct {
	Changes   []FileChange `json:"changes"`
	Reason    string       `json:"reason,omitempty"`
	GrantRoot string       `json:"grant_root,omitempty"`
}

// NeedPatchApproval asks the parent to approve or deny a patch.
type NeedPatchApproval struct {
	Type       Kind               `json:"type"`
	RequestKey RequestKey         `json:"request_key"`
	Event      PatchApprovalEvent `json:"event"`
}

func (m *NeedPatchApproval) Kind() Kind { return m.Type }

func NewNeedPatchApproval(key RequestKey, ev PatchApprovalEvent) *NeedPatchApproval {
	return &NeedPatchApproval{Type: KindNeedPatchApproval, RequestKey: key, Event: ev}
}

// PatchApprovalAnswer carries the parent's decision on a NeedPatchApproval.
type PatchApprovalAnswer struct {
	Type       Kind           `json:"type"`
	RequestKey RequestKey     `json:"request_key"`
	Decision   ReviewDecision `json:"decision"`
}

func (m *PatchApprovalAnswer) Kind() Kind { return m.Type }

func NewPatchApprovalAnswer(key RequestKey, decision ReviewDecision) *PatchApprovalAnswer {
	return &PatchApprovalAnswer{Type: KindPatchApprovalAnswer, RequestKey: key, Decision: decision}
}

// WorkerCommandResult records one shell command the worker's agent ran.
type WorkerCommandResult struct {
	Command  string `json:"command"`
	ExitCode *int   `json:"exit_code"`
	Output   string `json:"output"`
}

// WorkerResult is the last message the worker ever emits.
type WorkerResult struct {
	Type         Kind                  `json:"type"`
	Summary      string                `json:"summary"`
	Diff         string                `json:"diff"`
	Commands     []WorkerCommandResult `json:"commands"`
	WorktreePath string                `json:"worktree_path"`
}

func (m *WorkerResult) Kind() Kind { return m.Type }

func NewWorkerResult(summary, diff string, commands []WorkerCommandResult, worktreePath string) *WorkerResult {
	if commands == nil {
		commands = []WorkerCommandResult{}
	}
	return &WorkerResult{
		Type:         KindWorkerResult,
		Summary:      summary,
		Diff:         diff,
		Commands:     commands,
		WorktreePath: worktreePath,
	}
}

// LogLevel is the severity of a Log message.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Log carries a freeform diagnostic line; either side may emit it and
// the other side should ignore it rather than act on it.
type Log struct {
	Type    Kind     `json:"type"`
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

func (m *Log) Kind() Kind { return m.Type }

func NewLog(level LogLevel, message string) *Log {
	return &Log{Type: KindLog, Level: level, Message: message}
}

// Error carries a fatal, user-facing failure message. Receiving one
// means the sender is about to stop talking on this channel.
type Error struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

func (m *Error) Kind() Kind { return m.Type }

func NewError(message string) *Error {
	return &Error{Type: KindError, Message: message}
}

// Unknown is decoded from any well-formed JSON line whose "type"
// discriminator doesn't match one of the known variants above. Per
// spec section 4.1, unknown variants are tolerated for forward
// compatibility; a line that fails to parse as JSON, or whose fields
// don't fit the known variant it names, is a decode error instead. Callers treat Unknown the same as any other
// variant they don't specifically handle.
type Unknown struct {
	RawType string
}

func (m *Unknown) Kind() Kind { return Kind(m.RawType) }
