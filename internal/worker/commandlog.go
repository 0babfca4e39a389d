package worker

import (
	"sync"

	"github.com/relaymesh/agenttree/internal/ipc"
)

// CommandLog accumulates WorkerCommandResult entries in the order their
// ExecCommandEnd events complete across all threads. No total order
// across threads is promised beyond arrival order at this log.
type CommandLog struct {
	mu      sync.Mutex
	entries []ipc.WorkerCommandResult
}

// NewCommandLog returns an empty CommandLog.
func NewCommandLog() *CommandLog {
	return &CommandLog{}
}

// Append records one completed command.
func (c *CommandLog) Append(r ipc.WorkerCommandResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, r)
}

// Snapshot returns a copy of every entry recorded so far, in order.
func (c *CommandLog) Snapshot() []ipc.WorkerCommandResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ipc.WorkerCommandResult, len(c.entries))
	copy(out, c.entries)
	return out
}
