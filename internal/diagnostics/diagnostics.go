// Package diagnostics provides a verbose structured logger for worker and
// delegation-handler internals.
//
// When enabled, every significant step of the worker runtime and the
// parent-side delegation handler is written to a single .log file under
// <agenttree home>/diagnostics/. The log includes nanosecond timestamps,
// goroutine IDs, caller locations, and the key-value context relevant to
// each event, so an execution can be reconstructed after the fact.
//
// When disabled (the default), all logging functions are no-ops with zero
// allocation overhead.
package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/relaymesh/agenttree/internal/hexid"
	"github.com/relaymesh/agenttree/internal/homedir"
)

var (
	logger   *Logger
	loggerMu sync.RWMutex
)

// Logger writes structured diagnostic lines to a file.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	startedAt time.Time
}

// Init initializes the global diagnostics logger. It creates
// <home>/diagnostics/ if needed and opens a log file named with the
// current timestamp and a random hex ID. Returns the log file path.
// Calling Init when diagnostics are off is unnecessary — all Log/Logf/
// LogKV calls are no-ops when the logger is nil.
func Init() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("diagnostics: %w", err)
	}

	dir := filepath.Join(home, "diagnostics")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("diagnostics: create dir %s: %w", dir, err)
	}

	now := time.Now()
	hid := hexid.New()
	filename := fmt.Sprintf("%s_%s.log", now.Format("20060102T150405"), hid)
	path := filepath.Join(dir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("diagnostics: open log %s: %w", path, err)
	}

	l := &Logger{
		file:      f,
		path:      path,
		startedAt: now,
	}

	header := fmt.Sprintf(
		"=== AGENTTREE DIAGNOSTICS LOG ===\nStarted: %s\nPID: %d\nGOMAXPROCS: %d\nLog ID: %s\nFile: %s\n===\n\n",
		now.Format(time.RFC3339Nano),
		os.Getpid(),
		runtime.GOMAXPROCS(0),
		hid,
		path,
	)
	f.WriteString(header)

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()

	return path, nil
}

// Close flushes and closes the diagnostics log. Safe to call when not
// initialized.
func Close() {
	loggerMu.Lock()
	l := logger
	logger = nil
	loggerMu.Unlock()

	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.startedAt)
	l.file.WriteString(fmt.Sprintf("\n=== DIAGNOSTICS LOG CLOSED === (duration=%s)\n", elapsed))
	l.file.Close()
}

// Enabled returns true if the diagnostics logger is active.
func Enabled() bool {
	loggerMu.RLock()
	e := logger != nil
	loggerMu.RUnlock()
	return e
}

// Path returns the log file path, or "" if not enabled.
func Path() string {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return ""
	}
	return l.path
}

// Log writes a diagnostics line. No-op when disabled. The line is
// prefixed with a nanosecond timestamp, goroutine ID, and caller.
func Log(component, msg string) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return
	}
	l.write(component, msg, 2)
}

// Logf writes a formatted diagnostics line. No-op when disabled.
func Logf(component, format string, args ...any) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return
	}
	l.write(component, fmt.Sprintf(format, args...), 2)
}

// LogKV writes a diagnostics line with key-value context pairs.
// Usage: diagnostics.LogKV("worker", "thread started", "thread_id", id)
func LogKV(component, msg string, kvs ...any) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		b.WriteString(fmt.Sprintf(" %v=%v", kvs[i], kvs[i+1]))
	}
	l.write(component, b.String(), 2)
}

func (l *Logger) write(component, msg string, callerSkip int) {
	now := time.Now()
	elapsed := now.Sub(l.startedAt)

	gid := goroutineID()

	_, file, line, ok := runtime.Caller(callerSkip)
	caller := "??:0"
	if ok {
		if idx := strings.LastIndex(file, "/internal/"); idx >= 0 {
			file = file[idx+1:]
		} else if idx := strings.LastIndex(file, "/cmd/"); idx >= 0 {
			file = file[idx+1:]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	line2 := fmt.Sprintf("%s +%12s [G%-6d] [%-14s] %-40s | %s\n",
		now.Format("15:04:05.000000000"),
		elapsed.Truncate(time.Microsecond),
		gid,
		component,
		caller,
		msg,
	)

	l.mu.Lock()
	l.file.WriteString(line2)
	l.mu.Unlock()
}

// goroutineID extracts the goroutine ID from runtime.Stack output.
// Intentionally used only when diagnostics are enabled, where
// performance is secondary to traceability.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := string(buf[:n])
	if !strings.HasPrefix(s, "goroutine ") {
		return 0
	}
	s = s[len("goroutine "):]
	var id int64
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
