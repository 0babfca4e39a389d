package diagnostics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledIsNoOp(t *testing.T) {
	if Enabled() {
		t.Fatal("expected diagnostics disabled by default")
	}
	if Path() != "" {
		t.Fatalf("expected empty path when disabled, got %q", Path())
	}
	// Must not panic and must not allocate a logger.
	Log("test", "hello")
	Logf("test", "hello %d", 1)
	LogKV("test", "hello", "k", "v")
	if Enabled() {
		t.Fatal("no-op calls must not enable the logger")
	}
}

func TestInitWritesHeaderAndLines(t *testing.T) {
	defer Close()
	t.Setenv("AGENTTREE_HOME", t.TempDir())

	path, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !Enabled() {
		t.Fatal("expected Enabled() after Init")
	}
	if Path() != path {
		t.Fatalf("Path() = %q, want %q", Path(), path)
	}

	LogKV("worker", "thread started", "thread_id", "t1", "attempt", 3)
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "=== AGENTTREE DIAGNOSTICS LOG ===") {
		t.Fatalf("missing open header: %q", s)
	}
	if !strings.Contains(s, "[worker") {
		t.Fatalf("missing component tag: %q", s)
	}
	if !strings.Contains(s, "thread started thread_id=t1 attempt=3") {
		t.Fatalf("missing kv-formatted message: %q", s)
	}
	if !strings.Contains(s, "=== DIAGNOSTICS LOG CLOSED ===") {
		t.Fatalf("missing close marker: %q", s)
	}
	if Enabled() {
		t.Fatal("expected Enabled() false after Close")
	}
}

func TestInitNestsUnderHomeDiagnosticsDir(t *testing.T) {
	defer Close()
	home := t.TempDir()
	t.Setenv("AGENTTREE_HOME", home)

	path, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	want := filepath.Join(home, "diagnostics")
	if filepath.Dir(path) != want {
		t.Fatalf("log dir = %q, want %q", filepath.Dir(path), want)
	}
}
