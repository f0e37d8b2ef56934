//go:build integration

package tier1

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"
)

const (
	binaryName     = "foldersync"
	logFileName    = "sync_log.txt"
	defaultTimeout = 5 * time.Minute
)

// Harness builds the foldersync binary and drives it against real trees
type Harness struct {
	t       *testing.T
	binary  string
	Source  string
	Replica string
	LogDir  string
}

// NewHarness creates a new test harness with fresh source, replica and
// log directories
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	root := t.TempDir()
	return &Harness{
		t:       t,
		Source:  filepath.Join(root, "source"),
		Replica: filepath.Join(root, "replica"),
		LogDir:  filepath.Join(root, "logs"),
	}
}

// BuildBinary compiles the command into a temporary directory
func (h *Harness) BuildBinary(ctx context.Context) error {
	h.t.Helper()

	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.binary = filepath.Join(h.t.TempDir(), binaryName)
	h.t.Logf("Building %s", h.binary)

	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/foldersync")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	return nil
}

// Sync runs a single cycle and returns stdout, stderr and the exit code
func (h *Harness) Sync(ctx context.Context, extra ...string) (string, string, int, error) {
	h.t.Helper()
	if h.binary == "" {
		return "", "", 0, fmt.Errorf("binary not built")
	}

	args := append([]string{"sync"}, extra...)
	args = append(args, h.Source, h.Replica, h.LogDir, "1")
	cmd := exec.CommandContext(ctx, h.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// MustSync runs a single cycle and fails the test if it exits non-zero
func (h *Harness) MustSync(ctx context.Context, extra ...string) string {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Sync(ctx, extra...)
	if err != nil {
		h.t.Fatalf("sync failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("sync failed with exit code %d\nstdout: %s\nstderr: %s", exitCode, stdout, stderr)
	}
	return stdout
}

// Start launches the long-running loop with the given interval in seconds
func (h *Harness) Start(ctx context.Context, interval int) (*exec.Cmd, *bytes.Buffer, error) {
	h.t.Helper()
	if h.binary == "" {
		return nil, nil, fmt.Errorf("binary not built")
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, h.binary, "run",
		h.Source, h.Replica, h.LogDir, fmt.Sprint(interval))
	cmd.Stdout = &stdout
	cmd.Stderr = &testWriter{t: h.t, prefix: "[run] "}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start: %w", err)
	}
	return cmd, &stdout, nil
}

// Stop interrupts a running loop and waits for it to exit
func (h *Harness) Stop(cmd *exec.Cmd) error {
	h.t.Helper()
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	return cmd.Wait()
}

// WriteSource writes a file below the source root
func (h *Harness) WriteSource(rel, content string) {
	h.t.Helper()
	path := filepath.Join(h.Source, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("write file: %v", err)
	}
}

// RemoveSource deletes an entry below the source root
func (h *Harness) RemoveSource(rel string) {
	h.t.Helper()
	if err := os.RemoveAll(filepath.Join(h.Source, filepath.FromSlash(rel))); err != nil {
		h.t.Fatalf("remove: %v", err)
	}
}

// ReadReplica reads a file below the replica root
func (h *Harness) ReadReplica(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(h.Replica, filepath.FromSlash(rel)))
	return string(data), err
}

// ReplicaExists checks if an entry exists below the replica root
func (h *Harness) ReplicaExists(rel string) bool {
	_, err := os.Lstat(filepath.Join(h.Replica, filepath.FromSlash(rel)))
	return err == nil
}

// ReadActionLog reads and parses the action log file
func (h *Harness) ReadActionLog() ([]LogEntry, error) {
	h.t.Helper()
	f, err := os.Open(filepath.Join(h.LogDir, logFileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		// Parse: "2024-01-01 12:00:00: File 'a.txt' copied from ..."
		if len(line) < 21 || line[19:21] != ": " {
			return nil, fmt.Errorf("malformed log line: %q", line)
		}
		entries = append(entries, LogEntry{
			Timestamp: line[:19],
			Message:   line[21:],
		})
	}

	return entries, scanner.Err()
}

// LogEntry represents a parsed action log line
type LogEntry struct {
	Timestamp string
	Message   string
}

// String returns a human-readable representation
func (e LogEntry) String() string {
	return fmt.Sprintf("%s: %s", e.Timestamp, e.Message)
}

// countContaining returns how many entries mention all of the given words
func countContaining(entries []LogEntry, words ...string) int {
	n := 0
	for _, e := range entries {
		match := true
		for _, w := range words {
			if !strings.Contains(e.Message, w) {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)

// findProjectRoot walks up the directory tree from the current file to find go.mod
func findProjectRoot() (string, error) {
	// Get the directory of this source file
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)

	// Walk up the directory tree looking for go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root without finding go.mod
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
