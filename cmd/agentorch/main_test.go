package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/aristath/agentorch/internal/backend"
	"github.com/aristath/agentorch/internal/persistence"
)

// TestKillOnCancel verifies that tracked agent processes die once the
// command context is cancelled.
func TestKillOnCancel(t *testing.T) {
	pm := backend.NewProcessManager()

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}
	pm.Track(cmd)
	defer pm.Untrack(cmd)

	ctx, cancel := context.WithCancel(context.Background())
	go killOnCancel(ctx, pm)
	cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after cancellation")
	}
}

func TestSignalContextCancelsOnSIGTERM(t *testing.T) {
	ctx, stop := signalContext()
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Failed to send SIGTERM: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Context did not cancel after SIGTERM")
	}
}

func TestLoadConfigUsesConfigFlag(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "engine:\n  max_concurrency: 3\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Engine.MaxConcurrency != 3 {
		t.Errorf("max_concurrency = %d, want 3", cfg.Engine.MaxConcurrency)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if globalConfigPath() != path {
		t.Errorf("globalConfigPath() = %q, want %q", globalConfigPath(), path)
	}
}

func TestShowSessionUnknownID(t *testing.T) {
	archive, err := persistence.NewMemoryArchive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	err = showSession(context.Background(), archive, "missing")
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("showSession() error = %v, want ErrNotFound", err)
	}
	if err := listSessions(context.Background(), archive, 10); err != nil {
		t.Errorf("listSessions on empty archive: %v", err)
	}
}

func TestOneLine(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"multi\nline   text", 20, "multi line text"},
		{"a rather long query string", 10, "a rathe..."},
	}
	for _, tt := range tests {
		if got := oneLine(tt.in, tt.width); got != tt.want {
			t.Errorf("oneLine(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
