package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbrock/jtail/internal/journal"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SocketPath != journal.DefaultSocketPath {
		t.Errorf("SocketPath = %q", cfg.SocketPath)
	}
	if cfg.WaitTimeout != journal.DefaultWaitTimeout {
		t.Errorf("WaitTimeout = %v", cfg.WaitTimeout)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
socket_path: /tmp/test.socket
identifier: myapp
wait_timeout: 2s
output: json
matches:
  - _SYSTEMD_UNIT=sshd.service
  - PRIORITY=3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SocketPath != "/tmp/test.socket" || cfg.Identifier != "myapp" || cfg.Output != "json" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.WaitTimeout != 2*time.Second {
		t.Errorf("WaitTimeout = %v, want 2s", cfg.WaitTimeout)
	}
	if len(cfg.Matches) != 2 {
		t.Errorf("Matches = %v", cfg.Matches)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate: %v", errs)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "socket_path: /from/file\n")
	t.Setenv("JTAIL_JOURNAL_SOCKET", "/from/env")
	t.Setenv("JTAIL_WAIT_TIMEOUT", "75ms")
	t.Setenv("JTAIL_DEBUG", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SocketPath != "/from/env" {
		t.Errorf("SocketPath = %q, want env override", cfg.SocketPath)
	}
	if cfg.WaitTimeout != 75*time.Millisecond {
		t.Errorf("WaitTimeout = %v", cfg.WaitTimeout)
	}
	if !cfg.Debug {
		t.Error("Debug should be set from JTAIL_DEBUG")
	}
}

func TestLoadBadInput(t *testing.T) {
	if _, err := Load(writeFile(t, "wait_timeout: [not, a, duration]\n")); err == nil {
		t.Error("expected parse error")
	}

	t.Setenv("JTAIL_WAIT_TIMEOUT", "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("expected error for bad JTAIL_WAIT_TIMEOUT")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.WaitTimeout = 0
	cfg.Output = "xml"
	cfg.JournalDir = "/var/log/journal"
	cfg.Files = []string{"a.journal"}
	cfg.Matches = []string{"novalue", "lower=x"}

	if errs := cfg.Validate(); len(errs) != 5 {
		t.Errorf("expected 5 errors, got %d: %v", len(errs), errs)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("JTAIL_CONFIG", "/etc/jtail.yaml")
	if Path() != "/etc/jtail.yaml" {
		t.Errorf("Path = %q", Path())
	}
	t.Setenv("JTAIL_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if Path() != "/xdg/jtail/config.yaml" {
		t.Errorf("Path = %q", Path())
	}
}
