package dirs

import (
	"path/filepath"
	"testing"
)

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	if got := ConfigDir(); got != filepath.Join("/tmp/xdg-config", "jtail") {
		t.Errorf("ConfigDir = %q", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/someone")
	if got := ConfigDir(); got != filepath.Join("/home/someone", ".config", "jtail") {
		t.Errorf("ConfigDir without XDG = %q", got)
	}
}

func TestRuntimeDir(t *testing.T) {
	t.Setenv("JTAIL_RUNTIME_DIR", "/tmp/override")
	if got := RuntimeDir(); got != "/tmp/override" {
		t.Errorf("RuntimeDir = %q", got)
	}

	t.Setenv("JTAIL_RUNTIME_DIR", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/4242")
	if got := RuntimeDir(); got != filepath.Join("/run/user/4242", "jtail") {
		t.Errorf("RuntimeDir with XDG = %q", got)
	}
}
