// Package config loads jtail settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mbrock/jtail/internal/dirs"
	"github.com/mbrock/jtail/internal/journal"
)

// Config holds client settings. Zero values mean "use the default".
type Config struct {
	// SocketPath is the journald native protocol socket.
	SocketPath string `yaml:"socket_path"`
	// JournalDir reads journal files from a directory instead of the system journal.
	JournalDir string `yaml:"journal_dir"`
	// Files reads specific journal files.
	Files []string `yaml:"files"`
	// Identifier is stamped as SYSLOG_IDENTIFIER on written entries.
	Identifier string `yaml:"identifier"`
	// WaitTimeout bounds each native wait while tailing.
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	// Matches restrict tail output, as FIELD=value.
	Matches []string `yaml:"matches"`
	// Output is "text" or "json".
	Output string `yaml:"output"`
	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SocketPath:  journal.DefaultSocketPath,
		Identifier:  "jtail",
		WaitTimeout: journal.DefaultWaitTimeout,
		Output:      "text",
	}
}

// Path returns the config file location: $JTAIL_CONFIG, else
// config.yaml in the user config directory.
func Path() string {
	if p := os.Getenv("JTAIL_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(dirs.ConfigDir(), "config.yaml")
}

// Load reads the config file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides settings from JTAIL_* variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("JTAIL_JOURNAL_SOCKET"); v != "" {
		c.SocketPath = v
	}
	if v := os.Getenv("JTAIL_JOURNAL_DIR"); v != "" {
		c.JournalDir = v
	}
	if v := os.Getenv("JTAIL_IDENTIFIER"); v != "" {
		c.Identifier = v
	}
	if v := os.Getenv("JTAIL_WAIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JTAIL_WAIT_TIMEOUT: %w", err)
		}
		c.WaitTimeout = d
	}
	if v := os.Getenv("JTAIL_OUTPUT"); v != "" {
		c.Output = v
	}
	if os.Getenv("JTAIL_DEBUG") != "" {
		c.Debug = true
	}
	return nil
}

// Validate checks the configuration for values the client cannot use.
func (c Config) Validate() []error {
	var errs []error

	if c.WaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("wait_timeout must be positive, got %s", c.WaitTimeout))
	}
	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is required"))
	}
	if c.JournalDir != "" && len(c.Files) > 0 {
		errs = append(errs, fmt.Errorf("journal_dir and files are mutually exclusive"))
	}
	if c.Output != "text" && c.Output != "json" {
		errs = append(errs, fmt.Errorf("output must be text or json, got %q", c.Output))
	}
	for _, m := range c.Matches {
		field, _, ok := strings.Cut(m, "=")
		if !ok || !journal.ValidFieldName(strings.TrimLeft(field, "_")) {
			errs = append(errs, fmt.Errorf("match %q must look like FIELD=value", m))
		}
	}

	return errs
}

// ClientOptions converts the config into journal client options.
func (c Config) ClientOptions() journal.Options {
	return journal.Options{
		SocketPath:  c.SocketPath,
		JournalDir:  c.JournalDir,
		Files:       c.Files,
		Identifier:  c.Identifier,
		WaitTimeout: c.WaitTimeout,
	}
}
