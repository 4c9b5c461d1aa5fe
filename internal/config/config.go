// Package config provides launcher settings.
//
// Settings are read from ~/.launchkit/config.yaml (when present) and then
// overridden by LAUNCHKIT_* environment variables:
//
//	match_timeout: 1s     # LAUNCHKIT_MATCH_TIMEOUT
//	stop_grace: 5s        # LAUNCHKIT_STOP_GRACE
//	flush_after: 150ms    # LAUNCHKIT_FLUSH_AFTER
//	chunk_size: 4096      # LAUNCHKIT_CHUNK_SIZE
//	shell: [/bin/bash, -c] # LAUNCHKIT_SHELL="/bin/bash -c"
//	python: python3       # LAUNCHKIT_PYTHON
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/launchkit/cli/internal/watcher"
)

// Config holds launcher settings.
type Config struct {
	// MatchTimeout bounds a single watch pattern evaluation.
	MatchTimeout time.Duration `yaml:"match_timeout"`

	// StopGrace is the time between SIGTERM and SIGKILL when stopping a process.
	StopGrace time.Duration `yaml:"stop_grace"`

	// FlushAfter is how long a partial output line may wait before it is emitted.
	FlushAfter time.Duration `yaml:"flush_after"`

	// ChunkSize caps the length of an output chunk that has no newline.
	ChunkSize int `yaml:"chunk_size"`

	// Shell is the argv prefix for shell commands. Empty means the platform
	// default (/bin/sh -c, or cmd /C on Windows).
	Shell []string `yaml:"shell,omitempty"`

	// Python is the interpreter used to create virtual environments.
	Python string `yaml:"python"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MatchTimeout: watcher.DefaultMatchTimeout,
		StopGrace:    watcher.DefaultStopGrace,
		FlushAfter:   watcher.DefaultFlushAfter,
		ChunkSize:    watcher.DefaultChunkSize,
		Python:       "python3",
	}
}

// DefaultPath returns ~/.launchkit/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".launchkit", "config.yaml"), nil
}

// Load reads settings from path, applies environment overrides and validates
// the result. A missing file yields the defaults.
//
// Parameters:
//   - path: Path to config.yaml; empty means DefaultPath
//
// Returns:
//   - *Config: The effective settings
//   - error: Read, parse, override or validation error
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from LAUNCHKIT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"LAUNCHKIT_MATCH_TIMEOUT", &c.MatchTimeout},
		{"LAUNCHKIT_STOP_GRACE", &c.StopGrace},
		{"LAUNCHKIT_FLUSH_AFTER", &c.FlushAfter},
	}
	for _, d := range durations {
		v, ok := lookup(d.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup("LAUNCHKIT_CHUNK_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LAUNCHKIT_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = n
	}
	if v, ok := lookup("LAUNCHKIT_SHELL"); ok && strings.TrimSpace(v) != "" {
		c.Shell = strings.Fields(v)
	}
	if v, ok := lookup("LAUNCHKIT_PYTHON"); ok && v != "" {
		c.Python = v
	}
	return nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.MatchTimeout <= 0 {
		return fmt.Errorf("match_timeout must be positive, got %s", c.MatchTimeout)
	}
	if c.StopGrace <= 0 {
		return fmt.Errorf("stop_grace must be positive, got %s", c.StopGrace)
	}
	if c.FlushAfter <= 0 {
		return fmt.Errorf("flush_after must be positive, got %s", c.FlushAfter)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.Python == "" {
		return fmt.Errorf("python must not be empty")
	}
	return nil
}

// WatcherOptions converts the settings into watcher options.
func (c *Config) WatcherOptions() []watcher.Option {
	opts := []watcher.Option{
		watcher.WithMatchTimeout(c.MatchTimeout),
		watcher.WithStopGrace(c.StopGrace),
		watcher.WithFlushAfter(c.FlushAfter),
		watcher.WithChunkSize(c.ChunkSize),
	}
	if len(c.Shell) > 0 {
		opts = append(opts, watcher.WithShell(c.Shell...))
	}
	return opts
}

// Marshal renders the settings as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
