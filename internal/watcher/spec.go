package watcher

import (
	"fmt"
	"sort"
	"strings"
)

// LaunchSpec is the immutable description of how to start and monitor a
// child process.
//
// Exactly one of Command or Shell must be set. Command is executed directly;
// Shell is passed to the configured shell (see WithShell).
type LaunchSpec struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds overrides merged onto the inherited environment.
	Env map[string]string

	// Command is the argv of the child process.
	Command []string

	// Shell is a single shell command string.
	Shell string

	// Rules are evaluated in declaration order against every output chunk.
	Rules []WatchRule
}

// WatchRule pairs a pattern with whether its first match ends rule evaluation.
type WatchRule struct {
	// Pattern is a regular expression, optionally written as a /body/flags literal.
	Pattern string

	// TerminatesOnMatch stops all rule evaluation after this rule matches once.
	TerminatesOnMatch bool
}

// Validate checks the spec's shape. Patterns are checked separately when
// the rules are compiled.
//
// Returns:
//   - error: ErrEmptyCommand, an error wrapping ErrInvalidSpec, or nil
func (s LaunchSpec) Validate() error {
	hasShell := strings.TrimSpace(s.Shell) != ""
	if len(s.Command) == 0 && !hasShell {
		return ErrEmptyCommand
	}
	if len(s.Command) > 0 && hasShell {
		return fmt.Errorf("%w: command and shell are mutually exclusive", ErrInvalidSpec)
	}
	if len(s.Command) > 0 && strings.TrimSpace(s.Command[0]) == "" {
		return ErrEmptyCommand
	}
	for name := range s.Env {
		if name == "" || strings.ContainsAny(name, "=\x00") {
			return fmt.Errorf("%w: invalid environment variable name %q", ErrInvalidSpec, name)
		}
	}
	return nil
}

// argv returns the full argument vector for the spec, wrapping Shell in the
// given shell prefix (e.g. ["/bin/sh", "-c"]).
func (s LaunchSpec) argv(shell []string) []string {
	if len(s.Command) > 0 {
		return append([]string(nil), s.Command...)
	}
	out := append([]string(nil), shell...)
	return append(out, s.Shell)
}

// mergeEnv overlays overrides onto base (KEY=VALUE entries). Existing keys are
// replaced in place; new keys are appended in sorted order.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[name]; ok {
			if !seen[name] {
				out = append(out, name+"="+v)
				seen[name] = true
			}
			continue
		}
		out = append(out, kv)
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, name+"="+overrides[name])
	}
	return out
}
