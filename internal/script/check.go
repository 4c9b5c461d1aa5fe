package script

import (
	"fmt"
	"sort"
	"strings"

	"github.com/launchkit/cli/internal/state"
	"github.com/launchkit/cli/internal/watcher"
)

// CheckResult contains the result of checking a script.
//
// Fields:
//   - Valid: Whether the script can run
//   - Errors: Problems that would make the run fail
//   - Warnings: Likely mistakes that do not stop the run
type CheckResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *CheckResult) errorf(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *CheckResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Check inspects a script without running it.
//
// This function checks:
//   - Every step names a known method
//   - shell.run steps have a message and compilable "on" patterns
//   - local.set names are valid variable names
//   - {{input.event}} is only used after a step that can produce a match
//   - {{local.*}} variables are set by an earlier step (warning)
//   - Daemon scripts leave something running (warning)
//
// Parameters:
//   - s: The script to check
//
// Returns:
//   - *CheckResult: Errors and warnings found
func Check(s *Script) *CheckResult {
	result := &CheckResult{Valid: true}
	if len(s.Run) == 0 {
		result.errorf("Script must have at least one step")
		return result
	}

	definedLocals := make(map[string]bool)
	prevMatches := false
	anyDone := false

	for i, step := range s.Run {
		path := fmt.Sprintf("Step %d (%s)", i+1, step.Method)

		for _, ref := range templateRefs(step.Params) {
			switch {
			case strings.HasPrefix(ref, "input.event") && !prevMatches:
				result.warnf("%s: {{%s}} is empty unless the previous step is a shell.run with a done handler", path, ref)
			case strings.HasPrefix(ref, "local."):
				name := strings.SplitN(strings.TrimPrefix(ref, "local."), ".", 2)[0]
				if !definedLocals[name] {
					result.warnf("%s: {{%s}} is not set by an earlier step", path, ref)
				}
			}
		}

		prevMatches = false
		switch step.Method {
		case MethodShellRun:
			var p ShellParams
			if err := convert(step.Params, &p); err != nil {
				result.errorf("%s: %v", path, err)
				continue
			}
			if len(p.Message) == 0 {
				result.errorf("%s: missing message", path)
			}
			for j, h := range p.On {
				if err := watcher.CheckPattern(h.Event); err != nil {
					result.errorf("%s: on[%d]: %v", path, j, err)
				}
				if h.Done {
					prevMatches = true
					anyDone = true
				}
			}
		case MethodNotify:
			if html, _ := step.Params["html"].(string); strings.TrimSpace(html) == "" {
				result.warnf("%s: missing html", path)
			}
		case MethodLocalSet:
			if len(step.Params) == 0 {
				result.warnf("%s: no variables to set", path)
			}
			for _, name := range sortedKeys(step.Params) {
				if !state.ValidName(name) {
					result.errorf("%s: invalid variable name %q", path, name)
					continue
				}
				definedLocals[name] = true
			}
		default:
			result.errorf("%s: %v", path, ErrUnknownMethod)
		}
	}

	if s.Daemon && !anyDone {
		result.warnf("Daemon script has no done handler; it waits for processes that have already exited")
	}
	return result
}

// templateRefs returns every {{path}} referenced by string values in params.
func templateRefs(v any) []string {
	var refs []string
	switch t := v.(type) {
	case string:
		for _, m := range placeholder.FindAllStringSubmatch(t, -1) {
			refs = append(refs, m[1])
		}
	case []any:
		for _, item := range t {
			refs = append(refs, templateRefs(item)...)
		}
	case map[string]any:
		for _, k := range sortedKeys(t) {
			refs = append(refs, templateRefs(t[k])...)
		}
	}
	return refs
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
