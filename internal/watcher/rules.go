package watcher

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dlclark/regexp2"
)

// MatchResult holds the groups of a single pattern match. Groups[0] is the
// whole matched substring; the rest are capture groups in order.
type MatchResult struct {
	Groups []string
}

// Raw returns the whole matched substring.
func (m *MatchResult) Raw() string {
	if m == nil || len(m.Groups) == 0 {
		return ""
	}
	return m.Groups[0]
}

// Value returns the first capture group, or the whole match when the
// pattern has no groups. This is the value handed to downstream sinks.
func (m *MatchResult) Value() string {
	if m == nil || len(m.Groups) == 0 {
		return ""
	}
	if len(m.Groups) > 1 {
		return m.Groups[1]
	}
	return m.Groups[0]
}

// matcher finds the leftmost match in s. A nil slice means no match.
type matcher interface {
	match(s string) ([]string, error)
}

type regexpMatcher struct {
	re *regexp2.Regexp
}

func (r regexpMatcher) match(s string) ([]string, error) {
	m, err := r.re.FindStringMatch(s)
	if err != nil || m == nil {
		return nil, err
	}
	groups := m.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.String()
	}
	return out, nil
}

type compiledRule struct {
	m          matcher
	pattern    string
	index      int
	terminates bool
}

// ruleSet evaluates compiled rules in declaration order. Once a terminating
// rule matches, the set is closed and never evaluates again.
type ruleSet struct {
	rules  []compiledRule
	closed bool
}

// CheckPattern reports whether pattern compiles, without starting anything.
// The error is an *InvalidPatternError with index 0.
func CheckPattern(pattern string) error {
	_, err := compilePattern(pattern, 0)
	return err
}

func compilePattern(pattern string, index int) (*regexp2.Regexp, error) {
	expr, opts := parsePattern(pattern)
	if expr == "" {
		return nil, &InvalidPatternError{Index: index, Pattern: pattern, Err: errors.New("empty pattern")}
	}
	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		return nil, &InvalidPatternError{Index: index, Pattern: pattern, Err: err}
	}
	return re, nil
}

// compileRules compiles every rule's pattern with the given per-match timeout.
func compileRules(rules []WatchRule, timeout time.Duration) (*ruleSet, error) {
	rs := &ruleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, rule := range rules {
		re, err := compilePattern(rule.Pattern, i)
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			re.MatchTimeout = timeout
		}
		rs.rules = append(rs.rules, compiledRule{
			m:          regexpMatcher{re: re},
			pattern:    rule.Pattern,
			index:      i,
			terminates: rule.TerminatesOnMatch,
		})
	}
	return rs, nil
}

// evaluate tests chunk against each rule in order and returns the index and
// result of the first rule that matches, or -1 and nil.
//
// Evaluation errors (including match timeouts) count as a non-match.
func (rs *ruleSet) evaluate(chunk string) (int, *MatchResult) {
	if rs.closed {
		return -1, nil
	}
	for _, r := range rs.rules {
		groups, err := r.m.match(chunk)
		if err != nil {
			log.Debug("Watch pattern evaluation failed", "rule", r.index, "pattern", r.pattern, "error", err)
			continue
		}
		if groups == nil {
			continue
		}
		if r.terminates {
			rs.closed = true
		}
		return r.index, &MatchResult{Groups: groups}
	}
	return -1, nil
}

// parsePattern unwraps a /body/flags literal into its body and options.
// Anything else is returned unchanged.
//
// Flags i, m and s map to IgnoreCase, Multiline and Singleline. g, u and y
// are accepted and have no effect.
func parsePattern(p string) (string, regexp2.RegexOptions) {
	if len(p) < 2 || p[0] != '/' {
		return p, regexp2.None
	}
	end := strings.LastIndex(p, "/")
	if end == 0 {
		return p, regexp2.None
	}

	opts := regexp2.None
	for _, f := range p[end+1:] {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'g', 'u', 'y':
		default:
			// Not a literal, e.g. "/usr/bin/foo".
			return p, regexp2.None
		}
	}
	return p[1:end], opts
}
