package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Method names understood by the runner.
const (
	MethodShellRun = "shell.run"
	MethodNotify   = "notify"
	MethodLocalSet = "local.set"
)

// Extensions are the script file extensions Find looks for, in order.
var Extensions = []string{".yaml", ".yml", ".toml", ".json"}

// Script is an ordered list of steps.
type Script struct {
	Run    []Step `json:"run"`
	Daemon bool   `json:"daemon"`
}

// Step is a single method call.
type Step struct {
	Params map[string]any `json:"params"`
	Method string         `json:"method"`
}

// ShellParams are the parameters of a shell.run step.
type ShellParams struct {
	Env     map[string]any `json:"env"`
	Venv    string         `json:"venv"`
	Path    string         `json:"path"`
	Message StringList     `json:"message"`
	On      []Handler      `json:"on"`
}

// Handler maps an output pattern onto a watch rule. Done ends the step when
// the pattern matches.
type Handler struct {
	Event string `json:"event"`
	Done  bool   `json:"done"`
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	*l = list
	return nil
}

// Load reads a script file. The format is chosen by extension; anything other
// than .toml and .json is parsed as YAML.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// Parse decodes a script in the format named by ext (".yaml", ".toml", ...).
//
// Documents are decoded generically first and then converted through JSON so
// that every format shares the same field names and the same StringList rules.
func Parse(data []byte, ext string) (*Script, error) {
	var raw map[string]any
	switch ext {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	}

	var s Script
	if err := convert(raw, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every step names a known method.
func (s *Script) Validate() error {
	for i, step := range s.Run {
		switch step.Method {
		case MethodShellRun, MethodNotify, MethodLocalSet:
		default:
			return fmt.Errorf("%w %q in step %d", ErrUnknownMethod, step.Method, i+1)
		}
	}
	return nil
}

// Find returns the path of the script named base in dir, trying each of
// Extensions in order.
func Find(dir, base string) (string, error) {
	for _, ext := range Extensions {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no %s{%s} in %s", ErrScriptNotFound, base, strings.Join(Extensions, ","), dir)
}

func convert(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("unsupported value in script: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid script: %w", err)
	}
	return nil
}
