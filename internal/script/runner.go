// Package script runs declarative step-list scripts.
//
// A script is a YAML, TOML or JSON document with a "run" list of steps. Each
// step calls one method:
//
//   - shell.run starts a shell command (optionally inside a Python virtual
//     environment) and watches its output for "on" patterns
//   - notify shows a message to the user
//   - local.set stores variables through the Sink
//
// String parameters are templates: {{input.event[0]}} refers to the result of
// the previous step. With "daemon: true" processes left running by shell.run
// steps are kept alive until the run context is cancelled.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/launchkit/cli/internal/config"
	"github.com/launchkit/cli/internal/watcher"
)

// Sink stores variables set by local.set steps.
type Sink interface {
	Set(name, value string) error
}

// Notifier shows notify messages to the user.
type Notifier interface {
	Notify(message string)
}

// Progress observes step execution.
type Progress interface {
	StepStarted(index, total int, description string)
	StepFinished(index int, err error)
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Runner executes scripts for one app directory.
type Runner struct {
	// Sink receives local.set values. Required for scripts that use local.set.
	Sink Sink

	// Notifier receives notify messages. Nil logs them at info level.
	Notifier Notifier

	// Progress, if set, is told when each step starts and finishes.
	Progress Progress

	// Args is exposed to templates as "args".
	Args map[string]any

	cfg *config.Config
	out *syncWriter
	dir string

	mu         sync.Mutex
	local      map[string]string
	background []*watcher.Session
	drained    sync.WaitGroup
}

// NewRunner creates a runner for the app in dir. Child output is copied to
// out; a nil out discards it.
func NewRunner(dir string, cfg *config.Config, out io.Writer) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if out == nil {
		out = io.Discard
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Runner{
		dir:   dir,
		cfg:   cfg,
		out:   &syncWriter{w: out},
		local: make(map[string]string),
	}
}

// Run executes every step of s in order. Each step's result becomes the next
// step's input.
//
// For a daemon script, Run returns once ctx is cancelled or every background
// process has exited; otherwise background processes are stopped as soon as
// the last step finishes. Cancellation is not reported as an error.
//
// Parameters:
//   - ctx: Cancels the run and stops every child process
//   - s: The script to run
//
// Returns:
//   - error: ErrUnknownMethod, *StepError, or a sink error
func (r *Runner) Run(ctx context.Context, s *Script) error {
	if err := s.Validate(); err != nil {
		return err
	}
	defer r.Close()
	r.loadLocal()

	var input any
	for i, step := range s.Run {
		log.Debug("Running step", "index", i+1, "method", step.Method)
		if r.Progress != nil {
			r.Progress.StepStarted(i, len(s.Run), describe(step))
		}

		result, err := r.runStep(ctx, step, input)
		if err != nil && ctx.Err() != nil {
			log.Debug("Run cancelled", "index", i+1)
			return nil
		}
		if err != nil {
			var stepErr *StepError
			if !errors.As(err, &stepErr) {
				stepErr = &StepError{Err: err}
			}
			stepErr.Index = i
			stepErr.Method = step.Method
			err = stepErr
		}
		if r.Progress != nil {
			r.Progress.StepFinished(i, err)
		}
		if err != nil {
			return err
		}
		input = result
	}

	if s.Daemon {
		r.waitBackground(ctx)
	}
	return nil
}

// Close stops every background process and waits for their output to drain.
func (r *Runner) Close() {
	r.mu.Lock()
	sessions := r.background
	r.background = nil
	r.mu.Unlock()

	for _, sess := range sessions {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StopGrace+time.Second)
		if err := sess.Stop(ctx); err != nil {
			log.Warn("Failed to stop background process", "pid", sess.PID(), "error", err)
		}
		cancel()
	}
	r.drained.Wait()
}

func (r *Runner) runStep(ctx context.Context, step Step, input any) (any, error) {
	switch step.Method {
	case MethodShellRun:
		return r.shellRun(ctx, step, input)
	case MethodNotify:
		return r.notify(step, input)
	case MethodLocalSet:
		return r.localSet(step, input)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownMethod, step.Method)
}

// describe returns a one-line summary of step for progress output.
func describe(step Step) string {
	if step.Method != MethodShellRun {
		return step.Method
	}
	var p ShellParams
	if err := convert(step.Params, &p); err != nil || len(p.Message) == 0 {
		return step.Method
	}
	return step.Method + ": " + strings.Join(p.Message, " && ")
}

func (r *Runner) waitBackground(ctx context.Context) {
	r.mu.Lock()
	sessions := append([]*watcher.Session(nil), r.background...)
	r.mu.Unlock()
	if len(sessions) == 0 {
		return
	}

	log.Debug("Daemon script waiting", "processes", len(sessions))
	for _, sess := range sessions {
		select {
		case <-sess.Done():
		case <-ctx.Done():
			return
		}
	}
}

// shellRun runs a shell.run step. The step ends when a done handler matches,
// leaving the process running in the background, or when the process exits.
func (r *Runner) shellRun(ctx context.Context, step Step, input any) (any, error) {
	var p ShellParams
	if err := convert(step.Params, &p); err != nil {
		return nil, err
	}
	if len(p.Message) == 0 {
		return nil, fmt.Errorf("shell.run requires a message")
	}

	scope, err := r.scope(input)
	if err != nil {
		return nil, err
	}

	commands := make([]string, len(p.Message))
	for i, m := range p.Message {
		commands[i] = Render(m, scope)
	}

	dir := r.dir
	if p.Path != "" {
		dir = r.resolve(Render(p.Path, scope))
	}

	env := make(map[string]string, len(p.Env))
	for k, v := range p.Env {
		env[k] = Render(fmt.Sprint(v), scope)
	}
	if p.Venv != "" {
		if err := r.activateVenv(ctx, filepath.Join(dir, Render(p.Venv, scope)), env); err != nil {
			return nil, err
		}
	}

	rules := make([]watcher.WatchRule, len(p.On))
	for i, h := range p.On {
		rules[i] = watcher.WatchRule{Pattern: h.Event, TerminatesOnMatch: h.Done}
	}

	spec := watcher.LaunchSpec{
		Dir:   dir,
		Env:   env,
		Shell: strings.Join(commands, " && "),
		Rules: rules,
	}
	sess, err := watcher.Watch(ctx, spec, r.cfg.WatcherOptions()...)
	if err != nil {
		return nil, err
	}
	log.Debug("shell.run started", "pid", sess.PID(), "dir", dir, "command", spec.Shell)

	events := sess.Events()
	for ev := range events {
		switch ev.Type {
		case watcher.EventOutput:
			r.out.writeLine(ev.Text)
		case watcher.EventMatched:
			if !p.On[ev.Rule].Done {
				log.Debug("Output matched", "rule", ev.Rule, "value", ev.Match.Value())
				continue
			}
			r.keep(sess)
			return map[string]any{"event": ev.Match.Groups}, nil
		case watcher.EventExited:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if ev.Code != 0 {
				return nil, &StepError{Code: ev.Code}
			}
			return map[string]any{"code": ev.Code}, nil
		}
	}
	return nil, fmt.Errorf("event stream closed without exit")
}

// keep moves sess to the background and keeps forwarding its output.
func (r *Runner) keep(sess *watcher.Session) {
	r.mu.Lock()
	r.background = append(r.background, sess)
	r.mu.Unlock()

	r.drained.Add(1)
	go func() {
		defer r.drained.Done()
		for ev := range sess.Events() {
			switch ev.Type {
			case watcher.EventOutput:
				r.out.writeLine(ev.Text)
			case watcher.EventExited:
				log.Debug("Background process exited", "pid", sess.PID(), "code", ev.Code)
			}
		}
	}()
}

// activateVenv creates the virtual environment at venv if needed and points
// env at it.
func (r *Runner) activateVenv(ctx context.Context, venv string, env map[string]string) error {
	if _, err := os.Stat(filepath.Join(venv, "pyvenv.cfg")); errors.Is(err, os.ErrNotExist) {
		log.Info("Creating virtual environment", "path", venv)
		if err := r.createVenv(ctx, venv); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	bin := filepath.Join(venv, "bin")
	if runtime.GOOS == "windows" {
		bin = filepath.Join(venv, "Scripts")
	}
	path, ok := env["PATH"]
	if !ok {
		path = os.Getenv("PATH")
	}
	env["VIRTUAL_ENV"] = venv
	env["PATH"] = bin + string(os.PathListSeparator) + path
	return nil
}

func (r *Runner) createVenv(ctx context.Context, venv string) error {
	python, err := exec.LookPath(r.cfg.Python)
	if err != nil {
		return fmt.Errorf("python interpreter %q not found: %w", r.cfg.Python, err)
	}
	spec := watcher.LaunchSpec{Command: []string{python, "-m", "venv", venv}}
	sess, err := watcher.Watch(ctx, spec, r.cfg.WatcherOptions()...)
	if err != nil {
		return err
	}
	for ev := range sess.Events() {
		if ev.Type == watcher.EventOutput {
			r.out.writeLine(ev.Text)
		}
	}
	code, err := sess.Wait()
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("creating virtual environment failed with exit code %d", code)
	}
	return nil
}

func (r *Runner) notify(step Step, input any) (any, error) {
	scope, err := r.scope(input)
	if err != nil {
		return nil, err
	}
	html, _ := step.Params["html"].(string)
	msg := strings.TrimSpace(htmlTag.ReplaceAllString(Render(html, scope), ""))

	if r.Notifier != nil {
		r.Notifier.Notify(msg)
	} else {
		log.Info(msg)
	}
	return input, nil
}

func (r *Runner) localSet(step Step, input any) (any, error) {
	if r.Sink == nil {
		return nil, fmt.Errorf("local.set: no variable store configured")
	}
	scope, err := r.scope(input)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(step.Params))
	for name := range step.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var value string
		switch v := step.Params[name].(type) {
		case string:
			value = Render(v, scope)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			value = string(data)
		}
		if err := r.Sink.Set(name, value); err != nil {
			return nil, fmt.Errorf("local.set %s: %w", name, err)
		}
		r.mu.Lock()
		r.local[name] = value
		r.mu.Unlock()
		log.Debug("Variable set", "name", name, "value", value)
	}
	return input, nil
}

// loadLocal seeds the template scope with variables already in the sink.
func (r *Runner) loadLocal() {
	lister, ok := r.Sink.(interface {
		All() (map[string]string, error)
	})
	if !ok {
		return
	}
	vars, err := lister.All()
	if err != nil {
		log.Debug("Could not load stored variables", "error", err)
		return
	}
	r.mu.Lock()
	for k, v := range vars {
		r.local[k] = v
	}
	r.mu.Unlock()
}

// scope builds the JSON document templates are rendered against.
func (r *Runner) scope(input any) ([]byte, error) {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	r.mu.Lock()
	local := make(map[string]string, len(r.local))
	for k, v := range r.local {
		local[k] = v
	}
	r.mu.Unlock()

	data, err := json.Marshal(map[string]any{
		"input": input,
		"local": local,
		"env":   env,
		"args":  r.Args,
		"cwd":   r.dir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build template scope: %w", err)
	}
	return data, nil
}

func (r *Runner) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.dir, path)
}

// syncWriter serializes line writes from concurrent processes.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) writeLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, line+"\n")
}
