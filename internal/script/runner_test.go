//go:build !windows

package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/launchkit/cli/internal/config"
	"github.com/launchkit/cli/internal/watcher"
)

const urlPattern = `/http:\/\/[^\s\/]+:\d{2,5}(?=[^\w]|$)/`

type memSink struct {
	mu   sync.Mutex
	vars map[string]string
	set  chan string
}

func newMemSink() *memSink {
	return &memSink{vars: make(map[string]string), set: make(chan string, 16)}
}

func (m *memSink) Set(name, value string) error {
	m.mu.Lock()
	m.vars[name] = value
	m.mu.Unlock()
	m.set <- name
	return nil
}

func (m *memSink) get(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vars[name]
}

type memNotifier struct {
	messages []string
}

func (n *memNotifier) Notify(message string) {
	n.messages = append(n.messages, message)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.StopGrace = 500 * time.Millisecond
	cfg.FlushAfter = 20 * time.Millisecond
	return cfg
}

func shellStep(params map[string]any) Step {
	return Step{Method: MethodShellRun, Params: params}
}

func TestRun_CapturesURLAndStoresIt(t *testing.T) {
	dir := t.TempDir()
	sink := newMemSink()
	var out strings.Builder
	r := NewRunner(dir, testConfig(), &out)
	r.Sink = sink

	s := &Script{Run: []Step{
		shellStep(map[string]any{
			"message": []any{"echo starting", "echo 'Running on local URL:  http://127.0.0.1:7860' && sleep 30"},
			"on":      []any{map[string]any{"event": urlPattern, "done": true}},
		}),
		{Method: MethodLocalSet, Params: map[string]any{"url": "{{input.event[0]}}"}},
	}}

	start := time.Now()
	if err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Run() took %s; background process was not stopped", elapsed)
	}
	if got := sink.get("url"); got != "http://127.0.0.1:7860" {
		t.Errorf("url = %q, want http://127.0.0.1:7860", got)
	}
	if !strings.Contains(out.String(), "starting") {
		t.Errorf("output %q should contain child output", out.String())
	}
}

func TestRun_ExitCodeIsNextInput(t *testing.T) {
	sink := newMemSink()
	r := NewRunner(t.TempDir(), testConfig(), nil)
	r.Sink = sink

	s := &Script{Run: []Step{
		shellStep(map[string]any{"message": "true"}),
		{Method: MethodLocalSet, Params: map[string]any{"code": "{{input.code}}", "ready": true}},
	}}
	if err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := sink.get("code"); got != "0" {
		t.Errorf("code = %q, want 0", got)
	}
	if got := sink.get("ready"); got != "true" {
		t.Errorf("ready = %q, want true", got)
	}
}

func TestRun_NonZeroExitFailsStep(t *testing.T) {
	notifier := &memNotifier{}
	r := NewRunner(t.TempDir(), testConfig(), nil)
	r.Notifier = notifier

	s := &Script{Run: []Step{
		{Method: MethodNotify, Params: map[string]any{"html": "installing"}},
		shellStep(map[string]any{"message": "exit 3"}),
		{Method: MethodNotify, Params: map[string]any{"html": "unreachable"}},
	}}
	err := r.Run(context.Background(), s)

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Run() error = %v, want *StepError", err)
	}
	if stepErr.Index != 1 || stepErr.Method != MethodShellRun || stepErr.Code != 3 {
		t.Errorf("StepError = %+v, want index 1, shell.run, code 3", stepErr)
	}
	if len(notifier.messages) != 1 {
		t.Errorf("notify ran %d times, want 1", len(notifier.messages))
	}
}

func TestRun_SpawnErrorFailsStep(t *testing.T) {
	r := NewRunner(t.TempDir(), testConfig(), nil)
	s := &Script{Run: []Step{
		shellStep(map[string]any{"message": "echo hi", "path": "does-not-exist"}),
	}}
	err := r.Run(context.Background(), s)
	if !errors.Is(err, watcher.ErrSpawn) {
		t.Errorf("Run() error = %v, want ErrSpawn", err)
	}
}

func TestRun_UnknownMethodRunsNothing(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(dir, testConfig(), nil)

	s := &Script{Run: []Step{
		shellStep(map[string]any{"message": "touch marker"}),
		{Method: "fs.download"},
	}}
	if err := r.Run(context.Background(), s); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("Run() error = %v, want ErrUnknownMethod", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker")); !os.IsNotExist(err) {
		t.Error("no step should run when a method is unknown")
	}
}

func TestRun_NotifyStripsHTML(t *testing.T) {
	notifier := &memNotifier{}
	r := NewRunner(t.TempDir(), testConfig(), nil)
	r.Notifier = notifier
	r.Args = map[string]any{"app": "Model Creator"}

	s := &Script{Run: []Step{
		{Method: MethodNotify, Params: map[string]any{"html": "<b>{{args.app}}</b> installed. Click <i>Start</i>."}},
	}}
	if err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	want := "Model Creator installed. Click Start."
	if len(notifier.messages) != 1 || notifier.messages[0] != want {
		t.Errorf("messages = %q, want [%q]", notifier.messages, want)
	}
}

func TestRun_LocalSetWithoutSink(t *testing.T) {
	r := NewRunner(t.TempDir(), testConfig(), nil)
	s := &Script{Run: []Step{{Method: MethodLocalSet, Params: map[string]any{"url": "x"}}}}
	if err := r.Run(context.Background(), s); err == nil {
		t.Error("Run() should fail when local.set has no sink")
	}
}

func TestRun_MessagesJoinedInPathWithEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	r := NewRunner(dir, testConfig(), nil)

	s := &Script{Run: []Step{
		shellStep(map[string]any{
			"path":    "sub",
			"env":     map[string]any{"GREETING": "hello", "PORT": 7860},
			"message": []any{"echo $GREETING > out.txt", "echo $PORT >> out.txt"},
		}),
	}}
	if err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "sub", "out.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := string(data); got != "hello\n7860\n" {
		t.Errorf("out.txt = %q, want %q", got, "hello\n7860\n")
	}
}

func TestRun_VenvCreatedAndActivated(t *testing.T) {
	dir := t.TempDir()

	// Stand-in interpreter: "python -m venv DIR" creates DIR/bin and DIR/pyvenv.cfg.
	python := filepath.Join(dir, "fakepython")
	script := "#!/bin/sh\nmkdir -p \"$3/bin\" && touch \"$3/pyvenv.cfg\" && echo created >> \"$3/calls\"\n"
	if err := os.WriteFile(python, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Python = python
	r := NewRunner(dir, cfg, nil)

	step := shellStep(map[string]any{
		"venv":    "env",
		"message": `echo "$VIRTUAL_ENV" > venv.txt && echo "$PATH" > path.txt`,
	})
	s := &Script{Run: []Step{step, step}}
	if err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	venv := filepath.Join(dir, "env")
	got, _ := os.ReadFile(filepath.Join(dir, "venv.txt"))
	if strings.TrimSpace(string(got)) != venv {
		t.Errorf("VIRTUAL_ENV = %q, want %q", got, venv)
	}
	path, _ := os.ReadFile(filepath.Join(dir, "path.txt"))
	if !strings.HasPrefix(string(path), filepath.Join(venv, "bin")+":") {
		t.Errorf("PATH = %q, want venv bin first", path)
	}
	calls, _ := os.ReadFile(filepath.Join(venv, "calls"))
	if n := strings.Count(string(calls), "created"); n != 1 {
		t.Errorf("venv created %d times, want 1", n)
	}
}

func TestRun_DaemonKeepsProcessUntilCancel(t *testing.T) {
	dir := t.TempDir()
	sink := newMemSink()
	r := NewRunner(dir, testConfig(), nil)
	r.Sink = sink

	s := &Script{Daemon: true, Run: []Step{
		shellStep(map[string]any{
			"message": "echo 'serving at http://localhost:8080/' && sleep 30",
			"on":      []any{map[string]any{"event": urlPattern, "done": true}},
		}),
		{Method: MethodLocalSet, Params: map[string]any{"url": "{{input.event[0]}}"}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx, s) }()

	select {
	case <-sink.set:
	case <-time.After(10 * time.Second):
		t.Fatal("url was never set")
	}

	select {
	case err := <-errCh:
		t.Fatalf("daemon Run() returned early: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if got := sink.get("url"); got != "http://localhost:8080" {
		t.Errorf("url = %q", got)
	}
}

func TestRun_DaemonReturnsWhenProcessesExit(t *testing.T) {
	r := NewRunner(t.TempDir(), testConfig(), nil)
	s := &Script{Daemon: true, Run: []Step{
		shellStep(map[string]any{
			"message": "echo ready && sleep 0.2",
			"on":      []any{map[string]any{"event": "ready", "done": true}},
		}),
	}}

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), s) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon Run() should return once background processes exit")
	}
}

func TestRun_CancelDuringStep(t *testing.T) {
	r := NewRunner(t.TempDir(), testConfig(), nil)
	s := &Script{Run: []Step{shellStep(map[string]any{"message": "sleep 30"})}}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := r.Run(ctx, s); err != nil {
		t.Errorf("Run() error = %v, want nil on cancellation", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("Run() did not stop the child on cancellation")
	}
}

type recordingProgress struct {
	events []string
}

func (p *recordingProgress) StepStarted(index, total int, description string) {
	p.events = append(p.events, fmt.Sprintf("start %d/%d %s", index+1, total, description))
}

func (p *recordingProgress) StepFinished(index int, err error) {
	p.events = append(p.events, fmt.Sprintf("finish %d %v", index+1, err != nil))
}

func TestRun_ReportsProgress(t *testing.T) {
	progress := &recordingProgress{}
	r := NewRunner(t.TempDir(), testConfig(), nil)
	r.Progress = progress
	r.Notifier = &memNotifier{}

	s := &Script{Run: []Step{
		{Method: MethodNotify, Params: map[string]any{"html": "hi"}},
		shellStep(map[string]any{"message": []any{"echo a", "exit 1"}}),
	}}
	if err := r.Run(context.Background(), s); err == nil {
		t.Fatal("Run() should fail")
	}

	want := []string{
		"start 1/2 notify",
		"finish 1 false",
		"start 2/2 shell.run: echo a && exit 1",
		"finish 2 true",
	}
	if strings.Join(progress.events, "\n") != strings.Join(want, "\n") {
		t.Errorf("progress = %q, want %q", progress.events, want)
	}
}
