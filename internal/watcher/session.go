// Package watcher spawns a child process and watches its output for a
// readiness signal.
//
// A LaunchSpec describes the process and an ordered list of WatchRules. Watch
// validates the spec, compiles every rule, starts the process and returns a
// Session whose event stream reports:
//
//	Started → (Output Matched?)* → Exited
//
// The typical use is capturing the URL a local web server prints once it is
// ready to serve:
//
//	spec := watcher.LaunchSpec{
//	    Shell: "python app.py",
//	    Rules: []watcher.WatchRule{{Pattern: `http://[^\s/]+:\d{2,5}`, TerminatesOnMatch: true}},
//	}
//	s, err := watcher.Watch(ctx, spec)
//	if err != nil {
//	    return err
//	}
//	for ev := range s.Events() {
//	    if ev.Type == watcher.EventMatched {
//	        fmt.Println("ready at", ev.Match.Value())
//	    }
//	}
//
// Callers must drain Events until it is closed; events are never dropped.
package watcher

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	// eventBuffer is the size of the event channel buffer.
	eventBuffer = 64

	// pipeDrainGrace is how long the readers may keep reading after the child
	// has exited.
	pipeDrainGrace = 200 * time.Millisecond
)

// Session is a single watched child process. It is returned by Watch; the
// caller owns it and is responsible for draining Events or calling Stop.
//
// Events and Wait are independent: Wait does not require the event stream to
// be consumed up to Exited, but the reading goroutines block once the event
// buffer is full. Stop is idempotent.
type Session struct {
	cmd     *exec.Cmd
	rules   *ruleSet
	events  chan Event
	done    chan struct{}
	exitErr error
	id      string
	opts    Options

	// emitMu serializes rule evaluation and emission across both streams.
	emitMu sync.Mutex

	// mu guards exitCode and exitErr.
	mu       sync.Mutex
	stopOnce sync.Once
	exitCode int
}

// Watch validates spec, starts the child process and returns a Session that
// streams its events.
//
// Validation and spawn failures are returned before any event is emitted:
// ErrEmptyCommand or ErrInvalidSpec for a malformed spec, *InvalidPatternError
// for a rule that does not compile, *SpawnError when the process cannot be
// started. Cancelling ctx stops the process as if Stop had been called.
//
// Parameters:
//   - ctx: Controls the lifetime of the child process
//   - spec: The process and its watch rules
//   - opts: Tuning options
//
// Returns:
//   - *Session: The running session
//   - error: Validation or spawn error
func Watch(ctx context.Context, spec LaunchSpec, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	rules, err := compileRules(spec.Rules, o.MatchTimeout)
	if err != nil {
		return nil, err
	}

	argv := spec.argv(o.Shell)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), withPWD(spec.Env, spec.Dir))
	setProcGroup(cmd)

	// Wait must not block on pipe ends inherited by grandchildren.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Command: argv[0], Err: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, &SpawnError{Command: argv[0], Err: err}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	closeAll(stdoutW, stderrW)
	if err != nil {
		closeAll(stdoutR, stderrR)
		return nil, &SpawnError{Command: argv[0], Err: err}
	}

	s := &Session{
		cmd:    cmd,
		rules:  rules,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		id:     uuid.NewString(),
		opts:   o,
	}
	log.Debug("Watcher started process", "session", s.id, "pid", cmd.Process.Pid, "command", argv, "dir", spec.Dir)

	// The buffer is empty, so this cannot block.
	s.events <- Event{Type: EventStarted, PID: cmd.Process.Pid, Time: time.Now()}

	var readers sync.WaitGroup
	readers.Add(2)
	go s.pump(&readers, stdoutR, StreamStdout)
	go s.pump(&readers, stderrR, StreamStderr)
	go s.reap(&readers, stdoutR, stderrR)
	go s.watchContext(ctx)

	return s, nil
}

// pump forwards one output pipe to the event stream until EOF.
func (s *Session) pump(wg *sync.WaitGroup, r io.Reader, stream Stream) {
	defer wg.Done()
	readChunks(r, s.opts.ChunkSize, s.opts.FlushAfter, func(chunk string) {
		s.handleChunk(stream, chunk)
	})
}

// handleChunk emits chunk as Output and, if a rule matches it, a Matched event.
func (s *Session) handleChunk(stream Stream, chunk string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.events <- Event{Type: EventOutput, Stream: stream, Text: chunk, Time: time.Now()}

	idx, m := s.rules.evaluate(chunk)
	if m == nil {
		return
	}
	log.Debug("Watch rule matched", "session", s.id, "rule", idx, "value", m.Value())
	s.events <- Event{Type: EventMatched, Stream: stream, Rule: idx, Match: m, Time: time.Now()}
}

// reap waits for the child to exit, lets the readers drain what it wrote,
// emits the terminal event and closes the channel.
//
// Output still held open by a grandchild is cut off pipeDrainGrace after the
// child exits.
func (s *Session) reap(readers *sync.WaitGroup, pipes ...*os.File) {
	code, err := exitStatus(s.cmd.Wait())

	drained := make(chan struct{})
	go func() {
		readers.Wait()
		close(drained)
	}()
	t := time.NewTimer(pipeDrainGrace)
	select {
	case <-drained:
		t.Stop()
	case <-t.C:
		log.Debug("Output still open after exit, closing pipes", "session", s.id)
		closeAll(pipes...)
		<-drained
	}
	closeAll(pipes...)

	s.mu.Lock()
	s.exitCode = code
	s.exitErr = err
	s.mu.Unlock()

	// Signal Wait before the terminal send so it never depends on the consumer.
	close(s.done)
	log.Debug("Watcher process exited", "session", s.id, "code", code)

	s.emitMu.Lock()
	s.events <- Event{Type: EventExited, Code: code, Time: time.Now()}
	close(s.events)
	s.emitMu.Unlock()
}

func (s *Session) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		log.Debug("Watcher context cancelled, stopping process", "session", s.id)
		s.terminate()
	case <-s.done:
	}
}

// terminate sends SIGTERM to the process group and escalates to SIGKILL if
// the process is still running after the grace period.
func (s *Session) terminate() {
	s.stopOnce.Do(func() {
		p := s.cmd.Process
		if err := terminateProcessGroup(p); err != nil {
			log.Debug("SIGTERM failed, killing process group", "session", s.id, "error", err)
			_ = killProcessGroup(p)
			return
		}
		go func() {
			t := time.NewTimer(s.opts.StopGrace)
			defer t.Stop()
			select {
			case <-s.done:
			case <-t.C:
				log.Warn("Process did not exit after SIGTERM, sending SIGKILL", "pid", p.Pid)
				_ = killProcessGroup(p)
			}
		}()
	})
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// PID returns the child's process ID.
func (s *Session) PID() int {
	return s.cmd.Process.Pid
}

// Events returns the ordered event stream. It is closed after EventExited.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed once the process has exited and its status is known.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop terminates the process group (SIGTERM, then SIGKILL after the grace
// period) and blocks until the process exits or ctx expires.
//
// Stop is idempotent: calling it on an exited session returns nil immediately.
func (s *Session) Stop(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	default:
	}

	s.terminate()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the process exits and returns its exit code. A non-zero
// code is not an error; the error is non-nil only when the exit status could
// not be collected.
func (s *Session) Wait() (int, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.exitErr
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// withPWD adds PWD for a non-empty dir unless the overrides already set it,
// matching what exec.Cmd does when it builds the environment itself.
func withPWD(env map[string]string, dir string) map[string]string {
	if dir == "" {
		return env
	}
	if _, ok := env["PWD"]; ok {
		return env
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return env
	}
	out := make(map[string]string, len(env)+1)
	for k, v := range env {
		out[k] = v
	}
	out["PWD"] = abs
	return out
}

// exitStatus converts the result of exec.Cmd.Wait into an exit code. Processes
// killed by a signal report -1.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
