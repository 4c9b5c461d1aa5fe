package watcher

import "time"

// EventType identifies the kind of event emitted by a Session.
type EventType int

const (
	// EventStarted is emitted once, first, after the process has been spawned.
	// PID contains the process ID.
	EventStarted EventType = iota

	// EventOutput is emitted for every output chunk.
	// Text contains the chunk and Stream the pipe it came from.
	EventOutput

	// EventMatched is emitted right after the EventOutput whose chunk matched
	// a watch rule. Rule contains the rule index and Match its groups.
	EventMatched

	// EventExited is emitted exactly once, last, when the process terminates.
	// Code contains the exit code, or -1 if it is unavailable.
	EventExited
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventOutput:
		return "output"
	case EventMatched:
		return "matched"
	case EventExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Stream identifies which output pipe a chunk was read from.
type Stream int

const (
	// StreamStdout is the child's standard output.
	StreamStdout Stream = iota
	// StreamStderr is the child's standard error.
	StreamStderr
)

// String returns "stdout" or "stderr".
func (s Stream) String() string {
	if s == StreamStderr {
		return "stderr"
	}
	return "stdout"
}

// Event is a lifecycle, output or match event emitted by a Session.
//
// Ordering guarantees:
//
//	Started → (Output Matched?)* → Exited
//
// Output from stdout and stderr is interleaved by arrival time. After
// Exited the channel is closed.
type Event struct {
	Time   time.Time
	Match  *MatchResult
	Text   string
	Type   EventType
	Stream Stream
	Rule   int
	Code   int
	PID    int
}
