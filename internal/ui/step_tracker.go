package ui

import (
	"fmt"
	"sync"
	"time"
)

// StepTracker prints script progress as a growing list of finished steps.
// The running step is shown on an in-place status line when the output is a
// terminal.
type StepTracker struct {
	// started records when the current step began.
	started time.Time

	// current is the description of the running step.
	current string

	// completed stores the descriptions of finished steps in order.
	completed []string

	// verbose adds the duration of each step.
	verbose bool

	mu sync.Mutex
}

// NewStepTracker creates a new step tracker.
//
// Parameters:
//   - verbose: If true, shows the duration of each step
//
// Returns:
//   - *StepTracker: A new step tracker instance
func NewStepTracker(verbose bool) *StepTracker {
	return &StepTracker{verbose: verbose}
}

// StepStarted shows a step as running: ▶ [n/total] description
func (t *StepTracker) StepStarted(index, total int, description string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = description
	t.started = time.Now()

	if IsQuiet() {
		return
	}
	line := fmt.Sprintf("%s %s%s", RunningStyle.Render("▶"), description,
		DimStyle.Render(fmt.Sprintf(" [%d/%d]", index+1, total)))
	if IsTerminal() {
		outMu.Lock()
		clearLine(out)
		_, _ = fmt.Fprint(out, line+"\n")
		outMu.Unlock()
		return
	}
	write(line, false)
}

// StepFinished records the running step as completed or failed.
func (t *StepTracker) StepFinished(index int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	desc := t.current
	if t.verbose {
		desc += DimStyle.Render(fmt.Sprintf(" (%s)", time.Since(t.started).Round(time.Millisecond)))
	}
	if err != nil {
		PrintError("%s: %v", desc, err)
		return
	}
	t.completed = append(t.completed, t.current)
	PrintSuccess("%s", desc)
}

// Completed returns a copy of the finished step descriptions.
func (t *StepTracker) Completed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]string, len(t.completed))
	copy(result, t.completed)
	return result
}
