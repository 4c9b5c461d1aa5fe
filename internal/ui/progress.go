package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var (
	spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinnerMu     sync.Mutex
	spinnerStop   chan struct{}
	spinnerDone   chan struct{}
)

// StartSpinner starts an animated spinner with a message. On a non-terminal
// output the message is printed once instead.
//
// Parameters:
//   - message: The message to display next to the spinner
func StartSpinner(message string) {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if spinnerStop != nil || IsQuiet() {
		return
	}
	if !IsTerminal() {
		PrintDim("%s", message)
		return
	}

	spinnerStop = make(chan struct{})
	spinnerDone = make(chan struct{})
	stop, done := spinnerStop, spinnerDone
	w := Output()

	go func() {
		defer close(done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			frame := RunningStyle.Render(spinnerFrames[i%len(spinnerFrames)])
			outMu.Lock()
			_, _ = fmt.Fprintf(w, "\r%s %s", frame, message)
			outMu.Unlock()

			select {
			case <-stop:
				outMu.Lock()
				_, _ = fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", len(message)+4))
				outMu.Unlock()
				return
			case <-ticker.C:
			}
		}
	}()
}

// StopSpinner stops the current spinner and clears its line.
func StopSpinner() {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if spinnerStop == nil {
		return
	}
	close(spinnerStop)
	<-spinnerDone
	spinnerStop, spinnerDone = nil, nil
}

// clearLine erases the current terminal line.
func clearLine(w io.Writer) {
	_, _ = io.WriteString(w, "\r\033[K")
}
