package ui

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

var (
	outMu     sync.Mutex
	out       io.Writer = os.Stdout
	quietMode bool
)

// SetQuietMode suppresses informational output (banners, info, success and
// dim messages). Errors and warnings are always printed.
func SetQuietMode(quiet bool) {
	outMu.Lock()
	defer outMu.Unlock()
	quietMode = quiet
}

// IsQuiet reports whether quiet mode is on.
func IsQuiet() bool {
	outMu.Lock()
	defer outMu.Unlock()
	return quietMode
}

// SetOutput redirects all printing to w. Styling is disabled unless w is a
// terminal.
//
// Parameters:
//   - w: The destination writer
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
	if !isTerminal(w) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// Output returns the current output writer.
func Output() io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	return out
}

// IsTerminal reports whether the current output is an interactive terminal.
func IsTerminal() bool {
	return isTerminal(Output())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// write prints s followed by a newline unless suppressed by quiet mode.
func write(s string, always bool) {
	outMu.Lock()
	defer outMu.Unlock()
	if quietMode && !always {
		return
	}
	_, _ = io.WriteString(out, s+"\n")
}
