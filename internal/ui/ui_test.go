package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// captureOutput redirects ui output to a buffer for the duration of the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := Output()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(prev)
		SetQuietMode(false)
	})
	return &buf
}

func TestQuietMode(t *testing.T) {
	buf := captureOutput(t)
	SetQuietMode(true)

	PrintInfo("info")
	PrintSuccess("ok")
	PrintDim("dim")
	PrintLink("URL", "http://localhost:7860")
	PrintBox("Notice", "hidden")
	PrintWarning("careful")
	PrintError("broken")
	PrintValue("http://127.0.0.1:7860")

	got := buf.String()
	for _, hidden := range []string{"info", "ok", "dim", "localhost", "hidden"} {
		if strings.Contains(got, hidden) {
			t.Errorf("quiet output %q should not contain %q", got, hidden)
		}
	}
	for _, shown := range []string{"careful", "broken", "http://127.0.0.1:7860"} {
		if !strings.Contains(got, shown) {
			t.Errorf("quiet output %q should contain %q", got, shown)
		}
	}
}

func TestIsTerminal_Buffer(t *testing.T) {
	captureOutput(t)
	if IsTerminal() {
		t.Error("IsTerminal() = true for a buffer")
	}
}

func TestBoxNotifier(t *testing.T) {
	buf := captureOutput(t)
	BoxNotifier{Title: "Install"}.Notify("Installation complete!")
	got := buf.String()
	if !strings.Contains(got, "Install") || !strings.Contains(got, "Installation complete!") {
		t.Errorf("Notify() output = %q", got)
	}
}

func TestTable(t *testing.T) {
	captureOutput(t)
	table := NewTable("NAME", "VALUE")
	table.AddRow("url", "http://127.0.0.1:7860")
	table.AddRow("model", "a-very-long-model-name-that-overflows")
	table.AddRow("short")
	table.SetMaxWidth(1, 24)

	lines := strings.Split(table.String(), "\n")
	if len(lines) != 5 {
		t.Fatalf("table has %d lines, want 5:\n%s", len(lines), table.String())
	}
	if !strings.HasPrefix(lines[0], "NAME ") {
		t.Errorf("header = %q", lines[0])
	}
	if want := "url    http://127.0.0.1:7860"; lines[2] != want {
		t.Errorf("row = %q, want %q", lines[2], want)
	}
	if !strings.HasSuffix(lines[3], "...") || len(lines[3]) != len("model  ")+24 {
		t.Errorf("truncated row = %q", lines[3])
	}
	if lines[4] != "short" {
		t.Errorf("short row = %q, want %q", lines[4], "short")
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 2, "he"},
	}
	for _, tt := range tests {
		if got := truncateWithEllipsis(tt.in, tt.width); got != tt.want {
			t.Errorf("truncateWithEllipsis(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestStepTracker(t *testing.T) {
	buf := captureOutput(t)
	tracker := NewStepTracker(false)

	tracker.StepStarted(0, 2, "shell.run: python app.py")
	tracker.StepFinished(0, nil)
	tracker.StepStarted(1, 2, "local.set")
	tracker.StepFinished(1, errors.New("disk full"))

	got := buf.String()
	if !strings.Contains(got, "[1/2]") || !strings.Contains(got, "[2/2]") {
		t.Errorf("output %q should show step positions", got)
	}
	if !strings.Contains(got, "✗ local.set: disk full") {
		t.Errorf("output %q should report the failure", got)
	}
	if c := tracker.Completed(); len(c) != 1 || c[0] != "shell.run: python app.py" {
		t.Errorf("Completed() = %v", c)
	}
}

func TestSpinner_NonTerminalPrintsOnce(t *testing.T) {
	buf := captureOutput(t)
	StartSpinner("Waiting for url")
	StopSpinner()
	if got := strings.Count(buf.String(), "Waiting for url"); got != 1 {
		t.Errorf("message printed %d times, want 1", got)
	}
}
