package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// PrintSuccess prints a success message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintSuccess(format string, args ...interface{}) {
	write(SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)), false)
}

// PrintError prints an error message. It is printed even in quiet mode.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintError(format string, args ...interface{}) {
	write(ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)), true)
}

// PrintWarning prints a warning message. It is printed even in quiet mode.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintWarning(format string, args ...interface{}) {
	write(WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)), true)
}

// PrintInfo prints an informational message.
func PrintInfo(format string, args ...interface{}) {
	write(InfoStyle.Render(fmt.Sprintf(format, args...)), false)
}

// PrintDim prints a dimmed message.
func PrintDim(format string, args ...interface{}) {
	write(DimStyle.Render(fmt.Sprintf(format, args...)), false)
}

// PrintLink prints a labeled URL.
//
// Parameters:
//   - label: The link label
//   - url: The URL
func PrintLink(label, url string) {
	write(fmt.Sprintf("%s %s", DimStyle.Render(label+":"), LinkStyle.Render(url)), false)
}

// PrintValue prints a bare value, even in quiet mode, so it can be captured
// by scripts: `open $(launchkit url)`.
func PrintValue(value string) {
	write(value, true)
}

// PrintBox prints content in a styled box.
//
// Parameters:
//   - title: Box title
//   - content: Box content
func PrintBox(title, content string) {
	write(BoxStyle.Render(BoxTitleStyle.Render(title)+"\n"+content), false)
}

// BoxNotifier shows script notifications as boxes.
type BoxNotifier struct {
	// Title is shown at the top of every box.
	Title string
}

// Notify prints message in a box.
func (n BoxNotifier) Notify(message string) {
	title := n.Title
	if title == "" {
		title = "Notice"
	}
	PrintBox(title, message)
}

// OpenBrowser opens a URL in the default browser.
//
// Parameters:
//   - url: The URL to open
//
// Returns:
//   - error: Any error that occurred
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// Table represents a table with dynamic column widths for formatted output.
type Table struct {
	// Headers contains the column header names.
	Headers []string

	// Rows contains all data rows.
	Rows [][]string

	// MaxWidths specifies maximum width per column index (truncates with ellipsis).
	MaxWidths map[int]int
}

// NewTable creates a new table with the specified headers.
func NewTable(headers ...string) *Table {
	return &Table{
		Headers:   headers,
		MaxWidths: make(map[int]int),
	}
}

// AddRow adds a data row to the table.
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// SetMaxWidth sets the maximum width for a column. Longer values are
// truncated with an ellipsis.
//
// Parameters:
//   - col: Column index (0-based)
//   - width: Maximum width in characters
func (t *Table) SetMaxWidth(col, width int) {
	t.MaxWidths[col] = width
}

func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		widths[i] = len(header)
	}
	for _, row := range t.Rows {
		for i, val := range row {
			if i < len(widths) && len(val) > widths[i] {
				widths[i] = len(val)
			}
		}
	}
	for i := range widths {
		if max, ok := t.MaxWidths[i]; ok && widths[i] > max {
			widths[i] = max
		}
	}
	return widths
}

func truncateWithEllipsis(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

// padRight pads the rendered form of s with spaces up to width, measured on
// the unstyled text.
func padRight(s, rendered string, width int) string {
	if len(s) >= width {
		return rendered
	}
	return rendered + strings.Repeat(" ", width-len(s))
}

// String renders the table.
func (t *Table) String() string {
	if len(t.Headers) == 0 {
		return ""
	}

	widths := t.columnWidths()
	const colGap = "  "
	var b strings.Builder

	cells := make([]string, len(t.Headers))
	for i, header := range t.Headers {
		cells[i] = padRight(header, TableHeaderStyle.Render(header), widths[i])
	}
	b.WriteString(strings.TrimRight(strings.Join(cells, colGap), " "))
	b.WriteString("\n")

	total := len(colGap) * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	b.WriteString(DimStyle.Render(strings.Repeat("─", total)))

	for _, row := range t.Rows {
		for i := range t.Headers {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			if max, ok := t.MaxWidths[i]; ok {
				val = truncateWithEllipsis(val, max)
			}
			cells[i] = padRight(val, TableCellStyle.Render(val), widths[i])
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(strings.Join(cells, colGap), " "))
	}
	return b.String()
}

// Render prints the table.
func (t *Table) Render() {
	if len(t.Headers) == 0 {
		return
	}
	write(t.String(), false)
}
