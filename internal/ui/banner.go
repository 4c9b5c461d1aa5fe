package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// tagline is the product tagline.
const tagline = "Install and launch local apps, and know when they are ready"

// PrintBanner prints the launchkit title with version info.
//
// Parameters:
//   - version: The CLI version string to display
func PrintBanner(version string) {
	if IsQuiet() {
		return
	}
	write(TitleStyle.Render("launchkit")+" "+DimStyle.Render(version), false)
	write(DimStyle.Italic(true).Render(tagline), false)
	write("", false)
}

// GetHelpText returns the curated help text shown by `launchkit --help`.
func GetHelpText() string {
	cmd := lipgloss.NewStyle().Foreground(Indigo).Bold(true)
	dim := lipgloss.NewStyle().Foreground(DimGray)

	return fmt.Sprintf(`%s

%s
  %s         Run install.yaml in the app directory
  %s           Run start.yaml and capture the app URL
  %s    Run any script file

%s
  %s  Watch a command for a pattern

%s
  %s           Print the captured URL
  %s          Open the captured URL in a browser
  %s            List stored variables`,
		dim.Render(tagline+"."),
		cmd.Render("Scripts:"),
		cmd.Render("launchkit install"),
		cmd.Render("launchkit start"),
		cmd.Render("launchkit run <file>"),
		cmd.Render("Ad hoc:"),
		cmd.Render("launchkit watch --until <pattern> -- <cmd>"),
		cmd.Render("Results:"),
		cmd.Render("launchkit url"),
		cmd.Render("launchkit open"),
		cmd.Render("launchkit vars"),
	)
}
