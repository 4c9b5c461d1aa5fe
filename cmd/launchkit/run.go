package main

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/launchkit/cli/internal/script"
	"github.com/launchkit/cli/internal/state"
	"github.com/launchkit/cli/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script file",
	Long: `Run a YAML, TOML or JSON step script.

A relative path is resolved against the app directory (--dir).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := appDir(cmd)
		if err != nil {
			return err
		}
		path := args[0]
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return runScriptFile(cmd, dir, path)
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Run the app's install script",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNamedScript(cmd, "install")
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the app's start script and capture its URL",
	Long: `Run the app's start script (start.yaml, start.yml, start.toml or start.json).

Daemon scripts keep the app running until Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNamedScript(cmd, "start")
	},
}

func runNamedScript(cmd *cobra.Command, name string) error {
	dir, err := appDir(cmd)
	if err != nil {
		return err
	}
	path, err := script.Find(dir, name)
	if err != nil {
		return err
	}
	return runScriptFile(cmd, dir, path)
}

func runScriptFile(cmd *cobra.Command, dir, path string) error {
	s, err := script.Load(path)
	if err != nil {
		return err
	}
	debug, _ := cmd.Flags().GetBool("debug")

	out := ui.Output()
	if ui.IsQuiet() {
		out = nil
	}
	runner := script.NewRunner(dir, settings, out)
	runner.Sink = announcingSink{store: state.ForApp(dir)}
	runner.Notifier = ui.BoxNotifier{Title: filepath.Base(dir)}
	runner.Progress = ui.NewStepTracker(debug)
	runner.Args = map[string]any{"script": filepath.Base(path)}

	log.Debug("Running script", "path", path, "daemon", s.Daemon, "steps", len(s.Run))
	if s.Daemon {
		ui.PrintDim("Running %s (Ctrl-C to stop)", filepath.Base(path))
	}
	if err := runner.Run(cmd.Context(), s); err != nil {
		return err
	}
	if cmd.Context().Err() != nil {
		ui.PrintWarning("Stopped")
		return nil
	}
	if !s.Daemon {
		ui.PrintSuccess("%s finished", filepath.Base(path))
	}
	return nil
}

var validateCmd = &cobra.Command{
	Use:   "validate [script]",
	Short: "Check a script without running it",
	Long: `Check a script for errors and likely mistakes without running it.

Without an argument, checks the app's install and start scripts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := appDir(cmd)
		if err != nil {
			return err
		}

		var paths []string
		if len(args) == 1 {
			path := args[0]
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			paths = append(paths, path)
		} else {
			for _, name := range []string{"install", "start"} {
				if path, err := script.Find(dir, name); err == nil {
					paths = append(paths, path)
				}
			}
			if len(paths) == 0 {
				return fmt.Errorf("no install or start script in %s", dir)
			}
		}

		failed := 0
		for _, path := range paths {
			if !validateScript(path) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d script(s) failed validation", failed)
		}
		return nil
	},
}

// validateScript prints the check result for path and reports whether it is valid.
func validateScript(path string) bool {
	name := filepath.Base(path)
	s, err := script.Load(path)
	if err != nil {
		ui.PrintError("%v", err)
		return false
	}

	result := script.Check(s)
	for _, e := range result.Errors {
		ui.PrintError("%s: %s", name, e)
	}
	for _, w := range result.Warnings {
		ui.PrintWarning("%s: %s", name, w)
	}
	if result.Valid {
		ui.PrintSuccess("%s is valid", name)
	}
	return result.Valid
}
