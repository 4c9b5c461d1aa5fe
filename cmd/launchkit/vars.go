package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/launchkit/cli/internal/state"
	"github.com/launchkit/cli/internal/ui"
)

// defaultVarName is the variable start scripts store the app URL under.
const defaultVarName = "url"

var urlCmd = &cobra.Command{
	Use:   "url [name]",
	Short: "Print a captured URL",
	Long: `Print a variable captured by a start script or "watch --set" (default: url).

With --wait, block until the variable is set, e.g. while "launchkit start"
is still bringing the app up in another terminal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := appStore(cmd)
		if err != nil {
			return err
		}
		name := varName(args)
		wait, _ := cmd.Flags().GetDuration("wait")

		value, err := lookupVar(cmd.Context(), store, name, wait)
		if err != nil {
			return err
		}
		ui.PrintValue(value)

		if copyValue, _ := cmd.Flags().GetBool("copy"); copyValue {
			if err := clipboard.WriteAll(value); err != nil {
				ui.PrintWarning("Could not copy to clipboard: %v", err)
			} else {
				ui.PrintDim("Copied to clipboard")
			}
		}
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open [name]",
	Short: "Open a captured URL in the browser",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := appStore(cmd)
		if err != nil {
			return err
		}
		wait, _ := cmd.Flags().GetDuration("wait")
		value, err := lookupVar(cmd.Context(), store, varName(args), wait)
		if err != nil {
			return err
		}
		ui.PrintLink("Opening", value)
		if err := ui.OpenBrowser(value); err != nil {
			return fmt.Errorf("failed to open browser: %w", err)
		}
		return nil
	},
}

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "List stored variables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := appStore(cmd)
		if err != nil {
			return err
		}

		if clearAll, _ := cmd.Flags().GetBool("clear"); clearAll {
			if err := store.Clear(); err != nil {
				return err
			}
			ui.PrintSuccess("Cleared variables")
			return nil
		}
		if unset, _ := cmd.Flags().GetStringArray("unset"); len(unset) > 0 {
			for _, name := range unset {
				if err := store.Delete(name); err != nil {
					return err
				}
			}
			ui.PrintSuccess("Removed %d variable(s)", len(unset))
			return nil
		}

		vars, err := store.All()
		if err != nil {
			return err
		}
		if len(vars) == 0 {
			ui.PrintDim("No variables stored in %s", store.Path())
			return nil
		}
		printVars(vars)
		if updated, err := store.UpdatedAt(); err == nil && !updated.IsZero() {
			ui.PrintDim("Updated %s", updated.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	urlCmd.Flags().Duration("wait", 0, "Wait up to this long for the variable to be set")
	urlCmd.Flags().Bool("copy", false, "Copy the value to the clipboard")
	openCmd.Flags().Duration("wait", 0, "Wait up to this long for the variable to be set")
	varsCmd.Flags().Bool("clear", false, "Remove all variables")
	varsCmd.Flags().StringArray("unset", nil, "Remove a variable (repeatable)")
}

func varName(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return defaultVarName
}

// lookupVar returns the variable name, waiting up to wait for it to appear.
func lookupVar(ctx context.Context, store *state.Store, name string, wait time.Duration) (string, error) {
	if wait <= 0 {
		value, err := store.Get(name)
		if errors.Is(err, state.ErrNotFound) {
			return "", fmt.Errorf("%q is not set; run \"launchkit start\" first", name)
		}
		return value, err
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ui.StartSpinner(fmt.Sprintf("Waiting for %s...", name))
	value, err := store.WaitFor(ctx, name)
	ui.StopSpinner()
	if errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("%q was not set within %s", name, wait)
	}
	return value, err
}

func printVars(vars map[string]string) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	table := ui.NewTable("NAME", "VALUE")
	table.SetMaxWidth(1, 80)
	for _, name := range names {
		table.AddRow(name, vars[name])
	}
	table.Render()
}
