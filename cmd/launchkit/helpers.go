package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/launchkit/cli/internal/state"
	"github.com/launchkit/cli/internal/ui"
)

// appDir resolves the --dir flag to an absolute, existing directory.
func appDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid app directory %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("app directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("app directory %s is not a directory", abs)
	}
	return abs, nil
}

// appStore returns the variable store of the app selected by --dir.
func appStore(cmd *cobra.Command) (*state.Store, error) {
	dir, err := appDir(cmd)
	if err != nil {
		return nil, err
	}
	return state.ForApp(dir), nil
}

// parseEnvPairs converts KEY=VALUE arguments into a map.
//
// Parameters:
//   - pairs: Values of repeated --env flags
//
// Returns:
//   - map[string]string: The parsed overrides
//   - error: If an entry has no "=" or an empty name
func parseEnvPairs(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --env %q, expected KEY=VALUE", pair)
		}
		env[name] = value
	}
	return env, nil
}

// announcingSink stores variables and prints links as they are captured.
type announcingSink struct {
	store *state.Store
}

func (s announcingSink) Set(name, value string) error {
	if err := s.store.Set(name, value); err != nil {
		return err
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		ui.PrintLink(name, value)
	} else {
		ui.PrintDim("%s = %s", name, value)
	}
	return nil
}

func (s announcingSink) All() (map[string]string, error) {
	return s.store.All()
}
