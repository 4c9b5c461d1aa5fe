// Package main provides sanity tests for the launchkit CLI command initialization.
package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestRootCommandInitialization verifies that the root command exists and has all expected subcommands.
func TestRootCommandInitialization(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	expectedCommands := []string{
		"version", "run", "install", "start", "watch", "url", "open", "vars", "config", "validate",
	}

	for _, name := range expectedCommands {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %q not found", name)
		}
	}
}

// TestGlobalFlagsExist verifies that all expected global flags are registered on the root command.
func TestGlobalFlagsExist(t *testing.T) {
	for _, name := range []string{"debug", "quiet", "dir", "config"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected global flag %q not found", name)
		}
	}
}

func TestWatchFlagsExist(t *testing.T) {
	for _, name := range []string{"until", "on", "env", "cwd", "set", "shell", "stop-after-match"} {
		if watchCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected watch flag %q not found", name)
		}
	}
}

// TestRootCommandHasUse verifies the root command has the correct Use field.
func TestRootCommandHasUse(t *testing.T) {
	if rootCmd.Use != "launchkit" {
		t.Errorf("expected root command Use to be 'launchkit', got %q", rootCmd.Use)
	}
}

func TestConfigCommand_PrintsEffectiveSettings(t *testing.T) {
	t.Setenv("LAUNCHKIT_STOP_GRACE", "7s")
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"config", "--config", t.TempDir() + "/missing.yaml"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(buf.String(), "stop_grace: 7s") {
		t.Errorf("config output = %q, want stop_grace: 7s", buf.String())
	}
}
