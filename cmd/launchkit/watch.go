package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/launchkit/cli/internal/config"
	"github.com/launchkit/cli/internal/state"
	"github.com/launchkit/cli/internal/ui"
	"github.com/launchkit/cli/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] -- <command> [args...]",
	Short: "Run a command and watch its output for patterns",
	Long: `Run a command and watch its stdout and stderr for patterns.

--until patterns match at most once; after the first of them matches no
pattern is tested again. --on patterns are reported every time they match.
The first capture group (or the whole match) is the captured value.

Patterns may be written as /body/flags with flags i, m and s.

Examples:
  launchkit watch --until 'http://[^\s/]+:\d{2,5}' --set url -- python app.py
  launchkit watch --shell --until 'ready' --stop-after-match -- 'npm run dev'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := watchOptionsFromFlags(cmd.Flags(), args)
		if err != nil {
			return err
		}

		var store *state.Store
		if opts.SetName != "" {
			if store, err = appStore(cmd); err != nil {
				return err
			}
		}

		code, err := runWatch(cmd.Context(), opts, settings, store, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if code != 0 {
			return &exitCodeError{code: code}
		}
		return nil
	},
}

func init() {
	addWatchFlags(watchCmd.Flags())
}

func addWatchFlags(f *pflag.FlagSet) {
	f.StringArray("until", nil, "Pattern that marks the process as ready (matches once)")
	f.StringArray("on", nil, "Pattern to report on every match")
	f.StringArray("env", nil, "Environment override KEY=VALUE (repeatable)")
	f.String("cwd", "", "Working directory for the command")
	f.String("set", "", "Store the captured value under this variable name")
	f.Bool("shell", false, "Run the arguments as a single shell command line")
	f.Bool("stop-after-match", false, "Stop the command once an --until pattern matches")
}

// watchOptions is the parsed form of the watch command line.
type watchOptions struct {
	Env            map[string]string
	Dir            string
	SetName        string
	Shell          string
	Command        []string
	Until          []string
	On             []string
	StopAfterMatch bool
}

func watchOptionsFromFlags(f *pflag.FlagSet, args []string) (watchOptions, error) {
	var o watchOptions

	o.Until, _ = f.GetStringArray("until")
	o.On, _ = f.GetStringArray("on")
	o.Dir, _ = f.GetString("cwd")
	o.SetName, _ = f.GetString("set")
	o.StopAfterMatch, _ = f.GetBool("stop-after-match")

	pairs, _ := f.GetStringArray("env")
	env, err := parseEnvPairs(pairs)
	if err != nil {
		return o, err
	}
	o.Env = env

	if shell, _ := f.GetBool("shell"); shell {
		o.Shell = strings.Join(args, " ")
	} else {
		o.Command = args
	}
	if o.StopAfterMatch && len(o.Until) == 0 {
		return o, fmt.Errorf("--stop-after-match requires at least one --until pattern")
	}
	return o, nil
}

// spec builds the launch spec. --until rules come first, so their indexes
// are below len(Until).
func (o watchOptions) spec() watcher.LaunchSpec {
	rules := make([]watcher.WatchRule, 0, len(o.Until)+len(o.On))
	for _, p := range o.Until {
		rules = append(rules, watcher.WatchRule{Pattern: p, TerminatesOnMatch: true})
	}
	for _, p := range o.On {
		rules = append(rules, watcher.WatchRule{Pattern: p})
	}
	return watcher.LaunchSpec{
		Dir:     o.Dir,
		Env:     o.Env,
		Command: o.Command,
		Shell:   o.Shell,
		Rules:   rules,
	}
}

// runWatch runs the command described by o, copying its output to stdout and
// stderr, and returns the exit code the CLI should report: the child's code,
// 0 when the child was stopped after a match, 130 when interrupted.
func runWatch(ctx context.Context, o watchOptions, cfg *config.Config, store *state.Store, stdout, stderr io.Writer) (int, error) {
	sess, err := watcher.Watch(ctx, o.spec(), cfg.WatcherOptions()...)
	if err != nil {
		return 0, err
	}

	var (
		stopped bool
		code    int
	)
	for ev := range sess.Events() {
		switch ev.Type {
		case watcher.EventStarted:
			log.Debug("Watching process", "pid", ev.PID, "session", sess.ID())
		case watcher.EventOutput:
			w := stdout
			if ev.Stream == watcher.StreamStderr {
				w = stderr
			}
			_, _ = io.WriteString(w, ev.Text+"\n")
		case watcher.EventMatched:
			terminating := ev.Rule < len(o.Until)
			value := ev.Match.Value()
			if terminating {
				ui.PrintSuccess("Ready: %s", value)
			} else {
				ui.PrintInfo("Matched %s: %s", o.On[ev.Rule-len(o.Until)], value)
			}
			if store != nil && o.SetName != "" {
				if err := store.Set(o.SetName, value); err != nil {
					ui.PrintWarning("Failed to store %s: %v", o.SetName, err)
				}
			}
			if terminating && o.StopAfterMatch && !stopped {
				stopped = true
				go stopSession(sess, cfg)
			}
		case watcher.EventExited:
			code = ev.Code
		}
	}

	switch {
	case stopped:
		return 0, nil
	case ctx.Err() != nil:
		return 130, nil
	case code < 0:
		return 1, nil
	}
	return code, nil
}

func stopSession(sess *watcher.Session, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.StopGrace*2)
	defer cancel()
	if err := sess.Stop(ctx); err != nil {
		log.Warn("Failed to stop process", "pid", sess.PID(), "error", err)
	}
}
