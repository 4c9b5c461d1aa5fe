package watcher

import "time"

// Default tuning values used when no Option overrides them.
const (
	DefaultMatchTimeout = time.Second
	DefaultStopGrace    = 5 * time.Second
	DefaultFlushAfter   = 150 * time.Millisecond
	DefaultChunkSize    = 4096
)

// Options tunes a Session.
type Options struct {
	// Shell is the argv prefix used to run LaunchSpec.Shell.
	Shell []string

	// MatchTimeout bounds a single pattern evaluation against one chunk.
	MatchTimeout time.Duration

	// StopGrace is how long to wait after SIGTERM before sending SIGKILL.
	StopGrace time.Duration

	// FlushAfter is how long a partial line may sit before it is emitted.
	FlushAfter time.Duration

	// ChunkSize caps the length of a chunk that has no newline.
	ChunkSize int
}

// Option configures a Session.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Shell:        defaultShell(),
		MatchTimeout: DefaultMatchTimeout,
		StopGrace:    DefaultStopGrace,
		FlushAfter:   DefaultFlushAfter,
		ChunkSize:    DefaultChunkSize,
	}
}

// WithShell sets the shell argv prefix, e.g. []string{"/bin/bash", "-c"}.
func WithShell(shell ...string) Option {
	return func(o *Options) {
		if len(shell) > 0 {
			o.Shell = shell
		}
	}
}

// WithMatchTimeout sets the per-evaluation pattern timeout.
func WithMatchTimeout(d time.Duration) Option {
	return func(o *Options) { o.MatchTimeout = d }
}

// WithStopGrace sets the SIGTERM-to-SIGKILL grace period.
func WithStopGrace(d time.Duration) Option {
	return func(o *Options) { o.StopGrace = d }
}

// WithFlushAfter sets the idle window after which a partial line is emitted.
func WithFlushAfter(d time.Duration) Option {
	return func(o *Options) { o.FlushAfter = d }
}

// WithChunkSize sets the maximum chunk length when no newline is seen.
func WithChunkSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.ChunkSize = n
		}
	}
}
