// Package config provides the proxy's CLI surface and ambient process
// configuration, generalized from the teacher's cmd/analyzer/main.go
// flag-var/init() shape (spec.md §6 "CLI", "Configuration").
package config

import (
	"fmt"

	logrusr "github.com/bombsimon/logrusr/v3"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Config holds everything derived from CLI flags and positional
// arguments: the downstream language server to spawn plus process-wide
// toggles. Workspace root and the default/preamble document are not
// here — those come from the editor's own `initialize` request
// (RootURI, initializationOptions.proxy.globalScript, spec.md §6
// "Configuration").
type Config struct {
	// DownstreamCommand is the downstream language server's executable
	// and arguments, taken verbatim from the CLI's trailing positional
	// arguments (`glsproxy <downstream-cmd> [args...]`).
	DownstreamCommand []string
	// LogLevel is a logrus level (0 Panic .. 6 Trace), following the
	// teacher's `--verbose` flag.
	LogLevel int
	// Debug enables dev-artifact emission under .proxy/debug (spec.md
	// §4.D "Dev artifacts").
	Debug bool
	// RootOverride, if set, replaces the editor-supplied RootURI as the
	// workspace root used to resolve include paths and .proxy/ layout.
	RootOverride string
}

var (
	logLevel     int
	debug        bool
	rootOverride string
)

// Command builds the root cobra command. run is invoked once argument
// parsing succeeds, with DownstreamCommand populated from args.
func Command(run func(Config) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glsproxy <downstream-server-command> [args...]",
		Short: "LSP proxy that bundles #include/#text/#sql documents before handing them to a JS/TS language server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return run(Config{
				DownstreamCommand: args,
				LogLevel:          logLevel,
				Debug:             debug,
				RootOverride:      rootOverride,
			})
		},
	}
	cmd.Flags().IntVar(&logLevel, "verbose", 2, "level for logging output")
	cmd.Flags().BoolVar(&debug, "debug", false, "write .proxy/debug dev artifacts (emitted content + source map) for every build")
	cmd.Flags().StringVar(&rootOverride, "root", "", "workspace root to use instead of the editor's initialize RootURI")
	return cmd
}

// NewLogger builds the logr.Logger every package in this proxy takes,
// matching the teacher's logrus+logrusr construction in
// cmd/analyzer/main.go. It never points at stdout: that file descriptor
// is reserved for LSP traffic (spec.md §6 "CLI"), so the proxy always
// logs to stderr, logrus's default output.
func NewLogger(level int) logr.Logger {
	logrusLog := logrus.New()
	logrusLog.SetFormatter(&logrus.TextFormatter{})
	logrusLog.SetLevel(logrusLevel(level))
	return logrusr.New(logrusLog)
}

// logrusLevel clamps an arbitrary verbosity int into logrus's level
// range, the way the teacher's TODO-flagged comment ("need to do
// research on mapping in logrusr to level here") left it: a direct cast,
// bounded so an out-of-range --verbose can't panic logrus.
func logrusLevel(v int) logrus.Level {
	if v < int(logrus.PanicLevel) {
		return logrus.PanicLevel
	}
	if v > int(logrus.TraceLevel) {
		return logrus.TraceLevel
	}
	return logrus.Level(v)
}

// Validate reports an error for a Config that can never run, before any
// process spawning is attempted.
func (c Config) Validate() error {
	if len(c.DownstreamCommand) == 0 {
		return fmt.Errorf("config: no downstream-server-command given")
	}
	return nil
}
