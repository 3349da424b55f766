// # internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rustfuse/internal/config"
	"rustfuse/internal/shared/observability"
)

var version = "dev"

// SetVersion injects the build version, typically via ldflags.
func SetVersion(v string) {
	version = v
}

type rootFlags struct {
	configPath string
	verbose    bool
}

// Execute runs the rustfuse CLI.
func Execute() error {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "rustfuse",
		Short: "rustfuse fuses a multi-crate Rust program into one source file",
		Long: `rustfuse parses a binary crate and its local library crates, follows the
dependency graph from main, resolves which impl items the fused program
needs, and writes everything reachable into a single self-contained
Rust source file.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flags.verbose, isInteractive(cmd))
		},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "./rustfuse.toml", "path to the config file")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newFuseCmd(flags))
	root.AddCommand(newAnalyzeCmd(flags))
	root.AddCommand(newWatchCmd(flags))
	root.AddCommand(newHistoryCmd(flags))
	root.AddCommand(newPurgeCmd(flags))

	return root.ExecuteContext(context.Background())
}

// isInteractive reports whether the command may open the decision
// dialog, in which case logs must stay off the terminal.
func isInteractive(cmd *cobra.Command) bool {
	if cmd.Name() != "fuse" {
		return false
	}
	batch, _ := cmd.Flags().GetBool("batch")
	return !batch
}

func setupLogging(verbose, interactive bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stderr
	if interactive {
		// Logs would corrupt the dialog TUI.
		logPath := filepath.Join(os.TempDir(), "rustfuse.log")
		if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			output = f
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	return config.Load(flags.configPath)
}

func initTracing(ctx context.Context) func() {
	shutdown, err := observability.InitTracing(ctx, "", version)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}
}
