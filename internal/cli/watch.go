// # internal/cli/watch.go
package cli

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rustfuse/internal/app"
	"rustfuse/internal/history"
	"rustfuse/internal/policy"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var autoExclude bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refuse automatically whenever the crate sources change",
		Long: `Watch keeps the fused output current: it refuses after every batched
source change until interrupted. Watch mode never opens a dialog; open
impl items follow --auto-exclude.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown := initTracing(ctx)
			defer shutdown()

			var store *history.Store
			if cfg.History.Path != "" {
				store, err = history.Open(cfg.History.Path)
				if err != nil {
					return err
				}
				defer store.Close()
			}

			p := app.NewPipeline(cfg, policy.BatchProvider{AutoExclude: autoExclude}, store, slog.Default())
			return p.Watch(ctx)
		},
	}

	cmd.Flags().BoolVar(&autoExclude, "auto-exclude", true, "exclude open impl items instead of failing the refusion")

	return cmd
}
