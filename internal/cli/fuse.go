// # internal/cli/fuse.go
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"rustfuse/internal/app"
	"rustfuse/internal/catalog"
	"rustfuse/internal/dialog"
	"rustfuse/internal/history"
	"rustfuse/internal/policy"
)

func newFuseCmd(flags *rootFlags) *cobra.Command {
	var (
		batch       bool
		autoExclude bool
		saveConfig  bool
	)

	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Fuse the configured crates into one Rust source file",
		Long: `Fuse parses the binary crate and its libraries, walks the dependency
graph from main and writes every required item into the output file.
Impl items the configuration leaves open are decided in an interactive
dialog, or automatically in batch mode.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			shutdown := initTracing(cmd.Context())
			defer shutdown()

			var store *history.Store
			if cfg.History.Path != "" {
				store, err = history.Open(cfg.History.Path)
				if err != nil {
					return err
				}
				defer store.Close()
			}

			var provider policy.Provider
			if batch {
				provider = policy.BatchProvider{AutoExclude: autoExclude}
			}
			p := app.NewPipeline(cfg, provider, store, slog.Default())
			if !batch {
				p.Interactive = func(cat *catalog.Catalog) policy.Provider {
					return dialog.New(cat)
				}
			}
			p.PersistDecisions = saveConfig
			p.ConfigPath = flags.configPath

			rep, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			return rep.WriteText(os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&batch, "batch", false, "decide open impl items without a dialog")
	cmd.Flags().BoolVar(&autoExclude, "auto-exclude", false, "with --batch, exclude open items instead of failing")
	cmd.Flags().BoolVar(&saveConfig, "save-config", false, "write dialog decisions back into the config file")

	return cmd
}
