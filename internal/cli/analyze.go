// # internal/cli/analyze.go
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"rustfuse/internal/app"
	"rustfuse/internal/policy"
)

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Resolve the dependency graph and report without writing anything",
		Long: `Analyze runs the full resolution in batch mode but skips the fused
file, the DOT graph, the config and the run history. Open impl items
are excluded for the report, so ambiguities show up as diagnostics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			shutdown := initTracing(cmd.Context())
			defer shutdown()

			p := app.NewPipeline(cfg, policy.BatchProvider{AutoExclude: true}, nil, slog.Default())
			p.DryRun = true

			rep, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return rep.WriteJSON(os.Stdout)
			}
			return rep.WriteText(os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")

	return cmd
}
