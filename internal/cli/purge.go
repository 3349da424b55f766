// # internal/cli/purge.go
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rustfuse/internal/history"
)

func newPurgeCmd(flags *rootFlags) *cobra.Command {
	var keepHistory bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete the fused output and the recorded run history",
		Long: `Purge removes the fused source file and the DOT graph named in the
config, plus every recorded run, leaving the crate sources and the
config file untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			for _, path := range []string{cfg.Output.File, cfg.Output.DOT} {
				if path == "" {
					continue
				}
				switch err := os.Remove(path); {
				case err == nil:
					fmt.Printf("removed %s\n", path)
				case os.IsNotExist(err):
				default:
					return err
				}
			}

			if keepHistory || cfg.History.Path == "" {
				return nil
			}
			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Purge(time.Now().Add(time.Second))
			if err != nil {
				return err
			}
			fmt.Printf("purged %d runs\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepHistory, "keep-history", false, "delete only the emitted files")

	return cmd
}
