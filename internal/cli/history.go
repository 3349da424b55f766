// # internal/cli/history.go
package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rustfuse/internal/core/errors"
	"rustfuse/internal/history"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded fusion runs",
	}
	cmd.AddCommand(newHistoryListCmd(flags))
	cmd.AddCommand(newHistoryShowCmd(flags))
	cmd.AddCommand(newHistoryPurgeCmd(flags))
	return cmd
}

func openStore(flags *rootFlags) (*history.Store, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if cfg.History.Path == "" {
		return nil, errors.New(errors.CodeValidationError,
			"history.path is not set in the config")
	}
	return history.Open(cfg.History.Path)
}

func newHistoryListCmd(flags *rootFlags) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()

			cutoff := time.Time{}
			if since > 0 {
				cutoff = time.Now().Add(-since)
			}
			runs, err := store.LoadRuns(cutoff)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tCRATE\tITEMS\tREQUIRED\tDIAGNOSTICS\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%dms\n",
					r.ID, r.Timestamp.Format(time.RFC3339), r.BinaryCrate,
					r.ItemCount, r.RequiredCount, r.DiagnosticCount, r.DurationMs)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only runs newer than this age, e.g. 72h")

	return cmd
}

func newHistoryShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the decisions recorded for one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()

			decisions, err := store.LoadDecisions(args[0])
			if err != nil {
				return err
			}
			if len(decisions) == 0 {
				fmt.Println("no decisions recorded for this run")
				return nil
			}
			for _, d := range decisions {
				fmt.Printf("%s\t%s\n", d.Action, d.Pattern)
			}
			return nil
		},
	}
}

func newHistoryPurgeCmd(flags *rootFlags) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete runs older than the given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New(errors.CodeValidationError,
					"--older-than must be a positive duration")
			}
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Purge(time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Printf("purged %d runs\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete runs older than this age")

	return cmd
}
