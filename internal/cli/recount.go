package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/spf13/cobra"
)

var recountDataset string

var recountCmd = &cobra.Command{
	Use:   "recount",
	Short: "Repair stored record counts",
	Long: `Compare each dataset's stored record count with its number of live
records and fix any drift. Repairs are written to the audit log.

Examples:
  qrtrackctl recount
  qrtrackctl recount --dataset 6f1c...`,
	Args: cobra.NoArgs,
	RunE: runRecount,
}

func init() {
	recountCmd.Flags().StringVarP(&recountDataset, "dataset", "d", "", "recount only this dataset")
}

func runRecount(cmd *cobra.Command, args []string) error {
	ctx := actorContext(cmd.Context())

	var results []core.RecountResult
	if recountDataset != "" {
		res, err := app.Maintenance.Recount(ctx, recountDataset)
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		var err error
		results, err = app.Maintenance.RecountAll(ctx)
		if err != nil {
			return err
		}
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No datasets.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tSTORED\tACTUAL\tSTATUS")
	repaired := 0
	for _, r := range results {
		status := "ok"
		if r.Stored != r.Actual {
			status = "repaired"
			repaired++
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.DatasetID, r.Stored, r.Actual, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d datasets repaired.\n", repaired, len(results))
	return nil
}
