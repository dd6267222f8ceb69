package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	exportDataset string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a dataset as CSV",
	Long: `Write every live record of a dataset as CSV, with the schema fields as
the header row.

--out names a file, or a directory that receives the default file name.
Without --out the CSV goes to stdout.

Examples:
  qrtrackctl export --dataset 6f1c...
  qrtrackctl export --dataset 6f1c... --out ./exports`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportDataset, "dataset", "d", "", "dataset id")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file or directory")
	_ = exportCmd.MarkFlagRequired("dataset")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ds, err := app.Service.Records.Dataset(ctx, exportDataset)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	path := exportOut
	if path != "" {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, app.Service.Exporter.ExportFilename(ds))
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := app.Service.Exporter.ExportCSV(ctx, ds.ID, w); err != nil {
		return fmt.Errorf("export %s: %w", ds.ID, err)
	}
	if path != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records to %s\n", ds.Metadata.RecordCount, path)
	}
	return nil
}
