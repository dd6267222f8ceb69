package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/spf13/cobra"
)

var (
	importProgram  string
	importFile     string
	importStandard []string
	importCustom   []string
	importMapping  []string
	importDesc     string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Create a dataset from a participant CSV",
	Long: `Build a new participant dataset from a CSV file, the same way the setup
wizard does when it is finalized.

Standard fields are catalog ids (firstName, email, phone, ...). Custom fields
are given as name or name:type, where type is one of string, text, textarea,
email, phone, url, number, boolean, or date; a missing type is inferred from
the data. Rows missing a required value are skipped and listed.

Examples:
  qrtrackctl import --program "Spring Yoga" --file yoga.csv --standard firstName,lastName,email
  qrtrackctl import --program "Spring Yoga" --file yoga.csv --standard email --custom "Mat Size:string"
  qrtrackctl import --program "Spring Yoga" --file yoga.csv --map "Given Name=firstname"`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importProgram, "program", "p", "", "program name (dataset is named after it)")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "participant CSV file")
	importCmd.Flags().StringSliceVarP(&importStandard, "standard", "s", nil, "standard field ids")
	importCmd.Flags().StringSliceVarP(&importCustom, "custom", "c", nil, "custom fields as name or name:type")
	importCmd.Flags().StringSliceVar(&importMapping, "map", nil, "column mappings as Header=field")
	importCmd.Flags().StringVar(&importDesc, "description", "", "dataset description")
	_ = importCmd.MarkFlagRequired("program")
	_ = importCmd.MarkFlagRequired("file")
}

// parseCustomFields reads name or name:type entries.
func parseCustomFields(entries []string) ([]core.CustomField, error) {
	out := make([]core.CustomField, 0, len(entries))
	for _, e := range entries {
		name, typ, _ := strings.Cut(e, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("custom field %q has no name", e)
		}
		cf := core.CustomField{FieldName: name, FieldType: core.FieldType(strings.TrimSpace(typ))}
		if cf.FieldType != "" && !cf.FieldType.Valid() {
			return nil, fmt.Errorf("custom field %q: unknown type %q", name, typ)
		}
		out = append(out, cf)
	}
	return out, nil
}

// parseMapping reads Header=field entries.
func parseMapping(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		header, field, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(header) == "" || strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("mapping %q must look like Header=field", e)
		}
		out[strings.TrimSpace(header)] = strings.TrimSpace(field)
	}
	return out, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	custom, err := parseCustomFields(importCustom)
	if err != nil {
		return err
	}
	mapping, err := parseMapping(importMapping)
	if err != nil {
		return err
	}

	f, err := os.Open(importFile)
	if err != nil {
		return fmt.Errorf("open participant file: %w", err)
	}
	defer f.Close()

	upload, err := core.ReadUpload(f, filepath.Base(importFile), 0)
	if err != nil {
		return fmt.Errorf("read %s: %w", importFile, err)
	}

	ctx := actorContext(cmd.Context())
	res, err := app.Service.Builder.Build(ctx, core.BuildRequest{
		ProgramName:    importProgram,
		OrganizationID: orgID,
		CreatedBy:      actorID,
		Description:    importDesc,
		Upload:         *upload,
		FieldMapping:   mapping,
		StandardFields: importStandard,
		CustomFields:   custom,
	})
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dataset %s created: %d records, %d skipped.\n",
		res.DatasetID, res.RecordsCreated, res.RecordsSkipped)
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Message)
	}
	return nil
}
