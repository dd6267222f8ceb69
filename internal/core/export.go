package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// exportPageSize is the number of records read per store call while exporting.
const exportPageSize = 1000

// lineBreaks are flattened so every record occupies exactly one line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Exporter flattens datasets into CSV.
type Exporter struct {
	datasets DatasetStore
	records  RecordStore
	now      func() time.Time
}

// ExportCSV writes the dataset as CSV to w: a header row of schema field names
// in schema order, then one line per live record in creation order. Missing
// values are written as empty cells.
func (e *Exporter) ExportCSV(ctx context.Context, datasetID string, w io.Writer) error {
	ds, err := e.datasets.GetDataset(ctx, datasetID)
	if err != nil {
		return storeErr("get dataset", err)
	}
	if ds.Status == DatasetDeleted {
		return NewNotFound("dataset", datasetID)
	}

	cw := csv.NewWriter(w)
	names := ds.Schema.Names()
	if err := cw.Write(names); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(names))
	for offset := 0; ; offset += exportPageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		recs, err := e.records.ListRecords(ctx, datasetID, offset, exportPageSize)
		if err != nil {
			return storeErr("list records", err)
		}
		for i := range recs {
			for j, name := range names {
				row[j] = lineBreaks.Replace(recs[i].Value(name))
			}
			if err := writeRow(cw, w, row); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		if len(recs) < exportPageSize {
			break
		}
	}

	cw.Flush()
	return cw.Error()
}

// writeRow writes one record. csv.Writer renders a lone empty cell as a blank
// line, which readers skip, so that row is quoted explicitly.
func writeRow(cw *csv.Writer, w io.Writer, row []string) error {
	if len(row) != 1 || row[0] != "" {
		return cw.Write(row)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}

// ExportFilename returns the download name for a dataset export.
func (e *Exporter) ExportFilename(ds *Dataset) string {
	slug := strings.Trim(slugRegex.ReplaceAllString(strings.ToLower(ds.Name), "-"), "-")
	slug = strings.TrimSuffix(slug, "-participants")
	if slug == "" {
		slug = "dataset"
	}
	return fmt.Sprintf("%s-participants-%s.csv", slug, e.now().UTC().Format("20060102"))
}
