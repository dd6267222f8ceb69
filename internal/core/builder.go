package core

// builder.go provisions a dataset and its initial participants from the
// wizard's field definitions and an upload.
//
// Processing flow:
//  1. Resolve each upload column to a schema field (field mapping first, then
//     the normalized header)
//  2. Merge standard and custom fields into one ordered, de-duplicated schema,
//     inferring types that were not declared
//  3. Create the dataset (the only step whose failure fails the whole build)
//  4. Validate required fields per row and insert passing rows in batches
//
// Partial success is the policy: skipped rows are reported in
// BuildResult.Errors, never returned as an error.

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/logging"
	"github.com/google/uuid"
)

const (
	// SourceApplication marks datasets created by the setup wizard.
	SourceApplication = "QR Wizard"

	// DefaultImportBatchSize is the number of records inserted per store call.
	DefaultImportBatchSize = 500

	maxBuildWarnings = 50
)

// FieldCatalog resolves standard field ids to schema fields.
type FieldCatalog interface {
	Lookup(id string) (SchemaField, bool)
}

// BuildRequest is the input to DatasetBuilder.Build.
type BuildRequest struct {
	ProgramName    string
	OrganizationID string
	CreatedBy      string
	Description    string
	Upload         Upload
	FieldMapping   map[string]string // upload header -> field name
	StandardFields []string
	CustomFields   []CustomField
}

// DatasetBuilder creates datasets from wizard input.
type DatasetBuilder struct {
	datasets  DatasetStore
	records   RecordStore
	catalog   FieldCatalog
	limiter   *ImportLimiter
	auditor   *Auditor
	metrics   Metrics
	batchSize int
	now       func() time.Time
}

// DatasetName returns the name given to a program's participant dataset.
func DatasetName(programName string) string {
	return programName + " - Participants"
}

// Build provisions a dataset and its records.
func (b *DatasetBuilder) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := b.now()
	logger := logging.WithFields(ctx, "program", req.ProgramName, "rows", len(req.Upload.Rows))

	if req.ProgramName == "" {
		return nil, ValidationError{Field: "programName", Message: "required field is empty"}
	}

	if b.limiter != nil {
		if err := b.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer b.limiter.Release()
	}

	columns := resolveColumns(req.Upload.Headers, req.FieldMapping)
	schema, err := b.buildSchema(req, columns)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{Errors: []RowError{}}
	for _, col := range columns {
		if _, ok := schema.Field(col.field); !ok && col.field != "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("column %q is not part of the schema and was ignored", col.header))
		}
	}

	now := start.UTC()
	ds := &Dataset{
		ID:                uuid.NewString(),
		OrganizationID:    req.OrganizationID,
		Name:              DatasetName(req.ProgramName),
		Description:       req.Description,
		SourceApplication: SourceApplication,
		Schema:            schema,
		Status:            DatasetActive,
		CreatedBy:         req.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := b.datasets.CreateDataset(ctx, ds); err != nil {
		logger.Error("dataset create failed", "error", err)
		return nil, storeErr("create dataset", err)
	}
	result.DatasetID = ds.ID
	logger = logger.With("dataset_id", ds.ID)

	colOf := fieldColumns(columns)
	batch := make([]ParticipantRecord, 0, b.batchSize)
	batchRows := make([]int, 0, b.batchSize)
	typeWarnings := 0

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := b.records.InsertRecords(ctx, ds.ID, batch); err != nil {
			logger.Error("record batch insert failed", "size", len(batch), "error", err)
			for _, row := range batchRows {
				result.Errors = append(result.Errors, RowError{Row: row, Message: "could not be saved: " + err.Error()})
			}
			result.RecordsSkipped += len(batch)
		} else {
			result.RecordsCreated += len(batch)
		}
		batch = batch[:0]
		batchRows = batchRows[:0]
	}

	for i, row := range req.Upload.Rows {
		rowNum := i + 1
		fields, rowErr := buildRow(schema, colOf, row)
		if rowErr != nil {
			rowErr.Row = rowNum
			result.Errors = append(result.Errors, *rowErr)
			result.RecordsSkipped++
			continue
		}

		for name, v := range fields {
			f, _ := schema.Field(name)
			if err := ValidateValue(v, f); err != nil {
				typeWarnings++
				if typeWarnings <= maxBuildWarnings {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("row %d: %s %q kept as text: %v", rowNum, name, v, err))
				}
			}
		}

		batch = append(batch, ParticipantRecord{
			ID:        uuid.NewString(),
			DatasetID: ds.ID,
			Fields:    fields,
			CreatedBy: req.CreatedBy,
			CreatedAt: now,
			UpdatedAt: now,
		})
		batchRows = append(batchRows, rowNum)
		if len(batch) == b.batchSize {
			flush()
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
	}
	flush()

	if typeWarnings > maxBuildWarnings {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d more values did not match their field type", typeWarnings-maxBuildWarnings))
	}

	result.Duration = b.now().Sub(start)
	b.metrics.DatasetBuilt(result.RecordsCreated, result.RecordsSkipped)
	b.auditor.Log(ctx, AuditEntry{
		Action:    ActionDatasetCreate,
		ActorID:   req.CreatedBy,
		DatasetID: ds.ID,
		Details: map[string]any{
			"name":           ds.Name,
			"recordsCreated": result.RecordsCreated,
			"recordsSkipped": result.RecordsSkipped,
		},
	})
	logger.Info("dataset built",
		"created", result.RecordsCreated,
		"skipped", result.RecordsSkipped,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// uploadColumn pairs an upload header with the field it feeds.
type uploadColumn struct {
	header string
	field  string
}

// resolveColumns maps each header to a field name. An explicit mapping wins
// over the normalized header; a header matching a mapping key after
// normalization also counts.
func resolveColumns(headers []string, mapping map[string]string) []uploadColumn {
	normMapping := make(map[string]string, len(mapping))
	for k, v := range mapping {
		normMapping[NormalizeFieldName(CleanCell(k))] = NormalizeFieldName(v)
	}

	cols := make([]uploadColumn, len(headers))
	for i, h := range headers {
		clean := CleanCell(h)
		cols[i].header = clean
		if target, ok := mapping[h]; ok && target != "" {
			cols[i].field = NormalizeFieldName(target)
		} else if target, ok := normMapping[NormalizeFieldName(clean)]; ok && target != "" {
			cols[i].field = target
		} else {
			cols[i].field = NormalizeFieldName(clean)
		}
	}
	return cols
}

// fieldColumns returns the first column index feeding each field.
func fieldColumns(cols []uploadColumn) map[string]int {
	out := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.field == "" {
			continue
		}
		if _, dup := out[c.field]; !dup {
			out[c.field] = i
		}
	}
	return out
}

// buildSchema merges standard then custom fields, first occurrence winning,
// and infers missing types from the upload.
func (b *DatasetBuilder) buildSchema(req BuildRequest, cols []uploadColumn) (Schema, error) {
	var schema Schema
	seen := make(map[string]bool)

	add := func(f SchemaField) {
		if f.Name == "" || seen[f.Name] {
			return
		}
		seen[f.Name] = true
		schema.Fields = append(schema.Fields, f)
	}

	for _, id := range req.StandardFields {
		name := NormalizeFieldName(id)
		f := SchemaField{Name: name}
		if b.catalog != nil {
			if known, ok := b.catalog.Lookup(id); ok {
				f = known
				f.Name = name
			}
		}
		add(f)
	}
	for _, cf := range req.CustomFields {
		add(SchemaField{
			Name:     NormalizeFieldName(cf.FieldName),
			Type:     cf.FieldType,
			Required: cf.Required,
			Label:    cf.FieldName,
		})
	}

	if len(schema.Fields) == 0 {
		return Schema{}, ValidationError{Field: "fields", Message: "dataset schema has no fields"}
	}

	colOf := fieldColumns(cols)
	for i := range schema.Fields {
		f := &schema.Fields[i]
		if f.Type != "" {
			continue
		}
		var samples []string
		if col, ok := colOf[f.Name]; ok {
			for _, row := range req.Upload.Rows {
				if col < len(row) {
					if v := CleanCell(row[col]); v != "" {
						samples = append(samples, v)
					}
				}
				if len(samples) == InferenceSampleSize {
					break
				}
			}
		}
		f.Type = InferFieldType(f.Name, samples)
	}
	return schema, nil
}

// buildRow extracts schema values from a row. It returns a RowError when a
// required field is empty.
func buildRow(schema Schema, colOf map[string]int, row []string) (map[string]string, *RowError) {
	fields := make(map[string]string, len(schema.Fields))
	for _, f := range schema.Fields {
		var v string
		if col, ok := colOf[f.Name]; ok && col < len(row) {
			v = NormalizeValue(CleanCell(row[col]), f)
		}
		if v == "" {
			if f.Required {
				return nil, &RowError{Field: f.Name, Message: "required field is empty"}
			}
			continue
		}
		fields[f.Name] = v
	}
	return fields, nil
}
