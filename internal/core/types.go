package core

import (
	"sort"
	"time"
)

// FieldType is the declared data type of a dataset field.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldURL      FieldType = "url"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldText, FieldTextarea, FieldEmail, FieldPhone, FieldURL,
		FieldNumber, FieldBoolean, FieldDate:
		return true
	}
	return false
}

// Searchable reports whether values of this type take part in free-text search.
func (t FieldType) Searchable() bool {
	switch t {
	case FieldString, FieldText, FieldTextarea, FieldEmail, FieldPhone, FieldURL:
		return true
	}
	return false
}

// SchemaField describes one column of a dataset.
type SchemaField struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Label    string    `json:"label,omitempty"`
}

// Schema is the ordered field list of a dataset. Names are unique.
type Schema struct {
	Fields []SchemaField `json:"fields"`
}

// Field looks up a field by name.
func (s Schema) Field(name string) (SchemaField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return SchemaField{}, false
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// SearchableNames returns the names of text-typed fields in schema order.
func (s Schema) SearchableNames() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Type.Searchable() {
			names = append(names, f.Name)
		}
	}
	return names
}

// DatasetStatus is the lifecycle state of a dataset.
type DatasetStatus string

const (
	DatasetActive   DatasetStatus = "active"
	DatasetArchived DatasetStatus = "archived"
	DatasetDeleted  DatasetStatus = "deleted"
)

// DatasetMetadata carries derived dataset attributes.
type DatasetMetadata struct {
	// RecordCount equals the number of non-deleted records in the dataset.
	RecordCount int `json:"recordCount"`
}

// Dataset is a named, schema-described collection of participant records.
type Dataset struct {
	ID                string          `json:"id"`
	OrganizationID    string          `json:"organizationId"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	SourceApplication string          `json:"sourceApplication"`
	Schema            Schema          `json:"schema"`
	Metadata          DatasetMetadata `json:"metadata"`
	Status            DatasetStatus   `json:"status"`
	CreatedBy         string          `json:"createdBy"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// ParticipantRecord holds one participant's field values within a dataset.
type ParticipantRecord struct {
	ID        string            `json:"id"`
	DatasetID string            `json:"datasetId"`
	Seq       int64             `json:"-"` // creation order within the store
	Fields    map[string]string `json:"fields"`
	CreatedBy string            `json:"createdBy"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Value returns the value stored for a field, or "" when absent.
func (r *ParticipantRecord) Value(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// RecordPage is one page of a dataset listing.
type RecordPage struct {
	Records  []ParticipantRecord `json:"records"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
	HasMore  bool                `json:"hasMore"`
}

// CheckInSession is a class or meeting that participants check in to.
type CheckInSession struct {
	ID          string     `json:"id"`
	DatasetID   string     `json:"datasetId"`
	Name        string     `json:"name"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Attendance records that a participant attended a session.
// At most one exists per (ParticipantID, SessionID).
type Attendance struct {
	ParticipantID string    `json:"participantId"`
	SessionID     string    `json:"sessionId"`
	Attended      bool      `json:"attended"`
	RecordedAt    time.Time `json:"recordedAt"`
	RecordedBy    string    `json:"recordedBy,omitempty"`
}

// RowError describes an upload row that was skipped.
type RowError struct {
	Row     int    `json:"row"` // 1-based data row number, header excluded
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// BuildResult is the outcome of provisioning a dataset from an upload.
type BuildResult struct {
	DatasetID      string        `json:"datasetId"`
	RecordsCreated int           `json:"recordsCreated"`
	RecordsSkipped int           `json:"recordsSkipped"`
	Errors         []RowError    `json:"errors"`
	Warnings       []string      `json:"warnings,omitempty"`
	Duration       time.Duration `json:"-"`
}

// Upload is a parsed participant file.
type Upload struct {
	FileName string
	Headers  []string
	Rows     [][]string
}

// sortedInts returns the keys of a set in ascending order.
func sortedInts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
