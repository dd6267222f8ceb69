// Package schema holds the catalog of standard participant fields.
package schema

import (
	_ "embed"
	"fmt"
	"io"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"gopkg.in/yaml.v3"
)

//go:embed fields.yaml
var defaultFields []byte

// StandardField is one catalog entry.
type StandardField struct {
	ID       string         `yaml:"id" json:"id"`
	Label    string         `yaml:"label" json:"label"`
	Type     core.FieldType `yaml:"type" json:"type"`
	Required bool           `yaml:"required" json:"required"`
}

// Catalog resolves standard field ids. It implements core.FieldCatalog.
type Catalog struct {
	fields []StandardField
	byID   map[string]StandardField
}

var _ core.FieldCatalog = (*Catalog)(nil)

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultFields)
	if err != nil {
		panic(fmt.Sprintf("schema: embedded fields.yaml: %v", err))
	}
	return c
}

// Load reads a catalog from YAML.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read field catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog. Ids must be unique and types known.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Fields []StandardField `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse field catalog: %w", err)
	}

	c := &Catalog{fields: doc.Fields, byID: make(map[string]StandardField, len(doc.Fields))}
	for _, f := range doc.Fields {
		if f.ID == "" {
			return nil, fmt.Errorf("field catalog: entry without id")
		}
		if !f.Type.Valid() {
			return nil, fmt.Errorf("field catalog: %s: unknown type %q", f.ID, f.Type)
		}
		if _, dup := c.byID[f.ID]; dup {
			return nil, fmt.Errorf("field catalog: duplicate id %s", f.ID)
		}
		c.byID[f.ID] = f
	}
	return c, nil
}

// Lookup returns the schema field for a standard field id.
func (c *Catalog) Lookup(id string) (core.SchemaField, bool) {
	f, ok := c.byID[id]
	if !ok {
		return core.SchemaField{}, false
	}
	return core.SchemaField{
		Name:     core.NormalizeFieldName(f.ID),
		Type:     f.Type,
		Required: f.Required,
		Label:    f.Label,
	}, true
}

// Fields returns the catalog in declaration order.
func (c *Catalog) Fields() []StandardField {
	return append([]StandardField(nil), c.fields...)
}
